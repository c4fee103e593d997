package main

import (
	"github.com/camarigor/miner-profit/cmd/minerprofit/commands"
)

func main() {
	commands.Execute()
}
