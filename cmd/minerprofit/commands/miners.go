package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camarigor/miner-profit/internal/mining"
)

var minersCmd = &cobra.Command{
	Use:   "miners",
	Short: "Inspect the stored miner fleet",
}

var minersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured miners",
	RunE:  runMinersList,
}

func init() {
	rootCmd.AddCommand(minersCmd)
	minersCmd.AddCommand(minersListCmd)

	minersListCmd.Flags().String("format", "table", "output format (table, json)")
}

func runMinersList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	miners, err := a.store.LoadMiners(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load miners: %w", err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(miners)
	}
	return writeMiners(os.Stdout, miners)
}

func writeMiners(w io.Writer, miners []mining.MinerSpec) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tALGO\tHASHRATE\tPOWER\tQTY\t$/KWH\tFEE/KWH")
	for _, m := range miners {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g %s\t%gW\t%d\t%.4f\t%.4f\n",
			m.ID, m.Name, m.Algorithm, m.Hashrate, m.HashrateUnit, m.Power, m.Quantity, m.ElectricityRate, m.ManagementFeeRate)
	}
	return tw.Flush()
}
