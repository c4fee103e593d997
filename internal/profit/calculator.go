// Package profit turns reconciled market data and miner specs into daily
// revenue records and period totals.
package profit

import (
	"math"

	"github.com/camarigor/miner-profit/internal/mining"
)

const (
	secondsPerDay = 86400
	hashesPerDiff = 4294967296 // 2^32 expected hashes per unit of difficulty
	hoursPerDay   = 24
)

// DailyRevenueRecord is the outcome of one miner on one day. USD amounts and
// CoinOutputs cover all machines of the miner.
type DailyRevenueRecord struct {
	Date            string                  `json:"date"`
	Prices          map[mining.Coin]float64 `json:"prices"`
	Difficulties    map[mining.Coin]float64 `json:"difficulties"`
	CoinOutputs     map[mining.Coin]float64 `json:"coinOutputs"`
	Revenue         float64                 `json:"revenue"`
	ElectricityCost float64                 `json:"electricityCost"`
	ManagementFee   float64                 `json:"managementFee"`
	Profit          float64                 `json:"profit"`
}

// CoinsPerDay is the expected daily output of one machine:
// hashrate*scale*86400*reward / (difficulty*2^32). Any zero, negative or
// non-finite input yields 0.
func CoinsPerDay(hashrate, unitScale, difficulty, reward float64) float64 {
	hashrate, unitScale = finite(hashrate), finite(unitScale)
	difficulty, reward = finite(difficulty), finite(reward)
	if hashrate == 0 || unitScale == 0 || difficulty == 0 || reward == 0 {
		return 0
	}
	out := hashrate * unitScale * secondsPerDay * reward / (difficulty * hashesPerDiff)
	return finite(out)
}

// DailyKWh is the energy drawn by every machine of the miner in one day
func DailyKWh(m mining.MinerSpec) float64 {
	qty := float64(m.Quantity)
	if qty < 0 {
		qty = 0
	}
	return finite(m.Power) / 1000 * hoursPerDay * qty
}

// DailyRevenue computes one miner's record for a day. Missing or invalid
// prices and difficulties contribute nothing; it never fails.
func DailyRevenue(m mining.MinerSpec, date string, prices, difficulties map[mining.Coin]float64) DailyRevenueRecord {
	rec := DailyRevenueRecord{
		Date:         date,
		Prices:       make(map[mining.Coin]float64),
		Difficulties: make(map[mining.Coin]float64),
		CoinOutputs:  make(map[mining.Coin]float64, len(mining.AllCoins)),
	}
	for _, c := range mining.AllCoins {
		rec.CoinOutputs[c] = 0
	}

	var (
		coins []mining.Coin
		scale float64
	)
	if p, err := m.Profile(); err == nil {
		coins, scale = p.Coins, p.UnitScale
	}

	qty := float64(m.Quantity)
	if qty < 0 {
		qty = 0
	}

	for _, c := range coins {
		price := finite(prices[c])
		diff := finite(difficulties[c])
		rec.Prices[c] = price
		rec.Difficulties[c] = diff

		perMachine := CoinsPerDay(m.Hashrate, scale, diff, mining.BlockRewards[c])
		rec.CoinOutputs[c] = perMachine * qty
		rec.Revenue += perMachine * price * qty
	}

	kwh := DailyKWh(m)
	rec.ElectricityCost = kwh * finite(m.ElectricityRate)
	rec.ManagementFee = kwh * finite(m.ManagementFeeRate)
	rec.Profit = rec.Revenue - rec.ElectricityCost - rec.ManagementFee
	return rec
}

// finite maps NaN, Inf and negative values to 0
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
