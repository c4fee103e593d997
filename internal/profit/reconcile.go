package profit

import (
	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
)

// DayMarket is the price and difficulty chosen for each coin on one date
type DayMarket struct {
	Date         string                  `json:"date"`
	Prices       map[mining.Coin]float64 `json:"prices"`
	Difficulties map[mining.Coin]float64 `json:"difficulties"`
}

// marketIndex is a bundle keyed by coin and date for constant-time lookups
type marketIndex struct {
	livePrice map[mining.Coin]float64
	liveDiff  map[mining.Coin]float64
	prices    map[mining.Coin]map[string]float64
	diffs     map[mining.Coin]map[string]float64
}

func newMarketIndex(b market.Bundle) *marketIndex {
	ix := &marketIndex{
		livePrice: b.CurrentPrices,
		liveDiff:  b.CurrentDifficulty,
		prices:    make(map[mining.Coin]map[string]float64, len(b.PriceHistory)),
		diffs:     make(map[mining.Coin]map[string]float64, len(b.DifficultyHistory)),
	}
	for c, pts := range b.PriceHistory {
		byDate := make(map[string]float64, len(pts))
		for _, p := range pts {
			byDate[p.Date] = p.Price
		}
		ix.prices[c] = byDate
	}
	for c, pts := range b.DifficultyHistory {
		byDate := make(map[string]float64, len(pts))
		for _, p := range pts {
			byDate[p.Date] = p.Difficulty
		}
		ix.diffs[c] = byDate
	}
	return ix
}

// price applies the today-uses-live rule. Past days only read history; a gap
// yields 0.
func (ix *marketIndex) price(c mining.Coin, date, today string) float64 {
	if date == today {
		if v := finite(ix.livePrice[c]); v > 0 {
			return v
		}
	}
	return finite(ix.prices[c][date])
}

// difficulty prefers the daily history entry and falls back to the snapshot
func (ix *marketIndex) difficulty(c mining.Coin, date string) float64 {
	if v := finite(ix.diffs[c][date]); v > 0 {
		return v
	}
	return finite(ix.liveDiff[c])
}

func (ix *marketIndex) day(date, today string, coins []mining.Coin) DayMarket {
	dm := DayMarket{
		Date:         date,
		Prices:       make(map[mining.Coin]float64, len(coins)),
		Difficulties: make(map[mining.Coin]float64, len(coins)),
	}
	for _, c := range coins {
		dm.Prices[c] = ix.price(c, date, today)
		dm.Difficulties[c] = ix.difficulty(c, date)
	}
	return dm
}

// Reconcile builds one DayMarket per day of r for the given coins. today is
// the UTC calendar date used for the live-price rule.
func Reconcile(b market.Bundle, r mining.DateRange, coins []mining.Coin, today string) ([]DayMarket, error) {
	days, err := r.Days()
	if err != nil {
		return nil, err
	}
	ix := newMarketIndex(b)
	out := make([]DayMarket, 0, len(days))
	for _, d := range days {
		out = append(out, ix.day(d, today, coins))
	}
	return out, nil
}
