package profit

import (
	"errors"
	"fmt"

	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
)

// ErrDataUnavailable is reported as Result.Condition when no market data at
// all could be obtained.
var ErrDataUnavailable = errors.New("market data unavailable")

// Input is everything one computation pass needs
type Input struct {
	Miners []mining.MinerSpec
	Range  mining.DateRange
	Bundle market.Bundle
	Today  string // UTC calendar date; defaults to the range end
}

// MinerResult is one miner's daily records and period totals
type MinerResult struct {
	Miner   mining.MinerSpec     `json:"miner"`
	Records []DailyRevenueRecord `json:"records"`
	Totals  Totals               `json:"totals"`
}

// Result is the stable output consumed by the API, CLI and export
type Result struct {
	Range       mining.DateRange      `json:"range"`
	Today       string                `json:"today"`
	Days        []string              `json:"days"`
	Miners      []MinerResult         `json:"miners"`
	Summary     FleetSummary          `json:"summary"`
	Stale       bool                  `json:"stale"`
	Unavailable bool                  `json:"unavailable"`
	Condition   string                `json:"condition,omitempty"`
	Sources     []market.SourceStatus `json:"sources,omitempty"`
}

// Compute reconciles the bundle for each miner and produces records and
// aggregates. It fails only on an invalid range or miner; missing market
// data degrades to zeros or to an empty result flagged unavailable.
func Compute(in Input) (Result, error) {
	today := in.Today
	if today == "" {
		today = in.Range.End
	}
	r := in.Range.Clamp(today)
	days, err := r.Days()
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Range:   r,
		Today:   today,
		Days:    days,
		Miners:  []MinerResult{},
		Sources: in.Bundle.Sources,
		Stale:   in.Bundle.Stale(),
	}

	if in.Bundle.Unavailable() {
		res.Unavailable = true
		res.Condition = ErrDataUnavailable.Error()
		res.Summary = Summarize(nil, nil)
		return res, nil
	}

	ix := newMarketIndex(in.Bundle)
	for _, m := range in.Miners {
		p, err := m.Profile()
		if err != nil {
			return Result{}, fmt.Errorf("miner %s: %w", m.ID, err)
		}
		mr := MinerResult{Miner: m, Records: make([]DailyRevenueRecord, 0, len(days))}
		for _, d := range days {
			dm := ix.day(d, today, p.Coins)
			mr.Records = append(mr.Records, DailyRevenue(m, d, dm.Prices, dm.Difficulties))
		}
		mr.Totals = Aggregate(mr.Records)
		res.Miners = append(res.Miners, mr)
	}

	res.Summary = Summarize(res.Miners, days)
	if res.Stale {
		res.Condition = "some market data is stale or unavailable"
	}
	return res, nil
}
