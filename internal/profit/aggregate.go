package profit

import (
	"github.com/camarigor/miner-profit/internal/mining"
)

// Totals folds a miner's daily records over a period
type Totals struct {
	Days            int                     `json:"days"`
	Revenue         float64                 `json:"revenue"`
	ElectricityCost float64                 `json:"electricityCost"`
	ManagementFee   float64                 `json:"managementFee"`
	Profit          float64                 `json:"profit"`
	Margin          float64                 `json:"margin"`
	CoinOutputs     map[mining.Coin]float64 `json:"coinOutputs"`
	AvgPrices       map[mining.Coin]float64 `json:"avgPrices"`
	AvgDifficulties map[mining.Coin]float64 `json:"avgDifficulties"`
}

// Margin is profit as a percentage of revenue, 0 when there is no revenue
func Margin(profit, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return profit / revenue * 100
}

// Aggregate sums records. Profit is derived from the summed components, not
// from the daily profits. Averages skip days whose value is 0.
func Aggregate(records []DailyRevenueRecord) Totals {
	t := Totals{
		Days:            len(records),
		CoinOutputs:     make(map[mining.Coin]float64),
		AvgPrices:       make(map[mining.Coin]float64),
		AvgDifficulties: make(map[mining.Coin]float64),
	}
	priceDays := map[mining.Coin]int{}
	diffDays := map[mining.Coin]int{}

	for _, r := range records {
		t.Revenue += r.Revenue
		t.ElectricityCost += r.ElectricityCost
		t.ManagementFee += r.ManagementFee
		for c, v := range r.CoinOutputs {
			t.CoinOutputs[c] += v
		}
		for c, v := range r.Prices {
			if v > 0 {
				t.AvgPrices[c] += v
				priceDays[c]++
			}
		}
		for c, v := range r.Difficulties {
			if v > 0 {
				t.AvgDifficulties[c] += v
				diffDays[c]++
			}
		}
	}
	for c, n := range priceDays {
		t.AvgPrices[c] /= float64(n)
	}
	for c, n := range diffDays {
		t.AvgDifficulties[c] /= float64(n)
	}

	t.Profit = t.Revenue - t.ElectricityCost - t.ManagementFee
	t.Margin = Margin(t.Profit, t.Revenue)
	return t
}

// FleetRow is one date of the fleet profit matrix
type FleetRow struct {
	Date    string             `json:"date"`
	Profits map[string]float64 `json:"profits"` // keyed by miner ID
	Total   float64            `json:"total"`
}

// FleetSummary is the cross-miner aggregate
type FleetSummary struct {
	Revenue         float64                 `json:"revenue"`
	ElectricityCost float64                 `json:"electricityCost"`
	ManagementFee   float64                 `json:"managementFee"`
	Profit          float64                 `json:"profit"`
	Margin          float64                 `json:"margin"`
	CoinOutputs     map[mining.Coin]float64 `json:"coinOutputs"`
	Rows            []FleetRow              `json:"rows"`
}

// Summarize sums each miner's totals and lays daily profits out per date
func Summarize(miners []MinerResult, days []string) FleetSummary {
	s := FleetSummary{
		CoinOutputs: make(map[mining.Coin]float64),
		Rows:        make([]FleetRow, 0, len(days)),
	}
	for _, m := range miners {
		s.Revenue += m.Totals.Revenue
		s.ElectricityCost += m.Totals.ElectricityCost
		s.ManagementFee += m.Totals.ManagementFee
		for c, v := range m.Totals.CoinOutputs {
			s.CoinOutputs[c] += v
		}
	}
	s.Profit = s.Revenue - s.ElectricityCost - s.ManagementFee
	s.Margin = Margin(s.Profit, s.Revenue)

	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d] = i
		s.Rows = append(s.Rows, FleetRow{Date: d, Profits: make(map[string]float64, len(miners))})
	}
	for _, m := range miners {
		for _, r := range m.Records {
			i, ok := index[r.Date]
			if !ok {
				continue
			}
			s.Rows[i].Profits[m.Miner.ID] += r.Profit
			s.Rows[i].Total += r.Profit
		}
	}
	return s
}
