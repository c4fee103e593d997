package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
	"github.com/camarigor/miner-profit/internal/profit"
)

// reportCmd refreshes market data and prints per-miner totals
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a profitability report",
	Long: `Refresh market data, compute daily revenue for every stored miner and
print period totals.

Examples:
  minerprofit report
  minerprofit report --preset last-30
  minerprofit report --start 2025-01-01 --end 2025-01-31 --format json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addRangeFlags(reportCmd)
	reportCmd.Flags().String("format", "table", "output format (table, json)")
	reportCmd.Flags().Bool("daily", false, "include the per-day fleet profit table")
}

// addRangeFlags registers --preset, --start and --end
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("preset", mining.PresetThisMonth, "date preset (this-month, last-month, last-7, last-30)")
	cmd.Flags().String("start", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "custom range end (YYYY-MM-DD), defaults to today")
}

// rangeFromFlags resolves an explicit --start/--end pair or the preset
func rangeFromFlags(cmd *cobra.Command, now time.Time) (mining.DateRange, error) {
	preset, _ := cmd.Flags().GetString("preset")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")

	if start != "" || preset == mining.PresetCustom {
		if end == "" {
			end = mining.DayKey(now)
		}
		r := mining.DateRange{Start: start, End: end}
		return r, r.Clamp(mining.DayKey(now)).Validate()
	}
	return mining.PresetRange(preset, now)
}

func runReport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	daily, _ := cmd.Flags().GetBool("daily")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := rangeFromFlags(cmd, time.Now())
	if err != nil {
		return err
	}

	res, err := profit.NewEngine(a.store, a.market).Run(cmd.Context(), r)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeReport(os.Stdout, res, daily)
}

// writeReport prints the header, one row per miner and the fleet totals
func writeReport(w io.Writer, res profit.Result, daily bool) error {
	fmt.Fprintf(w, "Mining report %s .. %s (%d days)\n", res.Range.Start, res.Range.End, len(res.Days))
	if res.Unavailable {
		fmt.Fprintf(w, "\n%s: no market data could be fetched and nothing is cached\n", res.Condition)
		return nil
	}
	if res.Stale {
		var degraded []string
		for _, s := range res.Sources {
			if s.State == market.StateStale || s.State == market.StateUnavailable {
				degraded = append(degraded, fmt.Sprintf("%s/%s %s", s.Kind, s.Coin, s.State))
			}
		}
		fmt.Fprintf(w, "warning: %s (%s)\n", res.Condition, strings.Join(degraded, ", "))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MINER\tQTY\tOUTPUT\tREVENUE\tELECTRICITY\tMGMT FEE\tPROFIT\tMARGIN\t")
	for _, mr := range res.Miners {
		t := mr.Totals
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			mr.Miner.Name, mr.Miner.Quantity, formatOutput(mr.Miner.Coins, t.CoinOutputs),
			formatUSD(t.Revenue), formatUSD(t.ElectricityCost), formatUSD(t.ManagementFee),
			formatUSD(t.Profit), formatPct(t.Margin))
	}
	s := res.Summary
	fmt.Fprintf(tw, "FLEET\t\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
		formatOutput(mining.AllCoins, s.CoinOutputs),
		formatUSD(s.Revenue), formatUSD(s.ElectricityCost), formatUSD(s.ManagementFee),
		formatUSD(s.Profit), formatPct(s.Margin))
	if err := tw.Flush(); err != nil {
		return err
	}

	if !daily {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"DATE"}
	for _, mr := range res.Miners {
		header = append(header, mr.Miner.ID)
	}
	header = append(header, "TOTAL")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, row := range s.Rows {
		cells := []string{row.Date}
		for _, mr := range res.Miners {
			cells = append(cells, formatUSD(row.Profits[mr.Miner.ID]))
		}
		cells = append(cells, formatUSD(row.Total))
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

// formatUSD rounds to cents and groups thousands: -$1,234.50
func formatUSD(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func formatPct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

// formatOutput lists the coin amounts for coins, e.g. "0.00812345 BTC"
func formatOutput(coins []mining.Coin, out map[mining.Coin]float64) string {
	parts := make([]string, 0, len(coins))
	for _, c := range coins {
		v, ok := out[c]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", humanize.FormatFloat("#,###.########", v), c))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " + ")
}
