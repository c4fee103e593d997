// Package export writes computation results as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/camarigor/miner-profit/internal/mining"
	"github.com/camarigor/miner-profit/internal/profit"
)

const (
	SummarySheet = "Summary"
	maxSheetName = 31
)

// FileName is the download name for a workbook covering r
func FileName(r mining.DateRange) string {
	return fmt.Sprintf("mining-%s_%s.xlsx", r.Start, r.End)
}

type styles struct {
	header, money, coin, difficulty, total int
}

func newStyles(f *excelize.File) (styles, error) {
	moneyFmt := "#,##0.00"
	coinFmt := "0.00000000"
	diffFmt := "#,##0"

	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, err
	}
	if st.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt}); err != nil {
		return st, err
	}
	if st.coin, err = f.NewStyle(&excelize.Style{CustomNumFmt: &coinFmt}); err != nil {
		return st, err
	}
	if st.difficulty, err = f.NewStyle(&excelize.Style{CustomNumFmt: &diffFmt}); err != nil {
		return st, err
	}
	if st.total, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt}); err != nil {
		return st, err
	}
	return st, nil
}

// column is one per-miner sheet column: a header, a style and how to read a
// record and the footer
type column struct {
	header string
	style  int
	cell   func(profit.DailyRevenueRecord) any
	footer func(profit.Totals) any
}

func minerColumns(coins []mining.Coin, st styles) []column {
	cols := []column{{
		header: "Date",
		cell:   func(r profit.DailyRevenueRecord) any { return r.Date },
		footer: func(profit.Totals) any { return "Total" },
	}}
	for _, c := range coins {
		c := c
		cols = append(cols, column{
			header: string(c) + " Price",
			style:  st.money,
			cell:   func(r profit.DailyRevenueRecord) any { return r.Prices[c] },
			footer: func(t profit.Totals) any { return t.AvgPrices[c] },
		})
	}
	for _, c := range coins {
		c := c
		cols = append(cols, column{
			header: string(c) + " Difficulty",
			style:  st.difficulty,
			cell:   func(r profit.DailyRevenueRecord) any { return r.Difficulties[c] },
			footer: func(t profit.Totals) any { return t.AvgDifficulties[c] },
		})
	}
	for _, c := range coins {
		c := c
		cols = append(cols, column{
			header: string(c) + " Output",
			style:  st.coin,
			cell:   func(r profit.DailyRevenueRecord) any { return r.CoinOutputs[c] },
			footer: func(t profit.Totals) any { return t.CoinOutputs[c] },
		})
	}
	usd := []struct {
		header string
		cell   func(profit.DailyRevenueRecord) float64
		footer func(profit.Totals) float64
	}{
		{"Revenue", func(r profit.DailyRevenueRecord) float64 { return r.Revenue }, func(t profit.Totals) float64 { return t.Revenue }},
		{"Electricity", func(r profit.DailyRevenueRecord) float64 { return r.ElectricityCost }, func(t profit.Totals) float64 { return t.ElectricityCost }},
		{"Mgmt Fee", func(r profit.DailyRevenueRecord) float64 { return r.ManagementFee }, func(t profit.Totals) float64 { return t.ManagementFee }},
		{"Profit", func(r profit.DailyRevenueRecord) float64 { return r.Profit }, func(t profit.Totals) float64 { return t.Profit }},
	}
	for _, u := range usd {
		u := u
		cols = append(cols, column{
			header: u.header,
			style:  st.money,
			cell:   func(r profit.DailyRevenueRecord) any { return u.cell(r) },
			footer: func(t profit.Totals) any { return u.footer(t) },
		})
	}
	return cols
}

// WriteWorkbook renders res as a summary sheet plus one sheet per miner
func WriteWorkbook(w io.Writer, res profit.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := writeSummary(f, res, st); err != nil {
		return err
	}

	names := newSheetNames(SummarySheet)
	for _, mr := range res.Miners {
		sheet := names.add(mr.Miner.Name)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
		}
		if err := writeMiner(f, sheet, mr, st); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, res profit.Result, st styles) error {
	header := []any{"Date"}
	for _, mr := range res.Miners {
		header = append(header, mr.Miner.Name)
	}
	header = append(header, "Total")
	last := len(header)

	if err := setRow(f, SummarySheet, 1, header); err != nil {
		return err
	}
	if err := styleRow(f, SummarySheet, 1, 1, last, st.header); err != nil {
		return err
	}

	row := 2
	for _, fr := range res.Summary.Rows {
		values := []any{fr.Date}
		for _, mr := range res.Miners {
			values = append(values, fr.Profits[mr.Miner.ID])
		}
		values = append(values, fr.Total)
		if err := setRow(f, SummarySheet, row, values); err != nil {
			return err
		}
		row++
	}
	if row > 2 {
		if err := styleRange(f, SummarySheet, 2, 2, last, row-1, st.money); err != nil {
			return err
		}
	}

	footer := []any{"Total"}
	for _, mr := range res.Miners {
		footer = append(footer, mr.Totals.Profit)
	}
	footer = append(footer, res.Summary.Profit)
	if err := setRow(f, SummarySheet, row, footer); err != nil {
		return err
	}
	if err := styleRow(f, SummarySheet, row, 1, last, st.total); err != nil {
		return err
	}

	if res.Condition != "" {
		if err := f.SetCellValue(SummarySheet, cellName(1, row+2), res.Condition); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", colName(last), 16)
}

func writeMiner(f *excelize.File, sheet string, mr profit.MinerResult, st styles) error {
	var coins []mining.Coin
	if p, err := mr.Miner.Profile(); err == nil {
		coins = p.Coins
	}
	cols := minerColumns(coins, st)

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := styleRow(f, sheet, 1, 1, len(cols), st.header); err != nil {
		return err
	}

	row := 2
	for _, rec := range mr.Records {
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = c.cell(rec)
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		row++
	}

	footer := make([]any, len(cols))
	for i, c := range cols {
		footer[i] = c.footer(mr.Totals)
	}
	if err := setRow(f, sheet, row, footer); err != nil {
		return err
	}

	for i, c := range cols {
		if c.style == 0 {
			continue
		}
		if err := styleRange(f, sheet, i+1, 2, i+1, row, c.style); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, cellName(1, row), cellName(1, row), st.header); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", colName(len(cols)), 16)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	if err := f.SetSheetRow(sheet, cellName(1, row), &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, from, to, style int) error {
	return styleRange(f, sheet, from, row, to, row, style)
}

func styleRange(f *excelize.File, sheet string, col1, row1, col2, row2, style int) error {
	return f.SetCellStyle(sheet, cellName(col1, row1), cellName(col2, row2), style)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func colName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

// sheetNames hands out unique, Excel-safe sheet names
type sheetNames struct {
	used map[string]bool
}

func newSheetNames(reserved ...string) *sheetNames {
	n := &sheetNames{used: make(map[string]bool)}
	for _, r := range reserved {
		n.used[strings.ToLower(r)] = true
	}
	return n
}

func (n *sheetNames) add(name string) string {
	base := SanitizeSheetName(name)
	candidate := base
	for i := 2; n.used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	n.used[strings.ToLower(candidate)] = true
	return candidate
}

// SanitizeSheetName strips characters Excel forbids and truncates to 31 runes
func SanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, name)
	cleaned = strings.Trim(strings.TrimSpace(cleaned), "'")
	if cleaned == "" {
		cleaned = "Miner"
	}
	return truncateRunes(cleaned, maxSheetName)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
