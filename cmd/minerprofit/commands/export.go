package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camarigor/miner-profit/internal/export"
	"github.com/camarigor/miner-profit/internal/profit"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the report as an Excel workbook",
	Long: `Compute the report for a range and write a workbook with a summary sheet
and one sheet per miner. The default file name is mining-{start}_{end}.xlsx.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addRangeFlags(exportCmd)
	exportCmd.Flags().String("out", "", "output file (default mining-{start}_{end}.xlsx)")
}

func runExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

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
	if res.Unavailable {
		a.logger.Warn("exporting without market data", zap.String("condition", res.Condition))
	}

	if out == "" {
		out = export.FileName(res.Range)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := export.WriteWorkbook(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d miners, %d days)\n", out, len(res.Miners), len(res.Days))
	return nil
}
