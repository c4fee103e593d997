package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camarigor/miner-profit/internal/config"
	"github.com/camarigor/miner-profit/internal/logging"
	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/storage"
)

const Version = "1.0.0"

var (
	cfgFile string
	dbPath  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "minerprofit",
	Short: "Mining profitability dashboard",
	Long: `minerprofit tracks a fleet of SHA-256 and Scrypt miners against live and
historical BTC, LTC and DOGE market data and reports daily coin output,
revenue, electricity cost, management fees and net profit.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.json", "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
}

// app bundles the components every subcommand shares
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *storage.SQLiteStorage
	market   *market.Service
	registry *prometheus.Registry
}

// newApp loads config, builds the logger, opens the store and wires the
// market data service.
func newApp() (*app, error) {
	cfg, found, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if !found {
		logger.Info("config file not found, using defaults", zap.String("path", cfgFile))
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Debug("database initialized", zap.String("path", cfg.DBPath))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := cfg.Market
	opts := market.DefaultOptions()
	opts.CurrentPriceTTL = m.CurrentPriceTTL
	opts.CurrentDifficultyTTL = m.CurrentDifficultyTTL
	opts.PriceHistoryTTL = m.PriceHistoryTTL
	opts.DifficultyHistoryTTL = m.DifficultyHistoryTTL
	opts.MaxHistoryDays = m.MaxHistoryDays

	providers := market.NewProviders(market.Endpoints{
		CoinGeckoURL:       m.CoinGeckoURL,
		CoinGeckoAPIKey:    m.CoinGeckoAPIKey,
		BinanceURL:         m.BinanceURL,
		BlockchainInfoURL:  m.BlockchainInfoURL,
		BlockchainChartURL: m.BlockchainChartURL,
		BlockchairURL:      m.BlockchairURL,
		SnapshotTimeout:    m.SnapshotTimeout,
		HistoryTimeout:     m.HistoryTimeout,
	}, opts.Now)
	svc := market.NewService(providers, opts, logger.Named("market"), market.NewMetrics(registry))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		market:   svc,
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
