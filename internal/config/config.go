package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// MarketConfig defines upstream providers, request deadlines and cache lifetimes
type MarketConfig struct {
	CoinGeckoURL       string `json:"coingecko_url"`
	CoinGeckoAPIKey    string `json:"coingecko_api_key,omitempty"`
	BinanceURL         string `json:"binance_url"`
	BlockchainInfoURL  string `json:"blockchain_info_url"`  // plain-text query API
	BlockchainChartURL string `json:"blockchain_chart_url"` // charts API
	BlockchairURL      string `json:"blockchair_url"`

	SnapshotTimeout time.Duration `json:"snapshot_timeout"` // current price / difficulty
	HistoryTimeout  time.Duration `json:"history_timeout"`  // historical series

	CurrentPriceTTL      time.Duration `json:"current_price_ttl"`
	CurrentDifficultyTTL time.Duration `json:"current_difficulty_ttl"`
	PriceHistoryTTL      time.Duration `json:"price_history_ttl"`
	DifficultyHistoryTTL time.Duration `json:"difficulty_history_ttl"`
	MaxHistoryDays       int           `json:"max_history_days"`
}

// Config is the main configuration structure
type Config struct {
	Server    ServerConfig `json:"server"`
	Market    MarketConfig `json:"market"`
	DBPath    string       `json:"db_path"`
	LogLevel  string       `json:"log_level"`
	LogFormat string       `json:"log_format"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Market: MarketConfig{
			CoinGeckoURL:         "https://api.coingecko.com/api/v3",
			BinanceURL:           "https://api.binance.com",
			BlockchainInfoURL:    "https://blockchain.info",
			BlockchainChartURL:   "https://api.blockchain.info",
			BlockchairURL:        "https://api.blockchair.com",
			SnapshotTimeout:      10 * time.Second,
			HistoryTimeout:       15 * time.Second,
			CurrentPriceTTL:      5 * time.Minute,
			CurrentDifficultyTTL: time.Hour,
			PriceHistoryTTL:      time.Hour,
			DifficultyHistoryTTL: time.Hour,
			MaxHistoryDays:       365,
		},
		DBPath:    "minerprofit.db",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads configuration from a JSON file over the defaults. A missing
// file is not an error here; callers check os.IsNotExist when they care.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes configuration to a JSON file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv loads a .env file if present and lets environment variables
// override file values.
func (c *Config) ApplyEnv() {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	if v := os.Getenv("MINERPROFIT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MINERPROFIT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("MINERPROFIT_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("MINERPROFIT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MINERPROFIT_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.Market.CoinGeckoAPIKey = v
	}
	if v := os.Getenv("MINERPROFIT_HISTORY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Market.HistoryTimeout = d
		}
	}
	if v := os.Getenv("MINERPROFIT_SNAPSHOT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Market.SnapshotTimeout = d
		}
	}
}

// LoadOrDefault reads path when it exists, falls back to defaults when it
// does not, then applies environment overrides.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	found := true
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, false, err
		}
		cfg = DefaultConfig()
		found = false
	}
	cfg.ApplyEnv()
	return cfg, found, nil
}
