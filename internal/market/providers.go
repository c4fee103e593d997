package market

import (
	"context"
	"time"

	"github.com/camarigor/miner-profit/internal/mining"
)

// Endpoints locates the upstream providers and bounds each request
type Endpoints struct {
	CoinGeckoURL       string
	CoinGeckoAPIKey    string
	BinanceURL         string
	BlockchainInfoURL  string
	BlockchainChartURL string
	BlockchairURL      string
	SnapshotTimeout    time.Duration
	HistoryTimeout     time.Duration
}

// splitDifficulty serves snapshots and history from differently configured sources
type splitDifficulty struct {
	current DifficultySource
	history DifficultySource
}

func (s splitDifficulty) CurrentDifficulty(ctx context.Context, coin mining.Coin) (float64, error) {
	return s.current.CurrentDifficulty(ctx, coin)
}

func (s splitDifficulty) HistoricalDifficulty(ctx context.Context, coin mining.Coin, start, end string) ([]DifficultyPoint, error) {
	return s.history.HistoricalDifficulty(ctx, coin, start, end)
}

// NewProviders wires the production adapters: CoinGecko prices with a Binance
// fallback for the live quote, blockchain.info for BTC difficulty and
// Blockchair for LTC and DOGE.
func NewProviders(e Endpoints, now Clock) Providers {
	if e.SnapshotTimeout <= 0 {
		e.SnapshotTimeout = 10 * time.Second
	}
	if e.HistoryTimeout <= 0 {
		e.HistoryTimeout = 15 * time.Second
	}

	route := func(timeout time.Duration) DifficultyRouter {
		chair := NewBlockchair(e.BlockchairURL, timeout, now)
		return DifficultyRouter{
			mining.BTC:  NewBlockchainInfo(e.BlockchainInfoURL, e.BlockchainChartURL, timeout, now),
			mining.LTC:  chair,
			mining.DOGE: chair,
		}
	}

	return Providers{
		Prices: FallbackQuoter{
			NewCoinGecko(e.CoinGeckoURL, e.CoinGeckoAPIKey, e.SnapshotTimeout),
			NewBinance(e.BinanceURL, e.SnapshotTimeout),
		},
		History: NewCoinGecko(e.CoinGeckoURL, e.CoinGeckoAPIKey, e.HistoryTimeout),
		Difficulty: splitDifficulty{
			current: route(e.SnapshotTimeout),
			history: route(e.HistoryTimeout),
		},
	}
}
