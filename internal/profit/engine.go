package profit

import (
	"context"
	"fmt"

	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
)

// MinerLoader supplies the configured fleet
type MinerLoader interface {
	LoadMiners(ctx context.Context) ([]mining.MinerSpec, error)
}

// BundleSource refreshes market data for a range
type BundleSource interface {
	Refresh(ctx context.Context, r mining.DateRange) (market.Bundle, error)
	Today() string
}

// Engine runs one full pass: load miners, refresh market data, compute
type Engine struct {
	miners MinerLoader
	market BundleSource
}

// NewEngine creates an engine over a miner store and market data source
func NewEngine(miners MinerLoader, src BundleSource) *Engine {
	return &Engine{miners: miners, market: src}
}

// Run computes r for the whole stored fleet. Market failures degrade the
// result; only an invalid range or a store read failure is an error.
func (e *Engine) Run(ctx context.Context, r mining.DateRange) (Result, error) {
	miners, err := e.miners.LoadMiners(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load miners: %w", err)
	}
	bundle, err := e.market.Refresh(ctx, r)
	if err != nil {
		return Result{}, err
	}
	return Compute(Input{
		Miners: miners,
		Range:  bundle.Range,
		Bundle: bundle,
		Today:  e.market.Today(),
	})
}
