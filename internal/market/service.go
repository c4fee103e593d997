package market

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camarigor/miner-profit/internal/mining"
)

// Providers are the upstream adapters a Service fetches from
type Providers struct {
	Prices     PriceQuoter
	History    PriceHistorian
	Difficulty DifficultySource
}

// Options controls cache lifetimes and history depth
type Options struct {
	CurrentPriceTTL      time.Duration
	CurrentDifficultyTTL time.Duration
	PriceHistoryTTL      time.Duration
	DifficultyHistoryTTL time.Duration
	MaxHistoryDays       int
	Now                  Clock
}

// DefaultOptions returns the standard TTLs
func DefaultOptions() Options {
	return Options{
		CurrentPriceTTL:      5 * time.Minute,
		CurrentDifficultyTTL: time.Hour,
		PriceHistoryTTL:      time.Hour,
		DifficultyHistoryTTL: time.Hour,
		MaxHistoryDays:       365,
		Now:                  time.Now,
	}
}

const liveQuery = "live"

// Service batches market data fetches for a date range and keeps
// process-lifetime caches per data kind and coin.
type Service struct {
	providers Providers
	maxDays   int
	now       Clock
	logger    *zap.Logger
	metrics   *Metrics

	currentPrices     *Cache[float64]
	currentDifficulty *Cache[float64]
	priceHistory      *Cache[[]PricePoint]
	difficultyHistory *Cache[[]DifficultyPoint]
}

// NewService creates a market data service
func NewService(p Providers, opts Options, logger *zap.Logger, metrics *Metrics) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxHistoryDays <= 0 {
		opts.MaxHistoryDays = 365
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		providers:         p,
		maxDays:           opts.MaxHistoryDays,
		now:               opts.Now,
		logger:            logger,
		metrics:           metrics,
		currentPrices:     NewCache[float64](opts.CurrentPriceTTL, opts.Now),
		currentDifficulty: NewCache[float64](opts.CurrentDifficultyTTL, opts.Now),
		priceHistory:      NewCache[[]PricePoint](opts.PriceHistoryTTL, opts.Now),
		difficultyHistory: NewCache[[]DifficultyPoint](opts.DifficultyHistoryTTL, opts.Now),
	}
}

// Today returns the service clock's UTC calendar date
func (s *Service) Today() string {
	return mining.DayKey(s.now())
}

// Refresh fetches every data kind for every coin concurrently and returns once
// all requests have settled. A failed slot falls back to its last cached value
// (stale) or to zero/empty (unavailable). Only an invalid range is an error.
func (s *Service) Refresh(ctx context.Context, r mining.DateRange) (Bundle, error) {
	today := s.Today()
	r = r.Clamp(today)
	if err := r.Validate(); err != nil {
		return Bundle{}, err
	}
	days, err := mining.DaysSince(r.Start, today)
	if err != nil {
		return Bundle{}, err
	}
	if days > s.maxDays {
		days = s.maxDays
	}

	bundle := NewBundle(r)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(st SourceStatus, apply func()) {
		mu.Lock()
		defer mu.Unlock()
		apply()
		bundle.Sources = append(bundle.Sources, st)
	}

	historyQuery := strconv.Itoa(days)
	rangeQuery := r.Start + "|" + r.End

	for _, coin := range mining.AllCoins {
		coin := coin
		wg.Add(4)
		go func() {
			defer wg.Done()
			v, st := resolve(ctx, s, KindCurrentPrice, coin, s.currentPrices, liveQuery,
				func(ctx context.Context) (float64, error) {
					return s.providers.Prices.CurrentPrice(ctx, coin)
				})
			record(st, func() { bundle.CurrentPrices[coin] = v })
		}()
		go func() {
			defer wg.Done()
			v, st := resolve(ctx, s, KindCurrentDifficulty, coin, s.currentDifficulty, liveQuery,
				func(ctx context.Context) (float64, error) {
					return s.providers.Difficulty.CurrentDifficulty(ctx, coin)
				})
			record(st, func() { bundle.CurrentDifficulty[coin] = v })
		}()
		go func() {
			defer wg.Done()
			v, st := resolve(ctx, s, KindPriceHistory, coin, s.priceHistory, historyQuery,
				func(ctx context.Context) ([]PricePoint, error) {
					return s.providers.History.HistoricalPrices(ctx, coin, days)
				})
			record(st, func() { bundle.PriceHistory[coin] = v })
		}()
		go func() {
			defer wg.Done()
			v, st := resolve(ctx, s, KindDifficultyHistory, coin, s.difficultyHistory, rangeQuery,
				func(ctx context.Context) ([]DifficultyPoint, error) {
					return s.providers.Difficulty.HistoricalDifficulty(ctx, coin, r.Start, r.End)
				})
			record(st, func() { bundle.DifficultyHistory[coin] = v })
		}()
	}
	wg.Wait()

	sort.Slice(bundle.Sources, func(i, j int) bool {
		a, b := bundle.Sources[i], bundle.Sources[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Coin < b.Coin
	})
	bundle.RefreshedAt = s.now()
	s.metrics.refreshed(bundle.RefreshedAt)

	counts := map[State]int{}
	for _, st := range bundle.Sources {
		counts[st.State]++
	}
	s.logger.Info("market refresh complete",
		zap.String("start", r.Start),
		zap.String("end", r.End),
		zap.Int("fresh", counts[StateFresh]),
		zap.Int("cached", counts[StateCached]),
		zap.Int("stale", counts[StateStale]),
		zap.Int("unavailable", counts[StateUnavailable]),
	)
	return bundle, nil
}

// resolve serves one (kind, coin) slot: in-TTL cache first, then upstream,
// then the last good entry.
func resolve[T any](ctx context.Context, s *Service, kind Kind, coin mining.Coin, cache *Cache[T], query string, fetch func(context.Context) (T, error)) (T, SourceStatus) {
	slot := string(coin)
	st := SourceStatus{Kind: kind, Coin: coin}

	if e, ok := cache.Fresh(slot, query); ok {
		s.metrics.cacheHit(kind)
		s.logger.Debug("market cache hit", zap.String("kind", string(kind)), zap.String("coin", slot))
		st.State = StateCached
		st.FetchedAt = e.FetchedAt
		return e.Value, st
	}

	began := s.now()
	v, err := fetch(ctx)
	s.metrics.observeFetch(kind, coin, err == nil, s.now().Sub(began))
	if err == nil {
		e := cache.Put(slot, query, v)
		st.State = StateFresh
		st.FetchedAt = e.FetchedAt
		return v, st
	}

	s.logger.Warn("market fetch failed",
		zap.String("kind", string(kind)),
		zap.String("coin", slot),
		zap.Error(err),
	)
	st.Error = err.Error()
	if e, ok := cache.Last(slot); ok {
		st.State = StateStale
		st.FetchedAt = e.FetchedAt
		return e.Value, st
	}
	st.State = StateUnavailable
	var zero T
	return zero, st
}
