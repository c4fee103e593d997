package market

import (
	"errors"
	"time"

	"github.com/camarigor/miner-profit/internal/mining"
)

var (
	ErrUnexpectedPayload = errors.New("unexpected upstream payload")
	ErrUnsupportedCoin   = errors.New("unsupported coin")
)

// PricePoint is one daily close in USD
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// DifficultyPoint is one difficulty value on a calendar day. For BTC raw
// history it marks an adjustment event rather than a daily sample.
type DifficultyPoint struct {
	Date       string  `json:"date"`
	Difficulty float64 `json:"difficulty"`
}

// Kind names a cacheable data kind
type Kind string

const (
	KindCurrentPrice      Kind = "current_price"
	KindCurrentDifficulty Kind = "current_difficulty"
	KindPriceHistory      Kind = "price_history"
	KindDifficultyHistory Kind = "difficulty_history"
)

// State describes where a bundle value came from
type State string

const (
	StateFresh       State = "fresh"       // fetched during this refresh
	StateCached      State = "cached"      // served from a cache entry still within TTL
	StateStale       State = "stale"       // fetch failed, last good entry reused
	StateUnavailable State = "unavailable" // fetch failed and nothing cached
)

// SourceStatus reports the outcome for one (kind, coin) slot of a refresh
type SourceStatus struct {
	Kind      Kind        `json:"kind"`
	Coin      mining.Coin `json:"coin"`
	State     State       `json:"state"`
	FetchedAt time.Time   `json:"fetchedAt,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Bundle is everything the reconciliation engine needs for one date range
type Bundle struct {
	Range             mining.DateRange                   `json:"range"`
	CurrentPrices     map[mining.Coin]float64           `json:"currentPrices"`
	CurrentDifficulty map[mining.Coin]float64           `json:"currentDifficulty"`
	PriceHistory      map[mining.Coin][]PricePoint      `json:"priceHistory"`
	DifficultyHistory map[mining.Coin][]DifficultyPoint `json:"difficultyHistory"`
	Sources           []SourceStatus                    `json:"sources"`
	RefreshedAt       time.Time                         `json:"refreshedAt"`
}

// NewBundle returns a bundle with all maps allocated
func NewBundle(r mining.DateRange) Bundle {
	return Bundle{
		Range:             r,
		CurrentPrices:     make(map[mining.Coin]float64),
		CurrentDifficulty: make(map[mining.Coin]float64),
		PriceHistory:      make(map[mining.Coin][]PricePoint),
		DifficultyHistory: make(map[mining.Coin][]DifficultyPoint),
	}
}

// Stale reports whether any slot was served from a failed refresh
func (b Bundle) Stale() bool {
	for _, s := range b.Sources {
		if s.State == StateStale || s.State == StateUnavailable {
			return true
		}
	}
	return false
}

// Unavailable reports whether the bundle carries no usable market data at all
func (b Bundle) Unavailable() bool {
	for _, v := range b.CurrentPrices {
		if v > 0 {
			return false
		}
	}
	for _, v := range b.CurrentDifficulty {
		if v > 0 {
			return false
		}
	}
	for _, pts := range b.PriceHistory {
		if len(pts) > 0 {
			return false
		}
	}
	for _, pts := range b.DifficultyHistory {
		if len(pts) > 0 {
			return false
		}
	}
	return true
}

// Degraded lists the slots that did not come from a fresh or in-TTL fetch
func (b Bundle) Degraded() []SourceStatus {
	var out []SourceStatus
	for _, s := range b.Sources {
		if s.State == StateStale || s.State == StateUnavailable {
			out = append(out, s)
		}
	}
	return out
}
