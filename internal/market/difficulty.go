package market

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/camarigor/miner-profit/internal/mining"
)

// DifficultySource returns network difficulty for a coin
type DifficultySource interface {
	CurrentDifficulty(ctx context.Context, coin mining.Coin) (float64, error)
	// HistoricalDifficulty returns one point per calendar day of [start, end]
	// that the upstream has data for, sorted by date.
	HistoricalDifficulty(ctx context.Context, coin mining.Coin, start, end string) ([]DifficultyPoint, error)
}

// historyBufferDays widens the BTC chart query so the adjustment preceding
// start is included.
const historyBufferDays = 20

// BlockchainInfo reads BTC difficulty from blockchain.info. Its chart API only
// reports a point per difficulty adjustment (~2 weeks), so history is
// forward-filled to daily values.
type BlockchainInfo struct {
	queryURL  string
	chartsURL string
	now       Clock
	fetch     *fetcher
}

// NewBlockchainInfo creates the BTC difficulty adapter
func NewBlockchainInfo(queryURL, chartsURL string, timeout time.Duration, now Clock) *BlockchainInfo {
	if now == nil {
		now = time.Now
	}
	return &BlockchainInfo{
		queryURL:  strings.TrimRight(queryURL, "/"),
		chartsURL: strings.TrimRight(chartsURL, "/"),
		now:       now,
		fetch:     newFetcher("blockchain.info", timeout, nil),
	}
}

// CurrentDifficulty reads the plain-text getdifficulty endpoint
func (b *BlockchainInfo) CurrentDifficulty(ctx context.Context, coin mining.Coin) (float64, error) {
	if coin != mining.BTC {
		return 0, fmt.Errorf("%w: blockchain.info serves BTC only, got %s", ErrUnsupportedCoin, coin)
	}
	body, err := b.fetch.get(ctx, b.queryURL+"/q/getdifficulty")
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(body))
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || !positive(v) {
		return 0, fmt.Errorf("%w: invalid BTC difficulty %q", ErrUnexpectedPayload, text)
	}
	return v, nil
}

type chartResponse struct {
	Values *[]struct {
		X int64   `json:"x"`
		Y float64 `json:"y"`
	} `json:"values"`
}

// HistoricalDifficulty fetches adjustment events and forward-fills [start, end]
func (b *BlockchainInfo) HistoricalDifficulty(ctx context.Context, coin mining.Coin, start, end string) ([]DifficultyPoint, error) {
	if coin != mining.BTC {
		return nil, fmt.Errorf("%w: blockchain.info serves BTC only, got %s", ErrUnsupportedCoin, coin)
	}
	span, err := mining.DaysSince(start, mining.DayKey(b.now()))
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/charts/difficulty?timespan=%ddays&format=json", b.chartsURL, span+historyBufferDays)
	var data chartResponse
	if err := b.fetch.getJSON(ctx, u, &data); err != nil {
		return nil, err
	}
	if data.Values == nil {
		return nil, fmt.Errorf("%w: BTC difficulty history has no values array", ErrUnexpectedPayload)
	}

	events := make([]DifficultyPoint, 0, len(*data.Values))
	for _, v := range *data.Values {
		if !positive(v.Y) {
			continue
		}
		events = append(events, DifficultyPoint{
			Date:       mining.DayKey(time.Unix(v.X, 0)),
			Difficulty: v.Y,
		})
	}
	return ForwardFill(events, start, end)
}

// Blockchair reads LTC and DOGE daily average difficulty. Both coins retarget
// every block, so the per-day average is already daily granular.
type Blockchair struct {
	baseURL string
	now     Clock
	fetch   *fetcher
}

var blockchairChains = map[mining.Coin]string{
	mining.LTC:  "litecoin",
	mining.DOGE: "dogecoin",
}

// NewBlockchair creates the LTC/DOGE difficulty adapter
func NewBlockchair(baseURL string, timeout time.Duration, now Clock) *Blockchair {
	if now == nil {
		now = time.Now
	}
	return &Blockchair{
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     now,
		fetch:   newFetcher("Blockchair", timeout, nil),
	}
}

type blockchairResponse struct {
	Data *[]struct {
		Date          string   `json:"date"`
		AvgDifficulty *float64 `json:"avg(difficulty)"`
	} `json:"data"`
}

func (b *Blockchair) dailyAverages(ctx context.Context, coin mining.Coin, start, end string) ([]DifficultyPoint, error) {
	chain, ok := blockchairChains[coin]
	if !ok {
		return nil, fmt.Errorf("%w: Blockchair serves LTC and DOGE, got %s", ErrUnsupportedCoin, coin)
	}

	q := url.Values{}
	q.Set("a", "date,avg(difficulty)")
	q.Set("q", fmt.Sprintf("time(%s..%s)", start, end))
	u := fmt.Sprintf("%s/%s/blocks?%s", b.baseURL, chain, q.Encode())

	var data blockchairResponse
	if err := b.fetch.getJSON(ctx, u, &data); err != nil {
		return nil, err
	}
	if data.Data == nil {
		return nil, fmt.Errorf("%w: %s difficulty history has no data array", ErrUnexpectedPayload, coin)
	}

	points := make([]DifficultyPoint, 0, len(*data.Data))
	for _, row := range *data.Data {
		if _, err := mining.ParseDay(row.Date); err != nil {
			return nil, fmt.Errorf("%w: %s row date: %v", ErrUnexpectedPayload, coin, err)
		}
		if row.AvgDifficulty == nil || !positive(*row.AvgDifficulty) {
			return nil, fmt.Errorf("%w: %s row %s has no avg(difficulty)", ErrUnexpectedPayload, coin, row.Date)
		}
		points = append(points, DifficultyPoint{Date: row.Date, Difficulty: *row.AvgDifficulty})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// CurrentDifficulty returns yesterday's (UTC) daily average, the most recent complete day
func (b *Blockchair) CurrentDifficulty(ctx context.Context, coin mining.Coin) (float64, error) {
	yesterday := mining.DayKey(b.now().AddDate(0, 0, -1))
	points, err := b.dailyAverages(ctx, coin, yesterday, yesterday)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("%w: no %s difficulty data for %s", ErrUnexpectedPayload, coin, yesterday)
	}
	return points[0].Difficulty, nil
}

// HistoricalDifficulty returns daily averages for [start, end]
func (b *Blockchair) HistoricalDifficulty(ctx context.Context, coin mining.Coin, start, end string) ([]DifficultyPoint, error) {
	return b.dailyAverages(ctx, coin, start, end)
}

// DifficultyRouter dispatches each coin to the source that serves it
type DifficultyRouter map[mining.Coin]DifficultySource

func (r DifficultyRouter) source(coin mining.Coin) (DifficultySource, error) {
	s, ok := r[coin]
	if !ok {
		return nil, fmt.Errorf("%w: no difficulty source for %s", ErrUnsupportedCoin, coin)
	}
	return s, nil
}

// CurrentDifficulty implements DifficultySource
func (r DifficultyRouter) CurrentDifficulty(ctx context.Context, coin mining.Coin) (float64, error) {
	s, err := r.source(coin)
	if err != nil {
		return 0, err
	}
	return s.CurrentDifficulty(ctx, coin)
}

// HistoricalDifficulty implements DifficultySource
func (r DifficultyRouter) HistoricalDifficulty(ctx context.Context, coin mining.Coin, start, end string) ([]DifficultyPoint, error) {
	s, err := r.source(coin)
	if err != nil {
		return nil, err
	}
	return s.HistoricalDifficulty(ctx, coin, start, end)
}
