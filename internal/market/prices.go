package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camarigor/miner-profit/internal/mining"
)

// PriceQuoter returns the live USD price of a coin
type PriceQuoter interface {
	CurrentPrice(ctx context.Context, coin mining.Coin) (float64, error)
}

// PriceHistorian returns daily USD closes for the last days days
type PriceHistorian interface {
	HistoricalPrices(ctx context.Context, coin mining.Coin, days int) ([]PricePoint, error)
}

var coinGeckoIDs = map[mining.Coin]string{
	mining.BTC:  "bitcoin",
	mining.LTC:  "litecoin",
	mining.DOGE: "dogecoin",
}

var binanceSymbols = map[mining.Coin]string{
	mining.BTC:  "BTCUSDT",
	mining.LTC:  "LTCUSDT",
	mining.DOGE: "DOGEUSDT",
}

// CoinGecko fetches current and historical prices from the CoinGecko v3 API
type CoinGecko struct {
	baseURL string
	fetch   *fetcher
}

// NewCoinGecko creates a CoinGecko adapter. apiKey may be empty.
func NewCoinGecko(baseURL, apiKey string, timeout time.Duration) *CoinGecko {
	headers := map[string]string{}
	if apiKey != "" {
		headers["x-cg-demo-api-key"] = apiKey
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   newFetcher("CoinGecko", timeout, headers),
	}
}

// CurrentPrice fetches the simple/price quote for one coin
func (c *CoinGecko) CurrentPrice(ctx context.Context, coin mining.Coin) (float64, error) {
	id, ok := coinGeckoIDs[coin]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCoin, coin)
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(id))
	var data map[string]map[string]float64
	if err := c.fetch.getJSON(ctx, u, &data); err != nil {
		return 0, err
	}

	price, ok := data[id]["usd"]
	if !ok {
		return 0, fmt.Errorf("%w: price not found in CoinGecko response for %s", ErrUnexpectedPayload, id)
	}
	if !positive(price) {
		return 0, fmt.Errorf("%w: CoinGecko price %v for %s", ErrUnexpectedPayload, price, id)
	}
	return price, nil
}

// HistoricalPrices fetches OHLC candles and keeps the last close of each UTC day
func (c *CoinGecko) HistoricalPrices(ctx context.Context, coin mining.Coin, days int) ([]PricePoint, error) {
	id, ok := coinGeckoIDs[coin]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCoin, coin)
	}
	if days < 1 {
		days = 1
	}

	u := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%d", c.baseURL, url.PathEscape(id), days)
	var candles [][]float64
	if err := c.fetch.getJSON(ctx, u, &candles); err != nil {
		return nil, err
	}
	return closesByDay(candles)
}

// closesByDay turns [ts_ms, open, high, low, close] rows into one close per date
func closesByDay(candles [][]float64) ([]PricePoint, error) {
	type candle struct {
		ts    int64
		close float64
	}
	rows := make([]candle, 0, len(candles))
	for i, row := range candles {
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: OHLC row %d has %d fields", ErrUnexpectedPayload, i, len(row))
		}
		if !positive(row[0]) || !positive(row[4]) {
			return nil, fmt.Errorf("%w: OHLC row %d has invalid values", ErrUnexpectedPayload, i)
		}
		rows = append(rows, candle{ts: int64(row[0]), close: row[4]})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts < rows[j].ts })

	byDay := make(map[string]float64, len(rows))
	for _, r := range rows {
		byDay[mining.DayKey(time.UnixMilli(r.ts))] = r.close
	}

	out := make([]PricePoint, 0, len(byDay))
	for d, p := range byDay {
		out = append(out, PricePoint{Date: d, Price: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Binance fetches spot ticker prices against USDT
type Binance struct {
	baseURL string
	fetch   *fetcher
}

// NewBinance creates a Binance ticker adapter
func NewBinance(baseURL string, timeout time.Duration) *Binance {
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   newFetcher("Binance", timeout, nil),
	}
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// CurrentPrice fetches the ticker price for one coin
func (b *Binance) CurrentPrice(ctx context.Context, coin mining.Coin) (float64, error) {
	symbol, ok := binanceSymbols[coin]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCoin, coin)
	}

	var data binanceTicker
	if err := b.fetch.getJSON(ctx, fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", b.baseURL, symbol), &data); err != nil {
		return 0, err
	}

	d, err := decimal.NewFromString(data.Price)
	if err != nil {
		return 0, fmt.Errorf("%w: Binance price %q: %v", ErrUnexpectedPayload, data.Price, err)
	}
	price, _ := d.Float64()
	if !positive(price) {
		return 0, fmt.Errorf("%w: Binance price %q for %s", ErrUnexpectedPayload, data.Price, symbol)
	}
	return price, nil
}

// FallbackQuoter asks each quoter in order until one returns a price
type FallbackQuoter []PriceQuoter

// CurrentPrice returns the first successful quote, or all errors joined
func (q FallbackQuoter) CurrentPrice(ctx context.Context, coin mining.Coin) (float64, error) {
	var errs []error
	for _, quoter := range q {
		price, err := quoter.CurrentPrice(ctx, coin)
		if err == nil {
			return price, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return 0, fmt.Errorf("no price source configured for %s", coin)
	}
	return 0, errors.Join(errs...)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
