package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/camarigor/miner-profit/internal/mining"
)

func TestCoinGeckoCurrentPrice(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-cg-demo-api-key")
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("ids") {
		case "bitcoin":
			fmt.Fprint(w, `{"bitcoin":{"usd":96000.5}}`)
		case "litecoin":
			fmt.Fprint(w, `{"litecoin":{}}`)
		default:
			fmt.Fprint(w, `{"dogecoin":{"usd":-1}}`)
		}
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "demo-key", 5*time.Second)
	ctx := context.Background()

	price, err := cg.CurrentPrice(ctx, mining.BTC)
	if err != nil {
		t.Fatalf("CurrentPrice(BTC) error = %v", err)
	}
	if price != 96000.5 {
		t.Errorf("price = %v, want 96000.5", price)
	}
	if gotKey != "demo-key" {
		t.Errorf("api key header = %q, want demo-key", gotKey)
	}

	if _, err := cg.CurrentPrice(ctx, mining.LTC); !errors.Is(err, ErrUnexpectedPayload) {
		t.Errorf("missing usd: err = %v, want ErrUnexpectedPayload", err)
	}
	if _, err := cg.CurrentPrice(ctx, mining.DOGE); !errors.Is(err, ErrUnexpectedPayload) {
		t.Errorf("negative price: err = %v, want ErrUnexpectedPayload", err)
	}
	if _, err := cg.CurrentPrice(ctx, mining.Coin("ETH")); !errors.Is(err, ErrUnsupportedCoin) {
		t.Errorf("unknown coin: err = %v, want ErrUnsupportedCoin", err)
	}
}

func TestCoinGeckoHistoricalPrices(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	var gotDays string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/ohlc" {
			http.NotFound(w, r)
			return
		}
		gotDays = r.URL.Query().Get("days")
		// out of order, two candles on day2
		fmt.Fprintf(w, `[[%d,1,1,1,300],[%d,1,1,1,100],[%d,1,1,1,200]]`,
			day2.Add(20*time.Hour).UnixMilli(),
			day1.Add(4*time.Hour).UnixMilli(),
			day2.Add(4*time.Hour).UnixMilli(),
		)
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", 5*time.Second)
	points, err := cg.HistoricalPrices(context.Background(), mining.BTC, 10)
	if err != nil {
		t.Fatalf("HistoricalPrices() error = %v", err)
	}
	if gotDays != "10" {
		t.Errorf("days param = %q, want 10", gotDays)
	}

	want := []PricePoint{{"2025-03-01", 100}, {"2025-03-02", 300}}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d: %v", len(points), len(want), points)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestClosesByDayRejectsBadRows(t *testing.T) {
	tests := []struct {
		name    string
		candles [][]float64
	}{
		{"short row", [][]float64{{1700000000000, 1, 2, 3}}},
		{"zero close", [][]float64{{1700000000000, 1, 2, 3, 0}}},
		{"zero timestamp", [][]float64{{0, 1, 2, 3, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := closesByDay(tt.candles); !errors.Is(err, ErrUnexpectedPayload) {
				t.Errorf("err = %v, want ErrUnexpectedPayload", err)
			}
		})
	}
}

func TestBinanceCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "LTCUSDT":
			fmt.Fprint(w, `{"symbol":"LTCUSDT","price":"101.25000000"}`)
		case "DOGEUSDT":
			fmt.Fprint(w, `{"symbol":"DOGEUSDT","price":"abc"}`)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, 5*time.Second)
	ctx := context.Background()

	price, err := b.CurrentPrice(ctx, mining.LTC)
	if err != nil {
		t.Fatalf("CurrentPrice(LTC) error = %v", err)
	}
	if price != 101.25 {
		t.Errorf("price = %v, want 101.25", price)
	}
	if _, err := b.CurrentPrice(ctx, mining.DOGE); !errors.Is(err, ErrUnexpectedPayload) {
		t.Errorf("bad decimal: err = %v, want ErrUnexpectedPayload", err)
	}
	if _, err := b.CurrentPrice(ctx, mining.BTC); err == nil {
		t.Error("expected error for non-200 status")
	}
}

type quoteFunc func(ctx context.Context, coin mining.Coin) (float64, error)

func (f quoteFunc) CurrentPrice(ctx context.Context, coin mining.Coin) (float64, error) {
	return f(ctx, coin)
}

func TestFallbackQuoter(t *testing.T) {
	failing := quoteFunc(func(context.Context, mining.Coin) (float64, error) {
		return 0, errors.New("primary down")
	})
	working := quoteFunc(func(context.Context, mining.Coin) (float64, error) {
		return 42, nil
	})

	t.Run("uses secondary", func(t *testing.T) {
		price, err := FallbackQuoter{failing, working}.CurrentPrice(context.Background(), mining.BTC)
		if err != nil || price != 42 {
			t.Errorf("got %v, %v; want 42, nil", price, err)
		}
	})

	t.Run("joins errors", func(t *testing.T) {
		_, err := FallbackQuoter{failing, failing}.CurrentPrice(context.Background(), mining.BTC)
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := (FallbackQuoter{}).CurrentPrice(context.Background(), mining.BTC); err == nil {
			t.Error("expected error with no quoters")
		}
	})
}

func TestFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", 50*time.Millisecond)
	start := time.Now()
	if _, err := cg.CurrentPrice(context.Background(), mining.BTC); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("fetch did not honor deadline, took %v", time.Since(start))
	}
}
