package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/camarigor/miner-profit/internal/config"
	"github.com/camarigor/miner-profit/internal/market"
	"github.com/camarigor/miner-profit/internal/mining"
	"github.com/camarigor/miner-profit/internal/profit"
	"github.com/camarigor/miner-profit/internal/storage"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

// fakeMarket serves a fixed bundle: live BTC price, two days of history.
type fakeMarket struct {
	empty bool
}

func (f *fakeMarket) Today() string { return mining.DayKey(testNow) }

func (f *fakeMarket) Refresh(_ context.Context, r mining.DateRange) (market.Bundle, error) {
	r = r.Clamp(f.Today())
	if err := r.Validate(); err != nil {
		return market.Bundle{}, err
	}
	b := market.NewBundle(r)
	if f.empty {
		b.Sources = []market.SourceStatus{{Kind: market.KindCurrentPrice, Coin: mining.BTC, State: market.StateUnavailable}}
		return b, nil
	}
	b.CurrentPrices[mining.BTC] = 96000
	b.CurrentPrices[mining.LTC] = 100
	b.CurrentPrices[mining.DOGE] = 0.25
	b.CurrentDifficulty[mining.BTC] = 114.17e12
	b.CurrentDifficulty[mining.LTC] = 40e6
	b.CurrentDifficulty[mining.DOGE] = 20e6
	b.PriceHistory[mining.BTC] = []market.PricePoint{{Date: "2025-03-09", Price: 95000}}
	b.Sources = []market.SourceStatus{
		{Kind: market.KindCurrentPrice, Coin: mining.BTC, State: market.StateFresh},
		{Kind: market.KindPriceHistory, Coin: mining.LTC, State: market.StateStale, Error: "timeout"},
	}
	return b, nil
}

// failingStore fails every write
type failingStore struct{}

func (failingStore) LoadMiners(context.Context) ([]mining.MinerSpec, error) {
	return mining.DefaultMiners(), nil
}

func (failingStore) Fleet(context.Context) (storage.Fleet, error) {
	return storage.Fleet{Miners: mining.DefaultMiners()}, nil
}

func (failingStore) SaveMiners(context.Context, []mining.MinerSpec) ([]mining.MinerSpec, error) {
	return nil, errors.New("disk full")
}

func newTestServer(t *testing.T, md MarketData) (*Server, http.Handler) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if md == nil {
		md = &fakeMarket{}
	}
	s := NewServer(config.DefaultConfig(), store, md, prometheus.NewRegistry(), nil)
	s.now = func() time.Time { return testNow }
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestConfigEndpoints(t *testing.T) {
	_, h := newTestServer(t, nil)

	t.Run("GetSeedsDefaults", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/config", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got ConfigPayload
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if len(got.Miners) != 6 {
			t.Errorf("got %d miners, want 6 defaults", len(got.Miners))
		}
		if got.SavedAt != nil {
			t.Error("savedAt should be empty before the first save")
		}
	})

	t.Run("PutReplacesList", func(t *testing.T) {
		body := `{"miners":[{"name":"L7","algorithm":"scrypt","hashrate":9.5,"power":3425,"quantity":4,"electricityRate":0.07}]}`
		rec := do(t, h, http.MethodPut, "/api/config", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
		}
		var saved ConfigPayload
		if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
			t.Fatal(err)
		}
		if len(saved.Miners) != 1 {
			t.Fatalf("saved %d miners", len(saved.Miners))
		}
		m := saved.Miners[0]
		if m.ID == "" || m.HashrateUnit != mining.GigaHash || len(m.Coins) != 2 {
			t.Errorf("derived fields not filled: %+v", m)
		}
		if m.ManagementFeeRate != mining.DefaultManagementFeeRate {
			t.Errorf("management fee = %v, want default", m.ManagementFeeRate)
		}

		rec = do(t, h, http.MethodGet, "/api/config", "")
		var got ConfigPayload
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if len(got.Miners) != 1 || got.SavedAt == nil {
			t.Errorf("after save: %d miners, savedAt %v", len(got.Miners), got.SavedAt)
		}
	})

	t.Run("PutEmptyListStaysEmpty", func(t *testing.T) {
		if rec := do(t, h, http.MethodPut, "/api/config", `{"miners":[]}`); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		rec := do(t, h, http.MethodGet, "/api/config", "")
		var got ConfigPayload
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if len(got.Miners) != 0 {
			t.Errorf("got %d miners, want 0", len(got.Miners))
		}
	})

	t.Run("PutRejectsBadInput", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"invalid json", `{"miners":`},
			{"missing miners", `{}`},
			{"zero quantity", `{"miners":[{"name":"x","algorithm":"sha256","quantity":0}]}`},
			{"unknown algorithm", `{"miners":[{"name":"x","algorithm":"ethash","quantity":1}]}`},
			{"duplicate id", `{"miners":[{"id":"a","name":"x","algorithm":"sha256","quantity":1},{"id":"a","name":"y","algorithm":"sha256","quantity":1}]}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if rec := do(t, h, http.MethodPut, "/api/config", tt.body); rec.Code != http.StatusBadRequest {
					t.Errorf("status = %d, want 400", rec.Code)
				}
			})
		}
	})
}

func TestPutConfigStoreFailure(t *testing.T) {
	s := NewServer(config.DefaultConfig(), failingStore{}, &fakeMarket{}, prometheus.NewRegistry(), nil)
	rec := do(t, s.Router(), http.MethodPut, "/api/config", `{"miners":[]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRevenueEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/revenue?start=2025-03-09&end=2025-03-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var res profit.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Range.End != "2025-03-10" || len(res.Days) != 2 {
		t.Errorf("range = %+v days = %v", res.Range, res.Days)
	}
	if len(res.Miners) != 6 {
		t.Fatalf("got %d miners", len(res.Miners))
	}
	if !res.Stale {
		t.Error("stale source should flag the result")
	}
	for _, mr := range res.Miners {
		tot := mr.Totals
		if tot.Profit != tot.Revenue-tot.ElectricityCost-tot.ManagementFee {
			t.Errorf("%s: profit identity violated", mr.Miner.ID)
		}
	}

	t.Run("Preset", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/revenue?preset=last-7", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var res profit.Result
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
		if res.Range.Start != "2025-03-04" || len(res.Days) != 7 {
			t.Errorf("range = %+v", res.Range)
		}
	})

	t.Run("BadRange", func(t *testing.T) {
		for _, q := range []string{"start=2025-03-10&end=2025-03-01", "start=nope&end=2025-03-01", "preset=fortnight", "preset=custom"} {
			if rec := do(t, h, http.MethodGet, "/api/revenue?"+q, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", q, rec.Code)
			}
		}
	})
}

func TestRevenueUnavailable(t *testing.T) {
	_, h := newTestServer(t, &fakeMarket{empty: true})
	rec := do(t, h, http.MethodGet, "/api/revenue?preset=this-month", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res profit.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Unavailable || res.Condition == "" || len(res.Miners) != 0 {
		t.Errorf("unavailable = %v condition = %q miners = %d", res.Unavailable, res.Condition, len(res.Miners))
	}
}

func TestMarketEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/market?preset=last-7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		CurrentPrices map[string]float64 `json:"currentPrices"`
		Stale         bool               `json:"stale"`
		Unavailable   bool               `json:"unavailable"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.CurrentPrices["BTC"] != 96000 {
		t.Errorf("BTC price = %v", got.CurrentPrices["BTC"])
	}
	if !got.Stale || got.Unavailable {
		t.Errorf("stale = %v unavailable = %v", got.Stale, got.Unavailable)
	}
}

func TestExportEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/export?start=2025-03-09&end=2025-03-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "mining-2025-03-09_2025-03-10.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip container")
	}
}

func TestMiscEndpoints(t *testing.T) {
	_, h := newTestServer(t, nil)

	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/coins", "")
	var coins CoinsResponse
	if err := json.NewDecoder(rec.Body).Decode(&coins); err != nil {
		t.Fatal(err)
	}
	if len(coins.Algorithms) != 2 || coins.BlockRewards[mining.BTC] != 3.125 {
		t.Errorf("coins = %+v", coins)
	}
}
