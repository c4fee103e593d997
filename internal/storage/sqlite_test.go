package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camarigor/miner-profit/internal/mining"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "minerprofit-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		storage.Close()
		os.RemoveAll(tmpDir)
	}

	return storage, cleanup
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("SeedsDefaultFleet", func(t *testing.T) {
		storage, cleanup := setupTestDB(t)
		defer cleanup()

		miners, err := storage.LoadMiners(ctx)
		if err != nil {
			t.Fatalf("failed to load miners: %v", err)
		}
		want := mining.DefaultMiners()
		if len(miners) != len(want) {
			t.Fatalf("expected %d miners, got %d", len(want), len(miners))
		}
		for i := range want {
			if miners[i].ID != want[i].ID {
				t.Errorf("miner %d: expected id %s, got %s", i, want[i].ID, miners[i].ID)
			}
			if miners[i].ManagementFeeRate != mining.DefaultManagementFeeRate {
				t.Errorf("miner %d: expected default fee, got %v", i, miners[i].ManagementFeeRate)
			}
		}

		fleet, err := storage.Fleet(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !fleet.SavedAt.IsZero() {
			t.Error("seeding should not count as a user save")
		}
	})

	t.Run("SaveAndLoadRoundTrip", func(t *testing.T) {
		storage, cleanup := setupTestDB(t)
		defer cleanup()
		storage.now = func() time.Time { return time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC) }

		input := []mining.MinerSpec{
			{Name: "Rig B", Algorithm: "SCRYPT", Hashrate: 14, Power: 3000, Quantity: 2, ElectricityRate: 0.05, ManagementFeeRate: 0.003},
			{ID: "rig-a", Name: "Rig A", Algorithm: mining.SHA256, Hashrate: 200, Power: 3500, Quantity: 1, ElectricityRate: 0.07},
		}
		saved, err := storage.SaveMiners(ctx, input)
		if err != nil {
			t.Fatalf("failed to save miners: %v", err)
		}
		if saved[0].ID == "" {
			t.Error("expected generated id")
		}

		fleet, err := storage.Fleet(ctx)
		if err != nil {
			t.Fatalf("failed to load fleet: %v", err)
		}
		if len(fleet.Miners) != 2 {
			t.Fatalf("expected 2 miners, got %d", len(fleet.Miners))
		}
		// order is preserved
		if fleet.Miners[0].Name != "Rig B" || fleet.Miners[1].ID != "rig-a" {
			t.Errorf("unexpected order: %+v", fleet.Miners)
		}
		b := fleet.Miners[0]
		if b.Algorithm != mining.Scrypt || b.HashrateUnit != mining.GigaHash || len(b.Coins) != 2 {
			t.Errorf("derived fields not restored: %+v", b)
		}
		if b.ManagementFeeRate != 0.003 {
			t.Errorf("expected fee 0.003, got %v", b.ManagementFeeRate)
		}
		if !fleet.SavedAt.Equal(time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)) {
			t.Errorf("unexpected savedAt %v", fleet.SavedAt)
		}
	})

	t.Run("EmptyListStaysEmpty", func(t *testing.T) {
		storage, cleanup := setupTestDB(t)
		defer cleanup()

		if _, err := storage.SaveMiners(ctx, nil); err != nil {
			t.Fatalf("failed to save empty list: %v", err)
		}
		miners, err := storage.LoadMiners(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(miners) != 0 {
			t.Errorf("expected empty list after save, got %d (defaults re-seeded?)", len(miners))
		}
		if miners == nil {
			t.Error("expected non-nil empty slice")
		}
	})

	t.Run("InvalidListIsRejectedWhole", func(t *testing.T) {
		storage, cleanup := setupTestDB(t)
		defer cleanup()

		before, err := storage.LoadMiners(ctx)
		if err != nil {
			t.Fatal(err)
		}
		_, err = storage.SaveMiners(ctx, []mining.MinerSpec{
			{Name: "ok", Algorithm: mining.SHA256, Hashrate: 1, Quantity: 1},
			{Name: "bad", Algorithm: "x11", Hashrate: 1, Quantity: 1},
		})
		if !errors.Is(err, mining.ErrUnknownAlgorithm) {
			t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
		}
		after, _ := storage.LoadMiners(ctx)
		if len(after) != len(before) {
			t.Errorf("store changed after failed save: %d -> %d", len(before), len(after))
		}
	})

	t.Run("DuplicateIDs", func(t *testing.T) {
		storage, cleanup := setupTestDB(t)
		defer cleanup()

		_, err := storage.SaveMiners(ctx, []mining.MinerSpec{
			{ID: "same", Name: "a", Algorithm: mining.SHA256, Hashrate: 1, Quantity: 1},
			{ID: "same", Name: "b", Algorithm: mining.SHA256, Hashrate: 2, Quantity: 1},
		})
		if !errors.Is(err, ErrDuplicateMinerID) {
			t.Errorf("expected ErrDuplicateMinerID, got %v", err)
		}
	})

	t.Run("ReopenKeepsData", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		s1, err := NewSQLiteStorage(dbPath)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s1.SaveMiners(ctx, []mining.MinerSpec{{ID: "only", Name: "only", Algorithm: mining.SHA256, Hashrate: 1, Quantity: 1}}); err != nil {
			t.Fatal(err)
		}
		s1.Close()

		s2, err := NewSQLiteStorage(dbPath)
		if err != nil {
			t.Fatal(err)
		}
		defer s2.Close()
		miners, err := s2.LoadMiners(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(miners) != 1 || miners[0].ID != "only" {
			t.Errorf("unexpected miners after reopen: %+v", miners)
		}
	})
}
