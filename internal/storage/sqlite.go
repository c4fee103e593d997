package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/camarigor/miner-profit/internal/mining"
)

const timestampLayout = "2006-01-02 15:04:05"

// SQLiteStorage persists the miner config list in SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// parseTimestamp parses a timestamp string from SQLite in multiple formats.
// All timestamps are stored in UTC.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t
	}
	return time.Time{}
}

// NewSQLiteStorage opens a SQLite database at the given path,
// runs migrations, and enables WAL mode
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit to single connection to avoid SQLite locking issues
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS miners (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		hashrate REAL NOT NULL DEFAULT 0,
		power REAL NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 1,
		electricity_rate REAL NOT NULL DEFAULT 0,
		management_fee_rate REAL NOT NULL DEFAULT 0.002
	);

	CREATE INDEX IF NOT EXISTS idx_miners_position ON miners(position);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// LoadMiners returns the stored list. A store that has never been written is
// seeded with the default fleet first.
func (s *SQLiteStorage) LoadMiners(ctx context.Context) ([]mining.MinerSpec, error) {
	fleet, err := s.Fleet(ctx)
	if err != nil {
		return nil, err
	}
	return fleet.Miners, nil
}

// Fleet returns the stored list together with its last save time
func (s *SQLiteStorage) Fleet(ctx context.Context) (Fleet, error) {
	seeded, err := s.meta(ctx, metaSeeded)
	if err != nil {
		return Fleet{}, err
	}
	if seeded == "" {
		if _, err := s.save(ctx, mining.DefaultMiners(), false); err != nil {
			return Fleet{}, fmt.Errorf("failed to seed default miners: %w", err)
		}
	}

	miners, err := s.miners(ctx)
	if err != nil {
		return Fleet{}, err
	}
	savedAt, err := s.meta(ctx, metaSavedAt)
	if err != nil {
		return Fleet{}, err
	}
	return Fleet{Miners: miners, SavedAt: parseTimestamp(savedAt)}, nil
}

// SaveMiners replaces the whole list. Every record is normalized first and
// the write is all-or-nothing. The normalized list is returned.
func (s *SQLiteStorage) SaveMiners(ctx context.Context, miners []mining.MinerSpec) ([]mining.MinerSpec, error) {
	return s.save(ctx, miners, true)
}

func (s *SQLiteStorage) save(ctx context.Context, miners []mining.MinerSpec, stamp bool) ([]mining.MinerSpec, error) {
	normalized := make([]mining.MinerSpec, 0, len(miners))
	seen := make(map[string]bool, len(miners))
	for i, m := range miners {
		n, err := m.Normalize()
		if err != nil {
			return nil, fmt.Errorf("miner %d: %w", i, err)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMinerID, n.ID)
		}
		seen[n.ID] = true
		normalized = append(normalized, n)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM miners"); err != nil {
		return nil, fmt.Errorf("failed to clear miners: %w", err)
	}

	query := `
	INSERT INTO miners (id, position, name, algorithm, hashrate, power, quantity, electricity_rate, management_fee_rate)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, m := range normalized {
		if _, err := tx.ExecContext(ctx, query,
			m.ID, i, m.Name, string(m.Algorithm), m.Hashrate, m.Power, m.Quantity, m.ElectricityRate, m.ManagementFeeRate,
		); err != nil {
			return nil, fmt.Errorf("failed to insert miner %s: %w", m.ID, err)
		}
	}

	if err := setMeta(ctx, tx, metaSeeded, "1"); err != nil {
		return nil, err
	}
	if stamp {
		if err := setMeta(ctx, tx, metaSavedAt, s.now().UTC().Format(timestampLayout)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit miners: %w", err)
	}
	return normalized, nil
}

func (s *SQLiteStorage) miners(ctx context.Context) ([]mining.MinerSpec, error) {
	query := `
	SELECT id, name, algorithm, hashrate, power, quantity, electricity_rate, management_fee_rate
	FROM miners
	ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	miners := []mining.MinerSpec{}
	for rows.Next() {
		var m mining.MinerSpec
		var algorithm string
		if err := rows.Scan(&m.ID, &m.Name, &algorithm, &m.Hashrate, &m.Power, &m.Quantity, &m.ElectricityRate, &m.ManagementFeeRate); err != nil {
			return nil, err
		}
		m.Algorithm = mining.Algorithm(algorithm)
		// derived fields are not stored
		n, err := m.Normalize()
		if err != nil {
			return nil, fmt.Errorf("stored miner %s: %w", m.ID, err)
		}
		miners = append(miners, n)
	}
	return miners, rows.Err()
}

func (s *SQLiteStorage) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
