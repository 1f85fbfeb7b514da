package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	keySecurityLevel        = "security_level"
	keyPairedBrowsers       = "paired_browsers"
	keyPairingModeRequested = "pairing_mode_requested"
)

// SQLiteStore keeps each configuration field as a JSON value in a
// key-value table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs the
// schema migration.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open device db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate device db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the stored keys over defaults. A key that fails to decode
// keeps its default and is reported.
func (s *SQLiteStore) Load(ctx context.Context) (DeviceConfig, error) {
	c := Default()
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return c, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var errs []error
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Default(), fmt.Errorf("scan setting: %w", err)
		}
		var dst any
		switch key {
		case keySecurityLevel:
			dst = &c.SecurityLevel
		case keyPairedBrowsers:
			dst = &c.PairedBrowsers
		case keyPairingModeRequested:
			dst = &c.PairingModeRequested
		default:
			continue
		}
		if err := json.Unmarshal([]byte(value), dst); err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", key, err))
		}
	}
	if err := rows.Err(); err != nil {
		return Default(), fmt.Errorf("read settings: %w", err)
	}
	if err := c.normalize(); err != nil {
		errs = append(errs, err)
	}
	return c, errors.Join(errs...)
}

// Save writes every field in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, c DeviceConfig) error {
	c = c.Clone()
	values := map[string]any{
		keySecurityLevel:        c.SecurityLevel,
		keyPairedBrowsers:       c.PairedBrowsers,
		keyPairingModeRequested: c.PairingModeRequested,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for key, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, string(b),
		); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
	}
	return tx.Commit()
}
