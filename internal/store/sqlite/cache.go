// Package sqlite persists fetched price history so a symbol view can open
// without waiting on the upstream provider every time.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stockwatch/internal/model"
)

// Cache stores one series per (symbol, interval) pair. Single-writer with
// WAL journaling; each Store replaces the pair's rows wholesale inside a
// transaction, mirroring how the in-memory series store swaps series.
type Cache struct {
	db *sql.DB
}

// New opens (and if needed creates) the cache database.
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened history cache at %s", dbPath)
	return &Cache{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL,
			high     REAL,
			low      REAL,
			close    REAL    NOT NULL,
			volume   REAL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS history_meta (
			symbol     TEXT    NOT NULL,
			interval   TEXT    NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, interval)
		);
	`)
	return err
}

// Load reads the cached series and its fetch time (unix seconds). A missing
// pair returns an empty series and zero fetch time, not an error.
func (c *Cache) Load(ctx context.Context, symbol string, interval model.Interval) (model.Series, int64, error) {
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx, `
		SELECT fetched_at FROM history_meta WHERE symbol = ? AND interval = ?
	`, symbol, string(interval)).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return model.Series{Symbol: symbol, Interval: interval}, 0, nil
	}
	if err != nil {
		return model.Series{}, 0, fmt.Errorf("sqlite query meta: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM history
		WHERE symbol = ? AND interval = ?
		ORDER BY ts ASC
	`, symbol, string(interval))
	if err != nil {
		return model.Series{}, 0, fmt.Errorf("sqlite query history: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return model.Series{}, 0, fmt.Errorf("sqlite scan history: %w", err)
		}
		p.TS = time.Unix(tsUnix, 0).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, 0, err
	}
	return model.NewSeries(symbol, interval, points), fetchedAt, nil
}

// Store replaces the cached series for its (symbol, interval) pair.
func (c *Cache) Store(ctx context.Context, s model.Series, fetchedAt int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE symbol = ? AND interval = ?
	`, s.Symbol, string(s.Interval)); err != nil {
		return fmt.Errorf("sqlite delete history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range s.Points {
		if _, err := stmt.ExecContext(ctx,
			s.Symbol, string(s.Interval), p.TS.Unix(),
			p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			return fmt.Errorf("sqlite insert history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history_meta (symbol, interval, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, interval) DO UPDATE SET fetched_at = excluded.fetched_at
	`, s.Symbol, string(s.Interval), fetchedAt); err != nil {
		return fmt.Errorf("sqlite upsert meta: %w", err)
	}

	return tx.Commit()
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
