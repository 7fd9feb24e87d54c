// Package sqlite persists fetched bars in a local SQLite database and serves
// them back as an offline provider.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"candlechart/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"

	// Observe, when set, receives each committed batch size and duration.
	Observe func(bars int, took time.Duration)
}

// Writer is a single-goroutine SQLite writer. Each series is upserted in one
// transaction.
type Writer struct {
	db      *sql.DB
	observe func(int, time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite store opened", "path", cfg.DBPath)
	return &Writer{db: db, observe: cfg.Observe}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker   TEXT    NOT NULL,
			spacing  TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL DEFAULT 0,
			PRIMARY KEY (ticker, spacing, ts)
		);
	`)
	return err
}

// Persist saves every series received on in to dst until ctx is cancelled
// or in is closed. Failures are logged; the chart never waits on the store.
func Persist(ctx context.Context, dst model.BarWriter, in <-chan *model.BarSeries) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			if err := dst.SaveBars(ctx, s.Ticker(), s.Interval(), s.Bars()); err != nil {
				slog.Error("sqlite save failed", "ticker", s.Ticker(), "interval", s.Interval(), "error", err)
			}
		}
	}
}

// SaveBars upserts bars in a single transaction.
func (w *Writer) SaveBars(ctx context.Context, ticker string, interval model.Interval, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (ticker, spacing, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, ticker, string(interval), b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if w.observe != nil {
		w.observe(len(bars), time.Since(start))
	}
	slog.Debug("sqlite committed bars", "ticker", ticker, "interval", interval, "bars", len(bars), "took", time.Since(start))
	return nil
}

// LastTimestamp returns the newest stored bar time, or 0 when none exist.
func (w *Writer) LastTimestamp(ctx context.Context, ticker string, interval model.Interval) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE ticker = ? AND spacing = ?`,
		ticker, string(interval),
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

var _ model.BarWriter = (*Writer)(nil)
