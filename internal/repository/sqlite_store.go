package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TickerPulse/internal/domain/models"
	domrepo "TickerPulse/internal/domain/repository"
	applogger "TickerPulse/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements TickerStore backed by a local SQLite file.
// The delete-and-insert replace in Upsert runs inside one transaction, so
// readers see either the old series or the complete new one.
type SQLiteStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database.
func NewSQLiteStore(path string, l *applogger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads do not block sync writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, l: l}, nil
}

// Init creates tables if they do not exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticker_data (
			ticker   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			date     INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL,
			PRIMARY KEY (ticker, interval, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticker_data_date ON ticker_data(date)`,

		`CREATE TABLE IF NOT EXISTS ticker_metadata (
			ticker         TEXT    NOT NULL,
			provider       TEXT    NOT NULL,
			interval       TEXT    NOT NULL,
			last_update    INTEGER NOT NULL,
			last_data_date INTEGER,
			PRIMARY KEY (ticker, provider, interval)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &models.StorageError{Op: "init", Err: err}
		}
	}
	return nil
}

// Upsert replaces all stored points for (ticker, interval) and records sync
// metadata, atomically.
func (s *SQLiteStore) Upsert(ctx context.Context, provider, ticker string, interval models.Interval, rows models.Series) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "upsert begin", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ticker_data WHERE ticker = ? AND interval = ?`,
		ticker, string(interval)); err != nil {
		return &models.StorageError{Op: "upsert delete", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ticker_data (ticker, interval, date, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &models.StorageError{Op: "upsert prepare", Err: err}
	}
	defer stmt.Close()

	var lastDate *time.Time
	for _, p := range rows {
		if _, err := stmt.ExecContext(ctx,
			ticker, string(interval), p.Date.Unix(),
			p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			return &models.StorageError{Op: "upsert insert", Err: err}
		}
		d := p.Date
		if lastDate == nil || d.After(*lastDate) {
			lastDate = &d
		}
	}

	var lastDataDate interface{}
	if lastDate != nil {
		lastDataDate = lastDate.Unix()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO ticker_metadata (ticker, provider, interval, last_update, last_data_date)
		 VALUES (?, ?, ?, ?, ?)`,
		ticker, provider, string(interval), time.Now().Unix(), lastDataDate); err != nil {
		return &models.StorageError{Op: "upsert metadata", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "upsert commit", Err: err}
	}

	if s.l != nil {
		s.l.Debug("sqlite upsert ok",
			applogger.String("ticker", ticker),
			applogger.String("interval", string(interval)),
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// Query returns stored points in [start, end], ascending by date. Absence of
// data is an empty series, not an error.
func (s *SQLiteStore) Query(ctx context.Context, ticker string, interval models.Interval, start, end time.Time) (models.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume
		 FROM ticker_data
		 WHERE ticker = ? AND interval = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		ticker, string(interval), start.Unix(), end.Unix())
	if err != nil {
		return nil, &models.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	out := make(models.Series, 0, 256)
	for rows.Next() {
		var ts int64
		p := models.PricePoint{Ticker: ticker, Interval: interval}
		if err := rows.Scan(&ts, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, &models.StorageError{Op: "query scan", Err: err}
		}
		p.Date = time.Unix(ts, 0).UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "query rows", Err: err}
	}
	return out, nil
}

// GetMetadata returns sync metadata, or nil when none exists yet.
func (s *SQLiteStore) GetMetadata(ctx context.Context, ticker, provider string, interval models.Interval) (*models.SeriesMetadata, error) {
	var (
		lastUpdate   int64
		lastDataDate sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_update, last_data_date
		 FROM ticker_metadata
		 WHERE ticker = ? AND provider = ? AND interval = ?`,
		ticker, provider, string(interval)).Scan(&lastUpdate, &lastDataDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get metadata", Err: err}
	}

	md := &models.SeriesMetadata{
		Ticker:     ticker,
		Provider:   provider,
		Interval:   interval,
		LastUpdate: time.Unix(lastUpdate, 0).UTC(),
	}
	if lastDataDate.Valid {
		d := time.Unix(lastDataDate.Int64, 0).UTC()
		md.LastDataDate = &d
	}
	return md, nil
}

// TouchMetadata bumps last_update without touching stored points. Used when
// the provider confirmed there is nothing new.
func (s *SQLiteStore) TouchMetadata(ctx context.Context, ticker, provider string, interval models.Interval, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticker_metadata (ticker, provider, interval, last_update, last_data_date)
		 VALUES (?, ?, ?, ?, NULL)
		 ON CONFLICT(ticker, provider, interval)
		 DO UPDATE SET last_update = excluded.last_update`,
		ticker, provider, string(interval), at.Unix())
	if err != nil {
		return &models.StorageError{Op: "touch metadata", Err: err}
	}
	return nil
}

// Prune deletes points older than the cutoff across all tickers.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ticker_data WHERE date < ?`, olderThan.Unix())
	if err != nil {
		return &models.StorageError{Op: "prune", Err: err}
	}
	if s.l != nil {
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.l.Info("sqlite prune",
				applogger.Int("rows", int(n)),
				applogger.String("older_than", olderThan.Format("2006-01-02")),
			)
		}
	}
	return nil
}

// Health pings the database.
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domrepo.TickerStore = (*SQLiteStore)(nil)
