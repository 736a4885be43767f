package repository

import (
	"context"
	"database/sql"
	"time"

	"TickerPulse/internal/domain/models"
	domrepo "TickerPulse/internal/domain/repository"
	pkgch "TickerPulse/pkg/clickhouse"
	applogger "TickerPulse/pkg/logger"
)

// ClickHouseStore implements TickerStore backed by ClickHouse. The replace in
// Upsert uses a lightweight delete followed by a batched insert; ClickHouse
// mutations are asynchronous, so brief read overlap between the old and new
// series is possible. Deployments needing strict replace atomicity should use
// the SQLite backend.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

// NewClickHouseStore creates a ClickHouse-backed ticker store.
func NewClickHouseStore(client *pkgch.Client, l *applogger.Logger) *ClickHouseStore {
	return &ClickHouseStore{client: client, db: client.DB(), l: l}
}

// Init creates tables if they do not exist.
func (s *ClickHouseStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticker_data (
			ticker   String,
			interval String,
			date     DateTime,
			open     Float64,
			high     Float64,
			low      Float64,
			close    Float64,
			volume   Float64
		) ENGINE = MergeTree()
		ORDER BY (ticker, interval, date)`,

		`CREATE TABLE IF NOT EXISTS ticker_metadata (
			ticker         String,
			provider       String,
			interval       String,
			last_update    DateTime,
			last_data_date Nullable(DateTime)
		) ENGINE = ReplacingMergeTree(last_update)
		ORDER BY (ticker, provider, interval)`,
	}
	if err := s.client.InitSchema(ctx, stmts); err != nil {
		return &models.StorageError{Op: "init", Err: err}
	}
	return nil
}

// Upsert replaces all stored points for (ticker, interval) and records sync
// metadata.
func (s *ClickHouseStore) Upsert(ctx context.Context, provider, ticker string, interval models.Interval, rows models.Series) error {
	start := time.Now()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM ticker_data WHERE ticker = ? AND interval = ?`,
		ticker, string(interval)); err != nil {
		return &models.StorageError{Op: "upsert delete", Err: err}
	}

	if len(rows) > 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return &models.StorageError{Op: "upsert begin", Err: err}
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ticker_data (ticker, interval, date, open, high, low, close, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return &models.StorageError{Op: "upsert prepare", Err: err}
		}
		for _, p := range rows {
			if _, err := stmt.ExecContext(ctx,
				ticker, string(interval), p.Date,
				p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
				stmt.Close()
				tx.Rollback()
				return &models.StorageError{Op: "upsert insert", Err: err}
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return &models.StorageError{Op: "upsert commit", Err: err}
		}
	}

	var lastDataDate *time.Time
	for _, p := range rows {
		d := p.Date
		if lastDataDate == nil || d.After(*lastDataDate) {
			lastDataDate = &d
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ticker_metadata (ticker, provider, interval, last_update, last_data_date)
		 VALUES (?, ?, ?, ?, ?)`,
		ticker, provider, string(interval), time.Now().UTC(), lastDataDate); err != nil {
		return &models.StorageError{Op: "upsert metadata", Err: err}
	}

	if s.l != nil {
		s.l.Debug("clickhouse upsert ok",
			applogger.String("ticker", ticker),
			applogger.String("interval", string(interval)),
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// Query returns stored points in [start, end], ascending by date.
func (s *ClickHouseStore) Query(ctx context.Context, ticker string, interval models.Interval, start, end time.Time) (models.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume
		 FROM ticker_data
		 WHERE ticker = ? AND interval = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		ticker, string(interval), start, end)
	if err != nil {
		return nil, &models.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	out := make(models.Series, 0, 256)
	for rows.Next() {
		p := models.PricePoint{Ticker: ticker, Interval: interval}
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, &models.StorageError{Op: "query scan", Err: err}
		}
		p.Date = p.Date.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "query rows", Err: err}
	}
	return out, nil
}

// GetMetadata returns sync metadata, or nil when none exists yet.
func (s *ClickHouseStore) GetMetadata(ctx context.Context, ticker, provider string, interval models.Interval) (*models.SeriesMetadata, error) {
	var (
		lastUpdate   time.Time
		lastDataDate sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_update, last_data_date
		 FROM ticker_metadata FINAL
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
		LastUpdate: lastUpdate.UTC(),
	}
	if lastDataDate.Valid {
		d := lastDataDate.Time.UTC()
		md.LastDataDate = &d
	}
	return md, nil
}

// TouchMetadata bumps last_update without touching stored points. The
// ReplacingMergeTree keeps the row with the newest last_update.
func (s *ClickHouseStore) TouchMetadata(ctx context.Context, ticker, provider string, interval models.Interval, at time.Time) error {
	md, err := s.GetMetadata(ctx, ticker, provider, interval)
	if err != nil {
		return err
	}
	var lastDataDate *time.Time
	if md != nil {
		lastDataDate = md.LastDataDate
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ticker_metadata (ticker, provider, interval, last_update, last_data_date)
		 VALUES (?, ?, ?, ?, ?)`,
		ticker, provider, string(interval), at.UTC(), lastDataDate); err != nil {
		return &models.StorageError{Op: "touch metadata", Err: err}
	}
	return nil
}

// Prune deletes points older than the cutoff across all tickers.
func (s *ClickHouseStore) Prune(ctx context.Context, olderThan time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM ticker_data WHERE date < ?`, olderThan); err != nil {
		return &models.StorageError{Op: "prune", Err: err}
	}
	return nil
}

// Health pings the database.
func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close closes the connection pool.
func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}

var _ domrepo.TickerStore = (*ClickHouseStore)(nil)
