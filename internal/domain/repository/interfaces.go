package repository

import (
	"context"
	"time"

	"TickerPulse/internal/domain/models"
)

// MarketProvider fetches OHLCV history for one ticker from an upstream source.
// Implementations own their retry policy: transient failures are retried with
// bounded exponential backoff before an error is surfaced.
type MarketProvider interface {
	Name() string
	Fetch(ctx context.Context, ticker string, interval models.Interval, since *time.Time) (models.Series, error)
	ValidateTicker(ctx context.Context, ticker string) (bool, error)
}

// TickerStore is durable, keyed time-series storage. Upsert replaces all
// points for (ticker, interval) and must be atomic: readers see either the
// previous state or the full new state, never a partial replace.
type TickerStore interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, provider, ticker string, interval models.Interval, rows models.Series) error
	Query(ctx context.Context, ticker string, interval models.Interval, start, end time.Time) (models.Series, error)
	GetMetadata(ctx context.Context, ticker, provider string, interval models.Interval) (*models.SeriesMetadata, error)
	TouchMetadata(ctx context.Context, ticker, provider string, interval models.Interval, at time.Time) error
	Prune(ctx context.Context, olderThan time.Time) error
	Health(ctx context.Context) error
	Close() error
}

// SyncEvents publishes per-ticker sync outcomes for downstream consumers.
type SyncEvents interface {
	PublishOutcome(ctx context.Context, ev *models.SyncEvent) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordSyncOutcome(provider, outcome string)
	RecordError(kind string)
	RecordLastClose(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}
