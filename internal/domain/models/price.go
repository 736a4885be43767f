package models

import "time"

// PricePoint is one OHLCV observation for a ticker at a given interval.
// (Ticker, Interval, Date) is the unique identity; Date is UTC midnight.
type PricePoint struct {
	Ticker   string    `json:"ticker"`
	Interval Interval  `json:"interval"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Series is an ascending, duplicate-free sequence of points for one ticker.
type Series []PricePoint

// SeriesMetadata tracks sync freshness per (ticker, provider, interval).
// LastDataDate is nil until at least one point has been stored.
type SeriesMetadata struct {
	Ticker       string     `json:"ticker"`
	Provider     string     `json:"provider"`
	Interval     Interval   `json:"interval"`
	LastUpdate   time.Time  `json:"last_update"`
	LastDataDate *time.Time `json:"last_date,omitempty"`
}

// Sync outcome reasons recorded in SyncReport and published as events.
const (
	SkipReasonFresh  = "fresh"
	SkipReasonNoData = "no data"
)

// TickerFailure records why a single ticker could not be synced.
type TickerFailure struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// TickerSkip records why a single ticker was not fetched.
type TickerSkip struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// SyncReport summarizes one sync pass. Tickers appear in exactly one list;
// order within the lists is not significant.
type SyncReport struct {
	Succeeded []string        `json:"succeeded"`
	Skipped   []TickerSkip    `json:"skipped"`
	Failed    []TickerFailure `json:"failed"`
}

// SyncEvent is the per-ticker outcome published to the event topic.
type SyncEvent struct {
	Ticker   string    `json:"ticker"`
	Interval Interval  `json:"interval"`
	Provider string    `json:"provider"`
	Outcome  string    `json:"outcome"` // succeeded, skipped, failed
	Reason   string    `json:"reason,omitempty"`
	Points   int       `json:"points"`
	At       time.Time `json:"at"`
}
