package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"TickerPulse/internal/domain/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func point(ticker string, d time.Time, close float64) models.PricePoint {
	return models.PricePoint{
		Ticker: ticker, Interval: models.IntervalDay, Date: d,
		Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 1000,
	}
}

func TestUpsertAndQueryRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := models.Series{
		point("AAPL", day(2024, 1, 2), 100),
		point("AAPL", day(2024, 1, 3), 110),
		point("AAPL", day(2024, 1, 4), 120),
	}
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay, rows); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Query(ctx, "AAPL", models.IntervalDay, day(2024, 1, 1), day(2024, 2, 1))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if !got[0].Date.Equal(day(2024, 1, 2)) || got[0].Close != 100 {
		t.Fatalf("unexpected first row %+v", got[0])
	}
	if !got[2].Date.Equal(day(2024, 1, 4)) {
		t.Fatalf("rows must be ascending, last = %v", got[2].Date)
	}
}

func TestUpsertReplacesExistingSeries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := models.Series{
		point("AAPL", day(2024, 1, 2), 100),
		point("AAPL", day(2024, 1, 3), 110),
	}
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// second upsert drops one date and changes another; no leftovers allowed
	second := models.Series{
		point("AAPL", day(2024, 1, 3), 115),
	}
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Query(ctx, "AAPL", models.IntervalDay, day(2024, 1, 1), day(2024, 2, 1))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("replace must drop stale rows, got %d", len(got))
	}
	if got[0].Close != 115 {
		t.Fatalf("close = %v, want 115", got[0].Close)
	}
}

func TestUpsertIsolatesIntervals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay,
		models.Series{point("AAPL", day(2024, 1, 2), 100)}); err != nil {
		t.Fatalf("upsert day: %v", err)
	}
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalWeek,
		models.Series{point("AAPL", day(2024, 1, 1), 99)}); err != nil {
		t.Fatalf("upsert week: %v", err)
	}

	got, _ := store.Query(ctx, "AAPL", models.IntervalDay, day(2024, 1, 1), day(2024, 2, 1))
	if len(got) != 1 || got[0].Close != 100 {
		t.Fatalf("weekly upsert must not touch daily rows, got %+v", got)
	}
}

func TestQueryMissingTickerReturnsEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Query(context.Background(), "NOPE", models.IntervalDay, day(2024, 1, 1), day(2024, 2, 1))
	if err != nil {
		t.Fatalf("missing data must not be an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d rows, want 0", len(got))
	}
}

func TestMetadataLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	md, err := store.GetMetadata(ctx, "AAPL", "yahoo", models.IntervalDay)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if md != nil {
		t.Fatalf("metadata must be nil before first sync, got %+v", md)
	}

	last := day(2024, 1, 4)
	rows := models.Series{
		point("AAPL", day(2024, 1, 2), 100),
		point("AAPL", last, 120),
	}
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay, rows); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	md, err = store.GetMetadata(ctx, "AAPL", "yahoo", models.IntervalDay)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if md == nil {
		t.Fatalf("metadata missing after upsert")
	}
	if md.LastDataDate == nil || !md.LastDataDate.Equal(last) {
		t.Fatalf("last data date = %v, want %v", md.LastDataDate, last)
	}
	if time.Since(md.LastUpdate) > time.Minute {
		t.Fatalf("last update not recorded: %v", md.LastUpdate)
	}
}

func TestTouchMetadataPreservesLastDataDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	last := day(2024, 1, 3)
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay,
		models.Series{point("AAPL", last, 110)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	at := time.Now().UTC().Add(time.Hour)
	if err := store.TouchMetadata(ctx, "AAPL", "yahoo", models.IntervalDay, at); err != nil {
		t.Fatalf("touch: %v", err)
	}

	md, err := store.GetMetadata(ctx, "AAPL", "yahoo", models.IntervalDay)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if md.LastUpdate.Unix() != at.Unix() {
		t.Fatalf("last update = %v, want %v", md.LastUpdate, at)
	}
	if md.LastDataDate == nil || !md.LastDataDate.Equal(last) {
		t.Fatalf("touch must not erase last data date, got %v", md.LastDataDate)
	}
}

func TestTouchMetadataCreatesRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	at := time.Now().UTC()
	if err := store.TouchMetadata(ctx, "GHOST", "yahoo", models.IntervalDay, at); err != nil {
		t.Fatalf("touch: %v", err)
	}

	md, err := store.GetMetadata(ctx, "GHOST", "yahoo", models.IntervalDay)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if md == nil {
		t.Fatalf("touch must create the row for first-time empty fetches")
	}
	if md.LastDataDate != nil {
		t.Fatalf("no data was stored, last data date must be nil")
	}
}

func TestPruneDropsOldRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := models.Series{
		point("AAPL", day(2020, 1, 2), 50),
		point("AAPL", day(2024, 1, 2), 100),
	}
	if err := store.Upsert(ctx, "yahoo", "AAPL", models.IntervalDay, rows); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := store.Prune(ctx, day(2023, 1, 1)); err != nil {
		t.Fatalf("prune: %v", err)
	}

	got, _ := store.Query(ctx, "AAPL", models.IntervalDay, day(2019, 1, 1), day(2025, 1, 1))
	if len(got) != 1 || !got[0].Date.Equal(day(2024, 1, 2)) {
		t.Fatalf("prune left %+v", got)
	}
}

func TestHealth(t *testing.T) {
	store := newTestStore(t)
	if err := store.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
