package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/pkg/logger"
)

// --- fakes ---

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	series  map[string]models.Series
	errs    map[string]error
	valid   map[string]bool
	nameStr string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		series:  make(map[string]models.Series),
		errs:    make(map[string]error),
		valid:   make(map[string]bool),
		nameStr: "fake",
	}
}

func (p *fakeProvider) Name() string { return p.nameStr }

func (p *fakeProvider) Fetch(_ context.Context, ticker string, _ models.Interval, _ *time.Time) (models.Series, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if err, ok := p.errs[ticker]; ok {
		return nil, err
	}
	return p.series[ticker], nil
}

func (p *fakeProvider) ValidateTicker(_ context.Context, ticker string) (bool, error) {
	return p.valid[ticker], nil
}

func (p *fakeProvider) fetchCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type storedSeries struct {
	provider string
	rows     models.Series
}

type fakeStore struct {
	mu       sync.Mutex
	data     map[string]storedSeries // key ticker|interval
	metadata map[string]*models.SeriesMetadata
	queries  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:     make(map[string]storedSeries),
		metadata: make(map[string]*models.SeriesMetadata),
	}
}

func dataKey(ticker string, interval models.Interval) string { return ticker + "|" + string(interval) }
func mdKey(ticker, provider string, interval models.Interval) string {
	return ticker + "|" + provider + "|" + string(interval)
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) Upsert(_ context.Context, provider, ticker string, interval models.Interval, rows models.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[dataKey(ticker, interval)] = storedSeries{provider: provider, rows: rows}
	md := &models.SeriesMetadata{
		Ticker: ticker, Provider: provider, Interval: interval, LastUpdate: time.Now().UTC(),
	}
	if len(rows) > 0 {
		d := rows[len(rows)-1].Date
		md.LastDataDate = &d
	}
	s.metadata[mdKey(ticker, provider, interval)] = md
	return nil
}

func (s *fakeStore) Query(_ context.Context, ticker string, interval models.Interval, start, end time.Time) (models.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	out := models.Series{}
	for _, p := range s.data[dataKey(ticker, interval)].rows {
		if !p.Date.Before(start) && !p.Date.After(end) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetMetadata(_ context.Context, ticker, provider string, interval models.Interval) (*models.SeriesMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata[mdKey(ticker, provider, interval)], nil
}

func (s *fakeStore) TouchMetadata(_ context.Context, ticker, provider string, interval models.Interval, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mdKey(ticker, provider, interval)
	if md, ok := s.metadata[key]; ok {
		md.LastUpdate = at
		return nil
	}
	s.metadata[key] = &models.SeriesMetadata{
		Ticker: ticker, Provider: provider, Interval: interval, LastUpdate: at,
	}
	return nil
}

func (s *fakeStore) Prune(context.Context, time.Time) error { return nil }
func (s *fakeStore) Health(context.Context) error           { return nil }
func (s *fakeStore) Close() error                           { return nil }

func (s *fakeStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *fakeStore) stored(ticker string, interval models.Interval) models.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[dataKey(ticker, interval)].rows
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*models.SyncEvent
}

func (e *fakeEvents) PublishOutcome(_ context.Context, ev *models.SyncEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}
func (e *fakeEvents) Close() error { return nil }

type fakeMetrics struct{}

func (fakeMetrics) RecordSyncOutcome(string, string) {}
func (fakeMetrics) RecordError(string)               {}
func (fakeMetrics) RecordLastClose(string, float64)  {}
func (fakeMetrics) RecordLatency(string, float64)    {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func pt(date string, close float64) models.PricePoint {
	d, _ := time.Parse("2006-01-02", date)
	return models.PricePoint{
		Ticker: "T", Interval: models.IntervalDay, Date: d,
		Open: close, High: close, Low: close, Close: close, Volume: 10,
	}
}

func newTestEngine(t *testing.T, p *fakeProvider, s *fakeStore) (*SyncEngine, *fakeEvents) {
	t.Helper()
	ev := &fakeEvents{}
	return NewSyncEngine(p, s, ev, fakeMetrics{}, testLogger(t), time.Hour, 2), ev
}

// --- tests ---

func TestSyncFreshTickerSkipsProvider(t *testing.T) {
	p := newFakeProvider()
	s := newFakeStore()
	s.metadata[mdKey("AAPL", "fake", models.IntervalDay)] = &models.SeriesMetadata{
		Ticker: "AAPL", Provider: "fake", Interval: models.IntervalDay,
		LastUpdate: time.Now().UTC(),
	}
	engine, _ := newTestEngine(t, p, s)

	report, err := engine.Sync(context.Background(), []string{"AAPL"}, models.IntervalDay, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if p.fetchCalls() != 0 {
		t.Fatalf("fresh ticker must not hit the provider, got %d calls", p.fetchCalls())
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != models.SkipReasonFresh {
		t.Fatalf("expected fresh skip, got %+v", report)
	}
}

func TestSyncForceBypassesFreshness(t *testing.T) {
	p := newFakeProvider()
	p.series["AAPL"] = models.Series{pt("2024-01-02", 100)}
	s := newFakeStore()
	s.metadata[mdKey("AAPL", "fake", models.IntervalDay)] = &models.SeriesMetadata{
		Ticker: "AAPL", Provider: "fake", Interval: models.IntervalDay,
		LastUpdate: time.Now().UTC(),
	}
	engine, _ := newTestEngine(t, p, s)

	report, err := engine.Sync(context.Background(), []string{"AAPL"}, models.IntervalDay, true)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if p.fetchCalls() != 1 {
		t.Fatalf("force must hit the provider, got %d calls", p.fetchCalls())
	}
	if len(report.Succeeded) != 1 {
		t.Fatalf("expected success, got %+v", report)
	}
}

func TestSyncEmptyResultSkipsAndTouchesMetadata(t *testing.T) {
	p := newFakeProvider()
	p.series["GHOST"] = models.Series{}
	s := newFakeStore()
	engine, _ := newTestEngine(t, p, s)

	report, err := engine.Sync(context.Background(), []string{"GHOST"}, models.IntervalDay, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != models.SkipReasonNoData {
		t.Fatalf("expected no-data skip, got %+v", report)
	}

	md, _ := s.GetMetadata(context.Background(), "GHOST", "fake", models.IntervalDay)
	if md == nil {
		t.Fatalf("empty fetch must still bump last_update")
	}
	if md.LastDataDate != nil {
		t.Fatalf("empty fetch must not set last_data_date")
	}

	// second sync within the window is now a freshness skip
	report, _ = engine.Sync(context.Background(), []string{"GHOST"}, models.IntervalDay, false)
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != models.SkipReasonFresh {
		t.Fatalf("repeated empty fetch must be freshness-limited, got %+v", report)
	}
	if p.fetchCalls() != 1 {
		t.Fatalf("expected one provider call total, got %d", p.fetchCalls())
	}
}

func TestSyncFailureIsolation(t *testing.T) {
	p := newFakeProvider()
	p.series["AAPL"] = models.Series{pt("2024-01-02", 100)}
	p.series["MSFT"] = models.Series{pt("2024-01-02", 200)}
	p.errs["BAD"] = models.NewPermanentError("fake", "BAD", "unknown symbol", nil)
	s := newFakeStore()
	engine, _ := newTestEngine(t, p, s)

	report, err := engine.Sync(context.Background(), []string{"AAPL", "BAD", "MSFT"}, models.IntervalDay, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.Succeeded) != 2 {
		t.Fatalf("healthy tickers must survive a bad one, got %+v", report)
	}
	if len(report.Failed) != 1 || report.Failed[0].Ticker != "BAD" {
		t.Fatalf("expected BAD in failed, got %+v", report.Failed)
	}
	if len(s.stored("AAPL", models.IntervalDay)) != 1 || len(s.stored("MSFT", models.IntervalDay)) != 1 {
		t.Fatalf("healthy tickers must be stored")
	}
}

func TestSyncPublishesOutcomeEvents(t *testing.T) {
	p := newFakeProvider()
	p.series["AAPL"] = models.Series{pt("2024-01-02", 100)}
	p.errs["BAD"] = models.NewPermanentError("fake", "BAD", "unknown symbol", nil)
	s := newFakeStore()
	engine, ev := newTestEngine(t, p, s)

	_, err := engine.Sync(context.Background(), []string{"AAPL", "BAD"}, models.IntervalDay, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if len(ev.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(ev.events))
	}
	outcomes := map[string]string{}
	for _, e := range ev.events {
		outcomes[e.Ticker] = e.Outcome
	}
	if outcomes["AAPL"] != "succeeded" || outcomes["BAD"] != "failed" {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestSyncReportPartitionsTickers(t *testing.T) {
	p := newFakeProvider()
	p.series["OK"] = models.Series{pt("2024-01-02", 100)}
	p.series["EMPTY"] = models.Series{}
	p.errs["BAD"] = models.NewTransientError("fake", "BAD", "timeout", nil)
	s := newFakeStore()
	engine, _ := newTestEngine(t, p, s)

	report, err := engine.Sync(context.Background(), []string{"OK", "EMPTY", "BAD"}, models.IntervalDay, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	total := len(report.Succeeded) + len(report.Skipped) + len(report.Failed)
	if total != 3 {
		t.Fatalf("every ticker must land in exactly one list, got %d entries: %+v", total, report)
	}
}

func TestSanitizeSeriesForwardFill(t *testing.T) {
	nan := math.NaN()
	rows := models.Series{
		pt("2024-01-02", 100),
		{Ticker: "T", Interval: models.IntervalDay, Date: mustDate("2024-01-03"),
			Open: nan, High: nan, Low: nan, Close: nan, Volume: 5},
		pt("2024-01-04", 120),
	}
	out := sanitizeSeries(rows)
	if len(out) != 3 {
		t.Fatalf("forward-fillable point must be kept, got %d", len(out))
	}
	if out[1].Close != 100 {
		t.Fatalf("NaN close must forward-fill from prior row, got %v", out[1].Close)
	}
}

func TestSanitizeSeriesDropsLeadingInvalid(t *testing.T) {
	nan := math.NaN()
	rows := models.Series{
		{Ticker: "T", Interval: models.IntervalDay, Date: mustDate("2024-01-02"),
			Open: nan, High: nan, Low: nan, Close: nan, Volume: 5},
		pt("2024-01-03", 100),
	}
	out := sanitizeSeries(rows)
	if len(out) != 1 || out[0].Close != 100 {
		t.Fatalf("leading invalid point must be dropped, got %+v", out)
	}
}

func TestSanitizeSeriesSortsAndDedupes(t *testing.T) {
	rows := models.Series{
		pt("2024-01-04", 120),
		pt("2024-01-02", 100),
		pt("2024-01-02", 101), // duplicate date, last wins
	}
	out := sanitizeSeries(rows)
	if len(out) != 2 {
		t.Fatalf("duplicate dates must collapse, got %d", len(out))
	}
	if !out[0].Date.Before(out[1].Date) {
		t.Fatalf("output must be ascending")
	}
	if out[0].Close != 101 {
		t.Fatalf("last duplicate must win, got %v", out[0].Close)
	}
}

func TestSanitizeSeriesClampsVolume(t *testing.T) {
	p1 := pt("2024-01-02", 100)
	p1.Volume = -3
	p2 := pt("2024-01-03", 101)
	p2.Volume = math.NaN()
	out := sanitizeSeries(models.Series{p1, p2})
	if out[0].Volume != 0 || out[1].Volume != 0 {
		t.Fatalf("invalid volume must clamp to zero, got %v %v", out[0].Volume, out[1].Volume)
	}
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
