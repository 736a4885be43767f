package usecase

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	"TickerPulse/pkg/logger"
)

// SyncEngine decides what needs fetching, fetches it, and persists it.
// Failures and staleness decisions are isolated per ticker: one bad symbol
// never aborts the rest of the batch.
type SyncEngine struct {
	provider repository.MarketProvider
	store    repository.TickerStore
	events   repository.SyncEvents
	metrics  repository.Metrics
	log      *logger.Logger

	freshnessWindow time.Duration
	workers         int
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(
	provider repository.MarketProvider,
	store repository.TickerStore,
	events repository.SyncEvents,
	metrics repository.Metrics,
	log *logger.Logger,
	freshnessWindow time.Duration,
	workers int,
) *SyncEngine {
	if freshnessWindow <= 0 {
		freshnessWindow = time.Hour
	}
	if workers <= 0 {
		workers = 4
	}
	return &SyncEngine{
		provider:        provider,
		store:           store,
		events:          events,
		metrics:         metrics,
		log:             log,
		freshnessWindow: freshnessWindow,
		workers:         workers,
	}
}

// Sync fetches and stores each ticker independently using a bounded worker
// pool. Every ticker lands in exactly one of the report's lists. Order within
// the lists is not significant.
func (e *SyncEngine) Sync(ctx context.Context, tickers []string, interval models.Interval, force bool) (*models.SyncReport, error) {
	report := &models.SyncReport{
		Succeeded: make([]string, 0, len(tickers)),
		Skipped:   make([]models.TickerSkip, 0),
		Failed:    make([]models.TickerFailure, 0),
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := e.workers
	if workers > len(tickers) {
		workers = len(tickers)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				outcome := e.syncOne(ctx, ticker, interval, force)
				mu.Lock()
				switch outcome.kind {
				case "succeeded":
					report.Succeeded = append(report.Succeeded, ticker)
				case "skipped":
					report.Skipped = append(report.Skipped, models.TickerSkip{Ticker: ticker, Reason: outcome.reason})
				default:
					report.Failed = append(report.Failed, models.TickerFailure{Ticker: ticker, Reason: outcome.reason})
				}
				mu.Unlock()
			}
		}()
	}

	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return report, ctx.Err()
		case jobs <- ticker:
		}
	}
	close(jobs)
	wg.Wait()

	e.log.Info("sync finished",
		logger.String("provider", e.provider.Name()),
		logger.String("interval", string(interval)),
		logger.Int("succeeded", len(report.Succeeded)),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("failed", len(report.Failed)),
	)
	return report, nil
}

type syncOutcome struct {
	kind   string // succeeded, skipped, failed
	reason string
	points int
}

func (e *SyncEngine) syncOne(ctx context.Context, ticker string, interval models.Interval, force bool) syncOutcome {
	start := time.Now()
	outcome := e.doSyncOne(ctx, ticker, interval, force)
	e.metrics.RecordLatency("sync_ticker", time.Since(start).Seconds())
	e.metrics.RecordSyncOutcome(e.provider.Name(), outcome.kind)

	ev := &models.SyncEvent{
		Ticker:   ticker,
		Interval: interval,
		Provider: e.provider.Name(),
		Outcome:  outcome.kind,
		Reason:   outcome.reason,
		Points:   outcome.points,
		At:       time.Now().UTC(),
	}
	if err := e.events.PublishOutcome(ctx, ev); err != nil {
		e.log.Warn("sync event publish failed",
			logger.String("ticker", ticker),
			logger.Error(err),
		)
	}
	return outcome
}

func (e *SyncEngine) doSyncOne(ctx context.Context, ticker string, interval models.Interval, force bool) syncOutcome {
	providerName := e.provider.Name()

	if !force {
		md, err := e.store.GetMetadata(ctx, ticker, providerName, interval)
		if err != nil {
			e.metrics.RecordError("storage")
			return syncOutcome{kind: "failed", reason: err.Error()}
		}
		if md != nil && time.Since(md.LastUpdate) < e.freshnessWindow {
			return syncOutcome{kind: "skipped", reason: models.SkipReasonFresh}
		}
	}

	rows, err := e.provider.Fetch(ctx, ticker, interval, nil)
	if err != nil {
		kind := "permanent"
		if models.IsTransient(err) {
			kind = "transient"
		}
		e.metrics.RecordError(kind)
		e.log.Warn("provider fetch failed",
			logger.String("ticker", ticker),
			logger.String("provider", providerName),
			logger.Error(err),
		)
		return syncOutcome{kind: "failed", reason: err.Error()}
	}

	rows = sanitizeSeries(rows)
	if len(rows) == 0 {
		// Empty result is non-fatal. Bump last_update so repeated empty
		// fetches are also rate-limited by the freshness window, but leave
		// stored data and last_data_date alone.
		if err := e.store.TouchMetadata(ctx, ticker, providerName, interval, time.Now().UTC()); err != nil {
			e.metrics.RecordError("storage")
			return syncOutcome{kind: "failed", reason: err.Error()}
		}
		return syncOutcome{kind: "skipped", reason: models.SkipReasonNoData}
	}

	if err := e.store.Upsert(ctx, providerName, ticker, interval, rows); err != nil {
		e.metrics.RecordError("storage")
		return syncOutcome{kind: "failed", reason: err.Error()}
	}

	e.metrics.RecordLastClose(ticker, rows[len(rows)-1].Close)
	return syncOutcome{kind: "succeeded", points: len(rows)}
}

// sanitizeSeries coerces a provider response into canonical form: ascending
// by date, one point per date (last wins), no NaN fields. NaN OHLC values are
// forward-filled from the prior point; leading points with no prior value are
// dropped. NaN or negative volume becomes zero.
func sanitizeSeries(rows models.Series) models.Series {
	if len(rows) == 0 {
		return rows
	}

	sorted := make(models.Series, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	// dedupe by date, last wins
	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}

	out := make(models.Series, 0, len(deduped))
	var prev *models.PricePoint
	for _, p := range deduped {
		if math.IsNaN(p.Open) || math.IsNaN(p.High) || math.IsNaN(p.Low) || math.IsNaN(p.Close) {
			if prev == nil {
				continue // no prior value to fill from
			}
			if math.IsNaN(p.Open) {
				p.Open = prev.Open
			}
			if math.IsNaN(p.High) {
				p.High = prev.High
			}
			if math.IsNaN(p.Low) {
				p.Low = prev.Low
			}
			if math.IsNaN(p.Close) {
				p.Close = prev.Close
			}
		}
		if math.IsNaN(p.Volume) || p.Volume < 0 {
			p.Volume = 0
		}
		out = append(out, p)
		prev = &out[len(out)-1]
	}
	return out
}
