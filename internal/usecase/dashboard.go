package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	"TickerPulse/pkg/cache"
	"TickerPulse/pkg/logger"
)

// Dashboard is the controller-facing surface: it glues sync, storage, interval
// adjustment and normalization behind a few operations the HTTP layer calls.
type Dashboard struct {
	engine   *SyncEngine
	store    repository.TickerStore
	provider repository.MarketProvider
	cache    cache.Service
	log      *logger.Logger

	seriesTTL     time.Duration
	normalizedTTL time.Duration
	defaultScale  float64
}

// DashboardOptions configures the dashboard usecase.
type DashboardOptions struct {
	SeriesTTL     time.Duration
	NormalizedTTL time.Duration
	DefaultScale  float64
}

// NewDashboard creates the dashboard usecase. Cache may be nil to disable
// result caching.
func NewDashboard(
	engine *SyncEngine,
	store repository.TickerStore,
	provider repository.MarketProvider,
	c cache.Service,
	log *logger.Logger,
	opts DashboardOptions,
) *Dashboard {
	if opts.SeriesTTL <= 0 {
		opts.SeriesTTL = 5 * time.Minute
	}
	if opts.NormalizedTTL <= 0 {
		opts.NormalizedTTL = 5 * time.Minute
	}
	if opts.DefaultScale == 0 {
		opts.DefaultScale = 1.0
	}
	return &Dashboard{
		engine:        engine,
		store:         store,
		provider:      provider,
		cache:         c,
		log:           log,
		seriesTTL:     opts.SeriesTTL,
		normalizedTTL: opts.NormalizedTTL,
		defaultScale:  opts.DefaultScale,
	}
}

// Sync refreshes the given tickers and invalidates cached query results for
// every ticker that actually changed.
func (d *Dashboard) Sync(ctx context.Context, tickers []string, interval models.Interval, force bool) (*models.SyncReport, error) {
	report, err := d.engine.Sync(ctx, tickers, interval, force)
	if err != nil {
		return report, err
	}

	if d.cache != nil && len(report.Succeeded) > 0 {
		if err := d.cache.DeleteByPattern(ctx, cache.BuildPattern("series:")); err != nil {
			d.log.Warn("series cache invalidation failed", logger.Error(err))
		}
		if err := d.cache.DeleteByPattern(ctx, cache.BuildPattern("normalized:")); err != nil {
			d.log.Warn("normalized cache invalidation failed", logger.Error(err))
		}
	}
	return report, nil
}

// Series loads stored series for the tickers over [start, end] at the
// effective interval. It returns the adjusted interval alongside the data.
func (d *Dashboard) Series(ctx context.Context, tickers []string, interval models.Interval, start, end time.Time) (models.Interval, map[string]models.Series, error) {
	effective := AdjustInterval(start, end, interval)
	key := seriesKey(tickers, effective, start, end)

	if cached, ok := d.getCached(ctx, key); ok {
		return effective, cached, nil
	}

	out := make(map[string]models.Series, len(tickers))
	for _, ticker := range tickers {
		series, err := d.store.Query(ctx, ticker, effective, start, end)
		if err != nil {
			return effective, nil, fmt.Errorf("query %s: %w", ticker, err)
		}
		out[ticker] = series
	}

	d.putCached(ctx, key, out, d.seriesTTL)
	return effective, out, nil
}

// NormalizedSeries loads series and rebases every ticker to the reference
// date. Cached results are keyed by the full query shape including reference
// date and scale; anything less can serve a stale rebase.
func (d *Dashboard) NormalizedSeries(ctx context.Context, tickers []string, interval models.Interval, start, end time.Time, referenceDate *time.Time, scale float64) (models.Interval, map[string]models.Series, error) {
	if scale == 0 {
		scale = d.defaultScale
	}
	effective := AdjustInterval(start, end, interval)
	key := normalizedKey(tickers, effective, start, end, referenceDate, scale)

	if cached, ok := d.getCached(ctx, key); ok {
		return effective, cached, nil
	}

	_, raw, err := d.Series(ctx, tickers, interval, start, end)
	if err != nil {
		return effective, nil, err
	}

	out := Normalize(raw, referenceDate, scale)
	d.putCached(ctx, key, out, d.normalizedTTL)
	return effective, out, nil
}

// ValidateTickers checks each ticker against the active provider. Transient
// provider failures surface as errors; unknown symbols report false.
func (d *Dashboard) ValidateTickers(ctx context.Context, tickers []string) (map[string]bool, error) {
	out := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		ok, err := d.provider.ValidateTicker(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", ticker, err)
		}
		out[ticker] = ok
	}
	return out, nil
}

// Prune removes stored points older than the retention horizon.
func (d *Dashboard) Prune(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return d.store.Prune(ctx, cutoff)
}

func (d *Dashboard) getCached(ctx context.Context, key string) (map[string]models.Series, bool) {
	if d.cache == nil {
		return nil, false
	}
	raw, err := d.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var out map[string]models.Series
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, true
}

func (d *Dashboard) putCached(ctx context.Context, key string, val map[string]models.Series, ttl time.Duration) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, string(raw), ttl); err != nil {
		d.log.Warn("cache set failed", logger.String("key", key), logger.Error(err))
	}
}

func seriesKey(tickers []string, interval models.Interval, start, end time.Time) string {
	return cache.GenerateKeyWithParams("series",
		joinSorted(tickers), interval, start.Unix(), end.Unix())
}

func normalizedKey(tickers []string, interval models.Interval, start, end time.Time, ref *time.Time, scale float64) string {
	refPart := "none"
	if ref != nil {
		refPart = ref.UTC().Format("2006-01-02")
	}
	return cache.GenerateKeyWithParams("normalized",
		joinSorted(tickers), interval, start.Unix(), end.Unix(), refPart, scale)
}

func joinSorted(tickers []string) string {
	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
