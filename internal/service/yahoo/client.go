package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"time"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/service/ratelimit"
	xhttp "TickerPulse/pkg/http"
	"TickerPulse/pkg/logger"
	"TickerPulse/pkg/util"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Config holds Yahoo client settings.
type Config struct {
	BaseURL        string
	SymbolMap      map[string]string // maps internal ticker to Yahoo symbol
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RateCalls      int
	RatePeriod     time.Duration
}

// Client implements a MarketProvider backed by the Yahoo Finance chart API.
type Client struct {
	http       *xhttp.Client
	baseURL    string
	symbolMap  map[string]string
	limiter    *ratelimit.Limiter
	rateCap    float64
	rateRefill float64
	maxRetries int
	retryBase  time.Duration
	log        *logger.Logger
}

// New creates a new Yahoo MarketProvider.
func New(cfg Config, limiter *ratelimit.Limiter, log *logger.Logger) drepo.MarketProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	rateCap, rateRefill := rateParams(cfg.RateCalls, cfg.RatePeriod)
	return &Client{
		http:       xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		baseURL:    cfg.BaseURL,
		symbolMap:  cfg.SymbolMap,
		limiter:    limiter,
		rateCap:    rateCap,
		rateRefill: rateRefill,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
		log:        log,
	}
}

func rateParams(calls int, period time.Duration) (float64, float64) {
	if calls <= 0 || period <= 0 {
		return 120, 2 // 120 calls per minute
	}
	return float64(calls), float64(calls) / period.Seconds()
}

func (c *Client) Name() string { return "yahoo" }

func (c *Client) symbol(ticker string) string {
	if mapped, ok := c.symbolMap[ticker]; ok {
		return mapped
	}
	return ticker
}

// chartResponse is the Yahoo Finance chart API response. OHLCV arrays use
// interface{} because the API emits null for missing bars.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat converts a JSON scalar to float64, NaN for null.
func toFloat(v interface{}) float64 {
	if v == nil {
		return math.NaN()
	}
	if n, ok := v.(float64); ok {
		return n
	}
	return math.NaN()
}

// Fetch retrieves OHLCV history for one ticker. A nil since fetches full
// history; otherwise only bars at or after since are requested.
func (c *Client) Fetch(ctx context.Context, ticker string, interval models.Interval, since *time.Time) (models.Series, error) {
	params := map[string][]string{
		"interval": {string(interval)},
		"events":   {"history"},
	}
	if since != nil {
		params["period1"] = []string{strconv.FormatInt(since.Unix(), 10)}
		params["period2"] = []string{strconv.FormatInt(time.Now().Unix(), 10)}
	} else {
		params["range"] = []string{"max"}
	}

	var series models.Series
	err := c.withRetry(ctx, ticker, func() error {
		var err error
		series, err = c.fetchChart(ctx, ticker, interval, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// ValidateTicker checks whether Yahoo recognizes the ticker.
func (c *Client) ValidateTicker(ctx context.Context, ticker string) (bool, error) {
	params := map[string][]string{
		"interval": {"1d"},
		"range":    {"5d"},
	}
	var err error
	retryErr := c.withRetry(ctx, ticker, func() error {
		_, err = c.fetchChart(ctx, ticker, models.IntervalDay, params)
		return err
	})
	if retryErr == nil {
		return true, nil
	}
	if models.IsTransient(retryErr) {
		return false, retryErr
	}
	return false, nil
}

func (c *Client) fetchChart(ctx context.Context, ticker string, interval models.Interval, params map[string][]string) (models.Series, error) {
	if err := c.limiter.Wait(ctx, "yahoo", c.rateCap, c.rateRefill); err != nil {
		return nil, err
	}

	var chart chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(c.symbol(ticker))),
		Headers:     map[string]string{"User-Agent": "Mozilla/5.0"},
		QueryParams: params,
	}, &chart)
	if err != nil {
		return nil, classifyHTTPError(ticker, err)
	}

	if chart.Chart.Error != nil {
		return nil, models.NewPermanentError("yahoo", ticker,
			fmt.Sprintf("api error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description), nil)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, models.NewPermanentError("yahoo", ticker, "no chart data returned", nil)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	series := make(models.Series, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		o := toFloat(at(quote.Open, i))
		h := toFloat(at(quote.High, i))
		l := toFloat(at(quote.Low, i))
		cl := toFloat(at(quote.Close, i))
		v := toFloat(at(quote.Volume, i))
		if math.IsNaN(o) && math.IsNaN(h) && math.IsNaN(l) && math.IsNaN(cl) {
			continue // null bar (holiday etc.)
		}
		series = append(series, models.PricePoint{
			Ticker:   ticker,
			Interval: interval,
			Date:     util.DateOnly(time.Unix(ts, 0)),
			Open:     o,
			High:     h,
			Low:      l,
			Close:    cl,
			Volume:   v,
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

func at(arr []interface{}, i int) interface{} {
	if i < len(arr) {
		return arr[i]
	}
	return nil
}

// withRetry runs fn with bounded exponential backoff on transient errors.
func (c *Client) withRetry(ctx context.Context, ticker string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err = fn()
		if err == nil || !models.IsTransient(err) {
			return err
		}
		if attempt == c.maxRetries {
			break
		}

		delay := c.retryBase * time.Duration(1<<(attempt-1))
		c.log.Warn("yahoo fetch retry",
			logger.String("ticker", ticker),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func classifyHTTPError(ticker string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		if se.StatusCode == 404 || se.StatusCode == 400 {
			return models.NewPermanentError("yahoo", ticker, "symbol not found", err)
		}
		if se.StatusCode == 429 || se.StatusCode >= 500 {
			return models.NewTransientError("yahoo", ticker, "upstream unavailable", err)
		}
		return models.NewPermanentError("yahoo", ticker, "unexpected status", err)
	}
	// network or decode failure
	return models.NewTransientError("yahoo", ticker, "request failed", err)
}
