package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/service/ratelimit"
	xhttp "TickerPulse/pkg/http"
	"TickerPulse/pkg/logger"
	"TickerPulse/pkg/util"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// Config holds Alpha Vantage client settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RateCalls      int
	RatePeriod     time.Duration
}

// Client implements a MarketProvider backed by the Alpha Vantage API.
type Client struct {
	http       *xhttp.Client
	apiKey     string
	baseURL    string
	limiter    *ratelimit.Limiter
	rateCap    float64
	rateRefill float64
	maxRetries int
	retryBase  time.Duration
	log        *logger.Logger
}

// New creates a new Alpha Vantage MarketProvider.
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
	rateCap := float64(cfg.RateCalls)
	rateRefill := float64(cfg.RateCalls) / cfg.RatePeriod.Seconds()
	if cfg.RateCalls <= 0 || cfg.RatePeriod <= 0 {
		rateCap, rateRefill = 5, 5.0/60 // free tier: 5 calls per minute
	}
	return &Client{
		http:       xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		limiter:    limiter,
		rateCap:    rateCap,
		rateRefill: rateRefill,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBaseDelay,
		log:        log,
	}
}

func (c *Client) Name() string { return "alphavantage" }

// seriesFunction maps an interval to the Alpha Vantage function name.
func seriesFunction(interval models.Interval) string {
	switch interval {
	case models.IntervalWeek:
		return "TIME_SERIES_WEEKLY"
	case models.IntervalMonth:
		return "TIME_SERIES_MONTHLY"
	default:
		return "TIME_SERIES_DAILY"
	}
}

// cryptoPair splits tickers like BTC-USD into (symbol, market).
// Crypto pairs only have a daily endpoint; other intervals fall back to it.
func cryptoPair(ticker string) (string, string, bool) {
	parts := strings.SplitN(ticker, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	switch parts[1] {
	case "USD", "EUR", "GBP", "JPY", "BTC":
		return parts[0], parts[1], true
	}
	return "", "", false
}

// apiEnvelope captures the status fields Alpha Vantage mixes into every
// response alongside the time series payload.
type apiEnvelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// Fetch retrieves OHLCV history for one ticker. The API has no server-side
// date filter, so since is applied client-side after parsing.
func (c *Client) Fetch(ctx context.Context, ticker string, interval models.Interval, since *time.Time) (models.Series, error) {
	params := map[string][]string{
		"apikey":     {c.apiKey},
		"outputsize": {"full"},
	}
	if symbol, market, ok := cryptoPair(ticker); ok {
		params["function"] = []string{"DIGITAL_CURRENCY_DAILY"}
		params["symbol"] = []string{symbol}
		params["market"] = []string{market}
	} else {
		params["function"] = []string{seriesFunction(interval)}
		params["symbol"] = []string{ticker}
	}

	var series models.Series
	err := c.withRetry(ctx, ticker, func() error {
		var err error
		series, err = c.fetchSeries(ctx, ticker, interval, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	if since != nil {
		cutoff := util.DateOnly(*since)
		filtered := series[:0]
		for _, p := range series {
			if !p.Date.Before(cutoff) {
				filtered = append(filtered, p)
			}
		}
		series = filtered
	}
	return series, nil
}

// ValidateTicker checks whether Alpha Vantage recognizes the ticker.
func (c *Client) ValidateTicker(ctx context.Context, ticker string) (bool, error) {
	params := map[string][]string{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {ticker},
		"apikey":   {c.apiKey},
	}

	var payload map[string]interface{}
	err := c.withRetry(ctx, ticker, func() error {
		if err := c.limiter.Wait(ctx, "alphavantage", c.rateCap, c.rateRefill); err != nil {
			return err
		}
		payload = nil
		if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL,
			QueryParams: params,
		}, &payload); err != nil {
			return classifyHTTPError(ticker, err)
		}
		if note, ok := payload["Note"].(string); ok && note != "" {
			return models.NewTransientError("alphavantage", ticker, "rate limited", nil)
		}
		return nil
	})
	if err != nil {
		if models.IsTransient(err) {
			return false, err
		}
		return false, nil
	}

	quote, ok := payload["Global Quote"].(map[string]interface{})
	return ok && len(quote) > 0, nil
}

func (c *Client) fetchSeries(ctx context.Context, ticker string, interval models.Interval, params map[string][]string) (models.Series, error) {
	if err := c.limiter.Wait(ctx, "alphavantage", c.rateCap, c.rateRefill); err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL,
		QueryParams: params,
	}, &payload); err != nil {
		return nil, classifyHTTPError(ticker, err)
	}

	if msg, ok := payload["Error Message"].(string); ok && msg != "" {
		return nil, models.NewPermanentError("alphavantage", ticker, msg, nil)
	}
	if note, ok := payload["Note"].(string); ok && note != "" {
		return nil, models.NewTransientError("alphavantage", ticker, "rate limited", nil)
	}
	if info, ok := payload["Information"].(string); ok && info != "" {
		return nil, models.NewPermanentError("alphavantage", ticker, info, nil)
	}

	bars, ok := timeSeriesBlock(payload)
	if !ok {
		return nil, models.NewPermanentError("alphavantage", ticker, "no time series in response", nil)
	}

	series := make(models.Series, 0, len(bars))
	for dateStr, raw := range bars {
		fields, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		series = append(series, models.PricePoint{
			Ticker:   ticker,
			Interval: interval,
			Date:     util.DateOnly(date),
			Open:     fieldValue(fields, "open"),
			High:     fieldValue(fields, "high"),
			Low:      fieldValue(fields, "low"),
			Close:    fieldValue(fields, "close"),
			Volume:   fieldValue(fields, "volume"),
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// timeSeriesBlock finds the time series object regardless of endpoint:
// "Time Series (Daily)", "Weekly Time Series", "Time Series (Digital
// Currency Daily)" and friends.
func timeSeriesBlock(payload map[string]interface{}) (map[string]interface{}, bool) {
	for key, val := range payload {
		if !strings.Contains(key, "Time Series") {
			continue
		}
		if m, ok := val.(map[string]interface{}); ok {
			return m, true
		}
	}
	return nil, false
}

// fieldValue extracts a numbered field like "1. open" or "5. volume".
// Digital currency responses suffix the market ("1a. open (USD)"), so we
// match by substring rather than the exact key. A missing or unparsable
// field yields NaN so downstream sanitization can forward-fill it instead
// of storing a bogus zero bar.
func fieldValue(fields map[string]interface{}, name string) float64 {
	for key, val := range fields {
		if !strings.Contains(strings.ToLower(key), name) {
			continue
		}
		s, ok := val.(string)
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return math.NaN()
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
		c.log.Warn("alphavantage fetch retry",
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
		if se.StatusCode == 429 || se.StatusCode >= 500 {
			return models.NewTransientError("alphavantage", ticker, "upstream unavailable", err)
		}
		return models.NewPermanentError("alphavantage", ticker,
			fmt.Sprintf("unexpected status %d", se.StatusCode), err)
	}
	return models.NewTransientError("alphavantage", ticker, "request failed", err)
}
