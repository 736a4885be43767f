package models

// SyncRequest asks the engine to refresh a set of tickers.
type SyncRequest struct {
	Tickers  []string `json:"tickers" validate:"required,min=1,dive,required"`
	Interval string   `json:"interval" default:"1d" validate:"oneof=1d 1wk 1mo"`
	Force    bool     `json:"force"`
}

// SeriesRequest loads (optionally normalized) series for charting.
type SeriesRequest struct {
	Tickers     string `query:"tickers" validate:"required"`
	Start       string `query:"start"`
	End         string `query:"end"`
	Interval    string `query:"interval" default:"1d" validate:"oneof=1d 1wk 1mo"`
	NormalizeAt string `query:"normalize_at"`
	Scale       string `query:"scale"`
}

// IntervalRequest previews the effective interval for a date range.
type IntervalRequest struct {
	Start    string `query:"start" validate:"required"`
	End      string `query:"end" validate:"required"`
	Interval string `query:"interval" default:"1d" validate:"oneof=1d 1wk 1mo"`
}

// ValidateRequest checks ticker availability with the active provider.
type ValidateRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,dive,required"`
}

// SeriesResponse is the chart-ready payload for one query.
type SeriesResponse struct {
	Interval   Interval          `json:"interval"`
	Normalized bool              `json:"normalized"`
	Series     map[string]Series `json:"series"`
}
