package api

import (
	"time"

	models "TickerPulse/internal/domain/models"
	"TickerPulse/internal/usecase"
	xhttp "TickerPulse/pkg/http"
	xlogger "TickerPulse/pkg/logger"
	"TickerPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// DashboardHandler exposes the sync and series operations over HTTP.
type DashboardHandler struct {
	logger    *xlogger.Logger
	dashboard *usecase.Dashboard
}

func NewDashboardHandler(logger *xlogger.Logger, dashboard *usecase.Dashboard) *DashboardHandler {
	return &DashboardHandler{logger: logger, dashboard: dashboard}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/sync", h.Sync)
	g.GET("/series", h.Series)
	g.GET("/interval", h.Interval)
	g.POST("/validate", h.Validate)
}

// Sync refreshes the requested tickers from the active provider.
func (h *DashboardHandler) Sync(c echo.Context) error {
	req := &models.SyncRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	interval := models.NormalizeInterval(req.Interval)

	report, err := h.dashboard.Sync(c.Request().Context(), req.Tickers, interval, req.Force)
	if err != nil {
		h.logger.Error("sync usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

// Series returns stored (optionally normalized) series for charting.
func (h *DashboardHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tickers := util.SplitList(req.Tickers)
	if len(tickers) == 0 {
		return xhttp.BadRequestResponse(c, "tickers must not be empty")
	}
	interval := models.NormalizeInterval(req.Interval)

	now := time.Now().UTC()
	start := xhttp.ParseTimeDefault(req.Start, now.AddDate(-1, 0, 0))
	end := xhttp.ParseTimeDefault(req.End, now)
	if end.Before(start) {
		return xhttp.BadRequestResponse(c, "end must not be before start")
	}

	var referenceDate *time.Time
	if req.NormalizeAt != "" {
		t, ok := xhttp.ParseTime(req.NormalizeAt)
		if !ok {
			return xhttp.BadRequestResponse(c, "normalize_at must be a date")
		}
		referenceDate = &t
	}
	scale := 0.0
	if req.Scale != "" {
		scale = util.ParseFloatDefault(req.Scale, 0)
	}

	ctx := c.Request().Context()
	var (
		effective models.Interval
		series    map[string]models.Series
		err       error
	)
	if referenceDate != nil {
		effective, series, err = h.dashboard.NormalizedSeries(ctx, tickers, interval, start, end, referenceDate, scale)
	} else {
		effective, series, err = h.dashboard.Series(ctx, tickers, interval, start, end)
	}
	if err != nil {
		h.logger.Error("series usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if allEmpty(series) {
		return xhttp.NotFoundResponse(c, "no data available")
	}

	return xhttp.SuccessResponse(c, &models.SeriesResponse{
		Interval:   effective,
		Normalized: referenceDate != nil,
		Series:     series,
	})
}

// Interval previews the effective interval for a date range.
func (h *DashboardHandler) Interval(c echo.Context) error {
	req := &models.IntervalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start, ok := xhttp.ParseTime(req.Start)
	if !ok {
		return xhttp.BadRequestResponse(c, "start must be a date")
	}
	end, ok := xhttp.ParseTime(req.End)
	if !ok {
		return xhttp.BadRequestResponse(c, "end must be a date")
	}

	effective := usecase.AdjustInterval(start, end, models.NormalizeInterval(req.Interval))
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"requested": req.Interval,
		"effective": effective,
	})
}

// Validate checks ticker availability with the active provider.
func (h *DashboardHandler) Validate(c echo.Context) error {
	req := &models.ValidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.dashboard.ValidateTickers(c.Request().Context(), req.Tickers)
	if err != nil {
		h.logger.Error("validate usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

func allEmpty(series map[string]models.Series) bool {
	for _, s := range series {
		if len(s) > 0 {
			return false
		}
	}
	return true
}
