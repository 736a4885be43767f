package usecase

import (
	"time"

	"TickerPulse/internal/domain/models"
)

const (
	// dayEscalationDays is the range above which daily data is too dense (~5y).
	dayEscalationDays = 1825
	// weekMinDays is the range below which weekly data is too coarse.
	weekMinDays = 90
)

// AdjustInterval picks the effective interval for a date range. Daily data
// over ranges longer than ~5 years escalates to weekly; weekly data over
// ranges shorter than 90 days de-escalates to daily. Month is never adjusted.
func AdjustInterval(start, end time.Time, requested models.Interval) models.Interval {
	days := int(end.Sub(start).Hours() / 24)
	switch {
	case requested == models.IntervalDay && days > dayEscalationDays:
		return models.IntervalWeek
	case requested == models.IntervalWeek && days < weekMinDays:
		return models.IntervalDay
	default:
		return requested
	}
}
