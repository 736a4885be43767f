package usecase

import (
	"testing"
	"time"

	"TickerPulse/internal/domain/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdjustInterval(t *testing.T) {
	cases := []struct {
		name      string
		start     time.Time
		end       time.Time
		requested models.Interval
		want      models.Interval
	}{
		{"day escalates over 5y", date(2015, 1, 1), date(2024, 1, 1), models.IntervalDay, models.IntervalWeek},
		{"week de-escalates under 90d", date(2024, 1, 1), date(2024, 3, 1), models.IntervalWeek, models.IntervalDay},
		{"day unchanged mid range", date(2024, 1, 1), date(2024, 6, 1), models.IntervalDay, models.IntervalDay},
		{"week unchanged at 90d", date(2024, 1, 1), date(2024, 3, 31), models.IntervalWeek, models.IntervalWeek},
		{"month never adjusted long", date(2000, 1, 1), date(2024, 1, 1), models.IntervalMonth, models.IntervalMonth},
		{"month never adjusted short", date(2024, 1, 1), date(2024, 1, 15), models.IntervalMonth, models.IntervalMonth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AdjustInterval(tc.start, tc.end, tc.requested)
			if got != tc.want {
				t.Fatalf("AdjustInterval(%v, %v, %s) = %s, want %s",
					tc.start.Format("2006-01-02"), tc.end.Format("2006-01-02"), tc.requested, got, tc.want)
			}
		})
	}
}

func TestAdjustIntervalBoundary(t *testing.T) {
	start := date(2019, 1, 1)

	// exactly 1825 days is not over the threshold
	if got := AdjustInterval(start, start.AddDate(0, 0, 1825), models.IntervalDay); got != models.IntervalDay {
		t.Fatalf("1825 days should stay daily, got %s", got)
	}
	if got := AdjustInterval(start, start.AddDate(0, 0, 1826), models.IntervalDay); got != models.IntervalWeek {
		t.Fatalf("1826 days should escalate to weekly, got %s", got)
	}

	// exactly 90 days is not under the threshold
	if got := AdjustInterval(start, start.AddDate(0, 0, 90), models.IntervalWeek); got != models.IntervalWeek {
		t.Fatalf("90 days should stay weekly, got %s", got)
	}
	if got := AdjustInterval(start, start.AddDate(0, 0, 89), models.IntervalWeek); got != models.IntervalDay {
		t.Fatalf("89 days should de-escalate to daily, got %s", got)
	}
}
