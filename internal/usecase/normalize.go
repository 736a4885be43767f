package usecase

import (
	"sort"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/pkg/util"
)

// Normalize rebases each series so the close at the reference date equals
// scale (1.0 or 100). A nil reference date is the identity. Series are never
// mutated, dropped from, or reordered; new slices are returned for rebased
// tickers.
//
// The reference close is the exact date match when present, otherwise the
// chronologically nearest point. On exact equidistance the earlier date wins.
// A zero reference close passes the series through unchanged rather than
// dividing by zero.
func Normalize(seriesMap map[string]models.Series, referenceDate *time.Time, scale float64) map[string]models.Series {
	if referenceDate == nil {
		return seriesMap
	}
	if scale == 0 {
		scale = 1.0
	}
	ref := util.DateOnly(*referenceDate)

	out := make(map[string]models.Series, len(seriesMap))
	for ticker, series := range seriesMap {
		out[ticker] = rebase(series, ref, scale)
	}
	return out
}

func rebase(series models.Series, ref time.Time, scale float64) models.Series {
	if len(series) == 0 {
		return series
	}

	refClose := series[nearestIndex(series, ref)].Close
	if refClose == 0 {
		return series
	}

	rebased := make(models.Series, len(series))
	copy(rebased, series)
	for i := range rebased {
		rebased[i].Close = rebased[i].Close / refClose * scale
	}
	return rebased
}

// nearestIndex finds the point closest to ref in an ascending series.
// Ties between an earlier and a later candidate go to the earlier one.
func nearestIndex(series models.Series, ref time.Time) int {
	pos := sort.Search(len(series), func(i int) bool {
		return !series[i].Date.Before(ref)
	})

	if pos == 0 {
		return 0
	}
	if pos == len(series) {
		return len(series) - 1
	}
	if series[pos].Date.Equal(ref) {
		return pos
	}

	after := series[pos].Date.Sub(ref)
	before := ref.Sub(series[pos-1].Date)
	if after < before {
		return pos
	}
	return pos - 1
}
