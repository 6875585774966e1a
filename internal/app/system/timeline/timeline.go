// Package timeline turns cumulative counters into the per-day increases
// shown on the dashboard, and sums those increases into totals.
//
// Both functions are pure: the same input always yields the same output
// and nothing is retained between calls.
package timeline

import (
	"slices"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

// Filter derives the delta timeline for rng from cum.
//
// A nil timeline or range means the dashboard is not ready yet and Filter
// returns nil. Each metric is processed independently by FilterSeries.
func Filter(cum *models.CumulativeTimeline, rng *models.DateRange) *models.DeltaTimeline {
	if cum == nil || rng == nil {
		return nil
	}
	return &models.DeltaTimeline{
		Cases:     FilterSeries(cum.Cases, *rng),
		Deaths:    FilterSeries(cum.Deaths, *rng),
		Recovered: FilterSeries(cum.Recovered, *rng),
	}
}

// FilterSeries keeps the entries of s inside rng (inclusive), walks them in
// date order and emits current-minus-previous at the current date whenever
// that difference is positive. Flat and decreasing days are omitted, so a
// window with fewer than two retained entries yields an empty series.
//
// The returned slice is never nil.
func FilterSeries(s models.Series, rng models.DateRange) models.DeltaSeries {
	days := make([]civil.Date, 0, len(s))
	for d := range s {
		if rng.Contains(d) {
			days = append(days, d)
		}
	}
	slices.SortFunc(days, compareDates)

	out := make(models.DeltaSeries, 0, len(days))
	for i := 1; i < len(days); i++ {
		delta := s[days[i]] - s[days[i-1]]
		if delta > 0 {
			out = append(out, models.DeltaPoint{Date: days[i], Value: delta})
		}
	}
	return out
}

// Aggregate sums each metric of d. A nil timeline yields nil; an empty
// one yields zero totals.
func Aggregate(d *models.DeltaTimeline) *models.Totals {
	if d == nil {
		return nil
	}
	return &models.Totals{
		TotalCases:     Sum(d.Cases),
		TotalRecovered: Sum(d.Recovered),
		TotalDeaths:    Sum(d.Deaths),
	}
}

// Sum adds the values of s, counting negative values as zero.
func Sum(s models.DeltaSeries) int64 {
	var total int64
	for _, p := range s {
		if p.Value > 0 {
			total += p.Value
		}
	}
	return total
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
