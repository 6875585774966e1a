// internal/domain/models/timeline.go
package models

import "cloud.google.com/go/civil"

// Metric names one of the three tracked counters.
type Metric string

const (
	MetricCases     Metric = "cases"
	MetricDeaths    Metric = "deaths"
	MetricRecovered Metric = "recovered"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricCases, MetricDeaths, MetricRecovered}

// Series maps a calendar day to a cumulative count as reported upstream.
// Values are untrusted: corrections can make a later day smaller.
type Series map[civil.Date]int64

// CumulativeTimeline holds the three cumulative series for one country.
// A new value is created for every country selection; it is never merged
// with a previous one.
type CumulativeTimeline struct {
	Cases     Series
	Deaths    Series
	Recovered Series
}

// Series returns the cumulative series for m, or nil for an unknown metric.
func (t *CumulativeTimeline) Series(m Metric) Series {
	if t == nil {
		return nil
	}
	switch m {
	case MetricCases:
		return t.Cases
	case MetricDeaths:
		return t.Deaths
	case MetricRecovered:
		return t.Recovered
	}
	return nil
}

// DateRange is an inclusive pair of calendar days.
type DateRange struct {
	From civil.Date
	To   civil.Date
}

// Normalized returns the range with From and To swapped when From is after To.
func (r DateRange) Normalized() DateRange {
	if r.From.After(r.To) {
		return DateRange{From: r.To, To: r.From}
	}
	return r
}

// Contains reports whether d falls within the inclusive range.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// DeltaPoint is the increase recorded on Date relative to the previous
// retained day.
type DeltaPoint struct {
	Date  civil.Date `json:"date"`
	Value int64      `json:"value"`
}

// DeltaSeries is sorted by Date, strictly ascending.
type DeltaSeries []DeltaPoint

// DeltaTimeline holds per-day increases for the visible window.
type DeltaTimeline struct {
	Cases     DeltaSeries `json:"cases"`
	Deaths    DeltaSeries `json:"deaths"`
	Recovered DeltaSeries `json:"recovered"`
}

// Series returns the delta series for m.
func (d *DeltaTimeline) Series(m Metric) DeltaSeries {
	if d == nil {
		return nil
	}
	switch m {
	case MetricCases:
		return d.Cases
	case MetricDeaths:
		return d.Deaths
	case MetricRecovered:
		return d.Recovered
	}
	return nil
}

// Totals are the summed deltas over the visible window.
type Totals struct {
	TotalCases     int64 `json:"total_cases"`
	TotalRecovered int64 `json:"total_recovered"`
	TotalDeaths    int64 `json:"total_deaths"`
}
