// Package presenter maps delta timelines and totals into the shapes the
// dashboard's cards and charts display. It holds no state and performs
// no I/O.
package presenter

import (
	"slices"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/stratacovid/internal/app/system/normalize"
	"github.com/dalemusser/stratacovid/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/shopspring/decimal"
)

var (
	million = decimal.NewFromInt(1_000_000)
	hundred = decimal.NewFromInt(100)
)

// Chart titles and colors.
const (
	LineChartTitle  = "Line chart for COVID-19 cases, deaths, and recoveries"
	LineChartYAxis  = "Cases (in millions)"
	LineChartXAxis  = "Date"
	ProportionTitle = "Cases, deaths, and recoveries"

	ColorCases     = "#8884d8"
	ColorDeaths    = "#FF0000"
	ColorRecovered = "#00C49F"

	ProportionCases     = "#fde68a"
	ProportionDeaths    = "#ef4444"
	ProportionRecovered = "#00C49F"
)

// CardVM is one statistic card.
type CardVM struct {
	Title      string `json:"title"`
	Value      string `json:"value"`      // "12.3M"
	Percentage string `json:"percentage"` // share of total cases, "45.67"
	Tone       string `json:"tone"`       // purple, green, red
}

// Cards builds the total cases, recoveries and deaths cards. A nil totals
// (nothing loaded yet) renders as zeros.
func Cards(t *models.Totals) []CardVM {
	var totals models.Totals
	if t != nil {
		totals = *t
	}
	casesPct := "0"
	if totals.TotalCases > 0 {
		casesPct = "100"
	}
	return []CardVM{
		{Title: "Total Cases", Value: Millions(totals.TotalCases), Percentage: casesPct, Tone: "purple"},
		{Title: "Recoveries", Value: Millions(totals.TotalRecovered), Percentage: Percent(totals.TotalRecovered, totals.TotalCases), Tone: "green"},
		{Title: "Deaths", Value: Millions(totals.TotalDeaths), Percentage: Percent(totals.TotalDeaths, totals.TotalCases), Tone: "red"},
	}
}

// Millions formats v in millions with one decimal place and an "M"
// suffix. Zero is "0M".
func Millions(v int64) string {
	if v == 0 {
		return "0M"
	}
	return decimal.NewFromInt(v).Div(million).StringFixed(1) + "M"
}

// Percent returns part as a percentage of whole with two decimal places,
// or "0" when whole is zero.
func Percent(part, whole int64) string {
	if whole == 0 {
		return "0"
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).StringFixed(2)
}

// LineSeriesVM is one line in the timeline chart.
type LineSeriesVM struct {
	Label  string       `json:"label"`
	Color  string       `json:"color"`
	Dates  []civil.Date `json:"-"`
	Values []float64    `json:"values"` // millions, aligned to LineChartVM.Labels
	Raw    []float64    `json:"-"`      // millions, one per Dates entry
}

// LineChartVM is the timeline chart.
type LineChartVM struct {
	Title  string         `json:"title"`
	XAxis  string         `json:"x_axis"`
	YAxis  string         `json:"y_axis"`
	Labels []string       `json:"labels"`
	Series []LineSeriesVM `json:"series"`
}

// Empty reports whether no series has a point.
func (vm LineChartVM) Empty() bool {
	for _, s := range vm.Series {
		if len(s.Dates) > 0 {
			return false
		}
	}
	return true
}

// compareDates orders by calendar value. Formatted dates only sort
// correctly for four-digit years.
func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// LineChart builds the timeline chart. Labels are the union of dates
// present in any series; a series with no entry for a label gets 0 there.
func LineChart(d *models.DeltaTimeline) LineChartVM {
	vm := LineChartVM{
		Title:  LineChartTitle,
		XAxis:  LineChartXAxis,
		YAxis:  LineChartYAxis,
		Labels: []string{},
	}

	var all []civil.Date
	for _, m := range models.Metrics {
		for _, p := range d.Series(m) {
			all = append(all, p.Date)
		}
	}
	slices.SortFunc(all, compareDates)
	all = slices.Compact(all)

	index := make(map[civil.Date]int, len(all))
	for i, day := range all {
		index[day] = i
		vm.Labels = append(vm.Labels, day.String())
	}

	for _, m := range models.Metrics {
		label, color := lineStyle(m)
		s := LineSeriesVM{
			Label:  label,
			Color:  color,
			Dates:  []civil.Date{},
			Values: make([]float64, len(all)),
			Raw:    []float64{},
		}
		for _, p := range d.Series(m) {
			v := inMillions(p.Value)
			s.Values[index[p.Date]] = v
			s.Dates = append(s.Dates, p.Date)
			s.Raw = append(s.Raw, v)
		}
		vm.Series = append(vm.Series, s)
	}
	return vm
}

func lineStyle(m models.Metric) (label, color string) {
	switch m {
	case models.MetricDeaths:
		return "Deaths", ColorDeaths
	case models.MetricRecovered:
		return "Recovered", ColorRecovered
	}
	return "Cases", ColorCases
}

func inMillions(v int64) float64 {
	f, _ := decimal.NewFromInt(v).Div(million).Float64()
	return f
}

// ProportionVM is the doughnut chart of totals.
type ProportionVM struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
	Colors []string `json:"colors"`
}

// Empty reports whether every slice is zero.
func (vm ProportionVM) Empty() bool {
	for _, v := range vm.Values {
		if v > 0 {
			return false
		}
	}
	return true
}

// Proportion builds the doughnut chart from totals.
func Proportion(t *models.Totals) ProportionVM {
	var totals models.Totals
	if t != nil {
		totals = *t
	}
	return ProportionVM{
		Title:  ProportionTitle,
		Labels: []string{"Cases", "Deaths", "Recovered"},
		Values: []int64{totals.TotalCases, totals.TotalDeaths, totals.TotalRecovered},
		Colors: []string{ProportionCases, ProportionDeaths, ProportionRecovered},
	}
}

// FilterCountries returns the countries whose common name or alpha-3 code
// contains query, ignoring case. An empty query returns every country.
func FilterCountries(countries []models.Country, query string) []models.Country {
	q := normalize.SearchKey(query)
	if q == "" {
		return countries
	}
	out := make([]models.Country, 0, len(countries))
	for _, c := range countries {
		if strings.Contains(text.Fold(c.CommonName), q) || strings.Contains(text.Fold(c.Code3), q) {
			out = append(out, c)
		}
	}
	return out
}
