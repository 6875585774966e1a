package presenter

import (
	"reflect"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMillions(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0M"},
		{110, "0.0M"},
		{1_000_000, "1.0M"},
		{12_345_678, "12.3M"},
		{44_990_000, "45.0M"},
	}
	for _, tt := range tests {
		if got := Millions(tt.in); got != tt.want {
			t.Errorf("Millions(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole int64
		want        string
	}{
		{0, 0, "0"},
		{5, 0, "0"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{50, 100, "50.00"},
	}
	for _, tt := range tests {
		if got := Percent(tt.part, tt.whole); got != tt.want {
			t.Errorf("Percent(%d, %d) = %q, want %q", tt.part, tt.whole, got, tt.want)
		}
	}
}

func TestCards(t *testing.T) {
	t.Run("nil totals", func(t *testing.T) {
		cards := Cards(nil)
		if len(cards) != 3 {
			t.Fatalf("len = %d", len(cards))
		}
		for _, c := range cards {
			if c.Value != "0M" || c.Percentage != "0" {
				t.Errorf("%s: %+v", c.Title, c)
			}
		}
	})

	t.Run("values", func(t *testing.T) {
		cards := Cards(&models.Totals{TotalCases: 4_000_000, TotalRecovered: 3_000_000, TotalDeaths: 100_000})
		want := []CardVM{
			{Title: "Total Cases", Value: "4.0M", Percentage: "100", Tone: "purple"},
			{Title: "Recoveries", Value: "3.0M", Percentage: "75.00", Tone: "green"},
			{Title: "Deaths", Value: "0.1M", Percentage: "2.50", Tone: "red"},
		}
		if !reflect.DeepEqual(cards, want) {
			t.Errorf("Cards = %+v\nwant %+v", cards, want)
		}
	})
}

func TestLineChart(t *testing.T) {
	d := &models.DeltaTimeline{
		Cases: models.DeltaSeries{
			{Date: day("2024-01-02"), Value: 500_000},
			{Date: day("2024-01-04"), Value: 2_000_000},
		},
		Deaths:    models.DeltaSeries{{Date: day("2024-01-03"), Value: 1_000_000}},
		Recovered: models.DeltaSeries{},
	}
	vm := LineChart(d)

	if vm.Title != LineChartTitle || vm.YAxis != LineChartYAxis {
		t.Errorf("titles = %q / %q", vm.Title, vm.YAxis)
	}
	wantLabels := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	if !reflect.DeepEqual(vm.Labels, wantLabels) {
		t.Errorf("Labels = %v", vm.Labels)
	}
	if len(vm.Series) != 3 {
		t.Fatalf("series = %d", len(vm.Series))
	}
	if got := vm.Series[0].Values; !reflect.DeepEqual(got, []float64{0.5, 0, 2}) {
		t.Errorf("cases values = %v", got)
	}
	if got := vm.Series[1].Values; !reflect.DeepEqual(got, []float64{0, 1, 0}) {
		t.Errorf("deaths values = %v", got)
	}
	if vm.Series[1].Color != ColorDeaths || vm.Series[2].Label != "Recovered" {
		t.Errorf("styles = %+v", vm.Series)
	}
	if vm.Empty() {
		t.Error("chart with points reported empty")
	}
}

func TestLineChartOrdersLabelsByDate(t *testing.T) {
	tests := []struct {
		name  string
		dates []civil.Date
		want  []string
	}{
		{"four digit years", []civil.Date{day("2024-03-01"), day("2023-12-31")}, []string{"2023-12-31", "2024-03-01"}},
		{"five digit year", []civil.Date{
			{Year: 10000, Month: 1, Day: 1},
			{Year: 9999, Month: 12, Day: 31},
		}, []string{"9999-12-31", "10000-01-01"}},
		{"three digit year", []civil.Date{
			{Year: 1000, Month: 1, Day: 1},
			{Year: 999, Month: 6, Day: 1},
		}, []string{"0999-06-01", "1000-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cases models.DeltaSeries
			for _, d := range tt.dates {
				cases = append(cases, models.DeltaPoint{Date: d, Value: 1})
			}
			vm := LineChart(&models.DeltaTimeline{Cases: cases})
			if !reflect.DeepEqual(vm.Labels, tt.want) {
				t.Errorf("Labels = %v, want %v", vm.Labels, tt.want)
			}
		})
	}
}

func TestLineChartNil(t *testing.T) {
	vm := LineChart(nil)
	if !vm.Empty() || len(vm.Labels) != 0 {
		t.Errorf("nil delta: %+v", vm)
	}
}

func TestProportion(t *testing.T) {
	vm := Proportion(&models.Totals{TotalCases: 10, TotalDeaths: 2, TotalRecovered: 7})
	if !reflect.DeepEqual(vm.Values, []int64{10, 2, 7}) {
		t.Errorf("Values = %v", vm.Values)
	}
	if vm.Empty() {
		t.Error("reported empty")
	}
	if !Proportion(nil).Empty() {
		t.Error("nil totals should be empty")
	}
}

func TestFilterCountries(t *testing.T) {
	all := []models.Country{
		{CommonName: "India", Code2: "IN", Code3: "IND"},
		{CommonName: "Indonesia", Code2: "ID", Code3: "IDN"},
		{CommonName: "United States", Code2: "US", Code3: "USA"},
		{CommonName: "Côte d'Ivoire", Code2: "CI", Code3: "CIV"},
	}
	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"IN", "ID", "US", "CI"}},
		{"ivoire", []string{"CI"}},
		{"ind", []string{"IN", "ID"}},
		{"  USA ", []string{"US"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		got := []string{}
		for _, c := range FilterCountries(all, tt.q) {
			got = append(got, c.Code2)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterCountries(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}
