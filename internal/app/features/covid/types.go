// internal/app/features/covid/types.go
package covid

import (
	"fmt"

	"github.com/dalemusser/stratacovid/internal/app/system/dashstate"
	"github.com/dalemusser/stratacovid/internal/app/system/presenter"
	"github.com/dalemusser/stratacovid/internal/app/system/viewdata"
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

// countryInput is the POST /dashboard/country form.
type countryInput struct {
	Country string `validate:"required,countrycode" label:"Country"`
}

// rangeInput is the POST /dashboard/range form.
type rangeInput struct {
	From string `validate:"required,isodate" label:"Start date"`
	To   string `validate:"required,isodate" label:"End date"`
}

// panelVM feeds the cards, charts and status text. It is rendered on its
// own for htmx swaps and polling.
type panelVM struct {
	Phase       string
	Loading     bool
	Ready       bool
	Country     string
	CountryName string
	Stale       bool

	Cards           []presenter.CardVM
	LineTitle       string
	ProportionTitle string
	// ChartKey changes whenever the charts would, so image URLs bust the
	// browser cache.
	ChartKey string

	TimelineErr      string
	CountriesErr     string
	CountriesLoading bool
	FormError        string

	// OOBPicker, when set, replaces the page's country picker out of band.
	OOBPicker *pickerVM
}

// pickerVM is the country selector and, after a failed load, the retry
// form. It sits outside #panel.
type pickerVM struct {
	CSRFToken        string
	Country          string
	Countries        []models.Country
	CountriesLoading bool
	CountriesErr     string
	OOB              bool
}

func newPickerVM(s dashstate.State, csrfToken string) pickerVM {
	return pickerVM{
		CSRFToken:        csrfToken,
		Country:          s.Country,
		Countries:        s.Countries,
		CountriesLoading: s.CountriesLoading,
		CountriesErr:     s.CountriesErr,
	}
}

// dashboardVM is the full page.
type dashboardVM struct {
	viewdata.BaseVM
	panelVM

	Picker pickerVM
	From   string
	To     string
}

func newPanelVM(s dashstate.State) panelVM {
	vm := panelVM{
		Phase:            s.Phase.String(),
		Loading:          s.Phase == dashstate.LoadingTimeline,
		Ready:            s.Ready(),
		Country:          s.Country,
		CountryName:      countryName(s.Countries, s.Country),
		Stale:            s.Stale(),
		Cards:            presenter.Cards(s.Totals),
		LineTitle:        presenter.LineChartTitle,
		ProportionTitle:  presenter.ProportionTitle,
		ChartKey:         fmt.Sprintf("%d-%s-%s", s.LatestRequest, s.Range.From, s.Range.To),
		TimelineErr:      s.TimelineErr,
		CountriesErr:     s.CountriesErr,
		CountriesLoading: s.CountriesLoading,
	}
	return vm
}

func countryName(countries []models.Country, code string) string {
	for _, c := range countries {
		if c.Code2 == code {
			return c.CommonName
		}
	}
	return code
}

// rangeJSON is a DateRange as YYYY-MM-DD strings.
type rangeJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// stateJSON is the GET /dashboard/state.json body.
type stateJSON struct {
	Phase            dashstate.Phase        `json:"phase"`
	Country          string                 `json:"country"`
	TimelineCountry  string                 `json:"timeline_country,omitempty"`
	RequestID        uint64                 `json:"request_id"`
	Range            rangeJSON              `json:"range"`
	Delta            *models.DeltaTimeline  `json:"delta"`
	Totals           *models.Totals         `json:"totals"`
	Cards            []presenter.CardVM     `json:"cards"`
	LineChart        presenter.LineChartVM  `json:"line_chart"`
	Proportion       presenter.ProportionVM `json:"proportion"`
	TimelineError    string                 `json:"timeline_error,omitempty"`
	CountriesLoading bool                   `json:"countries_loading"`
	CountriesError   string                 `json:"countries_error,omitempty"`
	CountryCount     int                    `json:"country_count"`
}

func newStateJSON(s dashstate.State) stateJSON {
	return stateJSON{
		Phase:            s.Phase,
		Country:          s.Country,
		TimelineCountry:  s.TimelineCountry,
		RequestID:        s.LatestRequest,
		Range:            rangeJSON{From: s.Range.From.String(), To: s.Range.To.String()},
		Delta:            s.Delta,
		Totals:           s.Totals,
		Cards:            presenter.Cards(s.Totals),
		LineChart:        presenter.LineChart(s.Delta),
		Proportion:       presenter.Proportion(s.Totals),
		TimelineError:    s.TimelineErr,
		CountriesLoading: s.CountriesLoading,
		CountriesError:   s.CountriesErr,
		CountryCount:     len(s.Countries),
	}
}
