package dashstate

import (
	"github.com/dalemusser/stratacovid/internal/app/system/normalize"
	"github.com/dalemusser/stratacovid/internal/app/system/timeline"
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

// Msg is an input to Update.
type Msg interface{ isMsg() }

// SelectCountry picks a country and starts loading its timeline.
// Selecting the current country again reloads it.
type SelectCountry struct{ Code string }

// ChangeRange replaces the visible date range. It never fetches.
type ChangeRange struct{ Range models.DateRange }

// TimelineLoaded delivers a fetched timeline.
type TimelineLoaded struct {
	RequestID uint64
	Country   string
	Timeline  *models.CumulativeTimeline
}

// TimelineFailed delivers a failed timeline fetch.
type TimelineFailed struct {
	RequestID uint64
	Country   string
	Err       string
}

// LoadCountries (re)loads the country list.
type LoadCountries struct{}

// CountriesLoaded delivers the country list.
type CountriesLoaded struct{ Countries []models.Country }

// CountriesFailed delivers a failed country list fetch.
type CountriesFailed struct{ Err string }

func (SelectCountry) isMsg()   {}
func (ChangeRange) isMsg()     {}
func (TimelineLoaded) isMsg()  {}
func (TimelineFailed) isMsg()  {}
func (LoadCountries) isMsg()   {}
func (CountriesLoaded) isMsg() {}
func (CountriesFailed) isMsg() {}

// Cmd is work Update asks the caller to perform. A nil Cmd means none.
type Cmd interface{ isCmd() }

// FetchTimeline asks for the timeline of Country. The result must be
// reported back with the same RequestID.
type FetchTimeline struct {
	RequestID uint64
	Country   string
}

// FetchCountries asks for the country list.
type FetchCountries struct{}

// Batch groups several commands.
type Batch []Cmd

func (FetchTimeline) isCmd()  {}
func (FetchCountries) isCmd() {}
func (Batch) isCmd()          {}

// Init returns the initial state and the commands that populate it.
func Init(d Defaults) (State, Cmd) {
	s := State{
		Phase: NoCountrySelected,
		Range: d.Range.Normalized(),
	}
	s, cmd := Update(s, LoadCountries{})
	if code := normalizeCode(d.Country); code != "" {
		var fetch Cmd
		s, fetch = Update(s, SelectCountry{Code: code})
		cmd = Batch{cmd, fetch}
	}
	return s, cmd
}

// Update applies msg to s.
func Update(s State, msg Msg) (State, Cmd) {
	switch m := msg.(type) {
	case SelectCountry:
		code := normalizeCode(m.Code)
		if code == "" {
			return s, nil
		}
		s.Country = code
		s.LatestRequest++
		s.Phase = LoadingTimeline
		s.TimelineErr = ""
		return s, FetchTimeline{RequestID: s.LatestRequest, Country: code}

	case TimelineLoaded:
		if m.RequestID != s.LatestRequest {
			return s, nil
		}
		s.Timeline = m.Timeline
		s.TimelineCountry = m.Country
		s.TimelineErr = ""
		s.Phase = TimelineReady
		return derive(s), nil

	case TimelineFailed:
		if m.RequestID != s.LatestRequest {
			return s, nil
		}
		s.TimelineErr = m.Err
		if s.Timeline != nil {
			s.Phase = TimelineReady
		} else {
			s.Phase = NoCountrySelected
		}
		return s, nil

	case ChangeRange:
		s.Range = m.Range.Normalized()
		return derive(s), nil

	case LoadCountries:
		s.CountriesLoading = true
		s.CountriesErr = ""
		return s, FetchCountries{}

	case CountriesLoaded:
		s.Countries = m.Countries
		s.CountriesLoading = false
		s.CountriesErr = ""
		return s, nil

	case CountriesFailed:
		s.CountriesLoading = false
		s.CountriesErr = m.Err
		return s, nil
	}
	return s, nil
}

// derive recomputes Delta and Totals from Timeline and Range.
func derive(s State) State {
	if s.Timeline == nil {
		s.Delta, s.Totals = nil, nil
		return s
	}
	rng := s.Range
	s.Delta = timeline.Filter(s.Timeline, &rng)
	s.Totals = timeline.Aggregate(s.Delta)
	return s
}

func normalizeCode(code string) string {
	return normalize.CountryCode(code)
}
