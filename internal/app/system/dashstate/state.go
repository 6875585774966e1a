// Package dashstate is the dashboard's state machine.
//
// State is treated as immutable: Update takes the current value and a
// message and returns the next value plus, at most, one command for the
// caller to execute. Update performs no I/O, so every transition can be
// tested without a network or a browser.
//
//	NoCountrySelected --SelectCountry--> LoadingTimeline
//	LoadingTimeline --TimelineLoaded--> TimelineReady
//	TimelineReady --ChangeRange--> TimelineReady (derived data recomputed)
//	TimelineReady --SelectCountry--> LoadingTimeline
//
// Each SelectCountry is tagged with a new request id. Completions carrying
// any other id are stale and ignored, so the last selection always wins.
package dashstate

import (
	"github.com/dalemusser/stratacovid/internal/domain/models"
)

// Phase is the coarse dashboard state.
type Phase int

const (
	NoCountrySelected Phase = iota
	LoadingTimeline
	TimelineReady
)

func (p Phase) String() string {
	switch p {
	case NoCountrySelected:
		return "no_country_selected"
	case LoadingTimeline:
		return "loading_timeline"
	case TimelineReady:
		return "timeline_ready"
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is one dashboard's full state. Slices and maps reachable from a
// State are never modified after the State is returned.
type State struct {
	Phase Phase

	// Country is the most recently selected country code.
	Country string
	Range   models.DateRange

	// Timeline is the last successfully loaded timeline and
	// TimelineCountry the code it was loaded for. A failed fetch leaves
	// both untouched.
	Timeline        *models.CumulativeTimeline
	TimelineCountry string

	// Delta and Totals are derived from Timeline and Range.
	Delta  *models.DeltaTimeline
	Totals *models.Totals

	// TimelineErr is the message of the latest failed timeline fetch.
	TimelineErr string

	// LatestRequest is the id of the most recently issued timeline fetch.
	LatestRequest uint64

	Countries        []models.Country
	CountriesLoading bool
	CountriesErr     string
}

// Defaults seed the initial state.
type Defaults struct {
	Country string
	Range   models.DateRange
}

// Ready reports whether derived data is available for display.
func (s State) Ready() bool {
	return s.Delta != nil && s.Totals != nil
}

// Stale reports whether the held timeline belongs to a different country
// than the one currently selected.
func (s State) Stale() bool {
	return s.Timeline != nil && s.TimelineCountry != s.Country
}
