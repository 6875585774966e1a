// internal/app/features/usage/types.go
package usagefeature

import (
	usagestore "github.com/dalemusser/stratacovid/internal/app/store/usage"
	"github.com/dalemusser/stratacovid/internal/app/system/viewdata"
)

// CounterVM is one counter's total in the summary table.
type CounterVM struct {
	Name  string
	Value int64
}

// TypeSummaryVM groups the counters of one stat type.
type TypeSummaryVM struct {
	StatType string
	Counters []CounterVM
}

// SummaryVM is the view model for GET /usage.
type SummaryVM struct {
	viewdata.BaseVM
	StartDate string
	EndDate   string
	Error     string
	Types     []TypeSummaryVM
}

// summaryJSON is the JSON form of the usage summary.
type summaryJSON struct {
	Start  string                      `json:"start"`
	End    string                      `json:"end"`
	Totals map[string]map[string]int64 `json:"totals"`
	Series []usagestore.CounterPoint   `json:"series,omitempty"`
}
