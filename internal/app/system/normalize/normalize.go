// Package normalize holds the canonical cleanup for user-supplied dashboard
// input, so forms, query strings and configuration agree on one spelling.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// CountryCode trims and upper-cases an ISO alpha-2 code ("  in " -> "IN").
func CountryCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Field trims a form or query value.
func Field(s string) string {
	return strings.TrimSpace(s)
}

// SearchKey folds a search query for case- and accent-insensitive matching.
func SearchKey(s string) string {
	return text.Fold(strings.TrimSpace(s))
}
