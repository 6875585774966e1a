// internal/domain/models/country.go
package models

// Country is a selectable country as reported by the country source.
// Code2 (ISO alpha-2) is the value used to request a timeline; Code3 is
// accepted as a search term in the selector.
type Country struct {
	CommonName string `json:"common_name"`
	Code2      string `json:"cca2"`
	Code3      string `json:"cca3"`
}
