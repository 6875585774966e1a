// internal/app/features/covid/templates.go
package covid

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "covid",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
