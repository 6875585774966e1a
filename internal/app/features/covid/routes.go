// internal/app/features/covid/routes.go
package covid

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the dashboard routes, mounted at the site root.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeRoot)

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", h.ServeDashboard)
		r.Get("/panel", h.ServePanel)
		r.Get("/state.json", h.ServeState)

		r.Post("/country", h.SelectCountry)
		r.Post("/range", h.ChangeRange)

		r.Get("/countries", h.ListCountries)
		r.Post("/countries/reload", h.ReloadCountries)

		r.Get("/chart/timeline.png", h.ServeTimelineChart)
		r.Get("/chart/proportion.png", h.ServeProportionChart)
	})

	return r
}
