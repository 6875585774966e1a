// internal/app/features/usage/routes.go
package usagefeature

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the usage feature.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeSummary)
	return r
}
