package testutil

import (
	"context"
	"net/http"
)

// csrfTokenKey matches the context key gorilla/csrf stores its token under.
const csrfTokenKey = "gorilla.csrf.Token"

// WithCSRFToken puts a fixed CSRF token in the request context so
// handlers that call csrf.Token(r) render without the csrf middleware.
func WithCSRFToken(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), csrfTokenKey, "test-csrf-token-12345")
	return r.WithContext(ctx)
}
