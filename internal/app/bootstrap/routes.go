// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	covidfeature "github.com/dalemusser/stratacovid/internal/app/features/covid"
	errorsfeature "github.com/dalemusser/stratacovid/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratacovid/internal/app/features/health"
	usagefeature "github.com/dalemusser/stratacovid/internal/app/features/usage"
	appresources "github.com/dalemusser/stratacovid/internal/app/resources"
	usagestore "github.com/dalemusser/stratacovid/internal/app/store/usage"
	"github.com/dalemusser/stratacovid/internal/app/system/network"
	"github.com/dalemusser/stratacovid/internal/app/system/websession"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root router. Startup has already created
// the dashboard session manager and the usage recorder.
//
// Dashboard pages carry a signed session cookie and CSRF protection;
// /health and /assets are served without either.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := coreCfg.Env == "prod"
	webSessions, err := websession.New(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Dev mode reloads templates on each render.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(recorder.Middleware)

	// Cookie name "stratacovid_csrf" keeps clear of other services on the
	// same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratacovid_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("ip", network.ClientIP(req)),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			// A stale page reloads to pick up a fresh token.
			if req.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/dashboard")
				w.WriteHeader(http.StatusForbidden)
				return
			}
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	// ─────────────────────────────────────────────────────────────────────────────
	// Infrastructure
	// ─────────────────────────────────────────────────────────────────────────────

	healthHandler := healthfeature.NewHandler(deps.MongoClient, dashboards, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	// ─────────────────────────────────────────────────────────────────────────────
	// Usage statistics
	// ─────────────────────────────────────────────────────────────────────────────

	usageHandler := usagefeature.NewHandler(usagestore.New(deps.MongoDatabase), errLog, logger)
	r.With(csrfProtect).Mount("/usage", usagefeature.Routes(usageHandler))

	// ─────────────────────────────────────────────────────────────────────────────
	// Dashboard
	// ─────────────────────────────────────────────────────────────────────────────

	covidHandler := covidfeature.NewHandler(errLog, errorsHandler, logger)
	r.Group(func(dr chi.Router) {
		dr.Use(csrfProtect)
		dr.Use(webSessions.Middleware(dashboards))
		dr.Mount("/", covidfeature.Routes(covidHandler))
	})

	r.NotFound(errorsHandler.NotFound)

	return r, nil
}
