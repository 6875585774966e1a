// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratacovid/internal/app/system/jsonutil"
	"github.com/dalemusser/stratacovid/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// SessionCounter reports live dashboard sessions. *dashsession.Manager
// satisfies it.
type SessionCounter interface {
	Len() int
}

// Handler serves the health endpoints.
type Handler struct {
	mongo    Pinger
	sessions SessionCounter
	logger   *zap.Logger
}

// NewHandler creates a Handler. sessions may be nil.
func NewHandler(mongo Pinger, sessions SessionCounter, logger *zap.Logger) *Handler {
	return &Handler{mongo: mongo, sessions: sessions, logger: logger}
}

// Response is the /health body.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
	Sessions *int              `json:"dashboard_sessions,omitempty"`
}

// Routes mounts /health, /health/ready and /health/live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the probe endpoints on the root router.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/live", h.Live)
	r.Get("/livez", h.Live)
}

func (h *Handler) ping(ctx context.Context) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Ping(), h.logger, "mongo ping")
	defer cancel()
	return h.mongo.Ping(ctx, readpref.Primary())
}

// Check reports MongoDB reachability and the live session count. Usage
// statistics are the only thing stored in MongoDB, so an unreachable
// database degrades the service rather than failing it.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	resp := Response{Status: "ok", Services: map[string]string{"mongodb": "ok"}}

	if err := h.ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Services["mongodb"] = "unavailable"
		h.logger.Warn("health check: mongodb ping failed", zap.Error(err))
	}
	if h.sessions != nil {
		n := h.sessions.Len()
		resp.Sessions = &n
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	jsonutil.JSON(w, status, resp)
}

// Ready is the readiness probe.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		jsonutil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	jsonutil.OK(w, map[string]string{"status": "ready"})
}

// Live is the liveness probe.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, map[string]string{"status": "alive"})
}
