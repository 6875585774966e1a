// Package websession binds each browser to its dashboard session through a
// signed cookie that carries only the dashboard session id.
package websession

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratacovid/internal/app/system/dashsession"
	"github.com/dalemusser/stratacovid/internal/app/system/network"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// DefaultName is the cookie name used when none is configured.
const DefaultName = "stratacovid-session"

const dashboardIDKey = "dashboard_id"

// Cookie error classification for logging.
type cookieErrorType int

const (
	cookieErrUnknown   cookieErrorType = iota
	cookieErrExpired                   // timestamp expired
	cookieErrTampered                  // MAC invalid
	cookieErrCorrupted                 // decode failed, or the key rotated
	cookieErrBackend
)

// Opener opens dashboard sessions by id. *dashsession.Manager satisfies it.
type Opener interface {
	Open(id string) *dashsession.Session
}

// Manager owns the cookie store.
type Manager struct {
	store  *sessions.CookieStore
	logger *zap.Logger
	name   string
}

// ConfigError is returned when the cookie configuration is unusable.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// New creates a Manager.
//
// sessionKey signs the cookie and must be at least 32 characters when
// secure is set. An empty name falls back to DefaultName.
func New(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*Manager, error) {
	if sessionKey == "" {
		return nil, &ConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}

	weak := len(sessionKey) < 32 || isDefaultKey(sessionKey)
	if secure && weak {
		return nil, &ConfigError{
			Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
		}
	}
	if weak {
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = DefaultName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session cookie configured",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain))

	return &Manager{store: store, logger: logger, name: name}, nil
}

// Name returns the cookie name.
func (m *Manager) Name() string { return m.name }

type ctxKey string

const dashboardKey ctxKey = "dashboard"

// Current returns the dashboard session attached by Middleware.
func Current(r *http.Request) (*dashsession.Session, bool) {
	s, ok := r.Context().Value(dashboardKey).(*dashsession.Session)
	return s, ok
}

// WithSession attaches s to r. Used by Middleware and by tests.
func WithSession(r *http.Request, s *dashsession.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), dashboardKey, s))
}

// Middleware opens (or creates) the dashboard session named by the
// cookie and attaches it to the request. The cookie is rewritten whenever
// the session id changes.
func (m *Manager) Middleware(o Opener) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.store.Get(r, m.name)
			if err != nil {
				m.logCookieError(r, err)
			}

			id, _ := sess.Values[dashboardIDKey].(string)
			ds := o.Open(id)
			if ds.ID() != id {
				sess.Values[dashboardIDKey] = ds.ID()
				if err := sess.Save(r, w); err != nil {
					m.logger.Error("save session cookie", zap.Error(err))
				}
			}

			next.ServeHTTP(w, WithSession(r, ds))
		})
	}
}

func (m *Manager) logCookieError(r *http.Request, err error) {
	errType, category := classifyCookieError(err)
	switch errType {
	case cookieErrExpired:
		m.logger.Debug("session cookie expired, starting fresh",
			zap.String("category", category),
			zap.String("path", r.URL.Path))
	case cookieErrTampered:
		m.logger.Warn("session cookie MAC validation failed (possible tampering)",
			zap.String("category", category),
			zap.String("path", r.URL.Path),
			zap.String("ip", network.ClientIP(r)),
			zap.String("user_agent", r.UserAgent()))
	case cookieErrCorrupted:
		m.logger.Info("session cookie decode failed, starting fresh",
			zap.String("category", category),
			zap.String("path", r.URL.Path))
	default:
		m.logger.Warn("session cookie error, starting fresh",
			zap.Error(err),
			zap.String("category", category),
			zap.String("path", r.URL.Path))
	}
}

func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range []string{"dev-only", "change-me", "placeholder", "default", "example", "insecure", "test-key", "secret123", "password"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func classifyCookieError(err error) (cookieErrorType, string) {
	if err == nil {
		return cookieErrUnknown, "none"
	}
	scErr, ok := err.(securecookie.Error)
	if !ok {
		return cookieErrBackend, "unknown"
	}
	if !scErr.IsDecode() {
		return cookieErrBackend, "backend"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return cookieErrExpired, "expired"
	case strings.Contains(msg, "mac") || strings.Contains(msg, "hash"):
		return cookieErrTampered, "mac_invalid"
	case strings.Contains(msg, "base64") || strings.Contains(msg, "decode"):
		return cookieErrCorrupted, "decode_failed"
	default:
		return cookieErrCorrupted, "decode_other"
	}
}
