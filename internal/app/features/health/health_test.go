package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/stratacovid/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context, *readpref.ReadPref) error { return p.err }

type fixedCount int

func (c fixedCount) Len() int { return int(c) }

func TestHandler_Check(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
		wantMongo  string
	}{
		{"healthy", nil, http.StatusOK, "ok", "ok"},
		{"mongo down", errors.New("no reachable servers"), http.StatusServiceUnavailable, "degraded", "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(fakePinger{err: tt.pingErr}, fixedCount(3), zap.NewNop())
			rec := httptest.NewRecorder()
			h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Services["mongodb"] != tt.wantMongo {
				t.Errorf("resp = %+v", resp)
			}
			if resp.Sessions == nil || *resp.Sessions != 3 {
				t.Errorf("dashboard_sessions = %v", resp.Sessions)
			}
		})
	}
}

func TestHandler_Ready(t *testing.T) {
	h := NewHandler(fakePinger{}, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Errorf("Ready() = %d %q", rec.Code, rec.Body.String())
	}

	h = NewHandler(fakePinger{err: errors.New("down")}, nil, zap.NewNop())
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Ready() with mongo down = %d", rec.Code)
	}
}

func TestHandler_ReadyWithMongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db.Client(), nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Ready() status = %d", rec.Code)
	}
}

func TestMountRootEndpoints(t *testing.T) {
	h := NewHandler(fakePinger{}, nil, zap.NewNop())
	r := chi.NewRouter()
	MountRootEndpoints(r, h)
	r.Mount("/health", Routes(h))

	for _, path := range []string{"/ready", "/readyz", "/live", "/livez", "/health", "/health/ready", "/health/live"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("%s status = %d", path, rec.Code)
			}
		})
	}
}
