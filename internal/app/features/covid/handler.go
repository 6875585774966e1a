// internal/app/features/covid/handler.go
package covid

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	errorsfeature "github.com/dalemusser/stratacovid/internal/app/features/errors"
	"github.com/dalemusser/stratacovid/internal/app/system/charts"
	"github.com/dalemusser/stratacovid/internal/app/system/dashsession"
	"github.com/dalemusser/stratacovid/internal/app/system/dashstate"
	"github.com/dalemusser/stratacovid/internal/app/system/inputval"
	"github.com/dalemusser/stratacovid/internal/app/system/jsonutil"
	"github.com/dalemusser/stratacovid/internal/app/system/normalize"
	"github.com/dalemusser/stratacovid/internal/app/system/presenter"
	"github.com/dalemusser/stratacovid/internal/app/system/timeouts"
	"github.com/dalemusser/stratacovid/internal/app/system/viewdata"
	"github.com/dalemusser/stratacovid/internal/app/system/websession"
	"github.com/dalemusser/stratacovid/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Handler serves the dashboard. Every route expects the websession
// middleware to have attached a dashboard session.
type Handler struct {
	ErrLog *errorsfeature.ErrorLogger
	Errors *errorsfeature.Handler
	Log    *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(errLog *errorsfeature.ErrorLogger, errs *errorsfeature.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		ErrLog: errLog,
		Errors: errs,
		Log:    logger,
	}
}

var errNoSession = errors.New("no dashboard session on request")

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*dashsession.Session, bool) {
	s, ok := websession.Current(r)
	if !ok {
		h.ErrLog.Log(r, "dashboard request without session", errNoSession)
		h.Errors.InternalError(w, r)
		return nil, false
	}
	return s, true
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// ServeRoot handles GET / by sending the browser to the dashboard.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// ServeDashboard handles GET /dashboard.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.renderPage(w, r, s.Snapshot(), "", http.StatusOK)
}

// ServePanel handles GET /dashboard/panel, the htmx-polled status region.
// A page rendered while countries were loading polls with picker=1; once
// the load settles, the response carries a fresh picker swapped out of band.
func (h *Handler) ServePanel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st := s.Snapshot()
	vm := newPanelVM(st)
	if r.URL.Query().Get("picker") == "1" && !st.CountriesLoading {
		p := newPickerVM(st, viewdata.New(r).CSRFToken)
		p.OOB = true
		vm.OOBPicker = &p
	}
	templates.RenderSnippet(w, "covid/panel", vm)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, st dashstate.State, formErr string, status int) {
	vm := dashboardVM{
		BaseVM:  viewdata.NewBaseVM(r, "Dashboard", "/dashboard"),
		panelVM: newPanelVM(st),
		From:    st.Range.From.String(),
		To:      st.Range.To.String(),
	}
	vm.Picker = newPickerVM(st, vm.CSRFToken)
	vm.FormError = formErr
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	templates.Render(w, r, "covid/dashboard", vm)
}

// respond answers a dashboard POST: htmx gets the fresh panel, a plain
// form post is redirected back to the page.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *dashsession.Session) {
	if isHTMX(r) {
		templates.RenderSnippet(w, "covid/panel", newPanelVM(s.Snapshot()))
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) rejectForm(w http.ResponseWriter, r *http.Request, s *dashsession.Session, msg string) {
	if isHTMX(r) {
		vm := newPanelVM(s.Snapshot())
		vm.FormError = msg
		w.WriteHeader(http.StatusBadRequest)
		templates.RenderSnippet(w, "covid/panel", vm)
		return
	}
	h.renderPage(w, r, s.Snapshot(), msg, http.StatusBadRequest)
}

// SelectCountry handles POST /dashboard/country.
func (h *Handler) SelectCountry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	in := countryInput{Country: normalize.Field(r.FormValue("country"))}
	if res := inputval.Validate(in); res.HasErrors() {
		h.rejectForm(w, r, s, res.First())
		return
	}

	s.Dispatch(dashstate.SelectCountry{Code: in.Country})
	h.respond(w, r, s)
}

// ChangeRange handles POST /dashboard/range. No fetch is made; the held
// timeline is re-filtered.
func (h *Handler) ChangeRange(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	in := rangeInput{
		From: normalize.Field(r.FormValue("from")),
		To:   normalize.Field(r.FormValue("to")),
	}
	if res := inputval.Validate(in); res.HasErrors() {
		h.rejectForm(w, r, s, res.First())
		return
	}
	from, _ := civil.ParseDate(in.From)
	to, _ := civil.ParseDate(in.To)

	s.Dispatch(dashstate.ChangeRange{Range: models.DateRange{From: from, To: to}})
	h.respond(w, r, s)
}

// ReloadCountries handles POST /dashboard/countries/reload.
func (h *Handler) ReloadCountries(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Dispatch(dashstate.LoadCountries{})
	if isHTMX(r) {
		// The selector lives outside the panel.
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// ListCountries handles GET /dashboard/countries?q=, the selector's
// search as JSON.
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	st := s.Snapshot()
	if len(st.Countries) == 0 && st.CountriesErr != "" {
		jsonutil.UpstreamError(w, st.CountriesErr)
		return
	}
	matches := presenter.FilterCountries(st.Countries, r.URL.Query().Get("q"))
	if matches == nil {
		matches = []models.Country{}
	}
	jsonutil.OK(w, map[string]any{
		"loading":   st.CountriesLoading,
		"countries": matches,
	})
}

// ServeState handles GET /dashboard/state.json. With wait=1 it first
// waits, up to the poll timeout, for in-flight fetches to settle.
func (h *Handler) ServeState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("wait") == "1" {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Poll())
		err := s.Wait(ctx)
		cancel()
		if err != nil {
			h.Log.Debug("state wait ended before fetches settled",
				zap.String("session", s.ID()),
				zap.Error(err))
		}
	}
	jsonutil.OK(w, newStateJSON(s.Snapshot()))
}

// ServeTimelineChart handles GET /dashboard/chart/timeline.png.
func (h *Handler) ServeTimelineChart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	vm := presenter.LineChart(s.Snapshot().Delta)
	h.writePNG(w, r, "timeline", func(buf *bytes.Buffer) error {
		return charts.RenderLine(buf, vm)
	})
}

// ServeProportionChart handles GET /dashboard/chart/proportion.png.
func (h *Handler) ServeProportionChart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	vm := presenter.Proportion(s.Snapshot().Totals)
	h.writePNG(w, r, "proportion", func(buf *bytes.Buffer) error {
		return charts.RenderProportion(buf, vm)
	})
}

// writePNG renders into a buffer first so a failed render can still get
// a clean error response.
func (h *Handler) writePNG(w http.ResponseWriter, r *http.Request, name string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.ErrLog.LogWithFields(r, "chart render failed", err, zap.String("chart", name))
		http.Error(w, "chart unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
