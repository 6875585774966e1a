// internal/app/features/usage/handler.go
package usagefeature

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/stratacovid/internal/app/features/errors"
	usagestore "github.com/dalemusser/stratacovid/internal/app/store/usage"
	"github.com/dalemusser/stratacovid/internal/app/system/inputval"
	"github.com/dalemusser/stratacovid/internal/app/system/jsonutil"
	"github.com/dalemusser/stratacovid/internal/app/system/normalize"
	"github.com/dalemusser/stratacovid/internal/app/system/timeouts"
	"github.com/dalemusser/stratacovid/internal/app/system/usagestats"
	"github.com/dalemusser/stratacovid/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// StatTypes are summarized in this order.
var StatTypes = []string{usagestore.TypeDashboard, usagestore.TypeUpstream, usagestats.StatTypeHTTP}

// Store reads usage counters. *usagestore.Store satisfies it.
type Store interface {
	SumCounters(ctx context.Context, start, end time.Time, statType string) (map[string]int64, error)
	GetCounterTimeSeries(ctx context.Context, start, end time.Time, statType, counter string) ([]usagestore.CounterPoint, error)
}

// Handler serves usage statistics.
type Handler struct {
	Store  Store
	ErrLog *errorsfeature.ErrorLogger
	Log    *zap.Logger
	now    func() time.Time
}

// NewHandler creates a usage handler.
func NewHandler(store Store, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		ErrLog: errLog,
		Log:    logger,
		now:    time.Now,
	}
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// parseRange reads start and end (YYYY-MM-DD). Missing values default to
// the seven days ending today. Field errors are keyed by parameter name.
func (h *Handler) parseRange(r *http.Request) (start, end time.Time, fields map[string]string) {
	end = h.now().UTC()
	start = end.AddDate(0, 0, -7)
	fields = map[string]string{}

	for name, dst := range map[string]*time.Time{"start": &start, "end": &end} {
		v := normalize.Field(r.URL.Query().Get(name))
		if v == "" {
			continue
		}
		if !inputval.IsValidISODate(v) {
			fields[name] = strings.ToUpper(name[:1]) + name[1:] + " must be a date in YYYY-MM-DD form."
			continue
		}
		t, _ := time.Parse(dateLayout, v)
		*dst = t
	}
	if start.After(end) {
		start, end = end, start
	}
	return start, end, fields
}

// ServeSummary handles GET /usage. It renders a page, or JSON when asked
// with format=json or an Accept header. With type and counter set, the
// JSON also carries that counter's daily series.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	start, end, fields := h.parseRange(r)
	asJSON := wantsJSON(r)

	vm := SummaryVM{
		BaseVM:    viewdata.NewBaseVM(r, "Usage", "/dashboard"),
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}
	if len(fields) > 0 {
		if asJSON {
			jsonutil.ValidationError(w, fields)
			return
		}
		for _, k := range []string{"start", "end"} {
			if msg, ok := fields[k]; ok {
				vm.Error = msg
				break
			}
		}
		w.WriteHeader(http.StatusBadRequest)
		templates.Render(w, r, "usage/summary", vm)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Query(), h.Log, "usage summary")
	defer cancel()

	totals := make(map[string]map[string]int64, len(StatTypes))
	for _, st := range StatTypes {
		sums, err := h.Store.SumCounters(ctx, start, end, st)
		if err != nil {
			h.ErrLog.LogWithFields(r, "failed to sum usage counters", err, zap.String("stat_type", st))
			if asJSON {
				jsonutil.InternalError(w, "failed to load usage stats")
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		totals[st] = sums
	}

	if asJSON {
		out := summaryJSON{Start: vm.StartDate, End: vm.EndDate, Totals: totals}
		statType, counter := r.URL.Query().Get("type"), r.URL.Query().Get("counter")
		if statType != "" && counter != "" {
			series, err := h.Store.GetCounterTimeSeries(ctx, start, end, statType, counter)
			if err != nil {
				h.ErrLog.Log(r, "failed to load usage series", err)
				jsonutil.InternalError(w, "failed to load usage stats")
				return
			}
			out.Series = series
		}
		jsonutil.OK(w, out)
		return
	}

	for _, st := range StatTypes {
		vm.Types = append(vm.Types, TypeSummaryVM{StatType: st, Counters: sortedCounters(totals[st])})
	}
	templates.Render(w, r, "usage/summary", vm)
}

func sortedCounters(m map[string]int64) []CounterVM {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	out := make([]CounterVM, 0, len(names))
	for _, n := range names {
		out = append(out, CounterVM{Name: n, Value: m[n]})
	}
	return out
}
