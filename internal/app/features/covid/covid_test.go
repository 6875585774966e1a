package covid

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	errorsfeature "github.com/dalemusser/stratacovid/internal/app/features/errors"
	"github.com/dalemusser/stratacovid/internal/app/system/dashsession"
	"github.com/dalemusser/stratacovid/internal/app/system/dashstate"
	"github.com/dalemusser/stratacovid/internal/domain/models"
	"github.com/dalemusser/stratacovid/internal/testutil"
	"go.uber.org/zap"
)

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type stubFetcher struct {
	countries  []models.Country
	countryErr error
	timelines  map[string]*models.CumulativeTimeline
}

func (f *stubFetcher) FetchCountries(context.Context) ([]models.Country, error) {
	return f.countries, f.countryErr
}

func (f *stubFetcher) FetchHistoricalTimeline(_ context.Context, code string, _ int) (*models.CumulativeTimeline, error) {
	tl, ok := f.timelines[code]
	if !ok {
		return nil, errors.New("Failed to fetch timeline for " + code + ": 500 Internal Server Error")
	}
	return tl, nil
}

func newStub() *stubFetcher {
	return &stubFetcher{
		countries: []models.Country{
			{CommonName: "India", Code2: "IN", Code3: "IND"},
			{CommonName: "United States", Code2: "US", Code3: "USA"},
		},
		timelines: map[string]*models.CumulativeTimeline{
			"IN": {
				Cases:     models.Series{day("2020-01-01"): 100, day("2020-01-02"): 150, day("2020-01-05"): 210},
				Deaths:    models.Series{day("2020-01-01"): 1, day("2020-01-02"): 3, day("2020-01-05"): 4},
				Recovered: models.Series{day("2020-01-01"): 10, day("2020-01-02"): 20, day("2020-01-05"): 50},
			},
		},
	}
}

type fixture struct {
	h       *Handler
	router  http.Handler
	manager *dashsession.Manager
	session *dashsession.Session
}

func setup(t *testing.T, f dashsession.Fetcher) *fixture {
	t.Helper()
	fx := newFixture(t, f)
	fx.wait(t)
	return fx
}

// newFixture opens a session without waiting for its initial fetches.
func newFixture(t *testing.T, f dashsession.Fetcher) *fixture {
	t.Helper()
	testutil.MustBootTemplates(t)

	m := dashsession.NewManager(f, dashsession.Config{
		Defaults: dashstate.Defaults{Range: models.DateRange{From: day("2019-01-01"), To: day("2022-01-01")}},
	}, zap.NewNop())
	t.Cleanup(m.Close)

	logger := zap.NewNop()
	h := NewHandler(errorsfeature.NewErrorLogger(logger), errorsfeature.NewHandler(), logger)
	return &fixture{h: h, router: Routes(h), manager: m, session: m.Open("")}
}

func (fx *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fx.session.Wait(ctx); err != nil {
		t.Fatalf("session did not settle: %v", err)
	}
}

func (fx *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func (fx *fixture) post(t *testing.T, target string, form url.Values, htmx bool) *testutil.ResponseRecorder {
	t.Helper()
	req := testutil.NewFormRequest(target, form, fx.session)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := fx.do(req)
	fx.wait(t)
	return rec
}

func (fx *fixture) state(t *testing.T) stateJSON {
	t.Helper()
	rec := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/state.json?wait=1", fx.session))
	rec.AssertStatus(t, http.StatusOK)
	var st struct {
		stateJSON
		Phase string `json:"phase"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	out := st.stateJSON
	switch st.Phase {
	case "loading_timeline":
		out.Phase = dashstate.LoadingTimeline
	case "timeline_ready":
		out.Phase = dashstate.TimelineReady
	default:
		out.Phase = dashstate.NoCountrySelected
	}
	return out
}

func TestServeRoot(t *testing.T) {
	fx := setup(t, newStub())
	rec := fx.do(testutil.NewRequest(http.MethodGet, "/"))
	rec.AssertRedirect(t, "/dashboard")
}

func TestServeDashboard(t *testing.T) {
	fx := setup(t, newStub())

	rec := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard", fx.session))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Select a country to see its statistics.")
	rec.AssertContains(t, `data-cca3="IND"`)
	rec.AssertContains(t, `value="2019-01-01"`)
	rec.AssertContains(t, "Total Cases")
}

func TestServeDashboardWithoutSession(t *testing.T) {
	fx := setup(t, newStub())

	rec := fx.do(testutil.NewRequest(http.MethodGet, "/dashboard"))
	rec.AssertStatus(t, http.StatusInternalServerError)
}

func TestSelectCountry(t *testing.T) {
	fx := setup(t, newStub())

	rec := fx.post(t, "/dashboard/country", url.Values{"country": {"in"}}, false)
	rec.AssertRedirect(t, "/dashboard")

	st := fx.state(t)
	if st.Phase != dashstate.TimelineReady {
		t.Fatalf("phase = %v, want timeline_ready", st.Phase)
	}
	if st.Country != "IN" {
		t.Errorf("country = %q, want IN", st.Country)
	}
	want := models.Totals{TotalCases: 110, TotalDeaths: 3, TotalRecovered: 40}
	if st.Totals == nil || *st.Totals != want {
		t.Errorf("totals = %+v, want %+v", st.Totals, want)
	}
	if len(st.Cards) != 3 || st.Cards[1].Percentage != "36.36" {
		t.Errorf("cards = %+v", st.Cards)
	}

	page := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard", fx.session))
	page.AssertContains(t, "<h2>India</h2>")
}

func TestSelectCountryHTMXReturnsPanel(t *testing.T) {
	fx := setup(t, newStub())

	rec := fx.post(t, "/dashboard/country", url.Values{"country": {"IN"}}, true)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `id="panel"`)
	if strings.Contains(rec.Body.String(), "<html") {
		t.Error("htmx response should be the panel only")
	}
}

func TestSelectCountryRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		country string
		htmx    bool
		want    string
	}{
		{"empty", "", false, "Country is required."},
		{"digits", "12", false, "Country must be a two-letter country code."},
		{"three letters", "IND", true, "Country must be a two-letter country code."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t, newStub())
			rec := fx.post(t, "/dashboard/country", url.Values{"country": {tt.country}}, tt.htmx)
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, tt.want)

			if st := fx.session.Snapshot(); st.LatestRequest != 0 {
				t.Errorf("invalid input issued a fetch (request %d)", st.LatestRequest)
			}
		})
	}
}

func TestSelectCountryUpstreamFailure(t *testing.T) {
	fx := setup(t, newStub())

	fx.post(t, "/dashboard/country", url.Values{"country": {"IN"}}, false)
	fx.post(t, "/dashboard/country", url.Values{"country": {"ZZ"}}, false)

	st := fx.state(t)
	if !strings.Contains(st.TimelineError, "500 Internal Server Error") {
		t.Errorf("timeline_error = %q", st.TimelineError)
	}
	// The previous timeline stays on screen.
	if st.TimelineCountry != "IN" || st.Totals == nil || st.Totals.TotalCases != 110 {
		t.Errorf("held timeline lost: country=%q totals=%+v", st.TimelineCountry, st.Totals)
	}

	panel := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/panel", fx.session))
	panel.AssertContains(t, "500 Internal Server Error")
}

func TestChangeRange(t *testing.T) {
	fx := setup(t, newStub())
	fx.post(t, "/dashboard/country", url.Values{"country": {"IN"}}, false)

	rec := fx.post(t, "/dashboard/range", url.Values{"from": {"2020-01-02"}, "to": {"2020-01-05"}}, false)
	rec.AssertRedirect(t, "/dashboard")

	st := fx.state(t)
	if st.Range.From != "2020-01-02" || st.Range.To != "2020-01-05" {
		t.Errorf("range = %+v", st.Range)
	}
	want := models.Totals{TotalCases: 60, TotalDeaths: 1, TotalRecovered: 30}
	if st.Totals == nil || *st.Totals != want {
		t.Errorf("totals = %+v, want %+v", st.Totals, want)
	}
	if st.RequestID != 1 {
		t.Errorf("range change issued a fetch: request_id = %d", st.RequestID)
	}
}

func TestChangeRangeInvertedIsSwapped(t *testing.T) {
	fx := setup(t, newStub())

	fx.post(t, "/dashboard/range", url.Values{"from": {"2021-06-01"}, "to": {"2020-06-01"}}, false)
	st := fx.state(t)
	if st.Range.From != "2020-06-01" || st.Range.To != "2021-06-01" {
		t.Errorf("range = %+v, want swapped", st.Range)
	}
}

func TestChangeRangeRejectsBadDate(t *testing.T) {
	fx := setup(t, newStub())

	rec := fx.post(t, "/dashboard/range", url.Values{"from": {"01/02/2020"}, "to": {"2020-01-05"}}, false)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "Start date must be a date in YYYY-MM-DD form.")
}

func TestListCountries(t *testing.T) {
	fx := setup(t, newStub())

	tests := []struct {
		q    string
		want int
	}{
		{"", 2},
		{"usa", 1},
		{"ind", 1},
		{"zzz", 0},
	}
	for _, tt := range tests {
		rec := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/countries?q="+url.QueryEscape(tt.q), fx.session))
		rec.AssertStatus(t, http.StatusOK)
		var body struct {
			Countries []models.Country `json:"countries"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("q=%q: decode: %v", tt.q, err)
		}
		if len(body.Countries) != tt.want {
			t.Errorf("q=%q: got %d countries, want %d", tt.q, len(body.Countries), tt.want)
		}
	}
}

func TestListCountriesUpstreamFailure(t *testing.T) {
	f := newStub()
	f.countries = nil
	f.countryErr = errors.New("Failed to fetch countries: 503 Service Unavailable")
	fx := setup(t, f)

	rec := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/countries", fx.session))
	rec.AssertStatus(t, http.StatusBadGateway)
	rec.AssertContains(t, "503 Service Unavailable")
}

func TestReloadCountries(t *testing.T) {
	f := newStub()
	f.countryErr = errors.New("Failed to fetch countries: 503 Service Unavailable")
	fx := setup(t, f)

	page := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard", fx.session))
	page.AssertContains(t, "Retry loading countries")

	f.countryErr = nil
	rec := fx.post(t, "/dashboard/countries/reload", nil, false)
	rec.AssertRedirect(t, "/dashboard")

	if st := fx.session.Snapshot(); st.CountriesErr != "" || len(st.Countries) != 2 {
		t.Errorf("countries not reloaded: err=%q n=%d", st.CountriesErr, len(st.Countries))
	}
}

func TestCharts(t *testing.T) {
	fx := setup(t, newStub())
	fx.post(t, "/dashboard/country", url.Values{"country": {"IN"}}, false)

	for _, p := range []string{"/dashboard/chart/timeline.png", "/dashboard/chart/proportion.png"} {
		t.Run(p, func(t *testing.T) {
			rec := fx.do(testutil.NewDashboardRequest(http.MethodGet, p, fx.session))
			rec.AssertStatus(t, http.StatusOK)
			rec.AssertContentType(t, "image/png")
			if _, err := png.Decode(rec.Body); err != nil {
				t.Errorf("not a PNG: %v", err)
			}
		})
	}
}

// gatedFetcher holds FetchCountries until release is closed.
type gatedFetcher struct {
	*stubFetcher
	release chan struct{}
}

func (f *gatedFetcher) FetchCountries(ctx context.Context) ([]models.Country, error) {
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.stubFetcher.FetchCountries(ctx)
}

func TestCountriesArriveAfterFirstPage(t *testing.T) {
	tests := []struct {
		name       string
		countryErr error
		want       string
	}{
		{"loaded", nil, `data-cca3="IND"`},
		{"failed", errors.New("Failed to fetch countries: 503 Service Unavailable"), "Retry loading countries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			stub.countryErr = tt.countryErr
			if tt.countryErr != nil {
				stub.countries = nil
			}
			f := &gatedFetcher{stubFetcher: stub, release: make(chan struct{})}
			fx := newFixture(t, f)

			page := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard", fx.session))
			page.AssertStatus(t, http.StatusOK)
			page.AssertContains(t, "Loading countries…")
			page.AssertContains(t, `hx-get="/dashboard/panel?picker=1"`)
			if strings.Contains(page.Body.String(), `data-cca3="IND"`) {
				t.Fatal("countries listed before they loaded")
			}

			// Still loading: keep polling, no picker yet.
			early := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/panel?picker=1", fx.session))
			early.AssertContains(t, `hx-trigger="every 1s"`)
			if strings.Contains(early.Body.String(), `hx-swap-oob`) {
				t.Error("picker swapped while countries were still loading")
			}

			close(f.release)
			fx.wait(t)

			panel := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/panel?picker=1", fx.session))
			panel.AssertStatus(t, http.StatusOK)
			panel.AssertContains(t, `id="country-picker" hx-swap-oob="true"`)
			panel.AssertContains(t, tt.want)
			if strings.Contains(panel.Body.String(), `hx-trigger="every 1s"`) {
				t.Error("panel still polling after countries settled")
			}
		})
	}
}

func TestServePanelWithoutPickerFlag(t *testing.T) {
	fx := setup(t, newStub())

	rec := fx.do(testutil.NewDashboardRequest(http.MethodGet, "/dashboard/panel", fx.session))
	rec.AssertStatus(t, http.StatusOK)
	if strings.Contains(rec.Body.String(), "country-picker") {
		t.Error("picker sent without being asked for")
	}
}
