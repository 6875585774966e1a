package usagestats

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	usagestore "github.com/dalemusser/stratacovid/internal/app/store/usage"
	"github.com/dalemusser/stratacovid/internal/app/system/dashsession"
	"github.com/dalemusser/stratacovid/internal/app/system/gateway"
	"github.com/dalemusser/stratacovid/internal/testutil"
	"go.uber.org/zap"
)

type memSink struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
	gauges   map[string]float64
	block    chan struct{}
	err      error
}

func newMemSink() *memSink {
	return &memSink{counters: map[string]map[string]int64{}, gauges: map[string]float64{}}
}

func (s *memSink) IncrementCounters(_ context.Context, _ time.Time, statType string, counters map[string]int64) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[statType] == nil {
		s.counters[statType] = map[string]int64{}
	}
	for k, v := range counters {
		s.counters[statType][k] += v
	}
	return s.err
}

func (s *memSink) SetGauge(_ context.Context, _ time.Time, statType, gauge string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[statType+"."+gauge] = value
	return s.err
}

func (s *memSink) counter(statType, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[statType][name]
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorderEventsAndUpstream(t *testing.T) {
	sink := newMemSink()
	r := NewRecorder(sink, zap.NewNop(), 16)

	r.Event(dashsession.EventCountrySelected, "in")
	r.Event(dashsession.EventCountrySelected, "US")
	r.Event(dashsession.EventStaleDropped, "IN")
	r.Upstream(gateway.Call{Kind: gateway.KindTimeline, Country: "US", Duration: 120 * time.Millisecond})
	r.Upstream(gateway.Call{Kind: gateway.KindTimeline, Country: "ZZ", Err: errors.New("500")})
	r.Upstream(gateway.Call{Kind: gateway.KindCountries})
	closeRecorder(t, r)

	tests := []struct {
		statType, name string
		want           int64
	}{
		{usagestore.TypeDashboard, "country_selected", 2},
		{usagestore.TypeDashboard, "country_IN", 1},
		{usagestore.TypeDashboard, "country_US", 1},
		{usagestore.TypeDashboard, "stale_dropped", 1},
		{usagestore.TypeUpstream, "timeline_ok", 1},
		{usagestore.TypeUpstream, "timeline_err", 1},
		{usagestore.TypeUpstream, "countries_ok", 1},
	}
	for _, tt := range tests {
		if got := sink.counter(tt.statType, tt.name); got != tt.want {
			t.Errorf("%s.%s = %d, want %d", tt.statType, tt.name, got, tt.want)
		}
	}
	if got := sink.gauges[usagestore.TypeUpstream+"."+GaugeTimelineLatency]; got != 120 {
		t.Errorf("latency gauge = %v", got)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := newMemSink()
	sink.block = make(chan struct{})
	r := NewRecorder(sink, zap.NewNop(), 1)

	// The worker takes one record and blocks; one more fills the buffer.
	for i := 0; i < 10; i++ {
		r.Event(dashsession.EventRangeChanged, "")
	}
	if r.Dropped() == 0 {
		t.Error("expected dropped records")
	}
	close(sink.block)
	closeRecorder(t, r)

	r.Event(dashsession.EventRangeChanged, "")
	if r.Dropped() == 0 {
		t.Error("records after Close should be dropped")
	}
}

func TestRecorderSinkErrorsAreSwallowed(t *testing.T) {
	sink := newMemSink()
	sink.err = errors.New("mongo down")
	r := NewRecorder(sink, zap.NewNop(), 4)
	r.Upstream(gateway.Call{Kind: gateway.KindCountries, Err: errors.New("503")})
	closeRecorder(t, r)
	if sink.counter(usagestore.TypeUpstream, "countries_err") != 1 {
		t.Error("record not attempted")
	}
}

func TestMiddleware(t *testing.T) {
	sink := newMemSink()
	r := NewRecorder(sink, zap.NewNop(), 16)

	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/upstream":
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	for _, p := range []string{"/dashboard", "/missing", "/upstream"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	closeRecorder(t, r)

	if got := sink.counter(StatTypeHTTP, "requests"); got != 3 {
		t.Errorf("requests = %d", got)
	}
	if sink.counter(StatTypeHTTP, "errors_4xx") != 1 || sink.counter(StatTypeHTTP, "errors_5xx") != 1 {
		t.Errorf("error counters = %v", sink.counters[StatTypeHTTP])
	}
}

func TestRecorderWithMongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usagestore.New(db)
	r := NewRecorder(store, zap.NewNop(), 8)

	r.Event(dashsession.EventCountrySelected, "IN")
	r.Event(dashsession.EventCountrySelected, "IN")
	closeRecorder(t, r)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	now := time.Now()
	totals, err := store.SumCounters(ctx, now.Add(-24*time.Hour), now, usagestore.TypeDashboard)
	if err != nil {
		t.Fatalf("SumCounters: %v", err)
	}
	if totals["country_selected"] != 2 || totals[CountryCounter("IN")] != 2 {
		t.Errorf("totals = %v", totals)
	}

	// The day's document must still decode once a country was counted.
	days, err := store.GetRange(ctx, now, now, usagestore.TypeDashboard)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(days) != 1 || days[0].Counters["country_IN"] != 2 {
		t.Errorf("days = %+v", days)
	}
	series, err := store.GetCounterTimeSeries(ctx, now, now, usagestore.TypeDashboard, CountryCounter("in"))
	if err != nil {
		t.Fatalf("GetCounterTimeSeries: %v", err)
	}
	if len(series) != 1 || series[0].Value != 2 {
		t.Errorf("series = %+v", series)
	}
}
