// Package usagestats records dashboard activity and upstream call
// outcomes into daily usage counters.
//
// Recording never blocks the caller: records go into a bounded buffer
// drained by one goroutine, and are dropped when the buffer is full.
// Store failures are logged and otherwise ignored.
package usagestats

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	usagestore "github.com/dalemusser/stratacovid/internal/app/store/usage"
	"github.com/dalemusser/stratacovid/internal/app/system/dashsession"
	"github.com/dalemusser/stratacovid/internal/app/system/gateway"
	"go.uber.org/zap"
)

// Sink persists counters. *usagestore.Store satisfies it.
type Sink interface {
	IncrementCounters(ctx context.Context, date time.Time, statType string, counters map[string]int64) error
	SetGauge(ctx context.Context, date time.Time, statType, gauge string, value float64) error
}

// StatTypeHTTP groups the request counters kept by Middleware.
const StatTypeHTTP = "http"

// Gauge names.
const GaugeTimelineLatency = "timeline_latency_ms"

type record struct {
	at       time.Time
	statType string
	counters map[string]int64
	gauge    string
	value    float64
}

// Recorder buffers records for the Sink.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration

	ch      chan record
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewRecorder starts a Recorder with room for buffer pending records.
func NewRecorder(sink Sink, logger *zap.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		timeout: 5 * time.Second,
		ch:      make(chan record, buffer),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Dropped returns how many records were discarded because the buffer was
// full or the recorder was closed.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// CountryCounter names the per-country selection counter, e.g. "country_IN".
func CountryCounter(code string) string {
	return "country_" + strings.ToUpper(strings.TrimSpace(code))
}

// Event records a dashboard event. Its signature matches
// dashsession.EventFunc.
func (r *Recorder) Event(event, country string) {
	counters := map[string]int64{event: 1}
	if event == dashsession.EventCountrySelected && country != "" {
		counters[CountryCounter(country)] = 1
	}
	r.enqueue(record{statType: usagestore.TypeDashboard, counters: counters})
}

// Upstream records one gateway call. Its signature matches
// gateway.Observer.
func (r *Recorder) Upstream(call gateway.Call) {
	outcome := "_ok"
	if call.Err != nil {
		outcome = "_err"
	}
	rec := record{
		statType: usagestore.TypeUpstream,
		counters: map[string]int64{string(call.Kind) + outcome: 1},
	}
	if call.Kind == gateway.KindTimeline && call.Err == nil {
		rec.gauge = GaugeTimelineLatency
		rec.value = float64(call.Duration.Milliseconds())
	}
	r.enqueue(rec)
}

// Middleware counts requests and error responses under StatTypeHTTP.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, req)

		counters := map[string]int64{"requests": 1}
		if wrapped.statusCode >= 500 {
			counters["errors_5xx"] = 1
		} else if wrapped.statusCode >= 400 {
			counters["errors_4xx"] = 1
		}
		r.enqueue(record{statType: StatTypeHTTP, counters: counters})
	})
}

func (r *Recorder) enqueue(rec record) {
	rec.at = r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- rec:
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("usage stats buffer full, dropping records", zap.Int64("dropped", r.dropped.Load()))
		}
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for rec := range r.ch {
		r.write(rec)
	}
}

func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.IncrementCounters(ctx, rec.at, rec.statType, rec.counters); err != nil {
		r.logger.Error("failed to record usage stats",
			zap.String("stat_type", rec.statType),
			zap.Error(err))
	}
	if rec.gauge == "" {
		return
	}
	if err := r.sink.SetGauge(ctx, rec.at, rec.statType, rec.gauge, rec.value); err != nil {
		r.logger.Error("failed to record usage gauge",
			zap.String("stat_type", rec.statType),
			zap.String("gauge", rec.gauge),
			zap.Error(err))
	}
}

// Close stops accepting records and waits, until ctx is done, for the
// buffer to drain.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
