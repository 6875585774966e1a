// Package dashsession owns live dashboard state for each browser session
// and executes the commands the state machine asks for.
//
// Every Session serializes its transitions behind its own mutex, so
// handlers and fetch completions can call Dispatch from any goroutine.
// Fetches run in the background; a newer timeline fetch cancels the
// previous one, and request ids in dashstate discard anything that still
// slips through.
package dashsession

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/stratacovid/internal/app/system/dashstate"
	"github.com/dalemusser/stratacovid/internal/domain/models"
	"go.uber.org/zap"
)

// Fetcher is the subset of the gateway a session needs.
type Fetcher interface {
	FetchCountries(ctx context.Context) ([]models.Country, error)
	FetchHistoricalTimeline(ctx context.Context, countryCode string, lastDays int) (*models.CumulativeTimeline, error)
}

// Event names passed to an EventFunc.
const (
	EventCountrySelected = "country_selected"
	EventRangeChanged    = "range_changed"
	EventStaleDropped    = "stale_dropped"
)

// EventFunc is told about user-visible transitions. It is called with the
// session lock held and must not block.
type EventFunc func(event, country string)

// Session is one browser's dashboard.
type Session struct {
	id string
	m  *Manager

	mu       sync.Mutex
	state    dashstate.State
	lastSeen time.Time
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc

	cancelTimeline context.CancelFunc

	pending int
	idle    chan struct{}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current state.
func (s *Session) Snapshot() dashstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies msg and starts any resulting fetch.
func (s *Session) Dispatch(msg dashstate.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	switch m := msg.(type) {
	case dashstate.TimelineLoaded:
		if m.RequestID != s.state.LatestRequest {
			s.dropStale(m.RequestID, m.Country)
			return
		}
	case dashstate.TimelineFailed:
		if m.RequestID != s.state.LatestRequest {
			s.dropStale(m.RequestID, m.Country)
			return
		}
	}

	next, cmd := dashstate.Update(s.state, msg)
	s.state = next

	switch msg.(type) {
	case dashstate.SelectCountry:
		if cmd != nil {
			s.emit(EventCountrySelected, next.Country)
		}
	case dashstate.ChangeRange:
		s.emit(EventRangeChanged, next.Country)
	}

	s.run(cmd)
}

// Wait blocks until no fetch is in flight or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.pending == 0 {
			s.mu.Unlock()
			return nil
		}
		ch := s.idle
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels in-flight fetches; later dispatches are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

func (s *Session) dropStale(requestID uint64, country string) {
	s.m.logger.Debug("dropping stale timeline response",
		zap.String("session", s.id),
		zap.String("country", country),
		zap.Uint64("request_id", requestID),
		zap.Uint64("latest_request", s.state.LatestRequest))
	s.emit(EventStaleDropped, country)
}

func (s *Session) emit(event, country string) {
	if s.m.events != nil {
		s.m.events(event, country)
	}
}

// run executes cmd. Caller holds s.mu.
func (s *Session) run(cmd dashstate.Cmd) {
	switch c := cmd.(type) {
	case nil:
	case dashstate.Batch:
		for _, sub := range c {
			s.run(sub)
		}
	case dashstate.FetchTimeline:
		s.fetchTimeline(c)
	case dashstate.FetchCountries:
		s.fetchCountries()
	default:
		s.m.logger.Warn("unknown dashboard command", zap.Any("cmd", cmd))
	}
}

func (s *Session) fetchTimeline(c dashstate.FetchTimeline) {
	if s.cancelTimeline != nil {
		s.cancelTimeline()
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.m.cfg.FetchTimeout)
	s.cancelTimeline = cancel

	s.begin()
	go func() {
		defer s.end()
		defer cancel()

		tl, err := s.m.fetcher.FetchHistoricalTimeline(ctx, c.Country, s.m.cfg.LastDays)
		if err != nil {
			s.Dispatch(dashstate.TimelineFailed{RequestID: c.RequestID, Country: c.Country, Err: err.Error()})
			return
		}
		s.Dispatch(dashstate.TimelineLoaded{RequestID: c.RequestID, Country: c.Country, Timeline: tl})
	}()
}

func (s *Session) fetchCountries() {
	ctx, cancel := context.WithTimeout(s.ctx, s.m.cfg.FetchTimeout)

	s.begin()
	go func() {
		defer s.end()
		defer cancel()

		countries, err := s.m.fetcher.FetchCountries(ctx)
		if err != nil {
			s.Dispatch(dashstate.CountriesFailed{Err: err.Error()})
			return
		}
		s.Dispatch(dashstate.CountriesLoaded{Countries: countries})
	}()
}

// begin records an in-flight fetch. Caller holds s.mu.
func (s *Session) begin() {
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}
