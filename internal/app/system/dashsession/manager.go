package dashsession

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/stratacovid/internal/app/system/dashstate"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config controls new sessions.
type Config struct {
	Defaults dashstate.Defaults
	// LastDays is passed to every timeline fetch; <= 0 means full history.
	LastDays     int
	FetchTimeout time.Duration
}

// Manager holds every live session in memory. Nothing is persisted.
type Manager struct {
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger
	events  EventFunc
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option customizes a Manager.
type Option func(*Manager)

// WithEvents registers fn for dashboard events.
func WithEvents(fn EventFunc) Option {
	return func(m *Manager) { m.events = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty Manager.
func NewManager(f Fetcher, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	m := &Manager{
		fetcher:  f,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns the session with id, creating it (and kicking off its
// initial fetches) when id is empty or unknown. The returned session's
// idle clock is reset.
func (m *Manager) Open(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && id != "" {
		s.mu.Lock()
		s.lastSeen = m.now()
		s.mu.Unlock()
		return s
	}

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	s := m.newSession(id)
	m.sessions[id] = s
	m.logger.Debug("dashboard session opened", zap.String("session", id))
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) newSession(id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		m:        m,
		lastSeen: m.now(),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, cmd := dashstate.Init(m.cfg.Defaults)
	s.state = state
	s.run(cmd)
	return s
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes and forgets sessions not opened within idle. It returns
// how many were removed.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		expired := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if !expired {
			continue
		}
		s.Close()
		delete(m.sessions, id)
		removed++
	}
	return removed
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
