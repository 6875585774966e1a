// Package timeouts holds the timeout values shared by handlers, jobs and
// the upstream gateway.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults, used until Configure is called.
const (
	DefaultPing     = 2 * time.Second
	DefaultQuery    = 10 * time.Second
	DefaultPoll     = 25 * time.Second
	DefaultUpstream = 30 * time.Second
)

var mu sync.RWMutex

var (
	ping     = DefaultPing
	query    = DefaultQuery
	poll     = DefaultPoll
	upstream = DefaultUpstream
)

// Ping bounds health check round trips.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Query bounds a single usage store read or write.
func Query() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return query
}

// Poll bounds how long a state request waits for in-flight fetches.
func Poll() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return poll
}

// Upstream bounds one call to the countries or historical API.
func Upstream() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return upstream
}

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping     time.Duration
	Query    time.Duration
	Poll     time.Duration
	Upstream time.Duration
}

// Configure sets the non-zero values in cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Query > 0 {
		query = cfg.Query
	}
	if cfg.Poll > 0 {
		poll = cfg.Poll
	}
	if cfg.Upstream > 0 {
		upstream = cfg.Upstream
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	query = DefaultQuery
	poll = DefaultPoll
	upstream = DefaultUpstream
}

// Current returns the values in effect.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Query: query, Poll: poll, Upstream: upstream}
}

// WithTimeout is context.WithTimeout whose cancel func logs when the
// deadline was hit.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
