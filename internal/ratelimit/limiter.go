// Package ratelimit throttles signature checks per client so a single caller
// cannot grind through MAC guesses.
package ratelimit

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the token buckets.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	// IdleTTL is how long an unused bucket is kept before cleanup.
	IdleTTL time.Duration
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return errors.New("requests per second must be positive")
	}
	if c.Burst <= 0 {
		return errors.New("burst must be positive")
	}
	return nil
}

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*entry
	lastCleanup time.Time
	now         func() time.Time
}

// New builds a Limiter. A disabled config yields a Limiter that allows
// everything.
func New(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &Limiter{
		config:      config,
		limiters:    make(map[string]*entry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}, nil
}

// Allow takes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)}
		l.limiters[key] = e
	}
	e.lastUsed = now
	l.cleanupLocked(now)
	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.config.IdleTTL {
		return
	}
	for key, e := range l.limiters {
		if now.Sub(e.lastUsed) > l.config.IdleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = now
}

// ClientIP keys requests by remote host. Put chi's RealIP middleware in
// front when running behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
