// Package health reports whether the service's backing stores are reachable.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Probe returns nil when the dependency answers.
type Probe func(ctx context.Context) error

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	Connected    = "connected"
	Disconnected = "disconnected"
)

type Report struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	Redis         string `json:"redis"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (r Report) Healthy() bool { return r.Status == StatusHealthy }

// Checker runs the probes at most once per ttl. Concurrent callers after expiry
// share a single round of probes.
type Checker struct {
	db      Probe
	redis   Probe
	ttl     time.Duration
	timeout time.Duration
	started time.Time
	clock   func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	last    Report
	checked time.Time
}

func NewChecker(db, redis Probe, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Checker{
		db:      db,
		redis:   redis,
		ttl:     ttl,
		timeout: 3 * time.Second,
		started: time.Now(),
		clock:   time.Now,
	}
}

func (c *Checker) Check(ctx context.Context) Report {
	c.mu.Lock()
	if !c.checked.IsZero() && c.clock().Sub(c.checked) < c.ttl {
		r := c.last
		c.mu.Unlock()
		return c.withUptime(r)
	}
	c.mu.Unlock()

	// The probes run on a fresh context: singleflight hands the first caller's
	// result to everyone, so one cancelled request must not fail the others.
	v, _, _ := c.group.Do("health", func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		r := Report{Status: StatusHealthy, Database: probe(pctx, c.db), Redis: probe(pctx, c.redis)}
		if r.Database != Connected || r.Redis != Connected {
			r.Status = StatusUnhealthy
		}
		c.mu.Lock()
		c.last = r
		c.checked = c.clock()
		c.mu.Unlock()
		return r, nil
	})
	return c.withUptime(v.(Report))
}

func (c *Checker) withUptime(r Report) Report {
	r.UptimeSeconds = int64(c.clock().Sub(c.started).Seconds())
	return r
}

func probe(ctx context.Context, p Probe) string {
	if p == nil {
		return Disconnected
	}
	if err := p(ctx); err != nil {
		return Disconnected
	}
	return Connected
}
