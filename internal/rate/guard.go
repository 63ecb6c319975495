// Package rate enforces call budgets against throttling upstream
// providers. A Guard sits in front of an expensive call (here: cloud
// sign-ins) and answers Allow/deny from a token bucket per window, with
// an optional cooldown after recorded failures.
package rate

import (
	"fmt"
	"sync"
	"time"
)

// LimitError is returned by callers when the guard blocks a call.
type LimitError struct {
	Provider string
	Reason   string
	RetryAt  time.Time
}

func (e LimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s rate limited: %s (retry at %s)", e.Provider, e.Reason, e.RetryAt.UTC().Format(time.RFC3339))
}

// Decision is the outcome of a single Allow check.
type Decision struct {
	Allowed bool
	Reason  string
	RetryAt time.Time
}

// Err converts a denial into a LimitError for the given provider.
func (d Decision) Err(provider string) error {
	return LimitError{Provider: provider, Reason: d.Reason, RetryAt: d.RetryAt}
}

type bucket struct {
	capacity int
	tokens   float64
	last     time.Time
}

// Guard enforces a declaration. Safe for concurrent use.
type Guard struct {
	decl Declaration

	mu sync.Mutex
	// mutated under mu
	buckets  map[Window]*bucket
	cooldown time.Time
}

// NewGuard builds a guard with full buckets.
func NewGuard(decl Declaration) *Guard {
	g := &Guard{
		decl:    decl,
		buckets: make(map[Window]*bucket, len(decl.Limits())),
	}
	for window, limit := range decl.Limits() {
		g.buckets[window] = &bucket{capacity: limit, tokens: float64(limit)}
	}
	return g
}

// Allow consumes one call from every window's budget, or explains why it
// cannot. A denied call consumes nothing.
func (g *Guard) Allow(now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.decl.HasLimits() {
		return Decision{Allowed: false, Reason: "disabled"}
	}
	if !g.cooldown.IsZero() && now.Before(g.cooldown) {
		return Decision{Allowed: false, Reason: "cooldown", RetryAt: g.cooldown}
	}

	for window, b := range g.buckets {
		if b.capacity <= 0 {
			return Decision{Allowed: false, Reason: "disabled"}
		}
		refill(b, window.Duration(), now)
		if b.tokens < 1 {
			retryAt := now.Add(window.Duration() / time.Duration(b.capacity))
			return Decision{Allowed: false, Reason: "budget", RetryAt: retryAt}
		}
	}
	for window, b := range g.buckets {
		b.tokens--
		remainingGauge.WithLabelValues(g.decl.ProviderName(), window.String()).Set(b.tokens)
	}
	return Decision{Allowed: true}
}

// RecordFailure starts the declared cooldown. Callers report failed
// upstream calls here so the guard backs off before the provider does.
func (g *Guard) RecordFailure(now time.Time) {
	if g.decl.FailureCooldown() <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldown = now.Add(g.decl.FailureCooldown())
	cooldownGauge.WithLabelValues(g.decl.ProviderName()).Set(g.decl.FailureCooldown().Seconds())
}

// RecordSuccess clears any active cooldown.
func (g *Guard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldown = time.Time{}
	cooldownGauge.WithLabelValues(g.decl.ProviderName()).Set(0)
}

func refill(b *bucket, window time.Duration, now time.Time) {
	if b.last.IsZero() {
		b.last = now
	}
	elapsed := now.Sub(b.last).Seconds()
	rate := float64(b.capacity) / window.Seconds()
	b.tokens = min(float64(b.capacity), b.tokens+elapsed*rate)
	b.last = now
}
