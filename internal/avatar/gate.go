package avatar

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate paces lookup traffic for a single credential. The rate limit is
// a property of the credential and endpoint, not of any one identifier,
// so every request for the credential shares one gate.
//
// Proactive pacing is a token bucket; reactive backoff (the API
// demanding a wait) holds the gate exclusively so that concurrent
// observers of the same rate-limit response queue behind a single wait
// instead of each extending the lockout.
type Gate struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

func NewGate(requestsPerSecond float64) *Gate {
	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Wait blocks until a request may proceed, or until the context is
// done. A reactive backoff in progress blocks all waiters.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limiter.Wait(ctx)
}

// Backoff pauses all traffic through the gate for the duration the API
// demanded. It satisfies the resolver's sleep contract.
func (g *Gate) Backoff(ctx context.Context, d time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
