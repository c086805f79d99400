package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// DialGovernor throttles how often the engine may open a new transport
// connection during a reconnect storm — a concern separate from the
// per-request Bucket above.
//
// Grounded on internal/shared/limits.ConnectionRateLimiter, which wraps
// golang.org/x/time/rate.Limiter to shape inbound connection floods
// per-IP and globally; here the same wrapper shapes outbound dial
// attempts per session instead. x/time/rate's Wait semantics — block
// until a token is available or ctx is cancelled — map directly onto "pace
// reconnect attempts" without reimplementing the teacher's own bucket.
type DialGovernor struct {
	limiter *rate.Limiter
}

// NewDialGovernor creates a governor allowing burst immediate dials and
// perSecond sustained afterward.
func NewDialGovernor(burst int, perSecond float64) *DialGovernor {
	return &DialGovernor{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a dial attempt is admitted or ctx is cancelled.
func (g *DialGovernor) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
