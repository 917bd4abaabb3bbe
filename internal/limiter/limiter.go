// Package limiter paces batch deletions.
package limiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Pacer spaces out operations to at most a fixed rate. A nil Pacer or one
// built with a non-positive rate never waits.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer allows perSecond operations per second with bursts of up to burst.
// burst below 1 is treated as 1.
func NewPacer(perSecond float64, burst int) *Pacer {
	if perSecond <= 0 || math.IsInf(perSecond, 1) {
		return &Pacer{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the next operation may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.lim == nil {
		return ctx.Err()
	}
	return p.lim.Wait(ctx)
}

// Limited reports whether the pacer ever waits.
func (p *Pacer) Limited() bool {
	return p != nil && p.lim != nil
}
