package oracle

import (
	"context"
	"fmt"
	"time"

	"fjacquet/stmt-import/internal/parsererror"

	"golang.org/x/time/rate"
)

// GuardedOracle bounds every upstream call with a timeout and an optional
// request rate. Failures, including timeouts, are returned as
// *parsererror.CategorizationError.
type GuardedOracle struct {
	inner    Oracle
	provider string
	timeout  time.Duration
	limiter  *rate.Limiter
}

// NewGuardedOracle wraps inner. A zero timeout disables the deadline and
// requestsPerMinute <= 0 disables rate limiting.
func NewGuardedOracle(inner Oracle, provider string, timeout time.Duration, requestsPerMinute int) *GuardedOracle {
	g := &GuardedOracle{inner: inner, provider: provider, timeout: timeout}
	if requestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return g
}

// Categorize implements Oracle. The timeout covers both waiting for the
// rate limiter and the upstream call. A panic in the upstream call is
// returned as an error.
func (g *GuardedOracle) Categorize(ctx context.Context, description string) (*Proposal, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.fail(description, err)
		}
	}

	type outcome struct {
		p   *Proposal
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("oracle panic: %v", r)}
			}
		}()
		p, err := g.inner.Categorize(ctx, description)
		done <- outcome{p, err}
	}()

	select {
	case <-ctx.Done():
		return nil, g.fail(description, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, g.fail(description, out.err)
		}
		return out.p, nil
	}
}

func (g *GuardedOracle) fail(description string, err error) error {
	return &parsererror.CategorizationError{Description: description, Provider: g.provider, Err: err}
}
