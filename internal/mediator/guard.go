// Package mediator sits between the HTTP boundary and the upstream
// providers: it answers each resource request from the TTL cache, and on a
// miss runs an ordered fallback chain of provider calls under a rate-limit
// guard, storing the winner with the resource's TTL.
package mediator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/provider"
)

// FetchFunc performs one outbound call attempt. count is the number of
// records in data; zero means "valid request, nothing for the period".
type FetchFunc func(ctx context.Context) (data any, count int, err error)

// Guard wraps outbound calls, bounds them with a timeout and maps
// provider errors onto the uniform status set. It never retries and never
// sleeps; backoff is the caller's decision.
type Guard struct {
	timeout time.Duration
	now     cache.Clock
	log     zerolog.Logger
}

// NewGuard builds a guard applying timeout to every call. A nil clock
// uses time.Now.
func NewGuard(timeout time.Duration, clock cache.Clock, log zerolog.Logger) *Guard {
	if clock == nil {
		clock = time.Now
	}
	return &Guard{
		timeout: timeout,
		now:     clock,
		log:     log.With().Str("component", "guard").Logger(),
	}
}

// Call invokes fetch and classifies its outcome. A timed-out call is an
// ordinary error: it feeds the same degrade-to-stale path as any other
// provider fault. Rate-limit signals keep their distinct status all the
// way to the boundary.
func (g *Guard) Call(ctx context.Context, source string, fetch FetchFunc) provider.Result {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	data, count, err := fetch(ctx)
	res := provider.Result{
		Source: source,
		Data:   data,
		Count:  count,
		AsOf:   g.now(),
		Err:    err,
	}
	switch {
	case errors.Is(err, provider.ErrRateLimited):
		res.Status = provider.StatusRateLimited
		g.log.Warn().Str("source", source).Msg("Upstream rate limited")
	case errors.Is(err, provider.ErrNotFound):
		res.Status = provider.StatusNotFound
	case err != nil:
		res.Status = provider.StatusError
		g.log.Warn().Err(err).Str("source", source).Msg("Upstream call failed")
	case count == 0:
		res.Status = provider.StatusEmpty
	default:
		res.Status = provider.StatusOK
	}
	return res
}
