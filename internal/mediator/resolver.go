package mediator

import (
	"context"

	"github.com/rs/zerolog"

	"vnmonitor/internal/provider"
)

// Attempt is one link of a fallback chain: a named source and the call
// that queries it.
type Attempt struct {
	Source string
	Fetch  FetchFunc
}

// Chain is a statically configured, ordered sequence of attempts.
//
// Proxy distinguishes index-proxy chains (requested series -> substitute
// series) from provider chains (primary -> secondary source). A rate
// limit ends a provider chain immediately: the fallback source sits
// behind the same throttled account, so trying it only burns quota. A
// proxy attempt targets a different logical series and may still succeed,
// so proxy chains keep going.
type Chain struct {
	Attempts []Attempt
	Proxy    bool
}

// Resolver walks a chain in order until an attempt yields usable data.
type Resolver struct {
	guard *Guard
	log   zerolog.Logger
}

// NewResolver builds a resolver running every attempt through guard.
func NewResolver(guard *Guard, log zerolog.Logger) *Resolver {
	return &Resolver{
		guard: guard,
		log:   log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the first OK, non-empty result. Empty and erroring
// sources advance the chain; an exhausted chain returns the last observed
// result unchanged so the caller can tell "all empty" from "all rate
// limited" from "all errored". No merging of partial data across sources.
func (r *Resolver) Resolve(ctx context.Context, chain Chain) provider.Result {
	var last provider.Result
	last.Status = provider.StatusEmpty

	for i, a := range chain.Attempts {
		res := r.guard.Call(ctx, a.Source, a.Fetch)
		if res.Usable() {
			return res
		}
		if res.Status == provider.StatusRateLimited && !chain.Proxy {
			return res
		}
		last = res
		if i < len(chain.Attempts)-1 {
			r.log.Debug().
				Str("source", a.Source).
				Stringer("status", res.Status).
				Msg("Source unusable, trying next")
		}
	}
	return last
}
