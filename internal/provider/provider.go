package provider

import (
	"context"
	"errors"
	"time"

	"vnmonitor/internal/market"
)

// Sentinel errors every upstream client must normalize to. Provider-specific
// signals (HTTP 429, quota payloads, "symbol not found" bodies) are wrapped
// with these at the adapter boundary so nothing downstream ever inspects a
// provider error shape.
var (
	// ErrRateLimited marks an upstream throttling signal.
	ErrRateLimited = errors.New("upstream rate limit exceeded")
	// ErrNotFound marks a symbol or resource that does not exist upstream.
	ErrNotFound = errors.New("not found upstream")
)

// Status classifies the outcome of a single provider call attempt.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusRateLimited
	StatusNotFound
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusRateLimited:
		return "rate_limited"
	case StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Result is the outcome of one call attempt. It lives only for the
// fallback decision window and is never cached as-is.
type Result struct {
	Source string
	Data   any
	Count  int
	AsOf   time.Time
	Status Status
	Err    error
}

// Usable reports whether the result ends a fallback chain: a successful
// call that actually returned data.
func (r Result) Usable() bool { return r.Status == StatusOK && r.Count > 0 }

// MarketData is the uniform interface over heterogeneous market-data
// providers. Implementations return normalized market types and sentinel
// errors; they never retry and never sleep outside their own pacing.
type MarketData interface {
	Name() string
	PriceBoard(ctx context.Context, symbols []string) ([]market.PriceRow, error)
	History(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error)
	AllSymbols(ctx context.Context) ([]market.SymbolInfo, error)
	SymbolsByExchange(ctx context.Context, exchange string) ([]market.SymbolInfo, error)
	SymbolsByGroup(ctx context.Context, group string) ([]string, error)
	Profile(ctx context.Context, symbol string) (*market.CompanyProfile, error)
	Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, error)
	CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error)
}

// NewsFeed is one independent news source. A failing feed contributes zero
// items to the aggregate; it must not take the other feeds down with it.
type NewsFeed interface {
	Name() string
	Region() string
	Latest(ctx context.Context, limit int) ([]market.NewsItem, error)
}
