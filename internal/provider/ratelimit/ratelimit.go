// Package ratelimit paces outbound calls to an upstream so the service
// stays under the provider's own quota instead of tripping it.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"vnmonitor/internal/market"
	"vnmonitor/internal/provider"
)

// Paced wraps a market-data source and gates every call through a
// shared token bucket. Concurrent calls wait for a token or return
// early when the context is canceled.
type Paced struct {
	src     provider.MarketData
	limiter *rate.Limiter
}

// Wrap builds a paced source allowing rpm requests per minute with the
// given burst. rpm <= 0 disables pacing.
func Wrap(src provider.MarketData, rpm, burst int) *Paced {
	var limiter *rate.Limiter
	if rpm > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
	}
	return &Paced{src: src, limiter: limiter}
}

func (p *Paced) Name() string { return p.src.Name() }

func (p *Paced) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Paced) PriceBoard(ctx context.Context, symbols []string) ([]market.PriceRow, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.PriceBoard(ctx, symbols)
}

func (p *Paced) History(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.History(ctx, symbol, req)
}

func (p *Paced) AllSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.AllSymbols(ctx)
}

func (p *Paced) SymbolsByExchange(ctx context.Context, exchange string) ([]market.SymbolInfo, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.SymbolsByExchange(ctx, exchange)
}

func (p *Paced) SymbolsByGroup(ctx context.Context, group string) ([]string, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.SymbolsByGroup(ctx, group)
}

func (p *Paced) Profile(ctx context.Context, symbol string) (*market.CompanyProfile, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.Profile(ctx, symbol)
}

func (p *Paced) Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.Ratios(ctx, symbol, period)
}

func (p *Paced) CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.src.CompanyNews(ctx, symbol, limit)
}
