package ratelimit

import (
	"context"
	"testing"
	"time"

	"vnmonitor/internal/market"
	"vnmonitor/internal/provider"
)

type countingSource struct {
	provider.MarketData
	calls int
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) AllSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	c.calls++
	return []market.SymbolInfo{{Symbol: "VCB"}}, nil
}

func TestWrapWithoutLimitPassesThrough(t *testing.T) {
	src := &countingSource{}
	paced := Wrap(src, 0, 0)

	for i := 0; i < 3; i++ {
		if _, err := paced.AllSymbols(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if src.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", src.calls)
	}
}

func TestWaitRespectsCanceledContext(t *testing.T) {
	src := &countingSource{}
	// One call per minute with the initial token already spent.
	paced := Wrap(src, 1, 1)
	if _, err := paced.AllSymbols(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := paced.AllSymbols(ctx); err == nil {
		t.Fatal("expected context error while paced out")
	}
	if src.calls != 1 {
		t.Fatalf("expected upstream untouched, got %d calls", src.calls)
	}
}
