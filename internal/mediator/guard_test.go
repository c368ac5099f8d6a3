package mediator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vnmonitor/internal/provider"
)

func TestGuardClassifiesOutcomes(t *testing.T) {
	clk := newFakeClock()
	g := NewGuard(time.Second, clk.Now, zerolog.Nop())

	cases := []struct {
		name   string
		fetch  FetchFunc
		status provider.Status
	}{
		{
			name:   "ok",
			fetch:  func(context.Context) (any, int, error) { return []int{1}, 1, nil },
			status: provider.StatusOK,
		},
		{
			name:   "empty",
			fetch:  func(context.Context) (any, int, error) { return nil, 0, nil },
			status: provider.StatusEmpty,
		},
		{
			name: "rate limited",
			fetch: func(context.Context) (any, int, error) {
				return nil, 0, fmt.Errorf("board: %w", provider.ErrRateLimited)
			},
			status: provider.StatusRateLimited,
		},
		{
			name: "not found",
			fetch: func(context.Context) (any, int, error) {
				return nil, 0, fmt.Errorf("quote: %w", provider.ErrNotFound)
			},
			status: provider.StatusNotFound,
		},
		{
			name:   "generic error",
			fetch:  func(context.Context) (any, int, error) { return nil, 0, errors.New("boom") },
			status: provider.StatusError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := g.Call(context.Background(), "src", tc.fetch)
			if res.Status != tc.status {
				t.Fatalf("status = %v, want %v", res.Status, tc.status)
			}
			if !res.AsOf.Equal(clk.Now()) {
				t.Fatalf("asOf = %v, want clock time", res.AsOf)
			}
		})
	}
}

func TestGuardTimeoutIsError(t *testing.T) {
	g := NewGuard(10*time.Millisecond, nil, zerolog.Nop())

	res := g.Call(context.Background(), "slow", func(ctx context.Context) (any, int, error) {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	})
	if res.Status != provider.StatusError {
		t.Fatalf("status = %v, want error", res.Status)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", res.Err)
	}
}
