package mediator

import (
	"context"
	"sync"
	"time"

	"vnmonitor/internal/market"
)

// fakeClock is a settable time source shared by mediator tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// fakeSource is a MarketData stub with per-method hooks and call counting.
type fakeSource struct {
	name string

	mu    sync.Mutex
	calls map[string]int

	boardFn   func(ctx context.Context, symbols []string) ([]market.PriceRow, error)
	historyFn func(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error)
	symbolsFn func(ctx context.Context) ([]market.SymbolInfo, error)
	byExchFn  func(ctx context.Context, exchange string) ([]market.SymbolInfo, error)
	byGroupFn func(ctx context.Context, group string) ([]string, error)
	profileFn func(ctx context.Context, symbol string) (*market.CompanyProfile, error)
	ratiosFn  func(ctx context.Context, symbol, period string) ([]market.RatioRow, error)
	newsFn    func(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error)
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{name: name, calls: make(map[string]int)}
}

func (f *fakeSource) count(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeSource) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) PriceBoard(ctx context.Context, symbols []string) ([]market.PriceRow, error) {
	f.count("PriceBoard")
	if f.boardFn == nil {
		return nil, nil
	}
	return f.boardFn(ctx, symbols)
}

func (f *fakeSource) History(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error) {
	f.count("History")
	if f.historyFn == nil {
		return nil, nil
	}
	return f.historyFn(ctx, symbol, req)
}

func (f *fakeSource) AllSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	f.count("AllSymbols")
	if f.symbolsFn == nil {
		return nil, nil
	}
	return f.symbolsFn(ctx)
}

func (f *fakeSource) SymbolsByExchange(ctx context.Context, exchange string) ([]market.SymbolInfo, error) {
	f.count("SymbolsByExchange")
	if f.byExchFn == nil {
		return nil, nil
	}
	return f.byExchFn(ctx, exchange)
}

func (f *fakeSource) SymbolsByGroup(ctx context.Context, group string) ([]string, error) {
	f.count("SymbolsByGroup")
	if f.byGroupFn == nil {
		return nil, nil
	}
	return f.byGroupFn(ctx, group)
}

func (f *fakeSource) Profile(ctx context.Context, symbol string) (*market.CompanyProfile, error) {
	f.count("Profile")
	if f.profileFn == nil {
		return nil, nil
	}
	return f.profileFn(ctx, symbol)
}

func (f *fakeSource) Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, error) {
	f.count("Ratios")
	if f.ratiosFn == nil {
		return nil, nil
	}
	return f.ratiosFn(ctx, symbol, period)
}

func (f *fakeSource) CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error) {
	f.count("CompanyNews")
	if f.newsFn == nil {
		return nil, nil
	}
	return f.newsFn(ctx, symbol, limit)
}

// fakeFeed is a NewsFeed stub.
type fakeFeed struct {
	name   string
	region string
	items  []market.NewsItem
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fakeFeed) Name() string   { return f.name }
func (f *fakeFeed) Region() string { return f.region }

func (f *fakeFeed) Latest(_ context.Context, limit int) ([]market.NewsItem, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}
