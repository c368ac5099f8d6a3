package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/market"
	"vnmonitor/internal/mediator"
	"vnmonitor/internal/provider"
)

// stubSource serves a fixed board and symbol list. FPT is always the
// board's loser so mover ordering is observable.
type stubSource struct {
	name            string
	err             error
	emptyHistoryFor string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) PriceBoard(ctx context.Context, symbols []string) ([]market.PriceRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	rows := make([]market.PriceRow, 0, len(symbols))
	for _, sym := range symbols {
		row := market.PriceRow{
			Symbol:         sym,
			Exchange:       "HOSE",
			ReferencePrice: 100,
			MatchPrice:     101.5,
			TotalVolume:    1000,
		}
		if sym == "FPT" {
			row.MatchPrice = 95
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *stubSource) History(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	if symbol == s.emptyHistoryFor {
		return nil, nil
	}
	return []market.Candle{{Time: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Close: 1280}}, nil
}

func (s *stubSource) AllSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []market.SymbolInfo{
		{Symbol: "VCB", Exchange: "HOSE", Name: "Vietcombank"},
		{Symbol: "SHS", Exchange: "HNX", Name: "Saigon Hanoi Securities"},
	}, nil
}

func (s *stubSource) SymbolsByExchange(ctx context.Context, exchange string) ([]market.SymbolInfo, error) {
	all, err := s.AllSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, x := range all {
		if x.Exchange == exchange {
			out = append(out, x)
		}
	}
	return out, nil
}

func (s *stubSource) SymbolsByGroup(ctx context.Context, group string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"VCB", "FPT"}, nil
}

func (s *stubSource) Profile(ctx context.Context, symbol string) (*market.CompanyProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if symbol != "VCB" {
		return nil, nil
	}
	return &market.CompanyProfile{Symbol: "VCB", Name: "Vietcombank"}, nil
}

func (s *stubSource) Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []market.RatioRow{{Period: "2024", Values: map[string]float64{"pe": 14.2}}}, nil
}

func (s *stubSource) CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []market.NewsItem{{Title: "Earnings out", URL: "https://example.com/n/1", Source: s.name}}, nil
}

type stubFeed struct {
	name   string
	region string
}

func (f *stubFeed) Name() string   { return f.name }
func (f *stubFeed) Region() string { return f.region }

func (f *stubFeed) Latest(ctx context.Context, limit int) ([]market.NewsItem, error) {
	return []market.NewsItem{{
		Title:       "Market wrap",
		URL:         fmt.Sprintf("https://example.com/%s/1", f.name),
		Source:      f.name,
		PublishedAt: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	}}, nil
}

func newTestServer(src provider.MarketData) *Server {
	svc := mediator.New(mediator.Config{
		Sources:      []provider.MarketData{src},
		Feeds:        []provider.NewsFeed{&stubFeed{name: "vnexpress", region: "vn"}},
		Cache:        cache.New(time.Now),
		Log:          zerolog.Nop(),
		ProxyHistory: true,
	})
	return New(Config{Port: "0", Log: zerolog.Nop(), Market: svc})
}

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}

func TestHandleQuote(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/stock/vcb/quote")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	require.Equal(t, "VCB", data["symbol"])
	require.Equal(t, "kbsec", body["source"])
	require.NotEmpty(t, body["as_of"])
}

func TestHandleQuoteRateLimited(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec", err: provider.ErrRateLimited})

	rec, body := doRequest(t, s, "/api/stock/VCB/quote")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, body["error"], "try again later")
}

func TestHandleQuoteUpstreamError(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec", err: fmt.Errorf("connection reset")})

	rec, _ := doRequest(t, s, "/api/stock/VCB/quote")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleStockList(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/stocks/list")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, body["count"])
	require.Len(t, body["items"], 2)
}

func TestHandleHistoryBadStartDate(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/stock/VCB/history?start=junk")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "bad start date", body["error"])
}

func TestHandleHistory(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/stock/VCB/history?start=2025-06-01&end=2025-06-03&interval=1D")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	require.Equal(t, "VCB", data["symbol"])
}

func TestHandleProfileNotFound(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, _ := doRequest(t, s, "/api/stock/XXXX/profile")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIndices(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/market/indices")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body["items"])

	// The benchmark series ships alongside the cards.
	series := body["series"].(map[string]any)
	require.Equal(t, "VNINDEX", series["symbol"])
	require.Len(t, series["candles"], 1)
}

func TestHandleIndicesSeriesFallsBackToProxy(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec", emptyHistoryFor: "VNINDEX"})

	rec, body := doRequest(t, s, "/api/market/indices")
	require.Equal(t, http.StatusOK, rec.Code)

	series := body["series"].(map[string]any)
	require.Equal(t, "VN30", series["symbol"])
}

func TestHandleMarketNews(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/news/latest?region=vn&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])
}

func TestHandleTopMovers(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/market/top-movers?kind=gainers&universe=VN30&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	items := body["items"].([]any)
	require.NotEmpty(t, items)
	require.Equal(t, "VCB", items[0].(map[string]any)["symbol"])
}

func TestHandleTopMoversTypeParam(t *testing.T) {
	s := newTestServer(&stubSource{name: "kbsec"})

	rec, body := doRequest(t, s, "/api/market/top-movers?type=losers&universe=VN30&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	items := body["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "FPT", items[0].(map[string]any)["symbol"])
}
