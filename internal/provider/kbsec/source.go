package kbsec

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vnmonitor/internal/market"
)

// Source implements provider.MarketData on top of the API client.
type Source struct {
	client *APIClient
}

// NewSource wraps an API client.
func NewSource(client *APIClient) *Source {
	return &Source{client: client}
}

func (s *Source) Name() string { return "kbsec" }

type wireRow struct {
	Symbol         string  `json:"sym"`
	Exchange       string  `json:"ex"`
	ReferencePrice float64 `json:"ref"`
	MatchPrice     float64 `json:"last"`
	CeilingPrice   float64 `json:"ceil"`
	FloorPrice     float64 `json:"floor"`
	TotalVolume    int64   `json:"vol"`
}

func (s *Source) PriceBoard(ctx context.Context, symbols []string) ([]market.PriceRow, error) {
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	var rows []wireRow
	if err := s.client.get(ctx, "/board", q, &rows); err != nil {
		return nil, err
	}
	out := make([]market.PriceRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.PriceRow{
			Symbol:         r.Symbol,
			Exchange:       r.Exchange,
			ReferencePrice: r.ReferencePrice,
			MatchPrice:     r.MatchPrice,
			CeilingPrice:   r.CeilingPrice,
			FloorPrice:     r.FloorPrice,
			TotalVolume:    r.TotalVolume,
		})
	}
	return out, nil
}

// wireSeries is the provider's column-oriented OHLCV shape.
type wireSeries struct {
	T []int64   `json:"t"`
	O []float64 `json:"o"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	C []float64 `json:"c"`
	V []int64   `json:"v"`
}

func (s *Source) History(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error) {
	q := url.Values{"symbol": {symbol}, "interval": {req.Interval}}
	if !req.Start.IsZero() {
		q.Set("from", strconv.FormatInt(req.Start.Unix(), 10))
	}
	if !req.End.IsZero() {
		q.Set("to", strconv.FormatInt(req.End.Unix(), 10))
	}
	if req.Length != "" {
		q.Set("length", req.Length)
	}
	var ws wireSeries
	if err := s.client.get(ctx, "/history", q, &ws); err != nil {
		return nil, err
	}
	n := len(ws.T)
	candles := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		c := market.Candle{Time: time.Unix(ws.T[i], 0).UTC()}
		if i < len(ws.O) {
			c.Open = ws.O[i]
		}
		if i < len(ws.H) {
			c.High = ws.H[i]
		}
		if i < len(ws.L) {
			c.Low = ws.L[i]
		}
		if i < len(ws.C) {
			c.Close = ws.C[i]
		}
		if i < len(ws.V) {
			c.Volume = ws.V[i]
		}
		candles = append(candles, c)
	}
	return candles, nil
}

type wireSymbol struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Name     string `json:"organ_name"`
}

func (s *Source) AllSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	var syms []wireSymbol
	if err := s.client.get(ctx, "/symbols", nil, &syms); err != nil {
		return nil, err
	}
	return toSymbolInfos(syms), nil
}

func (s *Source) SymbolsByExchange(ctx context.Context, exchange string) ([]market.SymbolInfo, error) {
	q := url.Values{"exchange": {exchange}}
	var syms []wireSymbol
	if err := s.client.get(ctx, "/symbols", q, &syms); err != nil {
		return nil, err
	}
	return toSymbolInfos(syms), nil
}

func (s *Source) SymbolsByGroup(ctx context.Context, group string) ([]string, error) {
	var data struct {
		Symbols []string `json:"symbols"`
	}
	if err := s.client.get(ctx, "/groups/"+url.PathEscape(group), nil, &data); err != nil {
		return nil, err
	}
	return data.Symbols, nil
}

func (s *Source) Profile(ctx context.Context, symbol string) (*market.CompanyProfile, error) {
	var data struct {
		Symbol      string `json:"symbol"`
		Name        string `json:"organ_name"`
		Exchange    string `json:"exchange"`
		Industry    string `json:"icb_name"`
		Description string `json:"company_profile"`
		Website     string `json:"website"`
	}
	if err := s.client.get(ctx, "/company/"+url.PathEscape(symbol), nil, &data); err != nil {
		return nil, err
	}
	if data.Symbol == "" && data.Name == "" {
		return nil, nil
	}
	return &market.CompanyProfile{
		Symbol:      data.Symbol,
		Name:        data.Name,
		Exchange:    data.Exchange,
		Industry:    data.Industry,
		Description: data.Description,
		Website:     data.Website,
	}, nil
}

func (s *Source) Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, error) {
	q := url.Values{"period": {period}}
	var rows []struct {
		Period string             `json:"period"`
		Values map[string]float64 `json:"values"`
	}
	if err := s.client.get(ctx, "/company/"+url.PathEscape(symbol)+"/ratios", q, &rows); err != nil {
		return nil, err
	}
	out := make([]market.RatioRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.RatioRow{Period: r.Period, Values: r.Values})
	}
	return out, nil
}

func (s *Source) CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var rows []struct {
		Title     string `json:"title"`
		Summary   string `json:"summary"`
		URL       string `json:"url"`
		Published int64  `json:"published"`
		Image     string `json:"image_url"`
	}
	if err := s.client.get(ctx, "/company/"+url.PathEscape(symbol)+"/news", q, &rows); err != nil {
		return nil, err
	}
	out := make([]market.NewsItem, 0, len(rows))
	for _, r := range rows {
		item := market.NewsItem{
			Title:    r.Title,
			Summary:  r.Summary,
			URL:      r.URL,
			Source:   s.Name(),
			ImageURL: r.Image,
		}
		if r.Published > 0 {
			item.PublishedAt = time.Unix(r.Published, 0).UTC()
		}
		out = append(out, item)
	}
	return out, nil
}

func toSymbolInfos(syms []wireSymbol) []market.SymbolInfo {
	out := make([]market.SymbolInfo, 0, len(syms))
	for _, w := range syms {
		out = append(out, market.SymbolInfo{Symbol: w.Symbol, Exchange: w.Exchange, Name: w.Name})
	}
	return out
}
