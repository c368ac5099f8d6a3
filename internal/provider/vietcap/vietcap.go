// Package vietcap is the secondary market-data adapter (Vietcap
// Securities). It covers the same surface as the primary with the
// provider's own wire shapes, so the resolver can fall back to it
// symbol by symbol.
package vietcap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vnmonitor/internal/httpx"
	"vnmonitor/internal/market"
	"vnmonitor/internal/provider"
)

type Config struct {
	Name    string
	URL     string
	Headers map[string]string
	// BatchSize splits large board requests into smaller ones.
	// 0 or negative means no limit (single request).
	BatchSize int
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "vietcap"
	}
	if cfg.URL == "" {
		cfg.URL = "https://mt.vietcap.com.vn/api"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type boardEntry struct {
	Symbol      string      `json:"symbol"`
	Board       string      `json:"board"`
	RefPrice    json.Number `json:"refPrice"`
	MatchPrice  json.Number `json:"matchPrice"`
	Ceiling     json.Number `json:"ceiling"`
	Floor       json.Number `json:"floor"`
	TotalVolume json.Number `json:"totalMatchVol"`
}

func (p *Provider) PriceBoard(ctx context.Context, symbols []string) ([]market.PriceRow, error) {
	batches := [][]string{symbols}
	if p.cfg.BatchSize > 0 && len(symbols) > p.cfg.BatchSize {
		batches = chunkStrings(symbols, p.cfg.BatchSize)
	}

	rows := make([]market.PriceRow, 0, len(symbols))
	for _, batch := range batches {
		var entries []boardEntry
		if err := p.post(ctx, "/price/symbols", map[string]any{"symbols": batch}, &entries); err != nil {
			return nil, err
		}
		for _, e := range entries {
			rows = append(rows, market.PriceRow{
				Symbol:         e.Symbol,
				Exchange:       e.Board,
				ReferencePrice: numFloat(e.RefPrice),
				MatchPrice:     numFloat(e.MatchPrice),
				CeilingPrice:   numFloat(e.Ceiling),
				FloorPrice:     numFloat(e.Floor),
				TotalVolume:    numInt(e.TotalVolume),
			})
		}
	}
	return rows, nil
}

func (p *Provider) History(ctx context.Context, symbol string, req market.HistoryRequest) ([]market.Candle, error) {
	payload := map[string]any{
		"symbol":    symbol,
		"timeFrame": intervalToTimeFrame(req.Interval),
		"countBack": 5000,
	}
	if !req.End.IsZero() {
		payload["to"] = req.End.Unix()
	}
	var data []struct {
		TradingDate string      `json:"tradingDate"`
		Open        json.Number `json:"open"`
		High        json.Number `json:"high"`
		Low         json.Number `json:"low"`
		Close       json.Number `json:"close"`
		Volume      json.Number `json:"volume"`
	}
	if err := p.post(ctx, "/chart/OHLCChart/gap-chart", payload, &data); err != nil {
		return nil, err
	}
	candles := make([]market.Candle, 0, len(data))
	for _, d := range data {
		ts, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(d.TradingDate, "Z"))
		if err != nil {
			continue
		}
		if !req.Start.IsZero() && ts.Before(req.Start) {
			continue
		}
		candles = append(candles, market.Candle{
			Time:   ts.UTC(),
			Open:   numFloat(d.Open),
			High:   numFloat(d.High),
			Low:    numFloat(d.Low),
			Close:  numFloat(d.Close),
			Volume: numInt(d.Volume),
		})
	}
	return candles, nil
}

type symbolEntry struct {
	Symbol    string `json:"symbol"`
	Board     string `json:"board"`
	OrganName string `json:"organName"`
	Type      string `json:"type"`
}

func (p *Provider) AllSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	var entries []symbolEntry
	if err := p.get(ctx, "/price/symbols/getAll", nil, &entries); err != nil {
		return nil, err
	}
	out := make([]market.SymbolInfo, 0, len(entries))
	for _, e := range entries {
		if e.Type != "" && e.Type != "STOCK" {
			continue
		}
		out = append(out, market.SymbolInfo{Symbol: e.Symbol, Exchange: e.Board, Name: e.OrganName})
	}
	return out, nil
}

func (p *Provider) SymbolsByExchange(ctx context.Context, exchange string) ([]market.SymbolInfo, error) {
	all, err := p.AllSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.SymbolInfo, 0, len(all))
	for _, s := range all {
		if strings.EqualFold(s.Exchange, exchange) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Provider) SymbolsByGroup(ctx context.Context, group string) ([]string, error) {
	var entries []symbolEntry
	if err := p.get(ctx, "/price/symbols/getByGroup", url.Values{"group": {group}}, &entries); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Symbol)
	}
	return out, nil
}

func (p *Provider) Profile(ctx context.Context, symbol string) (*market.CompanyProfile, error) {
	var data struct {
		Ticker         string `json:"ticker"`
		OrganName      string `json:"organName"`
		Exchange       string `json:"exchange"`
		IcbName        string `json:"icbName"`
		CompanyProfile string `json:"companyProfile"`
		Website        string `json:"website"`
	}
	if err := p.get(ctx, "/company/"+url.PathEscape(symbol)+"/overview", nil, &data); err != nil {
		return nil, err
	}
	if data.Ticker == "" && data.OrganName == "" {
		return nil, nil
	}
	return &market.CompanyProfile{
		Symbol:      data.Ticker,
		Name:        data.OrganName,
		Exchange:    data.Exchange,
		Industry:    data.IcbName,
		Description: data.CompanyProfile,
		Website:     data.Website,
	}, nil
}

func (p *Provider) Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, error) {
	var data []struct {
		YearReport   int                `json:"yearReport"`
		LengthReport int                `json:"lengthReport"`
		Ratios       map[string]float64 `json:"ratios"`
	}
	q := url.Values{"period": {period}}
	if err := p.get(ctx, "/company/"+url.PathEscape(symbol)+"/ratios", q, &data); err != nil {
		return nil, err
	}
	out := make([]market.RatioRow, 0, len(data))
	for _, d := range data {
		label := strconv.Itoa(d.YearReport)
		if strings.EqualFold(period, "quarter") && d.LengthReport > 0 {
			label = fmt.Sprintf("%d-Q%d", d.YearReport, d.LengthReport)
		}
		out = append(out, market.RatioRow{Period: label, Values: d.Ratios})
	}
	return out, nil
}

func (p *Provider) CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, error) {
	var data []struct {
		NewsTitle     string `json:"newsTitle"`
		NewsSubTitle  string `json:"newsSubTitle"`
		NewsSourceURL string `json:"newsSourceLink"`
		PublicDate    int64  `json:"publicDate"`
		NewsImageURL  string `json:"newsImageUrl"`
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := p.get(ctx, "/company/"+url.PathEscape(symbol)+"/news", q, &data); err != nil {
		return nil, err
	}
	out := make([]market.NewsItem, 0, len(data))
	for _, d := range data {
		item := market.NewsItem{
			Title:    d.NewsTitle,
			Summary:  d.NewsSubTitle,
			URL:      d.NewsSourceURL,
			Source:   p.cfg.Name,
			ImageURL: d.NewsImageURL,
		}
		if d.PublicDate > 0 {
			item.PublishedAt = parseEpochMaybeMillis(d.PublicDate)
		}
		out = append(out, item)
	}
	return out, nil
}

type apiResponse struct {
	ServerDateTime string          `json:"serverDateTime"`
	Status         int             `json:"status"`
	Code           int             `json:"code"`
	Msg            string          `json:"msg"`
	Data           json.RawMessage `json:"data"`
}

func (p *Provider) get(ctx context.Context, path string, query url.Values, out any) error {
	u := p.cfg.URL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return p.do(req, out)
}

func (p *Provider) post(ctx context.Context, path string, payload any, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *Provider) do(req *http.Request, out any) error {
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req.Context(), req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", p.cfg.Name, req.URL.Path, provider.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", p.cfg.Name, req.URL.Path, provider.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s %s -> %d: %s", req.Method, req.URL.Path, resp.StatusCode, httpx.Snippet(resp.Body, 2<<10))
	}
	var api apiResponse
	if err := httpx.DecodeJSON(resp, &api); err != nil {
		return fmt.Errorf("%s %s: %w", p.cfg.Name, req.URL.Path, err)
	}
	if api.Status != 0 && api.Status != http.StatusOK {
		if api.Status == http.StatusTooManyRequests {
			return fmt.Errorf("%s %s: %s: %w", p.cfg.Name, req.URL.Path, api.Msg, provider.ErrRateLimited)
		}
		return fmt.Errorf("%s %s: provider error status=%d msg=%q", p.cfg.Name, req.URL.Path, api.Status, api.Msg)
	}
	if out == nil || len(api.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(api.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", p.cfg.Name, req.URL.Path, err)
	}
	return nil
}

// intervalToTimeFrame maps bar intervals onto the provider's enum.
// Case matters: lowercase "1m" is minute bars, uppercase "1M" is a
// month-long window elsewhere and stays on daily bars.
func intervalToTimeFrame(interval string) string {
	switch interval {
	case "1m", "ONE_MINUTE":
		return "ONE_MINUTE"
	case "1h", "1H", "ONE_HOUR":
		return "ONE_HOUR"
	default:
		return "ONE_DAY"
	}
}

func numFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}

func numInt(n json.Number) int64 {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return int64(f)
}

func parseEpochMaybeMillis(v int64) time.Time {
	if v > 1_000_000_000_000 { // ms
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 || len(in) == 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := i + size
		if j > len(in) {
			j = len(in)
		}
		out = append(out, in[i:j])
	}
	return out
}
