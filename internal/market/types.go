package market

import "time"

// PriceRow is one symbol's row on the realtime price board, normalized
// across providers. Prices are VND; zero means the field was absent.
type PriceRow struct {
	Symbol         string  `json:"symbol"`
	Exchange       string  `json:"exchange,omitempty"`
	ReferencePrice float64 `json:"reference_price"`
	MatchPrice     float64 `json:"match_price"`
	CeilingPrice   float64 `json:"ceiling_price,omitempty"`
	FloorPrice     float64 `json:"floor_price,omitempty"`
	TotalVolume    int64   `json:"total_volume"`
	Source         string  `json:"source,omitempty"`
}

// Change returns the absolute change of the match price vs reference.
func (r PriceRow) Change() float64 { return r.MatchPrice - r.ReferencePrice }

// PctChange returns the percent change vs reference, 0 when reference is 0.
func (r PriceRow) PctChange() float64 {
	if r.ReferencePrice == 0 {
		return 0
	}
	return r.Change() / r.ReferencePrice * 100
}

// Candle is one OHLCV bar of a history series.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is a history series tagged with the symbol it actually belongs
// to. When an index proxy answered the request, Symbol names the proxy
// (e.g. VN30), never the originally requested series.
type Series struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// SymbolInfo is one listed symbol as returned by the stock-list endpoints.
type SymbolInfo struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Name     string `json:"name,omitempty"`
}

// CompanyProfile is pass-through company data; this layer does not
// interpret any of it.
type CompanyProfile struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Exchange    string `json:"exchange,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

// RatioRow is one period of financial ratios, pass-through.
type RatioRow struct {
	Period string             `json:"period"`
	Values map[string]float64 `json:"values"`
}

// NewsItem is one article from any news source.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at,omitzero"`
	ImageURL    string    `json:"image_url,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// IndexCard is a dashboard overview card computed from a group's
// constituents (VN30, HNX30) when no real index feed is available.
type IndexCard struct {
	Name       string    `json:"name"`
	ProxyGroup string    `json:"proxy_group"`
	Value      float64   `json:"value"`
	Change     float64   `json:"change"`
	PctChange  float64   `json:"pct_change"`
	AsOf       time.Time `json:"as_of"`
}

// Mover is one row of a top-movers ranking.
type Mover struct {
	Symbol         string  `json:"symbol"`
	ReferencePrice float64 `json:"reference_price"`
	MatchPrice     float64 `json:"match_price"`
	Change         float64 `json:"change"`
	PctChange      float64 `json:"pct_change"`
	TotalVolume    int64   `json:"total_volume"`
}

// HistoryRequest are the parameters of a history fetch. Start/End may be
// zero; Length is a provider-side shorthand like "1M" and may be empty.
type HistoryRequest struct {
	Start    time.Time
	End      time.Time
	Interval string
	Length   string
}
