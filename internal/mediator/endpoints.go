package mediator

import (
	"context"
	"fmt"
	"strings"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/market"
	"vnmonitor/internal/provider"
)

// NormalizeSymbol canonicalizes a user-supplied symbol for cache keys and
// provider calls.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var indexGroups = map[string]bool{"VN30": true, "VN100": true, "HNX30": true}
var exchanges = map[string]bool{"HOSE": true, "HNX": true, "UPCOM": true}

// Quote returns the realtime price-board row for one symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (market.PriceRow, Meta, error) {
	sym := NormalizeSymbol(symbol)
	key := "quote:" + sym

	chain := s.boardChain([]string{sym})
	if proxy := s.proxies[sym]; s.proxyQuote && proxy != "" {
		chain = Chain{Proxy: true, Attempts: []Attempt{
			s.boardSeriesAttempt(sym),
			s.boardSeriesAttempt(proxy),
		}}
	}

	st, meta, err := s.run(ctx, key, cache.Quote, chain)
	if err != nil {
		return market.PriceRow{}, meta, err
	}
	rows, _ := st.Payload.([]market.PriceRow)
	if len(rows) == 0 {
		return market.PriceRow{}, meta, nil
	}
	return rows[0], meta, nil
}

// History returns an OHLCV series for the symbol. For index symbols with
// a configured proxy (VNINDEX -> VN30), an empty or failing requested
// series falls through to the proxy; the returned Series is tagged with
// the symbol that actually answered, never mislabeled as the requested one.
func (s *Service) History(ctx context.Context, symbol string, req market.HistoryRequest) (market.Series, Meta, error) {
	sym := NormalizeSymbol(symbol)
	if req.Interval == "" {
		req.Interval = "1D"
	}
	key := historyKey(sym, req)

	chain := Chain{Attempts: []Attempt{s.seriesAttempt(sym, req)}}
	if proxy := s.proxies[sym]; s.proxyHistory && proxy != "" {
		chain = Chain{Proxy: true, Attempts: []Attempt{
			s.seriesAttempt(sym, req),
			s.seriesAttempt(proxy, req),
		}}
	}

	st, meta, err := s.run(ctx, key, cache.History, chain)
	if err != nil {
		return market.Series{}, meta, err
	}
	series, ok := st.Payload.(market.Series)
	if !ok {
		series = market.Series{Symbol: sym, Interval: req.Interval}
	}
	return series, meta, nil
}

// IndexSeries is the dashboard's benchmark series: VNINDEX daily bars over
// the default window, proxy fallback included.
func (s *Service) IndexSeries(ctx context.Context) (market.Series, Meta, error) {
	return s.History(ctx, "VNINDEX", market.HistoryRequest{Interval: "1D", Length: "1M"})
}

// PriceBoard returns the realtime board for a universe (an index group
// like VN30, an exchange like HOSE, or anything else for the full list).
func (s *Service) PriceBoard(ctx context.Context, universe string, limit int) ([]market.PriceRow, Meta, error) {
	uni := NormalizeSymbol(universe)
	if uni == "" {
		uni = "VN30"
	}
	if limit < 1 {
		limit = 200
	}
	if limit > 500 {
		limit = 500
	}
	key := fmt.Sprintf("price_board:%s:%d", uni, limit)

	chain := s.universeBoardChain(uni, limit)
	if proxy := s.proxies[uni]; s.proxyBoard && proxy != "" {
		chain = Chain{Proxy: true, Attempts: []Attempt{
			s.universeBoardAttempt(uni, limit),
			s.universeBoardAttempt(proxy, limit),
		}}
	}

	st, meta, err := s.run(ctx, key, cache.PriceBoard, chain)
	if err != nil {
		return nil, meta, err
	}
	rows, _ := st.Payload.([]market.PriceRow)
	return rows, meta, nil
}

// MarketCards computes the dashboard overview cards from the configured
// index groups. A group whose board cannot be fetched contributes no
// card; only a rate limit fails the whole endpoint.
func (s *Service) MarketCards(ctx context.Context) ([]market.IndexCard, Meta, error) {
	key := "market_cards:" + strings.Join(s.cardGroups, ",")

	attempt := Attempt{Source: "cards", Fetch: func(ctx context.Context) (any, int, error) {
		cards := make([]market.IndexCard, 0, len(s.cardGroups))
		for _, group := range s.cardGroups {
			res := s.res.Resolve(ctx, s.groupBoardChain(group))
			if res.Status == provider.StatusRateLimited {
				return nil, 0, res.Err
			}
			if !res.Usable() {
				continue
			}
			rows, _ := res.Data.([]market.PriceRow)
			if card, ok := market.CardFromBoard(group, rows, s.now()); ok {
				cards = append(cards, card)
			}
		}
		return cards, len(cards), nil
	}}

	st, meta, err := s.run(ctx, key, cache.MarketCards, Chain{Attempts: []Attempt{attempt}})
	if err != nil {
		return nil, meta, err
	}
	cards, _ := st.Payload.([]market.IndexCard)
	return cards, meta, nil
}

// TopMovers ranks a universe's board by gainers, losers or volume.
func (s *Service) TopMovers(ctx context.Context, kind market.MoverKind, universe string, limit int) ([]market.Mover, Meta, error) {
	uni := NormalizeSymbol(universe)
	if uni == "" {
		uni = "VN30"
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	key := fmt.Sprintf("top_movers:%s:%s:%d", kind, uni, limit)

	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			rows, err := s.boardForUniverse(ctx, src, uni, s.universeCap)
			if err != nil {
				return nil, 0, err
			}
			movers := market.TopMovers(rows, kind, limit)
			return movers, len(movers), nil
		}})
	}

	// Movers share the market-cards volatility class.
	st, meta, err := s.run(ctx, key, cache.MarketCards, Chain{Attempts: attempts})
	if err != nil {
		return nil, meta, err
	}
	movers, _ := st.Payload.([]market.Mover)
	return movers, meta, nil
}

// StockList returns all listed symbols, optionally filtered by exchange.
func (s *Service) StockList(ctx context.Context, exchange string) ([]market.SymbolInfo, Meta, error) {
	exch := NormalizeSymbol(exchange)
	keySuffix := exch
	if keySuffix == "" {
		keySuffix = "ALL"
	}
	key := "stocks_list:" + keySuffix

	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			var (
				infos []market.SymbolInfo
				err   error
			)
			if exch != "" {
				infos, err = src.SymbolsByExchange(ctx, exch)
			} else {
				infos, err = src.AllSymbols(ctx)
			}
			if err != nil {
				return nil, 0, err
			}
			return infos, len(infos), nil
		}})
	}

	st, meta, err := s.run(ctx, key, cache.StockList, Chain{Attempts: attempts})
	if err != nil {
		return nil, meta, err
	}
	infos, _ := st.Payload.([]market.SymbolInfo)
	return infos, meta, nil
}

// Profile returns pass-through company data. Not cached: the endpoint is
// rarely hit and the payload is static enough upstream.
func (s *Service) Profile(ctx context.Context, symbol string) (*market.CompanyProfile, Meta, error) {
	sym := NormalizeSymbol(symbol)

	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			p, err := src.Profile(ctx, sym)
			if err != nil {
				return nil, 0, err
			}
			if p == nil {
				return nil, 0, nil
			}
			return p, 1, nil
		}})
	}

	res := s.res.Resolve(ctx, Chain{Attempts: attempts})
	meta := Meta{Source: res.Source, AsOf: res.AsOf, Status: res.Status}
	switch res.Status {
	case provider.StatusOK:
		return res.Data.(*market.CompanyProfile), meta, nil
	case provider.StatusEmpty, provider.StatusNotFound:
		return nil, meta, fmt.Errorf("profile %s: %w", sym, provider.ErrNotFound)
	case provider.StatusRateLimited:
		return nil, meta, fmt.Errorf("profile %s: %w", sym, provider.ErrRateLimited)
	default:
		return nil, meta, fmt.Errorf("profile %s: %w", sym, res.Err)
	}
}

// Ratios returns pass-through financial ratios, uncached like Profile.
func (s *Service) Ratios(ctx context.Context, symbol, period string) ([]market.RatioRow, Meta, error) {
	sym := NormalizeSymbol(symbol)
	if period != "quarter" {
		period = "year"
	}

	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			rows, err := src.Ratios(ctx, sym, period)
			if err != nil {
				return nil, 0, err
			}
			return rows, len(rows), nil
		}})
	}

	res := s.res.Resolve(ctx, Chain{Attempts: attempts})
	meta := Meta{Source: res.Source, AsOf: res.AsOf, Status: res.Status}
	switch res.Status {
	case provider.StatusOK:
		rows, _ := res.Data.([]market.RatioRow)
		return rows, meta, nil
	case provider.StatusEmpty:
		return nil, meta, nil
	case provider.StatusRateLimited:
		return nil, meta, fmt.Errorf("ratios %s: %w", sym, provider.ErrRateLimited)
	case provider.StatusNotFound:
		return nil, meta, fmt.Errorf("ratios %s: %w", sym, provider.ErrNotFound)
	default:
		return nil, meta, fmt.Errorf("ratios %s: %w", sym, res.Err)
	}
}

// CompanyNews returns recent articles about one company.
func (s *Service) CompanyNews(ctx context.Context, symbol string, limit int) ([]market.NewsItem, Meta, error) {
	sym := NormalizeSymbol(symbol)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	key := fmt.Sprintf("stock_news:%s:%d", sym, limit)

	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			items, err := src.CompanyNews(ctx, sym, limit)
			if err != nil {
				return nil, 0, err
			}
			return items, len(items), nil
		}})
	}

	st, meta, err := s.run(ctx, key, cache.CompanyNews, Chain{Attempts: attempts})
	if err != nil {
		return nil, meta, err
	}
	items, _ := st.Payload.([]market.NewsItem)
	return items, meta, nil
}

// ---- chain building helpers ----

// boardChain queries each source's price board for an explicit symbol list.
func (s *Service) boardChain(symbols []string) Chain {
	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			rows, err := src.PriceBoard(ctx, symbols)
			if err != nil {
				return nil, 0, err
			}
			for i := range rows {
				rows[i].Source = src.Name()
			}
			return rows, len(rows), nil
		}})
	}
	return Chain{Attempts: attempts}
}

// boardSeriesAttempt is one leg of a quote proxy chain: resolve the
// provider chain for a single symbol's board row.
func (s *Service) boardSeriesAttempt(symbol string) Attempt {
	return Attempt{Source: "board/" + symbol, Fetch: func(ctx context.Context) (any, int, error) {
		res := s.res.Resolve(ctx, s.boardChain([]string{symbol}))
		if res.Err != nil {
			return nil, 0, res.Err
		}
		rows, _ := res.Data.([]market.PriceRow)
		return rows, len(rows), nil
	}}
}

// universeBoardChain queries each source's board for a whole universe.
func (s *Service) universeBoardChain(universe string, limit int) Chain {
	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			rows, err := s.boardForUniverse(ctx, src, universe, limit)
			if err != nil {
				return nil, 0, err
			}
			for i := range rows {
				rows[i].Source = src.Name()
			}
			return rows, len(rows), nil
		}})
	}
	return Chain{Attempts: attempts}
}

// universeBoardAttempt is one leg of a board proxy chain: resolve the
// provider chain for one universe's board.
func (s *Service) universeBoardAttempt(universe string, limit int) Attempt {
	return Attempt{Source: "board/" + universe, Fetch: func(ctx context.Context) (any, int, error) {
		res := s.res.Resolve(ctx, s.universeBoardChain(universe, limit))
		if res.Err != nil {
			return nil, 0, res.Err
		}
		rows, _ := res.Data.([]market.PriceRow)
		return rows, len(rows), nil
	}}
}

// groupBoardChain fetches an index group's constituent board per source.
func (s *Service) groupBoardChain(group string) Chain {
	attempts := make([]Attempt, 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
			symbols, err := src.SymbolsByGroup(ctx, group)
			if err != nil {
				return nil, 0, err
			}
			if len(symbols) == 0 {
				return nil, 0, nil
			}
			rows, err := s.chunkedBoard(ctx, src, symbols)
			if err != nil {
				return nil, 0, err
			}
			return rows, len(rows), nil
		}})
	}
	return Chain{Attempts: attempts}
}

// seriesAttempt is one leg of a history proxy chain: resolve the provider
// chain for one series and tag the result with its own symbol.
func (s *Service) seriesAttempt(symbol string, req market.HistoryRequest) Attempt {
	return Attempt{Source: "series/" + symbol, Fetch: func(ctx context.Context) (any, int, error) {
		attempts := make([]Attempt, 0, len(s.sources))
		for _, src := range s.sources {
			src := src
			attempts = append(attempts, Attempt{Source: src.Name(), Fetch: func(ctx context.Context) (any, int, error) {
				candles, err := src.History(ctx, symbol, req)
				if err != nil {
					return nil, 0, err
				}
				return candles, len(candles), nil
			}})
		}
		res := s.res.Resolve(ctx, Chain{Attempts: attempts})
		if res.Err != nil {
			return nil, 0, res.Err
		}
		candles, _ := res.Data.([]market.Candle)
		series := market.Series{Symbol: symbol, Interval: req.Interval, Candles: candles}
		return series, len(candles), nil
	}}
}

// boardForUniverse resolves a universe to symbols via the given source and
// fetches its board in chunks.
func (s *Service) boardForUniverse(ctx context.Context, src provider.MarketData, universe string, limit int) ([]market.PriceRow, error) {
	var symbols []string
	switch {
	case indexGroups[universe]:
		list, err := src.SymbolsByGroup(ctx, universe)
		if err != nil {
			return nil, err
		}
		symbols = list
	case exchanges[universe]:
		infos, err := src.SymbolsByExchange(ctx, universe)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			symbols = append(symbols, info.Symbol)
		}
	default:
		infos, err := src.AllSymbols(ctx)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			symbols = append(symbols, info.Symbol)
		}
	}
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	if len(symbols) == 0 {
		return nil, nil
	}
	return s.chunkedBoard(ctx, src, symbols)
}

// chunkedBoard splits a symbol list into provider-sized batches. One
// failing batch fails the source attempt; the resolver then moves on.
func (s *Service) chunkedBoard(ctx context.Context, src provider.MarketData, symbols []string) ([]market.PriceRow, error) {
	out := make([]market.PriceRow, 0, len(symbols))
	for start := 0; start < len(symbols); start += s.boardChunk {
		end := start + s.boardChunk
		if end > len(symbols) {
			end = len(symbols)
		}
		rows, err := src.PriceBoard(ctx, symbols[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func historyKey(symbol string, req market.HistoryRequest) string {
	start, end := "", ""
	if !req.Start.IsZero() {
		start = req.Start.Format("2006-01-02")
	}
	if !req.End.IsZero() {
		end = req.End.Format("2006-01-02")
	}
	return fmt.Sprintf("history:%s:%s:%s:%s:%s", symbol, start, end, req.Interval, req.Length)
}
