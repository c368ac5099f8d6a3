// Command fetch runs one resource through the full fallback and caching
// pipeline and prints the result as JSON. Debugging tool.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/config"
	"vnmonitor/internal/httpx"
	"vnmonitor/internal/market"
	"vnmonitor/internal/mediator"
	"vnmonitor/internal/provider"
	"vnmonitor/internal/provider/kbsec"
	"vnmonitor/internal/provider/ratelimit"
	"vnmonitor/internal/provider/rss"
	"vnmonitor/internal/provider/vietcap"
)

func main() {
	var (
		resource   string
		symbol     string
		universe   string
		kind       string
		interval   string
		length     string
		period     string
		region     string
		limit      int
		timeout    int
		configPath string
	)

	flag.StringVar(&resource, "resource", "quote", "quote|history|board|cards|movers|list|profile|ratios|news|market-news")
	flag.StringVar(&symbol, "symbol", "VCB", "stock or index symbol")
	flag.StringVar(&universe, "universe", "VN30", "board/mover universe (index group or exchange)")
	flag.StringVar(&kind, "kind", "gainers", "mover kind: gainers|losers|volume")
	flag.StringVar(&interval, "interval", "1D", "history interval")
	flag.StringVar(&length, "length", "", "history window (1M, 3M, ...)")
	flag.StringVar(&period, "period", "year", "ratio period: year|quarter")
	flag.StringVar(&region, "region", "vn", "news region: vn|global|all")
	flag.IntVar(&limit, "limit", 0, "result limit (0 = endpoint default)")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (0 = config default)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.Parse()

	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	callTimeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	hc := httpx.New(callTimeout)

	var sources []provider.MarketData
	if cfg.KBSec.Enabled {
		opts := []kbsec.APIClientOption{kbsec.WithHTTPClient(hc.HTTP)}
		if cfg.KBSec.Endpoint != "" {
			opts = append(opts, kbsec.WithBaseURL(cfg.KBSec.Endpoint))
		}
		client, err := kbsec.NewAPIClient(cfg.KBSec.APIKey, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("kbsec client error")
		}
		sources = append(sources, ratelimit.Wrap(kbsec.NewSource(client), cfg.KBSec.MaxRequestsPerMinute, cfg.KBSec.Burst))
	}
	if cfg.Vietcap.Enabled {
		vc := vietcap.New(vietcap.Config{URL: cfg.Vietcap.Endpoint, BatchSize: cfg.Vietcap.BatchSize}, hc)
		sources = append(sources, ratelimit.Wrap(vc, cfg.Vietcap.MaxRequestsPerMinute, cfg.Vietcap.Burst))
	}
	if len(sources) == 0 {
		log.Fatal().Msg("No market data sources enabled")
	}

	svc := mediator.New(mediator.Config{
		Sources:      sources,
		Feeds:        allFeeds(rss.Defaults(hc)),
		Cache:        cache.New(time.Now),
		CallTimeout:  callTimeout,
		Log:          log,
		ProxyHistory: cfg.Market.Proxy.History,
		ProxyQuote:   cfg.Market.Proxy.Quote,
		ProxyBoard:   cfg.Market.Proxy.Board,
		CardGroups:   cfg.Market.CardGroups,
		BoardChunk:   cfg.Market.BoardChunk,
		UniverseCap:  cfg.Market.UniverseCap,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*callTimeout)
	defer cancel()

	var (
		data any
		meta mediator.Meta
	)
	switch resource {
	case "quote":
		data, meta, err = svc.Quote(ctx, symbol)
	case "history":
		data, meta, err = svc.History(ctx, symbol, market.HistoryRequest{Interval: interval, Length: length})
	case "board":
		data, meta, err = svc.PriceBoard(ctx, universe, limit)
	case "cards":
		data, meta, err = svc.MarketCards(ctx)
	case "movers":
		data, meta, err = svc.TopMovers(ctx, market.ParseMoverKind(kind), universe, limit)
	case "list":
		data, meta, err = svc.StockList(ctx, "")
	case "profile":
		data, meta, err = svc.Profile(ctx, symbol)
	case "ratios":
		data, meta, err = svc.Ratios(ctx, symbol, period)
	case "news":
		data, meta, err = svc.CompanyNews(ctx, symbol, limit)
	case "market-news":
		data, meta, err = svc.MarketNews(ctx, region, nil, limit)
	default:
		log.Fatal().Str("resource", resource).Msg("Unknown resource")
	}
	if err != nil {
		log.Fatal().Err(err).Str("resource", resource).Msg("Fetch failed")
	}

	out := map[string]any{"data": data, "meta": meta}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func allFeeds(feeds []*rss.Feed) []provider.NewsFeed {
	out := make([]provider.NewsFeed, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, f)
	}
	return out
}
