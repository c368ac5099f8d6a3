package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"vnmonitor/internal/cache"
	"vnmonitor/internal/config"
	"vnmonitor/internal/httpx"
	"vnmonitor/internal/mediator"
	"vnmonitor/internal/provider"
	"vnmonitor/internal/provider/kbsec"
	"vnmonitor/internal/provider/ratelimit"
	"vnmonitor/internal/provider/rss"
	"vnmonitor/internal/provider/vietcap"
	"vnmonitor/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") != "" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	sources := buildSources(cfg, httpClient, log)
	if len(sources) == 0 {
		log.Fatal().Msg("No market data sources enabled")
	}

	feeds := buildFeeds(cfg, httpClient)

	svc := mediator.New(mediator.Config{
		Sources:      sources,
		Feeds:        feeds,
		Cache:        cache.New(time.Now),
		CallTimeout:  timeout,
		Log:          log,
		ProxyHistory: cfg.Market.Proxy.History,
		ProxyQuote:   cfg.Market.Proxy.Quote,
		ProxyBoard:   cfg.Market.Proxy.Board,
		CardGroups:   cfg.Market.CardGroups,
		BoardChunk:   cfg.Market.BoardChunk,
		UniverseCap:  cfg.Market.UniverseCap,
	})

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
		Market:         svc,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
	log.Info().Msg("Server stopped")
}

func buildSources(cfg config.Config, hc *httpx.Client, log zerolog.Logger) []provider.MarketData {
	var sources []provider.MarketData

	if cfg.KBSec.Enabled {
		if cfg.KBSec.APIKey == "" {
			log.Warn().Msg("kbsec enabled without KBSEC_API_KEY, using anonymous quota")
		}
		opts := []kbsec.APIClientOption{kbsec.WithHTTPClient(hc.HTTP)}
		if cfg.KBSec.Endpoint != "" {
			opts = append(opts, kbsec.WithBaseURL(cfg.KBSec.Endpoint))
		}
		client, err := kbsec.NewAPIClient(cfg.KBSec.APIKey, opts...)
		if err != nil {
			log.Error().Err(err).Msg("kbsec client error")
		} else {
			sources = append(sources, ratelimit.Wrap(kbsec.NewSource(client), cfg.KBSec.MaxRequestsPerMinute, cfg.KBSec.Burst))
		}
	}

	if cfg.Vietcap.Enabled {
		vc := vietcap.New(vietcap.Config{
			URL:       cfg.Vietcap.Endpoint,
			BatchSize: cfg.Vietcap.BatchSize,
		}, hc)
		sources = append(sources, ratelimit.Wrap(vc, cfg.Vietcap.MaxRequestsPerMinute, cfg.Vietcap.Burst))
	}

	return sources
}

func buildFeeds(cfg config.Config, hc *httpx.Client) []provider.NewsFeed {
	enabled := make(map[string]bool, len(cfg.News.Sources))
	for _, name := range cfg.News.Sources {
		enabled[name] = true
	}
	var feeds []provider.NewsFeed
	for _, f := range rss.Defaults(hc) {
		if enabled[f.Name()] {
			feeds = append(feeds, f)
		}
	}
	return feeds
}
