package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Server struct {
	Port              string   `json:"port"`
	RequestTimeoutSec int      `json:"request_timeout_sec"`
	AllowedOrigins    []string `json:"allowed_origins"`
}

type KBSec struct {
	Enabled              bool   `json:"enabled"`
	APIKey               string `json:"api_key"`
	Endpoint             string `json:"endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type Vietcap struct {
	Enabled              bool   `json:"enabled"`
	Endpoint             string `json:"endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
	BatchSize            int    `json:"batch_size"`
}

type News struct {
	Sources []string `json:"sources"`
}

// Proxy controls which resources may answer an index request with its
// proxy basket when the index itself returns nothing.
type Proxy struct {
	History bool `json:"history"`
	Quote   bool `json:"quote"`
	Board   bool `json:"board"`
}

type Market struct {
	CardGroups  []string `json:"card_groups"`
	BoardChunk  int      `json:"board_chunk"`
	UniverseCap int      `json:"universe_cap"`
	Proxy       Proxy    `json:"proxy"`
}

type Config struct {
	Server  Server  `json:"server"`
	KBSec   KBSec   `json:"kbsec"`
	Vietcap Vietcap `json:"vietcap"`
	News    News    `json:"news"`
	Market  Market  `json:"market"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8000", RequestTimeoutSec: 20, AllowedOrigins: []string{"*"}},
		KBSec: KBSec{
			Enabled:              true,
			MaxRequestsPerMinute: 60,
			Burst:                10,
		},
		Vietcap: Vietcap{
			Enabled:              true,
			MaxRequestsPerMinute: 30,
			Burst:                5,
			BatchSize:            50,
		},
		News: News{
			Sources: []string{"vnexpress", "cafef", "tinnhanhchungkhoan", "vietstock", "bloomberg"},
		},
		Market: Market{
			CardGroups:  []string{"VN30", "HNX30"},
			BoardChunk:  50,
			UniverseCap: 200,
			Proxy:       Proxy{History: true},
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("PORT", &cfg.Server.Port)
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec)
	envCSV("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	envBool("KBSEC_ENABLED", &cfg.KBSec.Enabled)
	envStr("KBSEC_API_KEY", &cfg.KBSec.APIKey)
	envStr("KBSEC_ENDPOINT", &cfg.KBSec.Endpoint)
	envInt("KBSEC_MAX_RPM", &cfg.KBSec.MaxRequestsPerMinute)
	envInt("KBSEC_BURST", &cfg.KBSec.Burst)

	envBool("VIETCAP_ENABLED", &cfg.Vietcap.Enabled)
	envStr("VIETCAP_ENDPOINT", &cfg.Vietcap.Endpoint)
	envInt("VIETCAP_MAX_RPM", &cfg.Vietcap.MaxRequestsPerMinute)
	envInt("VIETCAP_BURST", &cfg.Vietcap.Burst)
	envInt("VIETCAP_BATCH_SIZE", &cfg.Vietcap.BatchSize)

	envCSV("NEWS_SOURCES", &cfg.News.Sources)

	envCSV("MARKET_CARD_GROUPS", &cfg.Market.CardGroups)
	envInt("MARKET_BOARD_CHUNK", &cfg.Market.BoardChunk)
	envInt("MARKET_UNIVERSE_CAP", &cfg.Market.UniverseCap)
	envBool("PROXY_HISTORY", &cfg.Market.Proxy.History)
	envBool("PROXY_QUOTE", &cfg.Market.Proxy.Quote)
	envBool("PROXY_BOARD", &cfg.Market.Proxy.Board)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x >= 0 {
			*dst = x
		}
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}

func envCSV(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		*dst = splitCSV(v)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
