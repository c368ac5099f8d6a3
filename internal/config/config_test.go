package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8000" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
	if !cfg.Market.Proxy.History || cfg.Market.Proxy.Quote {
		t.Fatalf("unexpected proxy defaults: %+v", cfg.Market.Proxy)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server":{"port":"9000"},"market":{"universe_cap":50,"proxy":{"quote":true}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.Server.Port)
	}
	if cfg.Market.UniverseCap != 50 {
		t.Fatalf("expected universe cap from file, got %d", cfg.Market.UniverseCap)
	}
	if !cfg.Market.Proxy.Quote {
		t.Fatal("expected quote proxy enabled from file")
	}
	// Untouched sections keep their defaults.
	if cfg.Vietcap.BatchSize != 50 {
		t.Fatalf("expected default batch size, got %d", cfg.Vietcap.BatchSize)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("KBSEC_API_KEY", "sekrit")
	t.Setenv("PROXY_HISTORY", "false")
	t.Setenv("NEWS_SOURCES", "vnexpress, cafef")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("expected port from env, got %q", cfg.Server.Port)
	}
	if cfg.KBSec.APIKey != "sekrit" {
		t.Fatalf("expected key from env, got %q", cfg.KBSec.APIKey)
	}
	if cfg.Market.Proxy.History {
		t.Fatal("expected history proxy disabled via env")
	}
	if len(cfg.News.Sources) != 2 || cfg.News.Sources[1] != "cafef" {
		t.Fatalf("unexpected sources: %v", cfg.News.Sources)
	}
}
