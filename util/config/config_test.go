package config

import (
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestLoad_Defaults(t *testing.T) {
	keyring.MockInit()
	t.Setenv("UEMM_GAME_DIR", "")
	t.Setenv("UEMM_CACHE_DIR", "")

	cfg := Load()
	if cfg.LogLevel != "info" || cfg.HTTPRetries != 3 || cfg.HTTPTimeout != 10*time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.GameDir != "" {
		t.Errorf("GameDir = %q, want empty", cfg.GameDir)
	}
}

func TestLoad_KeyringFallback(t *testing.T) {
	keyring.MockInit()
	t.Setenv("UEMM_GAME_DIR", "")
	t.Setenv("UEMM_CACHE_DIR", "/env/cache")

	if err := Save("/saved/game", "/saved/cache"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg := Load()
	if cfg.GameDir != "/saved/game" {
		t.Errorf("GameDir = %q", cfg.GameDir)
	}
	if cfg.CacheDir != "/env/cache" {
		t.Errorf("CacheDir = %q, env should win", cfg.CacheDir)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	keyring.MockInit()
	t.Setenv("UEMM_HTTP_RETRIES", "many")
	t.Setenv("UEMM_HTTP_TIMEOUT", "soon")

	cfg := Load()
	if cfg.HTTPRetries != 3 || cfg.HTTPTimeout != 10*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
}
