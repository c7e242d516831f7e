// Package config loads settings from the environment, falling back to the
// directories saved in the OS keyring by `uemodman init`.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "uemodman"
	keyGameDir     = "game_dir"
	keyCacheDir    = "cache_dir"
)

type Config struct {
	GameDir  string
	CacheDir string

	LogLevel  string
	LogFormat string

	HTTPTimeout time.Duration
	HTTPRetries int
	UserAgent   string

	// RemoteGameID keys the cache manifest, eg the Nexus game domain.
	RemoteGameID string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		GameDir:      envOr("UEMM_GAME_DIR", ""),
		CacheDir:     envOr("UEMM_CACHE_DIR", ""),
		LogLevel:     envOr("UEMM_LOG_LEVEL", "info"),
		LogFormat:    envOr("UEMM_LOG_FORMAT", "console"),
		HTTPTimeout:  envDuration("UEMM_HTTP_TIMEOUT", 10*time.Minute),
		HTTPRetries:  envInt("UEMM_HTTP_RETRIES", 3),
		UserAgent:    envOr("UEMM_USER_AGENT", "uemodman/1.0"),
		RemoteGameID: envOr("UEMM_REMOTE_GAME_ID", ""),
	}
	if cfg.GameDir == "" {
		cfg.GameDir, _ = keyring.Get(keyringService, keyGameDir)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir, _ = keyring.Get(keyringService, keyCacheDir)
	}
	return cfg
}

// Save stores the game and cache directories in the keyring. Empty values are skipped.
func Save(gameDir, cacheDir string) error {
	if gameDir != "" {
		if err := keyring.Set(keyringService, keyGameDir, gameDir); err != nil {
			return err
		}
	}
	if cacheDir != "" {
		if err := keyring.Set(keyringService, keyCacheDir, cacheDir); err != nil {
			return err
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
