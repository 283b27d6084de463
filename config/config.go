// Package config loads tool settings from an optional TOML file: the
// fetch TTL, the delta-debug wall-clock budget, cache and netrc/proxy
// locations, and the release-host token. Every field has a usable
// default, so the file itself is optional.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config holds every tunable that would otherwise be hard-coded, plus
// the environment consumed when downloading.
type Config struct {
	// CacheRoot is the root of the cache directory layout. If empty,
	// callers should default it to "$HOME/.cache/cartgo" or equivalent.
	CacheRoot string `toml:"cache_root"`

	// FetchTTLSeconds is the git mirror fetch-rate window (default 60s).
	FetchTTLSeconds int `toml:"fetch_ttl_seconds"`

	// DeltaDebugTimeoutSeconds bounds the unsatisfiability diagnosis pass
	// (default 10s).
	DeltaDebugTimeoutSeconds int `toml:"delta_debug_timeout_seconds"`

	// DefaultToolchain names the toolchain identifier used for framework
	// compatibility checks when the caller doesn't specify one explicitly.
	DefaultToolchain string `toml:"default_toolchain"`

	// NetrcPath overrides the default netrc location.
	NetrcPath string `toml:"netrc_path"`

	// HTTPProxy overrides the HTTP(S) proxy used for binary downloads and
	// release-host API requests.
	HTTPProxy string `toml:"http_proxy"`

	// ReleaseHostToken authenticates release-host API requests.
	ReleaseHostToken string `toml:"release_host_token"`
}

// Default returns a Config with every documented default applied.
func Default() *Config {
	return &Config{
		FetchTTLSeconds:          60,
		DeltaDebugTimeoutSeconds: 10,
	}
}

// FetchTTL returns FetchTTLSeconds as a time.Duration.
func (c *Config) FetchTTL() time.Duration {
	return time.Duration(c.FetchTTLSeconds) * time.Second
}

// DeltaDebugTimeout returns DeltaDebugTimeoutSeconds as a time.Duration.
func (c *Config) DeltaDebugTimeout() time.Duration {
	return time.Duration(c.DeltaDebugTimeoutSeconds) * time.Second
}

// Load reads a TOML settings file at path, overlaying it onto Default().
// A missing file is not an error: every field simply keeps its default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}

	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(*cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return os.WriteFile(path, data, 0o644)
}
