package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FetchTTLSeconds != 60 {
		t.Fatalf("expected default fetch TTL of 60, got %d", cfg.FetchTTLSeconds)
	}
	if cfg.DeltaDebugTimeoutSeconds != 10 {
		t.Fatalf("expected default delta-debug timeout of 10, got %d", cfg.DeltaDebugTimeoutSeconds)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartgorc.toml")

	cfg := Default()
	cfg.FetchTTLSeconds = 120
	cfg.ReleaseHostToken = "tok-123"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.FetchTTLSeconds != 120 {
		t.Fatalf("expected fetch TTL 120, got %d", got.FetchTTLSeconds)
	}
	if got.ReleaseHostToken != "tok-123" {
		t.Fatalf("expected token to round-trip, got %q", got.ReleaseHostToken)
	}
}
