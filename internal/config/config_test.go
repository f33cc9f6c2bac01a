package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ACCESS_TOKEN", "")
	t.Setenv("RECONNECT_DELAY_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Fatalf("api url=%q, want the local default", cfg.APIURL)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("reconnect delay=%v, want 3s", cfg.ReconnectDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_URL", "  https://tutor.example.com  ")
	t.Setenv("ACCESS_TOKEN", "tok-1")
	t.Setenv("RECONNECT_DELAY_MS", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://tutor.example.com" {
		t.Fatalf("api url=%q, want trimmed override", cfg.APIURL)
	}
	if cfg.AccessToken != "tok-1" {
		t.Fatalf("token=%q, want tok-1", cfg.AccessToken)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond {
		t.Fatalf("reconnect delay=%v, want 500ms", cfg.ReconnectDelay)
	}
}

func TestLoadRejectsBadDelay(t *testing.T) {
	t.Setenv("RECONNECT_DELAY_MS", "-5")

	if _, err := Load(); err == nil {
		t.Fatalf("negative reconnect delay should be rejected")
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("RECONNECT_DELAY_MS", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("reconnect delay=%v, want the 3s fallback", cfg.ReconnectDelay)
	}
}
