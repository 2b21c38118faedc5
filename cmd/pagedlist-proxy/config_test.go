package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "https://api.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.RedisURL != "localhost:6379" {
		t.Errorf("RedisURL = %q, want localhost:6379", cfg.RedisURL)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.ErrorThreshold != 10 {
		t.Errorf("ErrorThreshold = %d, want 10", cfg.ErrorThreshold)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "https://api.example.com")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != 9090 || cfg.SessionTTL != 5*time.Minute || !cfg.LogPretty {
		t.Errorf("cfg = %+v, want overrides applied", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "missing upstream", env: map[string]string{"UPSTREAM_URL": ""}, wantMsg: "UPSTREAM_URL"},
		{name: "bad port", env: map[string]string{"UPSTREAM_URL": "https://x", "PORT": "70000"}, wantMsg: "PORT out of range"},
		{name: "bad duration", env: map[string]string{"UPSTREAM_URL": "https://x", "SESSION_TTL": "soon"}, wantMsg: "SessionTTL"},
		{name: "zero sessions", env: map[string]string{"UPSTREAM_URL": "https://x", "MAX_SESSIONS": "0"}, wantMsg: "MAX_SESSIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
				if v == "" {
					os.Unsetenv(k)
				}
			}
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("LoadConfig() error = %v, want mention of %s", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("PAGEDLIST_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PAGEDLIST_TEST_VALUE", "")
	os.Unsetenv("PAGEDLIST_TEST_VALUE")

	n, err := LoadEnv([]string{file, filepath.Join(dir, ".env.missing")})
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if n != 1 {
		t.Errorf("LoadEnv() loaded %d files, want 1", n)
	}
	if got := os.Getenv("PAGEDLIST_TEST_VALUE"); got != "from-file" {
		t.Errorf("PAGEDLIST_TEST_VALUE = %q, want from-file", got)
	}
}
