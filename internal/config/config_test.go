package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
quiz:
  enforce_window: false
  leaderboard_limit: 10
admin:
  password: "s3cret"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected server/redis %+v %+v", cfg.Server, cfg.Redis)
	}
	if cfg.Quiz.EnforceWindow || cfg.Quiz.LeaderboardLimit != 10 {
		t.Fatalf("unexpected quiz section %+v", cfg.Quiz)
	}
	if cfg.Admin.Username != "admin" || cfg.Admin.Password != "s3cret" {
		t.Fatalf("unexpected admin section %+v", cfg.Admin)
	}
	if cfg.Quiz.BroadcastInterval != "500ms" || cfg.Log.Level != "info" {
		t.Fatalf("defaults not kept: %+v %+v", cfg.Quiz, cfg.Log)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Quiz.EnforceWindow || cfg.Server.Port != "8080" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("ADMIN_PASSWORD", "from-env")
	t.Setenv("LOG_FORMAT", "pretty")
	t.Setenv("ENFORCE_ANSWER_WINDOW", "false")

	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" || cfg.Redis.Addr != "redis:6379" || cfg.Admin.Password != "from-env" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Log.Format != "pretty" || cfg.Quiz.EnforceWindow {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Log, cfg.Quiz)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  allowed_origins: [\"https://quiz.example.com\"]\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://quiz.example.com" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}

	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins from env %v", cfg.Server.AllowedOrigins)
	}
}

func TestEnvironmentRejectsBadBool(t *testing.T) {
	t.Setenv("ENFORCE_ANSWER_WINDOW", "sometimes")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for bad boolean")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("250ms", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %v", got)
	}
}
