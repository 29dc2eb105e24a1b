package main

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medibook/medibook/internal/config"
	"github.com/medibook/medibook/internal/domain/directory"
	"github.com/medibook/medibook/internal/domain/wizard"
	"github.com/medibook/medibook/internal/platform/db"
	"github.com/medibook/medibook/internal/platform/middleware"
)

func TestRootCmd_Commands(t *testing.T) {
	root := rootCmd()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"up", "status"},
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("missing %q command: %v", name, err)
		}
		for _, sub := range subs {
			c, _, err := root.Find([]string{name, sub})
			if err != nil || c.Name() != sub {
				t.Errorf("missing %q %q command: %v", name, sub, err)
			}
		}
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "scheduling", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "blackouts"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2030-01-02 03:04:05") {
		t.Errorf("unexpected applied row %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") || !strings.Contains(lines[3], "blackouts") {
		t.Errorf("unexpected pending row %q", lines[3])
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	prodLogger := newLogger("production", &buf)
	prodLogger.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output outside development, got %q", buf.String())
	}

	buf.Reset()
	devLogger := newLogger("development", &buf)
	devLogger.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := corsConfig([]string{"https://app.example.com"})
	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "https://app.example.com" {
		t.Errorf("unexpected origins %v", cfg.AllowOrigins)
	}
	hasDelete := false
	for _, m := range cfg.AllowMethods {
		if m == http.MethodDelete {
			hasDelete = true
		}
	}
	if !hasDelete {
		t.Error("booking sessions are cancelled with DELETE")
	}
}

func TestSessionStore(t *testing.T) {
	if _, ok := sessionStore(nil, time.Minute).(*wizard.MemoryStore); !ok {
		t.Error("expected memory store without redis")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if _, ok := sessionStore(client, time.Minute).(*wizard.RedisStore); !ok {
		t.Error("expected redis store when a client is configured")
	}
}

type stubDirectory struct{ directory.Repository }

func TestDirectoryRepo(t *testing.T) {
	base := stubDirectory{}
	if got := directoryRepo(base, nil, time.Minute, zerolog.Nop()); got != directory.Repository(base) {
		t.Error("expected the uncached repository without redis")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if got := directoryRepo(base, client, 0, zerolog.Nop()); got != directory.Repository(base) {
		t.Error("a zero TTL disables caching")
	}
	if _, ok := directoryRepo(base, client, time.Minute, zerolog.Nop()).(*directory.CachedRepository); !ok {
		t.Error("expected the cached repository")
	}
}

func TestRateLimitConfig(t *testing.T) {
	if got := rateLimitConfig(&config.Config{}); got != middleware.DefaultRateLimitConfig() {
		t.Errorf("expected defaults when unset, got %+v", got)
	}
	got := rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 10})
	if got.RequestsPerSecond != 5 || got.BurstSize != 10 {
		t.Errorf("expected configured limits, got %+v", got)
	}
}
