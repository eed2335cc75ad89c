package config

import (
	"log/slog"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/hrerp",
		JWTSecret:          "test-secret",
		Environment:        "test",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    24 * time.Hour,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 60,
		DispatchWorkers:    1,
		DispatchQueueSize:  16,
		JobTimeout:         time.Second,
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := Load()
	if cfg.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %q", cfg.Addr)
	}
	if !cfg.EmailEnabled {
		t.Fatal("expected email enabled")
	}
	if cfg.SMTPPort != 2525 {
		t.Fatalf("expected smtp port 2525, got %d", cfg.SMTPPort)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("expected 30m access ttl, got %v", cfg.AccessTokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")
	t.Setenv("RUN_SEED", "maybe")
	t.Setenv("IDEMPOTENCY_TTL", "soon")

	cfg := Load()
	if cfg.SMTPPort != 587 {
		t.Fatalf("expected default smtp port, got %d", cfg.SMTPPort)
	}
	if !cfg.RunSeed {
		t.Fatal("expected default run seed true")
	}
	if cfg.IdempotencyTTL != 5*time.Minute {
		t.Fatalf("expected default idempotency ttl, got %v", cfg.IdempotencyTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = " " }, wantErr: true},
		{name: "short production secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: true},
		{name: "refresh shorter than access", mutate: func(c *Config) { c.RefreshTokenTTL = time.Minute }, wantErr: true},
		{name: "tiny body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }, wantErr: true},
		{name: "email without smtp host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: true},
		{name: "no dispatch workers", mutate: func(c *Config) { c.DispatchWorkers = 0 }, wantErr: true},
		{name: "negative rollover interval", mutate: func(c *Config) { c.RolloverInterval = -time.Minute }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Config{LogLevel: "DEBUG"}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.SlogLevel())
	}
	cfg.LogLevel = "bogus"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.SlogLevel())
	}
}
