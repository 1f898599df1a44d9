package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GEMINI_MODEL_ID", "")
	t.Setenv("SLOT_HORIZON_DAYS", "")
	t.Setenv("OFFER_TTL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GeminiModelID != "gemini-1.5-flash" {
		t.Fatalf("expected default gemini model, got %s", cfg.GeminiModelID)
	}
	if cfg.SlotHorizonDays != 30 || cfg.SlotMaxResults != 3 {
		t.Fatalf("unexpected slot policy defaults: %d/%d", cfg.SlotHorizonDays, cfg.SlotMaxResults)
	}
	if cfg.AppointmentDuration != time.Hour {
		t.Fatalf("expected 1h appointments, got %s", cfg.AppointmentDuration)
	}
	if cfg.OfferTTL != 10*time.Minute {
		t.Fatalf("expected 10m offer ttl, got %s", cfg.OfferTTL)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.IsProduction() {
		t.Fatalf("development config reported as production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("PUBLIC_BASE_URL", "https://atma.example.com/")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SLOT_HORIZON_DAYS", "14")
	t.Setenv("NPS_STATE_TTL", "72h")
	t.Setenv("WHATSAPP_SIMULATE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("CONFIRM_RATE_LIMIT", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.PublicBaseURL != "https://atma.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.SlotHorizonDays != 14 {
		t.Fatalf("expected horizon override, got %d", cfg.SlotHorizonDays)
	}
	if cfg.NPSStateTTL != 72*time.Hour {
		t.Fatalf("expected nps ttl override, got %s", cfg.NPSStateTTL)
	}
	if !cfg.WhatsAppSimulate {
		t.Fatalf("expected simulate mode enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ConfirmRateLimit != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.ConfirmRateLimit)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SLOT_MAX_RESULTS", "many")
	t.Setenv("OFFER_TTL", "soon")
	t.Setenv("REDIS_TLS", "maybe")
	cfg := Load()
	if cfg.SlotMaxResults != 3 {
		t.Fatalf("expected default max results, got %d", cfg.SlotMaxResults)
	}
	if cfg.OfferTTL != 10*time.Minute {
		t.Fatalf("expected default offer ttl, got %s", cfg.OfferTTL)
	}
	if cfg.RedisTLS {
		t.Fatalf("expected redis tls default false")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ATMA_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ATMA_TEST_DOTENV", "")
	os.Unsetenv("ATMA_TEST_DOTENV")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("ATMA_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
