package main

import (
	"strings"
	"testing"

	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
)

func TestCheckProductionConfig(t *testing.T) {
	if err := checkProductionConfig(&appconfig.Config{Env: "development"}); err != nil {
		t.Fatalf("development should not be validated: %v", err)
	}

	err := checkProductionConfig(&appconfig.Config{Env: "production", WhatsAppSimulate: true})
	if err == nil {
		t.Fatalf("expected error for empty production config")
	}
	for _, want := range []string{"DATABASE_URL", "ADMIN_JWT_SECRET", "TWILIO_AUTH_TOKEN", "WHATSAPP_SIMULATE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}

	ok := &appconfig.Config{
		Env:             "production",
		DatabaseURL:     "postgres://atma@db/atma",
		AdminJWTSecret:  "s3cret",
		TwilioAuthToken: "token",
	}
	if err := checkProductionConfig(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
