package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/internal/events"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/notify"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

func devConfig() *appconfig.Config {
	return &appconfig.Config{
		PublicBaseURL:       "http://localhost:8080",
		WhatsAppSimulate:    true,
		AppointmentDuration: time.Hour,
		WebhookDedup:        true,
		AdminJWTSecret:      "dev-secret",
		EmailProvider:       "auto",
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewInMemoryWiring(t *testing.T) {
	app, err := New(context.Background(), devConfig(), nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.Close()

	if _, ok := app.ClinicStore.(*clinic.MemoryStore); !ok {
		t.Errorf("expected memory clinic store, got %T", app.ClinicStore)
	}
	if _, ok := app.Appointments.(*scheduling.MemoryStore); !ok {
		t.Errorf("expected memory scheduling store, got %T", app.Appointments)
	}
	if _, ok := app.States.(*conversation.MemoryStateStore); !ok {
		t.Errorf("expected memory state store, got %T", app.States)
	}
	if _, ok := app.Messenger.(*messaging.SimulatedSender); !ok {
		t.Errorf("expected simulated messenger, got %T", app.Messenger)
	}
	if _, ok := app.Deduper.(*events.MemoryDeduper); !ok {
		t.Errorf("expected memory deduper, got %T", app.Deduper)
	}
	if app.Deliverer != nil {
		t.Error("expected no outbox deliverer without postgres")
	}
	app.StartDeliverer(context.Background())

	names := map[string]bool{}
	for _, job := range app.Jobs() {
		names[job.Name] = true
	}
	for _, want := range []string{"appointment_reminders", "followups", "monthly_charges", "payment_reminders"} {
		if !names[want] {
			t.Errorf("missing job %q", want)
		}
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	app, err := New(context.Background(), devConfig(), nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := app.Router()

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestProfessionalLocator(t *testing.T) {
	ctx := context.Background()
	store := clinic.NewMemoryStore()
	if err := store.SaveAccount(ctx, &clinic.Account{ID: "acc-1", Name: "Clínica", WhatsAppNumber: "5511999990000", Timezone: "America/Manaus"}); err != nil {
		t.Fatalf("save account: %v", err)
	}
	if err := store.SaveProfessional(ctx, &clinic.Professional{ID: "pro-1", AccountID: "acc-1", FullName: "Dra. Ana"}); err != nil {
		t.Fatalf("save professional: %v", err)
	}
	locator := professionalLocator{store: store}

	loc, err := locator.ProfessionalLocation(ctx, "pro-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "America/Manaus" {
		t.Errorf("expected America/Manaus, got %s", loc)
	}

	if _, err := locator.ProfessionalLocation(ctx, "missing"); err != scheduling.ErrNotFound {
		t.Errorf("expected scheduling.ErrNotFound, got %v", err)
	}
}

func TestWebhookSigningKey(t *testing.T) {
	cfg := &appconfig.Config{TwilioAuthToken: "auth-token"}
	if got := WebhookSigningKey(cfg); got != "auth-token" {
		t.Errorf("expected auth token fallback, got %q", got)
	}
	cfg.TwilioWebhookSecret = "dedicated"
	if got := WebhookSigningKey(cfg); got != "dedicated" {
		t.Errorf("expected dedicated secret, got %q", got)
	}
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")

	sender, provider := BuildEmailSender(&appconfig.Config{EmailProvider: "auto"}, nil, logger)
	if provider != "stub" {
		t.Errorf("expected stub provider, got %q", provider)
	}
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Errorf("expected stub sender, got %T", sender)
	}

	_, provider = BuildEmailSender(&appconfig.Config{EmailProvider: "auto", SendGridAPIKey: "SG.key", SendGridFromEmail: "no-reply@atma.app"}, nil, logger)
	if provider != "sendgrid" {
		t.Errorf("expected sendgrid provider, got %q", provider)
	}

	_, provider = BuildEmailSender(&appconfig.Config{EmailProvider: "ses", SESFromEmail: "no-reply@atma.app"}, nil, logger)
	if provider != "stub" {
		t.Errorf("expected stub when ses has no aws config, got %q", provider)
	}
}

func TestBuildNLUWithoutModelsUsesRules(t *testing.T) {
	if _, err := BuildNLU(context.Background(), nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}

	nlu, err := BuildNLU(context.Background(), &appconfig.Config{}, nil, nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := nlu.(*conversation.RuleNLU); !ok {
		t.Fatalf("expected RuleNLU, got %T", nlu)
	}
}

func TestBuildStateStoreWithoutRedis(t *testing.T) {
	if BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true) != nil {
		t.Fatal("expected nil client without REDIS_ADDR")
	}
	if _, ok := BuildStateStore(nil, logging.New("error")).(*conversation.MemoryStateStore); !ok {
		t.Fatal("expected memory state store")
	}
}
