package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/atma-clinic-ai/internal/http/middleware"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

const adminSecret = "router-test-secret"

type echoEngine struct{}

func (echoEngine) Handle(context.Context, messaging.InboundMessage) conversation.Outcome {
	return conversation.Outcome{Status: conversation.StatusGreetingSent}
}

type fixture struct {
	router       http.Handler
	appointments *scheduling.MemoryStore
	clinics      *clinic.MemoryStore
}

func newTestRouter(t *testing.T, readiness map[string]ReadinessCheck) fixture {
	t.Helper()

	logger := logging.Default()
	appts := scheduling.NewMemoryStore()
	clinics := clinic.NewMemoryStore()
	statuses := scheduling.NewStatusService(appts, nil, logger)

	cfg := &Config{
		Logger:            logger,
		WhatsAppWebhook:   handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{Engine: echoEngine{}, Logger: logger}),
		AppointmentLinks:  handlers.NewAppointmentConfirmHandler(statuses, logger),
		ClinicHandler:     clinic.NewHandler(clinic.NewDirectory(clinics, logger), logger),
		SchedulingHandler: scheduling.NewHandler(scheduling.HandlerConfig{Calendar: appts, Appointments: appts, Booking: scheduling.NewBookingCoordinator(appts, time.Hour, logger), Statuses: statuses, Logger: logger}),
		AdminAuthSecret:   adminSecret,
		Readiness:         readiness,
	}
	return fixture{router: New(cfg), appointments: appts, clinics: clinics}
}

func TestRouterHealthEndpoint(t *testing.T) {
	f := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected request id header")
	}
}

func TestRouterReadiness(t *testing.T) {
	f := newTestRouter(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	var resp struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Dependencies["redis"] != "down" || resp.Dependencies["postgres"] != "ok" {
		t.Errorf("unexpected readiness body: %+v", resp)
	}
}

func TestRouterWebhookRoute(t *testing.T) {
	f := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Body = http.NoBody
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	// Empty body cannot be parsed.
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d for GET, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestRouterConfirmLink(t *testing.T) {
	f := newTestRouter(t, nil)
	appt := &scheduling.Appointment{
		ID:                "appt-1",
		AccountID:         "acc-1",
		PatientID:         "pat-1",
		ProfessionalID:    "pro-1",
		StartAt:           time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		EndAt:             time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC),
		Status:            scheduling.StatusScheduled,
		ConfirmationToken: "tok-123",
	}
	if err := f.appointments.Create(context.Background(), appt); err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/appointments/confirm/tok-123", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	stored, err := f.appointments.Get(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if stored.Status != scheduling.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", stored.Status)
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	f := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	token, err := httpmiddleware.IssueAdminToken(adminSecret, "staff@clinica.test", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d for unknown account, got %d", http.StatusNotFound, rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/scheduling/professionals/pro-1/working-hours", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}
