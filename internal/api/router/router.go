package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/atma-clinic-ai/internal/billing"
	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/atma-clinic-ai/internal/http/middleware"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// ReadinessCheck reports whether a dependency (database, redis) is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	WhatsAppWebhook   *handlers.WhatsAppWebhookHandler
	AppointmentLinks  *handlers.AppointmentConfirmHandler
	ClinicHandler     *clinic.Handler
	SchedulingHandler *scheduling.Handler
	BillingHandler    *billing.Handler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	ConfirmRateLimit   float64
	ConfirmRateBurst   int
	Readiness          map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		public.Get("/ready", ready(cfg.Readiness, cfg.Logger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsAppWebhook != nil {
			public.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.Handle)
		}
		if cfg.AppointmentLinks != nil {
			rate, burst := cfg.ConfirmRateLimit, cfg.ConfirmRateBurst
			if rate <= 0 {
				rate, burst = 1, 5
			}
			public.With(httpmiddleware.RateLimit(rate, burst)).
				Get("/appointments/confirm/{token}", cfg.AppointmentLinks.Confirm)
		}
	})

	// Staff routes
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Use(middleware.Compress(5))
		if cfg.ClinicHandler != nil {
			admin.Mount("/accounts", cfg.ClinicHandler.Routes())
		}
		if cfg.SchedulingHandler != nil {
			admin.Mount("/scheduling", cfg.SchedulingHandler.Routes())
		}
		if cfg.BillingHandler != nil {
			admin.Mount("/billing", cfg.BillingHandler.Routes())
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ready(checks map[string]ReadinessCheck, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		result := make(map[string]string, len(checks))
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("readiness check failed", "dependency", name, "error", err)
				result[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		status := "ok"
		if code != http.StatusOK {
			status = "degraded"
		}
		writeJSON(w, code, map[string]any{"status": status, "dependencies": result})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
