package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/internal/events"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	observemetrics "github.com/wolfman30/atma-clinic-ai/internal/observability/metrics"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

var webhookTracer = otel.Tracer("atma.internal.http.whatsapp_webhook")

const dedupProvider = "twilio"

// conversationEngine runs one patient turn.
type conversationEngine interface {
	Handle(ctx context.Context, msg messaging.InboundMessage) conversation.Outcome
}

// WhatsAppWebhookConfig wires the inbound webhook.
type WhatsAppWebhookConfig struct {
	Engine conversationEngine
	// SigningKey validates X-Twilio-Signature. Empty disables validation.
	SigningKey string
	// PublicBaseURL is used to rebuild the signed URL behind proxies.
	PublicBaseURL string
	Deduper       events.Deduper
	Metrics       *observemetrics.MessagingMetrics
	Logger        *logging.Logger
}

// WhatsAppWebhookHandler receives patient messages from Twilio and answers
// with the status token of the turn.
type WhatsAppWebhookHandler struct {
	engine     conversationEngine
	signingKey string
	baseURL    string
	deduper    events.Deduper
	metrics    *observemetrics.MessagingMetrics
	logger     *logging.Logger
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Engine == nil {
		panic("handlers: conversation engine required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		engine:     cfg.Engine,
		signingKey: cfg.SigningKey,
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		deduper:    cfg.Deduper,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

type webhookResponse struct {
	Status conversation.Status `json:"status"`
}

// Handle serves POST /webhooks/whatsapp.
func (h *WhatsAppWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := webhookTracer.Start(r.Context(), "whatsapp.webhook")
	defer span.End()

	// The JSON shape carries no signature, so it is only accepted when
	// validation is off.
	if h.signingKey != "" {
		if messaging.IsJSON(r) || !messaging.ValidateTwilioSignature(r, h.signingKey, h.signedURL(r)) {
			h.logger.Warn("invalid twilio signature")
			span.RecordError(errors.New("invalid twilio signature"))
			h.metrics.ObserveInbound("unauthorized", time.Since(start).Seconds())
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	msg, err := messaging.ParseInbound(r)
	if err != nil {
		h.logger.Warn("failed to parse inbound message", "error", err)
		span.RecordError(err)
		h.respond(w, http.StatusBadRequest, conversation.StatusInsufficientData, start)
		return
	}
	span.SetAttributes(attribute.String("atma.message_sid", msg.MessageSID))

	if h.isDuplicate(ctx, msg.MessageSID) {
		h.logger.Info("duplicate inbound message ignored", "message_sid", msg.MessageSID)
		h.respond(w, http.StatusOK, conversation.StatusDuplicate, start)
		return
	}

	out := h.engine.Handle(ctx, *msg)
	span.SetAttributes(attribute.String("atma.status", string(out.Status)))
	h.respond(w, http.StatusOK, out.Status, start)
}

func (h *WhatsAppWebhookHandler) isDuplicate(ctx context.Context, sid string) bool {
	if h.deduper == nil || strings.TrimSpace(sid) == "" {
		return false
	}
	fresh, err := h.deduper.MarkProcessed(ctx, dedupProvider, sid)
	if err != nil {
		// Fail open.
		h.logger.Error("dedup lookup failed", "message_sid", sid, "error", err)
		return false
	}
	return !fresh
}

func (h *WhatsAppWebhookHandler) respond(w http.ResponseWriter, code int, status conversation.Status, start time.Time) {
	h.metrics.ObserveInbound(string(status), time.Since(start).Seconds())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(webhookResponse{Status: status})
}

func (h *WhatsAppWebhookHandler) signedURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL + r.URL.RequestURI()
	}
	return absoluteURL(r)
}

func absoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
