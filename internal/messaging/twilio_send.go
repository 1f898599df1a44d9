package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

var whatsAppSendTracer = otel.Tracer("atma.internal.messaging.whatsapp_send")

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	maxSendAttempts      = 3
)

// WhatsAppSender posts WhatsApp messages using Twilio's REST API.
type WhatsAppSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	backoff    func() time.Duration
}

// SenderOption customizes a WhatsAppSender.
type SenderOption func(*WhatsAppSender)

// WithBaseURL points the sender at another API host (used by tests).
func WithBaseURL(u string) SenderOption {
	return func(s *WhatsAppSender) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *WhatsAppSender) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// NewWhatsAppSender builds a sender with sane defaults.
func NewWhatsAppSender(accountSID, authToken, defaultFrom string, logger *logging.Logger, opts ...SenderOption) *WhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	s := &WhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		backoff: func() time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Messenger = (*WhatsAppSender)(nil)

// Send dispatches a single WhatsApp message, retrying transient failures.
func (s *WhatsAppSender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.accountSID == "" || s.authToken == "" {
		return ErrNotConfigured
	}
	to := FormatWhatsAppAddress(msg.To)
	if to == "" {
		return fmt.Errorf("messaging: to required")
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	from = FormatWhatsAppAddress(from)
	if from == "" {
		return fmt.Errorf("messaging: from required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return fmt.Errorf("messaging: body required")
	}

	ctx, span := whatsAppSendTracer.Start(ctx, "messaging.whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("atma.account_id", msg.AccountID),
		attribute.String("atma.to", to),
	)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				_ = json.Unmarshal(body, &parsed)
				s.logger.Info("whatsapp message sent", "org_id", msg.AccountID, "to", to, "sid", parsed.SID)
				return nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < maxSendAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = maxSendAttempts
			case <-time.After(s.backoff()):
			}
		}
	}

	span.RecordError(lastErr)
	s.logger.Warn("whatsapp send failed", "org_id", msg.AccountID, "to", to, "error", lastErr)
	return lastErr
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
