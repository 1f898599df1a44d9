package messaging

import (
	"context"
	"sync"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// SimulatedSender logs outbound messages instead of delivering them.
type SimulatedSender struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []OutboundMessage
}

// NewSimulatedSender returns a sender for local development.
func NewSimulatedSender(logger *logging.Logger) *SimulatedSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimulatedSender{logger: logger}
}

var _ Messenger = (*SimulatedSender)(nil)

func (s *SimulatedSender) Send(ctx context.Context, msg OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.logger.Info("whatsapp message simulated",
		"org_id", msg.AccountID,
		"to", FormatWhatsAppAddress(msg.To),
		"body", msg.Body,
	)
	return nil
}

// Sent returns a copy of every message passed to Send.
func (s *SimulatedSender) Sent() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OutboundMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
