package messaging

import "github.com/wolfman30/atma-clinic-ai/pkg/logging"

const (
	// ModeTwilio delivers through the Twilio WhatsApp API.
	ModeTwilio = "twilio"
	// ModeSimulated logs messages instead of sending them.
	ModeSimulated = "simulated"
)

// SenderConfig captures the credentials required to build the outbound messenger.
type SenderConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Simulate   bool
}

// BuildMessenger instantiates the outbound messenger and reports which mode was selected.
// Missing credentials do not fail startup; each send then returns ErrNotConfigured.
func BuildMessenger(cfg SenderConfig, logger *logging.Logger) (Messenger, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Simulate {
		logger.Info("whatsapp simulation enabled; outbound messages will only be logged")
		return NewSimulatedSender(logger), ModeSimulated
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		logger.Warn("twilio credentials missing; outbound whatsapp sends will fail")
	}
	return NewWhatsAppSender(cfg.AccountSID, cfg.AuthToken, cfg.FromNumber, logger), ModeTwilio
}
