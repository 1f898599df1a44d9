package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/notify"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// BuildOutboundMessenger creates the WhatsApp messenger, simulated or Twilio.
func BuildOutboundMessenger(cfg *appconfig.Config, logger *logging.Logger) (messaging.Messenger, string) {
	return messaging.BuildMessenger(messaging.SenderConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioWhatsAppNumber,
		Simulate:   cfg.WhatsAppSimulate,
	}, logger)
}

// WebhookSigningKey is the key used to validate X-Twilio-Signature. Twilio
// signs with the account auth token unless a dedicated secret is configured.
func WebhookSigningKey(cfg *appconfig.Config) string {
	if key := strings.TrimSpace(cfg.TwilioWebhookSecret); key != "" {
		return key
	}
	return strings.TrimSpace(cfg.TwilioAuthToken)
}

// BuildEmailSender picks the staff email provider. "auto" prefers SendGrid,
// then SES; with neither configured emails are only logged.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))

	sendgrid := func() notify.EmailSender {
		if s := notify.NewSendGridSender(cfg.SendGridAPIKey, notify.Identity{
			Email: cfg.SendGridFromEmail,
			Name:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	ses := func() notify.EmailSender {
		if awsCfg == nil || strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.Identity{
			Email: cfg.SESFromEmail,
			Name:  cfg.SESFromName,
		}, logger)
	}

	switch provider {
	case "sendgrid":
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
	case "ses":
		if s := ses(); s != nil {
			return s, "ses"
		}
	case "", "auto":
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
		if s := ses(); s != nil {
			return s, "ses"
		}
	}
	logger.Warn("no email provider configured; staff emails will only be logged", "provider", provider)
	return notify.NewStubEmailSender(logger), "stub"
}
