// Package messaging delivers and receives WhatsApp messages through Twilio.
package messaging

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when an outbound send is attempted without credentials.
	ErrNotConfigured = errors.New("messaging: whatsapp credentials missing")
	// ErrInvalidPayload is returned when an inbound webhook body cannot be parsed.
	ErrInvalidPayload = errors.New("messaging: invalid inbound payload")
)

// OutboundMessage is a single text addressed to a patient.
// To and From may be raw phone numbers; senders format them for the channel.
type OutboundMessage struct {
	AccountID string
	To        string
	From      string
	Body      string
}

// Messenger sends outbound messages on behalf of an account.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundMessage is a patient message received by the webhook.
type InboundMessage struct {
	MessageSID string `json:"message_sid"`
	From       string `json:"from"`
	To         string `json:"to"`
	Body       string `json:"body"`
}
