package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/events"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// AccountLookup loads the account whose staff should be notified.
type AccountLookup interface {
	Account(ctx context.Context, id string) (*clinic.Account, error)
}

// StaffNotifier emails clinic staff about events that need a human.
// It implements events.DeliveryHandler so the outbox deliverer can drive it.
type StaffNotifier struct {
	email    EmailSender
	accounts AccountLookup
	logger   *logging.Logger
}

func NewStaffNotifier(email EmailSender, accounts AccountLookup, logger *logging.Logger) *StaffNotifier {
	if email == nil {
		panic("notify: email sender required")
	}
	if accounts == nil {
		panic("notify: account lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StaffNotifier{email: email, accounts: accounts, logger: logger}
}

var _ events.DeliveryHandler = (*StaffNotifier)(nil)

// Handle renders and sends the email for a delivered outbox entry.
// Unknown event types and accounts without a staff email are acknowledged silently.
func (n *StaffNotifier) Handle(ctx context.Context, entry events.OutboxEntry) error {
	acc, err := n.accounts.Account(ctx, entry.AccountID)
	if errors.Is(err, clinic.ErrAccountNotFound) {
		n.logger.Warn("notify: account missing for event", "org_id", entry.AccountID, "type", entry.Type)
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: load account: %w", err)
	}
	if strings.TrimSpace(acc.StaffEmail) == "" {
		n.logger.Debug("notify: no staff email configured", "org_id", acc.ID, "type", entry.Type)
		return nil
	}

	var msg EmailMessage
	switch entry.Type {
	case events.TypeDocumentRequested:
		var evt events.DocumentRequestedV1
		if err := entry.Decode(&evt); err != nil {
			return err
		}
		msg = documentRequestEmail(acc, evt)
	case events.TypeHandoffRequested:
		var evt events.HandoffRequestedV1
		if err := entry.Decode(&evt); err != nil {
			return err
		}
		msg = handoffEmail(acc, evt)
	case events.TypeAppointmentBooked:
		var evt events.AppointmentBookedV1
		if err := entry.Decode(&evt); err != nil {
			return err
		}
		msg = bookingEmail(acc, evt)
	default:
		return nil
	}
	msg.To = acc.StaffEmail
	msg.ToName = acc.Name
	msg.Category = entry.Type
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %s: %w", entry.Type, err)
	}
	n.logger.Info("staff notified", "org_id", acc.ID, "type", entry.Type)
	return nil
}

func documentRequestEmail(acc *clinic.Account, evt events.DocumentRequestedV1) EmailMessage {
	kind := clinic.RequestKind(evt.Kind).Label()
	body := fmt.Sprintf("Paciente: %s\nTelefone: %s\nTipo: %s\nDetalhes: %s\nRecebida em: %s",
		evt.PatientName, evt.PatientPhone, kind, evt.Details,
		evt.RequestedAt.In(acc.Location()).Format("02/01/2006 15:04"))
	return EmailMessage{
		Subject: fmt.Sprintf("Nova solicitação de %s - %s", kind, evt.PatientName),
		Body:    body,
		HTML:    textToHTML(body),
	}
}

func handoffEmail(acc *clinic.Account, evt events.HandoffRequestedV1) EmailMessage {
	body := fmt.Sprintf("O assistente não entendeu a mensagem de %s (%s) e ofereceu atendimento humano.\n\nÚltima mensagem: %q\nEm: %s",
		evt.PatientName, evt.PatientPhone, evt.LastMessage,
		evt.RequestedAt.In(acc.Location()).Format("02/01/2006 15:04"))
	return EmailMessage{
		Subject: fmt.Sprintf("Paciente aguardando atendimento - %s", evt.PatientName),
		Body:    body,
		HTML:    textToHTML(body),
	}
}

func bookingEmail(acc *clinic.Account, evt events.AppointmentBookedV1) EmailMessage {
	when := evt.StartAt.In(acc.Location()).Format("02/01/2006 às 15:04")
	body := fmt.Sprintf("%s agendou uma consulta pelo WhatsApp para %s.", evt.PatientName, when)
	return EmailMessage{
		Subject: fmt.Sprintf("Novo agendamento - %s", when),
		Body:    body,
		HTML:    textToHTML(body),
	}
}

func textToHTML(body string) string {
	return "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"
}
