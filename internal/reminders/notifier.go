// Package reminders sends the scheduled WhatsApp messages around an
// appointment: the confirmation reminder the day before and the follow-up
// with a satisfaction question the day after.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

var tracer = otel.Tracer("atma.internal.reminders")

const (
	// DefaultLead is how far ahead reminders go out.
	DefaultLead = 24 * time.Hour
	// DefaultWindow is the width of the reminder window after the lead.
	DefaultWindow = time.Hour
)

var errNoPhone = errors.New("reminders: patient has no phone")

// Config wires a Notifier.
type Config struct {
	Appointments scheduling.AppointmentStore
	Clinic       clinic.Store
	States       conversation.StateStore
	Messenger    messaging.Messenger
	// PublicBaseURL prefixes confirmation links, e.g. https://api.atma.app.
	PublicBaseURL string
	Lead          time.Duration
	Window        time.Duration
	NPSTTL        time.Duration
	Logger        *logging.Logger
	Now           func() time.Time
}

// Notifier finds appointments that need a message and sends it.
type Notifier struct {
	appointments scheduling.AppointmentStore
	clinic       clinic.Store
	states       conversation.StateStore
	messenger    messaging.Messenger
	baseURL      string
	lead         time.Duration
	window       time.Duration
	npsTTL       time.Duration
	logger       *logging.Logger
	now          func() time.Time
}

func NewNotifier(cfg Config) *Notifier {
	if cfg.Appointments == nil || cfg.Clinic == nil {
		panic("reminders: stores required")
	}
	if cfg.States == nil {
		panic("reminders: state store required")
	}
	if cfg.Messenger == nil {
		panic("reminders: messenger required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.NPSTTL <= 0 {
		cfg.NPSTTL = conversation.DefaultNPSTTL
	}
	return &Notifier{
		appointments: cfg.Appointments,
		clinic:       cfg.Clinic,
		states:       cfg.States,
		messenger:    cfg.Messenger,
		baseURL:      strings.TrimRight(cfg.PublicBaseURL, "/"),
		lead:         cfg.Lead,
		window:       cfg.Window,
		npsTTL:       cfg.NPSTTL,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// SendAppointmentReminders messages patients whose scheduled appointment
// starts between lead and lead+window from now, then marks each reminded.
// It returns the number of reminders sent.
func (n *Notifier) SendAppointmentReminders(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "reminders.appointments")
	defer span.End()

	now := n.now()
	from := now.Add(n.lead)
	due, err := n.appointments.DueForReminder(ctx, from, from.Add(n.window))
	if err != nil {
		return 0, fmt.Errorf("reminders: list due appointments: %w", err)
	}
	sent := 0
	for i := range due {
		appt := &due[i]
		if err := n.remind(ctx, appt); err != nil {
			n.logger.Warn("appointment reminder skipped", "appointment_id", appt.ID, "patient_id", appt.PatientID, "error", err)
			continue
		}
		if err := n.appointments.MarkReminderSent(ctx, appt.ID); err != nil {
			n.logger.Error("failed to mark reminder sent", "appointment_id", appt.ID, "error", err)
			continue
		}
		sent++
	}
	span.SetAttributes(attribute.Int("atma.reminders_sent", sent))
	n.logger.Info("appointment reminders processed", "due", len(due), "sent", sent)
	return sent, nil
}

func (n *Notifier) remind(ctx context.Context, appt *scheduling.Appointment) error {
	patient, pro, acc, err := n.participants(ctx, appt)
	if err != nil {
		return err
	}
	body := ReminderText(patient.FullName, appt.Title, pro.FullName, appt.StartAt.In(acc.Location()), n.ConfirmURL(appt.ConfirmationToken))
	return n.messenger.Send(ctx, messaging.OutboundMessage{
		AccountID: appt.AccountID,
		To:        patient.Phone,
		From:      acc.WhatsAppNumber,
		Body:      body,
	})
}

// SendFollowUps messages patients whose appointment was completed yesterday
// (in the account's time zone), asks for a 0-10 score and arms the
// conversation to read the answer.
func (n *Notifier) SendFollowUps(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "reminders.followups")
	defer span.End()

	now := n.now()
	// Wide enough to cover yesterday in every zone; filtered per account below.
	completed, err := n.appointments.CompletedBetween(ctx, now.Add(-72*time.Hour), now)
	if err != nil {
		return 0, fmt.Errorf("reminders: list completed appointments: %w", err)
	}
	sent := 0
	for i := range completed {
		appt := &completed[i]
		ok, err := n.followUp(ctx, appt, now)
		if err != nil {
			n.logger.Warn("follow-up skipped", "appointment_id", appt.ID, "patient_id", appt.PatientID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := n.appointments.MarkFollowUpSent(ctx, appt.ID); err != nil {
			n.logger.Error("failed to mark follow-up sent", "appointment_id", appt.ID, "error", err)
			continue
		}
		sent++
	}
	span.SetAttributes(attribute.Int("atma.followups_sent", sent))
	n.logger.Info("follow-ups processed", "candidates", len(completed), "sent", sent)
	return sent, nil
}

func (n *Notifier) followUp(ctx context.Context, appt *scheduling.Appointment, now time.Time) (bool, error) {
	patient, pro, acc, err := n.participants(ctx, appt)
	if err != nil {
		return false, err
	}
	loc := acc.Location()
	yesterday := now.In(loc).AddDate(0, 0, -1)
	if !sameDate(appt.StartAt.In(loc), yesterday) {
		return false, nil
	}
	key := conversation.StateKey(appt.AccountID, patient.ID)
	// A patient mid-flow keeps their state; later runs retry while the
	// appointment is still yesterday's.
	if current, err := n.states.Get(ctx, key); err != nil {
		n.logger.Warn("failed to read conversation state before follow-up", "appointment_id", appt.ID, "error", err)
	} else if !current.Idle() {
		n.logger.Info("follow-up deferred, conversation in progress", "appointment_id", appt.ID, "step", current.Step)
		return false, nil
	}
	err = n.messenger.Send(ctx, messaging.OutboundMessage{
		AccountID: appt.AccountID,
		To:        patient.Phone,
		From:      acc.WhatsAppNumber,
		Body:      FollowUpText(patient.FullName, pro.FullName),
	})
	if err != nil {
		return false, err
	}
	state := conversation.State{
		Step:           conversation.StepAwaitingNPSScore,
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		UpdatedAt:      now,
	}
	if err := n.states.Put(ctx, key, state, n.npsTTL); err != nil {
		// The message went out; the score reply will be classified normally.
		n.logger.Error("failed to arm nps state", "appointment_id", appt.ID, "error", err)
	}
	return true, nil
}

func (n *Notifier) participants(ctx context.Context, appt *scheduling.Appointment) (*clinic.Patient, *clinic.Professional, *clinic.Account, error) {
	patient, err := n.clinic.Patient(ctx, appt.PatientID)
	if err != nil {
		return nil, nil, nil, err
	}
	if strings.TrimSpace(patient.Phone) == "" {
		return nil, nil, nil, errNoPhone
	}
	pro, err := n.clinic.Professional(ctx, appt.ProfessionalID)
	if err != nil {
		return nil, nil, nil, err
	}
	acc, err := n.clinic.Account(ctx, appt.AccountID)
	if err != nil {
		return nil, nil, nil, err
	}
	return patient, pro, acc, nil
}

// ConfirmURL is the public link that confirms an appointment in one tap.
func (n *Notifier) ConfirmURL(token string) string {
	return n.baseURL + "/appointments/confirm/" + token
}

// ReminderText renders the day-before reminder.
func ReminderText(patientName, title, professionalName string, start time.Time, confirmURL string) string {
	return fmt.Sprintf("Olá, *%s*! 👋\n\n"+
		"Este é um lembrete da sua consulta agendada:\n"+
		"*Serviço:* %s\n"+
		"*Profissional:* %s\n"+
		"*Data e Hora:* %s\n\n"+
		"Para confirmar sua presença, clique no link abaixo ou simplesmente responda *\"SIM\"* a esta mensagem. "+
		"Se precisar remarcar, responda *\"REAGENDAR\"*.\n%s\n\n"+
		"Até breve!",
		patientName, title, professionalName, start.Format("02/01/2006 às 15:04"), confirmURL)
}

// FollowUpText renders the day-after message with the satisfaction question.
func FollowUpText(patientName, professionalName string) string {
	return fmt.Sprintf("Olá, *%s*!\n\n"+
		"Passando para saber como se sente após a nossa consulta de ontem. Espero que esteja tudo bem!\n\n"+
		"De 0 a 10, qual a probabilidade de você nos recomendar a um amigo ou familiar? Responda apenas com o número.\n\n"+
		"Com os melhores cumprimentos,\n*%s*",
		patientName, professionalName)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
