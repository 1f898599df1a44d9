package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

var billingTracer = otel.Tracer("atma.internal.billing")

// DefaultReminderAfterDays is how old a pending charge must be before the patient is reminded.
const DefaultReminderAfterDays = 3

// Biller creates transactions for completed appointments and sends payment reminders.
type Biller struct {
	store        Store
	appointments scheduling.AppointmentStore
	clinic       clinic.Store
	messenger    messaging.Messenger
	logger       *logging.Logger
	now          func() time.Time
}

// NewBiller wires the billing collaborators. messenger may be nil when reminders are not sent.
func NewBiller(store Store, appointments scheduling.AppointmentStore, clinicStore clinic.Store, messenger messaging.Messenger, logger *logging.Logger) *Biller {
	if store == nil {
		panic("billing: store required")
	}
	if appointments == nil {
		panic("billing: appointment store required")
	}
	if clinicStore == nil {
		panic("billing: clinic store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Biller{
		store:        store,
		appointments: appointments,
		clinic:       clinicStore,
		messenger:    messenger,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the time source.
func (b *Biller) SetClock(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

// Store exposes the transaction store for handlers.
func (b *Biller) Store() Store { return b.store }

var _ scheduling.CompletionHook = (*Biller)(nil)

// AppointmentCompleted charges a completed appointment immediately unless the
// patient is billed monthly, the appointment names no service, or it was already billed.
func (b *Biller) AppointmentCompleted(ctx context.Context, appt *scheduling.Appointment) error {
	if appt == nil || appt.ServiceID == nil {
		return nil
	}
	patient, err := b.clinic.Patient(ctx, appt.PatientID)
	if err != nil {
		return fmt.Errorf("billing: load patient: %w", err)
	}
	if patient.BillingDay != nil {
		return nil
	}
	_, err = b.charge(ctx, appt, b.localDate(ctx, appt.AccountID, b.now()))
	return err
}

// charge creates the pending transaction for appt. It reports false when it was already billed.
func (b *Biller) charge(ctx context.Context, appt *scheduling.Appointment, competence time.Time) (bool, error) {
	if _, err := b.store.ByAppointment(ctx, appt.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	svc, err := b.clinic.Service(ctx, *appt.ServiceID)
	if err != nil {
		return false, fmt.Errorf("billing: load service: %w", err)
	}
	apptID := appt.ID
	tx := &Transaction{
		AccountID:      appt.AccountID,
		PatientID:      appt.PatientID,
		ProfessionalID: appt.ProfessionalID,
		AppointmentID:  &apptID,
		ServiceID:      svc.ID,
		AmountCents:    svc.PriceCents,
		Status:         StatusPending,
		CompetenceDate: competence,
	}
	if err := b.store.Create(ctx, tx); err != nil {
		if errors.Is(err, ErrAlreadyBilled) {
			return false, nil
		}
		return false, err
	}
	b.logger.Info("transaction created", "org_id", appt.AccountID, "patient_id", appt.PatientID,
		"appointment_id", appt.ID, "amount_cents", tx.AmountCents)
	return true, nil
}

// Outstanding returns the patient's pending transactions and their total.
func (b *Biller) Outstanding(ctx context.Context, patientID string) (*Balance, error) {
	pending, err := b.store.PendingForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	bal := &Balance{PatientID: patientID, Pending: pending}
	for _, tx := range pending {
		bal.TotalCents += tx.AmountCents
	}
	return bal, nil
}

// MarkPaid settles a pending transaction.
func (b *Biller) MarkPaid(ctx context.Context, id string, method Method) error {
	return b.store.MarkPaid(ctx, id, method, b.now().UTC())
}

// GenerateMonthlyCharges bills every completed, unbilled appointment of the
// patients whose billing day is today's day of month. Returns the number created.
func (b *Biller) GenerateMonthlyCharges(ctx context.Context) (int, error) {
	ctx, span := billingTracer.Start(ctx, "billing.monthly_charges")
	defer span.End()

	today := b.now()
	patients, err := b.clinic.PatientsWithBillingDay(ctx, today.Day())
	if err != nil {
		return 0, fmt.Errorf("billing: list monthly patients: %w", err)
	}
	competence := dateOnly(today)
	created := 0
	for _, p := range patients {
		appts, err := b.appointments.CompletedForPatient(ctx, p.ID)
		if err != nil {
			return created, fmt.Errorf("billing: list completed appointments: %w", err)
		}
		for i := range appts {
			ok, err := b.charge(ctx, &appts[i], competence)
			if err != nil {
				b.logger.Error("monthly charge failed", "patient_id", p.ID, "appointment_id", appts[i].ID, "error", err)
				continue
			}
			if ok {
				created++
			}
		}
	}
	span.SetAttributes(attribute.Int("atma.transactions_created", created))
	b.logger.Info("monthly charges generated", "patients", len(patients), "created", created)
	return created, nil
}

// SendPaymentReminders messages patients about pending charges at least
// afterDays old and marks each reminded. Returns the number sent.
func (b *Biller) SendPaymentReminders(ctx context.Context, afterDays int) (int, error) {
	if b.messenger == nil {
		return 0, errors.New("billing: messenger required for reminders")
	}
	if afterDays <= 0 {
		afterDays = DefaultReminderAfterDays
	}
	ctx, span := billingTracer.Start(ctx, "billing.payment_reminders")
	defer span.End()

	cutoff := dateOnly(b.now()).AddDate(0, 0, -afterDays)
	due, err := b.store.DueForReminder(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, tx := range due {
		if err := b.remind(ctx, tx); err != nil {
			b.logger.Warn("payment reminder skipped", "transaction_id", tx.ID, "patient_id", tx.PatientID, "error", err)
			continue
		}
		if err := b.store.MarkReminderSent(ctx, tx.ID); err != nil {
			b.logger.Error("failed to mark payment reminder", "transaction_id", tx.ID, "error", err)
			continue
		}
		sent++
	}
	span.SetAttributes(attribute.Int("atma.reminders_sent", sent))
	return sent, nil
}

func (b *Biller) remind(ctx context.Context, tx Transaction) error {
	patient, err := b.clinic.Patient(ctx, tx.PatientID)
	if err != nil {
		return err
	}
	if patient.Phone == "" {
		return errors.New("patient has no phone")
	}
	svc, err := b.clinic.Service(ctx, tx.ServiceID)
	if err != nil {
		return err
	}
	pro, err := b.clinic.Professional(ctx, tx.ProfessionalID)
	if err != nil {
		return err
	}
	performed := tx.CompetenceDate
	if tx.AppointmentID != nil {
		if appt, err := b.appointments.Get(ctx, *tx.AppointmentID); err == nil {
			performed = b.localDate(ctx, appt.AccountID, appt.StartAt)
		}
	}
	body := PaymentReminderText(patient.FullName, svc.Name, performed, tx.AmountCents, pro.FullName)
	return b.messenger.Send(ctx, messaging.OutboundMessage{AccountID: tx.AccountID, To: patient.Phone, Body: body})
}

// PaymentReminderText renders the pending-payment WhatsApp message.
func PaymentReminderText(patientName, serviceName string, performed time.Time, amountCents int64, professionalName string) string {
	return fmt.Sprintf("Olá, *%s*!\n\n"+
		"Notei que o pagamento referente ao serviço de *%s* (realizado em %s), no valor de *%s*, ainda está pendente.\n\n"+
		"Poderia, por favor, verificar? Se já tiver efetuado o pagamento, por favor, desconsidere esta mensagem.\n\n"+
		"Qualquer dúvida, estou à disposição!\n\n"+
		"Atenciosamente,\n*%s*",
		patientName, serviceName, performed.Format("02/01/2006"), FormatBRL(amountCents), professionalName)
}

// localDate is the calendar date of t in the account's time zone.
func (b *Biller) localDate(ctx context.Context, accountID string, t time.Time) time.Time {
	loc := time.UTC
	if acc, err := b.clinic.Account(ctx, accountID); err == nil {
		loc = acc.Location()
	}
	return dateOnly(t.In(loc))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
