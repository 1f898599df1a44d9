package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// BookingRequest describes a slot a patient (or staff member) wants to take.
type BookingRequest struct {
	AccountID      string
	PatientID      string
	ProfessionalID string
	ServiceID      *string
	Title          string
	StartAt        time.Time
	Source         Source
}

// BookingCoordinator turns a chosen slot into a persisted appointment.
type BookingCoordinator struct {
	store    AppointmentStore
	duration time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

// NewBookingCoordinator creates a coordinator. A zero duration uses DefaultAppointmentDuration.
func NewBookingCoordinator(store AppointmentStore, duration time.Duration, logger *logging.Logger) *BookingCoordinator {
	if store == nil {
		panic("scheduling: appointment store required")
	}
	if duration <= 0 {
		duration = DefaultAppointmentDuration
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingCoordinator{store: store, duration: duration, now: time.Now, logger: logger}
}

// SetClock overrides the time source.
func (b *BookingCoordinator) SetClock(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

// Book re-checks the slot and inserts the appointment. It returns
// ErrSlotUnavailable when the slot was taken (or has passed) since it was offered.
// Conversational bookings are created confirmed; staff bookings start scheduled.
func (b *BookingCoordinator) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("atma.account_id", req.AccountID),
		attribute.String("atma.professional_id", req.ProfessionalID),
	)

	if strings.TrimSpace(req.PatientID) == "" || strings.TrimSpace(req.ProfessionalID) == "" {
		return nil, fmt.Errorf("%w: patient and professional are required", ErrInvalidBooking)
	}
	if req.StartAt.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidBooking)
	}
	if !req.StartAt.After(b.now()) {
		return nil, ErrSlotUnavailable
	}

	end := req.StartAt.Add(b.duration)
	taken, err := b.store.HasConflict(ctx, req.ProfessionalID, req.StartAt, end)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: conflict check: %w", err)
	}
	if taken {
		b.logger.Info("slot taken before booking", "account_id", req.AccountID, "professional_id", req.ProfessionalID, "start_at", req.StartAt)
		return nil, ErrSlotUnavailable
	}

	status := StatusScheduled
	if req.Source == SourceConversation {
		status = StatusConfirmed
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Consulta"
	}
	appt := &Appointment{
		ID:                uuid.NewString(),
		AccountID:         req.AccountID,
		PatientID:         req.PatientID,
		ProfessionalID:    req.ProfessionalID,
		ServiceID:         req.ServiceID,
		Title:             title,
		StartAt:           req.StartAt.UTC(),
		EndAt:             end.UTC(),
		Status:            status,
		ConfirmationToken: uuid.NewString(),
	}
	if err := b.store.Create(ctx, appt); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("scheduling: create appointment: %w", err)
	}
	b.logger.Info("appointment booked",
		"account_id", appt.AccountID,
		"appointment_id", appt.ID,
		"professional_id", appt.ProfessionalID,
		"start_at", appt.StartAt,
		"status", appt.Status,
	)
	return appt, nil
}
