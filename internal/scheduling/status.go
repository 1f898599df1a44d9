package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

var allowedTransitions = map[Status][]Status{
	StatusScheduled:    {StatusConfirmed, StatusCancelled, StatusRescheduling, StatusCompleted, StatusNoShow},
	StatusConfirmed:    {StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduling},
	StatusRescheduling: {StatusScheduled, StatusConfirmed, StatusCancelled},
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow, StatusRescheduling:
		return st, true
	}
	return "", false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CompletionHook runs after an appointment is marked completed.
type CompletionHook interface {
	AppointmentCompleted(ctx context.Context, appt *Appointment) error
}

// StatusService applies appointment lifecycle changes.
type StatusService struct {
	store  AppointmentStore
	hook   CompletionHook
	logger *logging.Logger
}

// NewStatusService creates a service. hook may be nil.
func NewStatusService(store AppointmentStore, hook CompletionHook, logger *logging.Logger) *StatusService {
	if store == nil {
		panic("scheduling: appointment store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusService{store: store, hook: hook, logger: logger}
}

// Transition moves an appointment to next. Setting the current status again is a no-op.
func (s *StatusService) Transition(ctx context.Context, id string, next Status) (*Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, appt, next)
}

// Confirm marks the appointment as confirmed by the patient.
func (s *StatusService) Confirm(ctx context.Context, id string) (*Appointment, error) {
	return s.Transition(ctx, id, StatusConfirmed)
}

// Cancel cancels the appointment, freeing its slot.
func (s *StatusService) Cancel(ctx context.Context, id string) (*Appointment, error) {
	return s.Transition(ctx, id, StatusCancelled)
}

// ConfirmByToken confirms the appointment behind a public confirmation link.
func (s *StatusService) ConfirmByToken(ctx context.Context, token string) (*Appointment, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	appt, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, appt, StatusConfirmed)
}

func (s *StatusService) apply(ctx context.Context, appt *Appointment, next Status) (*Appointment, error) {
	if appt.Status == next {
		return appt, nil
	}
	if !appt.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, next)
	}
	if err := s.store.UpdateStatus(ctx, appt.ID, next); err != nil {
		return nil, fmt.Errorf("scheduling: update status: %w", err)
	}
	prev := appt.Status
	appt.Status = next
	s.logger.Info("appointment status changed", "appointment_id", appt.ID, "from", prev, "to", next)

	if next == StatusCompleted && s.hook != nil {
		if err := s.hook.AppointmentCompleted(ctx, appt); err != nil {
			s.logger.Error("completion hook failed", "appointment_id", appt.ID, "error", err)
		}
	}
	return appt, nil
}
