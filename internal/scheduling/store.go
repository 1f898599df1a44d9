package scheduling

import (
	"context"
	"time"
)

// CalendarStore loads a professional's recurring hours and date exceptions.
type CalendarStore interface {
	// ActiveWorkingHours returns every active weekday row for the professional.
	ActiveWorkingHours(ctx context.Context, professionalID string) ([]WorkingHours, error)
	// ExceptionsBetween returns exceptions dated within [from, to] inclusive.
	ExceptionsBetween(ctx context.Context, professionalID string, from, to time.Time) ([]ScheduleException, error)
	// ReplaceWorkingHours deactivates existing rows and stores hours as the active set.
	ReplaceWorkingHours(ctx context.Context, professionalID string, hours []WorkingHours) error
	// UpsertException stores or replaces the exception for its date.
	UpsertException(ctx context.Context, exc *ScheduleException) error
	DeleteException(ctx context.Context, professionalID string, date time.Time) error
}

// AppointmentStore persists appointments.
type AppointmentStore interface {
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	GetByToken(ctx context.Context, token string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error

	// BusyIntervals returns non-cancelled appointments overlapping [from, to).
	BusyIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]Interval, error)
	// HasConflict reports whether a non-cancelled appointment overlaps [start, end).
	HasConflict(ctx context.Context, professionalID string, start, end time.Time) (bool, error)

	// NextScheduledForPatient returns the earliest scheduled appointment starting after t.
	NextScheduledForPatient(ctx context.Context, patientID string, after time.Time) (*Appointment, error)
	ListByProfessional(ctx context.Context, professionalID string, from, to time.Time) ([]Appointment, error)

	// DueForReminder lists scheduled appointments starting in [from, to) without a reminder.
	DueForReminder(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// CompletedBetween lists completed appointments starting in [from, to) without a follow-up.
	CompletedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// CompletedForPatient lists the patient's completed appointments that name a service.
	CompletedForPatient(ctx context.Context, patientID string) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
	MarkFollowUpSent(ctx context.Context, id string) error
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
