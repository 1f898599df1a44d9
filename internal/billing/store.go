package billing

import (
	"context"
	"time"
)

// Store persists transactions.
type Store interface {
	// Create inserts a pending transaction. ErrAlreadyBilled when the appointment has one.
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	// ByAppointment returns ErrNotFound when the appointment was never billed.
	ByAppointment(ctx context.Context, appointmentID string) (*Transaction, error)
	PendingForPatient(ctx context.Context, patientID string) ([]Transaction, error)
	// DueForReminder lists pending transactions dated on or before cutoff with no reminder sent.
	DueForReminder(ctx context.Context, cutoff time.Time) ([]Transaction, error)
	MarkReminderSent(ctx context.Context, id string) error
	MarkPaid(ctx context.Context, id string, method Method, at time.Time) error
}
