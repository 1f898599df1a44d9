package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists transactions in the transactions table.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("billing: db required")
	}
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const transactionColumns = `id, account_id, patient_id, professional_id, appointment_id, service_id, amount_cents, status, method, competence_date, paid_at, reminder_sent, created_at`

func (s *PostgresStore) Create(ctx context.Context, tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	tx.CreatedAt = time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		INSERT INTO transactions (id, account_id, patient_id, professional_id, appointment_id, service_id, amount_cents, status, competence_date, reminder_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10)
		ON CONFLICT (appointment_id) DO NOTHING`,
		tx.ID, tx.AccountID, tx.PatientID, tx.ProfessionalID, tx.AppointmentID, tx.ServiceID,
		tx.AmountCents, string(tx.Status), tx.CompetenceDate, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("billing: insert transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyBilled
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (s *PostgresStore) ByAppointment(ctx context.Context, appointmentID string) (*Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE appointment_id = $1`, appointmentID))
}

func (s *PostgresStore) PendingForPatient(ctx context.Context, patientID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE patient_id = $1 AND status = 'pending'
		ORDER BY competence_date ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("billing: list pending: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) DueForReminder(ctx context.Context, cutoff time.Time) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE status = 'pending' AND NOT reminder_sent AND competence_date <= $1
		ORDER BY competence_date ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("billing: list due reminders: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `UPDATE transactions SET reminder_sent = true WHERE id = $1`, id); err != nil {
		return fmt.Errorf("billing: mark reminder sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, id string, method Method, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE transactions SET status = 'paid', method = $2, paid_at = $3
		WHERE id = $1 AND status = 'pending'`, id, string(method), at)
	if err != nil {
		return fmt.Errorf("billing: mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		tx     Transaction
		status string
		method *string
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &tx.PatientID, &tx.ProfessionalID, &tx.AppointmentID, &tx.ServiceID,
		&tx.AmountCents, &status, &method, &tx.CompetenceDate, &tx.PaidAt, &tx.ReminderSent, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("billing: scan transaction: %w", err)
	}
	tx.Status = Status(status)
	if method != nil {
		m := Method(*method)
		tx.Method = &m
	}
	return &tx, nil
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}
