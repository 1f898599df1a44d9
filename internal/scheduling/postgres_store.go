package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements CalendarStore and AppointmentStore.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store over a pgx pool or connection.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("scheduling: db required")
	}
	return &PostgresStore{db: db}
}

var (
	_ CalendarStore    = (*PostgresStore)(nil)
	_ AppointmentStore = (*PostgresStore)(nil)
)

func (s *PostgresStore) ActiveWorkingHours(ctx context.Context, professionalID string) ([]WorkingHours, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, professional_id, weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), active
		FROM working_hours
		WHERE professional_id = $1 AND active
		ORDER BY weekday ASC`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query working hours: %w", err)
	}
	defer rows.Close()

	var out []WorkingHours
	for rows.Next() {
		var (
			h          WorkingHours
			start, end string
		)
		if err := rows.Scan(&h.ID, &h.ProfessionalID, &h.Weekday, &start, &end, &h.Active); err != nil {
			return nil, fmt.Errorf("scheduling: scan working hours: %w", err)
		}
		if h.Start, err = ParseClock(start); err != nil {
			return nil, err
		}
		if h.End, err = ParseClock(end); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExceptionsBetween(ctx context.Context, professionalID string, from, to time.Time) ([]ScheduleException, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, professional_id, date, all_day, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), COALESCE(description, '')
		FROM schedule_exceptions
		WHERE professional_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC`, professionalID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("scheduling: query exceptions: %w", err)
	}
	defer rows.Close()

	var out []ScheduleException
	for rows.Next() {
		var (
			e          ScheduleException
			start, end *string
		)
		if err := rows.Scan(&e.ID, &e.ProfessionalID, &e.Date, &e.AllDay, &start, &end, &e.Description); err != nil {
			return nil, fmt.Errorf("scheduling: scan exception: %w", err)
		}
		if start != nil {
			if c, err := ParseClock(*start); err == nil {
				e.Start = &c
			}
		}
		if end != nil {
			if c, err := ParseClock(*end); err == nil {
				e.End = &c
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceWorkingHours(ctx context.Context, professionalID string, hours []WorkingHours) error {
	if err := validateWeek(hours); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `UPDATE working_hours SET active = false WHERE professional_id = $1 AND active`, professionalID); err != nil {
		return fmt.Errorf("scheduling: deactivate working hours: %w", err)
	}
	for _, h := range hours {
		_, err := s.db.Exec(ctx, `
			INSERT INTO working_hours (professional_id, weekday, start_time, end_time, active)
			VALUES ($1, $2, $3::time, $4::time, true)`,
			professionalID, h.Weekday, h.Start.String(), h.End.String())
		if err != nil {
			return fmt.Errorf("scheduling: insert working hours: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpsertException(ctx context.Context, exc *ScheduleException) error {
	if err := exc.Validate(); err != nil {
		return err
	}
	var start, end *string
	if !exc.AllDay {
		st, en := exc.Start.String(), exc.End.String()
		start, end = &st, &en
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO schedule_exceptions (professional_id, date, all_day, start_time, end_time, description)
		VALUES ($1, $2, $3, $4::time, $5::time, $6)
		ON CONFLICT (professional_id, date) DO UPDATE
		SET all_day = EXCLUDED.all_day, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, description = EXCLUDED.description
		RETURNING id`,
		exc.ProfessionalID, dateOnly(exc.Date), exc.AllDay, start, end, exc.Description,
	).Scan(&exc.ID)
	if err != nil {
		return fmt.Errorf("scheduling: upsert exception: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteException(ctx context.Context, professionalID string, date time.Time) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM schedule_exceptions WHERE professional_id = $1 AND date = $2`, professionalID, dateOnly(date)); err != nil {
		return fmt.Errorf("scheduling: delete exception: %w", err)
	}
	return nil
}

// Create inserts the appointment only if no active appointment overlaps it,
// so two concurrent bookings of one slot cannot both succeed.
func (s *PostgresStore) Create(ctx context.Context, appt *Appointment) error {
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	tag, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, account_id, patient_id, professional_id, service_id, title, start_at, end_at, status, reminder_sent, followup_sent, confirmation_token, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, false, false, $10, $11, $11
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE professional_id = $4 AND status <> 'cancelled' AND start_at < $8 AND end_at > $7
		)`,
		appt.ID, appt.AccountID, appt.PatientID, appt.ProfessionalID, appt.ServiceID, appt.Title,
		appt.StartAt, appt.EndAt, string(appt.Status), appt.ConfirmationToken, now,
	)
	if err != nil {
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

const appointmentColumns = `id, account_id, patient_id, professional_id, service_id, title, start_at, end_at, status, reminder_sent, followup_sent, confirmation_token, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (s *PostgresStore) GetByToken(ctx context.Context, token string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE confirmation_token = $1`, token)
	return scanAppointment(row)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := s.db.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("scheduling: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) BusyIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]Interval, error) {
	rows, err := s.db.Query(ctx, `
		SELECT start_at, end_at FROM appointments
		WHERE professional_id = $1 AND status <> 'cancelled' AND start_at < $3 AND end_at > $2
		ORDER BY start_at ASC`, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query busy intervals: %w", err)
	}
	defer rows.Close()

	var out []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("scheduling: scan interval: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HasConflict(ctx context.Context, professionalID string, start, end time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE professional_id = $1 AND status <> 'cancelled' AND start_at < $3 AND end_at > $2
		)`, professionalID, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("scheduling: conflict query: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) NextScheduledForPatient(ctx context.Context, patientID string, after time.Time) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = $1 AND status = 'scheduled' AND start_at > $2
		ORDER BY start_at ASC
		LIMIT 1`, patientID, after)
	appt, err := scanAppointment(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return appt, err
}

func (s *PostgresStore) ListByProfessional(ctx context.Context, professionalID string, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE professional_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at ASC`, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) DueForReminder(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status = 'scheduled' AND NOT reminder_sent AND start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list due reminders: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) CompletedBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status = 'completed' AND NOT followup_sent AND start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list completed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) CompletedForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = $1 AND status = 'completed' AND service_id IS NOT NULL
		ORDER BY start_at ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list completed for patient: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `UPDATE appointments SET reminder_sent = true, updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("scheduling: mark reminder sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFollowUpSent(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `UPDATE appointments SET followup_sent = true, updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("scheduling: mark follow-up sent: %w", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.AccountID, &a.PatientID, &a.ProfessionalID, &a.ServiceID, &a.Title,
		&a.StartAt, &a.EndAt, &status, &a.ReminderSent, &a.FollowUpSent, &a.ConfirmationToken, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func validateWeek(hours []WorkingHours) error {
	seen := make(map[int]bool, len(hours))
	for _, h := range hours {
		if err := h.Validate(); err != nil {
			return err
		}
		if seen[h.Weekday] {
			return fmt.Errorf("%w: duplicate weekday %d", ErrInvalidSchedule, h.Weekday)
		}
		seen[h.Weekday] = true
	}
	return nil
}
