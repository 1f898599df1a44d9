package scheduling

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_CreateRejectsOverlap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	appt := &Appointment{
		ID: "appt-1", AccountID: "acc-1", PatientID: "pat-1", ProfessionalID: "pro-1",
		Title: "Consulta", StartAt: at(2026, 1, 12, 10), EndAt: at(2026, 1, 12, 11),
		Status: StatusConfirmed, ConfirmationToken: "tok-1",
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("appt-1", "acc-1", "pat-1", "pro-1", pgxmock.AnyArg(), "Consulta",
			appt.StartAt, appt.EndAt, "confirmed", "tok-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = store.Create(context.Background(), appt)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	appt := &Appointment{ID: "appt-1", ProfessionalID: "pro-1", StartAt: at(2026, 1, 12, 10), EndAt: at(2026, 1, 12, 11)}
	require.NoError(t, store.Create(context.Background(), appt))
	assert.False(t, appt.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActiveWorkingHours(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, professional_id, weekday").
		WithArgs("pro-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "professional_id", "weekday", "start_time", "end_time", "active"}).
			AddRow(int64(1), "pro-1", 0, "09:00", "12:00", true).
			AddRow(int64(2), "pro-1", 2, "13:30", "18:00", true))

	hours, err := NewPostgresStore(mock).ActiveWorkingHours(context.Background(), "pro-1")
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, Clock(13, 30), hours[1].Start)
	assert.Equal(t, Clock(18, 0), hours[1].End)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExceptionsBetween(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)
	start, end := "14:00", "16:00"
	mock.ExpectQuery("FROM schedule_exceptions").
		WithArgs("pro-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"id", "professional_id", "date", "all_day", "start_time", "end_time", "description"}).
			AddRow(int64(7), "pro-1", time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), false, &start, &end, "meio período").
			AddRow(int64(8), "pro-1", time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), true, nil, nil, "feriado"))

	exceptions, err := NewPostgresStore(mock).ExceptionsBetween(context.Background(), "pro-1", from, to)
	require.NoError(t, err)
	require.Len(t, exceptions, 2)
	require.NotNil(t, exceptions[0].Start)
	assert.Equal(t, Clock(14, 0), *exceptions[0].Start)
	assert.True(t, exceptions[1].AllDay)
	assert.Nil(t, exceptions[1].Start)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start, end := at(2026, 1, 12, 10), at(2026, 1, 12, 11)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("pro-1", start, end).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := NewPostgresStore(mock).HasConflict(context.Background(), "pro-1", start, end)
	require.NoError(t, err)
	assert.True(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatusMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("appt-404", "confirmed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPostgresStore(mock).UpdateStatus(context.Background(), "appt-404", StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceWorkingHours(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE working_hours SET active = false").
		WithArgs("pro-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("INSERT INTO working_hours").
		WithArgs("pro-1", 0, "09:00", "12:00").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresStore(mock).ReplaceWorkingHours(context.Background(), "pro-1", []WorkingHours{
		{Weekday: 0, Start: Clock(9, 0), End: Clock(12, 0)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
