package billing

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_CreateConflictIsAlreadyBilled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := "appt-1"
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(pgxmock.AnyArg(), "acc-1", "pat-1", "pro-1", &appt, "svc-1", int64(18000), "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = NewPostgresStore(mock).Create(context.Background(), &Transaction{
		AccountID: "acc-1", PatientID: "pat-1", ProfessionalID: "pro-1", AppointmentID: &appt,
		ServiceID: "svc-1", AmountCents: 18000,
	})
	assert.ErrorIs(t, err, ErrAlreadyBilled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ByAppointmentMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM transactions WHERE appointment_id").
		WithArgs("appt-9").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = NewPostgresStore(mock).ByAppointment(context.Background(), "appt-9")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DueForReminder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	method := "Pix"
	mock.ExpectQuery("status = 'pending' AND NOT reminder_sent").
		WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "patient_id", "professional_id", "appointment_id", "service_id", "amount_cents", "status", "method", "competence_date", "paid_at", "reminder_sent", "created_at"}).
			AddRow("tx-1", "acc-1", "pat-1", "pro-1", (*string)(nil), "svc-1", int64(5000), "pending", &method, cutoff, (*time.Time)(nil), false, created))

	txs, err := NewPostgresStore(mock).DueForReminder(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, StatusPending, txs[0].Status)
	require.NotNil(t, txs[0].Method)
	assert.Equal(t, MethodPix, *txs[0].Method)
	assert.Nil(t, txs[0].AppointmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPaidMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE transactions SET status = 'paid'").
		WithArgs("tx-1", "Pix", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPostgresStore(mock).MarkPaid(context.Background(), "tx-1", MethodPix, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
