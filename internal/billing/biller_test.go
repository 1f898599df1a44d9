package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
)

type fixture struct {
	biller *Biller
	store  *MemoryStore
	appts  *scheduling.MemoryStore
	clinic *clinic.MemoryStore
	sender *messaging.SimulatedSender
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:  NewMemoryStore(),
		appts:  scheduling.NewMemoryStore(),
		clinic: clinic.NewMemoryStore(),
		sender: messaging.NewSimulatedSender(nil),
	}
	require.NoError(t, f.clinic.SaveAccount(ctx, &clinic.Account{ID: "acc-1", Name: "Clínica Atma", Timezone: "UTC"}))
	require.NoError(t, f.clinic.SaveProfessional(ctx, &clinic.Professional{ID: "pro-1", AccountID: "acc-1", FullName: "Dra. Ana Souza"}))
	require.NoError(t, f.clinic.SaveService(ctx, &clinic.Service{ID: "svc-1", AccountID: "acc-1", ProfessionalID: "pro-1", Name: "Psicoterapia", PriceCents: 18000, Active: true}))
	require.NoError(t, f.clinic.CreatePatient(ctx, &clinic.Patient{ID: "pat-1", AccountID: "acc-1", FullName: "Maria Silva", Phone: "21988887777"}))
	f.biller = NewBiller(f.store, f.appts, f.clinic, f.sender, nil)
	f.biller.SetClock(func() time.Time { return fixedNow })
	return f
}

func (f *fixture) completed(t *testing.T, id, patientID string, start time.Time, withService bool) *scheduling.Appointment {
	t.Helper()
	appt := &scheduling.Appointment{
		ID: id, AccountID: "acc-1", PatientID: patientID, ProfessionalID: "pro-1",
		StartAt: start, EndAt: start.Add(time.Hour), Status: scheduling.StatusCompleted,
	}
	if withService {
		svc := "svc-1"
		appt.ServiceID = &svc
	}
	require.NoError(t, f.appts.Create(context.Background(), appt))
	return appt
}

func TestAppointmentCompleted_CreatesPendingTransactionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.completed(t, "appt-1", "pat-1", fixedNow.Add(-2*time.Hour), true)

	require.NoError(t, f.biller.AppointmentCompleted(ctx, appt))
	require.NoError(t, f.biller.AppointmentCompleted(ctx, appt))

	bal, err := f.biller.Outstanding(ctx, "pat-1")
	require.NoError(t, err)
	require.Len(t, bal.Pending, 1)
	assert.Equal(t, int64(18000), bal.TotalCents)
	assert.Equal(t, StatusPending, bal.Pending[0].Status)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), bal.Pending[0].CompetenceDate)
}

func TestAppointmentCompleted_SkipsMonthlyPatientsAndMissingService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := 15
	require.NoError(t, f.clinic.CreatePatient(ctx, &clinic.Patient{ID: "pat-2", AccountID: "acc-1", FullName: "João", Phone: "21977776666", BillingDay: &day}))

	monthly := f.completed(t, "appt-1", "pat-2", fixedNow.Add(-5*time.Hour), true)
	noService := f.completed(t, "appt-2", "pat-1", fixedNow.Add(-3*time.Hour), false)
	require.NoError(t, f.biller.AppointmentCompleted(ctx, monthly))
	require.NoError(t, f.biller.AppointmentCompleted(ctx, noService))

	for _, pid := range []string{"pat-1", "pat-2"} {
		bal, err := f.biller.Outstanding(ctx, pid)
		require.NoError(t, err)
		assert.Empty(t, bal.Pending, pid)
	}
}

func TestGenerateMonthlyCharges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := fixedNow.Day()
	other := day + 1
	require.NoError(t, f.clinic.CreatePatient(ctx, &clinic.Patient{ID: "pat-2", AccountID: "acc-1", FullName: "João", Phone: "21977776666", BillingDay: &day}))
	require.NoError(t, f.clinic.CreatePatient(ctx, &clinic.Patient{ID: "pat-3", AccountID: "acc-1", FullName: "Lia", Phone: "21966665555", BillingDay: &other}))

	f.completed(t, "appt-1", "pat-2", fixedNow.AddDate(0, 0, -20), true)
	f.completed(t, "appt-2", "pat-2", fixedNow.AddDate(0, 0, -13), true)
	f.completed(t, "appt-3", "pat-2", fixedNow.AddDate(0, 0, -6), false)
	f.completed(t, "appt-4", "pat-3", fixedNow.AddDate(0, 0, -6).Add(2*time.Hour), true)

	created, err := f.biller.GenerateMonthlyCharges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = f.biller.GenerateMonthlyCharges(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	bal, err := f.biller.Outstanding(ctx, "pat-3")
	require.NoError(t, err)
	assert.Empty(t, bal.Pending)
}

func TestSendPaymentReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.completed(t, "appt-1", "pat-1", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), true)
	apptID := appt.ID
	require.NoError(t, f.store.Create(ctx, &Transaction{
		AccountID: "acc-1", PatientID: "pat-1", ProfessionalID: "pro-1", AppointmentID: &apptID,
		ServiceID: "svc-1", AmountCents: 18000, CompetenceDate: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, f.store.Create(ctx, &Transaction{
		AccountID: "acc-1", PatientID: "pat-1", ProfessionalID: "pro-1",
		ServiceID: "svc-1", AmountCents: 5000, CompetenceDate: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}))

	sent, err := f.biller.SendPaymentReminders(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := f.sender.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "21988887777", msgs[0].To)
	assert.Contains(t, msgs[0].Body, "Olá, *Maria Silva*!")
	assert.Contains(t, msgs[0].Body, "*Psicoterapia* (realizado em 02/03/2026)")
	assert.Contains(t, msgs[0].Body, "*R$ 180,00*")
	assert.Contains(t, msgs[0].Body, "*Dra. Ana Souza*")

	sent, err = f.biller.SendPaymentReminders(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := &Transaction{AccountID: "acc-1", PatientID: "pat-1", ProfessionalID: "pro-1", ServiceID: "svc-1", AmountCents: 100}
	require.NoError(t, f.store.Create(ctx, tx))

	require.NoError(t, f.biller.MarkPaid(ctx, tx.ID, MethodPix))
	got, err := f.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
	require.NotNil(t, got.Method)
	assert.Equal(t, MethodPix, *got.Method)

	assert.ErrorIs(t, f.biller.MarkPaid(ctx, tx.ID, MethodPix), ErrNotFound)
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,05", FormatBRL(5))
	assert.Equal(t, "R$ 180,00", FormatBRL(18000))
	assert.Equal(t, "R$ 1.234,50", FormatBRL(123450))
	assert.Equal(t, "R$ 1.000.000,00", FormatBRL(100000000))
	assert.Equal(t, "-R$ 12,30", FormatBRL(-1230))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("cartão de crédito")
	require.NoError(t, err)
	assert.Equal(t, MethodCredit, m)

	_, err = ParseMethod("boleto")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}
