package reminders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/conversation"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/observability/metrics"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
)

var brt = time.FixedZone("BRT", -3*60*60)

type fixture struct {
	notifier *Notifier
	appts    *scheduling.MemoryStore
	clinics  *clinic.MemoryStore
	states   *conversation.MemoryStateStore
	sender   *messaging.SimulatedSender
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 8, 10, 0, 0, 0, brt)

	clinics := clinic.NewMemoryStore()
	require.NoError(t, clinics.SaveAccount(ctx, &clinic.Account{ID: "acc-1", Name: "Clínica Atma", WhatsAppNumber: "5511999990000", Timezone: "America/Sao_Paulo"}))
	require.NoError(t, clinics.SaveProfessional(ctx, &clinic.Professional{ID: "pro-1", AccountID: "acc-1", FullName: "Dra. Helena Prado"}))
	require.NoError(t, clinics.CreatePatient(ctx, &clinic.Patient{ID: "pat-1", AccountID: "acc-1", FullName: "Ana Lima", Phone: "5511988887777"}))
	require.NoError(t, clinics.CreatePatient(ctx, &clinic.Patient{ID: "pat-2", AccountID: "acc-1", FullName: "Sem Telefone"}))

	appts := scheduling.NewMemoryStore()
	states := conversation.NewMemoryStateStore()
	sender := messaging.NewSimulatedSender(nil)
	n := NewNotifier(Config{
		Appointments:  appts,
		Clinic:        clinics,
		States:        states,
		Messenger:     sender,
		PublicBaseURL: "https://api.atma.test/",
		Now:           func() time.Time { return now },
	})
	return &fixture{notifier: n, appts: appts, clinics: clinics, states: states, sender: sender, now: now}
}

func (f *fixture) add(t *testing.T, id, patientID string, start time.Time, status scheduling.Status) {
	t.Helper()
	require.NoError(t, f.appts.Create(context.Background(), &scheduling.Appointment{
		ID: id, AccountID: "acc-1", PatientID: patientID, ProfessionalID: "pro-1",
		Title: "Consulta", StartAt: start, EndAt: start.Add(time.Hour), Status: status,
		ConfirmationToken: "tok-" + id,
	}))
}

func TestSendAppointmentReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "due", "pat-1", f.now.Add(24*time.Hour+30*time.Minute), scheduling.StatusScheduled)
	f.add(t, "too-late", "pat-1", f.now.Add(26*time.Hour), scheduling.StatusScheduled)
	f.add(t, "confirmed", "pat-1", f.now.Add(24*time.Hour+10*time.Minute), scheduling.StatusConfirmed)
	f.add(t, "no-phone", "pat-2", f.now.Add(24*time.Hour+45*time.Minute), scheduling.StatusScheduled)

	sent, err := f.notifier.SendAppointmentReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := f.sender.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "5511988887777", msgs[0].To)
	assert.Equal(t, "5511999990000", msgs[0].From)
	assert.Contains(t, msgs[0].Body, "https://api.atma.test/appointments/confirm/tok-due")
	assert.Contains(t, msgs[0].Body, "09/01/2026 às 10:30")
	assert.Contains(t, msgs[0].Body, "Dra. Helena Prado")

	appt, err := f.appts.Get(ctx, "due")
	require.NoError(t, err)
	assert.True(t, appt.ReminderSent)

	// A second pass does not repeat the reminder.
	sent, err = f.notifier.SendAppointmentReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendFollowUpsArmsNPS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "yesterday", "pat-1", time.Date(2026, 1, 7, 15, 0, 0, 0, brt), scheduling.StatusCompleted)
	f.add(t, "two-days-ago", "pat-1", time.Date(2026, 1, 6, 15, 0, 0, 0, brt), scheduling.StatusCompleted)
	f.add(t, "cancelled", "pat-1", time.Date(2026, 1, 7, 9, 0, 0, 0, brt), scheduling.StatusCancelled)

	sent, err := f.notifier.SendFollowUps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	msgs := f.sender.Sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "De 0 a 10")

	st, err := f.states.Get(ctx, conversation.StateKey("acc-1", "pat-1"))
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, conversation.StepAwaitingNPSScore, st.Step)
	assert.Equal(t, "yesterday", st.AppointmentID)

	appt, err := f.appts.Get(ctx, "yesterday")
	require.NoError(t, err)
	assert.True(t, appt.FollowUpSent)
}

func TestSendFollowUpsDefersWhileBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "yesterday", "pat-1", time.Date(2026, 1, 7, 15, 0, 0, 0, brt), scheduling.StatusCompleted)
	key := conversation.StateKey("acc-1", "pat-1")
	offered := []time.Time{time.Date(2026, 1, 12, 9, 0, 0, 0, brt)}
	require.NoError(t, f.states.Put(ctx, key, conversation.State{
		Step:         conversation.StepAwaitingSlotChoice,
		OfferedSlots: offered,
	}, time.Hour))

	sent, err := f.notifier.SendFollowUps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, f.sender.Sent())

	st, err := f.states.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, conversation.StepAwaitingSlotChoice, st.Step)
	assert.Len(t, st.OfferedSlots, 1)

	appt, err := f.appts.Get(ctx, "yesterday")
	require.NoError(t, err)
	assert.False(t, appt.FollowUpSent)

	// Once the booking flow ends the next run sends it.
	require.NoError(t, f.states.Clear(ctx, key))
	sent, err = f.notifier.SendFollowUps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestRunner_RunOnceRecordsEveryJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewJobMetrics(reg)
	calls := 0
	r := NewRunner(nil,
		Job{Name: "ok", Run: func(context.Context) (int, error) { calls++; return 2, nil }},
		Job{Name: "broken", Run: func(context.Context) (int, error) { calls++; return 0, errors.New("db down") }},
		Job{Name: "after", Run: func(context.Context) (int, error) { calls++; return 1, nil }},
	).WithMetrics(m)

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: db down")
	assert.Equal(t, 3, calls)

	expected := `
# HELP atma_jobs_runs_total Background job runs by job and outcome
# TYPE atma_jobs_runs_total counter
atma_jobs_runs_total{job="after",status="ok"} 1
atma_jobs_runs_total{job="broken",status="error"} 1
atma_jobs_runs_total{job="ok",status="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "atma_jobs_runs_total"))
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	r := NewRunner(nil, Job{Name: "never", Run: func(context.Context) (int, error) { called = true; return 0, nil }})

	assert.ErrorIs(t, r.RunOnce(ctx), context.Canceled)
	assert.False(t, called)
}
