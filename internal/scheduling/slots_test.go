package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brt = time.FixedZone("BRT", -3*60*60)

// Thursday 2026-01-08 10:00 in the clinic's zone; next Monday is 2026-01-12.
var thursdayMorning = time.Date(2026, 1, 8, 10, 0, 0, 0, brt)

func intPtr(v int) *int { return &v }

func clockPtr(h, m int) *ClockTime {
	c := Clock(h, m)
	return &c
}

func mondayMornings(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.ReplaceWorkingHours(context.Background(), "pro-1", []WorkingHours{
		{Weekday: 0, Start: Clock(9, 0), End: Clock(12, 0)},
	}))
	return store
}

func newFinder(store *MemoryStore, now time.Time) *SlotFinder {
	return NewSlotFinder(NewWorkCalendar(store), store, WithClock(func() time.Time { return now }))
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, brt)
}

func assertSlots(t *testing.T, want []time.Time, got []time.Time) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "slot %d: want %s got %s", i, want[i], got[i])
	}
}

func TestFindAvailable_MondayMorningPreference(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)
	pro := Professional{ID: "pro-1", Location: brt}

	slots, err := finder.FindAvailable(context.Background(), pro, &Preferences{Weekday: intPtr(0), Period: PeriodMorning}, 30, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 9), at(2026, 1, 12, 10), at(2026, 1, 12, 11)}, slots)
}

func TestFindAvailable_AllDayExceptionSkipsDate(t *testing.T) {
	store := mondayMornings(t)
	require.NoError(t, store.UpsertException(context.Background(), &ScheduleException{
		ProfessionalID: "pro-1",
		Date:           time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		AllDay:         true,
		Description:    "Congresso",
	}))
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, &Preferences{Weekday: intPtr(0), Period: PeriodMorning}, 30, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 19, 9), at(2026, 1, 19, 10), at(2026, 1, 19, 11)}, slots)
}

func TestFindAvailable_ExistingAppointmentExcludesCandidate(t *testing.T) {
	store := mondayMornings(t)
	require.NoError(t, store.Create(context.Background(), &Appointment{
		ID: "appt-1", ProfessionalID: "pro-1", PatientID: "p-9",
		StartAt: at(2026, 1, 12, 10), EndAt: at(2026, 1, 12, 11), Status: StatusConfirmed,
	}))
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, &Preferences{Weekday: intPtr(0)}, 30, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 9), at(2026, 1, 12, 11), at(2026, 1, 19, 9)}, slots)
}

func TestFindAvailable_CancelledAppointmentDoesNotBlock(t *testing.T) {
	store := mondayMornings(t)
	require.NoError(t, store.Create(context.Background(), &Appointment{
		ID: "appt-1", ProfessionalID: "pro-1",
		StartAt: at(2026, 1, 12, 9), EndAt: at(2026, 1, 12, 10), Status: StatusCancelled,
	}))
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 30, 1)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 9)}, slots)
}

func TestFindAvailable_TouchingAppointmentsDoNotConflict(t *testing.T) {
	store := mondayMornings(t)
	require.NoError(t, store.Create(context.Background(), &Appointment{
		ID: "appt-1", ProfessionalID: "pro-1",
		StartAt: at(2026, 1, 12, 9), EndAt: at(2026, 1, 12, 10), Status: StatusScheduled,
	}))
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 30, 2)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 10), at(2026, 1, 12, 11)}, slots)
}

func TestFindAvailable_CandidatesStrictlyAfterNow(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, at(2026, 1, 12, 10))

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 0, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 11)}, slots)
}

func TestFindAvailable_ZeroHorizonIsTodayOnly(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 0, 3)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindAvailable_ExactTime(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)
	pro := Professional{ID: "pro-1", Location: brt}

	slots, err := finder.FindAvailable(context.Background(), pro, &Preferences{ExactTime: "10:00"}, 14, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 10), at(2026, 1, 19, 10)}, slots)

	// The window end is exclusive.
	slots, err = finder.FindAvailable(context.Background(), pro, &Preferences{ExactTime: "12:00"}, 14, 3)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindAvailable_MalformedExactTimeIgnored(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, &Preferences{ExactTime: "dez e meia"}, 30, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 9), at(2026, 1, 12, 10), at(2026, 1, 12, 11)}, slots)
}

func TestFindAvailable_PartialExceptionOverridesHours(t *testing.T) {
	store := mondayMornings(t)
	require.NoError(t, store.UpsertException(context.Background(), &ScheduleException{
		ProfessionalID: "pro-1",
		Date:           time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		Start:          clockPtr(14, 0),
		End:            clockPtr(16, 0),
	}))
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 30, 3)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 12, 14), at(2026, 1, 12, 15), at(2026, 1, 19, 9)}, slots)

	// Period filters apply to the exception window, not the weekday hours.
	slots, err = finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, &Preferences{Period: PeriodMorning}, 7, 3)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindAvailable_ExceptionOnNonWorkingDayAddsHours(t *testing.T) {
	store := mondayMornings(t)
	require.NoError(t, store.UpsertException(context.Background(), &ScheduleException{
		ProfessionalID: "pro-1",
		Date:           time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Start:          clockPtr(8, 0),
		End:            clockPtr(9, 0),
	}))
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 30, 2)
	require.NoError(t, err)
	assertSlots(t, []time.Time{at(2026, 1, 10, 8), at(2026, 1, 12, 9)}, slots)
}

func TestFindAvailable_ResultsAscendingAndCapped(t *testing.T) {
	store := NewMemoryStore()
	var week []WorkingHours
	for d := 0; d < 7; d++ {
		week = append(week, WorkingHours{Weekday: d, Start: Clock(8, 0), End: Clock(20, 0)})
	}
	require.NoError(t, store.ReplaceWorkingHours(context.Background(), "pro-1", week))
	finder := newFinder(store, thursdayMorning)

	for _, limit := range []int{1, 3, 10, 25} {
		slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, &Preferences{Period: PeriodEvening}, 30, limit)
		require.NoError(t, err)
		require.Len(t, slots, limit)
		for i := 1; i < len(slots); i++ {
			assert.True(t, slots[i-1].Before(slots[i]))
		}
		for _, s := range slots {
			assert.True(t, s.After(thursdayMorning))
			assert.GreaterOrEqual(t, s.Hour(), 18)
			assert.Less(t, s.Hour(), 20)
		}
	}
}

func TestFindAvailable_DefaultMaxResults(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: brt}, nil, 30, 0)
	require.NoError(t, err)
	assert.Len(t, slots, DefaultMaxResults)
}

func TestFindAvailable_WallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	store := NewMemoryStore()
	require.NoError(t, store.ReplaceWorkingHours(context.Background(), "pro-1", []WorkingHours{
		{Weekday: 6, Start: Clock(9, 0), End: Clock(10, 0)},
	}))
	// DST starts Sunday 2026-03-08 in New York.
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, loc)
	finder := newFinder(store, now)

	slots, err := finder.FindAvailable(context.Background(), Professional{ID: "pro-1", Location: loc}, nil, 10, 2)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	for _, s := range slots {
		assert.Equal(t, 9, s.In(loc).Hour())
	}
	assert.Equal(t, 7*24*time.Hour-time.Hour, slots[1].Sub(slots[0]))
}

func TestEffectiveWindow(t *testing.T) {
	store := mondayMornings(t)
	cal := NewWorkCalendar(store)
	ctx := context.Background()

	w, ok, err := cal.EffectiveWindow(ctx, "pro-1", at(2026, 1, 12, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Window{Start: Clock(9, 0), End: Clock(12, 0)}, w)

	_, ok, err = cal.EffectiveWindow(ctx, "pro-1", at(2026, 1, 13, 0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindAvailable_RepeatedCallsAgree(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)
	pro := Professional{ID: "pro-1", Location: brt}
	prefs := &Preferences{Period: PeriodMorning}
	ctx := context.Background()

	first, err := finder.FindAvailable(ctx, pro, prefs, 30, 3)
	require.NoError(t, err)
	second, err := finder.FindAvailable(ctx, pro, prefs, 30, 3)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	assertSlots(t, first, second)
}

func TestFindAvailable_BookedSlotDisappears(t *testing.T) {
	store := mondayMornings(t)
	finder := newFinder(store, thursdayMorning)
	booking := newCoordinator(store, thursdayMorning)
	pro := Professional{ID: "pro-1", Location: brt}
	prefs := &Preferences{Weekday: intPtr(0), Period: PeriodMorning}
	ctx := context.Background()

	before, err := finder.FindAvailable(ctx, pro, prefs, 30, 3)
	require.NoError(t, err)
	require.Len(t, before, 3)
	chosen := before[1]

	_, err = booking.Book(ctx, BookingRequest{
		AccountID:      "acc-1",
		PatientID:      "pat-1",
		ProfessionalID: "pro-1",
		StartAt:        chosen,
		Source:         SourceConversation,
	})
	require.NoError(t, err)

	after, err := finder.FindAvailable(ctx, pro, prefs, 30, 3)
	require.NoError(t, err)
	for _, s := range after {
		assert.False(t, s.Equal(chosen), "booked slot %s offered again", chosen)
	}
	assert.True(t, after[0].Equal(before[0]))
	// Next Monday's first slot fills the cap.
	assertSlots(t, []time.Time{at(2026, 1, 12, 9), at(2026, 1, 12, 11), at(2026, 1, 19, 9)}, after)
}
