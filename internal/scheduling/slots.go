package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var schedulingTracer = otel.Tracer("atma.internal.scheduling")

// SlotFinder produces bookable start times from a calendar and existing appointments.
type SlotFinder struct {
	calendar *WorkCalendar
	busy     AppointmentStore
	duration time.Duration
	now      func() time.Time
}

// SlotFinderOption customizes a SlotFinder.
type SlotFinderOption func(*SlotFinder)

// WithDuration sets the slot length and candidate step.
func WithDuration(d time.Duration) SlotFinderOption {
	return func(f *SlotFinder) {
		if d > 0 {
			f.duration = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SlotFinderOption {
	return func(f *SlotFinder) {
		if now != nil {
			f.now = now
		}
	}
}

// NewSlotFinder creates a finder.
func NewSlotFinder(calendar *WorkCalendar, appointments AppointmentStore, opts ...SlotFinderOption) *SlotFinder {
	if calendar == nil || appointments == nil {
		panic("scheduling: calendar and appointment store required")
	}
	f := &SlotFinder{
		calendar: calendar,
		busy:     appointments,
		duration: DefaultAppointmentDuration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindAvailable returns up to maxResults free start times in ascending order,
// searching from today through horizonDays in the professional's time zone.
// Non-positive maxResults falls back to DefaultMaxResults; negative horizonDays
// is treated as today only.
func (f *SlotFinder) FindAvailable(ctx context.Context, pro Professional, prefs *Preferences, horizonDays, maxResults int) ([]time.Time, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.find_slots")
	defer span.End()
	span.SetAttributes(attribute.String("atma.professional_id", pro.ID))

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if horizonDays < 0 {
		horizonDays = 0
	}
	loc := pro.location()
	now := f.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	plan, err := f.calendar.Plan(ctx, pro.ID, today, horizonDays)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	horizonEnd := today.AddDate(0, 0, horizonDays+1)
	busy, err := f.busy.BusyIntervals(ctx, pro.ID, today, horizonEnd.Add(f.duration))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: load busy intervals: %w", err)
	}

	exact, hasExact := exactTime(prefs)
	var periodWindow *Window
	if prefs != nil && prefs.Period != "" {
		if w, ok := prefs.Period.Window(); ok {
			periodWindow = &w
		}
	}

	var slots []time.Time
	for offset := 0; offset <= horizonDays && len(slots) < maxResults; offset++ {
		day := today.AddDate(0, 0, offset)
		if prefs != nil && prefs.Weekday != nil && Weekday(day) != *prefs.Weekday {
			continue
		}
		window, ok := plan.On(day)
		if !ok {
			continue
		}
		for _, start := range f.candidates(day, loc, window, periodWindow, exact, hasExact) {
			if !start.After(now) {
				continue
			}
			end := start.Add(f.duration)
			if conflicts(busy, start, end) {
				continue
			}
			slots = append(slots, start)
			if len(slots) >= maxResults {
				break
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	span.SetAttributes(attribute.Int("atma.slots_found", len(slots)))
	return slots, nil
}

func (f *SlotFinder) candidates(day time.Time, loc *time.Location, window Window, period *Window, exact ClockTime, hasExact bool) []time.Time {
	if hasExact {
		if !window.Contains(exact) {
			return nil
		}
		return []time.Time{exact.On(day, loc)}
	}
	if period != nil {
		var ok bool
		window, ok = window.Intersect(*period)
		if !ok {
			return nil
		}
	}
	step := ClockTime(f.duration / time.Minute)
	if step <= 0 {
		step = 60
	}
	var out []time.Time
	for c := window.Start; c < window.End; c += step {
		out = append(out, c.On(day, loc))
	}
	return out
}

func exactTime(prefs *Preferences) (ClockTime, bool) {
	if prefs == nil || prefs.ExactTime == "" {
		return 0, false
	}
	c, err := ParseClock(prefs.ExactTime)
	if err != nil {
		return 0, false
	}
	return c, true
}

func conflicts(busy []Interval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
