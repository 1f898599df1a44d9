package scheduling

import (
	"context"
	"fmt"
	"time"
)

// WorkCalendar answers when a professional is working on a given date.
type WorkCalendar struct {
	store CalendarStore
}

// NewWorkCalendar creates a calendar over store.
func NewWorkCalendar(store CalendarStore) *WorkCalendar {
	if store == nil {
		panic("scheduling: calendar store required")
	}
	return &WorkCalendar{store: store}
}

// EffectiveWindow returns the working window for date. A false result means
// the professional does not work that day. An exception on the date replaces
// the weekday hours entirely.
func (c *WorkCalendar) EffectiveWindow(ctx context.Context, professionalID string, date time.Time) (Window, bool, error) {
	plan, err := c.Plan(ctx, professionalID, date, 0)
	if err != nil {
		return Window{}, false, err
	}
	w, ok := plan.On(date)
	return w, ok, nil
}

// Plan loads the hours and exceptions needed to resolve days+1 consecutive
// dates starting at from, so a search issues two queries instead of two per day.
func (c *WorkCalendar) Plan(ctx context.Context, professionalID string, from time.Time, days int) (*CalendarPlan, error) {
	if days < 0 {
		days = 0
	}
	hours, err := c.store.ActiveWorkingHours(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load working hours: %w", err)
	}
	to := from.AddDate(0, 0, days)
	exceptions, err := c.store.ExceptionsBetween(ctx, professionalID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("scheduling: load exceptions: %w", err)
	}

	plan := &CalendarPlan{
		weekly:     make(map[int]Window, len(hours)),
		exceptions: make(map[string]ScheduleException, len(exceptions)),
	}
	for _, h := range hours {
		if !h.Active || h.Start >= h.End {
			continue
		}
		plan.weekly[h.Weekday] = Window{Start: h.Start, End: h.End}
	}
	for _, e := range exceptions {
		plan.exceptions[e.Date.Format(time.DateOnly)] = e
	}
	return plan, nil
}

// CalendarPlan is a resolved snapshot of a professional's calendar.
type CalendarPlan struct {
	weekly     map[int]Window
	exceptions map[string]ScheduleException
}

// On resolves the working window of the calendar date of day.
func (p *CalendarPlan) On(day time.Time) (Window, bool) {
	if exc, ok := p.exceptions[day.Format(time.DateOnly)]; ok {
		if exc.AllDay || exc.Start == nil || exc.End == nil || *exc.Start >= *exc.End {
			return Window{}, false
		}
		return Window{Start: *exc.Start, End: *exc.End}, true
	}
	w, ok := p.weekly[Weekday(day)]
	return w, ok
}
