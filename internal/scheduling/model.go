package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHorizonDays bounds how far ahead slot searches look.
	DefaultHorizonDays = 30
	// DefaultMaxResults caps the number of offered slots.
	DefaultMaxResults = 3
	// DefaultAppointmentDuration is the length of a standard slot.
	DefaultAppointmentDuration = time.Hour
)

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

// Clock builds a ClockTime from hour and minute.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses "HH:MM" (or "H:MM").
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("scheduling: invalid time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("scheduling: hour out of range in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("scheduling: minute out of range in %q", s)
	}
	return Clock(hour, minute), nil
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant of c on the calendar date of day, in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

// Weekday returns the day of week with 0=Monday..6=Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Window is a bookable time range within a single day, half-open [Start, End).
type Window struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Intersect returns the overlap of two windows and whether it is non-empty.
func (w Window) Intersect(o Window) (Window, bool) {
	out := Window{Start: max(w.Start, o.Start), End: min(w.End, o.End)}
	return out, out.Start < out.End
}

// Contains reports whether c falls in [Start, End).
func (w Window) Contains(c ClockTime) bool {
	return c >= w.Start && c < w.End
}

// Period is a named part of the day a patient may prefer.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

var periodWindows = map[Period]Window{
	PeriodMorning:   {Start: Clock(8, 0), End: Clock(12, 0)},
	PeriodAfternoon: {Start: Clock(12, 0), End: Clock(18, 0)},
	PeriodEvening:   {Start: Clock(18, 0), End: Clock(21, 0)},
}

// Window returns the clock range of the period.
func (p Period) Window() (Window, bool) {
	w, ok := periodWindows[p]
	return w, ok
}

// Valid reports whether p is one of the known periods.
func (p Period) Valid() bool {
	_, ok := periodWindows[p]
	return ok
}

// Preferences narrows a slot search. All fields are optional.
type Preferences struct {
	// Weekday uses 0=Monday..6=Sunday.
	Weekday   *int   `json:"weekday,omitempty"`
	Period    Period `json:"period,omitempty"`
	ExactTime string `json:"exact_time,omitempty"`
}

// IsZero reports whether no preference was stated.
func (p *Preferences) IsZero() bool {
	return p == nil || (p.Weekday == nil && p.Period == "" && p.ExactTime == "")
}

// WorkingHours is a professional's recurring schedule for one weekday.
type WorkingHours struct {
	ID             int64     `json:"id,omitempty"`
	ProfessionalID string    `json:"professional_id"`
	Weekday        int       `json:"weekday"`
	Start          ClockTime `json:"start"`
	End            ClockTime `json:"end"`
	Active         bool      `json:"active"`
}

// Validate checks weekday range and ordering.
func (h WorkingHours) Validate() error {
	if h.Weekday < 0 || h.Weekday > 6 {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSchedule, h.Weekday)
	}
	if h.Start >= h.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidSchedule, h.Start, h.End)
	}
	return nil
}

// ScheduleException overrides WorkingHours for a single date.
type ScheduleException struct {
	ID             int64      `json:"id,omitempty"`
	ProfessionalID string     `json:"professional_id"`
	Date           time.Time  `json:"date"`
	AllDay         bool       `json:"all_day"`
	Start          *ClockTime `json:"start,omitempty"`
	End            *ClockTime `json:"end,omitempty"`
	Description    string     `json:"description,omitempty"`
}

// Validate enforces that partial-day exceptions carry an ordered window.
func (e ScheduleException) Validate() error {
	if e.AllDay {
		return nil
	}
	if e.Start == nil || e.End == nil {
		return fmt.Errorf("%w: partial exception requires start and end", ErrInvalidSchedule)
	}
	if *e.Start >= *e.End {
		return fmt.Errorf("%w: exception start %s must be before end %s", ErrInvalidSchedule, *e.Start, *e.End)
	}
	return nil
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled    Status = "scheduled"
	StatusConfirmed    Status = "confirmed"
	StatusCancelled    Status = "cancelled"
	StatusCompleted    Status = "completed"
	StatusNoShow       Status = "no_show"
	StatusRescheduling Status = "rescheduling"
)

// Source records who created an appointment.
type Source string

const (
	SourceStaff        Source = "staff"
	SourceConversation Source = "conversation"
)

// Appointment is a booked slot for a patient with a professional.
type Appointment struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"account_id"`
	PatientID         string    `json:"patient_id"`
	ProfessionalID    string    `json:"professional_id"`
	ServiceID         *string   `json:"service_id,omitempty"`
	Title             string    `json:"title"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
	Status            Status    `json:"status"`
	ReminderSent      bool      `json:"reminder_sent"`
	FollowUpSent      bool      `json:"followup_sent"`
	ConfirmationToken string    `json:"confirmation_token"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Interval is a half-open busy range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports a half-open overlap: touching ranges do not conflict.
func (i Interval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && i.End.After(start)
}

// Professional identifies whose calendar is searched and in which time zone.
type Professional struct {
	ID       string
	Location *time.Location
}

func (p Professional) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
