package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process CalendarStore and AppointmentStore used when
// no database is configured and in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	hours        map[string][]WorkingHours
	exceptions   map[string]map[string]ScheduleException
	appointments map[string]*Appointment
	nextID       int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hours:        make(map[string][]WorkingHours),
		exceptions:   make(map[string]map[string]ScheduleException),
		appointments: make(map[string]*Appointment),
	}
}

var (
	_ CalendarStore    = (*MemoryStore)(nil)
	_ AppointmentStore = (*MemoryStore)(nil)
)

func (m *MemoryStore) ActiveWorkingHours(_ context.Context, professionalID string) ([]WorkingHours, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WorkingHours, 0, len(m.hours[professionalID]))
	for _, h := range m.hours[professionalID] {
		if h.Active {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemoryStore) ExceptionsBetween(_ context.Context, professionalID string, from, to time.Time) ([]ScheduleException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lo, hi := from.Format(time.DateOnly), to.Format(time.DateOnly)
	var out []ScheduleException
	for key, e := range m.exceptions[professionalID] {
		if key >= lo && key <= hi {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) ReplaceWorkingHours(_ context.Context, professionalID string, hours []WorkingHours) error {
	if err := validateWeek(hours); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]WorkingHours, 0, len(hours))
	for _, h := range hours {
		m.nextID++
		h.ID = m.nextID
		h.ProfessionalID = professionalID
		h.Active = true
		rows = append(rows, h)
	}
	m.hours[professionalID] = rows
	return nil
}

func (m *MemoryStore) UpsertException(_ context.Context, exc *ScheduleException) error {
	if err := exc.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate, ok := m.exceptions[exc.ProfessionalID]
	if !ok {
		byDate = make(map[string]ScheduleException)
		m.exceptions[exc.ProfessionalID] = byDate
	}
	key := exc.Date.Format(time.DateOnly)
	if prev, ok := byDate[key]; ok {
		exc.ID = prev.ID
	} else {
		m.nextID++
		exc.ID = m.nextID
	}
	stored := *exc
	stored.Date = dateOnly(exc.Date)
	byDate[key] = stored
	return nil
}

func (m *MemoryStore) DeleteException(_ context.Context, professionalID string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.exceptions[professionalID], date.Format(time.DateOnly))
	return nil
}

func (m *MemoryStore) Create(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlapsLocked(appt.ProfessionalID, appt.StartAt, appt.EndAt) {
		return ErrSlotUnavailable
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	m.appointments[appt.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetByToken(_ context.Context, token string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.appointments {
		if a.ConfirmationToken == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) BusyIntervals(_ context.Context, professionalID string, from, to time.Time) ([]Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Interval
	for _, a := range m.appointments {
		if a.ProfessionalID != professionalID || a.Status == StatusCancelled {
			continue
		}
		iv := Interval{Start: a.StartAt, End: a.EndAt}
		if iv.Overlaps(from, to) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryStore) HasConflict(_ context.Context, professionalID string, start, end time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlapsLocked(professionalID, start, end), nil
}

func (m *MemoryStore) overlapsLocked(professionalID string, start, end time.Time) bool {
	for _, a := range m.appointments {
		if a.ProfessionalID != professionalID || a.Status == StatusCancelled {
			continue
		}
		if (Interval{Start: a.StartAt, End: a.EndAt}).Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) NextScheduledForPatient(_ context.Context, patientID string, after time.Time) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var next *Appointment
	for _, a := range m.appointments {
		if a.PatientID != patientID || a.Status != StatusScheduled || !a.StartAt.After(after) {
			continue
		}
		if next == nil || a.StartAt.Before(next.StartAt) {
			next = a
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (m *MemoryStore) ListByProfessional(_ context.Context, professionalID string, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.ProfessionalID == professionalID && !a.StartAt.Before(from) && a.StartAt.Before(to)
	}), nil
}

func (m *MemoryStore) DueForReminder(_ context.Context, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.Status == StatusScheduled && !a.ReminderSent && !a.StartAt.Before(from) && a.StartAt.Before(to)
	}), nil
}

func (m *MemoryStore) CompletedBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.Status == StatusCompleted && !a.FollowUpSent && !a.StartAt.Before(from) && a.StartAt.Before(to)
	}), nil
}

func (m *MemoryStore) CompletedForPatient(_ context.Context, patientID string) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.PatientID == patientID && a.Status == StatusCompleted && a.ServiceID != nil
	}), nil
}

func (m *MemoryStore) MarkReminderSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appointments[id]; ok {
		a.ReminderSent = true
	}
	return nil
}

func (m *MemoryStore) MarkFollowUpSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appointments[id]; ok {
		a.FollowUpSent = true
	}
	return nil
}

func (m *MemoryStore) filter(keep func(*Appointment) bool) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.appointments {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}
