package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps transactions in process for development and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]*Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]*Transaction)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.AppointmentID != nil {
		for _, existing := range m.txs {
			if existing.AppointmentID != nil && *existing.AppointmentID == *tx.AppointmentID {
				return ErrAlreadyBilled
			}
		}
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	tx.CreatedAt = time.Now().UTC()
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryStore) ByAppointment(_ context.Context, appointmentID string) (*Transaction, error) {
	found := m.filter(func(tx *Transaction) bool {
		return tx.AppointmentID != nil && *tx.AppointmentID == appointmentID
	})
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (m *MemoryStore) PendingForPatient(_ context.Context, patientID string) ([]Transaction, error) {
	return m.filter(func(tx *Transaction) bool {
		return tx.PatientID == patientID && tx.Status == StatusPending
	}), nil
}

func (m *MemoryStore) DueForReminder(_ context.Context, cutoff time.Time) ([]Transaction, error) {
	return m.filter(func(tx *Transaction) bool {
		return tx.Status == StatusPending && !tx.ReminderSent && !tx.CompetenceDate.After(cutoff)
	}), nil
}

func (m *MemoryStore) MarkReminderSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.txs[id]; ok {
		tx.ReminderSent = true
	}
	return nil
}

func (m *MemoryStore) MarkPaid(_ context.Context, id string, method Method, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.Status != StatusPending {
		return ErrNotFound
	}
	tx.Status = StatusPaid
	tx.Method = &method
	tx.PaidAt = &at
	return nil
}

func (m *MemoryStore) filter(keep func(*Transaction) bool) []Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Transaction
	for _, tx := range m.txs {
		if keep(tx) {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompetenceDate.Before(out[j].CompetenceDate) })
	return out
}
