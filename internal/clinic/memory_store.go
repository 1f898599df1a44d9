package clinic

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	accounts      map[string]*Account
	subscriptions map[string]*Subscription
	professionals map[string]*Professional
	services      map[string]*Service
	patients      map[string]*Patient
	faq           map[string]*FAQItem
	requests      map[string]*DocumentRequest
	nps           []NPSFeedback
	nextFAQID     int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]*Account),
		subscriptions: make(map[string]*Subscription),
		professionals: make(map[string]*Professional),
		services:      make(map[string]*Service),
		patients:      make(map[string]*Patient),
		faq:           make(map[string]*FAQItem),
		requests:      make(map[string]*DocumentRequest),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) AccountByNumber(_ context.Context, digits string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.WhatsAppNumber == digits {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *MemoryStore) Account(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) SaveAccount(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	cp := *acc
	m.accounts[acc.ID] = &cp
	return nil
}

func (m *MemoryStore) Subscription(_ context.Context, accountID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[accountID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) SaveSubscription(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subscriptions[sub.AccountID] = &cp
	return nil
}

func (m *MemoryStore) Professional(_ context.Context, id string) (*Professional, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) SaveProfessional(_ context.Context, pro *Professional) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pro
	m.professionals[pro.ID] = &cp
	return nil
}

func (m *MemoryStore) Service(_ context.Context, id string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) DefaultService(_ context.Context, professionalID string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, s := range m.services {
		if s.ProfessionalID == professionalID && s.Active {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrServiceNotFound
	}
	sort.Strings(ids)
	cp := *m.services[ids[0]]
	return &cp, nil
}

func (m *MemoryStore) SaveService(_ context.Context, svc *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	cp := *svc
	m.services[svc.ID] = &cp
	return nil
}

func (m *MemoryStore) Patient(_ context.Context, id string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) PatientByPhone(_ context.Context, accountID, phone string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.AccountID == accountID && p.Phone == phone {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *MemoryStore) CreatePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdatePatientName(_ context.Context, patientID, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[patientID]
	if !ok {
		return ErrPatientNotFound
	}
	p.FullName = fullName
	return nil
}

func (m *MemoryStore) UpdatePatientDetails(_ context.Context, patientID string, cpf *string, birthDate *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[patientID]
	if !ok {
		return ErrPatientNotFound
	}
	if cpf != nil {
		v := *cpf
		p.CPF = &v
	}
	if birthDate != nil {
		v := *birthDate
		p.BirthDate = &v
	}
	return nil
}

func (m *MemoryStore) PatientsWithBillingDay(_ context.Context, day int) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Patient
	for _, p := range m.patients {
		if p.BillingDay != nil && *p.BillingDay == day {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func faqKey(accountID, intentKey string) string { return accountID + "|" + intentKey }

func (m *MemoryStore) FAQ(_ context.Context, accountID, intentKey string) (*FAQItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faq[faqKey(accountID, intentKey)]
	if !ok {
		return nil, ErrFAQNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) ListFAQ(_ context.Context, accountID string) ([]FAQItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FAQItem
	for _, f := range m.faq {
		if f.AccountID == accountID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].IntentKey < out[j].IntentKey
	})
	return out, nil
}

func (m *MemoryStore) UpsertFAQ(_ context.Context, item *FAQItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := faqKey(item.AccountID, item.IntentKey)
	if prev, ok := m.faq[key]; ok {
		item.ID = prev.ID
	} else {
		m.nextFAQID++
		item.ID = m.nextFAQID
	}
	cp := *item
	m.faq[key] = &cp
	return nil
}

func (m *MemoryStore) CreateDocumentRequest(_ context.Context, req *DocumentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = RequestPending
	}
	req.CreatedAt = time.Now().UTC()
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *MemoryStore) CompleteDocumentRequest(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	r.Status = RequestCompleted
	r.CompletedAt = &at
	return nil
}

func (m *MemoryStore) ListDocumentRequests(_ context.Context, accountID string, status RequestStatus) ([]DocumentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DocumentRequest
	for _, r := range m.requests {
		if r.AccountID != accountID || (status != "" && r.Status != status) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RecordNPS(_ context.Context, fb *NPSFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	fb.CreatedAt = time.Now().UTC()
	m.nps = append(m.nps, *fb)
	return nil
}

// NPSFeedback returns recorded scores in insertion order.
func (m *MemoryStore) NPSFeedback() []NPSFeedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]NPSFeedback(nil), m.nps...)
}
