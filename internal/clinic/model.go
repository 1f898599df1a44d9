// Package clinic holds tenant accounts, patients, professionals and the
// clinic-managed content (FAQ, document requests, NPS feedback).
package clinic

import (
	"errors"
	"strings"
	"time"
)

// PlaceholderName is stored for patients who first write in before telling
// us their name.
const PlaceholderName = "Novo Contato"

// DefaultTimezone applies when an account has none configured.
const DefaultTimezone = "America/Sao_Paulo"

var (
	ErrAccountNotFound      = errors.New("clinic: account not found")
	ErrPatientNotFound      = errors.New("clinic: patient not found")
	ErrProfessionalNotFound = errors.New("clinic: professional not found")
	ErrServiceNotFound      = errors.New("clinic: service not found")
	ErrFAQNotFound          = errors.New("clinic: faq item not found")
	ErrRequestNotFound      = errors.New("clinic: document request not found")
	ErrNoSubscription       = errors.New("clinic: account has no subscription")
	ErrPlanIncompatible     = errors.New("clinic: plan does not include the assistant")
)

// Account is a tenant: one clinic with one WhatsApp number.
type Account struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	WhatsAppNumber      string    `json:"whatsapp_number"`
	OwnerProfessionalID string    `json:"owner_professional_id"`
	Timezone            string    `json:"timezone"`
	Address             string    `json:"address,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	StaffEmail          string    `json:"staff_email,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Location returns the account's time zone, falling back to DefaultTimezone and then UTC.
func (a *Account) Location() *time.Location {
	for _, name := range []string{a.Timezone, DefaultTimezone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Subscription is the account's plan.
type Subscription struct {
	AccountID      string `json:"account_id"`
	Plan           string `json:"plan"`
	Active         bool   `json:"active"`
	AIMessageLimit int    `json:"ai_message_limit"`
}

// AllowsAssistant reports whether the plan includes the conversational assistant.
func (s *Subscription) AllowsAssistant() bool {
	return s != nil && s.Active && s.AIMessageLimit != 0
}

// Professional is a practitioner whose calendar receives bookings.
type Professional struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	FullName       string `json:"full_name"`
	Specialty      string `json:"specialty,omitempty"`
	RegistryNumber string `json:"registry_number,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// Service is something a professional offers, with a price used for billing.
type Service struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	ProfessionalID  string `json:"professional_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          bool   `json:"active"`
}

// Patient is identified within an account by phone number (digits only).
type Patient struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	FullName   string     `json:"full_name"`
	Phone      string     `json:"phone"`
	CPF        *string    `json:"cpf,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Email      string     `json:"email,omitempty"`
	BillingDay *int       `json:"billing_day,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IdentityResolved reports whether the patient has told us their real name.
func (p *Patient) IdentityResolved() bool {
	name := strings.TrimSpace(p.FullName)
	return name != "" && name != PlaceholderName
}

// FirstName returns the first word of the patient's name, or "" when unresolved.
func (p *Patient) FirstName() string {
	if !p.IdentityResolved() {
		return ""
	}
	first, _, _ := strings.Cut(strings.TrimSpace(p.FullName), " ")
	return first
}

// FAQItem is a clinic-maintained answer keyed by an intent key.
type FAQItem struct {
	ID               int64  `json:"id,omitempty"`
	AccountID        string `json:"account_id"`
	Category         string `json:"category"`
	IntentKey        string `json:"intent_key"`
	ExampleQuestions string `json:"example_questions"`
	Answer           string `json:"answer"`
}

// RequestKind is the type of document a patient asked for.
type RequestKind string

const (
	RequestPrescription RequestKind = "RECEITA"
	RequestCertificate  RequestKind = "ATESTADO"
	RequestReceipt      RequestKind = "RECIBO"
	RequestOther        RequestKind = "OUTRO"
)

// Label is the Portuguese display name used in staff notifications.
func (k RequestKind) Label() string {
	switch k {
	case RequestPrescription:
		return "Receita"
	case RequestCertificate:
		return "Atestado"
	case RequestReceipt:
		return "Recibo"
	default:
		return "Outro"
	}
}

// RequestStatus tracks whether staff has handled a request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDENTE"
	RequestCompleted RequestStatus = "CONCLUIDO"
)

// DocumentRequest is a patient ask routed to staff.
type DocumentRequest struct {
	ID                     string        `json:"id"`
	AccountID              string        `json:"account_id"`
	PatientID              string        `json:"patient_id"`
	AssignedProfessionalID string        `json:"assigned_professional_id,omitempty"`
	Kind                   RequestKind   `json:"kind"`
	Details                string        `json:"details"`
	Status                 RequestStatus `json:"status"`
	CreatedAt              time.Time     `json:"created_at"`
	CompletedAt            *time.Time    `json:"completed_at,omitempty"`
}

// NPSFeedback is a 0-10 satisfaction score tied to an appointment.
type NPSFeedback struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	ProfessionalID string    `json:"professional_id"`
	AppointmentID  string    `json:"appointment_id"`
	Score          int       `json:"score"`
	CreatedAt      time.Time `json:"created_at"`
}

// Digits strips everything except 0-9 from a phone number or WhatsApp address.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
