// Package events carries domain events from the request path to background
// delivery through a Postgres outbox, and deduplicates provider webhooks.
package events

import "time"

// CanonicalEvent represents a versioned domain event.
type CanonicalEvent interface {
	EventType() string
}

const (
	TypeAppointmentBooked = "scheduling.appointment.booked.v1"
	TypeDocumentRequested = "clinic.document_request.created.v1"
	TypeHandoffRequested  = "conversation.handoff.requested.v1"
)

// AppointmentBookedV1 is emitted when the assistant books an appointment.
type AppointmentBookedV1 struct {
	AppointmentID  string    `json:"appointment_id"`
	AccountID      string    `json:"account_id"`
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	ProfessionalID string    `json:"professional_id"`
	StartAt        time.Time `json:"start_at"`
	Source         string    `json:"source"`
}

func (AppointmentBookedV1) EventType() string { return TypeAppointmentBooked }

// DocumentRequestedV1 is emitted when a patient asks for a prescription, certificate or receipt.
type DocumentRequestedV1 struct {
	RequestID    string    `json:"request_id"`
	AccountID    string    `json:"account_id"`
	PatientID    string    `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone"`
	Kind         string    `json:"kind"`
	Details      string    `json:"details"`
	RequestedAt  time.Time `json:"requested_at"`
}

func (DocumentRequestedV1) EventType() string { return TypeDocumentRequested }

// HandoffRequestedV1 is emitted when the assistant could not understand a patient.
type HandoffRequestedV1 struct {
	AccountID    string    `json:"account_id"`
	PatientID    string    `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone"`
	LastMessage  string    `json:"last_message"`
	RequestedAt  time.Time `json:"requested_at"`
}

func (HandoffRequestedV1) EventType() string { return TypeHandoffRequested }
