// Package billing records charges for completed appointments and chases
// pending payments over WhatsApp.
package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errors.New("billing: transaction not found")
	// ErrAlreadyBilled is returned when an appointment already has a transaction.
	ErrAlreadyBilled = errors.New("billing: appointment already billed")
	// ErrInvalidMethod is returned for an unknown payment method.
	ErrInvalidMethod = errors.New("billing: invalid payment method")
)

// Status is the payment state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Method is how a patient paid.
type Method string

const (
	MethodPix      Method = "Pix"
	MethodCash     Method = "Dinheiro"
	MethodCredit   Method = "Cartão de Crédito"
	MethodDebit    Method = "Cartão de Débito"
	MethodTransfer Method = "Transferência"
)

// ParseMethod matches a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	for _, m := range []Method{MethodPix, MethodCash, MethodCredit, MethodDebit, MethodTransfer} {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// Transaction is a charge for a service rendered to a patient.
type Transaction struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	PatientID      string     `json:"patient_id"`
	ProfessionalID string     `json:"professional_id"`
	AppointmentID  *string    `json:"appointment_id,omitempty"`
	ServiceID      string     `json:"service_id"`
	AmountCents    int64      `json:"amount_cents"`
	Status         Status     `json:"status"`
	Method         *Method    `json:"method,omitempty"`
	CompetenceDate time.Time  `json:"competence_date"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	ReminderSent   bool       `json:"reminder_sent"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Balance summarizes a patient's pending transactions.
type Balance struct {
	PatientID  string        `json:"patient_id"`
	Pending    []Transaction `json:"pending"`
	TotalCents int64         `json:"total_cents"`
}

// FormatBRL renders cents as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}
