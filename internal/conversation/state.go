// Package conversation drives the WhatsApp scheduling assistant: per-patient
// state, intent classification, the transition table and the engine that
// executes its effects.
package conversation

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultOfferTTL bounds how long offered slots stay bookable.
	DefaultOfferTTL = 10 * time.Minute
	// DefaultNPSTTL keeps a satisfaction prompt open for two days.
	DefaultNPSTTL = 48 * time.Hour
)

// Step is where a multi-turn exchange currently stands.
type Step string

const (
	StepNone                      Step = ""
	StepAwaitingPreference        Step = "awaiting_preference"
	StepAwaitingSlotChoice        Step = "awaiting_slot_choice"
	StepAwaitingFullName          Step = "awaiting_full_name"
	StepAwaitingOnboardingDetails Step = "awaiting_onboarding_details"
	StepAwaitingNPSScore          Step = "awaiting_nps_score"
)

// Collected holds onboarding data gathered across turns.
type Collected struct {
	FullName   string     `json:"full_name,omitempty"`
	NationalID string     `json:"national_id,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
}

// State is the ephemeral conversation marker for one patient. It is never
// business data: losing it only restarts the exchange.
type State struct {
	Step           Step        `json:"step"`
	OfferedSlots   []time.Time `json:"offered_slots,omitempty"`
	ProfessionalID string      `json:"professional_id,omitempty"`
	AppointmentID  string      `json:"appointment_id,omitempty"`
	// ResumeIntent is replayed once the patient has told us their name.
	ResumeIntent Intent    `json:"resume_intent,omitempty"`
	Collected    Collected `json:"collected,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Idle reports whether s carries no active step.
func (s *State) Idle() bool {
	return s == nil || s.Step == StepNone
}

// StateStore keeps per-patient state with expiry. Get returns nil, nil when
// the key is absent or expired.
type StateStore interface {
	Get(ctx context.Context, key string) (*State, error)
	Put(ctx context.Context, key string, state State, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
}

// StateKey scopes state to an account and patient.
func StateKey(accountID, patientID string) string {
	return fmt.Sprintf("conversation:state:%s:%s", accountID, patientID)
}
