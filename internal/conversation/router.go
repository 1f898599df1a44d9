package conversation

import (
	"errors"
	"time"

	"github.com/wolfman30/atma-clinic-ai/internal/billing"
	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
)

// Status is the token returned to the webhook caller for a handled message.
type Status string

const (
	StatusConfirmed              Status = "confirmed"
	StatusSlotsSent              Status = "slots_sent"
	StatusNoSlots                Status = "no_slots"
	StatusAwaitingPreference     Status = "awaiting_preference"
	StatusBookingCreated         Status = "booking_created"
	StatusSlotUnavailable        Status = "slot_unavailable"
	StatusAskedFullName          Status = "asked_full_name"
	StatusOnboardingAskedDetails Status = "onboarding_asked_details"
	StatusOnboardingComplete     Status = "onboarding_complete"
	StatusNPSRecorded            Status = "nps_recorded"
	StatusNPSInvalid             Status = "nps_invalid_response"
	StatusGreetingSent           Status = "greeting_sent"
	StatusPendingChecked         Status = "pending_checked"
	StatusRequestRegistered      Status = "request_registered"
	StatusHandedOff              Status = "handed_off"
	StatusFAQAnswered            Status = "faq_answered"
	StatusPlanIncompatible       Status = "plan_incompatible"
	StatusNoSubscription         Status = "no_subscription"
	StatusDuplicate              Status = "duplicate"
	StatusInsufficientData       Status = "insufficient_data"
	StatusAccountNotFound        Status = "account_not_found"
	StatusError                  Status = "error"
)

// PatientView is what the router knows about the sender.
type PatientView struct {
	ID string
	// FirstName is empty until the patient has told us their name.
	FirstName string
}

// PendingAppointment is the patient's next scheduled (unconfirmed) appointment.
type PendingAppointment struct {
	ID      string
	StartAt time.Time
}

// Turn is everything the transition table reads for one inbound message.
type Turn struct {
	Now            time.Time
	AccountName    string
	Location       *time.Location
	ProfessionalID string
	Patient        PatientView
	Message        string
	State          *State
	Pending        *PendingAppointment
	// Intent is empty until the message has been classified.
	Intent Intent
}

func (t Turn) local(at time.Time) time.Time {
	if t.Location == nil {
		return at
	}
	return at.In(t.Location)
}

func (t Turn) step() Step {
	if t.State == nil {
		return StepNone
	}
	return t.State.Step
}

// StateOp says what to do with the stored state after a turn.
type StateOp int

const (
	StateKeep StateOp = iota
	StatePut
	StateClear
)

// EffectKind enumerates the side effects a decision asks for.
type EffectKind int

const (
	EffectConfirmAppointment EffectKind = iota + 1
	EffectCancelAppointment
	EffectRecordNPS
	EffectSaveName
	EffectSaveDetails
	EffectCreateDocumentRequest
	EffectHandoff
)

// Effect is one side effect for the engine to run.
type Effect struct {
	Kind          EffectKind
	AppointmentID string
	Score         int
	FullName      string
	Details       Details
	DocumentKind  clinic.RequestKind
	Text          string
}

// Lookup names data the engine must fetch before the turn can be answered.
type Lookup int

const (
	LookupNone Lookup = iota
	LookupIntent
	LookupSlots
	LookupBooking
	LookupBalance
	LookupFAQ
)

// Decision is the outcome of one transition.
type Decision struct {
	Status  Status
	Reply   string
	StateOp StateOp
	Next    State
	Effects []Effect
	Lookup  Lookup
	// SlotStart is the chosen slot for LookupBooking.
	SlotStart time.Time
	// FAQKey is the intent key for LookupFAQ.
	FAQKey string
}

func put(next State) (StateOp, State) { return StatePut, next }

// Route applies the transition table to a turn. It performs no I/O: when it
// needs a classification, slots, a booking, a balance or an FAQ entry it
// returns a Decision with Lookup set and the engine calls back through the
// matching After function.
func Route(t Turn) Decision {
	switch t.step() {
	case StepAwaitingNPSScore:
		return routeNPS(t)
	}
	if t.Pending != nil {
		if reply := ParseReminderReply(t.Message); reply != ReminderReplyNone {
			return routeReminderReply(t, reply)
		}
	}
	switch t.step() {
	case StepAwaitingFullName:
		return routeFullName(t)
	case StepAwaitingOnboardingDetails:
		return routeOnboardingDetails(t)
	}
	if t.Intent == "" {
		return Decision{Lookup: LookupIntent}
	}
	return dispatch(t, t.Intent)
}

func routeNPS(t Turn) Decision {
	score, ok := ParseNPSScore(t.Message)
	if !ok {
		return Decision{Status: StatusNPSInvalid, Reply: replyNPSInvalid, StateOp: StateKeep}
	}
	return Decision{
		Status:  StatusNPSRecorded,
		Reply:   replyNPSThanks,
		StateOp: StateClear,
		Effects: []Effect{{Kind: EffectRecordNPS, AppointmentID: t.State.AppointmentID, Score: score}},
	}
}

func routeReminderReply(t Turn, reply ReminderReply) Decision {
	if reply == ReminderReplyYes {
		return Decision{
			Status:  StatusConfirmed,
			Reply:   replyReminderConfirmed,
			StateOp: StateClear,
			Effects: []Effect{{Kind: EffectConfirmAppointment, AppointmentID: t.Pending.ID}},
		}
	}
	d := dispatch(t, IntentSchedule)
	d.Effects = append([]Effect{{Kind: EffectCancelAppointment, AppointmentID: t.Pending.ID}}, d.Effects...)
	return d
}

func routeFullName(t Turn) Decision {
	name := StripNamePrefix(t.Message)
	if len([]rune(name)) < 2 {
		return Decision{Status: StatusAskedFullName, Reply: replyAskNameAgain, StateOp: StateKeep}
	}
	save := Effect{Kind: EffectSaveName, FullName: name}
	first := firstNameOf(name)

	if resume := t.State.ResumeIntent; resume != "" {
		t.Patient.FirstName = first
		t.State = nil
		d := dispatch(t, resume)
		d.Effects = append([]Effect{save}, d.Effects...)
		if d.StateOp == StateKeep {
			d.StateOp = StateClear
		}
		return d
	}
	d := Decision{
		Status:  StatusOnboardingAskedDetails,
		Reply:   onboardingDetailsQuestion(first),
		Effects: []Effect{save},
	}
	d.StateOp, d.Next = put(State{
		Step:          StepAwaitingOnboardingDetails,
		AppointmentID: t.State.AppointmentID,
		Collected:     Collected{FullName: name},
	})
	return d
}

func routeOnboardingDetails(t Turn) Decision {
	d := Decision{Status: StatusOnboardingComplete, Reply: replyOnboardingComplete, StateOp: StateClear}
	if details := ExtractDetails(t.Message); len(details.Fields()) > 0 {
		d.Effects = []Effect{{Kind: EffectSaveDetails, Details: details}}
	}
	return d
}

func dispatch(t Turn, intent Intent) Decision {
	switch intent {
	case IntentChoseSlot:
		if t.step() == StepAwaitingSlotChoice {
			if slot, ok := MatchSlot(t.Message, t.State.OfferedSlots); ok {
				return Decision{Lookup: LookupBooking, SlotStart: slot}
			}
		}
		// No cached offer or no match: read the reply as a new preference.
		return Decision{Lookup: LookupSlots}

	case IntentScheduleWithPreference:
		return Decision{Lookup: LookupSlots}

	case IntentSchedule:
		d := Decision{Status: StatusAwaitingPreference, Reply: preferenceQuestion(t.Patient.FirstName)}
		d.StateOp, d.Next = put(State{Step: StepAwaitingPreference, ProfessionalID: t.ProfessionalID})
		return d

	case IntentGreeting:
		return Decision{Status: StatusGreetingSent, Reply: greeting(t.Patient.FirstName, t.AccountName), StateOp: StateClear}

	case IntentCheckBalance:
		if t.Patient.FirstName == "" {
			return askNameFirst(intent, replyBalanceNeedsName)
		}
		return Decision{Lookup: LookupBalance}

	case IntentUnknown:
		return Decision{
			Status:  StatusHandedOff,
			Reply:   replyHandoff,
			StateOp: StateClear,
			Effects: []Effect{{Kind: EffectHandoff, Text: t.Message}},
		}
	}

	if kind, ok := intent.DocumentKind(); ok {
		if t.Patient.FirstName == "" {
			return askNameFirst(intent, replyDocumentNeedsName)
		}
		return Decision{
			Status:  StatusRequestRegistered,
			Reply:   documentRegistered(t.Patient.FirstName, kind),
			StateOp: StateClear,
			Effects: []Effect{{Kind: EffectCreateDocumentRequest, DocumentKind: kind, Text: t.Message}},
		}
	}
	if key, ok := intent.FAQKey(); ok {
		return Decision{Lookup: LookupFAQ, FAQKey: key}
	}
	return dispatch(t, IntentUnknown)
}

func askNameFirst(resume Intent, reply string) Decision {
	d := Decision{Status: StatusAskedFullName, Reply: reply}
	d.StateOp, d.Next = put(State{Step: StepAwaitingFullName, ResumeIntent: resume})
	return d
}

// AfterSlotSearch offers the slots found (at most three) or asks for another preference.
func AfterSlotSearch(t Turn, slots []time.Time) Decision {
	if len(slots) == 0 {
		d := Decision{Status: StatusNoSlots, Reply: noSlots()}
		d.StateOp, d.Next = put(State{Step: StepAwaitingPreference, ProfessionalID: t.ProfessionalID})
		return d
	}
	if len(slots) > scheduling.DefaultMaxResults {
		slots = slots[:scheduling.DefaultMaxResults]
	}
	d := Decision{Status: StatusSlotsSent, Reply: slotOffer(t.Patient.FirstName, slots)}
	d.StateOp, d.Next = put(State{
		Step:           StepAwaitingSlotChoice,
		OfferedSlots:   slots,
		ProfessionalID: t.ProfessionalID,
	})
	return d
}

// AfterBooking reports the booking outcome. A taken slot sends the patient
// back to stating a preference; unresolved patients are asked their name.
func AfterBooking(t Turn, appt *scheduling.Appointment, err error) Decision {
	if errors.Is(err, scheduling.ErrSlotUnavailable) {
		d := Decision{Status: StatusSlotUnavailable, Reply: replySlotTaken}
		d.StateOp, d.Next = put(State{Step: StepAwaitingPreference, ProfessionalID: t.ProfessionalID})
		return d
	}
	if err != nil || appt == nil {
		return Fallback()
	}
	if t.Patient.FirstName == "" {
		d := Decision{Status: StatusBookingCreated, Reply: bookingNeedsName(t.local(appt.StartAt))}
		d.StateOp, d.Next = put(State{Step: StepAwaitingFullName, AppointmentID: appt.ID})
		return d
	}
	return Decision{
		Status:  StatusBookingCreated,
		Reply:   bookingConfirmed(t.Patient.FirstName, t.local(appt.StartAt)),
		StateOp: StateClear,
	}
}

// AfterBalance reports the patient's outstanding balance.
func AfterBalance(t Turn, bal *billing.Balance) Decision {
	return Decision{Status: StatusPendingChecked, Reply: balanceSummary(t.Patient.FirstName, bal), StateOp: StateClear}
}

// AfterFAQ answers with the composed FAQ text, or offers a handoff when the
// account has no entry for the key.
func AfterFAQ(answer string, found bool) Decision {
	if !found {
		return Decision{Status: StatusFAQAnswered, Reply: replyFAQMissing, StateOp: StateClear}
	}
	return Decision{Status: StatusFAQAnswered, Reply: answer, StateOp: StateClear}
}

// Fallback is the reply when a collaborator failed mid-turn. State is kept
// so the patient can simply repeat the message.
func Fallback() Decision {
	return Decision{Status: StatusError, Reply: replyApology, StateOp: StateKeep}
}
