package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/atma-clinic-ai/internal/archive"
	"github.com/wolfman30/atma-clinic-ai/internal/billing"
	"github.com/wolfman30/atma-clinic-ai/internal/clinic"
	"github.com/wolfman30/atma-clinic-ai/internal/compliance"
	"github.com/wolfman30/atma-clinic-ai/internal/events"
	"github.com/wolfman30/atma-clinic-ai/internal/messaging"
	"github.com/wolfman30/atma-clinic-ai/internal/observability/metrics"
	"github.com/wolfman30/atma-clinic-ai/internal/scheduling"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// maxLookups bounds the Route/After round trips for one message.
const maxLookups = 4

// SlotSearcher finds free slots on a professional's calendar.
type SlotSearcher interface {
	FindAvailable(ctx context.Context, pro scheduling.Professional, prefs *scheduling.Preferences, horizonDays, maxResults int) ([]time.Time, error)
}

// Booker commits a slot.
type Booker interface {
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Appointment, error)
}

// StatusChanger moves appointments through their lifecycle.
type StatusChanger interface {
	Confirm(ctx context.Context, id string) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, id string) (*scheduling.Appointment, error)
}

// AppointmentReader loads appointments referenced by a conversation.
type AppointmentReader interface {
	Get(ctx context.Context, id string) (*scheduling.Appointment, error)
	NextScheduledForPatient(ctx context.Context, patientID string, after time.Time) (*scheduling.Appointment, error)
}

// BalanceReader reports a patient's unpaid charges.
type BalanceReader interface {
	Outstanding(ctx context.Context, patientID string) (*billing.Balance, error)
}

// TurnArchiver stores a copy of each handled turn.
type TurnArchiver interface {
	ArchiveTurn(ctx context.Context, record archive.TurnRecord) error
}

// EngineConfig holds the engine's collaborators. Archive, Auditor, Publisher
// and both metrics sets are optional.
type EngineConfig struct {
	Directory    *clinic.Directory
	States       StateStore
	NLU          NLU
	Finder       SlotSearcher
	Booking      Booker
	Statuses     StatusChanger
	Appointments AppointmentReader
	Balances     BalanceReader
	Messenger    messaging.Messenger
	Publisher    events.Publisher
	Archive      TurnArchiver
	Auditor      compliance.Auditor
	Metrics      *metrics.ConversationMetrics
	Delivery     *metrics.MessagingMetrics
	HorizonDays  int
	MaxResults   int
	OfferTTL     time.Duration
	NPSTTL       time.Duration
	Logger       *logging.Logger
	Now          func() time.Time
}

// Engine handles one inbound WhatsApp message at a time: it resolves the
// tenant and patient, runs the transition table, applies side effects,
// persists conversation state and sends the reply.
type Engine struct {
	dir          *clinic.Directory
	states       StateStore
	nlu          NLU
	finder       SlotSearcher
	booking      Booker
	statuses     StatusChanger
	appointments AppointmentReader
	balances     BalanceReader
	messenger    messaging.Messenger
	publisher    events.Publisher
	archive      TurnArchiver
	auditor      compliance.Auditor
	metrics      *metrics.ConversationMetrics
	delivery     *metrics.MessagingMetrics
	horizonDays  int
	maxResults   int
	offerTTL     time.Duration
	npsTTL       time.Duration
	logger       *logging.Logger
	now          func() time.Time
}

// Outcome is what the webhook reports back for a message.
type Outcome struct {
	Status Status `json:"status"`
	Reply  string `json:"reply,omitempty"`
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Directory == nil {
		panic("conversation: directory required")
	}
	if cfg.States == nil {
		panic("conversation: state store required")
	}
	if cfg.NLU == nil {
		panic("conversation: nlu required")
	}
	if cfg.Finder == nil || cfg.Booking == nil || cfg.Statuses == nil || cfg.Appointments == nil {
		panic("conversation: scheduling collaborators required")
	}
	if cfg.Balances == nil {
		panic("conversation: balance reader required")
	}
	if cfg.Messenger == nil {
		panic("conversation: messenger required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = scheduling.DefaultHorizonDays
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = scheduling.DefaultMaxResults
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = DefaultOfferTTL
	}
	if cfg.NPSTTL <= 0 {
		cfg.NPSTTL = DefaultNPSTTL
	}
	return &Engine{
		dir:          cfg.Directory,
		states:       cfg.States,
		nlu:          cfg.NLU,
		finder:       cfg.Finder,
		booking:      cfg.Booking,
		statuses:     cfg.Statuses,
		appointments: cfg.Appointments,
		balances:     cfg.Balances,
		messenger:    cfg.Messenger,
		publisher:    cfg.Publisher,
		archive:      cfg.Archive,
		auditor:      cfg.Auditor,
		metrics:      cfg.Metrics,
		delivery:     cfg.Delivery,
		horizonDays:  cfg.HorizonDays,
		maxResults:   cfg.MaxResults,
		offerTTL:     cfg.OfferTTL,
		npsTTL:       cfg.NPSTTL,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// turnContext carries per-message data between the steps of Handle.
type turnContext struct {
	account  *clinic.Account
	patient  *clinic.Patient
	msg      messaging.InboundMessage
	body     string
	stateKey string
	before   *State
	intent   Intent
	received time.Time
}

// Handle processes one inbound message. It never returns an error: failures
// of collaborators end in an apology to the patient and StatusError.
func (e *Engine) Handle(ctx context.Context, msg messaging.InboundMessage) Outcome {
	ctx, span := conversationTracer.Start(ctx, "conversation.handle")
	defer span.End()

	body := strings.TrimSpace(msg.Body)
	if body == "" || clinic.Digits(msg.From) == "" || clinic.Digits(msg.To) == "" {
		return Outcome{Status: StatusInsufficientData}
	}

	account, err := e.dir.ResolveAccount(ctx, msg.To)
	if err != nil {
		e.logger.Warn("inbound message for unknown number dropped", "to", msg.To, "error", err)
		return Outcome{Status: StatusAccountNotFound}
	}
	span.SetAttributes(attribute.String("atma.account_id", account.ID))

	tc := &turnContext{
		account:  account,
		msg:      msg,
		body:     body,
		received: e.now(),
	}

	patient, _, err := e.dir.EnsurePatient(ctx, account.ID, msg.From)
	if err != nil {
		e.logger.Error("failed to resolve patient", "account_id", account.ID, "error", err)
		tc.patient = &clinic.Patient{AccountID: account.ID, Phone: clinic.Digits(msg.From)}
		return e.finish(ctx, tc, Fallback())
	}
	tc.patient = patient
	tc.stateKey = StateKey(account.ID, patient.ID)
	span.SetAttributes(attribute.String("atma.patient_id", patient.ID))

	state, err := e.states.Get(ctx, tc.stateKey)
	if err != nil {
		e.logger.Warn("conversation state unavailable, starting fresh", "patient_id", patient.ID, "error", err)
		state = nil
	}
	tc.before = state

	turn := Turn{
		Now:            tc.received,
		AccountName:    account.Name,
		Location:       account.Location(),
		ProfessionalID: account.OwnerProfessionalID,
		Patient:        PatientView{ID: patient.ID, FirstName: patient.FirstName()},
		Message:        body,
		State:          state,
	}
	if state != nil && state.ProfessionalID != "" {
		turn.ProfessionalID = state.ProfessionalID
	}
	if ParseReminderReply(body) != ReminderReplyNone {
		turn.Pending = e.pendingAppointment(ctx, patient.ID, tc.received)
	}

	// Effects run as soon as a decision carries them so a later lookup sees
	// their result (a name saved before a resumed balance check).
	d := Route(turn)
	for i := 0; ; i++ {
		if err := e.applyEffects(ctx, tc, d.Effects); err != nil {
			e.logger.Error("conversation side effect failed", "patient_id", patient.ID, "error", err)
			d = Fallback()
			break
		}
		turn.Patient.FirstName = tc.patient.FirstName()
		if d.Lookup == LookupNone {
			break
		}
		if i >= maxLookups {
			e.logger.Error("conversation lookup loop did not settle", "patient_id", patient.ID)
			d = Fallback()
			break
		}
		d = e.lookup(ctx, tc, &turn, d)
	}
	return e.finish(ctx, tc, d)
}

func (e *Engine) pendingAppointment(ctx context.Context, patientID string, now time.Time) *PendingAppointment {
	appt, err := e.appointments.NextScheduledForPatient(ctx, patientID, now)
	if err != nil {
		e.logger.Warn("failed to load pending appointment", "patient_id", patientID, "error", err)
		return nil
	}
	if appt == nil {
		return nil
	}
	return &PendingAppointment{ID: appt.ID, StartAt: appt.StartAt}
}

// lookup fetches what d asks for and feeds it back into the transition table.
func (e *Engine) lookup(ctx context.Context, tc *turnContext, turn *Turn, d Decision) Decision {
	switch d.Lookup {
	case LookupIntent:
		if blocked, ok := e.checkPlan(ctx, tc); ok {
			return blocked
		}
		intent, err := e.classify(ctx, tc, *turn)
		if err != nil {
			e.logger.Error("intent classification failed", "patient_id", tc.patient.ID, "error", err)
			return Fallback()
		}
		tc.intent = intent
		turn.Intent = intent
		return Route(*turn)

	case LookupSlots:
		prefs, err := e.nlu.ExtractPreferences(ctx, tc.body)
		if err != nil && !errors.Is(err, ErrInvalidNLUOutput) {
			e.logger.Error("preference extraction failed", "patient_id", tc.patient.ID, "error", err)
			return Fallback()
		}
		if prefs == nil {
			prefs = &scheduling.Preferences{}
		}
		pro := scheduling.Professional{ID: turn.ProfessionalID, Location: tc.account.Location()}
		slots, err := e.finder.FindAvailable(ctx, pro, prefs, e.horizonDays, e.maxResults)
		if err != nil {
			e.logger.Error("slot search failed", "professional_id", pro.ID, "error", err)
			return Fallback()
		}
		e.metrics.ObserveSlotsOffered(len(slots))
		return AfterSlotSearch(*turn, slots)

	case LookupBooking:
		appt, err := e.book(ctx, tc, turn.ProfessionalID, d.SlotStart)
		return AfterBooking(*turn, appt, err)

	case LookupBalance:
		bal, err := e.balances.Outstanding(ctx, tc.patient.ID)
		if err != nil {
			e.logger.Error("failed to load balance", "patient_id", tc.patient.ID, "error", err)
			return Fallback()
		}
		return AfterBalance(*turn, bal)

	case LookupFAQ:
		answer, found, err := e.answerFAQ(ctx, tc, d.FAQKey)
		if err != nil {
			e.logger.Error("failed to load faq", "intent_key", d.FAQKey, "error", err)
			return Fallback()
		}
		return AfterFAQ(answer, found)
	}
	return Fallback()
}

func (e *Engine) checkPlan(ctx context.Context, tc *turnContext) (Decision, bool) {
	err := e.dir.RequireAssistant(ctx, tc.account.ID)
	var status Status
	switch {
	case err == nil:
		return Decision{}, false
	case errors.Is(err, clinic.ErrNoSubscription):
		status = StatusNoSubscription
	case errors.Is(err, clinic.ErrPlanIncompatible):
		status = StatusPlanIncompatible
	default:
		e.logger.Error("plan check failed", "account_id", tc.account.ID, "error", err)
		return Fallback(), true
	}
	e.logger.Warn("assistant blocked by plan", "account_id", tc.account.ID, "status", string(status))
	e.audit(ctx, compliance.AuditEvent{
		EventType: compliance.EventPlanBlocked,
		AccountID: tc.account.ID,
		PatientID: tc.patient.ID,
		Status:    string(status),
	})
	return Decision{Status: status, StateOp: StateKeep}, true
}

func (e *Engine) classify(ctx context.Context, tc *turnContext, turn Turn) (Intent, error) {
	in := ClassifyInput{
		Message:     tc.body,
		Step:        turn.step(),
		AccountName: tc.account.Name,
	}
	if turn.State != nil {
		in.OfferedSlots = FormatSlots(turn.State.OfferedSlots)
	}
	if faq, err := e.dir.Store().ListFAQ(ctx, tc.account.ID); err == nil {
		for _, item := range faq {
			in.FAQ = append(in.FAQ, FAQHint{Key: item.IntentKey, ExampleQuestions: item.ExampleQuestions})
		}
	} else {
		e.logger.Warn("failed to load faq keys", "account_id", tc.account.ID, "error", err)
	}
	if pro, err := e.dir.Store().Professional(ctx, turn.ProfessionalID); err == nil {
		in.ProfessionalName = pro.FullName
	}

	intent, err := e.nlu.Classify(ctx, in)
	if errors.Is(err, ErrInvalidNLUOutput) {
		e.audit(ctx, compliance.AuditEvent{
			EventType:   compliance.EventNLUFallback,
			AccountID:   tc.account.ID,
			PatientID:   tc.patient.ID,
			Status:      "invalid_output",
			UserMessage: archive.ScrubPII(tc.body),
		})
		return IntentUnknown, nil
	}
	if err != nil {
		return "", err
	}
	return intent, nil
}

func (e *Engine) book(ctx context.Context, tc *turnContext, professionalID string, start time.Time) (*scheduling.Appointment, error) {
	req := scheduling.BookingRequest{
		AccountID:      tc.account.ID,
		PatientID:      tc.patient.ID,
		ProfessionalID: professionalID,
		Title:          "Consulta",
		StartAt:        start,
		Source:         scheduling.SourceConversation,
	}
	if svc, err := e.dir.Store().DefaultService(ctx, professionalID); err == nil {
		id := svc.ID
		req.ServiceID = &id
		req.Title = svc.Name
	} else if !errors.Is(err, clinic.ErrServiceNotFound) {
		e.logger.Warn("failed to load default service", "professional_id", professionalID, "error", err)
	}

	appt, err := e.booking.Book(ctx, req)
	switch {
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		e.metrics.ObserveBooking("slot_unavailable")
		return nil, err
	case err != nil:
		e.metrics.ObserveBooking("error")
		e.logger.Error("booking failed", "patient_id", tc.patient.ID, "error", err)
		return nil, err
	}
	e.metrics.ObserveBooking("booked")

	e.publish(ctx, tc.account.ID, events.AppointmentBookedV1{
		AppointmentID:  appt.ID,
		AccountID:      appt.AccountID,
		PatientID:      appt.PatientID,
		PatientName:    tc.patient.FullName,
		ProfessionalID: appt.ProfessionalID,
		StartAt:        appt.StartAt,
		Source:         string(scheduling.SourceConversation),
	})
	e.audit(ctx, compliance.AuditEvent{
		EventType: compliance.EventAppointmentBooked,
		AccountID: tc.account.ID,
		PatientID: tc.patient.ID,
		Status:    string(appt.Status),
		Tags:      []string{appt.ID},
	})
	return appt, nil
}

// answerFAQ composes the stored answer with live account data and lets the
// generator phrase it. The stored text is used when generation fails.
func (e *Engine) answerFAQ(ctx context.Context, tc *turnContext, key string) (string, bool, error) {
	item, err := e.dir.Store().FAQ(ctx, tc.account.ID, key)
	if errors.Is(err, clinic.ErrFAQNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	draft := strings.TrimSpace(item.Answer) + e.faqContext(ctx, tc.account, key)

	reply, err := e.nlu.GenerateReply(ctx, ReplyRequest{
		Purpose:          "faq:" + key,
		Question:         tc.body,
		Draft:            draft,
		PatientFirstName: tc.patient.FirstName(),
		AccountName:      tc.account.Name,
	})
	if err != nil {
		e.logger.Warn("reply generation failed, using stored answer", "intent_key", key, "error", err)
		return draft, true, nil
	}
	return reply, true, nil
}

func (e *Engine) faqContext(ctx context.Context, acc *clinic.Account, key string) string {
	var extra []string
	switch key {
	case "localizacao_contato":
		if acc.Address != "" {
			extra = append(extra, "Endereço: "+acc.Address)
		}
		if acc.Phone != "" {
			extra = append(extra, "Telefone: "+acc.Phone)
		}
	case "conhecer_profissionais":
		if pro, err := e.dir.Store().Professional(ctx, acc.OwnerProfessionalID); err == nil {
			line := "Profissional: " + pro.FullName
			if pro.Specialty != "" {
				line += " (" + pro.Specialty + ")"
			}
			extra = append(extra, line)
		}
	case "conhecer_servicos":
		if svc, err := e.dir.Store().DefaultService(ctx, acc.OwnerProfessionalID); err == nil {
			line := "Serviço: " + svc.Name
			if svc.PriceCents > 0 {
				line += " - " + billing.FormatBRL(svc.PriceCents)
			}
			extra = append(extra, line)
		}
	}
	if len(extra) == 0 {
		return ""
	}
	return "\n" + strings.Join(extra, "\n")
}

func (e *Engine) applyEffects(ctx context.Context, tc *turnContext, effects []Effect) error {
	store := e.dir.Store()
	for _, eff := range effects {
		switch eff.Kind {
		case EffectConfirmAppointment:
			if _, err := e.statuses.Confirm(ctx, eff.AppointmentID); err != nil && !errors.Is(err, scheduling.ErrInvalidTransition) {
				return fmt.Errorf("confirm appointment: %w", err)
			}

		case EffectCancelAppointment:
			if _, err := e.statuses.Cancel(ctx, eff.AppointmentID); err != nil && !errors.Is(err, scheduling.ErrInvalidTransition) {
				return fmt.Errorf("cancel appointment: %w", err)
			}

		case EffectRecordNPS:
			if err := e.recordNPS(ctx, tc, eff); err != nil {
				return err
			}

		case EffectSaveName:
			if err := store.UpdatePatientName(ctx, tc.patient.ID, eff.FullName); err != nil {
				return fmt.Errorf("save patient name: %w", err)
			}
			tc.patient.FullName = eff.FullName

		case EffectSaveDetails:
			var cpf *string
			if eff.Details.CPF != "" {
				v := eff.Details.CPF
				cpf = &v
			}
			if err := store.UpdatePatientDetails(ctx, tc.patient.ID, cpf, eff.Details.BirthDate); err != nil {
				return fmt.Errorf("save patient details: %w", err)
			}
			e.audit(ctx, compliance.AuditEvent{
				EventType: compliance.EventPersonalDataCollected,
				AccountID: tc.account.ID,
				PatientID: tc.patient.ID,
				Status:    "stored",
				Tags:      eff.Details.Fields(),
			})

		case EffectCreateDocumentRequest:
			req := &clinic.DocumentRequest{
				ID:                     uuid.NewString(),
				AccountID:              tc.account.ID,
				PatientID:              tc.patient.ID,
				AssignedProfessionalID: tc.account.OwnerProfessionalID,
				Kind:                   eff.DocumentKind,
				Details:                eff.Text,
				Status:                 clinic.RequestPending,
				CreatedAt:              tc.received,
			}
			if err := store.CreateDocumentRequest(ctx, req); err != nil {
				return fmt.Errorf("create document request: %w", err)
			}
			e.publish(ctx, tc.account.ID, events.DocumentRequestedV1{
				RequestID:    req.ID,
				AccountID:    req.AccountID,
				PatientID:    req.PatientID,
				PatientName:  tc.patient.FullName,
				PatientPhone: tc.patient.Phone,
				Kind:         string(req.Kind),
				Details:      req.Details,
				RequestedAt:  req.CreatedAt,
			})

		case EffectHandoff:
			e.publish(ctx, tc.account.ID, events.HandoffRequestedV1{
				AccountID:    tc.account.ID,
				PatientID:    tc.patient.ID,
				PatientName:  tc.patient.FullName,
				PatientPhone: tc.patient.Phone,
				LastMessage:  eff.Text,
				RequestedAt:  tc.received,
			})
			e.audit(ctx, compliance.AuditEvent{
				EventType:   compliance.EventHandoff,
				AccountID:   tc.account.ID,
				PatientID:   tc.patient.ID,
				UserMessage: archive.ScrubPII(eff.Text),
			})
		}
	}
	return nil
}

func (e *Engine) recordNPS(ctx context.Context, tc *turnContext, eff Effect) error {
	appt, err := e.appointments.Get(ctx, eff.AppointmentID)
	if errors.Is(err, scheduling.ErrNotFound) {
		e.logger.Warn("nps score for unknown appointment skipped", "appointment_id", eff.AppointmentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load appointment for nps: %w", err)
	}
	fb := &clinic.NPSFeedback{
		ID:             uuid.NewString(),
		PatientID:      tc.patient.ID,
		ProfessionalID: appt.ProfessionalID,
		AppointmentID:  appt.ID,
		Score:          eff.Score,
		CreatedAt:      tc.received,
	}
	if err := e.dir.Store().RecordNPS(ctx, fb); err != nil {
		return fmt.Errorf("record nps: %w", err)
	}
	return nil
}

// finish persists state, sends the reply and records the turn.
func (e *Engine) finish(ctx context.Context, tc *turnContext, d Decision) Outcome {
	stepAfter := StepNone
	if tc.before != nil {
		stepAfter = tc.before.Step
	}
	if tc.stateKey != "" {
		switch d.StateOp {
		case StatePut:
			next := d.Next
			next.UpdatedAt = tc.received
			ttl := e.offerTTL
			if next.Step == StepAwaitingNPSScore {
				ttl = e.npsTTL
			}
			if err := e.states.Put(ctx, tc.stateKey, next, ttl); err != nil {
				e.logger.Error("failed to save conversation state", "patient_id", tc.patient.ID, "error", err)
			}
			stepAfter = next.Step
		case StateClear:
			if err := e.states.Clear(ctx, tc.stateKey); err != nil {
				e.logger.Error("failed to clear conversation state", "patient_id", tc.patient.ID, "error", err)
			}
			stepAfter = StepNone
		}
	}

	if d.Reply != "" {
		err := e.messenger.Send(ctx, messaging.OutboundMessage{
			AccountID: tc.account.ID,
			To:        tc.msg.From,
			From:      tc.msg.To,
			Body:      d.Reply,
		})
		if err != nil {
			e.delivery.ObserveOutbound("error")
			e.logger.Error("failed to send reply", "account_id", tc.account.ID, "patient_id", tc.patient.ID, "error", err)
		} else {
			e.delivery.ObserveOutbound("sent")
		}
	}

	stepBefore := StepNone
	if tc.before != nil {
		stepBefore = tc.before.Step
	}
	e.record(ctx, tc, d, stepBefore, stepAfter)
	return Outcome{Status: d.Status, Reply: d.Reply}
}

func (e *Engine) record(ctx context.Context, tc *turnContext, d Decision, before, after Step) {
	if e.archive != nil {
		rec := archive.TurnRecord{
			Version:    "1",
			TurnID:     uuid.NewString(),
			AccountID:  tc.account.ID,
			PatientID:  tc.patient.ID,
			PhoneHash:  archive.HashPhone(tc.patient.Phone),
			Inbound:    archive.ScrubPII(tc.body),
			Reply:      archive.ScrubPII(d.Reply),
			Intent:     string(tc.intent),
			StepBefore: string(before),
			StepAfter:  string(after),
			Status:     string(d.Status),
			ReceivedAt: tc.received,
		}
		if err := e.archive.ArchiveTurn(ctx, rec); err != nil {
			e.logger.Warn("failed to archive turn", "account_id", tc.account.ID, "error", err)
		}
	}
	e.audit(ctx, compliance.AuditEvent{
		EventType:   compliance.EventTurnHandled,
		AccountID:   tc.account.ID,
		PatientID:   tc.patient.ID,
		Status:      string(d.Status),
		UserMessage: archive.ScrubPII(tc.body),
		Reply:       archive.ScrubPII(d.Reply),
		Tags:        intentTags(tc.intent),
	})
}

func intentTags(intent Intent) []string {
	if intent == "" {
		return nil
	}
	return []string{string(intent)}
}

func (e *Engine) publish(ctx context.Context, accountID string, evt events.CanonicalEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, accountID, evt); err != nil {
		e.logger.Error("failed to publish event", "event_type", evt.EventType(), "account_id", accountID, "error", err)
	}
}

func (e *Engine) audit(ctx context.Context, event compliance.AuditEvent) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.LogEvent(ctx, event); err != nil {
		e.logger.Warn("failed to write audit event", "event_type", string(event.EventType), "error", err)
	}
}
