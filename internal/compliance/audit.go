// Package compliance keeps an append-only audit trail of what the assistant
// did with each patient message.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// EventTurnHandled is logged for every routed inbound message.
	EventTurnHandled AuditEventType = "conversation.turn_handled"
	// EventAppointmentBooked is logged when the assistant commits a booking.
	EventAppointmentBooked AuditEventType = "conversation.appointment_booked"
	// EventPersonalDataCollected is logged when CPF or birth date is stored (LGPD).
	EventPersonalDataCollected AuditEventType = "lgpd.personal_data_collected"
	// EventHandoff is logged when the patient is offered a human.
	EventHandoff AuditEventType = "conversation.handoff"
	// EventPlanBlocked is logged when an account's plan does not include the assistant.
	EventPlanBlocked AuditEventType = "billing.plan_blocked"
	// EventNLUFallback is logged when the rule-based classifier replaced the LLM.
	EventNLUFallback AuditEventType = "nlu.fallback_used"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID          string          `json:"id"`
	EventType   AuditEventType  `json:"event_type"`
	AccountID   string          `json:"account_id"`
	PatientID   string          `json:"patient_id,omitempty"`
	Status      string          `json:"status,omitempty"`
	UserMessage string          `json:"user_message,omitempty"`
	Reply       string          `json:"reply,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Auditor records audit events.
type Auditor interface {
	LogEvent(ctx context.Context, event AuditEvent) error
}

// AuditService handles audit logging over database/sql.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

var _ Auditor = (*AuditService)(nil)

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}
	tags := event.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO conversation_audit_events (
			id, event_type, account_id, patient_id, status,
			user_message, reply, tags, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.AccountID,
		nullString(event.PatientID),
		nullString(event.Status),
		nullString(event.UserMessage),
		nullString(event.Reply),
		pq.Array(tags),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogPersonalDataCollected records which personal fields were stored, never their values.
func (s *AuditService) LogPersonalDataCollected(ctx context.Context, accountID, patientID string, fields []string) error {
	details, _ := json.Marshal(map[string]any{"fields": fields, "legal_basis": "execucao_de_contrato"})
	return s.LogEvent(ctx, AuditEvent{
		EventType: EventPersonalDataCollected,
		AccountID: accountID,
		PatientID: patientID,
		Tags:      fields,
		Details:   details,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, account_id, patient_id, status,
			   user_message, reply, tags, details, created_at
		FROM conversation_audit_events
		WHERE account_id = $1
	`
	args := []any{filter.AccountID}
	argIdx := 2

	if filter.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", argIdx)
		args = append(args, filter.PatientID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if len(filter.AnyTags) > 0 {
		query += fmt.Sprintf(" AND tags && $%d", argIdx)
		args = append(args, pq.Array(filter.AnyTags))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                             AuditEvent
			eventType                     string
			patientID, status, msg, reply sql.NullString
			tags                          pq.StringArray
			details                       []byte
		)
		if err := rows.Scan(&e.ID, &eventType, &e.AccountID, &patientID, &status,
			&msg, &reply, &tags, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.EventType = AuditEventType(eventType)
		e.PatientID = patientID.String
		e.Status = status.String
		e.UserMessage = msg.String
		e.Reply = reply.String
		e.Tags = []string(tags)
		e.Details = details
		events = append(events, e)
	}
	return events, rows.Err()
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	AccountID string
	PatientID string
	EventType AuditEventType
	AnyTags   []string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// LogAuditor writes audit events to the application log. Used when no database is configured.
type LogAuditor struct {
	logger *logging.Logger
}

func NewLogAuditor(logger *logging.Logger) *LogAuditor {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogAuditor{logger: logger}
}

func (a *LogAuditor) LogEvent(_ context.Context, event AuditEvent) error {
	a.logger.Info("audit event",
		"event_type", string(event.EventType),
		"org_id", event.AccountID,
		"patient_id", event.PatientID,
		"status", event.Status,
		"tags", event.Tags,
	)
	return nil
}
