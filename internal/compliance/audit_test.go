package compliance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db)

	tests := []struct {
		name  string
		event AuditEvent
	}{
		{
			name: "turn handled",
			event: AuditEvent{
				EventType:   EventTurnHandled,
				AccountID:   uuid.New().String(),
				PatientID:   "pat-1",
				Status:      "slots_sent",
				UserMessage: "quero agendar",
				Reply:       "Tenho estes horários",
			},
		},
		{
			name: "handoff with details",
			event: AuditEvent{
				EventType: EventHandoff,
				AccountID: uuid.New().String(),
				Tags:      []string{"unknown_intent"},
				Details:   json.RawMessage(`{"intent":"DESCONHECIDO"}`),
			},
		},
		{
			name:  "plan blocked",
			event: AuditEvent{EventType: EventPlanBlocked, AccountID: "acc-1", Status: "plan_incompatible"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO conversation_audit_events").
				WillReturnResult(sqlmock.NewResult(1, 1))
			assert.NoError(t, service.LogEvent(context.Background(), tt.event))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogPersonalDataCollected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO conversation_audit_events").
		WithArgs(sqlmock.AnyArg(), string(EventPersonalDataCollected), "acc-1", "pat-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewAuditService(db).LogPersonalDataCollected(context.Background(), "acc-1", "pat-1", []string{"cpf", "birth_date"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "account_id", "patient_id", "status",
		"user_message", "reply", "tags", "details", "created_at",
	}).AddRow(
		uuid.New().String(), string(EventPersonalDataCollected), "acc-1", "pat-1", nil,
		nil, nil, "{cpf,birth_date}", []byte(`{}`), now,
	)

	mock.ExpectQuery(`SELECT (.+) FROM conversation_audit_events WHERE account_id = \$1 AND event_type = \$2 AND tags && \$3`).
		WillReturnRows(rows)

	events, err := NewAuditService(db).QueryEvents(context.Background(), AuditFilter{
		AccountID: "acc-1",
		EventType: EventPersonalDataCollected,
		AnyTags:   []string{"cpf"},
		Limit:     50,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPersonalDataCollected, events[0].EventType)
	assert.Equal(t, []string{"cpf", "birth_date"}, events[0].Tags)
	assert.Empty(t, events[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogAuditor(t *testing.T) {
	assert.NoError(t, NewLogAuditor(nil).LogEvent(context.Background(), AuditEvent{EventType: EventTurnHandled}))
}
