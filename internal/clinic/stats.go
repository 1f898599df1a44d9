package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// Stats summarizes an account's scheduling activity.
type Stats struct {
	AccountID             string  `json:"account_id"`
	AppointmentsBooked    int64   `json:"appointments_booked"`
	AppointmentsConfirmed int64   `json:"appointments_confirmed"`
	AppointmentsNoShow    int64   `json:"appointments_no_show"`
	PendingRequests       int64   `json:"pending_document_requests"`
	NPSResponses          int64   `json:"nps_responses"`
	NPSAverage            float64 `json:"nps_average"`
	PeriodStart           string  `json:"period_start"`
	PeriodEnd             string  `json:"period_end"`
}

type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries account metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a repository over a pgx pool or mock.
func NewStatsRepository(db statsDB) *StatsRepository {
	if db == nil {
		panic("clinic: db required for stats")
	}
	return &StatsRepository{db: db}
}

// GetStats aggregates metrics for an account. Nil start/end returns all-time stats.
func (r *StatsRepository) GetStats(ctx context.Context, accountID string, start, end *time.Time) (*Stats, error) {
	stats := &Stats{AccountID: accountID}

	var timeFilter string
	args := []any{accountID}
	if start != nil && end != nil {
		timeFilter = " AND created_at >= $2 AND created_at < $3"
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	counts := []struct {
		query string
		dest  *int64
		label string
	}{
		{`SELECT COUNT(*) FROM appointments WHERE account_id = $1` + timeFilter, &stats.AppointmentsBooked, "booked"},
		{`SELECT COUNT(*) FROM appointments WHERE account_id = $1 AND status = 'confirmed'` + timeFilter, &stats.AppointmentsConfirmed, "confirmed"},
		{`SELECT COUNT(*) FROM appointments WHERE account_id = $1 AND status = 'no_show'` + timeFilter, &stats.AppointmentsNoShow, "no-show"},
		{`SELECT COUNT(*) FROM document_requests WHERE account_id = $1 AND status = 'PENDENTE'` + timeFilter, &stats.PendingRequests, "pending requests"},
	}
	for _, c := range counts {
		if err := r.db.QueryRow(ctx, c.query, args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("clinic stats: count %s: %w", c.label, err)
		}
	}

	npsQuery := `
		SELECT COUNT(*), COALESCE(AVG(f.score), 0)::float8
		FROM nps_feedback f JOIN patients p ON p.id = f.patient_id
		WHERE p.account_id = $1`
	if timeFilter != "" {
		npsQuery += " AND f.created_at >= $2 AND f.created_at < $3"
	}
	if err := r.db.QueryRow(ctx, npsQuery, args...).Scan(&stats.NPSResponses, &stats.NPSAverage); err != nil {
		return nil, fmt.Errorf("clinic stats: nps: %w", err)
	}
	return stats, nil
}

// StatsHandler serves account statistics.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{repo: repo, logger: logger}
}

// GetStats returns aggregated metrics for an account.
// GET /admin/accounts/{accountID}/stats?start=&end= (RFC3339, both or neither)
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		http.Error(w, `{"error": "account_id required"}`, http.StatusBadRequest)
		return
	}
	if h.repo == nil {
		http.Error(w, `{"error": "stats disabled (db not configured)"}`, http.StatusServiceUnavailable)
		return
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, `{"error": "invalid start time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			http.Error(w, `{"error": "invalid end time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}
	if (start == nil) != (end == nil) {
		http.Error(w, `{"error": "both start and end must be provided, or neither"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetStats(r.Context(), accountID, start, end)
	if err != nil {
		h.logger.Error("failed to get account stats", "account_id", accountID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode account stats", "account_id", accountID, "error", err)
	}
}
