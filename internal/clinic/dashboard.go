package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

// NLULatencyMetric is the histogram the dashboard summarizes.
const NLULatencyMetric = "atma_conversation_nlu_latency_seconds"

type dashboardDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type dashboardRepo interface {
	BookingsByDay(ctx context.Context, accountID string, start, end time.Time) ([]BookingDay, error)
}

// BookingDay counts appointments created on a day, split by outcome.
type BookingDay struct {
	Day       time.Time `json:"-"`
	DayLabel  string    `json:"day"`
	Booked    int64     `json:"booked"`
	Cancelled int64     `json:"cancelled"`
}

type LatencySnapshot struct {
	Total int64   `json:"total"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

type Dashboard struct {
	AccountID     string          `json:"account_id"`
	PeriodStart   string          `json:"period_start"`
	PeriodEnd     string          `json:"period_end"`
	Booked        int64           `json:"booked"`
	Cancelled     int64           `json:"cancelled"`
	CancelRatePct float64         `json:"cancel_rate_pct"`
	NLULatency    LatencySnapshot `json:"nlu_latency"`
	Daily         []BookingDay    `json:"daily"`
}

// DashboardRepository queries daily booking counts.
type DashboardRepository struct {
	db dashboardDB
}

func NewDashboardRepository(db dashboardDB) *DashboardRepository {
	if db == nil {
		panic("clinic: db required for dashboard")
	}
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) BookingsByDay(ctx context.Context, accountID string, start, end time.Time) ([]BookingDay, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("clinic dashboard: account_id required")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("clinic dashboard: invalid time range")
	}

	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*) AS booked,
		       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM appointments
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY day
		ORDER BY day`, accountID, start, end)
	if err != nil {
		return nil, fmt.Errorf("clinic dashboard: query bookings: %w", err)
	}
	defer rows.Close()

	var out []BookingDay
	for rows.Next() {
		var d BookingDay
		if err := rows.Scan(&d.Day, &d.Booked, &d.Cancelled); err != nil {
			return nil, fmt.Errorf("clinic dashboard: scan bookings: %w", err)
		}
		d.Day = d.Day.UTC()
		d.DayLabel = d.Day.Format(time.DateOnly)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinic dashboard: iterate bookings: %w", err)
	}
	return out, nil
}

// DashboardHandler serves operational dashboard JSON for an account.
type DashboardHandler struct {
	repo     dashboardRepo
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewDashboardHandler(repo dashboardRepo, gatherer prometheus.Gatherer, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &DashboardHandler{repo: repo, gatherer: gatherer, logger: logger}
}

// GetDashboard returns booking counts and NLU latency.
// GET /admin/accounts/{accountID}/dashboard?days=7 or ?start=&end=
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if strings.TrimSpace(accountID) == "" {
		http.Error(w, `{"error":"account_id required"}`, http.StatusBadRequest)
		return
	}
	if h.repo == nil {
		http.Error(w, `{"error":"dashboard disabled (db not configured)"}`, http.StatusServiceUnavailable)
		return
	}

	start, end, err := parseDashboardWindow(r, time.Now().UTC())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	days, err := h.repo.BookingsByDay(r.Context(), accountID, start, end)
	if err != nil {
		h.logger.Error("failed to query dashboard bookings", "account_id", accountID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	days = fillMissingDays(days, start, end)

	resp := Dashboard{
		AccountID:   accountID,
		PeriodStart: start.Format(time.RFC3339),
		PeriodEnd:   end.Format(time.RFC3339),
		NLULatency:  snapshotLatency(h.gatherer, NLULatencyMetric),
		Daily:       days,
	}
	for _, d := range days {
		resp.Booked += d.Booked
		resp.Cancelled += d.Cancelled
	}
	if resp.Booked > 0 {
		resp.CancelRatePct = float64(resp.Cancelled) / float64(resp.Booked) * 100
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func parseDashboardWindow(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))
	if (startRaw == "") != (endRaw == "") {
		return time.Time{}, time.Time{}, fmt.Errorf("both start and end must be provided, or neither")
	}
	if startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start time, use RFC3339 format")
		}
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end time, use RFC3339 format")
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
		}
		return start.UTC(), end.UTC(), nil
	}

	days := 7
	if raw := strings.TrimSpace(q.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid days; must be 1-90")
		}
		days = parsed
	}
	end := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -days), end, nil
}

func fillMissingDays(existing []BookingDay, start, end time.Time) []BookingDay {
	lookup := make(map[string]BookingDay, len(existing))
	for _, d := range existing {
		lookup[d.DayLabel] = d
	}
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	var out []BookingDay
	for day := startDay; day.Before(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		if found, ok := lookup[key]; ok {
			out = append(out, found)
			continue
		}
		out = append(out, BookingDay{Day: day, DayLabel: key})
	}
	return out
}

// snapshotLatency summarizes successful observations of a histogram family.
func snapshotLatency(gatherer prometheus.Gatherer, name string) LatencySnapshot {
	mfs, err := gatherer.Gather()
	if err != nil {
		return LatencySnapshot{}
	}
	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == name {
			family = mf
			break
		}
	}
	if family == nil {
		return LatencySnapshot{}
	}

	cumulative := map[float64]uint64{}
	var total uint64
	for _, metric := range family.Metric {
		if !hasLabel(metric, "status", "ok") {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		total += h.GetSampleCount()
		for _, b := range h.Bucket {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if total == 0 || len(cumulative) == 0 {
		return LatencySnapshot{}
	}
	uppers := make([]float64, 0, len(cumulative))
	for u := range cumulative {
		uppers = append(uppers, u)
	}
	sort.Float64s(uppers)

	return LatencySnapshot{
		Total: int64(total),
		P50Ms: histogramQuantile(0.50, total, uppers, cumulative) * 1000,
		P95Ms: histogramQuantile(0.95, total, uppers, cumulative) * 1000,
	}
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

// histogramQuantile linearly interpolates within the bucket holding the q-th sample.
func histogramQuantile(q float64, total uint64, uppers []float64, cumulative map[float64]uint64) float64 {
	target := q * float64(total)
	var prevUpper, prevCum float64
	for _, upper := range uppers {
		cum := float64(cumulative[upper])
		if cum < target {
			prevUpper, prevCum = upper, cum
			continue
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}
		inBucket := cum - prevCum
		if inBucket <= 0 {
			return upper
		}
		return prevUpper + (target-prevCum)/inBucket*(upper-prevUpper)
	}
	return prevUpper
}
