package clinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

type stubDashboardRepo struct {
	days []BookingDay
	err  error

	gotAccount string
}

func (s *stubDashboardRepo) BookingsByDay(_ context.Context, accountID string, _, _ time.Time) ([]BookingDay, error) {
	s.gotAccount = accountID
	return s.days, s.err
}

type stubGatherer struct {
	families []*dto.MetricFamily
}

func (s stubGatherer) Gather() ([]*dto.MetricFamily, error) {
	return s.families, nil
}

func latencyFamily(status string, count uint64, buckets map[float64]uint64) *dto.MetricFamily {
	h := &dto.Histogram{SampleCount: proto.Uint64(count)}
	for _, upper := range []float64{0.5, 1, 2} {
		h.Bucket = append(h.Bucket, &dto.Bucket{UpperBound: proto.Float64(upper), CumulativeCount: proto.Uint64(buckets[upper])})
	}
	return &dto.MetricFamily{
		Name: proto.String(NLULatencyMetric),
		Type: dto.MetricType_HISTOGRAM.Enum(),
		Metric: []*dto.Metric{{
			Label:     []*dto.LabelPair{{Name: proto.String("status"), Value: proto.String(status)}},
			Histogram: h,
		}},
	}
}

func TestDashboardHandler_FillsDaysAndSummarizesLatency(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubDashboardRepo{days: []BookingDay{
		{Day: start, DayLabel: "2026-01-01", Booked: 4, Cancelled: 1},
		{Day: start.AddDate(0, 0, 2), DayLabel: "2026-01-03", Booked: 6, Cancelled: 0},
	}}
	fam := latencyFamily("ok", 10, map[float64]uint64{0.5: 5, 1: 9, 2: 10})
	fam.Metric = append(fam.Metric, latencyFamily("error", 3, map[float64]uint64{0.5: 3, 1: 3, 2: 3}).Metric...)

	h := NewDashboardHandler(repo, stubGatherer{families: []*dto.MetricFamily{fam}}, nil)
	r := chi.NewRouter()
	r.Get("/admin/accounts/{accountID}/dashboard", h.GetDashboard)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1/dashboard?start=2026-01-01T00:00:00Z&end=2026-01-04T00:00:00Z", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "acc-1", repo.gotAccount)
	require.Len(t, got.Daily, 3)
	assert.Equal(t, "2026-01-02", got.Daily[1].DayLabel)
	assert.Equal(t, int64(0), got.Daily[1].Booked)
	assert.Equal(t, int64(10), got.Booked)
	assert.InDelta(t, 10.0, got.CancelRatePct, 0.001)

	assert.Equal(t, int64(10), got.NLULatency.Total)
	assert.InDelta(t, 500.0, got.NLULatency.P50Ms, 0.001)
	assert.Greater(t, got.NLULatency.P95Ms, 1000.0)
	assert.LessOrEqual(t, got.NLULatency.P95Ms, 2000.0)
}

func TestDashboardHandler_RejectsBadWindow(t *testing.T) {
	h := NewDashboardHandler(&stubDashboardRepo{}, stubGatherer{}, nil)
	r := chi.NewRouter()
	r.Get("/admin/accounts/{accountID}/dashboard", h.GetDashboard)

	for _, q := range []string{"?days=0", "?days=120", "?start=2026-01-02T00:00:00Z&end=2026-01-01T00:00:00Z"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/accounts/acc-1/dashboard"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestParseDashboardWindowDefaultsToSevenDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	start, end, err := parseDashboardWindow(httptest.NewRequest(http.MethodGet, "/", nil), now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), start)
}
