package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMessagingMetrics(reg)
	m.ObserveInbound("slots_sent", 0.5)
	m.ObserveInbound("slots_sent", 0.2)
	m.ObserveOutbound("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inboundTotal.WithLabelValues("slots_sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundTotal.WithLabelValues("sent")))
}

func TestConversationMetricsNLUFamilyName(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveNLU("classify", "ok", 0.3)
	m.ObserveBooking("created")
	m.ObserveSlotsOffered(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "atma_conversation_nlu_latency_seconds")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("created")))
}

func TestJobMetrics(t *testing.T) {
	m := NewJobMetrics(prometheus.NewRegistry())
	m.ObserveRun("reminders", 4, nil)
	m.ObserveRun("reminders", 0, errors.New("boom"))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.processed.WithLabelValues("reminders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("reminders", "error")))
}

func TestMetricsNilSafe(t *testing.T) {
	var mm *MessagingMetrics
	mm.ObserveInbound("status", 0.1)
	mm.ObserveOutbound("sent")
	var cm *ConversationMetrics
	cm.ObserveNLU("classify", "ok", 0.1)
	cm.ObserveBooking("created")
	cm.ObserveSlotsOffered(1)
	var jm *JobMetrics
	jm.ObserveRun("x", 1, nil)
}
