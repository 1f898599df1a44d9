// Package metrics holds the Prometheus collectors for messaging, the
// conversation engine and background jobs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "atma"

// MessagingMetrics exposes counters/histograms for WhatsApp traffic.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks by resulting status token",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(status string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
	m.webhookLatency.WithLabelValues(status).Observe(seconds)
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

// ConversationMetrics tracks NLU calls and booking outcomes.
type ConversationMetrics struct {
	nluLatency *prometheus.HistogramVec
	bookings   *prometheus.CounterVec
	slotOffers *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		nluLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "nlu_latency_seconds",
			Help:      "Latency of NLU calls by operation and outcome",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"operation", "status"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "bookings_total",
			Help:      "Booking attempts from the conversation by outcome",
		}, []string{"outcome"}),
		slotOffers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "slots_offered",
			Help:      "Number of slots offered per search",
			Buckets:   []float64{0, 1, 2, 3},
		}, []string{}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.nluLatency, m.bookings, m.slotOffers)
	return m
}

// ObserveNLU records one NLU call. status is "ok", "invalid" or "error".
func (m *ConversationMetrics) ObserveNLU(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.nluLatency.WithLabelValues(operation, status).Observe(seconds)
}

func (m *ConversationMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *ConversationMetrics) ObserveSlotsOffered(n int) {
	if m == nil {
		return
	}
	m.slotOffers.WithLabelValues().Observe(float64(n))
}

// JobMetrics counts background job runs and the items they processed.
type JobMetrics struct {
	runs      *prometheus.CounterVec
	processed *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job and outcome",
		}, []string{"job", "status"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "items_total",
			Help:      "Items handled by background jobs",
		}, []string{"job"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runs, m.processed)
	return m
}

func (m *JobMetrics) ObserveRun(job string, items int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(job, status).Inc()
	if items > 0 {
		m.processed.WithLabelValues(job).Add(float64(items))
	}
}
