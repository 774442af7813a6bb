package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	handlerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tg_handler_total",
			Help: "Telegram handler invocations by handler and status.",
		},
		[]string{"handler", "status"},
	)

	handlerDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tg_handler_duration_ms",
			Help:    "Telegram handler latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"handler"},
	)

	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tg_messages_sent_total",
			Help: "Messages sent or edited by handlers.",
		},
	)

	sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tg_send_failures_total",
			Help: "Outbound Telegram calls that failed after retries, by error kind.",
		},
		[]string{"kind"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tg_rate_limited_total",
			Help: "Updates dropped by the per-user rate limit, by update kind.",
		},
		[]string{"kind"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_transitions_total",
			Help: "Conversation state transitions by source and target state.",
		},
		[]string{"from", "to"},
	)

	invoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_invoices_total",
			Help: "Invoice creation attempts by status (created/failed).",
		},
		[]string{"status"},
	)

	invoiceLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payments_invoice_latency_ms",
			Help:    "Invoice creation latency in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400, 10000},
		},
	)

	confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_confirmations_total",
			Help: "Payment confirmations by outcome (accepted/unpaid/failed).",
		},
		[]string{"outcome"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			handlerTotal, handlerDurationMs, messagesSent, sendFailures, rateLimited,
			transitionsTotal,
			invoicesTotal, invoiceLatencyMs, confirmationsTotal,
		)
	})
}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

// ObserveHandler records a single handler run.
func ObserveHandler(handler, status string, took time.Duration) {
	handlerTotal.WithLabelValues(norm(handler), norm(status)).Inc()
	handlerDurationMs.WithLabelValues(norm(handler)).Observe(float64(took.Milliseconds()))
}

// AddMessages counts outbound messages produced while handling an update.
func AddMessages(n int) {
	if n > 0 {
		messagesSent.Add(float64(n))
	}
}

// IncSendFailure counts an outbound call the sender gave up on.
func IncSendFailure(kind string) {
	sendFailures.WithLabelValues(norm(kind)).Inc()
}

// IncRateLimited counts an update dropped by the rate limit.
func IncRateLimited(kind string) {
	rateLimited.WithLabelValues(norm(kind)).Inc()
}

// IncTransition counts a conversation moving between states.
func IncTransition(from, to string) {
	transitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

// ObserveInvoice records the outcome and latency of an invoice creation call.
func ObserveInvoice(ok bool, took time.Duration) {
	status := "created"
	if !ok {
		status = "failed"
	}
	invoicesTotal.WithLabelValues(status).Inc()
	invoiceLatencyMs.Observe(float64(took.Milliseconds()))
}

// IncConfirmation counts a "paid" button press by outcome.
func IncConfirmation(outcome string) {
	confirmationsTotal.WithLabelValues(norm(outcome)).Inc()
}
