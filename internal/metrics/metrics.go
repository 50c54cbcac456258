// Package metrics exposes Prometheus collectors for the chat server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "friendlychat"

// Registry holds every collector defined here plus the Go runtime ones.
var Registry = prometheus.NewRegistry()

var (
	messagesSubmitted = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_submitted_total",
		Help:      "Message submissions by kind and outcome.",
	}, []string{"kind", "outcome"})

	feedBatches = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_batches_total",
		Help:      "Change batches applied to session feeds.",
	})

	sessionsActive = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Connected chat pages.",
	})

	diagnosticsReports = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnostics_reports_total",
		Help:      "Error reports sent to the diagnostics sink.",
	}, []string{"dropped"})

	pushSent = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_notifications_total",
		Help:      "Push notifications by delivery outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Submitted(kind, outcome string) {
	messagesSubmitted.WithLabelValues(kind, outcome).Inc()
}

func FeedBatch() {
	feedBatches.Inc()
}

func SessionOpened() {
	sessionsActive.Inc()
}

func SessionClosed() {
	sessionsActive.Dec()
}

func DiagnosticsReport(dropped bool) {
	diagnosticsReports.WithLabelValues(strconv.FormatBool(dropped)).Inc()
}

func PushSent(outcome string) {
	pushSent.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
