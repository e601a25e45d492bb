// Package metrics provides Prometheus metrics for the study server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/ideation-study/internal/domain"
)

const (
	namespace = "ideation"
	subsystem = "study"
)

// Metrics records study events. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	assignments     *prometheus.CounterVec
	turns           *prometheus.CounterVec
	chatRejections  *prometheus.CounterVec
	eligibility     *prometheus.CounterVec
	surveys         *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates metrics on a fresh registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{registry: registry}

	m.assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "assignments_total",
			Help:      "Condition assignments created, by cell",
		},
		[]string{"planning", "feedback"},
	)

	m.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chat_turns_total",
			Help:      "Chat turns persisted, by feedback family and script phase",
		},
		[]string{"feedback", "phase"},
	)

	m.chatRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chat_rejections_total",
			Help:      "Chat requests refused before a turn was written",
		},
		[]string{"reason"},
	)

	m.eligibility = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "eligibility_checks_total",
			Help:      "Follow-up eligibility decisions, by reason",
		},
		[]string{"reason"},
	)

	m.surveys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "surveys_submitted_total",
			Help:      "Survey submissions accepted, by stage",
		},
		[]string{"stage"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method", "status"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.assignments,
		m.turns,
		m.chatRejections,
		m.eligibility,
		m.surveys,
		m.requestDuration,
	)

	return m
}

// AssignmentCreated counts a newly written condition assignment.
func (m *Metrics) AssignmentCreated(cell domain.Cell) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(string(cell.Planning), string(cell.Feedback)).Inc()
}

// TurnRecorded counts a persisted chat turn.
func (m *Metrics) TurnRecorded(feedback domain.Feedback, phase string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(string(feedback), phase).Inc()
}

// ChatRejected counts a refused chat request.
func (m *Metrics) ChatRejected(reason string) {
	if m == nil {
		return
	}
	m.chatRejections.WithLabelValues(reason).Inc()
}

// EligibilityChecked counts a follow-up eligibility decision.
func (m *Metrics) EligibilityChecked(reason string) {
	if m == nil {
		return
	}
	m.eligibility.WithLabelValues(reason).Inc()
}

// SurveySubmitted counts an accepted survey.
func (m *Metrics) SurveySubmitted(stage domain.Stage) {
	if m == nil {
		return
	}
	m.surveys.WithLabelValues(stage.String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware observes request latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
