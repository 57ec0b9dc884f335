package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the credential lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	issued         *prometheus.CounterVec
	statusChanges  *prometheus.CounterVec
	codeCollisions prometheus.Counter
	verifications  *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	repairs        *prometheus.CounterVec
	quizAttempts   *prometheus.CounterVec
	sessionLookups *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_issued_total",
		Help: "Certificates newly written to the ledger",
	}, []string{"method"})

	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_status_changes_total",
		Help: "Revocations and restorations applied to the ledger",
	}, []string{"status"})

	codeCollisions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certificate_code_collisions_total",
		Help: "Generated codes rejected because they were already taken",
	})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_verifications_total",
		Help: "Verification lookups by outcome",
	}, []string{"outcome"})

	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "certificate_render_duration_seconds",
		Help:    "Time spent rendering certificate documents",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"format", "result"})

	repairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_repairs_total",
		Help: "Ledger reconciliation repairs by result",
	}, []string{"result"})

	quizAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_attempts_total",
		Help: "Scored quiz attempts",
	}, []string{"passed"})

	sessionLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_session_lookups_total",
		Help: "Quiz session fetches by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		issued, statusChanges, codeCollisions, verifications,
		renderDuration, repairs, quizAttempts, sessionLookups,
		goroutines,
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		issued:          issued,
		statusChanges:   statusChanges,
		codeCollisions:  codeCollisions,
		verifications:   verifications,
		renderDuration:  renderDuration,
		repairs:         repairs,
		quizAttempts:    quizAttempts,
		sessionLookups:  sessionLookups,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

func (m *MetricsService) RecordIssued(method models.CreationMethod) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(string(method)).Inc()
}

func (m *MetricsService) RecordStatusChange(status models.CertificateStatus) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(string(status)).Inc()
}

func (m *MetricsService) RecordCodeCollision() {
	if m == nil {
		return
	}
	m.codeCollisions.Inc()
}

func (m *MetricsService) RecordVerification(outcome models.VerificationOutcome) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(outcome)).Inc()
}

// ObserveRender tracks render latency per output format.
func (m *MetricsService) ObserveRender(format string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(format, resultLabel(ok)).Observe(duration.Seconds())
}

func (m *MetricsService) RecordRepair(ok bool) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *MetricsService) RecordQuizAttempt(passed bool) {
	if m == nil {
		return
	}
	m.quizAttempts.WithLabelValues(fmt.Sprintf("%t", passed)).Inc()
}

// RecordSessionLookup counts quiz session hits and misses.
func (m *MetricsService) RecordSessionLookup(hit bool) {
	if m == nil {
		return
	}
	label := "hit"
	if !hit {
		label = "miss"
	}
	m.sessionLookups.WithLabelValues(label).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
