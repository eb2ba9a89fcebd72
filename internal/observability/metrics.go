package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_engine_active_sessions",
		Help: "Number of active interview sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_engine_sessions_total",
		Help: "Total number of interview sessions processed",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_engine_session_duration_seconds",
		Help:    "Duration of interview sessions in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
	})

	questionsAsked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_engine_questions_asked_total",
		Help: "Total number of interview questions played to candidates",
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_synthesis_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"}) // status: success, fallback, error

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_engine_synthesis_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_transcription_requests_total",
		Help: "Total number of answer transcription requests",
	}, []string{"status"})

	// Realtime session metrics
	realtimeTurnEnds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_realtime_turn_ends_total",
		Help: "Total end-of-turn signals sent to the realtime session",
	}, []string{"trigger"}) // trigger: silence, explicit

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_engine_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_engine_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// Metrics tracks metrics for a single interview session
type Metrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of an interview session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of an interview session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordQuestionAsked records a question played to the candidate
func (m *Metrics) RecordQuestionAsked() {
	questionsAsked.Inc()
}

// RecordTranscription records an answer transcription outcome
func (m *Metrics) RecordTranscription(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordAudioBytes records audio bytes processed outside a session tracker
func RecordAudioBytes(direction string, bytes int) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordSynthesisResult records the outcome of one synthesis attempt.
// Status is "success", "fallback" or "error".
func RecordSynthesisResult(status string) {
	synthesisRequests.WithLabelValues(status).Inc()
}

// ObserveSynthesisLatency records the round-trip time of one synthesis request
func ObserveSynthesisLatency(d time.Duration) {
	synthesisLatency.Observe(d.Seconds())
}

// RecordRealtimeTurnEnd records an end-of-turn signal to the realtime session.
// Trigger is "silence" or "explicit".
func RecordRealtimeTurnEnd(trigger string) {
	realtimeTurnEnds.WithLabelValues(trigger).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
