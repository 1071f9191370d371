package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meditation_guide_active_sessions",
		Help: "Number of open meditation sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meditation_guide_sessions_total",
		Help: "Total number of meditation sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meditation_guide_session_duration_seconds",
		Help:    "Lifetime of meditation sessions in seconds",
		Buckets: []float64{5, 30, 60, 180, 300, 600, 1200},
	})

	// Script metrics
	scriptRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditation_guide_script_requests_total",
		Help: "Total number of script generation requests",
	}, []string{"status"})

	scriptLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meditation_guide_script_latency_seconds",
		Help:    "Script generation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Speech metrics
	speechRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditation_guide_speech_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"})

	speechLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meditation_guide_speech_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	})

	// Playback metrics
	playbackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditation_guide_playback_transitions_total",
		Help: "Audio playback controller transitions",
	}, []string{"kind"}) // kind: load, start, stop, complete, interrupt, failed

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meditation_guide_decode_errors_total",
		Help: "Audio payloads that could not be decoded",
	})

	audioSamplesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meditation_guide_audio_samples_total",
		Help: "Total PCM samples decoded for playback",
	})

	// Breathing metrics
	breathingPhases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditation_guide_breathing_phases_total",
		Help: "Breathing phases entered",
	}, []string{"phase"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditation_guide_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meditation_guide_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditation_guide_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single meditation session
type Metrics struct {
	sessionID       string
	startTime       time.Time
	scriptStartTime time.Time
	speechStartTime time.Time
	ended           bool
	mu              sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session. Only the first call counts.
func (m *Metrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordScriptStart records the start of script generation
func (m *Metrics) RecordScriptStart() {
	m.mu.Lock()
	m.scriptStartTime = time.Now()
	m.mu.Unlock()
}

// RecordScriptEnd records the end of script generation
func (m *Metrics) RecordScriptEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scriptStartTime.IsZero() {
		scriptLatency.Observe(time.Since(m.scriptStartTime).Seconds())
	}
	scriptRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordSpeechStart records the start of speech synthesis
func (m *Metrics) RecordSpeechStart() {
	m.mu.Lock()
	m.speechStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSpeechEnd records the end of speech synthesis
func (m *Metrics) RecordSpeechEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.speechStartTime.IsZero() {
		speechLatency.Observe(time.Since(m.speechStartTime).Seconds())
	}
	speechRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside of a session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPlaybackTransition counts a playback controller transition
func RecordPlaybackTransition(kind string) {
	playbackTransitions.WithLabelValues(kind).Inc()
}

// RecordDecode records the outcome of decoding an audio payload
func RecordDecode(samples int, err error) {
	if err != nil {
		decodeErrors.Inc()
		return
	}
	audioSamplesDecoded.Add(float64(samples))
}

// RecordBreathingPhase counts a breathing phase entered
func RecordBreathingPhase(phase string) {
	breathingPhases.WithLabelValues(phase).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
