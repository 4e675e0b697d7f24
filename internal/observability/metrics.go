package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ask metrics
	questionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_questions_total",
		Help: "Total number of questions sent to the answering service",
	}, []string{"status"})

	askLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "helpdesk_ask_latency_seconds",
		Help:    "Latency of POST /ask round trips in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Voice metrics
	voiceCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_voice_captures_total",
		Help: "Push-to-talk captures by outcome",
	}, []string{"outcome"}) // outcome: "transcript", "no_speech", "error"

	speechSyntheses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_speech_syntheses_total",
		Help: "Speech synthesis requests by status",
	}, []string{"status"})

	speechLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helpdesk_speech_latency_seconds",
		Help:    "Speech provider latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	}, []string{"kind"}) // kind: "asr" or "tts"

	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "helpdesk_active_sessions",
		Help: "Number of connected chat sessions",
	})
)

// Metric label values.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusError    = "error"

	OutcomeTranscript = "transcript"
	OutcomeNoSpeech   = "no_speech"
	OutcomeError      = "error"
)

// RecordQuestion 记录一次 /ask 请求。
func RecordQuestion(status string, latency time.Duration) {
	questionsTotal.WithLabelValues(status).Inc()
	askLatency.Observe(latency.Seconds())
}

// RecordVoiceCapture 记录一次按键说话的结果。
func RecordVoiceCapture(outcome string) {
	voiceCaptures.WithLabelValues(outcome).Inc()
}

// RecordSynthesis records one text-to-speech request.
func RecordSynthesis(status string, latency time.Duration) {
	speechSyntheses.WithLabelValues(status).Inc()
	speechLatency.WithLabelValues("tts").Observe(latency.Seconds())
}

// RecordRecognition records one speech-to-text round trip.
func RecordRecognition(latency time.Duration) {
	speechLatency.WithLabelValues("asr").Observe(latency.Seconds())
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	activeSessions.Dec()
}
