// Package metrics exposes Prometheus instrumentation for the SignBridge
// backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors. Collectors self-register via promauto, so
// construct at most one Metrics per process.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	SessionsTotal  prometheus.Counter

	FramesProcessed   prometheus.Counter
	HandsDetected     prometheus.Counter
	FrameErrors       prometheus.Counter
	DetectionDuration prometheus.Histogram
	CommitsTotal      *prometheus.CounterVec

	AudioChunks           prometheus.Counter
	SpeechFinals          prometheus.Counter
	Transcriptions        prometheus.Counter
	TranscriptionErrors   prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	DecodeErrors          prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signbridge_active_sessions",
			Help: "Current number of open WebSocket sessions",
		}),
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_sessions_total",
			Help: "Total number of WebSocket sessions served",
		}),

		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_frames_processed_total",
			Help: "Total number of camera frames classified",
		}),
		HandsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_hands_detected_total",
			Help: "Total number of frames with a detected hand",
		}),
		FrameErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_frame_errors_total",
			Help: "Total number of frames that failed to decode or detect",
		}),
		DetectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "signbridge_detection_duration_seconds",
			Help:    "Time spent on landmark detection plus classification",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		CommitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signbridge_commits_total",
			Help: "Total number of committed gesture tokens",
		}, []string{"token"}),

		AudioChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_audio_chunks_total",
			Help: "Total number of streaming audio chunks consumed",
		}),
		SpeechFinals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_speech_finals_total",
			Help: "Total number of finalized streaming utterances",
		}),
		Transcriptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_transcriptions_total",
			Help: "Total number of one-shot file transcriptions",
		}),
		TranscriptionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_transcription_errors_total",
			Help: "Total number of failed one-shot transcriptions",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "signbridge_transcription_duration_seconds",
			Help:    "Duration of one-shot file transcriptions",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signbridge_audio_decode_errors_total",
			Help: "Total number of failed external audio decodes",
		}),
	}
}

// RecordFrame records one classified frame.
func (m *Metrics) RecordFrame(handDetected bool, seconds float64) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	if handDetected {
		m.HandsDetected.Inc()
	}
	m.DetectionDuration.Observe(seconds)
}

// RecordCommit records a committed token.
func (m *Metrics) RecordCommit(token string) {
	if m == nil {
		return
	}
	m.CommitsTotal.WithLabelValues(token).Inc()
}
