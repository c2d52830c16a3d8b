package transport

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secchan",
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Noise handshakes by role and result.",
		},
		[]string{"role", "result"},
	)
	handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "secchan",
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Time from the first handshake message to an established session.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role"},
	)
	plaintextBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secchan",
			Subsystem: "conn",
			Name:      "plaintext_bytes_total",
			Help:      "Application bytes moved through established channels.",
		},
		[]string{"direction"},
	)
	wireBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "secchan",
			Subsystem: "conn",
			Name:      "wire_bytes_total",
			Help:      "Bytes read from and written to carriers, framing included.",
		},
		[]string{"direction"},
	)
)

// RegisterMetrics registers the transport collectors with the default
// Prometheus registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(handshakes, handshakeDuration, plaintextBytes, wireBytes)
	})
}

func recordHandshake(role string, err error, duration time.Duration) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	handshakes.WithLabelValues(role, result).Inc()
	if err == nil {
		handshakeDuration.WithLabelValues(role).Observe(duration.Seconds())
	}
}

func recordBytes(direction string, plaintext, wire int) {
	RegisterMetrics()
	if plaintext > 0 {
		plaintextBytes.WithLabelValues(direction).Add(float64(plaintext))
	}
	if wire > 0 {
		wireBytes.WithLabelValues(direction).Add(float64(wire))
	}
}
