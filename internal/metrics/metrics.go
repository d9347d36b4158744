package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the client-side counters exposed on /metrics.
type Metrics struct {
	ChunksSent    prometheus.Counter
	ChunksDropped prometheus.Counter
	Disconnects   *prometheus.CounterVec
	MessagesIn    *prometheus.CounterVec
	Advisories    prometheus.Counter
}

// New registers the counters on the given registry
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "sori_audio_chunks_sent_total",
			Help: "Streaming audio chunks accepted for transmission.",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sori_audio_chunks_dropped_total",
			Help: "Audio frames dropped by size validation before send.",
		}),
		Disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sori_channel_disconnects_total",
			Help: "Socket closures observed per channel.",
		}, []string{"channel"}),
		MessagesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sori_messages_in_total",
			Help: "Inbound messages per channel and type.",
		}, []string{"channel", "type"}),
		Advisories: factory.NewCounter(prometheus.CounterOpts{
			Name: "sori_advisories_total",
			Help: "Low-confidence and connectivity advisories surfaced to the user.",
		}),
	}
}
