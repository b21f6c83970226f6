package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for Requests.
const (
	OutcomeFull         = "full"
	OutcomePartial      = "partial"
	OutcomeNotFound     = "not_found"
	OutcomeUnsatisfied  = "range_not_satisfiable"
	OutcomeError        = "error"
	OutcomeAborted      = "aborted"
	OutcomeDisconnected = "client_disconnected"
)

var (
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_requests_total",
			Help: "Total number of media stream requests by outcome",
		},
		[]string{"outcome"},
	)
	BytesStreamed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediastream_bytes_streamed_total",
			Help: "Total number of media bytes read from storage for clients",
		},
	)
	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediastream_active_streams",
			Help: "Number of streams currently holding an open read handle",
		},
	)
	StreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastream_stream_errors_total",
			Help: "Total number of streams aborted after headers were sent",
		},
		[]string{"kind"},
	)
	WindowBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediastream_window_bytes",
			Help:    "Size of the byte window served per response",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(BytesStreamed)
	prometheus.MustRegister(ActiveStreams)
	prometheus.MustRegister(StreamErrors)
	prometheus.MustRegister(WindowBytes)
}
