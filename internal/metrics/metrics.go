// Package metrics provides Prometheus metrics for ICMP echo exchanges.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "metroo_ping"
)

// Discard reasons recorded when the receive loop skips a datagram.
const (
	DiscardNotICMP            = "not_icmp"
	DiscardNotEchoReply       = "not_echo_reply"
	DiscardIdentifierMismatch = "identifier_mismatch"
)

// Metrics contains all Prometheus metrics for echo exchanges.
type Metrics struct {
	ExchangesActive  prometheus.Gauge
	RequestsSent     *prometheus.CounterVec
	RepliesReceived  *prometheus.CounterVec
	PacketsDiscarded *prometheus.CounterVec
	Timeouts         prometheus.Counter
	Errors           *prometheus.CounterVec
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	RTT              prometheus.Histogram
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the metrics instance registered with the default registry.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a Metrics instance registered with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ExchangesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exchanges_active",
			Help:      "Number of echo exchanges currently waiting for a reply",
		}),
		RequestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_requests_sent_total",
			Help:      "Total echo requests sent by ICMP variant",
		}, []string{"variant"}),
		RepliesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_replies_received_total",
			Help:      "Total matching echo replies by ICMP variant",
		}, []string{"variant"}),
		PacketsDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_discarded_total",
			Help:      "Datagrams skipped while waiting for a reply, by reason",
		}, []string{"reason"}),
		Timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeouts_total",
			Help:      "Total exchanges that ran out of time budget",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total failed exchanges by error type",
		}, []string{"error_type"}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total ICMP bytes sent",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes read from ICMP sockets",
		}),
		RTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Histogram of echo round-trip time",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}

// RecordSent records an echo request leaving the socket.
func (m *Metrics) RecordSent(variant string, bytes int) {
	m.ExchangesActive.Inc()
	m.RequestsSent.WithLabelValues(variant).Inc()
	m.BytesSent.Add(float64(bytes))
}

// RecordReceived records a datagram read from the socket.
func (m *Metrics) RecordReceived(bytes int) {
	m.BytesReceived.Add(float64(bytes))
}

// RecordReply records a matching reply and ends the exchange.
func (m *Metrics) RecordReply(variant string, rttSeconds float64) {
	m.ExchangesActive.Dec()
	m.RepliesReceived.WithLabelValues(variant).Inc()
	m.RTT.Observe(rttSeconds)
}

// RecordDiscard records a datagram skipped by the receive loop.
func (m *Metrics) RecordDiscard(reason string) {
	m.PacketsDiscarded.WithLabelValues(reason).Inc()
}

// RecordTimeout records an exchange that ran out of budget after sending.
func (m *Metrics) RecordTimeout() {
	m.ExchangesActive.Dec()
	m.Timeouts.Inc()
}

// RecordError records a failed exchange. sent reports whether the request had
// already been sent, so the active gauge is only decremented for exchanges
// that incremented it.
func (m *Metrics) RecordError(errorType string, sent bool) {
	if sent {
		m.ExchangesActive.Dec()
	}
	m.Errors.WithLabelValues(errorType).Inc()
}
