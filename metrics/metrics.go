// Package metrics defines the Prometheus metric types shared across the
// dispatcher and its transports.
//
// When defining new operations or metrics, these are helpful values to track:
//   - things coming into or going out of the node: transfers, frames, datagrams.
//   - the success or error status of any of the above.
//   - the distribution of frame/datagram sizes and service latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NoMatchingSubscriber counts inbound messages dropped because no
	// subscriber is registered for their (port, datatype) pair.
	NoMatchingSubscriber = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uavnode_no_matching_subscriber_total",
			Help: "Inbound messages dropped for lack of a matching subscriber.",
		},
	)

	// PortNotRegistered counts inbound requests to a service port with no
	// handlers.
	PortNotRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uavnode_port_not_registered_total",
			Help: "Inbound requests dropped because the target port has no handlers.",
		},
	)

	// RequestTimeouts counts requests whose deadline fired with no response.
	RequestTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uavnode_request_timeouts_total",
			Help: "Outstanding requests that timed out before a response arrived.",
		},
	)

	// InFlightRequests tracks the current size of the pending-request
	// correlation table.
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uavnode_inflight_requests",
			Help: "Number of requests awaiting a response.",
		},
	)

	// PortTraffic counts PortInfo.Emitted/Received/Errored by direction,
	// mirroring the registry's per-port counters.
	PortTraffic = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uavnode_port_traffic_total",
			Help: "Transfers emitted, received, or errored, by port.",
		}, []string{"port", "direction"})

	// FrameCRCFailures counts serial frames dropped for a header or payload
	// CRC mismatch.
	FrameCRCFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uavnode_serial_frame_crc_failures_total",
			Help: "Serial frames dropped for a CRC mismatch.",
		},
	)

	// SerialQueueOverflows counts transmit-queue evictions on the serial
	// transport.
	SerialQueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uavnode_serial_queue_overflow_total",
			Help: "Serial transmit-queue entries evicted for lack of capacity.",
		},
	)

	// FrameBytesHistogram tracks the size, in bytes, of encoded serial frames
	// (including byte-stuffing).
	FrameBytesHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uavnode_serial_frame_bytes",
			Help:    "Encoded serial frame size distribution (bytes).",
			Buckets: []float64{36, 48, 64, 96, 128, 192, 256, 384, 512, 768, 1024, 1536},
		},
	)

	// DatagramBytesHistogram tracks the size, in bytes, of UDP envelopes sent
	// or received.
	DatagramBytesHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uavnode_udp_datagram_bytes",
			Help:    "UDP envelope size distribution (bytes).",
			Buckets: []float64{24, 32, 48, 64, 96, 128, 192, 256, 384, 512, 768, 1024, 1200},
		},
	)

	// UDPDatagramErrors counts datagrams dropped for being too short to hold
	// the envelope header or for carrying a multi-frame flag.
	UDPDatagramErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uavnode_udp_datagram_errors_total",
			Help: "UDP datagrams dropped, by reason.",
		}, []string{"reason"})

	// LoopIntervalHistogram tracks the interval between Node.Loop calls.
	LoopIntervalHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uavnode_loop_interval_seconds",
			Help:    "Interval between Node.Loop ticks (seconds).",
			Buckets: prometheus.LinearBuckets(0, 0.001, 20),
		},
	)
)

// init logs once at package load so a missing metrics import is easy to
// spot in the startup log.
func init() {
	log.Println("Prometheus metrics in uavnode.metrics are registered.")
}
