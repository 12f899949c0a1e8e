package metrics

import (
	"net/netip"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ReceiverMetric records traffic and drop metrics for the UDP receivers.
type ReceiverMetric struct{}

// NewReceiverMetric creates a ReceiverMetric instance.
func NewReceiverMetric() *ReceiverMetric {
	return &ReceiverMetric{}
}

func receiverLabels(src, dst netip.AddrPort) prometheus.Labels {
	return prometheus.Labels{
		"remote_ip":  src.Addr().Unmap().String(),
		"local_ip":   dst.Addr().Unmap().String(),
		"local_port": strconv.FormatUint(uint64(dst.Port()), 10),
	}
}

// Received records an accepted datagram.
func (r *ReceiverMetric) Received(src, dst netip.AddrPort, size int) {
	labels := receiverLabels(src, dst)
	MetricTrafficBytes.With(labels).Add(float64(size))
	MetricTrafficPackets.With(labels).Inc()
	MetricPacketSizeSum.With(labels).Observe(float64(size))
}

// Dropped records a datagram dropped because the dispatch queue was full.
func (r *ReceiverMetric) Dropped(src, dst netip.AddrPort, size int) {
	labels := receiverLabels(src, dst)
	MetricReceivedDroppedPackets.With(labels).Inc()
	MetricReceivedDroppedBytes.With(labels).Add(float64(size))
}
