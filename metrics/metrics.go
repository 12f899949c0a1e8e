package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	NAMESPACE = "nfcollect"
)

var (
	MetricTrafficBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_traffic_bytes",
			Help:      "Bytes received by the application.",
			Namespace: NAMESPACE,
		},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	MetricTrafficPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_traffic_packets",
			Help:      "Packets received by the application.",
			Namespace: NAMESPACE},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	MetricPacketSizeSum = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:      "flow_traffic_summary_size_bytes",
			Help:      "Summary of packet size.",
			Namespace: NAMESPACE, Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	MetricReceivedDroppedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_dropped_packets",
			Help:      "Packets dropped before processing.",
			Namespace: NAMESPACE},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	MetricReceivedDroppedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_dropped_bytes",
			Help:      "Bytes dropped before processing.",
			Namespace: NAMESPACE},
		[]string{"remote_ip", "local_ip", "local_port"},
	)
	NetFlowStats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_process_nf_count",
			Help:      "NetFlows processed.",
			Namespace: NAMESPACE},
		[]string{"router", "version"},
	)
	NetFlowErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_process_nf_errors_count",
			Help:      "NetFlows processed errors.",
			Namespace: NAMESPACE},
		[]string{"router", "error"},
	)
	NetFlowSetStatsSum = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_process_nf_flowset_sum",
			Help:      "NetFlows FlowSets sum.",
			Namespace: NAMESPACE},
		[]string{"router", "type"}, // template, options_template, reserved, data, unmatched
	)
	NetFlowSetRecordsStatsSum = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_process_nf_flowset_records_sum",
			Help:      "NetFlows FlowSets sum of records.",
			Namespace: NAMESPACE},
		[]string{"router", "type"}, // template, data
	)
	NetFlowTemplatesStats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "flow_process_nf_templates_count",
			Help:      "NetFlows Template count.",
			Namespace: NAMESPACE},
		[]string{"router", "template_id"},
	)
	SinkDatagrams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "sink_datagrams_count",
			Help:      "Datagrams handed to a sink.",
			Namespace: NAMESPACE},
		[]string{"sink"},
	)
	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "sink_errors_count",
			Help:      "Datagrams a sink failed to process.",
			Namespace: NAMESPACE},
		[]string{"sink", "error"},
	)
	NELRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "nel_records_count",
			Help:      "Decoded records by filtering outcome.",
			Namespace: NAMESPACE},
		[]string{"sink", "outcome"},
	)
	BatchBufferSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "nel_batch_buffer_size",
			Help:      "Events waiting in the current batch.",
			Namespace: NAMESPACE},
		[]string{"sink"},
	)
	PoolQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "store_queue_depth",
			Help:      "Batches waiting for a store worker.",
			Namespace: NAMESPACE},
		[]string{"store"},
	)
	PoolBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "store_batches_count",
			Help:      "Batches by status.",
			Namespace: NAMESPACE},
		[]string{"store", "status"}, // submitted, committed, dropped
	)
	PoolRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "store_rows_count",
			Help:      "Rows committed to the store.",
			Namespace: NAMESPACE},
		[]string{"store"},
	)
	PoolWriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "store_write_errors_count",
			Help:      "Failed write or connection attempts.",
			Namespace: NAMESPACE},
		[]string{"store", "stage"}, // connect, write
	)
	PoolWriteTime = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:      "store_write_time_seconds",
			Help:      "Time to commit a batch.",
			Namespace: NAMESPACE, Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"store"},
	)
	MirrorForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "mirror_forwarded_count",
			Help:      "Datagrams forwarded verbatim.",
			Namespace: NAMESPACE},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(MetricTrafficBytes)
	prometheus.MustRegister(MetricTrafficPackets)
	prometheus.MustRegister(MetricPacketSizeSum)
	prometheus.MustRegister(MetricReceivedDroppedPackets)
	prometheus.MustRegister(MetricReceivedDroppedBytes)

	prometheus.MustRegister(NetFlowStats)
	prometheus.MustRegister(NetFlowErrors)
	prometheus.MustRegister(NetFlowSetStatsSum)
	prometheus.MustRegister(NetFlowSetRecordsStatsSum)
	prometheus.MustRegister(NetFlowTemplatesStats)

	prometheus.MustRegister(SinkDatagrams)
	prometheus.MustRegister(SinkErrors)
	prometheus.MustRegister(NELRecords)
	prometheus.MustRegister(BatchBufferSize)

	prometheus.MustRegister(PoolQueueDepth)
	prometheus.MustRegister(PoolBatches)
	prometheus.MustRegister(PoolRows)
	prometheus.MustRegister(PoolWriteErrors)
	prometheus.MustRegister(PoolWriteTime)

	prometheus.MustRegister(MirrorForwarded)
}
