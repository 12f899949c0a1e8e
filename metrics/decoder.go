package metrics

import (
	"errors"
	"strconv"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/producer/nel"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordParse accounts for one parsed datagram from router.
func RecordParse(router string, records *netflow.Records) {
	if records.Mismatched() {
		NetFlowErrors.With(
			prometheus.Labels{
				"router": router,
				"error":  "error_version",
			}).
			Inc()
		return
	}
	NetFlowStats.With(
		prometheus.Labels{
			"router":  router,
			"version": strconv.Itoa(int(records.Header().Version)),
		}).
		Inc()

	stats := records.Stats()
	for typ, count := range map[string]int{
		"template":         stats.TemplateSets,
		"options_template": stats.OptionsTemplateSets,
		"reserved":         stats.ReservedSets,
		"data":             stats.DataSets,
		"unmatched":        stats.UnmatchedSets,
	} {
		if count == 0 {
			continue
		}
		NetFlowSetStatsSum.With(
			prometheus.Labels{
				"router": router,
				"type":   typ,
			}).
			Add(float64(count))
	}
	if stats.Templates > 0 {
		NetFlowSetRecordsStatsSum.With(prometheus.Labels{"router": router, "type": "template"}).Add(float64(stats.Templates))
	}
	if stats.Records > 0 {
		NetFlowSetRecordsStatsSum.With(prometheus.Labels{"router": router, "type": "data"}).Add(float64(stats.Records))
	}

	if err := records.Err(); err != nil {
		label := "error_decoding"
		if errors.Is(err, netflow.ErrTruncated) {
			label = "error_truncated"
		} else if errors.Is(err, netflow.ErrMalformed) {
			label = "error_malformed"
		}
		NetFlowErrors.With(
			prometheus.Labels{
				"router": router,
				"error":  label,
			}).
			Inc()
	}
}

// RecordOutcome counts the filtering outcome of a decoded record.
func RecordOutcome(sink string, outcome nel.Outcome) {
	NELRecords.With(
		prometheus.Labels{
			"sink":    sink,
			"outcome": outcome.String(),
		}).
		Inc()
}
