package restore

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records restore progress. A nil *Metrics records nothing.
type Metrics struct {
	applied       *prometheus.CounterVec
	postponed     *prometheus.CounterVec
	onlineOffsets *prometheus.GaugeVec
	syncFailures  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wee_restore_records_applied_total",
			Help: "Total number of restored records per strategy",
		}, []string{"strategy"}),

		postponed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wee_restore_records_postponed_total",
			Help: "Total number of records postponed because the online service is behind",
		}, []string{"topic"}),

		onlineOffsets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wee_restore_online_committed_offset",
			Help: "Committed offset of the online consumer group",
		}, []string{"topic", "partition"}),

		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wee_restore_offset_sync_failures_total",
			Help: "Total number of failed offset synchronizations",
		}),
	}

	reg.MustRegister(m.applied, m.postponed, m.onlineOffsets, m.syncFailures)

	return m
}

func (m *Metrics) recordApplied(strategy string) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(strategy).Inc()
}

func (m *Metrics) recordPostponed(topic string) {
	if m == nil {
		return
	}
	m.postponed.WithLabelValues(topic).Inc()
}

func (m *Metrics) recordOffsets(offsets TopicPartitionOffsets) {
	if m == nil {
		return
	}
	for topic, partitions := range offsets {
		for partition, offset := range partitions {
			m.onlineOffsets.WithLabelValues(topic, strconv.Itoa(int(partition))).Set(float64(offset))
		}
	}
}

func (m *Metrics) recordSyncFailure() {
	if m == nil {
		return
	}
	m.syncFailures.Inc()
}
