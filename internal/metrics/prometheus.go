package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	batchesAssigned *prometheus.CounterVec
	batchSize       prometheus.Histogram
	submissions     *prometheus.CounterVec
	nextRecord      *prometheus.CounterVec
	leaseConflicts  prometheus.Counter
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates a Prometheus-backed collector.
// A nil registerer falls back to prometheus.DefaultRegisterer and an empty
// namespace to "annotask". Metrics are registered on first use.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "annotask"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.batchesAssigned = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "batches_total",
			Help:      "Batch assignment calls by result (assigned, empty).",
		}, []string{"result"})

		p.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "batch_size_records",
			Help:      "Number of records in non-empty assigned batches.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 .. 128
		})

		p.submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "annotation",
			Name:      "submissions_total",
			Help:      "Annotation submissions by outcome.",
		}, []string{"outcome"})

		p.nextRecord = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "next_record_total",
			Help:      "NextRecord calls by returned status.",
		}, []string{"status"})

		p.leaseConflicts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "conflicts_total",
			Help:      "Candidates skipped because another user holds an active lease.",
		})

		p.reg.MustRegister(p.batchesAssigned)
		p.reg.MustRegister(p.batchSize)
		p.reg.MustRegister(p.submissions)
		p.reg.MustRegister(p.nextRecord)
		p.reg.MustRegister(p.leaseConflicts)
	})
}

// IncBatchAssigned implements Collector.
func (p *PrometheusCollector) IncBatchAssigned(size int) {
	p.ensureRegistered()
	if size == 0 {
		p.batchesAssigned.WithLabelValues("empty").Inc()
		return
	}
	p.batchesAssigned.WithLabelValues("assigned").Inc()
	p.batchSize.Observe(float64(size))
}

// IncSubmission implements Collector.
func (p *PrometheusCollector) IncSubmission(outcome string) {
	p.ensureRegistered()
	p.submissions.WithLabelValues(outcome).Inc()
}

// IncNextRecord implements Collector.
func (p *PrometheusCollector) IncNextRecord(status string) {
	p.ensureRegistered()
	p.nextRecord.WithLabelValues(status).Inc()
}

// IncLeaseConflict implements Collector.
func (p *PrometheusCollector) IncLeaseConflict() {
	p.ensureRegistered()
	p.leaseConflicts.Inc()
}
