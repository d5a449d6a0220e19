package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.IncBatchAssigned(3)
	p.IncBatchAssigned(0)
	p.IncSubmission("ok")
	p.IncSubmission("ok")
	p.IncSubmission("quota_exceeded")
	p.IncNextRecord("record")
	p.IncLeaseConflict()
	p.IncLeaseConflict()

	require.Equal(t, 1.0, testutil.ToFloat64(p.batchesAssigned.WithLabelValues("assigned")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.batchesAssigned.WithLabelValues("empty")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.submissions.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.submissions.WithLabelValues("quota_exceeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.nextRecord.WithLabelValues("record")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.leaseConflicts))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNop(t *testing.T) {
	var c Collector = NewNop()
	c.IncBatchAssigned(1)
	c.IncSubmission("ok")
	c.IncNextRecord("record")
	c.IncLeaseConflict()
}
