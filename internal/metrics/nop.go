package metrics

// Collector receives engine instrumentation events.
type Collector interface {
	// IncBatchAssigned counts a batch assignment of the given size (zero for empty results).
	IncBatchAssigned(size int)
	// IncSubmission counts a submit outcome ("ok", "quota_exceeded", ...).
	IncSubmission(outcome string)
	// IncNextRecord counts a NextRecord status.
	IncNextRecord(status string)
	// IncLeaseConflict counts a candidate skipped because another user holds its lease.
	IncLeaseConflict()
}

// NopMetrics discards every event.
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

// NewNop returns a collector that records nothing.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (*NopMetrics) IncBatchAssigned(int) {}
func (*NopMetrics) IncSubmission(string) {}
func (*NopMetrics) IncNextRecord(string) {}
func (*NopMetrics) IncLeaseConflict()    {}
