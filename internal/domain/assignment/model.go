package assignment

import (
	"slices"
	"time"

	"github.com/rpggio/annotask/internal/domain/annotation"
)

// DefaultLockTimeout bounds how long a lease keeps a record away from other users.
const DefaultLockTimeout = 300 * time.Second

// Lease is a time-bounded exclusive claim on a record.
type Lease struct {
	RecordID   string    `json:"record_id"`
	UserID     string    `json:"user_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Active reports whether the lease still excludes other users at now.
func (l Lease) Active(now time.Time, timeout time.Duration) bool {
	return now.Sub(l.AcquiredAt) < timeout
}

// ExpiresAt returns the instant the lease becomes reclaimable.
func (l Lease) ExpiresAt(timeout time.Duration) time.Time {
	return l.AcquiredAt.Add(timeout)
}

// Batch is the fixed, ordered set of records assigned to one user.
type Batch struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	RecordIDs  []string  `json:"record_ids"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Contains reports whether recordID is a member of the batch.
func (b *Batch) Contains(recordID string) bool {
	if b == nil {
		return false
	}
	return slices.Contains(b.RecordIDs, recordID)
}

// NextStatus is the outcome of asking for the next record.
type NextStatus string

const (
	StatusRecord       NextStatus = "record"
	StatusNeedsBatch   NextStatus = "needs_batch"
	StatusLimitReached NextStatus = "limit_reached"
)

// NextResult describes what the caller should present next. RecordID,
// Position, BatchTotal and BatchCompleted are set only for StatusRecord.
type NextResult struct {
	Status         NextStatus `json:"status"`
	RecordID       string     `json:"record_id,omitempty"`
	Position       int        `json:"position,omitempty"`
	BatchTotal     int        `json:"batch_total,omitempty"`
	BatchCompleted int        `json:"batch_completed,omitempty"`
	Count          int        `json:"count"`
}

// AssignRequest asks for a new batch. A positive BatchSize caps the batch
// below the configured size; zero uses the configured size.
type AssignRequest struct {
	UserID    string
	BatchSize int
	RecordIDs []string
}

// SubmitRequest carries an annotator's verdict for one record.
type SubmitRequest struct {
	RecordID   string
	UserID     string
	Username   string
	IsCorrect  bool
	Correction *annotation.Correction
}

// SubmitResult reports the user's quota position after a successful submit.
type SubmitResult struct {
	Count         int  `json:"count"`
	LimitReached  bool `json:"limit_reached"`
	BatchComplete bool `json:"batch_complete"`
}
