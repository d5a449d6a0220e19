package activity

import "time"

// ActivityType represents the type of engine event
type ActivityType string

const (
	TypeBatchAssigned       ActivityType = "batch_assigned"
	TypeBatchCleared        ActivityType = "batch_cleared"
	TypeAnnotationSubmitted ActivityType = "annotation_submitted"
	TypeSubmissionRejected  ActivityType = "submission_rejected"
	TypeLeaseReleased       ActivityType = "lease_released"
	TypeBatchSizeChanged    ActivityType = "batch_size_changed"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	UserID       *string      `json:"user_id,omitempty"`
	RecordID     *string      `json:"record_id,omitempty"`
	BatchID      *string      `json:"batch_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
