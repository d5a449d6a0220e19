package annotation

import (
	"time"

	"github.com/rpggio/annotask/internal/domain/catalog"
)

// Correction holds the annotator's edited content. Translation is set for
// legacy records, Conversations for conversation records.
type Correction struct {
	Translation   *string        `json:"edited_translation,omitempty"`
	Conversations []catalog.Turn `json:"edited_conversations,omitempty"`
}

// Annotation is the outcome recorded for one record. At most one exists per record.
type Annotation struct {
	RecordID   string      `json:"record_id"`
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	IsCorrect  bool        `json:"is_correct"`
	Correction *Correction `json:"correction,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Progress summarizes one user's completed annotations against a total.
type Progress struct {
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}
