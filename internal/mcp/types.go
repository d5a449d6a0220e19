package mcp

import (
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/catalog"
)

type UserParams struct {
	UserID string `json:"user_id" jsonschema:"stable identifier of the annotator"`
}

type AssignBatchParams struct {
	UserID    string `json:"user_id" jsonschema:"stable identifier of the annotator"`
	BatchSize int    `json:"batch_size,omitempty" jsonschema:"optional cap below the configured batch size"`
}

type SubmitAnnotationParams struct {
	UserID              string         `json:"user_id" jsonschema:"stable identifier of the annotator"`
	Username            string         `json:"username,omitempty" jsonschema:"display name stored with the annotation"`
	RecordID            string         `json:"record_id" jsonschema:"record returned by next_record"`
	IsCorrect           bool           `json:"is_correct" jsonschema:"true if the record needs no change"`
	EditedTranslation   *string        `json:"edited_translation,omitempty" jsonschema:"corrected translation for legacy records"`
	EditedConversations []catalog.Turn `json:"edited_conversations,omitempty" jsonschema:"corrected turns for conversation records"`
}

type ProgressParams struct{}

type NextRecordResponse struct {
	Status         string         `json:"status"`
	RecordID       string         `json:"record_id,omitempty"`
	Position       int            `json:"position,omitempty"`
	BatchTotal     int            `json:"batch_total,omitempty"`
	BatchCompleted int            `json:"batch_completed,omitempty"`
	Count          int            `json:"count"`
	Record         map[string]any `json:"record,omitempty"`
}

type AssignBatchResponse struct {
	Assigned []string `json:"assigned"`
}

type SubmitAnnotationResponse struct {
	Status        string    `json:"status"`
	Count         int       `json:"count,omitempty"`
	LimitReached  bool      `json:"limit_reached,omitempty"`
	BatchComplete bool      `json:"batch_complete,omitempty"`
	Error         *APIError `json:"error,omitempty"`
}

type AnnotationCountResponse struct {
	Count        int  `json:"count"`
	BatchSize    int  `json:"batch_size"`
	LimitReached bool `json:"limit_reached"`
}

type ProgressResponse struct {
	TotalRecords int                   `json:"total_records"`
	Users        []annotation.Progress `json:"users"`
}
