package assignment

import (
	"context"

	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/catalog"
)

// Tx is a read-check-write view over the annotation, lease and batch tables.
// Lookups of missing rows return repository.ErrNotFound.
type Tx interface {
	GetAnnotation(ctx context.Context, recordID string) (*annotation.Annotation, error)
	PutAnnotation(ctx context.Context, a *annotation.Annotation) error
	// AnnotationOwners maps every annotated record id to its annotator's user id.
	AnnotationOwners(ctx context.Context) (map[string]string, error)
	CountAnnotations(ctx context.Context, userID string) (int, error)
	ListAnnotations(ctx context.Context) ([]annotation.Annotation, error)

	GetLease(ctx context.Context, recordID string) (*Lease, error)
	PutLease(ctx context.Context, lease *Lease) error
	DeleteLease(ctx context.Context, recordID string) error
	ListLeases(ctx context.Context) ([]Lease, error)

	GetBatch(ctx context.Context, userID string) (*Batch, error)
	PutBatch(ctx context.Context, b *Batch) error
	DeleteBatch(ctx context.Context, userID string) error
}

// Store runs transactions. Update commits all writes made by fn or none of
// them; concurrent Update calls are serialized. An error returned by fn is
// returned unchanged after rollback.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Settings provides the live batch size.
type Settings interface {
	BatchSize(ctx context.Context) (int, error)
	SetBatchSize(ctx context.Context, n int) error
}

// RecordLookup resolves original record content for correction checks.
type RecordLookup interface {
	Record(id string) (catalog.Record, bool)
}

// ActivityLogger receives audit events after commit.
type ActivityLogger interface {
	LogActivity(ctx context.Context, entry *activity.ActivityEntry) error
}
