package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/annotask/internal/domain/activity"
	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/catalog"
	"github.com/rpggio/annotask/internal/metrics"
	"github.com/rpggio/annotask/internal/repository"
)

// Service is the assignment engine. It holds no per-user state; every call is
// one transaction against the store.
type Service struct {
	store       Store
	settings    Settings
	records     RecordLookup
	activities  ActivityLogger
	metrics     metrics.Collector
	logger      *slog.Logger
	clock       func() time.Time
	lockTimeout time.Duration
}

// NewService creates a new assignment engine.
func NewService(store Store, settings Settings, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store:       store,
		settings:    settings,
		metrics:     metrics.NewNop(),
		logger:      logger,
		clock:       time.Now,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockTimeout returns the configured lease duration.
func (s *Service) LockTimeout() time.Duration {
	return s.lockTimeout
}

// NextRecord returns the first record in the user's batch that still needs
// their annotation, or tells the caller to assign a batch or stop.
func (s *Service) NextRecord(ctx context.Context, userID string) (*NextResult, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	size, err := s.BatchSize(ctx)
	if err != nil {
		return nil, err
	}

	var result NextResult
	err = s.store.View(ctx, func(tx Tx) error {
		count, err := tx.CountAnnotations(ctx, userID)
		if err != nil {
			return fmt.Errorf("counting annotations: %w", err)
		}
		result = NextResult{Status: StatusNeedsBatch, Count: count}
		if ReachedLimit(count, size) {
			result.Status = StatusLimitReached
			return nil
		}

		batch, err := getBatch(ctx, tx, userID)
		if err != nil || batch == nil {
			return err
		}
		owners, err := memberOwners(ctx, tx, batch)
		if err != nil {
			return err
		}
		for i, id := range batch.RecordIDs {
			if _, done := owners[id]; done {
				continue
			}
			result = NextResult{
				Status:         StatusRecord,
				RecordID:       id,
				Position:       i + 1,
				BatchTotal:     len(batch.RecordIDs),
				BatchCompleted: completedBy(batch, userID, owners),
				Count:          count,
			}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("next record", err)
	}

	s.metrics.IncNextRecord(string(result.Status))
	return &result, nil
}

// AssignBatch leases up to the user's remaining quota of candidate records in
// catalog order and records them as the user's batch. It returns nil when the
// user is out of quota, still has an unfinished batch, or nothing is available.
// A positive req.BatchSize can only shrink the batch; quota is always checked
// against the configured size.
func (s *Service) AssignBatch(ctx context.Context, req AssignRequest) ([]string, error) {
	if req.UserID == "" {
		return nil, ErrInvalidInput
	}
	if req.BatchSize < 0 {
		return nil, ErrInvalidBatchSize
	}
	size, err := s.BatchSize(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var (
		assigned  *Batch
		conflicts int
	)
	err = s.store.Update(ctx, func(tx Tx) error {
		count, err := tx.CountAnnotations(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("counting annotations: %w", err)
		}
		if ReachedLimit(count, size) {
			return nil
		}

		current, err := getBatch(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if current != nil {
			owners, err := memberOwners(ctx, tx, current)
			if err != nil {
				return err
			}
			if !BatchComplete(current, owners) {
				return nil
			}
		}

		owners, err := tx.AnnotationOwners(ctx)
		if err != nil {
			return fmt.Errorf("loading annotations: %w", err)
		}
		leases, err := tx.ListLeases(ctx)
		if err != nil {
			return fmt.Errorf("loading leases: %w", err)
		}
		blocked := blockedBy(leases, req.UserID, now, s.lockTimeout)

		want := RemainingQuota(count, size)
		if req.BatchSize > 0 {
			want = min(want, req.BatchSize)
		}
		selected := make([]string, 0, want)
		seen := make(map[string]struct{}, want)
		for _, id := range req.RecordIDs {
			if len(selected) == want {
				break
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, annotated := owners[id]; annotated {
				continue
			}
			if _, held := blocked[id]; held {
				conflicts++
				continue
			}
			selected = append(selected, id)
		}
		if len(selected) == 0 {
			return nil
		}

		for _, id := range selected {
			ok, err := acquire(ctx, tx, id, req.UserID, now, s.lockTimeout)
			if err != nil {
				return fmt.Errorf("acquiring lease: %w", err)
			}
			if !ok {
				return fmt.Errorf("lease for %s taken inside transaction", id)
			}
		}

		batch := &Batch{
			ID:         uuid.NewString(),
			UserID:     req.UserID,
			RecordIDs:  selected,
			AssignedAt: now,
		}
		if err := tx.PutBatch(ctx, batch); err != nil {
			return fmt.Errorf("saving batch: %w", err)
		}
		assigned = batch
		return nil
	})
	if err != nil {
		return nil, s.wrap("assign batch", err)
	}

	for range conflicts {
		s.metrics.IncLeaseConflict()
	}
	if assigned == nil {
		s.metrics.IncBatchAssigned(0)
		return nil, nil
	}
	s.metrics.IncBatchAssigned(len(assigned.RecordIDs))
	s.logger.Info("batch assigned", "user_id", req.UserID, "batch_id", assigned.ID, "count", len(assigned.RecordIDs))
	s.logActivity(ctx, &activity.ActivityEntry{
		UserID:       &req.UserID,
		BatchID:      &assigned.ID,
		ActivityType: activity.TypeBatchAssigned,
		Summary:      fmt.Sprintf("assigned %d records to %s", len(assigned.RecordIDs), req.UserID),
	})
	return assigned.RecordIDs, nil
}

// Submit records the user's verdict for a record in their batch. Quota and
// membership are re-checked inside the write transaction.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.RecordID == "" || req.UserID == "" {
		return nil, ErrInvalidInput
	}
	size, err := s.BatchSize(ctx)
	if err != nil {
		return nil, err
	}

	var original catalog.Payload
	if s.records != nil {
		if rec, ok := s.records.Record(req.RecordID); ok {
			original = rec.Payload
		}
	}
	var correction *annotation.Correction
	if !req.IsCorrect {
		correction = annotation.Normalize(req.Correction)
	}

	now := s.clock()
	var result SubmitResult
	err = s.store.Update(ctx, func(tx Tx) error {
		count, err := tx.CountAnnotations(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("counting annotations: %w", err)
		}
		if ReachedLimit(count, size) {
			return ErrQuotaExceeded
		}

		batch, err := getBatch(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if !batch.Contains(req.RecordID) {
			return ErrNotInBatch
		}

		existing, err := tx.GetAnnotation(ctx, req.RecordID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("loading annotation: %w", err)
		}
		if existing != nil && existing.UserID != req.UserID {
			return ErrAlreadyAnnotated
		}

		if !req.IsCorrect {
			if err := annotation.ValidateCorrection(original, correction); err != nil {
				return err
			}
		}

		if err := tx.PutAnnotation(ctx, &annotation.Annotation{
			RecordID:   req.RecordID,
			UserID:     req.UserID,
			Username:   req.Username,
			IsCorrect:  req.IsCorrect,
			Correction: correction,
			Timestamp:  now,
		}); err != nil {
			return fmt.Errorf("saving annotation: %w", err)
		}
		if _, err := release(ctx, tx, req.RecordID, req.UserID); err != nil {
			return fmt.Errorf("releasing lease: %w", err)
		}

		if existing == nil {
			count++
		}
		owners, err := memberOwners(ctx, tx, batch)
		if err != nil {
			return err
		}
		result = SubmitResult{
			Count:         count,
			LimitReached:  ReachedLimit(count, size),
			BatchComplete: BatchComplete(batch, owners),
		}

		if result.LimitReached {
			for _, id := range batch.RecordIDs {
				if _, done := owners[id]; done {
					continue
				}
				if _, err := release(ctx, tx, id, req.UserID); err != nil {
					return fmt.Errorf("releasing lease: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.IncSubmission(outcome(err))
		if isDomainError(err) {
			s.logActivity(ctx, &activity.ActivityEntry{
				UserID:       &req.UserID,
				RecordID:     &req.RecordID,
				ActivityType: activity.TypeSubmissionRejected,
				Summary:      fmt.Sprintf("rejected submission from %s: %v", req.UserID, err),
			})
		}
		return nil, s.wrap("submit annotation", err)
	}

	s.metrics.IncSubmission("ok")
	s.logger.Debug("annotation submitted", "user_id", req.UserID, "record_id", req.RecordID, "count", result.Count)
	s.logActivity(ctx, &activity.ActivityEntry{
		UserID:       &req.UserID,
		RecordID:     &req.RecordID,
		ActivityType: activity.TypeAnnotationSubmitted,
		Summary:      fmt.Sprintf("%s annotated %s (correct=%t)", req.UserID, req.RecordID, req.IsCorrect),
	})
	return &result, nil
}

// AcquireLease claims a record for the user. It returns false when another
// user holds an active lease.
func (s *Service) AcquireLease(ctx context.Context, recordID, userID string) (bool, error) {
	if recordID == "" || userID == "" {
		return false, ErrInvalidInput
	}
	now := s.clock()
	var ok bool
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		ok, err = acquire(ctx, tx, recordID, userID, now, s.lockTimeout)
		return err
	})
	if err != nil {
		return false, s.wrap("acquire lease", err)
	}
	if !ok {
		s.metrics.IncLeaseConflict()
	}
	return ok, nil
}

// ReleaseLease drops the user's lease on a record. Leases held by other users
// are left alone.
func (s *Service) ReleaseLease(ctx context.Context, recordID, userID string) error {
	if recordID == "" || userID == "" {
		return ErrInvalidInput
	}
	var released bool
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		released, err = release(ctx, tx, recordID, userID)
		return err
	})
	if err != nil {
		return s.wrap("release lease", err)
	}
	if released {
		s.logActivity(ctx, &activity.ActivityEntry{
			UserID:       &userID,
			RecordID:     &recordID,
			ActivityType: activity.TypeLeaseReleased,
			Summary:      fmt.Sprintf("%s released %s", userID, recordID),
		})
	}
	return nil
}

// Lease returns the current lease on a record, or nil when there is none.
// Expired leases are returned as stored; check Active.
func (s *Service) Lease(ctx context.Context, recordID string) (*Lease, error) {
	var lease *Lease
	err := s.store.View(ctx, func(tx Tx) error {
		l, err := tx.GetLease(ctx, recordID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		lease = l
		return err
	})
	if err != nil {
		return nil, s.wrap("get lease", err)
	}
	return lease, nil
}

// GetBatch returns the user's current batch, or nil if none was assigned.
func (s *Service) GetBatch(ctx context.Context, userID string) (*Batch, error) {
	var batch *Batch
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		batch, err = getBatch(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, s.wrap("get batch", err)
	}
	return batch, nil
}

// BatchComplete reports whether the user's batch is finished. It is true when
// no batch exists.
func (s *Service) BatchComplete(ctx context.Context, userID string) (bool, error) {
	complete := true
	err := s.store.View(ctx, func(tx Tx) error {
		batch, err := getBatch(ctx, tx, userID)
		if err != nil || batch == nil {
			return err
		}
		owners, err := memberOwners(ctx, tx, batch)
		if err != nil {
			return err
		}
		complete = BatchComplete(batch, owners)
		return nil
	})
	if err != nil {
		return false, s.wrap("batch complete", err)
	}
	return complete, nil
}

// ClearBatch forgets the user's batch and releases the leases they hold on it.
func (s *Service) ClearBatch(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidInput
	}
	var cleared *Batch
	err := s.store.Update(ctx, func(tx Tx) error {
		batch, err := getBatch(ctx, tx, userID)
		if err != nil || batch == nil {
			return err
		}
		for _, id := range batch.RecordIDs {
			if _, err := release(ctx, tx, id, userID); err != nil {
				return fmt.Errorf("releasing lease: %w", err)
			}
		}
		if err := tx.DeleteBatch(ctx, userID); err != nil {
			return fmt.Errorf("deleting batch: %w", err)
		}
		cleared = batch
		return nil
	})
	if err != nil {
		return s.wrap("clear batch", err)
	}
	if cleared != nil {
		s.logActivity(ctx, &activity.ActivityEntry{
			UserID:       &userID,
			BatchID:      &cleared.ID,
			ActivityType: activity.TypeBatchCleared,
			Summary:      fmt.Sprintf("cleared batch of %s", userID),
		})
	}
	return nil
}

// ReachedLimit reports whether the user has used up their quota.
func (s *Service) ReachedLimit(ctx context.Context, userID string) (bool, error) {
	size, err := s.BatchSize(ctx)
	if err != nil {
		return false, err
	}
	count, err := s.AnnotationCount(ctx, userID)
	if err != nil {
		return false, err
	}
	return ReachedLimit(count, size), nil
}

// CanAnnotate reports whether the user may still be offered work.
func (s *Service) CanAnnotate(ctx context.Context, userID string) (bool, error) {
	size, err := s.BatchSize(ctx)
	if err != nil {
		return false, err
	}
	var can bool
	err = s.store.View(ctx, func(tx Tx) error {
		count, err := tx.CountAnnotations(ctx, userID)
		if err != nil {
			return err
		}
		batch, err := getBatch(ctx, tx, userID)
		if err != nil {
			return err
		}
		owners, err := memberOwners(ctx, tx, batch)
		if err != nil {
			return err
		}
		can = CanAnnotate(count, size, batch, owners)
		return nil
	})
	if err != nil {
		return false, s.wrap("can annotate", err)
	}
	return can, nil
}

// AnnotationCount returns the number of distinct records the user annotated.
func (s *Service) AnnotationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		count, err = tx.CountAnnotations(ctx, userID)
		return err
	})
	if err != nil {
		return 0, s.wrap("annotation count", err)
	}
	return count, nil
}

// Progress returns one user's completion against totalRecords.
func (s *Service) Progress(ctx context.Context, userID string, totalRecords int) (annotation.Progress, error) {
	all, err := s.AllUsersProgress(ctx, totalRecords)
	if err != nil {
		return annotation.Progress{}, err
	}
	if p, ok := all[userID]; ok {
		return p, nil
	}
	return annotation.Progress{UserID: userID, Username: userID, Total: totalRecords}, nil
}

// AllUsersProgress returns completion per user who has annotated anything.
func (s *Service) AllUsersProgress(ctx context.Context, totalRecords int) (map[string]annotation.Progress, error) {
	annotations, err := s.Annotations(ctx)
	if err != nil {
		return nil, err
	}

	progress := make(map[string]annotation.Progress)
	for _, a := range annotations {
		p, ok := progress[a.UserID]
		if !ok {
			p = annotation.Progress{UserID: a.UserID, Username: a.Username, Total: totalRecords}
		}
		if p.Username == "" {
			p.Username = a.Username
		}
		p.Completed++
		progress[a.UserID] = p
	}
	for id, p := range progress {
		if p.Username == "" {
			p.Username = id
		}
		p.Percentage = percentage(p.Completed, totalRecords)
		progress[id] = p
	}
	return progress, nil
}

// Annotations returns every stored annotation. It is the read API for export.
func (s *Service) Annotations(ctx context.Context) ([]annotation.Annotation, error) {
	var out []annotation.Annotation
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListAnnotations(ctx)
		return err
	})
	if err != nil {
		return nil, s.wrap("list annotations", err)
	}
	return out, nil
}

// Annotation returns the annotation stored for a record.
func (s *Service) Annotation(ctx context.Context, recordID string) (*annotation.Annotation, error) {
	var out *annotation.Annotation
	err := s.store.View(ctx, func(tx Tx) error {
		a, err := tx.GetAnnotation(ctx, recordID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAnnotationNotFound
		}
		out = a
		return err
	})
	if err != nil {
		return nil, s.wrap("get annotation", err)
	}
	return out, nil
}

// BatchSize reads the live batch size.
func (s *Service) BatchSize(ctx context.Context) (int, error) {
	n, err := s.settings.BatchSize(ctx)
	if err != nil {
		return 0, s.wrap("read batch size", err)
	}
	if n < 1 {
		return 0, ErrInvalidBatchSize
	}
	return n, nil
}

// SetBatchSize changes the batch size for future calls. Existing batches keep
// their membership.
func (s *Service) SetBatchSize(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidBatchSize
	}
	if err := s.settings.SetBatchSize(ctx, n); err != nil {
		return s.wrap("set batch size", err)
	}
	s.logger.Info("batch size changed", "batch_size", n)
	s.logActivity(ctx, &activity.ActivityEntry{
		ActivityType: activity.TypeBatchSizeChanged,
		Summary:      fmt.Sprintf("batch size set to %d", n),
	})
	return nil
}

func (s *Service) wrap(op string, err error) error {
	if isDomainError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	if err := s.activities.LogActivity(ctx, entry); err != nil {
		s.logger.Warn("failed to log activity", "type", entry.ActivityType, "error", err)
	}
}

func getBatch(ctx context.Context, tx Tx, userID string) (*Batch, error) {
	batch, err := tx.GetBatch(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading batch: %w", err)
	}
	return batch, nil
}

// memberOwners maps each annotated member of b to its annotator.
func memberOwners(ctx context.Context, tx Tx, b *Batch) (map[string]string, error) {
	owners := make(map[string]string)
	if b == nil {
		return owners, nil
	}
	for _, id := range b.RecordIDs {
		a, err := tx.GetAnnotation(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading annotation: %w", err)
		}
		owners[id] = a.UserID
	}
	return owners, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrNotInBatch):
		return "not_in_batch"
	case errors.Is(err, ErrAlreadyAnnotated):
		return "already_annotated"
	case errors.Is(err, annotation.ErrEmptyCorrection), errors.Is(err, annotation.ErrShapeMismatch):
		return "invalid_correction"
	default:
		return "error"
	}
}

func percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
