package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/repository"
)

// Store implements assignment.Store on SQLite transactions.
type Store struct {
	db *DB
}

// NewStore creates a new Store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Update runs fn in a transaction and commits if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx assignment.Tx) error) error {
	return s.run(ctx, true, fn)
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx assignment.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) run(ctx context.Context, commit bool, fn func(tx assignment.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetAnnotation(ctx context.Context, recordID string) (*annotation.Annotation, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT record_id, user_id, username, is_correct, correction, created_at
		FROM annotations WHERE record_id = ?
	`, recordID)
	a, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	return a, nil
}

func (t *sqlTx) PutAnnotation(ctx context.Context, a *annotation.Annotation) error {
	var correction sql.NullString
	if a.Correction != nil {
		data, err := json.Marshal(a.Correction)
		if err != nil {
			return fmt.Errorf("failed to encode correction: %w", err)
		}
		correction = sql.NullString{String: string(data), Valid: true}
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO annotations (record_id, user_id, username, is_correct, correction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			is_correct = excluded.is_correct,
			correction = excluded.correction,
			created_at = excluded.created_at
	`, a.RecordID, a.UserID, a.Username, a.IsCorrect, correction, a.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save annotation: %w", err)
	}
	return nil
}

func (t *sqlTx) AnnotationOwners(ctx context.Context) (map[string]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT record_id, user_id FROM annotations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotation owners: %w", err)
	}
	defer rows.Close()

	owners := make(map[string]string)
	for rows.Next() {
		var recordID, userID string
		if err := rows.Scan(&recordID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan annotation owner: %w", err)
		}
		owners[recordID] = userID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return owners, nil
}

func (t *sqlTx) CountAnnotations(ctx context.Context, userID string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return count, nil
}

func (t *sqlTx) ListAnnotations(ctx context.Context) ([]annotation.Annotation, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT record_id, user_id, username, is_correct, correction, created_at
		FROM annotations ORDER BY created_at, record_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var out []annotation.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return out, nil
}

func (t *sqlTx) GetLease(ctx context.Context, recordID string) (*assignment.Lease, error) {
	var (
		lease      assignment.Lease
		acquiredAt int64
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT record_id, user_id, acquired_at FROM leases WHERE record_id = ?
	`, recordID).Scan(&lease.RecordID, &lease.UserID, &acquiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	lease.AcquiredAt = time.Unix(0, acquiredAt)
	return &lease, nil
}

func (t *sqlTx) PutLease(ctx context.Context, lease *assignment.Lease) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO leases (record_id, user_id, acquired_at) VALUES (?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			user_id = excluded.user_id,
			acquired_at = excluded.acquired_at
	`, lease.RecordID, lease.UserID, lease.AcquiredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save lease: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteLease(ctx context.Context, recordID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM leases WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("failed to delete lease: %w", err)
	}
	return nil
}

func (t *sqlTx) ListLeases(ctx context.Context) ([]assignment.Lease, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT record_id, user_id, acquired_at FROM leases`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}
	defer rows.Close()

	var leases []assignment.Lease
	for rows.Next() {
		var (
			lease      assignment.Lease
			acquiredAt int64
		)
		if err := rows.Scan(&lease.RecordID, &lease.UserID, &acquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		lease.AcquiredAt = time.Unix(0, acquiredAt)
		leases = append(leases, lease)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lease rows: %w", err)
	}
	return leases, nil
}

func (t *sqlTx) GetBatch(ctx context.Context, userID string) (*assignment.Batch, error) {
	batch := assignment.Batch{UserID: userID}
	var assignedAt int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, assigned_at FROM batches WHERE user_id = ?
	`, userID).Scan(&batch.ID, &assignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	batch.AssignedAt = time.Unix(0, assignedAt)

	rows, err := t.tx.QueryContext(ctx, `
		SELECT record_id FROM batch_members WHERE user_id = ? ORDER BY position
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID string
		if err := rows.Scan(&recordID); err != nil {
			return nil, fmt.Errorf("failed to scan batch member: %w", err)
		}
		batch.RecordIDs = append(batch.RecordIDs, recordID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch members: %w", err)
	}
	return &batch, nil
}

// PutBatch replaces the user's batch.
func (t *sqlTx) PutBatch(ctx context.Context, b *assignment.Batch) error {
	if err := t.DeleteBatch(ctx, b.UserID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO batches (user_id, id, assigned_at) VALUES (?, ?, ?)
	`, b.UserID, b.ID, b.AssignedAt.UnixNano())
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}

	for i, recordID := range b.RecordIDs {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO batch_members (user_id, position, record_id) VALUES (?, ?, ?)
		`, b.UserID, i, recordID)
		if err != nil {
			return fmt.Errorf("failed to save batch member: %w", err)
		}
	}
	return nil
}

func (t *sqlTx) DeleteBatch(ctx context.Context, userID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM batch_members WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete batch members: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM batches WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row scanner) (*annotation.Annotation, error) {
	var (
		a          annotation.Annotation
		correction sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&a.RecordID, &a.UserID, &a.Username, &a.IsCorrect, &correction, &createdAt); err != nil {
		return nil, err
	}
	a.Timestamp = time.Unix(0, createdAt)
	if correction.Valid {
		var c annotation.Correction
		if err := json.Unmarshal([]byte(correction.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode correction: %w", err)
		}
		a.Correction = &c
	}
	return &a, nil
}
