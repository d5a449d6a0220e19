package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rpggio/annotask/internal/repository"
)

const batchSizeKey = "batch_size"

// SettingsRepository implements assignment.Settings for SQLite
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// BatchSize returns the stored batch size, or repository.ErrNotFound if unset.
func (r *SettingsRepository) BatchSize(ctx context.Context) (int, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, batchSizeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read batch size: %w", err)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored batch size %q: %w", value, err)
	}
	return n, nil
}

// SetBatchSize stores the batch size.
func (r *SettingsRepository) SetBatchSize(ctx context.Context, n int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, batchSizeKey, strconv.Itoa(n))
	if err != nil {
		return fmt.Errorf("failed to save batch size: %w", err)
	}
	return nil
}

// EnsureBatchSize seeds the batch size if none is stored and returns the live value.
func (r *SettingsRepository) EnsureBatchSize(ctx context.Context, seed int) (int, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`, batchSizeKey, strconv.Itoa(seed))
	if err != nil {
		return 0, fmt.Errorf("failed to seed batch size: %w", err)
	}
	return r.BatchSize(ctx)
}
