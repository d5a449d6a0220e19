package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/annotask/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository_BatchSize(t *testing.T) {
	repo := NewSettingsRepository(NewTestDB(t))
	ctx := context.Background()

	_, err := repo.BatchSize(ctx)
	require.ErrorIs(t, err, repository.ErrNotFound)

	n, err := repo.EnsureBatchSize(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	// Seeding again keeps the stored value.
	require.NoError(t, repo.SetBatchSize(ctx, 3))
	n, err = repo.EnsureBatchSize(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = repo.BatchSize(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
