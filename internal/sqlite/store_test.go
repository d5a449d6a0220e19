package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestStore_AnnotationRoundTrip(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()
	ts := time.Unix(1700000000, 123)
	edited := "Mi go haus"

	err := store.Update(ctx, func(tx assignment.Tx) error {
		if err := tx.PutAnnotation(ctx, &annotation.Annotation{
			RecordID: "r1", UserID: "u1", Username: "alice", IsCorrect: true, Timestamp: ts,
		}); err != nil {
			return err
		}
		return tx.PutAnnotation(ctx, &annotation.Annotation{
			RecordID: "r2", UserID: "u1", Username: "alice", IsCorrect: false,
			Correction: &annotation.Correction{Translation: &edited},
			Timestamp:  ts.Add(time.Second),
		})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx assignment.Tx) error {
		a, err := tx.GetAnnotation(ctx, "r2")
		require.NoError(t, err)
		require.False(t, a.IsCorrect)
		require.NotNil(t, a.Correction)
		require.Equal(t, edited, *a.Correction.Translation)
		require.Equal(t, ts.Add(time.Second).UnixNano(), a.Timestamp.UnixNano())

		_, err = tx.GetAnnotation(ctx, "missing")
		require.ErrorIs(t, err, repository.ErrNotFound)

		count, err := tx.CountAnnotations(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, 2, count)

		owners, err := tx.AnnotationOwners(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"r1": "u1", "r2": "u1"}, owners)

		list, err := tx.ListAnnotations(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "r1", list[0].RecordID)
		require.True(t, list[0].IsCorrect)
		require.Nil(t, list[0].Correction)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx assignment.Tx) error {
		require.NoError(t, tx.PutLease(ctx, &assignment.Lease{RecordID: "r1", UserID: "u1", AcquiredAt: time.Now()}))
		require.NoError(t, tx.PutBatch(ctx, &assignment.Batch{ID: "b1", UserID: "u1", RecordIDs: []string{"r1"}, AssignedAt: time.Now()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.View(ctx, func(tx assignment.Tx) error {
		_, err := tx.GetLease(ctx, "r1")
		require.ErrorIs(t, err, repository.ErrNotFound)
		_, err = tx.GetBatch(ctx, "u1")
		require.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_PanicReleasesConnection(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()

	require.Panics(t, func() {
		_ = store.Update(ctx, func(tx assignment.Tx) error {
			require.NoError(t, tx.PutLease(ctx, &assignment.Lease{RecordID: "r1", UserID: "u1", AcquiredAt: time.Now()}))
			panic("boom")
		})
	})

	viewCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := store.View(viewCtx, func(tx assignment.Tx) error {
		_, err := tx.GetLease(viewCtx, "r1")
		require.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_ViewDiscardsWrites(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.View(ctx, func(tx assignment.Tx) error {
		return tx.PutLease(ctx, &assignment.Lease{RecordID: "r1", UserID: "u1", AcquiredAt: time.Now()})
	}))
	require.NoError(t, store.View(ctx, func(tx assignment.Tx) error {
		leases, err := tx.ListLeases(ctx)
		require.NoError(t, err)
		require.Empty(t, leases)
		return nil
	}))
}

func TestStore_Leases(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, store.Update(ctx, func(tx assignment.Tx) error {
		require.NoError(t, tx.PutLease(ctx, &assignment.Lease{RecordID: "r1", UserID: "u1", AcquiredAt: now}))
		require.NoError(t, tx.PutLease(ctx, &assignment.Lease{RecordID: "r2", UserID: "u1", AcquiredAt: now}))
		// Overwrite keeps one row per record.
		require.NoError(t, tx.PutLease(ctx, &assignment.Lease{RecordID: "r1", UserID: "u2", AcquiredAt: now.Add(time.Minute)}))
		return tx.DeleteLease(ctx, "r2")
	}))

	require.NoError(t, store.View(ctx, func(tx assignment.Tx) error {
		lease, err := tx.GetLease(ctx, "r1")
		require.NoError(t, err)
		require.Equal(t, "u2", lease.UserID)
		require.True(t, lease.AcquiredAt.Equal(now.Add(time.Minute)))

		leases, err := tx.ListLeases(ctx)
		require.NoError(t, err)
		require.Len(t, leases, 1)
		return nil
	}))
}

func TestStore_Batches(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, store.Update(ctx, func(tx assignment.Tx) error {
		return tx.PutBatch(ctx, &assignment.Batch{ID: "b1", UserID: "u1", RecordIDs: []string{"r3", "r1", "r2"}, AssignedAt: now})
	}))
	require.NoError(t, store.View(ctx, func(tx assignment.Tx) error {
		b, err := tx.GetBatch(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "b1", b.ID)
		require.Equal(t, []string{"r3", "r1", "r2"}, b.RecordIDs)
		return nil
	}))

	// Replacing a batch drops the previous membership.
	require.NoError(t, store.Update(ctx, func(tx assignment.Tx) error {
		return tx.PutBatch(ctx, &assignment.Batch{ID: "b2", UserID: "u1", RecordIDs: []string{"r4"}, AssignedAt: now})
	}))
	require.NoError(t, store.View(ctx, func(tx assignment.Tx) error {
		b, err := tx.GetBatch(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, []string{"r4"}, b.RecordIDs)
		return nil
	}))

	require.NoError(t, store.Update(ctx, func(tx assignment.Tx) error {
		return tx.DeleteBatch(ctx, "u1")
	}))
	require.NoError(t, store.View(ctx, func(tx assignment.Tx) error {
		_, err := tx.GetBatch(ctx, "u1")
		require.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	}))
}

func TestStore_DuplicateBatchID(t *testing.T) {
	store := NewStore(NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx assignment.Tx) error {
		return tx.PutBatch(ctx, &assignment.Batch{ID: "b1", UserID: "u1", RecordIDs: []string{"r1"}, AssignedAt: time.Now()})
	}))
	err := store.Update(ctx, func(tx assignment.Tx) error {
		return tx.PutBatch(ctx, &assignment.Batch{ID: "b1", UserID: "u2", RecordIDs: []string{"r2"}, AssignedAt: time.Now()})
	})
	require.ErrorIs(t, err, repository.ErrConflict)
}
