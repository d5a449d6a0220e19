package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReachedLimit(t *testing.T) {
	require.False(t, ReachedLimit(0, 2))
	require.False(t, ReachedLimit(1, 2))
	require.True(t, ReachedLimit(2, 2))
	require.True(t, ReachedLimit(3, 2))
}

func TestRemainingQuota(t *testing.T) {
	require.Equal(t, 10, RemainingQuota(0, 10))
	require.Equal(t, 3, RemainingQuota(7, 10))
	require.Equal(t, 0, RemainingQuota(10, 10))
	require.Equal(t, 0, RemainingQuota(12, 10))
}

func TestBatchComplete(t *testing.T) {
	b := &Batch{UserID: "u1", RecordIDs: []string{"r1", "r2"}}

	require.True(t, BatchComplete(nil, nil))
	require.True(t, BatchComplete(&Batch{}, nil))
	require.False(t, BatchComplete(b, map[string]string{"r1": "u1"}))
	require.True(t, BatchComplete(b, map[string]string{"r1": "u1", "r2": "u1"}))
	// A member annotated by someone else is settled.
	require.True(t, BatchComplete(b, map[string]string{"r1": "u1", "r2": "u2"}))
}

func TestCanAnnotate(t *testing.T) {
	b := &Batch{UserID: "u1", RecordIDs: []string{"r1", "r2"}}

	require.True(t, CanAnnotate(0, 2, nil, nil))
	require.True(t, CanAnnotate(0, 2, b, nil))
	require.False(t, CanAnnotate(2, 2, b, nil))
	require.False(t, CanAnnotate(1, 3, b, map[string]string{"r1": "u1", "r2": "u2"}))
}

func TestCompletedBy(t *testing.T) {
	b := &Batch{UserID: "u1", RecordIDs: []string{"r1", "r2", "r3"}}
	owners := map[string]string{"r1": "u1", "r2": "u2", "r3": "u1"}
	require.Equal(t, 2, completedBy(b, "u1", owners))
	require.Equal(t, 0, completedBy(nil, "u1", owners))
}

func TestBlockedBy(t *testing.T) {
	now := time.Unix(1700000000, 0)
	leases := []Lease{
		{RecordID: "r1", UserID: "u1", AcquiredAt: now.Add(-time.Minute)},
		{RecordID: "r2", UserID: "u2", AcquiredAt: now.Add(-time.Minute)},
		{RecordID: "r3", UserID: "u2", AcquiredAt: now.Add(-DefaultLockTimeout)},
	}
	blocked := blockedBy(leases, "u1", now, DefaultLockTimeout)
	require.Len(t, blocked, 1)
	require.Contains(t, blocked, "r2")
}

func TestLeaseActive(t *testing.T) {
	acquired := time.Unix(1700000000, 0)
	l := Lease{RecordID: "r1", UserID: "u1", AcquiredAt: acquired}

	require.True(t, l.Active(acquired.Add(299*time.Second), DefaultLockTimeout))
	require.False(t, l.Active(acquired.Add(300*time.Second), DefaultLockTimeout))
	require.Equal(t, acquired.Add(300*time.Second), l.ExpiresAt(DefaultLockTimeout))
}

func TestBatchContains(t *testing.T) {
	var nilBatch *Batch
	require.False(t, nilBatch.Contains("r1"))
	b := &Batch{RecordIDs: []string{"r1"}}
	require.True(t, b.Contains("r1"))
	require.False(t, b.Contains("r2"))
}
