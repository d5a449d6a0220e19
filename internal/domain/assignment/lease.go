package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/rpggio/annotask/internal/repository"
)

// acquire claims recordID for userID. It fails only when another user holds
// an active lease; an expired or own lease is overwritten with acquired_at = now.
func acquire(ctx context.Context, tx Tx, recordID, userID string, now time.Time, timeout time.Duration) (bool, error) {
	current, err := tx.GetLease(ctx, recordID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if current != nil && current.UserID != userID && current.Active(now, timeout) {
		return false, nil
	}
	if err := tx.PutLease(ctx, &Lease{RecordID: recordID, UserID: userID, AcquiredAt: now}); err != nil {
		return false, err
	}
	return true, nil
}

// release removes the lease iff userID holds it.
func release(ctx context.Context, tx Tx, recordID, userID string) (bool, error) {
	current, err := tx.GetLease(ctx, recordID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current.UserID != userID {
		return false, nil
	}
	if err := tx.DeleteLease(ctx, recordID); err != nil {
		return false, err
	}
	return true, nil
}

// blockedBy returns the active leases held by users other than userID.
func blockedBy(leases []Lease, userID string, now time.Time, timeout time.Duration) map[string]struct{} {
	blocked := make(map[string]struct{}, len(leases))
	for _, l := range leases {
		if l.UserID != userID && l.Active(now, timeout) {
			blocked[l.RecordID] = struct{}{}
		}
	}
	return blocked
}
