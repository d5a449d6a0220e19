package assignment

// ReachedLimit reports whether a user with count annotations is out of quota.
func ReachedLimit(count, batchSize int) bool {
	return count >= batchSize
}

// RemainingQuota is how many more records the user may annotate.
func RemainingQuota(count, batchSize int) int {
	if count >= batchSize {
		return 0
	}
	return batchSize - count
}

// BatchComplete reports whether every member of b is settled. owners maps
// annotated member ids to their annotator; a member annotated by someone other
// than the batch holder is forfeited and counts as settled. A nil or empty
// batch is complete.
func BatchComplete(b *Batch, owners map[string]string) bool {
	if b == nil {
		return true
	}
	for _, id := range b.RecordIDs {
		if _, ok := owners[id]; !ok {
			return false
		}
	}
	return true
}

// CanAnnotate reports whether the user may keep working: under quota and
// either without a batch or with an unfinished one.
func CanAnnotate(count, batchSize int, b *Batch, owners map[string]string) bool {
	if ReachedLimit(count, batchSize) {
		return false
	}
	if b == nil || len(b.RecordIDs) == 0 {
		return true
	}
	return !BatchComplete(b, owners)
}

// completedBy counts members annotated by userID.
func completedBy(b *Batch, userID string, owners map[string]string) int {
	if b == nil {
		return 0
	}
	n := 0
	for _, id := range b.RecordIDs {
		if owners[id] == userID {
			n++
		}
	}
	return n
}
