package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	UserID       *string
	RecordID     *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
