// Package form holds the discovery form's in-memory record, its attachment
// variant, section bookkeeping and the form definition.
package form

// Status is the lifecycle state of a persisted submission row.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"

	// Reserved for the operator workflow. Never written by this service.
	StatusPending    Status = "pending"
	StatusReviewed   Status = "reviewed"
	StatusInProgress Status = "in_progress"
)

// CurrentStatuses are the statuses a row may have and still be matched to a
// respondent's email during reconciliation.
var CurrentStatuses = []Status{StatusDraft, StatusCompleted}

func (s Status) Current() bool {
	return s == StatusDraft || s == StatusCompleted
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusCompleted, StatusPending, StatusReviewed, StatusInProgress:
		return true
	default:
		return false
	}
}
