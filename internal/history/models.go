package history

import "database/sql"

// JobRecord is a local record of a submission and its lifecycle. One row
// per job the user started, regardless of how the backend resolved it.
type JobRecord struct {
	ID           int64
	GUID         string
	BackendJobID sql.NullInt64
	Mode         string
	Summary      string
	Answer       string
	Outcome      string
	CreatedAt    int64
	UpdatedAt    int64
}

// MessageRecord is a single timeline entry attached to a job.
type MessageRecord struct {
	ID        int64
	JobGUID   string
	Role      string
	Content   string
	CreatedAt int64
}

// Roles used by MessageRecord.
const (
	RoleUser   = "user"
	RoleAnswer = "answer"
	RoleEvent  = "event"
)

// Outcomes recorded on jobs once the stream settles.
const (
	OutcomeFound        = "found"
	OutcomeNotFound     = "notfound"
	OutcomeNoHypothesis = "no_hypothesis"
	OutcomeHalted       = "halted"
)
