package domain

import "time"

// FollowUpOutcome records how a follow-up conversation ended.
type FollowUpOutcome string

const (
	FollowUpOutcomeUnset      FollowUpOutcome = "UNSET"
	FollowUpOutcomeResolved   FollowUpOutcome = "RESOLVED"
	FollowUpOutcomeUnresolved FollowUpOutcome = "UNRESOLVED"
	FollowUpOutcomeNoResponse FollowUpOutcome = "NO_RESPONSE"
)

// FollowUpRecord tracks the post-visit verification protocol for one case.
// At most one active record exists per case at any time.
type FollowUpRecord struct {
	ID            string
	CaseID        string
	Attempts      int
	LastAttemptAt *time.Time
	NextDueAt     time.Time
	Active        bool
	Outcome       FollowUpOutcome
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
