package domain

import "time"

// CaseStatus enumerates lifecycle states for reported cases.
type CaseStatus string

const (
	CaseStatusNew              CaseStatus = "NEW"
	CaseStatusScheduled        CaseStatus = "SCHEDULED"
	CaseStatusVisitCompleted   CaseStatus = "VISIT_COMPLETED"
	CaseStatusResolved         CaseStatus = "RESOLVED"
	CaseStatusReopened         CaseStatus = "REOPENED"
	CaseStatusClosedNoResponse CaseStatus = "CLOSED_NO_RESPONSE"
)

// Terminal reports whether the status ends the scheduling lifecycle.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusResolved || s == CaseStatusClosedNoResponse
}

// CasePriority controls how far ahead the scheduler searches.
type CasePriority string

const (
	CasePriorityLow      CasePriority = "LOW"
	CasePriorityMedium   CasePriority = "MEDIUM"
	CasePriorityHigh     CasePriority = "HIGH"
	CasePriorityCritical CasePriority = "CRITICAL"
)

// SearchHorizonDays maps priority to the scheduling search window in calendar days.
func (p CasePriority) SearchHorizonDays() int {
	switch p {
	case CasePriorityCritical:
		return 1
	case CasePriorityHigh:
		return 3
	case CasePriorityMedium:
		return 7
	default:
		return 14
	}
}

// Valid reports whether the priority is a known tier.
func (p CasePriority) Valid() bool {
	switch p {
	case CasePriorityLow, CasePriorityMedium, CasePriorityHigh, CasePriorityCritical:
		return true
	}
	return false
}

// Case is the aggregate for resident problem reports.
type Case struct {
	ID                 string
	ExternalKey        string
	ResidentID         string
	Category           string
	Description        string
	Status             CaseStatus
	Priority           CasePriority
	TechnicianID       *string
	AwaitingTechnician bool
	VisitCompletedAt   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}
