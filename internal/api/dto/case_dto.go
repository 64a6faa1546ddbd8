package dto

import (
	"time"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	ResidentID  string              `json:"resident_id"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Priority    domain.CasePriority `json:"priority"`
}

// ReplyRequest is the inbound webhook payload from the chat layer, which
// already resolved the phone number to a case key.
type ReplyRequest struct {
	CaseKey string `json:"case_key"`
	Text    string `json:"text"`
}

// CaseSummary response.
type CaseSummary struct {
	ID                 string              `json:"id"`
	ExternalKey        string              `json:"external_key"`
	ResidentID         string              `json:"resident_id"`
	Category           string              `json:"category"`
	Status             domain.CaseStatus   `json:"status"`
	Priority           domain.CasePriority `json:"priority"`
	TechnicianID       *string             `json:"technician_id,omitempty"`
	AwaitingTechnician bool                `json:"awaiting_technician"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	ClosedAt           *time.Time          `json:"closed_at,omitempty"`
}

// AppointmentResponse response.
type AppointmentResponse struct {
	ID           string                   `json:"id"`
	TechnicianID *string                  `json:"technician_id,omitempty"`
	Day          string                   `json:"day"`
	Block        string                   `json:"block"`
	StartsAt     time.Time                `json:"starts_at"`
	EndsAt       time.Time                `json:"ends_at"`
	Status       domain.AppointmentStatus `json:"status"`
}

// FollowUpResponse response.
type FollowUpResponse struct {
	ID        string                 `json:"id"`
	Attempts  int                    `json:"attempts"`
	NextDueAt time.Time              `json:"next_due_at"`
	Active    bool                   `json:"active"`
	Outcome   domain.FollowUpOutcome `json:"outcome"`
}

// CaseDetailResponse provides full case info.
type CaseDetailResponse struct {
	CaseSummary
	Description  string                `json:"description"`
	Appointments []AppointmentResponse `json:"appointments"`
	FollowUp     *FollowUpResponse     `json:"follow_up,omitempty"`
}

// ReplyResponse reports the classification applied to an inbound reply.
type ReplyResponse struct {
	CaseKey        string `json:"case_key"`
	Classification string `json:"classification"`
}
