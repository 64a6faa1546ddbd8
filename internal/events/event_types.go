package events

import (
	"time"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseScheduled        EventType = "case_scheduled"
	EventVisitCompleted       EventType = "visit_completed"
	EventFollowUpStarted      EventType = "follow_up_started"
	EventReminderSent         EventType = "reminder_sent"
	EventCaseResolved         EventType = "case_resolved"
	EventCaseReopened         EventType = "case_reopened"
	EventCaseClosedNoResponse EventType = "case_closed_no_response"
)

// Event represents a domain event emitted by the scheduling core.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CaseID    string      `json:"case_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// CaseScheduledPayload payload.
type CaseScheduledPayload struct {
	AppointmentID      string    `json:"appointment_id"`
	Day                time.Time `json:"day"`
	Block              string    `json:"block"`
	TechnicianID       *string   `json:"technician_id,omitempty"`
	AwaitingTechnician bool      `json:"awaiting_technician"`
	Reopened           bool      `json:"reopened"`
}

// VisitCompletedPayload payload.
type VisitCompletedPayload struct {
	AppointmentID string    `json:"appointment_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// FollowUpStartedPayload payload.
type FollowUpStartedPayload struct {
	FollowUpID string    `json:"follow_up_id"`
	NextDueAt  time.Time `json:"next_due_at"`
}

// ReminderSentPayload payload.
type ReminderSentPayload struct {
	FollowUpID string    `json:"follow_up_id"`
	Attempt    int       `json:"attempt"`
	NextDueAt  time.Time `json:"next_due_at"`
}

// CaseClosedPayload covers the terminal transitions.
type CaseClosedPayload struct {
	Outcome  domain.FollowUpOutcome `json:"outcome"`
	Attempts int                    `json:"attempts"`
}

// CaseReopenedPayload payload.
type CaseReopenedPayload struct {
	NewAppointmentID string `json:"new_appointment_id,omitempty"`
	Attempts         int    `json:"attempts"`
}
