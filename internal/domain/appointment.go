package domain

import "time"

// AppointmentStatus enumerates appointment lifecycle states.
type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "PENDING"
	AppointmentStatusCompleted   AppointmentStatus = "COMPLETED"
	AppointmentStatusRescheduled AppointmentStatus = "RESCHEDULED"
	AppointmentStatusCancelled   AppointmentStatus = "CANCELLED"
)

// Appointment binds a case to a (day, block, technician) slot.
// TechnicianID is nil while the case is awaiting an active technician.
type Appointment struct {
	ID           string
	CaseID       string
	TechnicianID *string
	Day          time.Time
	BlockID      string
	StartsAt     time.Time
	EndsAt       time.Time
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
