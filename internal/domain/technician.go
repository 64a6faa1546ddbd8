package domain

import "time"

// Technician is a field worker eligible for appointment assignment.
// Read-only from the scheduler's perspective; workload is derived by
// counting appointments, never stored as a counter.
type Technician struct {
	ID          string
	Name        string
	Active      bool
	Specialties []string
	CreatedAt   time.Time
}

// HasSpecialty reports whether the technician covers the given category.
func (t Technician) HasSpecialty(category string) bool {
	for _, s := range t.Specialties {
		if s == category {
			return true
		}
	}
	return false
}
