package domain

import "time"

// TechnicianStatus enumerates technician availability states.
type TechnicianStatus string

const (
	TechnicianStatusActive   TechnicianStatus = "ACTIVE"
	TechnicianStatusInactive TechnicianStatus = "INACTIVE"
	TechnicianStatusOnLeave  TechnicianStatus = "ON_LEAVE"
)

// Valid reports whether s is a known technician status.
func (s TechnicianStatus) Valid() bool {
	switch s {
	case TechnicianStatusActive, TechnicianStatusInactive, TechnicianStatusOnLeave:
		return true
	}
	return false
}

// Technician models a field technician who can be booked on appointments.
type Technician struct {
	ID        string
	Name      string
	Email     string
	Status    TechnicianStatus
	Skills    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
