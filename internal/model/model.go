package model

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Doctor struct {
	ID             string
	Name           string
	Specialization string
	Email          string
	Phone          string
	// SlotIDs is informational only; the slot ledger owns the doctor/slot relation.
	SlotIDs []string
}

type Slot struct {
	ID        string
	DoctorID  string
	StartTime time.Time
	EndTime   time.Time
	Booked    bool
}

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	SlotID    string
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PasswordResetToken is stored by fingerprint; the raw token only ever
// exists in the emailed link.
type PasswordResetToken struct {
	ID        string
	TokenHash string
	Email     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *PasswordResetToken) Valid(now time.Time) bool {
	return !t.Used && !t.Expired(now)
}

type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
