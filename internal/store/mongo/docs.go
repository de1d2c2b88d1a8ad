package mongo

import (
	"strings"
	"time"

	"clinic-booking-api/internal/model"
)

type userDoc struct {
	ID            string    `bson:"_id"`
	Username      string    `bson:"username"`
	UsernameLower string    `bson:"username_lower"`
	Email         string    `bson:"email"`
	EmailLower    string    `bson:"email_lower"`
	PasswordHash  string    `bson:"password_hash"`
	FirstName     string    `bson:"first_name"`
	LastName      string    `bson:"last_name"`
	Active        bool      `bson:"active"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:            u.ID,
		Username:      u.Username,
		UsernameLower: strings.ToLower(u.Username),
		Email:         u.Email,
		EmailLower:    strings.ToLower(u.Email),
		PasswordHash:  u.PasswordHash,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Active:        u.Active,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (d userDoc) model() *model.User {
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Active:       d.Active,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type doctorDoc struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Specialization string    `bson:"specialization"`
	Email          string    `bson:"email"`
	Phone          string    `bson:"phone"`
	CreatedAt      time.Time `bson:"created_at"`
}

type slotDoc struct {
	ID        string    `bson:"_id"`
	DoctorID  string    `bson:"doctor_id"`
	StartTime time.Time `bson:"start_time"`
	EndTime   time.Time `bson:"end_time"`
	Booked    bool      `bson:"booked"`
}

func (d slotDoc) model() model.Slot {
	return model.Slot{
		ID:        d.ID,
		DoctorID:  d.DoctorID,
		StartTime: d.StartTime.UTC(),
		EndTime:   d.EndTime.UTC(),
		Booked:    d.Booked,
	}
}

type appointmentDoc struct {
	ID        string    `bson:"_id"`
	PatientID string    `bson:"patient_id"`
	DoctorID  string    `bson:"doctor_id"`
	SlotID    string    `bson:"slot_id"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d appointmentDoc) model() model.Appointment {
	return model.Appointment{
		ID:        d.ID,
		PatientID: d.PatientID,
		DoctorID:  d.DoctorID,
		SlotID:    d.SlotID,
		Status:    model.AppointmentStatus(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type resetTokenDoc struct {
	ID         string    `bson:"_id"`
	TokenHash  string    `bson:"token_hash"`
	Email      string    `bson:"email"`
	EmailLower string    `bson:"email_lower"`
	ExpiresAt  time.Time `bson:"expires_at"`
	Used       bool      `bson:"used"`
	CreatedAt  time.Time `bson:"created_at"`
}

type sessionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}
