// Package store defines the persistence boundary shared by every driver
// (postgres, mongo, memory). Drivers live in sub-packages.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking-api/internal/model"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a conditional update found the record in the wrong state.
	ErrConflict = errors.New("store: conflict")
)

// DuplicateError reports a unique constraint violation on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("store: duplicate %s", e.Field)
}

// Duplicate returns the field of a unique violation, if err is one.
func Duplicate(err error) (string, bool) {
	var d *DuplicateError
	if errors.As(err, &d) {
		return d.Field, true
	}
	return "", false
}

type Store interface {
	Users() Users
	Doctors() Doctors
	Slots() Slots
	Appointments() Appointments
	ResetTokens() ResetTokens
	Sessions() Sessions

	Ping(ctx context.Context) error
	Close() error
}

type Users interface {
	// CreateUser fails with *DuplicateError{"username"|"email"}.
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile writes username, email, names and updated_at.
	UpdateProfile(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
}

type Doctors interface {
	CreateDoctor(ctx context.Context, d *model.Doctor) error
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	DoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	CountDoctors(ctx context.Context) (int64, error)
}

type Slots interface {
	CreateSlot(ctx context.Context, s *model.Slot) error
	SlotByID(ctx context.Context, id string) (*model.Slot, error)
	// AvailableSlots returns the free slots of a doctor ordered by start time.
	AvailableSlots(ctx context.Context, doctorID string) ([]model.Slot, error)
	CountSlots(ctx context.Context) (int64, error)
}

type Appointments interface {
	// Book claims a.SlotID (booked false -> true) and inserts a as one unit.
	// ErrConflict when the slot is already booked, ErrNotFound when it is gone.
	Book(ctx context.Context, a *model.Appointment) error
	// Cancel moves the appointment BOOKED -> CANCELLED and frees its slot as
	// one unit. ErrConflict when it is not BOOKED.
	Cancel(ctx context.Context, id string, at time.Time) error
	AppointmentByID(ctx context.Context, id string) (*model.Appointment, error)
	AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
}

type ResetTokens interface {
	// Replace deletes every token of t.Email and inserts t as one unit.
	Replace(ctx context.Context, t *model.PasswordResetToken) error
	TokenByHash(ctx context.Context, hash string) (*model.PasswordResetToken, error)
	// Consume marks the token used if it is still unused and unexpired at at.
	Consume(ctx context.Context, hash string, at time.Time) error
	Delete(ctx context.Context, hash string) error
	// Purge removes tokens that are used or expired before before.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s *model.Session) error
	SessionByID(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// DeleteUserSessions revokes every session of userID except keepID.
	DeleteUserSessions(ctx context.Context, userID, keepID string) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// WithSessions returns st with its session repository replaced by sessions.
func WithSessions(st Store, sessions Sessions) Store {
	return sessionOverride{Store: st, sessions: sessions}
}

type sessionOverride struct {
	Store
	sessions Sessions
}

func (s sessionOverride) Sessions() Sessions { return s.sessions }
