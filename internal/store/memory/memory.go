// Package memory is an in-process store driver. A single mutex makes every
// conditional update atomic. Used for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

type Store struct {
	mu           sync.Mutex
	users        map[string]model.User
	doctors      map[string]model.Doctor
	doctorOrder  []string
	slots        map[string]model.Slot
	appointments map[string]model.Appointment
	tokens       map[string]model.PasswordResetToken // by hash
	sessions     map[string]model.Session
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:        make(map[string]model.User),
		doctors:      make(map[string]model.Doctor),
		slots:        make(map[string]model.Slot),
		appointments: make(map[string]model.Appointment),
		tokens:       make(map[string]model.PasswordResetToken),
		sessions:     make(map[string]model.Session),
	}
}

func (s *Store) Users() store.Users               { return (*users)(s) }
func (s *Store) Doctors() store.Doctors           { return (*doctors)(s) }
func (s *Store) Slots() store.Slots               { return (*slots)(s) }
func (s *Store) Appointments() store.Appointments { return (*appointments)(s) }
func (s *Store) ResetTokens() store.ResetTokens   { return (*resetTokens)(s) }
func (s *Store) Sessions() store.Sessions         { return (*sessions)(s) }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

// ---- users ----

type users Store

func (r *users) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(u); err != nil {
		return err
	}
	r.users[u.ID] = *u
	return nil
}

// checkUnique compares case-insensitively, like the lower() unique indexes
// in postgres.
func (r *users) checkUnique(u *model.User) error {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) {
			return &store.DuplicateError{Field: "username"}
		}
		if strings.EqualFold(other.Email, u.Email) {
			return &store.DuplicateError{Field: "email"}
		}
	}
	return nil
}

func (r *users) UserByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (r *users) UserByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *users) UserByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *users) find(match func(model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *users) UpdateProfile(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}
	cur.Username = u.Username
	cur.Email = u.Email
	cur.FirstName = u.FirstName
	cur.LastName = u.LastName
	cur.UpdatedAt = u.UpdatedAt
	r.users[u.ID] = cur
	return nil
}

func (r *users) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	cur.PasswordHash = hash
	cur.UpdatedAt = at
	r.users[id] = cur
	return nil
}

// ---- doctors ----

type doctors Store

func (r *doctors) CreateDoctor(_ context.Context, d *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[d.ID]; ok {
		return &store.DuplicateError{Field: "id"}
	}
	d.SlotIDs = append([]string(nil), d.SlotIDs...)
	r.doctors[d.ID] = *d
	r.doctorOrder = append(r.doctorOrder, d.ID)
	return nil
}

func (r *doctors) ListDoctors(_ context.Context) ([]model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Doctor, 0, len(r.doctorOrder))
	for _, id := range r.doctorOrder {
		out = append(out, r.doctors[id])
	}
	return out, nil
}

func (r *doctors) DoctorByID(_ context.Context, id string) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (r *doctors) CountDoctors(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.doctors)), nil
}

// ---- slots ----

type slots Store

func (r *slots) CreateSlot(_ context.Context, sl *model.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[sl.ID]; ok {
		return &store.DuplicateError{Field: "id"}
	}
	r.slots[sl.ID] = *sl
	if d, ok := r.doctors[sl.DoctorID]; ok {
		d.SlotIDs = append(d.SlotIDs, sl.ID)
		r.doctors[d.ID] = d
	}
	return nil
}

func (r *slots) SlotByID(_ context.Context, id string) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sl, nil
}

func (r *slots) AvailableSlots(_ context.Context, doctorID string) ([]model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Slot
	for _, sl := range r.slots {
		if sl.DoctorID == doctorID && !sl.Booked {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *slots) CountSlots(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.slots)), nil
}

// ---- appointments ----

type appointments Store

func (r *appointments) Book(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[a.SlotID]
	if !ok {
		return store.ErrNotFound
	}
	if sl.Booked {
		return store.ErrConflict
	}
	sl.Booked = true
	r.slots[sl.ID] = sl
	r.appointments[a.ID] = *a
	return nil
}

func (r *appointments) Cancel(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != model.StatusBooked {
		return store.ErrConflict
	}
	sl, ok := r.slots[a.SlotID]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = model.StatusCancelled
	a.UpdatedAt = at
	r.appointments[id] = a
	sl.Booked = false
	r.slots[sl.ID] = sl
	return nil
}

func (r *appointments) AppointmentByID(_ context.Context, id string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (r *appointments) AppointmentsByPatient(_ context.Context, patientID string) ([]model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- reset tokens ----

type resetTokens Store

func (r *resetTokens) Replace(_ context.Context, t *model.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[t.TokenHash]; ok {
		return &store.DuplicateError{Field: "token"}
	}
	for hash, other := range r.tokens {
		if strings.EqualFold(other.Email, t.Email) {
			delete(r.tokens, hash)
		}
	}
	r.tokens[t.TokenHash] = *t
	return nil
}

func (r *resetTokens) TokenByHash(_ context.Context, hash string) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (r *resetTokens) Consume(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return store.ErrNotFound
	}
	if !t.Valid(at) {
		return store.ErrConflict
	}
	t.Used = true
	r.tokens[hash] = t
	return nil
}

func (r *resetTokens) Delete(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, hash)
	return nil
}

func (r *resetTokens) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.tokens {
		if t.Used || t.ExpiresAt.Before(before) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

// ---- sessions ----

type sessions Store

func (r *sessions) CreateSession(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *sessions) SessionByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (r *sessions) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *sessions) DeleteUserSessions(_ context.Context, userID, keepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID && id != keepID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *sessions) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(before) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}
