// Package storetest holds the behaviour every store driver must share.
// Drivers call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

// Run exercises st. Every case creates its own uniquely named records so a
// shared database can be reused between runs.
func Run(t *testing.T, st store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, st) })
	t.Run("doctors and slots", func(t *testing.T) { testDoctorsAndSlots(t, st) })
	t.Run("book and cancel", func(t *testing.T) { testBookCancel(t, st) })
	t.Run("concurrent book", func(t *testing.T) { testConcurrentBook(t, st) })
	t.Run("reset tokens", func(t *testing.T) { testResetTokens(t, st) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, st) })
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func newUser(t *testing.T, st store.Store) *model.User {
	t.Helper()
	tag := uuid.New().String()[:8]
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     "user-" + tag,
		Email:        fmt.Sprintf("user-%s@test.com", tag),
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Active:       true,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func newSlot(t *testing.T, st store.Store, doctorID string, start time.Time) *model.Slot {
	t.Helper()
	sl := &model.Slot{
		ID:        uuid.New().String(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
	require.NoError(t, st.Slots().CreateSlot(context.Background(), sl))
	return sl
}

func newDoctor(t *testing.T, st store.Store) *model.Doctor {
	t.Helper()
	d := &model.Doctor{
		ID:             uuid.New().String(),
		Name:           "Dr. " + uuid.New().String()[:6],
		Specialization: "Cardiology",
		Email:          "doc@test.com",
		Phone:          "555-0100",
	}
	require.NoError(t, st.Doctors().CreateDoctor(context.Background(), d))
	return d
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := newUser(t, st)

	got, err := st.Users().UserByUsername(ctx, u.Username)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.True(t, got.Active)

	got, err = st.Users().UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.Username, got.Username)

	_, err = st.Users().UserByEmail(ctx, "nobody-"+uuid.New().String()+"@test.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Users().UserByID(ctx, uuid.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)

	dupName := *u
	dupName.ID = uuid.New().String()
	dupName.Email = "other-" + u.Email
	field, ok := store.Duplicate(st.Users().CreateUser(ctx, &dupName))
	require.True(t, ok)
	require.Equal(t, "username", field)

	dupEmail := *u
	dupEmail.ID = uuid.New().String()
	dupEmail.Username = "other-" + u.Username
	field, ok = store.Duplicate(st.Users().CreateUser(ctx, &dupEmail))
	require.True(t, ok)
	require.Equal(t, "email", field)

	u.FirstName = "Renamed"
	u.UpdatedAt = now()
	require.NoError(t, st.Users().UpdateProfile(ctx, u))

	other := newUser(t, st)
	clash := *u
	clash.Email = other.Email
	field, ok = store.Duplicate(st.Users().UpdateProfile(ctx, &clash))
	require.True(t, ok)
	require.Equal(t, "email", field)

	require.NoError(t, st.Users().UpdatePassword(ctx, u.ID, "new-hash", now()))
	got, err = st.Users().UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.FirstName)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.Equal(t, u.Email, got.Email)

	require.ErrorIs(t, st.Users().UpdatePassword(ctx, uuid.New().String(), "x", now()), store.ErrNotFound)
}

func testDoctorsAndSlots(t *testing.T, st store.Store) {
	ctx := context.Background()
	d := newDoctor(t, st)

	got, err := st.Doctors().DoctorByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, d.Name, got.Name)

	list, err := st.Doctors().ListDoctors(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	n, err := st.Doctors().CountDoctors(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	base := now().Add(48 * time.Hour)
	late := newSlot(t, st, d.ID, base.Add(2*time.Hour))
	early := newSlot(t, st, d.ID, base)

	free, err := st.Slots().AvailableSlots(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, free, 2)
	require.Equal(t, early.ID, free[0].ID)
	require.Equal(t, late.ID, free[1].ID)

	sl, err := st.Slots().SlotByID(ctx, early.ID)
	require.NoError(t, err)
	require.False(t, sl.Booked)
	require.Equal(t, d.ID, sl.DoctorID)
	require.WithinDuration(t, early.StartTime, sl.StartTime, time.Millisecond)

	_, err = st.Slots().SlotByID(ctx, uuid.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Doctors().DoctorByID(ctx, uuid.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testBookCancel(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := newUser(t, st)
	d := newDoctor(t, st)
	sl := newSlot(t, st, d.ID, now().Add(72*time.Hour))

	a := &model.Appointment{
		ID:        uuid.New().String(),
		PatientID: u.ID,
		DoctorID:  d.ID,
		SlotID:    sl.ID,
		Status:    model.StatusBooked,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	require.NoError(t, st.Appointments().Book(ctx, a))

	got, err := st.Slots().SlotByID(ctx, sl.ID)
	require.NoError(t, err)
	require.True(t, got.Booked)

	free, err := st.Slots().AvailableSlots(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, free)

	again := *a
	again.ID = uuid.New().String()
	require.ErrorIs(t, st.Appointments().Book(ctx, &again), store.ErrConflict)

	missing := *a
	missing.ID = uuid.New().String()
	missing.SlotID = uuid.New().String()
	require.ErrorIs(t, st.Appointments().Book(ctx, &missing), store.ErrNotFound)

	mine, err := st.Appointments().AppointmentsByPatient(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, a.ID, mine[0].ID)

	require.NoError(t, st.Appointments().Cancel(ctx, a.ID, now()))
	cancelled, err := st.Appointments().AppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, cancelled.Status)

	got, err = st.Slots().SlotByID(ctx, sl.ID)
	require.NoError(t, err)
	require.False(t, got.Booked)

	require.ErrorIs(t, st.Appointments().Cancel(ctx, a.ID, now()), store.ErrConflict)
	require.ErrorIs(t, st.Appointments().Cancel(ctx, uuid.New().String(), now()), store.ErrNotFound)

	// the freed slot can be booked again, and the old appointment stays cancelled
	rebook := *a
	rebook.ID = uuid.New().String()
	require.NoError(t, st.Appointments().Book(ctx, &rebook))
	mine, err = st.Appointments().AppointmentsByPatient(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
}

func testConcurrentBook(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := newUser(t, st)
	d := newDoctor(t, st)
	sl := newSlot(t, st, d.ID, now().Add(96*time.Hour))

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- st.Appointments().Book(ctx, &model.Appointment{
				ID:        uuid.New().String(),
				PatientID: u.ID,
				DoctorID:  d.ID,
				SlotID:    sl.ID,
				Status:    model.StatusBooked,
				CreatedAt: now(),
				UpdatedAt: now(),
			})
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case err == store.ErrConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, n-1, conflicts)

	mine, err := st.Appointments().AppointmentsByPatient(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func testResetTokens(t *testing.T, st store.Store) {
	ctx := context.Background()
	email := fmt.Sprintf("reset-%s@test.com", uuid.New().String()[:8])

	first := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		TokenHash: uuid.New().String(),
		Email:     email,
		ExpiresAt: now().Add(24 * time.Hour),
		CreatedAt: now(),
	}
	require.NoError(t, st.ResetTokens().Replace(ctx, first))

	second := *first
	second.ID = uuid.New().String()
	second.TokenHash = uuid.New().String()
	require.NoError(t, st.ResetTokens().Replace(ctx, &second))

	_, err := st.ResetTokens().TokenByHash(ctx, first.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.ResetTokens().TokenByHash(ctx, second.TokenHash)
	require.NoError(t, err)
	require.Equal(t, email, got.Email)
	require.False(t, got.Used)

	require.NoError(t, st.ResetTokens().Consume(ctx, second.TokenHash, now()))
	require.ErrorIs(t, st.ResetTokens().Consume(ctx, second.TokenHash, now()), store.ErrConflict)
	got, err = st.ResetTokens().TokenByHash(ctx, second.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Used)

	stale := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		TokenHash: uuid.New().String(),
		Email:     "stale-" + email,
		ExpiresAt: now().Add(-time.Hour),
		CreatedAt: now().Add(-25 * time.Hour),
	}
	require.NoError(t, st.ResetTokens().Replace(ctx, stale))
	require.ErrorIs(t, st.ResetTokens().Consume(ctx, stale.TokenHash, now()), store.ErrConflict)

	n, err := st.ResetTokens().Purge(ctx, now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(2))
	_, err = st.ResetTokens().TokenByHash(ctx, stale.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.ResetTokens().TokenByHash(ctx, second.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	live := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		TokenHash: uuid.New().String(),
		Email:     "live-" + email,
		ExpiresAt: now().Add(time.Hour),
		CreatedAt: now(),
	}
	require.NoError(t, st.ResetTokens().Replace(ctx, live))
	require.NoError(t, st.ResetTokens().Delete(ctx, live.TokenHash))
	_, err = st.ResetTokens().TokenByHash(ctx, live.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testSessions(t *testing.T, st store.Store) {
	RunSessions(t, st.Sessions(), newUser(t, st).ID)
}

// RunSessions exercises a session repository on its own, for session
// backends that live outside the primary store.
func RunSessions(t *testing.T, repo store.Sessions, userID string) {
	ctx := context.Background()

	mk := func(ttl time.Duration) *model.Session {
		s := &model.Session{
			ID:        uuid.New().String(),
			UserID:    userID,
			ExpiresAt: now().Add(ttl),
			CreatedAt: now(),
		}
		require.NoError(t, repo.CreateSession(ctx, s))
		return s
	}
	a, b, c := mk(time.Hour), mk(time.Hour), mk(time.Hour)

	got, err := repo.SessionByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, userID, got.UserID)

	require.NoError(t, repo.DeleteSession(ctx, c.ID))
	_, err = repo.SessionByID(ctx, c.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.DeleteUserSessions(ctx, userID, a.ID))
	_, err = repo.SessionByID(ctx, a.ID)
	require.NoError(t, err)
	_, err = repo.SessionByID(ctx, b.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	old := mk(-time.Minute)
	n, err := repo.Purge(ctx, now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))
	_, err = repo.SessionByID(ctx, old.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
