package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
	"clinic-booking-api/internal/store/memory"
)

// requireLedgerConsistent checks that a slot is booked exactly when one
// BOOKED appointment references it.
func requireLedgerConsistent(t *testing.T, f *fixture, patients []string, slots []*model.Slot) {
	t.Helper()
	ctx := context.Background()
	active := make(map[string]int)
	for _, p := range patients {
		appts, err := f.booking.AppointmentsByPatient(ctx, p)
		require.NoError(t, err)
		for _, a := range appts {
			if a.Status == model.StatusBooked {
				active[a.SlotID]++
			}
		}
	}
	for _, sl := range slots {
		got, err := f.st.Slots().SlotByID(ctx, sl.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, active[sl.ID], 1, "slot %s double booked", sl.ID)
		require.Equal(t, active[sl.ID] == 1, got.Booked, "slot %s", sl.ID)
	}
}

func TestBookAndCancelScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")
	d1, slots := f.doctorWithSlots(t, "D1", 2)
	s1 := slots[0]

	a, err := f.booking.BookAppointment(ctx, alice.ID, s1.ID, d1.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusBooked, a.Status)
	require.Equal(t, alice.ID, a.PatientID)
	require.Equal(t, d1.ID, a.DoctorID)
	require.Equal(t, f.clock.Now(), a.CreatedAt)

	got, err := f.st.Slots().SlotByID(ctx, s1.ID)
	require.NoError(t, err)
	require.True(t, got.Booked)
	requireLedgerConsistent(t, f, []string{alice.ID}, slots)

	_, err = f.booking.BookAppointment(ctx, alice.ID, s1.ID, d1.ID)
	requireKind(t, err, apperr.SlotAlreadyBooked)

	require.NoError(t, f.booking.CancelAppointment(ctx, a.ID))
	got, err = f.st.Slots().SlotByID(ctx, s1.ID)
	require.NoError(t, err)
	require.False(t, got.Booked)

	cancelled, err := f.booking.Appointment(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, cancelled.Status)
	requireLedgerConsistent(t, f, []string{alice.ID}, slots)
}

func TestCancelTwiceDoesNotFreeRebookedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")
	bob := f.register(t, "bob", "bob@x.com", "pw123456")
	d, slots := f.doctorWithSlots(t, "D1", 1)

	first, err := f.booking.BookAppointment(ctx, alice.ID, slots[0].ID, d.ID)
	require.NoError(t, err)
	require.NoError(t, f.booking.CancelAppointment(ctx, first.ID))

	_, err = f.booking.BookAppointment(ctx, bob.ID, slots[0].ID, d.ID)
	require.NoError(t, err)

	requireKind(t, f.booking.CancelAppointment(ctx, first.ID), apperr.InvalidState)

	got, err := f.st.Slots().SlotByID(ctx, slots[0].ID)
	require.NoError(t, err)
	require.True(t, got.Booked, "bob's booking must survive the repeated cancel")
	requireLedgerConsistent(t, f, []string{alice.ID, bob.ID}, slots)
}

func TestBookingNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")
	d1, slots := f.doctorWithSlots(t, "D1", 1)
	d2, _ := f.doctorWithSlots(t, "D2", 0)

	_, err := f.booking.BookAppointment(ctx, alice.ID, "no-such-slot", d1.ID)
	requireKind(t, err, apperr.NotFound)

	_, err = f.booking.BookAppointment(ctx, alice.ID, slots[0].ID, d2.ID)
	requireKind(t, err, apperr.NotFound)

	// the slot is untouched by the mismatched request
	free, err := f.booking.AvailableSlots(ctx, d1.ID)
	require.NoError(t, err)
	require.Len(t, free, 1)

	requireKind(t, f.booking.CancelAppointment(ctx, "no-such-appointment"), apperr.NotFound)

	_, err = f.booking.Appointment(ctx, "no-such-appointment")
	requireKind(t, err, apperr.NotFound)

	_, err = f.booking.AvailableSlots(ctx, "no-such-doctor")
	requireKind(t, err, apperr.NotFound)
}

func TestBookWithoutDoctorUsesSlotDoctor(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "alice@x.com", "pw123456")
	d, slots := f.doctorWithSlots(t, "D1", 1)

	a, err := f.booking.BookAppointment(context.Background(), alice.ID, slots[0].ID, "")
	require.NoError(t, err)
	require.Equal(t, d.ID, a.DoctorID)
}

func TestConcurrentBookingHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, slots := f.doctorWithSlots(t, "D1", 1)

	const n = 20
	patients := make([]string, n)
	for i := range patients {
		patients[i] = f.register(t, "patient"+string(rune('a'+i)), "p"+string(rune('a'+i))+"@x.com", "pw123456").ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.booking.BookAppointment(ctx, patients[i], slots[0].ID, d.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireKind(t, err, apperr.SlotAlreadyBooked)
	}
	require.Equal(t, 1, wins)
	requireLedgerConsistent(t, f, patients, slots)
}

func TestAvailableSlotsAndListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "pw123456")
	d, slots := f.doctorWithSlots(t, "D1", 3)

	_, err := f.booking.BookAppointment(ctx, alice.ID, slots[1].ID, d.ID)
	require.NoError(t, err)

	free, err := f.booking.AvailableSlots(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, free, 2)
	require.Equal(t, slots[0].ID, free[0].ID)
	require.Equal(t, slots[2].ID, free[1].ID)

	doctors, err := f.booking.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	require.Len(t, doctors[0].SlotIDs, 3)

	got, err := f.booking.Doctor(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "D1", got.Name)

	_, err = f.booking.Doctor(ctx, "nope")
	requireKind(t, err, apperr.NotFound)

	mine, err := f.booking.AppointmentsByPatient(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

// downAppointments fails every ledger write with err.
type downAppointments struct {
	store.Appointments
	err error
}

func (d downAppointments) Book(context.Context, *model.Appointment) error { return d.err }

func (d downAppointments) Cancel(context.Context, string, time.Time) error { return d.err }

type downStore struct {
	*memory.Store
	err error
}

func (s downStore) Appointments() store.Appointments {
	return downAppointments{Appointments: s.Store.Appointments(), err: s.err}
}

func TestBookingStorageFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice", "alice@example.com", "secret1")
	_, slots := f.doctorWithSlots(t, "house", 1)

	timeout := apperr.Wrap(apperr.StorageUnavailable, "storage unavailable", context.DeadlineExceeded)
	svc := NewBookingService(downStore{Store: f.st, err: timeout}, f.clock.Now)

	_, err := svc.BookAppointment(ctx, u.ID, slots[0].ID, "")
	requireKind(t, err, apperr.StorageUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	requireKind(t, svc.CancelAppointment(ctx, "any"), apperr.StorageUnavailable)

	// driver errors without a kind are not leaked
	svc = NewBookingService(downStore{Store: f.st, err: errors.New("driver exploded")}, f.clock.Now)
	_, err = svc.BookAppointment(ctx, u.ID, slots[0].ID, "")
	requireKind(t, err, apperr.Internal)
	require.Equal(t, "internal error", apperr.Message(err))

	free, err := f.booking.AvailableSlots(ctx, slots[0].DoctorID)
	require.NoError(t, err)
	require.Len(t, free, 1)
}
