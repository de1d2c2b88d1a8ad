package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/logx"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store"
)

// BookingService books and cancels appointments against the slot ledger.
// The slot claim and the appointment insert are one storage operation, so
// concurrent bookings of a slot yield exactly one appointment.
type BookingService struct {
	doctors      store.Doctors
	slots        store.Slots
	appointments store.Appointments
	now          func() time.Time
}

func NewBookingService(st store.Store, now func() time.Time) *BookingService {
	return &BookingService{
		doctors:      st.Doctors(),
		slots:        st.Slots(),
		appointments: st.Appointments(),
		now:          nowFunc(now),
	}
}

var (
	errSlotNotFound        = apperr.New(apperr.NotFound, "appointment slot not found")
	errSlotBooked          = apperr.New(apperr.SlotAlreadyBooked, "appointment slot is already booked")
	errAppointmentNotFound = apperr.New(apperr.NotFound, "appointment not found")
	errDoctorNotFound      = apperr.New(apperr.NotFound, "doctor not found")
)

// BookAppointment books slotID for patientID. doctorID, when given, must be
// the slot's doctor.
func (s *BookingService) BookAppointment(ctx context.Context, patientID, slotID, doctorID string) (*model.Appointment, error) {
	slot, err := s.slots.SlotByID(ctx, slotID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errSlotNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if doctorID != "" && slot.DoctorID != doctorID {
		return nil, errSlotNotFound
	}
	if slot.Booked {
		return nil, errSlotBooked
	}

	now := s.now()
	a := &model.Appointment{
		ID:        uuid.New().String(),
		PatientID: patientID,
		DoctorID:  slot.DoctorID,
		SlotID:    slot.ID,
		Status:    model.StatusBooked,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch err := s.appointments.Book(ctx, a); {
	case errors.Is(err, store.ErrConflict):
		return nil, errSlotBooked
	case errors.Is(err, store.ErrNotFound):
		return nil, errSlotNotFound
	case err != nil:
		return nil, storageErr(err)
	}

	logx.FromContext(ctx).Info("appointment booked",
		"appointment_id", a.ID, "slot_id", a.SlotID, "doctor_id", a.DoctorID)
	return a, nil
}

// CancelAppointment moves a BOOKED appointment to CANCELLED and frees its
// slot. Anything not BOOKED fails InvalidState, so a repeated cancel never
// frees a slot that was booked again in between.
func (s *BookingService) CancelAppointment(ctx context.Context, appointmentID string) error {
	switch err := s.appointments.Cancel(ctx, appointmentID, s.now()); {
	case errors.Is(err, store.ErrNotFound):
		return errAppointmentNotFound
	case errors.Is(err, store.ErrConflict):
		return apperr.New(apperr.InvalidState, "only booked appointments can be cancelled")
	case err != nil:
		return storageErr(err)
	}
	logx.FromContext(ctx).Info("appointment cancelled", "appointment_id", appointmentID)
	return nil
}

// AvailableSlots lists the free slots of a doctor by start time.
func (s *BookingService) AvailableSlots(ctx context.Context, doctorID string) ([]model.Slot, error) {
	if _, err := s.Doctor(ctx, doctorID); err != nil {
		return nil, err
	}
	slots, err := s.slots.AvailableSlots(ctx, doctorID)
	if err != nil {
		return nil, storageErr(err)
	}
	return slots, nil
}

// AppointmentsByPatient lists every appointment of the patient, any status.
func (s *BookingService) AppointmentsByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	out, err := s.appointments.AppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (s *BookingService) Appointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := s.appointments.AppointmentByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errAppointmentNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return a, nil
}

func (s *BookingService) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	out, err := s.doctors.ListDoctors(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (s *BookingService) Doctor(ctx context.Context, id string) (*model.Doctor, error) {
	d, err := s.doctors.DoctorByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errDoctorNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return d, nil
}
