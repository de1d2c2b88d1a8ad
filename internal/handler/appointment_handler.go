package handler

import (
	"context"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/rpc"
)

func (h *Handler) ListDoctors(ctx context.Context, _ *rpc.Empty) (*rpc.ListDoctorsResponse, error) {
	doctors, err := h.booking.ListDoctors(ctx)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	out := make([]*rpc.Doctor, len(doctors))
	for i := range doctors {
		out[i] = toDoctor(&doctors[i])
	}
	return &rpc.ListDoctorsResponse{Doctors: out}, nil
}

func (h *Handler) GetDoctor(ctx context.Context, req *rpc.IDRequest) (*rpc.DoctorResponse, error) {
	if err := required(req.ID, "doctor id"); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	d, err := h.booking.Doctor(ctx, req.ID)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.DoctorResponse{Doctor: toDoctor(d)}, nil
}

func (h *Handler) ListAvailableSlots(ctx context.Context, req *rpc.IDRequest) (*rpc.ListSlotsResponse, error) {
	if err := required(req.ID, "doctor id"); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	slots, err := h.booking.AvailableSlots(ctx, req.ID)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	out := make([]*rpc.Slot, len(slots))
	for i := range slots {
		out[i] = toSlot(&slots[i])
	}
	return &rpc.ListSlotsResponse{Slots: out}, nil
}

func (h *Handler) BookAppointment(ctx context.Context, req *rpc.BookAppointmentRequest) (*rpc.AppointmentResponse, error) {
	patient, err := uid(ctx)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	if err := required(req.SlotID, "slot id"); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	a, err := h.booking.BookAppointment(ctx, patient, req.SlotID, req.DoctorID)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.AppointmentResponse{Appointment: toAppointment(a)}, nil
}

func (h *Handler) CancelAppointment(ctx context.Context, req *rpc.IDRequest) (*rpc.AppointmentResponse, error) {
	if _, err := h.owned(ctx, req.ID); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	if err := h.booking.CancelAppointment(ctx, req.ID); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	a, err := h.booking.Appointment(ctx, req.ID)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.AppointmentResponse{Appointment: toAppointment(a)}, nil
}

func (h *Handler) GetAppointment(ctx context.Context, req *rpc.IDRequest) (*rpc.AppointmentResponse, error) {
	a, err := h.owned(ctx, req.ID)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.AppointmentResponse{Appointment: toAppointment(a)}, nil
}

func (h *Handler) ListMyAppointments(ctx context.Context, _ *rpc.Empty) (*rpc.ListAppointmentsResponse, error) {
	patient, err := uid(ctx)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	appts, err := h.booking.AppointmentsByPatient(ctx, patient)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	out := make([]*rpc.Appointment, len(appts))
	for i := range appts {
		out[i] = toAppointment(&appts[i])
	}
	return &rpc.ListAppointmentsResponse{Appointments: out}, nil
}

// owned loads an appointment of the caller. Someone else's appointment is
// reported as missing.
func (h *Handler) owned(ctx context.Context, id string) (*model.Appointment, error) {
	patient, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	if err := required(id, "appointment id"); err != nil {
		return nil, err
	}
	a, err := h.booking.Appointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patient {
		return nil, apperr.New(apperr.NotFound, "appointment not found")
	}
	return a, nil
}
