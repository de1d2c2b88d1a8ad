package handler

import (
	"context"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/rpc"
	"clinic-booking-api/internal/service"
)

// Handler implements rpc.BookingServer on top of the services. Every error
// leaves through rpc.Error so callers get a gRPC code and an error-kind.
type Handler struct {
	accounts *service.AccountService
	resets   *service.ResetService
	booking  *service.BookingService
}

var _ rpc.BookingServer = (*Handler)(nil)

func New(accounts *service.AccountService, resets *service.ResetService, booking *service.BookingService) *Handler {
	return &Handler{accounts: accounts, resets: resets, booking: booking}
}

var errNoCaller = apperr.New(apperr.Unauthenticated, "authentication required")

func uid(ctx context.Context) (string, error) {
	id, ok := middleware.UserID(ctx)
	if !ok {
		return "", errNoCaller
	}
	return id, nil
}

func required(v, what string) error {
	if v == "" {
		return apperr.New(apperr.Invalid, what+" is required")
	}
	return nil
}

func toUser(u *model.User) *rpc.User {
	return &rpc.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func toDoctor(d *model.Doctor) *rpc.Doctor {
	return &rpc.Doctor{
		ID:             d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		Email:          d.Email,
		Phone:          d.Phone,
		SlotIDs:        d.SlotIDs,
	}
}

func toSlot(s *model.Slot) *rpc.Slot {
	return &rpc.Slot{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Booked:    s.Booked,
	}
}

func toAppointment(a *model.Appointment) *rpc.Appointment {
	return &rpc.Appointment{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		SlotID:    a.SlotID,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
