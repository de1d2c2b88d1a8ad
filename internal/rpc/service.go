// Package rpc is the booking.v1 wire contract: messages, the
// BookingService descriptor, a client and the error mapping shared by the
// server and the browser bridge. proto/booking/v1/booking.proto mirrors it.
package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "booking.v1.BookingService"

// FullMethod returns the gRPC path of a BookingService method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

type BookingServer interface {
	Register(context.Context, *RegisterRequest) (*UserResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	GetProfile(context.Context, *Empty) (*UserResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UserResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*MessageResponse, error)

	RequestPasswordReset(context.Context, *RequestPasswordResetRequest) (*MessageResponse, error)
	ValidateResetToken(context.Context, *ValidateResetTokenRequest) (*ValidateResetTokenResponse, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*MessageResponse, error)

	ListDoctors(context.Context, *Empty) (*ListDoctorsResponse, error)
	GetDoctor(context.Context, *IDRequest) (*DoctorResponse, error)
	ListAvailableSlots(context.Context, *IDRequest) (*ListSlotsResponse, error)

	BookAppointment(context.Context, *BookAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(context.Context, *IDRequest) (*AppointmentResponse, error)
	GetAppointment(context.Context, *IDRequest) (*AppointmentResponse, error)
	ListMyAppointments(context.Context, *Empty) (*ListAppointmentsResponse, error)
}

func RegisterBookingServer(s grpc.ServiceRegistrar, srv BookingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", BookingServer.Register),
		unary("Login", BookingServer.Login),
		unary("Logout", BookingServer.Logout),
		unary("GetProfile", BookingServer.GetProfile),
		unary("UpdateProfile", BookingServer.UpdateProfile),
		unary("ChangePassword", BookingServer.ChangePassword),
		unary("RequestPasswordReset", BookingServer.RequestPasswordReset),
		unary("ValidateResetToken", BookingServer.ValidateResetToken),
		unary("ResetPassword", BookingServer.ResetPassword),
		unary("ListDoctors", BookingServer.ListDoctors),
		unary("GetDoctor", BookingServer.GetDoctor),
		unary("ListAvailableSlots", BookingServer.ListAvailableSlots),
		unary("BookAppointment", BookingServer.BookAppointment),
		unary("CancelAppointment", BookingServer.CancelAppointment),
		unary("GetAppointment", BookingServer.GetAppointment),
		unary("ListMyAppointments", BookingServer.ListMyAppointments),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.proto",
}

func unary[Req any, PReq interface {
	*Req
	Message
}, Resp any](name string, call func(BookingServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(BookingServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(PReq))
			})
		},
	}
}
