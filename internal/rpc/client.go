package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls BookingService with the booking.v1 codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any, PResp interface {
	*Resp
	Message
}](ctx context.Context, c *Client, method string, in Message, opts []grpc.CallOption) (PResp, error) {
	out := PResp(new(Resp))
	opts = append(opts, grpc.ForceCodec(Codec{}))
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, "Register", in, opts)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c, "Login", in, opts)
}

func (c *Client) Logout(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "Logout", &Empty{}, opts)
}

func (c *Client) GetProfile(ctx context.Context, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, "GetProfile", &Empty{}, opts)
}

func (c *Client) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c, "UpdateProfile", in, opts)
}

func (c *Client) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c, "ChangePassword", in, opts)
}

func (c *Client) RequestPasswordReset(ctx context.Context, in *RequestPasswordResetRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c, "RequestPasswordReset", in, opts)
}

func (c *Client) ValidateResetToken(ctx context.Context, in *ValidateResetTokenRequest, opts ...grpc.CallOption) (*ValidateResetTokenResponse, error) {
	return invoke[ValidateResetTokenResponse](ctx, c, "ValidateResetToken", in, opts)
}

func (c *Client) ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c, "ResetPassword", in, opts)
}

func (c *Client) ListDoctors(ctx context.Context, opts ...grpc.CallOption) (*ListDoctorsResponse, error) {
	return invoke[ListDoctorsResponse](ctx, c, "ListDoctors", &Empty{}, opts)
}

func (c *Client) GetDoctor(ctx context.Context, id string, opts ...grpc.CallOption) (*DoctorResponse, error) {
	return invoke[DoctorResponse](ctx, c, "GetDoctor", &IDRequest{ID: id}, opts)
}

func (c *Client) ListAvailableSlots(ctx context.Context, doctorID string, opts ...grpc.CallOption) (*ListSlotsResponse, error) {
	return invoke[ListSlotsResponse](ctx, c, "ListAvailableSlots", &IDRequest{ID: doctorID}, opts)
}

func (c *Client) BookAppointment(ctx context.Context, in *BookAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "BookAppointment", in, opts)
}

func (c *Client) CancelAppointment(ctx context.Context, id string, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "CancelAppointment", &IDRequest{ID: id}, opts)
}

func (c *Client) GetAppointment(ctx context.Context, id string, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, "GetAppointment", &IDRequest{ID: id}, opts)
}

func (c *Client) ListMyAppointments(ctx context.Context, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c, "ListMyAppointments", &Empty{}, opts)
}
