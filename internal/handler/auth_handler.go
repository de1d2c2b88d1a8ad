package handler

import (
	"context"

	"clinic-booking-api/internal/middleware"
	"clinic-booking-api/internal/rpc"
	"clinic-booking-api/internal/service"
)

func (h *Handler) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.UserResponse, error) {
	u, err := h.accounts.Register(ctx, service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.UserResponse{User: toUser(u)}, nil
}

func (h *Handler) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	res, err := h.accounts.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.LoginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: toUser(res.User)}, nil
}

func (h *Handler) Logout(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if err := h.accounts.Logout(ctx, middleware.SessionID(ctx)); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.Empty{}, nil
}

func (h *Handler) GetProfile(ctx context.Context, _ *rpc.Empty) (*rpc.UserResponse, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	u, err := h.accounts.Profile(ctx, id)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.UserResponse{User: toUser(u)}, nil
}

func (h *Handler) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.UserResponse, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	u, err := h.accounts.UpdateProfile(ctx, id, service.ProfileInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.UserResponse{User: toUser(u)}, nil
}

func (h *Handler) ChangePassword(ctx context.Context, req *rpc.ChangePasswordRequest) (*rpc.MessageResponse, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	err = h.accounts.ChangePassword(ctx, id, middleware.SessionID(ctx),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.MessageResponse{Message: "password changed successfully"}, nil
}
