package handler

import (
	"context"

	"clinic-booking-api/internal/rpc"
)

func (h *Handler) RequestPasswordReset(ctx context.Context, req *rpc.RequestPasswordResetRequest) (*rpc.MessageResponse, error) {
	if err := required(req.Email, "email"); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	if err := h.resets.InitiatePasswordReset(ctx, req.Email); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.MessageResponse{Message: "a password reset link has been sent to your email"}, nil
}

func (h *Handler) ValidateResetToken(ctx context.Context, req *rpc.ValidateResetTokenRequest) (*rpc.ValidateResetTokenResponse, error) {
	t, err := h.resets.ValidateResetToken(ctx, req.Token)
	if err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.ValidateResetTokenResponse{ExpiresAt: t.ExpiresAt}, nil
}

func (h *Handler) ResetPassword(ctx context.Context, req *rpc.ResetPasswordRequest) (*rpc.MessageResponse, error) {
	if err := h.resets.ResetPassword(ctx, req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		return nil, rpc.Error(ctx, err)
	}
	return &rpc.MessageResponse{Message: "password has been reset, please sign in"}, nil
}
