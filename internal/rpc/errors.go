package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-booking-api/internal/apperr"
)

// KindTrailer carries the apperr kind of a failed call.
const KindTrailer = "error-kind"

var kindCodes = map[apperr.Kind]codes.Code{
	apperr.NotFound:           codes.NotFound,
	apperr.SlotAlreadyBooked:  codes.AlreadyExists,
	apperr.InvalidState:       codes.FailedPrecondition,
	apperr.InvalidCredentials: codes.Unauthenticated,
	apperr.AccountDisabled:    codes.PermissionDenied,
	apperr.UsernameTaken:      codes.AlreadyExists,
	apperr.EmailTaken:         codes.AlreadyExists,
	apperr.PasswordMismatch:   codes.InvalidArgument,
	apperr.Expired:            codes.FailedPrecondition,
	apperr.DeliveryFailed:     codes.Unavailable,
	apperr.StorageUnavailable: codes.Unavailable,
	apperr.Invalid:            codes.InvalidArgument,
	apperr.Unauthenticated:    codes.Unauthenticated,
	apperr.Internal:           codes.Internal,
}

func Code(kind apperr.Kind) codes.Code {
	if c, ok := kindCodes[kind]; ok {
		return c
	}
	return codes.Internal
}

// Error turns err into a status error and sets the error-kind trailer on
// the call in ctx. Internal errors never leak their cause.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := apperr.KindOf(err)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(KindTrailer, string(kind)))

	msg := apperr.Message(err)
	if kind == apperr.Internal {
		msg = "internal error"
	}
	return status.Error(Code(kind), msg)
}

// KindOf reads the error kind a server reported in its trailer.
func KindOf(trailer metadata.MD) apperr.Kind {
	if v := trailer.Get(KindTrailer); len(v) > 0 {
		return apperr.Kind(v[0])
	}
	return ""
}
