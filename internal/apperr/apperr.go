// Package apperr defines the error kinds every service operation reports.
// Callers branch on Kind; Msg is safe to show to an end user.
package apperr

import "errors"

type Kind string

const (
	NotFound           Kind = "not_found"
	SlotAlreadyBooked  Kind = "slot_already_booked"
	InvalidState       Kind = "invalid_state"
	InvalidCredentials Kind = "invalid_credentials"
	AccountDisabled    Kind = "account_disabled"
	UsernameTaken      Kind = "username_taken"
	EmailTaken         Kind = "email_taken"
	PasswordMismatch   Kind = "password_mismatch"
	Expired            Kind = "expired"
	DeliveryFailed     Kind = "delivery_failed"
	StorageUnavailable Kind = "storage_unavailable"
	Invalid            Kind = "invalid_argument"
	Unauthenticated    Kind = "unauthenticated"
	Internal           Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain,
// or Internal when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
