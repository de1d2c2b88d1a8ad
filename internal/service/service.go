// Package service holds the booking, account and password reset rules.
// Services talk to storage only through the store interfaces and report
// failures as *apperr.Error values.
package service

import (
	"errors"
	"strings"
	"time"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/store"
)

const MinPasswordLength = 6

// storageErr passes apperr values through and hides anything else behind
// an Internal error.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.Internal, "internal error", err)
}

// takenErr maps a unique violation on users to its error kind.
func takenErr(err error) error {
	field, ok := store.Duplicate(err)
	if !ok {
		return storageErr(err)
	}
	switch field {
	case "username":
		return apperr.New(apperr.UsernameTaken, "username already exists")
	case "email":
		return apperr.New(apperr.EmailTaken, "email already exists")
	default:
		return storageErr(err)
	}
}

func checkPassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return apperr.New(apperr.Invalid, "password must be at least 6 characters")
	}
	return nil
}

func nowFunc(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
