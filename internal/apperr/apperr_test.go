package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, Internal, KindOf(errors.New("boom")))
	require.Equal(t, NotFound, KindOf(New(NotFound, "slot not found")))

	wrapped := fmt.Errorf("book: %w", New(SlotAlreadyBooked, "taken"))
	require.Equal(t, SlotAlreadyBooked, KindOf(wrapped))
	require.True(t, Is(wrapped, SlotAlreadyBooked))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(StorageUnavailable, "storage unavailable", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, "storage unavailable: dial tcp: timeout", err.Error())
	require.Equal(t, "storage unavailable", Message(err))
	require.Equal(t, "internal error", Message(cause))
}
