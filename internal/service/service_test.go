package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"clinic-booking-api/internal/apperr"
	"clinic-booking-api/internal/model"
	"clinic-booking-api/internal/store/memory"
)

const testSecret = "test-secret"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeNotifier struct {
	mu    sync.Mutex
	to    []string
	links []string
	err   error
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, to)
	n.links = append(n.links, link)
	return n.err
}

// lastToken pulls the raw token out of the most recent link.
func (n *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.links)
	u, err := url.Parse(n.links[len(n.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type fixture struct {
	st       *memory.Store
	clock    *clock
	notifier *fakeNotifier
	accounts *AccountService
	resets   *ResetService
	booking  *BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	// JWT expiry is checked against the wall clock, so stay near it
	c := &clock{t: time.Now().UTC().Truncate(time.Millisecond)}
	n := &fakeNotifier{}
	return &fixture{
		st:       st,
		clock:    c,
		notifier: n,
		accounts: NewAccountService(st, AccountConfig{
			JWTSecret:  testSecret,
			SessionTTL: 24 * time.Hour,
			BcryptCost: bcrypt.MinCost,
			Now:        c.Now,
		}),
		resets: NewResetService(st, n, ResetConfig{
			BaseURL:    "http://app.test",
			TokenTTL:   24 * time.Hour,
			BcryptCost: bcrypt.MinCost,
			Now:        c.Now,
		}),
		booking: NewBookingService(st, c.Now),
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) *model.User {
	t.Helper()
	u, err := f.accounts.Register(context.Background(), RegisterInput{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		FirstName:       "Test",
		LastName:        "User",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) doctorWithSlots(t *testing.T, name string, n int) (*model.Doctor, []*model.Slot) {
	t.Helper()
	ctx := context.Background()
	d := &model.Doctor{ID: "doc-" + name, Name: name, Specialization: "General"}
	require.NoError(t, f.st.Doctors().CreateDoctor(ctx, d))

	var slots []*model.Slot
	for i := 0; i < n; i++ {
		start := f.clock.Now().Add(time.Duration(i+1) * 24 * time.Hour)
		sl := &model.Slot{
			ID:        d.ID + "-slot-" + string(rune('a'+i)),
			DoctorID:  d.ID,
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		}
		require.NoError(t, f.st.Slots().CreateSlot(ctx, sl))
		slots = append(slots, sl)
	}
	return d, slots
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, ae.Kind, "error: %v", err)
}
