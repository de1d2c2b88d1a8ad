package service

import (
	"context"
	"log/slog"
	"time"

	"clinic-booking-api/internal/store"
)

// Housekeeping periodically purges used or expired reset tokens and
// expired sessions.
type Housekeeping struct {
	tokens   store.ResetTokens
	sessions store.Sessions
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeping defaults interval to one hour.
func NewHousekeeping(st store.Store, logger *slog.Logger, interval time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeping{
		tokens:   st.ResetTokens(),
		sessions: st.Sessions(),
		logger:   logger,
		interval: interval,
		now:      nowFunc(nil),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a first cleanup right away, then one per interval.
func (h *Housekeeping) Start() {
	go h.run()
	h.logger.Info("housekeeping started", "interval", h.interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (h *Housekeeping) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.logger.Info("housekeeping stopped")
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Cleanup(context.Background())
	for {
		select {
		case <-ticker.C:
			h.Cleanup(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. One failing purge does not stop the other.
func (h *Housekeeping) Cleanup(ctx context.Context) {
	now := h.now()

	tokens, err := h.tokens.Purge(ctx, now)
	if err != nil {
		h.logger.Error("failed to purge reset tokens", "error", err)
	}
	sessions, err := h.sessions.Purge(ctx, now)
	if err != nil {
		h.logger.Error("failed to purge sessions", "error", err)
	}

	h.logger.Info("housekeeping cleanup completed", "reset_tokens", tokens, "sessions", sessions)
}
