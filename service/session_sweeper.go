package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// SessionSweeper settles sessions whose betting window has passed and drops
// the ones nobody bet on
type SessionSweeper struct {
	sessions   *SessionStore
	settlement SettlementService
	interval   time.Duration
}

// NewSessionSweeper creates a sweeper that runs every interval
func NewSessionSweeper(sessions *SessionStore, settlement SettlementService, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sessions:   sessions,
		settlement: settlement,
		interval:   interval,
	}
}

// Sweep processes every expired session once and returns how many it settled
func (w *SessionSweeper) Sweep(ctx context.Context) int {
	settled := 0
	for _, key := range w.sessions.Expired() {
		cancelled, err := w.sessions.Cancel(ctx, key)
		if err != nil {
			// Discarded by someone else since Expired ran
			continue
		}
		if cancelled {
			continue
		}

		if _, err := w.settlement.SpinAndSettle(ctx, key); err != nil {
			log.WithFields(log.Fields{
				"sessionKey": key,
				"error":      err,
			}).Error("Failed to settle expired session")
			continue
		}
		settled++
	}
	return settled
}

// Start runs the sweeper in the background. The returned function stops it.
func (w *SessionSweeper) Start(ctx context.Context) func() {
	ticker := time.NewTicker(w.interval)
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Session sweeper started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Session sweeper shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Session sweeper shutting down (stop requested)...")
				return
			case <-ticker.C:
				w.Sweep(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}
