package services

import (
	"context"
	"sync"
	"time"

	"booking-search-platform/internal/logger"
)

// StaleIndexAlerter delivers the operator-facing signal when a unit's
// index write exhausted its retries. Alerts are throttled per unit so a
// long store outage produces one email per unit per window, not one per
// failed signal.
type StaleIndexAlerter struct {
	sender EmailSender

	mu       sync.Mutex
	lastSent map[string]time.Time
	window   time.Duration
}

func NewStaleIndexAlerter(sender EmailSender) *StaleIndexAlerter {
	return &StaleIndexAlerter{
		sender:   sender,
		lastSent: make(map[string]time.Time),
		window:   time.Hour,
	}
}

// StaleIndexAlert implements the orchestrator's alert hook.
func (a *StaleIndexAlerter) StaleIndexAlert(ctx context.Context, unitID string, cause error) {
	if a.shouldSkip(unitID) {
		return
	}

	if err := a.sender.SendStaleIndexAlert(unitID, cause); err != nil {
		logger.Error("Failed to send stale-index alert", "unit_id", unitID, "error", err)
		return
	}
	logger.Info("Stale-index alert sent", "unit_id", unitID)
}

func (a *StaleIndexAlerter) shouldSkip(unitID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if last, ok := a.lastSent[unitID]; ok && now.Sub(last) < a.window {
		return true
	}
	a.lastSent[unitID] = now
	return false
}
