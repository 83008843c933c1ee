package service

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Domain errors. Expected failures are returned inside result values so callers
// can render a specific message; only ErrStoreUnavailable travels as an error.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrItemNotFound      = errors.New("item not found")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrBettingClosed     = errors.New("betting is closed")
	ErrInvalidBet        = errors.New("invalid bet")
	ErrSessionNotFound   = errors.New("session not found")
	ErrAlreadySettled    = errors.New("session already settled")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrSelfGift          = errors.New("cannot gift an item to yourself")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// storeError marks a persistence failure. Both ErrStoreUnavailable and the
// cause stay reachable through errors.Is.
func storeError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreUnavailable, op, err)
}

// logStoreError logs a failed store operation and returns it wrapped with
// ErrStoreUnavailable. Errors that are already wrapped pass through unchanged.
func logStoreError(op string, fields log.Fields, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if fields == nil {
		fields = log.Fields{}
	}
	fields["operation"] = op
	fields["error"] = err
	log.WithFields(fields).Error("Store operation failed")
	return storeError(op, err)
}
