package bot

import (
	"errors"

	"economy/service"
)

// errorMessage turns a domain error into text for the invoker
func errorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		return "You don't have enough coins for that."
	case errors.Is(err, service.ErrItemNotFound):
		return "That item isn't in the shop."
	case errors.Is(err, service.ErrAlreadyOwned):
		return "That item is already owned."
	case errors.Is(err, service.ErrSelfGift):
		return "You can't gift an item to yourself."
	case errors.Is(err, service.ErrBettingClosed):
		return "Betting on this table is closed."
	case errors.Is(err, service.ErrInvalidBet):
		return "That bet isn't valid."
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrAlreadySettled):
		return "This table has already been settled."
	case errors.Is(err, service.ErrInvalidAmount):
		return "Amount must be positive."
	default:
		return "Something went wrong. Please try again."
	}
}
