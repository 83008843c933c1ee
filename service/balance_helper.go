package service

import (
	"context"
	"fmt"

	"economy/events"
	"economy/models"
)

// recordBalanceChange appends the transaction for a balance write and publishes
// the matching event on the unit of work's bus. Every ledger write goes through here.
func recordBalanceChange(ctx context.Context, uow UnitOfWork, txn *models.Transaction) error {
	if txn.BalanceAfter != txn.BalanceBefore+txn.Amount {
		return fmt.Errorf("transaction for %s does not balance: %d + %d != %d",
			txn.UserID, txn.BalanceBefore, txn.Amount, txn.BalanceAfter)
	}

	if err := uow.TransactionRepository().Append(ctx, txn); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	// Flushed only after the unit of work commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:     txn.UserID,
		OldBalance: txn.BalanceBefore,
		NewBalance: txn.BalanceAfter,
		Amount:     txn.Amount,
		Kind:       txn.Kind,
		Reason:     txn.Reason,
	})
	return nil
}
