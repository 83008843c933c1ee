package models

import (
	"time"
)

// TransactionKind classifies a ledger entry
type TransactionKind string

const (
	TransactionKindAward     TransactionKind = "award"
	TransactionKindSpend     TransactionKind = "spend"
	TransactionKindAdmin     TransactionKind = "admin"
	TransactionKindDaily     TransactionKind = "daily"
	TransactionKindWagerLoss TransactionKind = "wager_loss"
	TransactionKindGift      TransactionKind = "gift"
	TransactionKindPurchase  TransactionKind = "purchase"
)

// Transaction is an append-only ledger entry. BalanceAfter is always
// BalanceBefore + Amount.
type Transaction struct {
	ID            int64           `db:"id"`
	UserID        string          `db:"user_id"`
	Amount        int64           `db:"amount"`
	Reason        string          `db:"reason"`
	Kind          TransactionKind `db:"kind"`
	BalanceBefore int64           `db:"balance_before"`
	BalanceAfter  int64           `db:"balance_after"`
	Metadata      map[string]any  `db:"metadata"`
	CreatedAt     time.Time       `db:"created_at"`
}
