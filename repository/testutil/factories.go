package testutil

import (
	"time"

	"economy/models"
)

// CreateTestAccount creates an account with the default starting balance
func CreateTestAccount(userID string) *models.Account {
	now := time.Now().UTC()
	return &models.Account{
		UserID:    userID,
		Balance:   1000,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestTransaction creates a transaction moving a balance by amount
func CreateTestTransaction(userID string, before, amount int64, kind models.TransactionKind) *models.Transaction {
	return &models.Transaction{
		UserID:        userID,
		Amount:        amount,
		Reason:        "test " + string(kind),
		Kind:          kind,
		BalanceBefore: before,
		BalanceAfter:  before + amount,
		Metadata: map[string]any{
			"test": true,
		},
	}
}

// CreateTestItem creates a cosmetic catalog item
func CreateTestItem(id string, price int64) *models.Item {
	return &models.Item{
		ID:          id,
		Name:        "Test " + id,
		Category:    models.ItemCategoryCosmetic,
		Price:       price,
		Description: "an item for tests",
	}
}

// CreateTestSettlement creates an unclaimed settlement record for a roulette session
func CreateTestSettlement(sessionKey string, outcome int) *models.SettlementRecord {
	return &models.SettlementRecord{
		SessionKey: sessionKey,
		GameType:   models.GameTypeRoulette,
		Outcome:    outcome,
	}
}
