package repository

import (
	"context"
	"fmt"

	"economy/database"
	"economy/models"
)

// ExchangeRepository implements the ExchangeRepository interface
type ExchangeRepository struct {
	q queryable
}

// NewExchangeRepository creates a new exchange repository
func NewExchangeRepository(db *database.DB) *ExchangeRepository {
	return &ExchangeRepository{q: db.Pool}
}

// newExchangeRepositoryWithTx creates a new exchange repository with a transaction
func newExchangeRepositoryWithTx(tx queryable) *ExchangeRepository {
	return &ExchangeRepository{q: tx}
}

// Create appends an exchange record
func (r *ExchangeRepository) Create(ctx context.Context, record *models.ExchangeRecord) error {
	query := `
		INSERT INTO exchanges (sender_id, recipient_id, item_id, cost, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		record.SenderID,
		record.RecipientID,
		record.ItemID,
		record.Cost,
		record.Message,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create exchange from %s to %s: %w", record.SenderID, record.RecipientID, err)
	}

	return nil
}

// ListByUser returns exchanges the user sent or received
func (r *ExchangeRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ExchangeRecord, error) {
	query := `
		SELECT id, sender_id, recipient_id, item_id, cost, message, created_at
		FROM exchanges
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges for %s: %w", userID, err)
	}
	defer rows.Close()

	var records []*models.ExchangeRecord
	for rows.Next() {
		var record models.ExchangeRecord
		err := rows.Scan(
			&record.ID,
			&record.SenderID,
			&record.RecipientID,
			&record.ItemID,
			&record.Cost,
			&record.Message,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchanges: %w", err)
	}

	return records, nil
}
