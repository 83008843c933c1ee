package repository

import (
	"context"
	"errors"
	"fmt"

	"economy/database"
	"economy/models"
	"economy/service"

	"github.com/jackc/pgx/v5"
)

// OwnershipRepository implements the OwnershipRepository interface
type OwnershipRepository struct {
	q queryable
}

// NewOwnershipRepository creates a new ownership repository
func NewOwnershipRepository(db *database.DB) *OwnershipRepository {
	return &OwnershipRepository{q: db.Pool}
}

// newOwnershipRepositoryWithTx creates a new ownership repository with a transaction
func newOwnershipRepositoryWithTx(tx queryable) *OwnershipRepository {
	return &OwnershipRepository{q: tx}
}

// Get retrieves the ownership record for a user and item
func (r *OwnershipRepository) Get(ctx context.Context, userID, itemID string) (*models.Ownership, error) {
	query := `
		SELECT user_id, item_id, method, source_user_id, acquired_at
		FROM ownerships
		WHERE user_id = $1 AND item_id = $2
	`

	var ownership models.Ownership
	err := r.q.QueryRow(ctx, query, userID, itemID).Scan(
		&ownership.UserID,
		&ownership.ItemID,
		&ownership.Method,
		&ownership.SourceUserID,
		&ownership.AcquiredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ownership of %s by %s: %w", itemID, userID, err)
	}

	return &ownership, nil
}

// Create records a new ownership. The primary key makes duplicates a no-op
// that is reported as ErrAlreadyOwned.
func (r *OwnershipRepository) Create(ctx context.Context, ownership *models.Ownership) error {
	query := `
		INSERT INTO ownerships (user_id, item_id, method, source_user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, item_id) DO NOTHING
		RETURNING acquired_at
	`

	err := r.q.QueryRow(ctx, query,
		ownership.UserID,
		ownership.ItemID,
		ownership.Method,
		ownership.SourceUserID,
	).Scan(&ownership.AcquiredAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrAlreadyOwned
	}
	if err != nil {
		return fmt.Errorf("failed to create ownership of %s for %s: %w", ownership.ItemID, ownership.UserID, err)
	}

	return nil
}

// ListByUser returns every item a user owns
func (r *OwnershipRepository) ListByUser(ctx context.Context, userID string) ([]*models.Ownership, error) {
	query := `
		SELECT user_id, item_id, method, source_user_id, acquired_at
		FROM ownerships
		WHERE user_id = $1
		ORDER BY acquired_at ASC, item_id ASC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ownerships for %s: %w", userID, err)
	}
	defer rows.Close()

	var ownerships []*models.Ownership
	for rows.Next() {
		var ownership models.Ownership
		if err := rows.Scan(&ownership.UserID, &ownership.ItemID, &ownership.Method, &ownership.SourceUserID, &ownership.AcquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan ownership: %w", err)
		}
		ownerships = append(ownerships, &ownership)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ownerships: %w", err)
	}

	return ownerships, nil
}
