package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"economy/database"
	"economy/models"

	"github.com/jackc/pgx/v5"
)

const giftRequestColumns = `id, user_id, item_id, note, fulfilled_by, created_at, fulfilled_at`

// GiftRequestRepository implements the GiftRequestRepository interface
type GiftRequestRepository struct {
	q queryable
}

// NewGiftRequestRepository creates a new gift request repository
func NewGiftRequestRepository(db *database.DB) *GiftRequestRepository {
	return &GiftRequestRepository{q: db.Pool}
}

// newGiftRequestRepositoryWithTx creates a new gift request repository with a transaction
func newGiftRequestRepositoryWithTx(tx queryable) *GiftRequestRepository {
	return &GiftRequestRepository{q: tx}
}

func scanGiftRequest(row pgx.Row) (*models.GiftRequest, error) {
	var request models.GiftRequest
	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.ItemID,
		&request.Note,
		&request.FulfilledBy,
		&request.CreatedAt,
		&request.FulfilledAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// Create adds a wishlist entry unless the user already asked for the item
func (r *GiftRequestRepository) Create(ctx context.Context, request *models.GiftRequest) (bool, error) {
	query := `
		INSERT INTO gift_requests (user_id, item_id, note)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, item_id) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query, request.UserID, request.ItemID, request.Note).Scan(&request.ID, &request.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create gift request for %s: %w", request.UserID, err)
	}

	return true, nil
}

// GetOpen returns the unfulfilled request for a user and item
func (r *GiftRequestRepository) GetOpen(ctx context.Context, userID, itemID string) (*models.GiftRequest, error) {
	query := `SELECT ` + giftRequestColumns + `
		FROM gift_requests
		WHERE user_id = $1 AND item_id = $2 AND fulfilled_by IS NULL
	`

	request, err := scanGiftRequest(r.q.QueryRow(ctx, query, userID, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open gift request for %s: %w", userID, err)
	}

	return request, nil
}

// ListByUser returns a user's wishlist
func (r *GiftRequestRepository) ListByUser(ctx context.Context, userID string) ([]*models.GiftRequest, error) {
	query := `SELECT ` + giftRequestColumns + `
		FROM gift_requests
		WHERE user_id = $1
		ORDER BY id ASC
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gift requests for %s: %w", userID, err)
	}
	defer rows.Close()

	var requests []*models.GiftRequest
	for rows.Next() {
		request, err := scanGiftRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gift request: %w", err)
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gift requests: %w", err)
	}

	return requests, nil
}

// MarkFulfilled records the gifter of an open request
func (r *GiftRequestRepository) MarkFulfilled(ctx context.Context, id int64, fulfilledBy string, at time.Time) error {
	query := `
		UPDATE gift_requests
		SET fulfilled_by = $2, fulfilled_at = $3
		WHERE id = $1 AND fulfilled_by IS NULL
	`

	result, err := r.q.Exec(ctx, query, id, fulfilledBy, at)
	if err != nil {
		return fmt.Errorf("failed to fulfil gift request %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("gift request %d not found or already fulfilled", id)
	}

	return nil
}
