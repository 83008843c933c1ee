package repository

import (
	"context"
	"errors"
	"fmt"

	"economy/database"
	"economy/models"

	"github.com/jackc/pgx/v5"
)

// ItemRepository implements the ItemRepository interface
type ItemRepository struct {
	q queryable
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{q: db.Pool}
}

// newItemRepositoryWithTx creates a new item repository with a transaction
func newItemRepositoryWithTx(tx queryable) *ItemRepository {
	return &ItemRepository{q: tx}
}

// GetByID retrieves a catalog item
func (r *ItemRepository) GetByID(ctx context.Context, itemID string) (*models.Item, error) {
	query := `
		SELECT id, name, category, price, description, created_at
		FROM items
		WHERE id = $1
	`

	var item models.Item
	err := r.q.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.Name,
		&item.Category,
		&item.Price,
		&item.Description,
		&item.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}

	return &item, nil
}

// List returns the whole catalog
func (r *ItemRepository) List(ctx context.Context) ([]*models.Item, error) {
	query := `
		SELECT id, name, category, price, description, created_at
		FROM items
		ORDER BY price ASC, id ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.Description, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// Upsert inserts or replaces a catalog item
func (r *ItemRepository) Upsert(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (id, name, category, price, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    category = EXCLUDED.category,
		    price = EXCLUDED.price,
		    description = EXCLUDED.description
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query, item.ID, item.Name, item.Category, item.Price, item.Description).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}

	return nil
}

// SeedCatalog upserts the given items in a single transaction
func SeedCatalog(ctx context.Context, db *database.DB, items []*models.Item) error {
	return db.WithTransaction(ctx, func(tx pgx.Tx) error {
		repo := newItemRepositoryWithTx(tx)
		for _, item := range items {
			if err := repo.Upsert(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}
