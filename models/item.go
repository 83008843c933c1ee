package models

import (
	"time"
)

// ItemCategory groups catalog items by what owning them does
type ItemCategory string

const (
	ItemCategoryCosmetic ItemCategory = "cosmetic"
	ItemCategoryTitle    ItemCategory = "title"
	ItemCategoryBoost    ItemCategory = "boost"  // consumed on purchase, activates the daily boost
	ItemCategoryShield   ItemCategory = "shield" // consumed on purchase, adds a streak shield
)

// IsConsumable returns true for items that apply an effect instead of being owned
func (c ItemCategory) IsConsumable() bool {
	return c == ItemCategoryBoost || c == ItemCategoryShield
}

// Item is an entry in the shop catalog
type Item struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	Category    ItemCategory `db:"category"`
	Price       int64        `db:"price"`
	Description string       `db:"description"`
	CreatedAt   time.Time    `db:"created_at"`
}

// AcquisitionMethod records how an item came to be owned
type AcquisitionMethod string

const (
	AcquisitionMethodPurchase AcquisitionMethod = "purchase"
	AcquisitionMethodGift     AcquisitionMethod = "gift"
)

// Ownership links a user to an item. At most one row exists per (UserID, ItemID).
type Ownership struct {
	UserID       string            `db:"user_id"`
	ItemID       string            `db:"item_id"`
	Method       AcquisitionMethod `db:"method"`
	SourceUserID *string           `db:"source_user_id"`
	AcquiredAt   time.Time         `db:"acquired_at"`
}

// ExchangeRecord is the immutable history entry of a gift
type ExchangeRecord struct {
	ID          int64     `db:"id"`
	SenderID    string    `db:"sender_id"`
	RecipientID string    `db:"recipient_id"`
	ItemID      string    `db:"item_id"`
	Cost        int64     `db:"cost"`
	Message     *string   `db:"message"`
	CreatedAt   time.Time `db:"created_at"`
}

// GiftRequest is a wishlist entry a user leaves for others to fulfil
type GiftRequest struct {
	ID          int64      `db:"id"`
	UserID      string     `db:"user_id"`
	ItemID      string     `db:"item_id"`
	Note        string     `db:"note"`
	FulfilledBy *string    `db:"fulfilled_by"`
	CreatedAt   time.Time  `db:"created_at"`
	FulfilledAt *time.Time `db:"fulfilled_at"`
}

// IsOpen returns true while nobody has gifted the requested item
func (r *GiftRequest) IsOpen() bool {
	return r.FulfilledBy == nil
}

// DefaultCatalog is the item set seeded into a fresh store
func DefaultCatalog() []*Item {
	return []*Item{
		{ID: "golden-dice", Name: "Golden Dice", Category: ItemCategoryCosmetic, Price: 300, Description: "A pair of dice that never rolls snake eyes. Probably."},
		{ID: "lucky-cat", Name: "Lucky Cat", Category: ItemCategoryCosmetic, Price: 450, Description: "Waves at every winner."},
		{ID: "velvet-chips", Name: "Velvet Chip Stack", Category: ItemCategoryCosmetic, Price: 800, Description: "Soft to the touch, heavy in the pocket."},
		{ID: "title-high-roller", Name: "High Roller", Category: ItemCategoryTitle, Price: 2500, Description: "Shown next to your name on the leaderboard."},
		{ID: "title-croupier", Name: "Croupier", Category: ItemCategoryTitle, Price: 1200, Description: "For those who spin more than they win."},
		{ID: "daily-boost", Name: "Daily Boost", Category: ItemCategoryBoost, Price: 200, Description: "Doubles your daily bonus for 24 hours."},
		{ID: "streak-shield", Name: "Streak Shield", Category: ItemCategoryShield, Price: 250, Description: "Absorbs one loss without breaking your streak."},
	}
}
