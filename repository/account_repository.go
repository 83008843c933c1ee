package repository

import (
	"context"
	"errors"
	"fmt"

	"economy/database"
	"economy/models"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `
	id, user_id, balance, last_daily_claim, win_streak, last_win_at,
	total_earned, daily_boost_expiry, streak_shields, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Balance,
		&account.LastDailyClaim,
		&account.WinStreak,
		&account.LastWinAt,
		&account.TotalEarned,
		&account.DailyBoostExpiry,
		&account.StreakShields,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Get retrieves an account by user ID
func (r *AccountRepository) Get(ctx context.Context, userID string) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE user_id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", userID, err)
	}

	return account, nil
}

// GetOrCreate retrieves an account, creating it with the initial balance if missing
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	if err := r.ensure(ctx, userID, initialBalance); err != nil {
		return nil, err
	}

	account, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s missing after insert", userID)
	}
	return account, nil
}

// GetForUpdate retrieves an account and locks its row for the rest of the transaction
func (r *AccountRepository) GetForUpdate(ctx context.Context, userID string, initialBalance int64) (*models.Account, error) {
	if err := r.ensure(ctx, userID, initialBalance); err != nil {
		return nil, err
	}

	query := `SELECT` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", userID, err)
	}

	return account, nil
}

// ensure inserts the account if it does not exist yet. Concurrent inserts of
// the same user collapse onto one row.
func (r *AccountRepository) ensure(ctx context.Context, userID string, initialBalance int64) error {
	query := `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, userID, initialBalance); err != nil {
		return fmt.Errorf("failed to create account %s: %w", userID, err)
	}
	return nil
}

// Update persists the mutable fields of an account
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET balance = $2,
		    last_daily_claim = $3,
		    win_streak = $4,
		    last_win_at = $5,
		    total_earned = $6,
		    daily_boost_expiry = $7,
		    streak_shields = $8,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		account.UserID,
		account.Balance,
		account.LastDailyClaim,
		account.WinStreak,
		account.LastWinAt,
		account.TotalEarned,
		account.DailyBoostExpiry,
		account.StreakShields,
	).Scan(&account.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("account %s not found", account.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", account.UserID, err)
	}

	return nil
}

// DeductBalance subtracts amount only when the balance covers it
func (r *AccountRepository) DeductBalance(ctx context.Context, userID string, amount int64) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`

	var newBalance int64
	err := r.q.QueryRow(ctx, query, userID, amount).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to deduct balance for account %s: %w", userID, err)
	}

	return newBalance, true, nil
}

// GetTop returns the richest accounts
func (r *AccountRepository) GetTop(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		ORDER BY balance DESC, id ASC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
