package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"economy/database"
	"economy/models"

	"github.com/jackc/pgx/v5"
)

// SettlementRepository implements the SettlementRepository interface
type SettlementRepository struct {
	q queryable
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *database.DB) *SettlementRepository {
	return &SettlementRepository{q: db.Pool}
}

// newSettlementRepositoryWithTx creates a new settlement repository with a transaction
func newSettlementRepositoryWithTx(tx queryable) *SettlementRepository {
	return &SettlementRepository{q: tx}
}

// Claim inserts the settlement row for a session key. A concurrent claim of
// the same key waits on the primary key and then inserts nothing.
func (r *SettlementRepository) Claim(ctx context.Context, record *models.SettlementRecord) (bool, error) {
	resultsJSON, err := marshalResults(record.Results)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO settled_sessions (session_key, game_type, outcome, total_payout, winners, losers, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_key) DO NOTHING
		RETURNING settled_at
	`

	err = r.q.QueryRow(ctx, query,
		record.SessionKey,
		record.GameType,
		record.Outcome,
		record.TotalPayout,
		record.Winners,
		record.Losers,
		resultsJSON,
	).Scan(&record.SettledAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim settlement for session %s: %w", record.SessionKey, err)
	}

	return true, nil
}

// SaveResults stores the participant results of a claimed session
func (r *SettlementRepository) SaveResults(ctx context.Context, record *models.SettlementRecord) error {
	resultsJSON, err := marshalResults(record.Results)
	if err != nil {
		return err
	}

	query := `
		UPDATE settled_sessions
		SET total_payout = $2, winners = $3, losers = $4, results = $5
		WHERE session_key = $1
	`

	result, err := r.q.Exec(ctx, query, record.SessionKey, record.TotalPayout, record.Winners, record.Losers, resultsJSON)
	if err != nil {
		return fmt.Errorf("failed to save settlement results for session %s: %w", record.SessionKey, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("settlement for session %s not claimed", record.SessionKey)
	}

	return nil
}

// Get retrieves the settlement record for a session key
func (r *SettlementRepository) Get(ctx context.Context, sessionKey string) (*models.SettlementRecord, error) {
	query := `
		SELECT session_key, game_type, outcome, total_payout, winners, losers, results, settled_at
		FROM settled_sessions
		WHERE session_key = $1
	`

	var record models.SettlementRecord
	var resultsJSON []byte
	err := r.q.QueryRow(ctx, query, sessionKey).Scan(
		&record.SessionKey,
		&record.GameType,
		&record.Outcome,
		&record.TotalPayout,
		&record.Winners,
		&record.Losers,
		&resultsJSON,
		&record.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement for session %s: %w", sessionKey, err)
	}

	if err := json.Unmarshal(resultsJSON, &record.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement results: %w", err)
	}

	return &record, nil
}

func marshalResults(results []models.ParticipantResult) ([]byte, error) {
	if results == nil {
		results = []models.ParticipantResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement results: %w", err)
	}
	return data, nil
}
