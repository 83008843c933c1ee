package models

import (
	"time"
)

// ParticipantResult is the settled outcome for one participant
type ParticipantResult struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalStaked int64  `json:"total_staked"`
	Winnings    int64  `json:"winnings"` // sum of winning bet payouts, stakes included
	Net         int64  `json:"net"`      // winnings - total staked
	BetsWon     int    `json:"bets_won"`
	Credited    int64  `json:"credited,omitempty"` // ledger credit after streak bonuses
	Debited     int64  `json:"debited,omitempty"`  // ledger debit after clamping
	ShieldUsed  bool   `json:"shield_used,omitempty"`
}

// IsWinner returns true when the participant made a profit
func (r ParticipantResult) IsWinner() bool {
	return r.Net > 0
}

// PayoutResult is the output of the payout calculator for one outcome
type PayoutResult struct {
	Outcome     int                 `json:"outcome"`
	Winners     []ParticipantResult `json:"winners"`
	Losers      []ParticipantResult `json:"losers"`
	TotalPayout int64               `json:"total_payout"` // sum of winning bet payouts
}

// SettlementRecord is persisted once per session key and guards against paying
// a session twice
type SettlementRecord struct {
	SessionKey  string              `db:"session_key"`
	GameType    string              `db:"game_type"`
	Outcome     int                 `db:"outcome"`
	TotalPayout int64               `db:"total_payout"`
	Winners     int                 `db:"winners"`
	Losers      int                 `db:"losers"`
	Results     []ParticipantResult `db:"results"`
	SettledAt   time.Time           `db:"settled_at"`
}
