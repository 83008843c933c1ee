package service

import (
	"math/rand"
	"sync"
	"time"

	"economy/models"
)

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// IsRed reports whether n is a red pocket. Zero is neither red nor black.
func IsRed(n int) bool {
	return redNumbers[n]
}

// IsBlack reports whether n is a black pocket
func IsBlack(n int) bool {
	return n >= 1 && n <= RouletteMaxValue && !redNumbers[n]
}

// BetWins reports whether bet wins against outcome
func BetWins(bet models.Bet, outcome int) bool {
	if outcome == 0 {
		return bet.Category == models.BetCategoryStraight && bet.Target != nil && *bet.Target == 0
	}

	switch bet.Category {
	case models.BetCategoryRed:
		return IsRed(outcome)
	case models.BetCategoryBlack:
		return IsBlack(outcome)
	case models.BetCategoryEven:
		return outcome%2 == 0
	case models.BetCategoryOdd:
		return outcome%2 == 1
	case models.BetCategoryLow:
		return outcome >= 1 && outcome <= 18
	case models.BetCategoryHigh:
		return outcome >= 19 && outcome <= 36
	case models.BetCategoryDozen1:
		return outcome >= 1 && outcome <= 12
	case models.BetCategoryDozen2:
		return outcome >= 13 && outcome <= 24
	case models.BetCategoryDozen3:
		return outcome >= 25 && outcome <= 36
	case models.BetCategoryStraight:
		return bet.Target != nil && *bet.Target == outcome
	default:
		return false
	}
}

// ValidOutcome reports whether outcome is a pocket on the wheel
func ValidOutcome(outcome int) bool {
	return outcome >= RouletteMinValue && outcome <= RouletteMaxValue
}

// PayoutCalculator maps a session's bets and an outcome to winners and losers
type PayoutCalculator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPayoutCalculator creates a calculator drawing outcomes from src. A nil
// src seeds from the clock.
func NewPayoutCalculator(src rand.Source) *PayoutCalculator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &PayoutCalculator{rng: rand.New(src)}
}

// SpinOutcome draws a pocket uniformly
func (c *PayoutCalculator) SpinOutcome() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(RouletteMaxValue + 1)
}

// Settle computes every participant's result. It has no side effects and
// visits participants in user ID order, so identical inputs give identical results.
func (c *PayoutCalculator) Settle(session *models.Session, outcome int) *models.PayoutResult {
	result := &models.PayoutResult{
		Outcome: outcome,
		Winners: []models.ParticipantResult{},
		Losers:  []models.ParticipantResult{},
	}

	for _, userID := range session.ParticipantIDs() {
		stake := session.Participants[userID]

		participant := models.ParticipantResult{
			UserID:      userID,
			DisplayName: stake.DisplayName,
			TotalStaked: stake.TotalStaked,
		}
		for _, bet := range stake.Bets {
			if BetWins(bet, outcome) {
				participant.Winnings += bet.Amount * (bet.PayoutMultiplier + 1)
				participant.BetsWon++
			}
		}
		participant.Net = participant.Winnings - participant.TotalStaked
		result.TotalPayout += participant.Winnings

		if participant.IsWinner() {
			result.Winners = append(result.Winners, participant)
		} else {
			result.Losers = append(result.Losers, participant)
		}
	}

	return result
}
