package service

import (
	"math/rand"
	"testing"

	"economy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWith(stakes map[string][]models.Bet) *models.Session {
	session := &models.Session{
		Key:          "s1",
		GameType:     models.GameTypeRoulette,
		Phase:        models.SessionPhaseResolving,
		Participants: make(map[string]*models.PlayerStake),
	}
	for userID, bets := range stakes {
		stake := &models.PlayerStake{DisplayName: userID}
		for _, bet := range bets {
			bet.PayoutMultiplier = bet.Category.PayoutMultiplier()
			stake.AddBet(bet)
		}
		session.Participants[userID] = stake
	}
	return session
}

func TestRouletteColours(t *testing.T) {
	reds := 0
	blacks := 0
	for n := 1; n <= 36; n++ {
		assert.NotEqual(t, IsRed(n), IsBlack(n), "pocket %d", n)
		if IsRed(n) {
			reds++
		} else {
			blacks++
		}
	}
	assert.Equal(t, 18, reds)
	assert.Equal(t, 18, blacks)
	assert.False(t, IsRed(0))
	assert.False(t, IsBlack(0))
}

func TestBetWins(t *testing.T) {
	tests := []struct {
		name     string
		bet      models.Bet
		outcome  int
		expected bool
	}{
		{"red on red", models.Bet{Category: models.BetCategoryRed}, 1, true},
		{"red on black", models.Bet{Category: models.BetCategoryRed}, 2, false},
		{"black on black", models.Bet{Category: models.BetCategoryBlack}, 2, true},
		{"even on even", models.Bet{Category: models.BetCategoryEven}, 2, true},
		{"odd on even", models.Bet{Category: models.BetCategoryOdd}, 2, false},
		{"low edge", models.Bet{Category: models.BetCategoryLow}, 18, true},
		{"high edge", models.Bet{Category: models.BetCategoryHigh}, 19, true},
		{"first dozen", models.Bet{Category: models.BetCategoryDozen1}, 12, true},
		{"second dozen", models.Bet{Category: models.BetCategoryDozen2}, 13, true},
		{"third dozen miss", models.Bet{Category: models.BetCategoryDozen3}, 24, false},
		{"straight hit", models.Bet{Category: models.BetCategoryStraight, Target: intPtr(7)}, 7, true},
		{"straight miss", models.Bet{Category: models.BetCategoryStraight, Target: intPtr(7)}, 8, false},
		{"zero loses red", models.Bet{Category: models.BetCategoryRed}, 0, false},
		{"zero loses even", models.Bet{Category: models.BetCategoryEven}, 0, false},
		{"zero loses low", models.Bet{Category: models.BetCategoryLow}, 0, false},
		{"straight zero wins", models.Bet{Category: models.BetCategoryStraight, Target: intPtr(0)}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BetWins(tt.bet, tt.outcome))
		})
	}
}

func TestPayoutCalculator_Settle(t *testing.T) {
	calc := NewPayoutCalculator(rand.NewSource(1))

	t.Run("single red bet wins even money", func(t *testing.T) {
		session := sessionWith(map[string][]models.Bet{
			"u1": {{Category: models.BetCategoryRed, Amount: 100}},
		})

		result := calc.Settle(session, 1)
		require.Len(t, result.Winners, 1)
		assert.Empty(t, result.Losers)
		assert.Equal(t, int64(200), result.Winners[0].Winnings)
		assert.Equal(t, int64(100), result.Winners[0].Net)
		assert.Equal(t, int64(200), result.TotalPayout)
	})

	t.Run("straight bet pays thirty five to one", func(t *testing.T) {
		session := sessionWith(map[string][]models.Bet{
			"u1": {{Category: models.BetCategoryStraight, Amount: 10, Target: intPtr(7)}},
		})

		result := calc.Settle(session, 7)
		require.Len(t, result.Winners, 1)
		assert.Equal(t, int64(360), result.Winners[0].Winnings)
		assert.Equal(t, int64(350), result.Winners[0].Net)
	})

	t.Run("mixed bets net out", func(t *testing.T) {
		session := sessionWith(map[string][]models.Bet{
			"u1": {
				{Category: models.BetCategoryRed, Amount: 50},
				{Category: models.BetCategoryEven, Amount: 30},
				{Category: models.BetCategoryDozen1, Amount: 25},
			},
		})

		result := calc.Settle(session, 2)
		require.Len(t, result.Winners, 1)
		winner := result.Winners[0]
		assert.Equal(t, int64(105), winner.TotalStaked)
		assert.Equal(t, int64(135), winner.Winnings)
		assert.Equal(t, int64(30), winner.Net)
		assert.Equal(t, 2, winner.BetsWon)
	})

	t.Run("break even counts as a loss", func(t *testing.T) {
		session := sessionWith(map[string][]models.Bet{
			"u1": {
				{Category: models.BetCategoryRed, Amount: 50},
				{Category: models.BetCategoryBlack, Amount: 50},
			},
		})

		result := calc.Settle(session, 3)
		assert.Empty(t, result.Winners)
		require.Len(t, result.Losers, 1)
		assert.Equal(t, int64(0), result.Losers[0].Net)
	})

	t.Run("zero sweeps outside bets", func(t *testing.T) {
		session := sessionWith(map[string][]models.Bet{
			"a": {{Category: models.BetCategoryRed, Amount: 10}},
			"b": {{Category: models.BetCategoryEven, Amount: 20}},
			"c": {{Category: models.BetCategoryLow, Amount: 30}},
		})

		result := calc.Settle(session, 0)
		assert.Empty(t, result.Winners)
		require.Len(t, result.Losers, 3)
		assert.Equal(t, "a", result.Losers[0].UserID)
		assert.Equal(t, "b", result.Losers[1].UserID)
		assert.Equal(t, "c", result.Losers[2].UserID)
		assert.Equal(t, int64(-30), result.Losers[2].Net)
		assert.Equal(t, int64(0), result.TotalPayout)
	})

	t.Run("identical inputs give identical results", func(t *testing.T) {
		session := sessionWith(map[string][]models.Bet{
			"x": {{Category: models.BetCategoryOdd, Amount: 10}},
			"y": {{Category: models.BetCategoryHigh, Amount: 10}},
		})

		assert.Equal(t, calc.Settle(session, 21), calc.Settle(session, 21))
	})
}

func TestPayoutCalculator_SpinOutcomeStaysOnTheWheel(t *testing.T) {
	calc := NewPayoutCalculator(rand.NewSource(42))
	seen := make(map[int]bool)
	for i := 0; i < 5000; i++ {
		outcome := calc.SpinOutcome()
		require.True(t, ValidOutcome(outcome), "outcome %d", outcome)
		seen[outcome] = true
	}
	assert.Len(t, seen, RouletteMaxValue+1)
}

func TestValidOutcome(t *testing.T) {
	assert.True(t, ValidOutcome(0))
	assert.True(t, ValidOutcome(36))
	assert.False(t, ValidOutcome(-1))
	assert.False(t, ValidOutcome(37))
}
