package models

// BetCategory identifies what a roulette bet covers
type BetCategory string

const (
	BetCategoryRed      BetCategory = "red"
	BetCategoryBlack    BetCategory = "black"
	BetCategoryEven     BetCategory = "even"
	BetCategoryOdd      BetCategory = "odd"
	BetCategoryLow      BetCategory = "low"  // 1-18
	BetCategoryHigh     BetCategory = "high" // 19-36
	BetCategoryDozen1   BetCategory = "dozen1"
	BetCategoryDozen2   BetCategory = "dozen2"
	BetCategoryDozen3   BetCategory = "dozen3"
	BetCategoryStraight BetCategory = "straight"
)

// PayoutMultiplier returns the profit units paid per unit staked, or 0 for an
// unknown category
func (c BetCategory) PayoutMultiplier() int64 {
	switch c {
	case BetCategoryRed, BetCategoryBlack, BetCategoryEven, BetCategoryOdd, BetCategoryLow, BetCategoryHigh:
		return 1
	case BetCategoryDozen1, BetCategoryDozen2, BetCategoryDozen3:
		return 2
	case BetCategoryStraight:
		return 35
	default:
		return 0
	}
}

// IsValid reports whether the category is known
func (c BetCategory) IsValid() bool {
	return c.PayoutMultiplier() > 0
}

// RequiresTarget reports whether the bet needs an exact value
func (c BetCategory) RequiresTarget() bool {
	return c == BetCategoryStraight
}

// Bet is a single wager inside a session
type Bet struct {
	Category         BetCategory `json:"category"`
	Amount           int64       `json:"amount"`
	PayoutMultiplier int64       `json:"payout_multiplier"`
	Target           *int        `json:"target,omitempty"`
}

// PlayerStake holds every bet one user placed in a session
type PlayerStake struct {
	DisplayName string `json:"display_name"`
	Bets        []Bet  `json:"bets"`
	TotalStaked int64  `json:"total_staked"`
}

// AddBet appends a bet and keeps TotalStaked in step with it
func (p *PlayerStake) AddBet(bet Bet) {
	p.Bets = append(p.Bets, bet)
	p.TotalStaked += bet.Amount
}

// Clone returns a deep copy of the stake
func (p *PlayerStake) Clone() *PlayerStake {
	c := &PlayerStake{
		DisplayName: p.DisplayName,
		TotalStaked: p.TotalStaked,
		Bets:        make([]Bet, len(p.Bets)),
	}
	for i, bet := range p.Bets {
		c.Bets[i] = bet
		if bet.Target != nil {
			target := *bet.Target
			c.Bets[i].Target = &target
		}
	}
	return c
}
