package models

import (
	"sort"
	"time"
)

// SessionPhase represents where a wagering session is in its lifecycle
type SessionPhase string

const (
	SessionPhaseWaiting   SessionPhase = "waiting"
	SessionPhaseBetting   SessionPhase = "betting"
	SessionPhaseResolving SessionPhase = "resolving"
	SessionPhaseSettled   SessionPhase = "settled"
)

// IsTerminal returns true once the session has been settled
func (p SessionPhase) IsTerminal() bool {
	return p == SessionPhaseSettled
}

// GameTypeRoulette is the only wagering game the session store runs today
const GameTypeRoulette = "roulette"

// Session is one in-progress multi-player wagering game. Sessions live only in
// memory and are discarded after settlement.
type Session struct {
	Key           string                  `json:"key"`
	GameType      string                  `json:"game_type"`
	Phase         SessionPhase            `json:"phase"`
	Participants  map[string]*PlayerStake `json:"participants"`
	StartTime     time.Time               `json:"start_time"`
	BettingWindow time.Duration           `json:"betting_window"`
	ChannelID     string                  `json:"channel_id"`
	Outcome       *int                    `json:"outcome,omitempty"` // set once settled
}

// Deadline returns the instant the betting window closes
func (s *Session) Deadline() time.Time {
	return s.StartTime.Add(s.BettingWindow)
}

// WindowOpen reports whether now is still inside the betting window
func (s *Session) WindowOpen(now time.Time) bool {
	return now.Sub(s.StartTime) < s.BettingWindow
}

// TotalPot returns the sum of every participant's stake
func (s *Session) TotalPot() int64 {
	var total int64
	for _, stake := range s.Participants {
		total += stake.TotalStaked
	}
	return total
}

// ParticipantIDs returns the participant user IDs in ascending order
func (s *Session) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy that can be read without holding the session lock
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = make(map[string]*PlayerStake, len(s.Participants))
	for id, stake := range s.Participants {
		c.Participants[id] = stake.Clone()
	}
	if s.Outcome != nil {
		outcome := *s.Outcome
		c.Outcome = &outcome
	}
	return &c
}
