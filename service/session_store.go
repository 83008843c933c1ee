package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"economy/events"
	"economy/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BetActionPrefix starts every bet action ID: bet:<category>:<amount>[:<target>]
const BetActionPrefix = "bet"

// StartOptions describes a new wagering session
type StartOptions struct {
	GameType  string
	ChannelID string
	Window    time.Duration // zero uses the store default
}

type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// SessionStore holds active wagering sessions. The map lock only guards
// membership; each session has its own lock so bets on different sessions
// never contend.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	validator     *BetValidator
	eventBus      *events.Bus
	defaultWindow time.Duration
	now           func() time.Time
}

// SessionStoreOption configures a SessionStore
type SessionStoreOption func(*SessionStore)

// WithSessionClock overrides the clock used for betting windows
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates an empty session store
func NewSessionStore(validator *BetValidator, eventBus *events.Bus, defaultWindow time.Duration, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions:      make(map[string]*sessionEntry),
		validator:     validator,
		eventBus:      eventBus,
		defaultWindow: defaultWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) emit(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Emit(ctx, event)
	}
}

func (s *SessionStore) entry(key string) *sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[key]
}

// Start opens a session for betting and returns its key with a snapshot
func (s *SessionStore) Start(ctx context.Context, opts StartOptions) (string, *models.Session) {
	window := opts.Window
	if window <= 0 {
		window = s.defaultWindow
	}
	gameType := opts.GameType
	if gameType == "" {
		gameType = models.GameTypeRoulette
	}

	session := &models.Session{
		Key:           uuid.NewString(),
		GameType:      gameType,
		Phase:         models.SessionPhaseBetting,
		Participants:  make(map[string]*models.PlayerStake),
		StartTime:     s.now(),
		BettingWindow: window,
		ChannelID:     opts.ChannelID,
	}

	s.mu.Lock()
	s.sessions[session.Key] = &sessionEntry{session: session}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"sessionKey": session.Key,
		"gameType":   gameType,
		"channelId":  opts.ChannelID,
		"window":     window,
	}).Info("Started wagering session")

	s.emit(ctx, events.SessionStartedEvent{
		SessionKey: session.Key,
		GameType:   gameType,
		ChannelID:  opts.ChannelID,
		Deadline:   session.Deadline(),
	})

	return session.Key, session.Clone()
}

// PlaceBet validates and records a bet. Rejections are reported in the
// receipt with Handled set; only store failures return an error.
func (s *SessionStore) PlaceBet(ctx context.Context, key, userID, displayName string, category models.BetCategory, amount int64, target *int) (*models.BetReceipt, error) {
	entry := s.entry(key)
	if entry == nil {
		return &models.BetReceipt{Handled: true, Reason: ErrSessionNotFound}, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	if err := s.validator.CheckSession(session, s.now()); err != nil {
		return &models.BetReceipt{Handled: true, Reason: err}, nil
	}

	bet, err := s.validator.BuildBet(category, amount, target)
	if err != nil {
		return &models.BetReceipt{Handled: true, Reason: err}, nil
	}

	var staked int64
	stake, exists := session.Participants[userID]
	if exists {
		staked = stake.TotalStaked
	}

	if err := s.validator.CheckStakeLimit(staked, amount); err != nil {
		return &models.BetReceipt{Handled: true, Reason: err}, nil
	}

	if err := s.validator.CheckFunds(ctx, userID, staked, amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return &models.BetReceipt{Handled: true, Reason: err}, nil
		}
		return nil, err
	}

	if !exists {
		stake = &models.PlayerStake{DisplayName: displayName}
		session.Participants[userID] = stake
	}
	stake.AddBet(*bet)

	log.WithFields(log.Fields{
		"sessionKey":  key,
		"userId":      userID,
		"category":    category,
		"amount":      amount,
		"totalStaked": stake.TotalStaked,
	}).Debug("Bet accepted")

	return &models.BetReceipt{
		Handled:     true,
		Accepted:    true,
		Bet:         bet,
		TotalStaked: stake.TotalStaked,
	}, nil
}

// ParseBetAction parses an action ID of the form bet:<category>:<amount>[:<target>]
func ParseBetAction(actionID string) (models.BetCategory, int64, *int, error) {
	parts := strings.Split(actionID, ":")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != BetActionPrefix {
		return "", 0, nil, fmt.Errorf("unrecognised action %q", actionID)
	}

	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, nil, fmt.Errorf("invalid amount in action %q: %w", actionID, err)
	}

	var target *int
	if len(parts) == 4 {
		value, err := strconv.Atoi(parts[3])
		if err != nil {
			return "", 0, nil, fmt.Errorf("invalid target in action %q: %w", actionID, err)
		}
		target = &value
	}

	return models.BetCategory(parts[1]), amount, target, nil
}

// HandleAction routes a button action to PlaceBet. It returns handled=false
// when the session is unknown or the action is not a bet, so callers can fall
// through to other handlers.
func (s *SessionStore) HandleAction(ctx context.Context, key, userID, displayName, actionID string) (bool, *models.BetReceipt, error) {
	if s.entry(key) == nil {
		return false, nil, nil
	}

	category, amount, target, err := ParseBetAction(actionID)
	if err != nil {
		log.WithFields(log.Fields{
			"sessionKey": key,
			"actionId":   actionID,
		}).Debug("Ignoring unparseable session action")
		return false, nil, nil
	}

	receipt, err := s.PlaceBet(ctx, key, userID, displayName, category, amount, target)
	if err != nil {
		return true, nil, err
	}
	return true, receipt, nil
}

// Get returns a snapshot of the session
func (s *SessionStore) Get(key string) (*models.Session, bool) {
	entry := s.entry(key)
	if entry == nil {
		return nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), true
}

// BeginResolve closes betting and returns the snapshot settlement works from.
// A session already resolving is returned again so a failed settlement can be retried.
func (s *SessionStore) BeginResolve(key string) (*models.Session, error) {
	entry := s.entry(key)
	if entry == nil {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session.Phase.IsTerminal() {
		return nil, ErrAlreadySettled
	}
	entry.session.Phase = models.SessionPhaseResolving
	return entry.session.Clone(), nil
}

// MarkSettled moves a session to its terminal phase
func (s *SessionStore) MarkSettled(key string, outcome int) {
	entry := s.entry(key)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.session.Phase = models.SessionPhaseSettled
	entry.session.Outcome = &outcome
}

// Discard removes a session from the store
func (s *SessionStore) Discard(ctx context.Context, key string) {
	s.mu.Lock()
	entry, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if !ok {
		return
	}

	entry.mu.Lock()
	settled := entry.session.Phase.IsTerminal()
	gameType := entry.session.GameType
	entry.mu.Unlock()

	s.emit(ctx, events.SessionClosedEvent{
		SessionKey: key,
		GameType:   gameType,
		Settled:    settled,
	})
}

// Cancel discards a session that has no bets. Sessions with bets must be settled.
func (s *SessionStore) Cancel(ctx context.Context, key string) (bool, error) {
	entry := s.entry(key)
	if entry == nil {
		return false, ErrSessionNotFound
	}

	entry.mu.Lock()
	hasBets := len(entry.session.Participants) > 0
	entry.mu.Unlock()

	if hasBets {
		return false, nil
	}

	s.Discard(ctx, key)
	log.WithField("sessionKey", key).Info("Cancelled empty wagering session")
	return true, nil
}

// Expired returns the keys of sessions whose betting window has passed or
// that were left resolving
func (s *SessionStore) Expired() []string {
	s.mu.RLock()
	entries := make(map[string]*sessionEntry, len(s.sessions))
	for key, entry := range s.sessions {
		entries[key] = entry
	}
	s.mu.RUnlock()

	now := s.now()
	var keys []string
	for key, entry := range entries {
		entry.mu.Lock()
		session := entry.session
		expired := session.Phase == models.SessionPhaseResolving ||
			(session.Phase == models.SessionPhaseBetting && !session.WindowOpen(now))
		entry.mu.Unlock()

		if expired {
			keys = append(keys, key)
		}
	}
	return keys
}

// Count returns the number of sessions in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
