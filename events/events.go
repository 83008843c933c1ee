package events

import (
	"context"
	"sync"
	"time"

	"economy/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeSessionStarted      EventType = "session_started"
	EventTypeSessionClosed       EventType = "session_closed"
	EventTypeSessionSettled      EventType = "session_settled"
	EventTypeExchangeCompleted   EventType = "exchange_completed"
	EventTypeDailyBoostActivated EventType = "daily_boost_activated"
)

// AllEventTypes lists every event type, for subscribers that forward everything
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeSessionStarted,
		EventTypeSessionClosed,
		EventTypeSessionSettled,
		EventTypeExchangeCompleted,
		EventTypeDailyBoostActivated,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a ledger write
type BalanceChangeEvent struct {
	UserID     string                 `json:"user_id"`
	OldBalance int64                  `json:"old_balance"`
	NewBalance int64                  `json:"new_balance"`
	Amount     int64                  `json:"amount"`
	Kind       models.TransactionKind `json:"kind"`
	Reason     string                 `json:"reason"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// SessionStartedEvent is emitted when a wagering session opens for bets
type SessionStartedEvent struct {
	SessionKey string    `json:"session_key"`
	GameType   string    `json:"game_type"`
	ChannelID  string    `json:"channel_id"`
	Deadline   time.Time `json:"deadline"`
}

func (e SessionStartedEvent) Type() EventType {
	return EventTypeSessionStarted
}

// SessionClosedEvent is emitted when a session leaves the store, settled or not
type SessionClosedEvent struct {
	SessionKey string `json:"session_key"`
	GameType   string `json:"game_type"`
	Settled    bool   `json:"settled"`
}

func (e SessionClosedEvent) Type() EventType {
	return EventTypeSessionClosed
}

// SessionSettledEvent represents a session whose payouts were written to the ledger
type SessionSettledEvent struct {
	SessionKey  string `json:"session_key"`
	GameType    string `json:"game_type"`
	Outcome     int    `json:"outcome"`
	Winners     int    `json:"winners"`
	Losers      int    `json:"losers"`
	TotalPayout int64  `json:"total_payout"`
}

func (e SessionSettledEvent) Type() EventType {
	return EventTypeSessionSettled
}

// ExchangeCompletedEvent represents a finished gift or purchase
type ExchangeCompletedEvent struct {
	Method      models.AcquisitionMethod `json:"method"`
	SenderID    string                   `json:"sender_id"`
	RecipientID string                   `json:"recipient_id"`
	ItemID      string                   `json:"item_id"`
	Cost        int64                    `json:"cost"`
}

func (e ExchangeCompletedEvent) Type() EventType {
	return EventTypeExchangeCompleted
}

// DailyBoostActivatedEvent represents a boost activation or extension
type DailyBoostActivatedEvent struct {
	UserID string    `json:"user_id"`
	Expiry time.Time `json:"expiry"`
}

func (e DailyBoostActivatedEvent) Type() EventType {
	return EventTypeDailyBoostActivated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": handlerIndex,
			}).Debug("Calling event handler")
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events published inside a unit of work until the
// work commits. Flush forwards them to the underlying bus, Discard drops them.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Handlers outlive the transaction context
	eventCtx := context.Background()

	if b.real == nil {
		b.pending = nil
		return nil
	}

	for _, ev := range b.pending {
		log.WithFields(log.Fields{
			"eventType": ev.Type(),
		}).Debug("Emitting event to main event bus")
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	log.Debug("All pending events flushed, transactional bus cleared")
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
