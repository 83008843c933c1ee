package observability

import (
	"context"

	"economy/events"

	log "github.com/sirupsen/logrus"
)

// RegisterEventHandlers subscribes the metrics provider to the domain events it counts
func RegisterEventHandlers(bus *events.Bus, mp *MetricsProvider) {
	bus.Subscribe(events.EventTypeBalanceChange, func(_ context.Context, event events.Event) {
		if e, ok := event.(events.BalanceChangeEvent); ok {
			mp.RecordBalanceTransaction(string(e.Kind), e.Amount)
		}
	})

	bus.Subscribe(events.EventTypeSessionStarted, func(_ context.Context, event events.Event) {
		if e, ok := event.(events.SessionStartedEvent); ok {
			mp.UpdateActiveSessions(e.GameType, 1)
		}
	})

	bus.Subscribe(events.EventTypeSessionClosed, func(_ context.Context, event events.Event) {
		if e, ok := event.(events.SessionClosedEvent); ok {
			mp.UpdateActiveSessions(e.GameType, -1)
		}
	})

	bus.Subscribe(events.EventTypeSessionSettled, func(_ context.Context, event events.Event) {
		if e, ok := event.(events.SessionSettledEvent); ok {
			mp.RecordSettlement(e.GameType, e.TotalPayout)
		}
	})

	bus.Subscribe(events.EventTypeExchangeCompleted, func(_ context.Context, event events.Event) {
		if e, ok := event.(events.ExchangeCompletedEvent); ok {
			mp.RecordExchange(string(e.Method))
		}
	})

	bus.Subscribe(events.EventTypeDailyBoostActivated, func(_ context.Context, _ events.Event) {
		mp.RecordDailyBoost()
	})

	log.Info("Registered metrics event handlers")
}
