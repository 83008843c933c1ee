package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"economy/config"
	"economy/events"
	"economy/models"
	"economy/repository/memory"
	"economy/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires every service over a fresh memory store
type testEnv struct {
	cfg        *config.Config
	clock      *testClock
	bus        *events.Bus
	factory    service.UnitOfWorkFactory
	ledger     service.LedgerService
	sessions   *service.SessionStore
	calculator *service.PayoutCalculator
	settlement service.SettlementService
	exchange   service.ExchangeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.NewTestConfig()
	clock := newTestClock()
	bus := events.NewBus()
	store := memory.NewStore(memory.WithItems(models.DefaultCatalog()), memory.WithClock(clock.Now))
	factory := memory.NewUnitOfWorkFactory(store, bus)

	ledger := service.NewLedgerService(factory, cfg, service.WithLedgerClock(clock.Now))
	sessions := service.NewSessionStore(service.NewBetValidator(ledger), bus, cfg.BettingWindow, service.WithSessionClock(clock.Now))
	calculator := service.NewPayoutCalculator(nil)

	return &testEnv{
		cfg:        cfg,
		clock:      clock,
		bus:        bus,
		factory:    factory,
		ledger:     ledger,
		sessions:   sessions,
		calculator: calculator,
		settlement: service.NewSettlementCoordinator(factory, ledger, sessions, calculator),
		exchange:   service.NewExchangeService(factory, ledger, service.WithExchangeClock(clock.Now)),
	}
}

// capture subscribes to eventType and returns a channel receiving each event
func (e *testEnv) capture(eventType events.EventType) <-chan events.Event {
	ch := make(chan events.Event, 64)
	e.bus.Subscribe(eventType, func(_ context.Context, event events.Event) {
		ch <- event
	})
	return ch
}

func intPtr(v int) *int {
	return &v
}
