package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"economy/events"
	"economy/models"
	"economy/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeBet(t *testing.T, env *testEnv, key, userID string, category models.BetCategory, amount int64, target *int) {
	t.Helper()
	receipt, err := env.sessions.PlaceBet(context.Background(), key, userID, userID, category, amount, target)
	require.NoError(t, err)
	require.True(t, receipt.Accepted, "bet for %s rejected: %v", userID, receipt.Reason)
}

func balanceOf(t *testing.T, env *testEnv, userID string) int64 {
	t.Helper()
	balance, err := env.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func TestSettlement_PaysWinnersAndDebitsLosers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, _ := env.sessions.Start(ctx, service.StartOptions{ChannelID: "c1"})
	placeBet(t, env, key, "alice", models.BetCategoryRed, 100, nil)
	placeBet(t, env, key, "bob", models.BetCategoryBlack, 100, nil)

	record, err := env.settlement.Settle(ctx, key, 1)
	require.NoError(t, err)

	assert.Equal(t, key, record.SessionKey)
	assert.Equal(t, 1, record.Outcome)
	assert.Equal(t, 1, record.Winners)
	assert.Equal(t, 1, record.Losers)
	assert.Equal(t, int64(200), record.TotalPayout)

	require.Len(t, record.Results, 2)
	assert.Equal(t, "alice", record.Results[0].UserID)
	assert.Equal(t, int64(100), record.Results[0].Net)
	assert.Equal(t, int64(200), record.Results[0].Credited, "first win doubles the net")
	assert.Equal(t, "bob", record.Results[1].UserID)
	assert.Equal(t, int64(100), record.Results[1].Debited)

	assert.Equal(t, int64(1200), balanceOf(t, env, "alice"))
	assert.Equal(t, int64(900), balanceOf(t, env, "bob"))

	_, ok := env.sessions.Get(key)
	assert.False(t, ok, "settled sessions are discarded")

	history, err := env.ledger.GetTransactionHistory(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionKindAward, history[0].Kind)
	assert.Equal(t, key, history[0].Metadata["session_key"])
}

func TestSettlement_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, key, "alice", models.BetCategoryRed, 100, nil)

	first, err := env.settlement.Settle(ctx, key, 1)
	require.NoError(t, err)

	// a later call with another outcome gets the stored result
	second, err := env.settlement.Settle(ctx, key, 2)
	require.NoError(t, err)
	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, first.TotalPayout, second.TotalPayout)

	assert.Equal(t, int64(1200), balanceOf(t, env, "alice"))

	history, err := env.ledger.GetTransactionHistory(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	stored, err := env.settlement.GetSettlement(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.Outcome)

	missing, err := env.settlement.GetSettlement(ctx, "never-settled")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSettlement_ConcurrentCallsPayOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, key, "alice", models.BetCategoryRed, 100, nil)
	placeBet(t, env, key, "bob", models.BetCategoryRed, 50, nil)

	const callers = 12
	records := make([]*models.SettlementRecord, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = env.settlement.Settle(ctx, key, 1)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 1, records[i].Outcome)
		assert.Equal(t, records[0].TotalPayout, records[i].TotalPayout)
	}

	assert.Equal(t, int64(1200), balanceOf(t, env, "alice"))
	assert.Equal(t, int64(1100), balanceOf(t, env, "bob"))
}

func TestSettlement_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		_, err := env.settlement.Settle(ctx, "no-such-session", 5)
		assert.ErrorIs(t, err, service.ErrSessionNotFound)
	})

	t.Run("outcome off the wheel leaves the session open", func(t *testing.T) {
		key, _ := env.sessions.Start(ctx, service.StartOptions{})
		placeBet(t, env, key, "alice", models.BetCategoryRed, 10, nil)

		_, err := env.settlement.Settle(ctx, key, 37)
		assert.ErrorIs(t, err, service.ErrInvalidBet)

		session, ok := env.sessions.Get(key)
		require.True(t, ok)
		assert.Equal(t, models.SessionPhaseBetting, session.Phase)
	})
}

func TestSettlement_ShieldAbsorbsLoss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.ledger.Award(ctx, "bob", 10, "win")
		require.NoError(t, err)
	}
	_, err := env.ledger.AddStreakShield(ctx, "bob")
	require.NoError(t, err)

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, key, "bob", models.BetCategoryBlack, 10, nil)

	record, err := env.settlement.Settle(ctx, key, 1)
	require.NoError(t, err)
	require.Len(t, record.Results, 1)
	assert.True(t, record.Results[0].ShieldUsed)

	status, err := env.ledger.GetBoostStatus(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Streak)
	assert.Equal(t, 0, status.Shields)
}

func TestSettlement_LossIsClampedToBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, key, "carol", models.BetCategoryRed, 500, nil)

	// stakes are not escrowed, so the balance can drop before settlement
	ok, err := env.ledger.Spend(ctx, "carol", 800, "elsewhere")
	require.NoError(t, err)
	require.True(t, ok)

	record, err := env.settlement.Settle(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, record.Results, 1)
	assert.Equal(t, int64(-500), record.Results[0].Net)
	assert.Equal(t, int64(200), record.Results[0].Debited)

	assert.Equal(t, int64(0), balanceOf(t, env, "carol"))

	history, err := env.ledger.GetTransactionHistory(ctx, "carol", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionKindWagerLoss, history[0].Kind)
	assert.Equal(t, int64(-200), history[0].Amount)
	assert.EqualValues(t, 500, history[0].Metadata["requested_amount"])

	reconcile, err := env.ledger.Reconcile(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, reconcile.Consistent)
}

func TestSettlement_EmptySession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	record, err := env.settlement.Settle(ctx, key, 17)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Winners)
	assert.Equal(t, 0, record.Losers)
	assert.Empty(t, record.Results)
}

func TestSettlement_PublishesEventsAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settled := env.capture(events.EventTypeSessionSettled)
	closed := env.capture(events.EventTypeSessionClosed)

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, key, "alice", models.BetCategoryStraight, 10, intPtr(7))

	_, err := env.settlement.Settle(ctx, key, 7)
	require.NoError(t, err)

	select {
	case event := <-settled:
		e, ok := event.(events.SessionSettledEvent)
		require.True(t, ok)
		assert.Equal(t, key, e.SessionKey)
		assert.Equal(t, 7, e.Outcome)
		assert.Equal(t, int64(360), e.TotalPayout)
	case <-time.After(time.Second):
		t.Fatal("no settled event")
	}

	select {
	case event := <-closed:
		e, ok := event.(events.SessionClosedEvent)
		require.True(t, ok)
		assert.True(t, e.Settled)
	case <-time.After(time.Second):
		t.Fatal("no closed event")
	}
}

func TestSettlement_SpinAndSettle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, key, "alice", models.BetCategoryOdd, 10, nil)
	placeBet(t, env, key, "bob", models.BetCategoryEven, 10, nil)

	record, err := env.settlement.SpinAndSettle(ctx, key)
	require.NoError(t, err)
	assert.True(t, service.ValidOutcome(record.Outcome))
	assert.Equal(t, 2, record.Winners+record.Losers)

	total := balanceOf(t, env, "alice") + balanceOf(t, env, "bob")
	if record.Outcome == 0 {
		assert.Equal(t, int64(1980), total)
	} else {
		// the single winner earns double on a first win
		assert.Equal(t, int64(2010), total)
	}
}

func TestSessionSweeper_SettlesExpiredAndDropsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sweeper := service.NewSessionSweeper(env.sessions, env.settlement, time.Second)

	withBets, _ := env.sessions.Start(ctx, service.StartOptions{})
	placeBet(t, env, withBets, "alice", models.BetCategoryRed, 10, nil)
	empty, _ := env.sessions.Start(ctx, service.StartOptions{})

	assert.Equal(t, 0, sweeper.Sweep(ctx), "nothing has expired yet")
	assert.Equal(t, 2, env.sessions.Count())

	env.clock.Advance(env.cfg.BettingWindow)
	fresh, _ := env.sessions.Start(ctx, service.StartOptions{})

	assert.Equal(t, 1, sweeper.Sweep(ctx))

	_, ok := env.sessions.Get(withBets)
	assert.False(t, ok)
	_, ok = env.sessions.Get(empty)
	assert.False(t, ok)
	_, ok = env.sessions.Get(fresh)
	assert.True(t, ok)

	history, err := env.ledger.GetTransactionHistory(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSessionSweeper_StartAndStop(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key, _ := env.sessions.Start(ctx, service.StartOptions{Window: time.Millisecond})
	placeBet(t, env, key, "alice", models.BetCategoryRed, 10, nil)
	env.clock.Advance(time.Second)

	sweeper := service.NewSessionSweeper(env.sessions, env.settlement, 10*time.Millisecond)
	stop := sweeper.Start(ctx)
	defer stop()

	assert.Eventually(t, func() bool {
		return env.sessions.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
