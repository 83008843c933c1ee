package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"economy/events"
	"economy/models"
	"economy/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_FirstWinDoublesAward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.ledger.Award(ctx, "u1", 50, "win")
	require.NoError(t, err)

	assert.True(t, result.FirstWinBonus)
	assert.Equal(t, int64(100), result.CreditedAmount)
	assert.Equal(t, int64(1100), result.NewBalance)
	assert.Equal(t, 1, result.Streak)

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), balance)
}

func TestLedger_StreakBonusGrowsAndCaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// first win doubles, later wins follow the streak table
	expected := []int64{200, 110, 120, 130, 140, 150, 150}
	for i, credited := range expected {
		result, err := env.ledger.Award(ctx, "u1", 100, "win")
		require.NoError(t, err)
		assert.Equal(t, credited, result.CreditedAmount, "award %d", i+1)
		assert.Equal(t, i+1, result.Streak)
	}
}

func TestLedger_LossResetsStreakUnlessShielded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.Award(ctx, "u1", 10, "win")
	require.NoError(t, err)
	_, err = env.ledger.Award(ctx, "u1", 10, "win")
	require.NoError(t, err)

	shields, err := env.ledger.AddStreakShield(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, shields)

	loss, err := env.ledger.RecordLoss(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, loss.ShieldUsed)
	assert.Equal(t, 2, loss.Streak)
	assert.Equal(t, 0, loss.ShieldsRemaining)

	loss, err = env.ledger.RecordLoss(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loss.ShieldUsed)
	assert.Equal(t, 0, loss.Streak)

	// a new streak after a loss is not a first win
	result, err := env.ledger.Award(ctx, "u1", 10, "win")
	require.NoError(t, err)
	assert.False(t, result.FirstWinBonus)
	assert.Equal(t, int64(10), result.CreditedAmount)
}

func TestLedger_Spend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("sufficient funds", func(t *testing.T) {
		ok, err := env.ledger.Spend(ctx, "u1", 400, "shop")
		require.NoError(t, err)
		assert.True(t, ok)

		balance, err := env.ledger.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(600), balance)
	})

	t.Run("insufficient funds has no side effect", func(t *testing.T) {
		ok, err := env.ledger.Spend(ctx, "u1", 601, "shop")
		require.NoError(t, err)
		assert.False(t, ok)

		history, err := env.ledger.GetTransactionHistory(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, int64(-400), history[0].Amount)
		assert.Equal(t, int64(1000), history[0].BalanceBefore)
		assert.Equal(t, int64(600), history[0].BalanceAfter)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := env.ledger.Spend(ctx, "u1", 0, "shop")
		assert.ErrorIs(t, err, service.ErrInvalidAmount)
	})
}

func TestLedger_AdminAdjust(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		amount         int64
		expectedActual int64
		expectedBal    int64
		expectedErr    error
	}{
		{"credit", 250, 250, 1250, nil},
		{"debit", -50, -50, 1200, nil},
		{"removal clamped to balance", -5000, -1200, 0, nil},
		{"removal from empty balance", -10, 0, 0, nil},
		{"zero rejected", 0, 0, 0, service.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.ledger.AdminAdjust(ctx, "u1", tt.amount, "admin")
			require.NoError(t, err)

			if tt.expectedErr != nil {
				assert.False(t, result.Success)
				assert.ErrorIs(t, result.Error, tt.expectedErr)
				return
			}

			assert.True(t, result.Success)
			assert.Equal(t, tt.expectedActual, result.ActualAmount)
			assert.Equal(t, tt.expectedBal, result.NewBalance)
		})
	}
}

func TestLedger_ClaimDaily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("balance at ceiling does not consume the day", func(t *testing.T) {
		result, err := env.ledger.ClaimDaily(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, result.Claimed)
		assert.Equal(t, models.DailyReasonBalanceTooHigh, result.Reason)
	})

	ok, err := env.ledger.Spend(ctx, "u1", 50, "shop")
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("tops up towards the ceiling", func(t *testing.T) {
		result, err := env.ledger.ClaimDaily(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, result.Claimed)
		assert.Equal(t, int64(50), result.Amount)
		assert.Equal(t, int64(1000), result.NewBalance)
	})

	t.Run("once per day", func(t *testing.T) {
		_, err := env.ledger.AdminAdjust(ctx, "u1", -500, "admin")
		require.NoError(t, err)

		result, err := env.ledger.ClaimDaily(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, result.Claimed)
		assert.Equal(t, models.DailyReasonAlreadyClaimed, result.Reason)
		assert.Equal(t, service.NextUTCDay(env.clock.Now()), result.NextClaimAt)
	})

	t.Run("boost doubles the next day's claim", func(t *testing.T) {
		env.clock.Advance(24 * time.Hour)
		_, err := env.ledger.ActivateDailyBoost(ctx, "u1")
		require.NoError(t, err)

		result, err := env.ledger.ClaimDaily(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, result.Claimed)
		assert.True(t, result.Boosted)
		assert.Equal(t, int64(200), result.Amount)
		assert.Equal(t, int64(700), result.NewBalance)
	})
}

func TestLedger_ActivateDailyBoostStacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now()

	expiry, err := env.ledger.ActivateDailyBoost(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, start.Add(24*time.Hour), expiry)

	env.clock.Advance(time.Hour)
	expiry, err = env.ledger.ActivateDailyBoost(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, start.Add(48*time.Hour), expiry)

	status, err := env.ledger.GetBoostStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	require.NotNil(t, status.Expiry)
	assert.Equal(t, 47*time.Hour, status.Remaining)
	assert.False(t, status.DailyClaimable) // balance is at the ceiling
}

func TestLedger_BoostStatusForNewAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.AdminAdjust(ctx, "u1", -300, "admin")
	require.NoError(t, err)

	status, err := env.ledger.GetBoostStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Nil(t, status.Expiry)
	assert.True(t, status.DailyClaimable)
	assert.Equal(t, int64(100), status.NextDailyAmount)
	assert.Equal(t, int64(0), status.NextStreakBonus)
}

func TestLedger_ConcurrentAwardsAreNotLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 40
	const amount = int64(25)

	var wg sync.WaitGroup
	credited := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.ledger.Award(ctx, "shared", amount, "win")
			if err != nil {
				t.Error(err)
				return
			}
			credited <- result.CreditedAmount
		}()
	}
	wg.Wait()
	close(credited)

	var total int64
	count := 0
	for c := range credited {
		total += c
		count++
	}
	require.Equal(t, workers, count)

	balance, err := env.ledger.GetBalance(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(1000)+total, balance)

	status, err := env.ledger.GetBoostStatus(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, workers, status.Streak)

	reconcile, err := env.ledger.Reconcile(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, reconcile.Consistent)
}

func TestLedger_ConcurrentAdjustmentsSumExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 40
	const amount = int64(15)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.ledger.AdminAdjust(ctx, "shared", amount, "bonus"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	balance, err := env.ledger.GetBalance(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(1000)+workers*amount, balance)
}

func TestLedger_ConcurrentSpendsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := env.ledger.Spend(ctx, "shared", 100, "shop")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	balance, err := env.ledger.GetBalance(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedger_TransactionsReconcileWithBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.Award(ctx, "u1", 40, "win")
	require.NoError(t, err)
	_, err = env.ledger.Spend(ctx, "u1", 300, "shop")
	require.NoError(t, err)
	_, err = env.ledger.AdminAdjust(ctx, "u1", -2000, "admin")
	require.NoError(t, err)
	_, err = env.ledger.ClaimDaily(ctx, "u1")
	require.NoError(t, err)

	result, err := env.ledger.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, int64(100), result.Balance)
	assert.Equal(t, result.Balance-result.StartingBalance, result.TransactionSum)

	history, err := env.ledger.GetTransactionHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for _, txn := range history {
		assert.Equal(t, txn.BalanceBefore+txn.Amount, txn.BalanceAfter)
		assert.GreaterOrEqual(t, txn.BalanceAfter, int64(0))
	}
	assert.Equal(t, models.TransactionKindDaily, history[0].Kind)
}

func TestLedger_Leaderboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"carol", "alice", "bob"} {
		_, err := env.ledger.GetBalance(ctx, id)
		require.NoError(t, err)
	}
	_, err := env.ledger.AdminAdjust(ctx, "bob", 500, "admin")
	require.NoError(t, err)

	top, err := env.ledger.GetLeaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "bob", top[0].UserID)
	// equal balances keep creation order
	assert.Equal(t, "carol", top[1].UserID)
	assert.Equal(t, "alice", top[2].UserID)
}

func TestLedger_PageLimitsAreNormalised(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < service.DefaultPageSize+2; i++ {
		_, err := env.ledger.GetBalance(ctx, fmt.Sprintf("user-%02d", i))
		require.NoError(t, err)
		_, err = env.ledger.AdminAdjust(ctx, "u1", 1, "page filler")
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{"negative uses the default", -1, service.DefaultPageSize},
		{"zero uses the default", 0, service.DefaultPageSize},
		{"explicit limit", 3, 3},
		{"large limit returns everything", 1000, service.DefaultPageSize + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := env.ledger.GetTransactionHistory(ctx, "u1", tt.limit)
			require.NoError(t, err)
			assert.Len(t, history, tt.expected)
		})
	}

	// u1 plus the filler accounts
	top, err := env.ledger.GetLeaderboard(ctx, -5)
	require.NoError(t, err)
	assert.Len(t, top, service.DefaultPageSize)
	top, err = env.ledger.GetLeaderboard(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, top, service.DefaultPageSize+3)
}

func TestLedger_PublishesBalanceChangesAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	changes := env.capture(events.EventTypeBalanceChange)

	_, err := env.ledger.Award(ctx, "u1", 50, "win")
	require.NoError(t, err)

	select {
	case event := <-changes:
		change := event.(events.BalanceChangeEvent)
		assert.Equal(t, "u1", change.UserID)
		assert.Equal(t, int64(1000), change.OldBalance)
		assert.Equal(t, int64(1100), change.NewBalance)
		assert.Equal(t, models.TransactionKindAward, change.Kind)
	case <-time.After(time.Second):
		t.Fatal("balance change event not delivered")
	}

	// a failed spend publishes nothing
	ok, err := env.ledger.Spend(ctx, "u1", 5000, "shop")
	require.NoError(t, err)
	require.False(t, ok)

	select {
	case event := <-changes:
		t.Fatalf("unexpected event %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
