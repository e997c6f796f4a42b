package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/accountlock"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/ledger/ledgertest"
	"serotonyl.ru/invest-bot/internal/features/plans"
)

type fixture struct {
	store  *ledgertest.MemStore
	engine *ledger.Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: ledgertest.New(),
		now:   time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.now })
	f.engine = ledger.NewService(
		f.store,
		plans.DefaultCatalog(),
		plans.DefaultReferralTable(),
		accountlock.NewMemory(),
		ledger.Limits{MinDeposit: dec("6"), MinWithdrawal: dec("10")},
		ledger.WithClock(func() time.Time { return f.now }),
		ledger.WithSyncPayouts(),
	)
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, dec(want).String(), got.String(), msgAndArgs...)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"50", "50", false},
		{" 12.5 ", "12.5", false},
		{"12,5", "12.5", false},
		{"$20", "20", false},
		{"9.99999999", "9.99999999", false},
		{"1.000000000", "1", false},
		{"9.999999999", "", true},
		{"0", "", true},
		{"-5", "", true},
		{"abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ledger.ParseAmount(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, common.ErrInvalidAmount, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assertMoney(t, tt.want, got)
	}
}

func TestCommitInvestmentAndLazyMaturity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(accounts.Account{
		UserID:      1,
		MainBalance: dec("100"),
		State:       accounts.StateAwaitingInvestmentAmount,
	})

	inv, err := f.engine.CommitInvestment(ctx, 1, "plan_1", dec("50"))
	require.NoError(t, err)
	assertMoney(t, "7.5", inv.Profit)
	assert.Equal(t, f.now.Add(24*time.Hour), inv.MaturesAt)

	acc := f.store.Snapshot(1)
	assertMoney(t, "50", acc.MainBalance)
	assertMoney(t, "50", acc.TotalInvested)
	assert.Equal(t, accounts.StateNone, acc.State)

	// до срока ничего не закрывается
	f.now = f.now.Add(23 * time.Hour)
	paid, err := f.engine.SweepMatured(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, paid)

	f.now = f.now.Add(time.Hour)
	paid, err = f.engine.SweepMatured(ctx, 1)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, ledger.TxInvestmentProfit, paid[0].Type)
	assertMoney(t, "57.5", paid[0].Amount, "тело плюс прибыль")
	assertMoney(t, "107.5", f.store.Snapshot(1).MainBalance)

	// повторный обход не платит второй раз
	paid, err = f.engine.SweepMatured(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, paid)
	assertMoney(t, "107.5", f.store.Snapshot(1).MainBalance)
	assert.Equal(t, ledger.InvestmentCompleted, f.store.Investments(1)[0].Status)
}

func TestCommitInvestmentValidation(t *testing.T) {
	tests := []struct {
		name    string
		planID  string
		amount  string
		wantErr error
	}{
		{"zero amount", "plan_1", "0", common.ErrInvalidAmount},
		{"too many decimals", "plan_1", "9.999999999", common.ErrInvalidAmount},
		{"unknown plan", "plan_9", "10", common.ErrUnknownPlan},
		{"below minimum", "plan_1", "4.99", common.ErrBelowMinimum},
		{"above maximum", "plan_1", "1000000.01", common.ErrAboveMaximum},
		{"more than balance", "plan_1", "100.01", common.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Seed(accounts.Account{
				UserID:      1,
				MainBalance: dec("100"),
				State:       accounts.StateAwaitingInvestmentAmount,
			})

			_, err := f.engine.CommitInvestment(context.Background(), 1, tt.planID, dec(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)

			acc := f.store.Snapshot(1)
			assertMoney(t, "100", acc.MainBalance)
			assert.Equal(t, accounts.StateAwaitingInvestmentAmount, acc.State)
			assert.Empty(t, f.store.Investments(1))
		})
	}
}

func TestCommitInvestmentRequiresAwaitingState(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(accounts.Account{UserID: 1, MainBalance: dec("100")})

	_, err := f.engine.CommitInvestment(context.Background(), 1, "plan_1", dec("50"))
	assert.ErrorIs(t, err, common.ErrStateExpired)
	assertMoney(t, "100", f.store.Snapshot(1).MainBalance)
}

// Цепочка: investor → l1 → l2 → l3 → l4. Четвёртый уровень не получает ничего.
func seedChain(f *fixture) {
	f.store.Seed(accounts.Account{UserID: 14})
	f.store.Seed(accounts.Account{UserID: 13, ReferrerUserID: ptr(int64(14))})
	f.store.Seed(accounts.Account{UserID: 12, ReferrerUserID: ptr(int64(13))})
	f.store.Seed(accounts.Account{UserID: 11, ReferrerUserID: ptr(int64(12))})
	f.store.Seed(accounts.Account{
		UserID:         10,
		MainBalance:    dec("100"),
		ReferrerUserID: ptr(int64(11)),
		State:          accounts.StateAwaitingInvestmentAmount,
	})
}

func TestReferralPayoutThreeLevels(t *testing.T) {
	f := newFixture(t)
	seedChain(f)

	_, err := f.engine.CommitInvestment(context.Background(), 10, "plan_2", dec("100"))
	require.NoError(t, err)

	assertMoney(t, "7", f.store.Snapshot(11).MainBalance)
	assertMoney(t, "6", f.store.Snapshot(12).MainBalance)
	assertMoney(t, "5", f.store.Snapshot(13).MainBalance)
	assertMoney(t, "0", f.store.Snapshot(14).MainBalance)
	assertMoney(t, "7", f.store.Snapshot(11).ReferralEarnings)

	txs := f.store.Transactions(12)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TxReferralBonus, txs[0].Type)
	assert.Equal(t, 2, *txs[0].Level)
	assert.Equal(t, int64(10), *txs[0].FromUserID)
}

func TestReferralPayoutStopsAtLevelWithoutPercent(t *testing.T) {
	f := newFixture(t)
	seedChain(f)

	engine := ledger.NewService(f.store, plans.DefaultCatalog(),
		plans.NewReferralTable([]decimal.Decimal{dec("7"), dec("0"), dec("5")}),
		accountlock.NewMemory(), ledger.Limits{},
		ledger.WithClock(func() time.Time { return f.now }),
		ledger.WithSyncPayouts(),
	)
	_, err := engine.CommitInvestment(context.Background(), 10, "plan_1", dec("100"))
	require.NoError(t, err)

	assertMoney(t, "7", f.store.Snapshot(11).MainBalance)
	assertMoney(t, "0", f.store.Snapshot(12).MainBalance)
	assertMoney(t, "0", f.store.Snapshot(13).MainBalance, "после уровня без процента не платим")
	assert.Empty(t, f.store.Transactions(13))
}

func TestWaitDrainsBackgroundPayouts(t *testing.T) {
	f := newFixture(t)
	seedChain(f)

	engine := ledger.NewService(f.store, plans.DefaultCatalog(), plans.DefaultReferralTable(),
		accountlock.NewMemory(), ledger.Limits{},
		ledger.WithClock(func() time.Time { return f.now }),
	)
	_, err := engine.CommitInvestment(context.Background(), 10, "plan_1", dec("100"))
	require.NoError(t, err)

	engine.Wait()

	assertMoney(t, "7", f.store.Snapshot(11).MainBalance)
	assertMoney(t, "6", f.store.Snapshot(12).MainBalance)
	assertMoney(t, "5", f.store.Snapshot(13).MainBalance)
}

func TestReferralPayoutIsBestEffort(t *testing.T) {
	f := newFixture(t)
	seedChain(f)
	f.store.FailCredit[12] = errors.New("db down")

	_, err := f.engine.CommitInvestment(context.Background(), 10, "plan_1", dec("100"))
	require.NoError(t, err, "сбой реферального уровня не откатывает вклад")

	assertMoney(t, "7", f.store.Snapshot(11).MainBalance)
	assertMoney(t, "0", f.store.Snapshot(12).MainBalance)
	assertMoney(t, "5", f.store.Snapshot(13).MainBalance)
	assertMoney(t, "0", f.store.Snapshot(10).MainBalance)
}

func TestReferralPayoutNotifies(t *testing.T) {
	f := newFixture(t)
	seedChain(f)

	var got []int
	engine := ledger.NewService(f.store, plans.DefaultCatalog(), plans.DefaultReferralTable(),
		accountlock.NewMemory(), ledger.Limits{},
		ledger.WithSyncPayouts(),
		ledger.WithReferralNotifier(func(_ context.Context, referrerID int64, level int, _ decimal.Decimal) {
			got = append(got, level)
		}),
	)
	credited := engine.ReferralPayout(context.Background(), 10, dec("50"))
	assert.Len(t, credited, 3)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestUnlockBonus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(accounts.Account{
		UserID:       1,
		MainBalance:  dec("20"),
		BonusBalance: dec("2"),
		State:        accounts.StateAwaitingInvestmentAmount,
	})

	moved, err := f.engine.UnlockBonus(ctx, 1)
	require.NoError(t, err)
	assert.True(t, moved.IsZero(), "без активного вклада бонус заблокирован")

	_, err = f.engine.CommitInvestment(ctx, 1, "plan_1", dec("10"))
	require.NoError(t, err)

	moved, err = f.engine.UnlockBonus(ctx, 1)
	require.NoError(t, err)
	assertMoney(t, "2", moved)

	acc := f.store.Snapshot(1)
	assertMoney(t, "12", acc.MainBalance)
	assertMoney(t, "0", acc.BonusBalance)

	moved, err = f.engine.UnlockBonus(ctx, 1)
	require.NoError(t, err)
	assert.True(t, moved.IsZero())
}

func seedWithdrawer(f *fixture, balance string) {
	f.store.Seed(accounts.Account{
		UserID:        1,
		MainBalance:   dec(balance),
		WalletAddress: ptr("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"),
		WalletNetwork: ptr("trc20"),
		State:         accounts.StateAwaitingWithdrawalAmount,
	})
}

func TestWithdrawalRejectRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedWithdrawer(f, "100")

	wd, err := f.engine.RequestWithdrawal(ctx, 1, dec("30"))
	require.NoError(t, err)
	assert.Equal(t, ledger.TxPending, wd.Status)
	assert.Equal(t, "trc20", *wd.WalletNetwork)
	assertMoney(t, "70", f.store.Snapshot(1).MainBalance)
	assert.Equal(t, accounts.StateNone, f.store.Snapshot(1).State)

	settled, err := f.engine.SettleWithdrawal(ctx, wd.ID, ledger.SettleReject)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxFailed, settled.Status)
	assertMoney(t, "100", f.store.Snapshot(1).MainBalance)

	_, err = f.engine.SettleWithdrawal(ctx, wd.ID, ledger.SettleReject)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
	_, err = f.engine.SettleWithdrawal(ctx, wd.ID, ledger.SettleApprove)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
	assertMoney(t, "100", f.store.Snapshot(1).MainBalance)
	assertMoney(t, "0", f.store.Snapshot(1).TotalWithdrawn)
}

func TestWithdrawalApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedWithdrawer(f, "50")

	wd, err := f.engine.RequestWithdrawal(ctx, 1, dec("50"))
	require.NoError(t, err)

	_, err = f.engine.SettleWithdrawal(ctx, wd.ID, ledger.SettleApprove)
	require.NoError(t, err)

	acc := f.store.Snapshot(1)
	assertMoney(t, "0", acc.MainBalance)
	assertMoney(t, "50", acc.TotalWithdrawn)
}

func TestWithdrawalValidation(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wallet  bool
		wantErr error
	}{
		{"below minimum", "9.99", true, common.ErrBelowMinimum},
		{"above balance", "100.01", true, common.ErrInsufficientFunds},
		{"no wallet", "20", false, common.ErrWalletNotConfigured},
		{"negative", "-1", true, common.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := accounts.Account{UserID: 1, MainBalance: dec("100"), State: accounts.StateAwaitingWithdrawalAmount}
			if tt.wallet {
				a.WalletAddress, a.WalletNetwork = ptr("0x55d398326f99059fF775485246999027B3197955"), ptr("bep20")
			}
			f.store.Seed(a)

			_, err := f.engine.RequestWithdrawal(context.Background(), 1, dec(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
			assertMoney(t, "100", f.store.Snapshot(1).MainBalance)
			assert.Empty(t, f.store.Transactions(1))
		})
	}
}

func TestConcurrentSettleAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedWithdrawer(f, "100")
	wd, err := f.engine.RequestWithdrawal(ctx, 1, dec("40"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for i := 0; i < 10; i++ {
		outcome := ledger.SettleApprove
		if i%2 == 1 {
			outcome = ledger.SettleReject
		}
		wg.Add(1)
		go func(o ledger.Settlement) {
			defer wg.Done()
			if _, err := f.engine.SettleWithdrawal(ctx, wd.ID, o); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(outcome)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	acc := f.store.Snapshot(1)
	// либо одобрено (60 + 40 выведено), либо отклонено (100 + 0)
	assertMoney(t, "100", acc.MainBalance.Add(acc.TotalWithdrawn))
}

func TestConfirmDepositIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(accounts.Account{UserID: 1, State: accounts.StateAwaitingDepositAmount})

	dep, err := f.engine.RecordDeposit(ctx, ledger.DepositRequest{
		UserID:      1,
		Amount:      dec("25"),
		ExternalRef: ptr("pay-1"),
		Expect:      accounts.StateAwaitingDepositAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.TxPending, dep.Status)
	assertMoney(t, "0", f.store.Snapshot(1).MainBalance)
	assert.Equal(t, accounts.StateNone, f.store.Snapshot(1).State)

	t1, applied, err := f.engine.ConfirmDeposit(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, ledger.TxCompleted, t1.Status)
	assertMoney(t, "25", f.store.Snapshot(1).MainBalance)

	_, applied, err = f.engine.ConfirmDeposit(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, applied)
	_, applied, err = f.engine.FailDeposit(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, applied)
	assertMoney(t, "25", f.store.Snapshot(1).MainBalance)

	_, _, err = f.engine.ConfirmDeposit(ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrTransactionNotFound)
}

func TestRecordDepositValidation(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(accounts.Account{UserID: 1, State: accounts.StateAwaitingDepositAmount})

	_, err := f.engine.RecordDeposit(context.Background(), ledger.DepositRequest{
		UserID: 1, Amount: dec("5.99"), Expect: accounts.StateAwaitingDepositAmount,
	})
	assert.ErrorIs(t, err, common.ErrBelowMinimum)

	_, err = f.engine.RecordDeposit(context.Background(), ledger.DepositRequest{
		UserID: 1, Amount: dec("10"), Expect: accounts.StateAwaitingWalletAddress,
	})
	assert.ErrorIs(t, err, common.ErrStateExpired)
	assert.Empty(t, f.store.Transactions(1))
}

func TestSettleGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(accounts.Account{UserID: 1, State: accounts.StateAwaitingDepositAmount})

	_, err := f.engine.SettleWithdrawal(ctx, 999, ledger.SettleApprove)
	assert.ErrorIs(t, err, common.ErrTransactionNotFound)

	dep, err := f.engine.RecordDeposit(ctx, ledger.DepositRequest{
		UserID: 1, Amount: dec("10"), Expect: accounts.StateAwaitingDepositAmount,
	})
	require.NoError(t, err)

	// депозит нельзя провести как вывод
	_, err = f.engine.SettleWithdrawal(ctx, dep.ID, ledger.SettleApprove)
	assert.ErrorIs(t, err, common.ErrTransactionNotFound)

	_, err = f.engine.SettleDeposit(ctx, dep.ID, ledger.SettleApprove)
	require.NoError(t, err)
	assertMoney(t, "10", f.store.Snapshot(1).MainBalance)
}

func TestAdjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Seed(accounts.Account{UserID: 1, MainBalance: dec("5")})

	credit, err := f.engine.Adjust(ctx, 1, dec("10"))
	require.NoError(t, err)
	assert.Equal(t, ledger.TxAdminCredit, credit.Type)

	_, err = f.engine.Adjust(ctx, 1, dec("-20"))
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	debit, err := f.engine.Adjust(ctx, 1, dec("-15"))
	require.NoError(t, err)
	assert.Equal(t, ledger.TxAdminDebit, debit.Type)
	assertMoney(t, "15", debit.Amount)
	assertMoney(t, "0", f.store.Snapshot(1).MainBalance)

	_, err = f.engine.Adjust(ctx, 1, decimal.Zero)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestHistoryAndPendingStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedWithdrawer(f, "1000")

	for i := 0; i < 12; i++ {
		_, err := f.engine.Adjust(ctx, 1, dec("1"))
		require.NoError(t, err)
	}
	_, err := f.engine.RequestWithdrawal(ctx, 1, dec("15"))
	require.NoError(t, err)

	hist, err := f.engine.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, ledger.HistoryLimit)
	assert.Equal(t, ledger.TxWithdrawal, hist[0].Type, "новые сверху")

	stats, err := f.engine.PendingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Withdrawals)
	assertMoney(t, "15", stats.WithdrawalsTotal)
	assert.False(t, stats.Empty())
}
