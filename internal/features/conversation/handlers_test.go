package conversation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/accountlock"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/conversation"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/ledger/ledgertest"
	"serotonyl.ru/invest-bot/internal/features/menu"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/features/notify/notifytest"
	"serotonyl.ru/invest-bot/internal/features/payments"
	"serotonyl.ru/invest-bot/internal/features/plans"
	"serotonyl.ru/invest-bot/internal/i18n"
)

const (
	adminID  int64 = 1
	userID   int64 = 42
	tronAddr       = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
)

type fakeGateway struct {
	invoice *payments.Invoice
	err     error
	calls   int
}

func (g *fakeGateway) CreateInvoice(_ context.Context, _ int64, amount decimal.Decimal) (*payments.Invoice, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	inv := *g.invoice
	inv.PayAmount = amount
	return &inv, nil
}

type fixture struct {
	store   *ledgertest.MemStore
	engine  *ledger.Service
	rec     *notifytest.Recorder
	gateway *fakeGateway
	h       *conversation.Handler
	ctx     context.Context
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	f := &fixture{
		store:   ledgertest.New(),
		rec:     notifytest.New(),
		gateway: &fakeGateway{invoice: &payments.Invoice{PaymentID: "5077125051", PayAddress: tronAddr, PayCurrency: "usdttrc20"}},
		ctx:     context.Background(),
	}
	cfg := &config.Config{
		AdminID:            adminID,
		DepositMode:        mode,
		AdminDepositWallet: tronAddr,
		AppTimezone:        "UTC",
	}
	f.engine = ledger.NewService(f.store, plans.DefaultCatalog(), plans.DefaultReferralTable(),
		accountlock.NewMemory(),
		ledger.Limits{MinDeposit: decimal.NewFromInt(6), MinWithdrawal: decimal.NewFromInt(10)},
		ledger.WithSyncPayouts(),
	)
	notifier := notify.New(f.rec, adminID).WithRetryDelay(time.Millisecond)
	screens := menu.NewHandler(cfg, accounts.NewService(f.store, decimal.Zero), f.engine, notifier)
	f.h = conversation.NewHandler(cfg, conversation.NewMachine(f.store), f.engine, screens,
		f.gateway, notifier, notify.NewDedup(time.Hour, 16))
	return f
}

func (f *fixture) seed(a accounts.Account) {
	a.UserID = userID
	f.store.Seed(a)
}

// acc — снимок аккаунта, как его читает бот перед каждым апдейтом.
func (f *fixture) acc() *accounts.Account {
	return f.store.Snapshot(userID)
}

func (f *fixture) text(s string) {
	f.h.HandleText(f.ctx, userID, f.acc(), s)
}

func (f *fixture) lastText(t *testing.T) string {
	t.Helper()
	last, ok := f.rec.Last(userID)
	require.True(t, ok, "пользователю ничего не отправлено")
	return last.Text
}

func en(key string, args ...interface{}) string { return i18n.T(i18n.EN, key, args...) }

func callbacks(markup interface{}) []string {
	kb, ok := markup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

func TestStaleNetworkButtonIsRejected(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{MainBalance: decimal.NewFromInt(50)})

	f.h.SetNetwork(f.ctx, userID, f.acc(), "trc20")

	assert.Equal(t, en("err.expired"), f.lastText(t))
	acc := f.acc()
	assert.Equal(t, accounts.StateNone, acc.State)
	assert.False(t, acc.HasWallet())
}

func TestUnknownNetworkKeepsState(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{
		State:        accounts.StateAwaitingWalletNetwork,
		StateContext: json.RawMessage(fmt.Sprintf(`{"wallet_address":%q}`, tronAddr)),
	})

	f.h.SetNetwork(f.ctx, userID, f.acc(), "erc20")

	assert.Equal(t, en("err.expired"), f.lastText(t))
	assert.Equal(t, accounts.StateAwaitingWalletNetwork, f.acc().State)
}

func TestWithdrawFlow(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{
		MainBalance:  decimal.NewFromInt(25),
		BonusBalance: decimal.NewFromInt(2),
		State:        accounts.StateAwaitingInvestmentAmount,
		StateContext: json.RawMessage(`{"plan_id":"plan_1"}`),
	})

	// вклад 5 — бонус теперь можно разблокировать
	f.text("5")
	require.Equal(t, "20", f.acc().MainBalance.String())

	f.h.StartWithdraw(f.ctx, userID, f.acc())
	acc := f.acc()
	assert.Equal(t, "22", acc.MainBalance.String(), "бонус перенесён до проверки суммы")
	assert.True(t, acc.BonusBalance.IsZero())
	assert.Equal(t, accounts.StateAwaitingWalletAddress, acc.State)

	f.text("not-a-wallet")
	assert.Equal(t, en("err.invalid_wallet"), f.lastText(t))
	assert.Equal(t, accounts.StateAwaitingWalletAddress, f.acc().State)

	f.text(tronAddr)
	assert.Equal(t, accounts.StateAwaitingWalletNetwork, f.acc().State)
	last, _ := f.rec.Last(userID)
	assert.Contains(t, callbacks(last.Markup), "set_network_trc20")

	f.h.SetNetwork(f.ctx, userID, f.acc(), "bep20")
	assert.Equal(t, en("err.network_mismatch"), f.lastText(t))
	assert.Equal(t, accounts.StateAwaitingWalletNetwork, f.acc().State)

	f.h.SetNetwork(f.ctx, userID, f.acc(), "trc20")
	acc = f.acc()
	assert.Equal(t, accounts.StateAwaitingWithdrawalAmount, acc.State)
	addr, network := acc.Wallet()
	assert.Equal(t, tronAddr, addr)
	assert.Equal(t, "trc20", network)

	f.text("5")
	assert.Equal(t, en("err.below_minimum", "$10.00"), f.lastText(t))

	f.text("100")
	assert.Equal(t, en("err.insufficient", "$22.00"), f.lastText(t))
	assert.Equal(t, accounts.StateAwaitingWithdrawalAmount, f.acc().State)

	f.text("22")
	acc = f.acc()
	assert.True(t, acc.MainBalance.IsZero())
	assert.Equal(t, accounts.StateNone, acc.State)

	var withdrawal *ledger.Transaction
	for _, tx := range f.store.Transactions(userID) {
		if tx.Type == ledger.TxWithdrawal {
			tx := tx
			withdrawal = &tx
		}
	}
	require.NotNil(t, withdrawal)
	assert.Equal(t, ledger.TxPending, withdrawal.Status)
	assert.Equal(t, en("withdraw.requested", withdrawal.ID, "$22.00"), f.lastText(t))

	admin := f.rec.To(adminID)
	require.Len(t, admin, 1)
	assert.Contains(t, admin[0].Text, "#"+fmt.Sprint(withdrawal.ID))
	assert.Equal(t, []string{
		fmt.Sprintf("admin_approve_%d", withdrawal.ID),
		fmt.Sprintf("admin_reject_%d", withdrawal.ID),
	}, callbacks(admin[0].Markup))
}

func TestWithdrawBelowMinimumBalance(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{MainBalance: decimal.NewFromInt(4), BonusBalance: decimal.NewFromInt(2)})

	f.h.StartWithdraw(f.ctx, userID, f.acc())

	assert.Equal(t, en("withdraw.min_balance", "$10.00", "$4.00"), f.lastText(t))
	acc := f.acc()
	assert.Equal(t, accounts.StateNone, acc.State)
	assert.Equal(t, "2", acc.BonusBalance.String(), "без активного вклада бонус заблокирован")
}

func TestInvestValidationKeepsState(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{MainBalance: decimal.NewFromInt(10)})

	f.h.ChoosePlan(f.ctx, userID, f.acc(), 1)
	require.Equal(t, accounts.StateAwaitingInvestmentAmount, f.acc().State)

	tests := []struct {
		input string
		want  string
	}{
		{"abc", en("err.invalid_amount")},
		{"-3", en("err.invalid_amount")},
		{"2", en("err.below_minimum", "$5.00")},
		{"2000000", en("err.above_maximum", "$1000000.00")},
		{"50", en("err.insufficient", "$10.00")},
	}
	for _, tt := range tests {
		f.text(tt.input)
		assert.Equal(t, tt.want, f.lastText(t), tt.input)
		assert.Equal(t, accounts.StateAwaitingInvestmentAmount, f.acc().State, tt.input)
	}
	assert.Equal(t, "10", f.acc().MainBalance.String())
	assert.Empty(t, f.store.Investments(userID))

	f.text("10")
	acc := f.acc()
	assert.True(t, acc.MainBalance.IsZero())
	assert.Equal(t, accounts.StateNone, acc.State)
	require.Len(t, f.store.Investments(userID), 1)
	assert.Equal(t, "1.5", f.store.Investments(userID)[0].Profit.String())
}

func TestChooseUnknownPlan(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{})

	f.h.ChoosePlan(f.ctx, userID, f.acc(), 9)

	assert.Equal(t, en("err.unknown_plan"), f.lastText(t))
	assert.Equal(t, accounts.StateNone, f.acc().State)
}

func TestBrokenContextResetsToMenu(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{
		MainBalance:  decimal.NewFromInt(10),
		State:        accounts.StateAwaitingInvestmentAmount,
		StateContext: json.RawMessage(`{}`),
	})

	f.text("10")

	assert.Equal(t, en("err.expired"), f.lastText(t))
	assert.Equal(t, accounts.StateNone, f.acc().State)
	assert.Equal(t, "10", f.acc().MainBalance.String())
}

func TestManualDeposit(t *testing.T) {
	f := newFixture(t, config.DepositModeManual)
	f.seed(accounts.Account{})

	f.h.StartDeposit(f.ctx, userID, f.acc())
	require.Equal(t, accounts.StateAwaitingDepositAmount, f.acc().State)

	f.text("3")
	assert.Equal(t, en("err.below_minimum", "$6.00"), f.lastText(t))

	f.text("25")
	txs := f.store.Transactions(userID)
	require.Len(t, txs, 1)
	dep := txs[0]
	assert.Equal(t, ledger.TxPending, dep.Status)
	assert.Nil(t, dep.ExternalRef)

	acc := f.acc()
	require.Equal(t, accounts.StateAwaitingPaymentConfirmation, acc.State)
	c, err := conversation.Expect[conversation.AwaitingPaymentConfirmation](acc)
	require.NoError(t, err)
	assert.Equal(t, dep.ID, c.DepositTxID)

	last, _ := f.rec.Last(userID)
	assert.True(t, last.Photo, "инструкция с QR-кодом")
	assert.Equal(t, en("deposit.manual", "25.00", tronAddr), last.Text)
	assert.Contains(t, callbacks(last.Markup), fmt.Sprintf("deposit_paid_%d", dep.ID))

	f.text("done")
	assert.Equal(t, en("deposit.press_paid"), f.lastText(t))

	f.h.DepositPaid(f.ctx, userID, f.acc(), dep.ID+100)
	assert.Equal(t, en("err.expired"), f.lastText(t))
	assert.Empty(t, f.rec.To(adminID))

	f.h.DepositPaid(f.ctx, userID, f.acc(), dep.ID)
	assert.Equal(t, en("deposit.paid_sent"), f.lastText(t))
	assert.Equal(t, accounts.StateNone, f.acc().State)
	admin := f.rec.To(adminID)
	require.Len(t, admin, 1)
	assert.Equal(t, []string{
		fmt.Sprintf("admin_dep_approve_%d", dep.ID),
		fmt.Sprintf("admin_dep_reject_%d", dep.ID),
	}, callbacks(admin[0].Markup))

	f.h.DepositPaid(f.ctx, userID, f.acc(), dep.ID)
	assert.Equal(t, en("deposit.paid_again"), f.lastText(t))

	// второе пополнение в пределах окна: админ не дёргается повторно
	f.h.StartDeposit(f.ctx, userID, f.acc())
	f.text("10")
	second := f.acc()
	c2, err := conversation.Expect[conversation.AwaitingPaymentConfirmation](second)
	require.NoError(t, err)
	f.h.DepositPaid(f.ctx, userID, second, c2.DepositTxID)
	assert.Len(t, f.rec.To(adminID), 1)

	assert.True(t, f.acc().MainBalance.IsZero(), "до подтверждения баланс не меняется")
}

func TestInvoiceDepositGatewayFailure(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{State: accounts.StateAwaitingDepositAmount})
	f.gateway.err = fmt.Errorf("%w: timeout", common.ErrGatewayUnavailable)

	f.text("25")

	assert.Equal(t, en("deposit.api_error"), f.lastText(t))
	assert.Equal(t, accounts.StateAwaitingDepositAmount, f.acc().State)
	assert.Empty(t, f.store.Transactions(userID))

	f.gateway.err = nil
	f.text("25")

	txs := f.store.Transactions(userID)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].ExternalRef)
	assert.Equal(t, "5077125051", *txs[0].ExternalRef)
	assert.Equal(t, "25", txs[0].Amount.String())
	assert.Equal(t, accounts.StateNone, f.acc().State)

	var photo *notifytest.Sent
	for _, s := range f.rec.To(userID) {
		if s.Photo {
			s := s
			photo = &s
		}
	}
	require.NotNil(t, photo)
	assert.Contains(t, photo.Text, tronAddr)
	assert.Equal(t, en("main_menu"), f.lastText(t))
}

func TestInvoiceDepositValidatesBeforeGateway(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{State: accounts.StateAwaitingDepositAmount})

	f.text("1")

	assert.Equal(t, en("err.below_minimum", "$6.00"), f.lastText(t))
	assert.Zero(t, f.gateway.calls)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{State: accounts.StateAwaitingWithdrawalAmount})

	f.h.Cancel(f.ctx, userID, f.acc())

	assert.Equal(t, en("action_canceled"), f.lastText(t))
	assert.Equal(t, accounts.StateNone, f.acc().State)
}

func TestTextOutsideFlowIsNotParsed(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{MainBalance: decimal.NewFromInt(100)})

	f.text("50")

	assert.Equal(t, en("unknown_input"), f.lastText(t))
	assert.Empty(t, f.store.Investments(userID))
	assert.Empty(t, f.store.Transactions(userID))
}

func TestWithdrawalWithoutWalletResetsState(t *testing.T) {
	f := newFixture(t, config.DepositModeInvoice)
	f.seed(accounts.Account{
		MainBalance: decimal.NewFromInt(50),
		State:       accounts.StateAwaitingWithdrawalAmount,
	})

	f.text("20")

	assert.Equal(t, en("err.wallet_missing"), f.lastText(t))
	assert.Equal(t, accounts.StateNone, f.acc().State)
	assert.Equal(t, "50", f.acc().MainBalance.String())
}
