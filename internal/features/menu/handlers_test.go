package menu_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/accountlock"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/ledger/ledgertest"
	"serotonyl.ru/invest-bot/internal/features/menu"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/features/notify/notifytest"
	"serotonyl.ru/invest-bot/internal/features/plans"
	"serotonyl.ru/invest-bot/internal/i18n"
)

const userID int64 = 42

type fixture struct {
	store  *ledgertest.MemStore
	engine *ledger.Service
	rec    *notifytest.Recorder
	h      *menu.Handler
	now    time.Time
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: ledgertest.New(),
		rec:   notifytest.New(),
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ctx:   context.Background(),
	}
	f.store.SetClock(func() time.Time { return f.now })
	f.engine = ledger.NewService(f.store, plans.DefaultCatalog(), plans.DefaultReferralTable(),
		accountlock.NewMemory(),
		ledger.Limits{MinDeposit: decimal.NewFromInt(6), MinWithdrawal: decimal.NewFromInt(10)},
		ledger.WithClock(func() time.Time { return f.now }),
		ledger.WithSyncPayouts(),
	)
	cfg := &config.Config{BotUsername: "invest_bot", SupportUsername: "@helpdesk", AppTimezone: "UTC"}
	notifier := notify.New(f.rec, 1).WithRetryDelay(time.Millisecond)
	f.h = menu.NewHandler(cfg, accounts.NewService(f.store, decimal.NewFromInt(2)), f.engine, notifier)
	return f
}

func (f *fixture) last(t *testing.T) notifytest.Sent {
	t.Helper()
	s, ok := f.rec.Last(userID)
	require.True(t, ok)
	return s
}

func TestStartAsksNewcomerForLanguage(t *testing.T) {
	f := newFixture(t)
	acc := &accounts.Account{UserID: userID, FirstName: "Ann", Language: "en", BonusBalance: decimal.NewFromInt(2)}

	f.h.Start(userID, acc, true)
	s := f.last(t)
	assert.Contains(t, s.Text, "Ann")
	assert.Contains(t, s.Text, "$2.00")
	_, inline := s.Markup.(tgbotapi.InlineKeyboardMarkup)
	assert.True(t, inline, "выбор языка")

	f.h.Start(userID, acc, false)
	s = f.last(t)
	assert.Equal(t, i18n.T(i18n.EN, "welcome_back", "Ann"), s.Text)
	_, reply := s.Markup.(tgbotapi.ReplyKeyboardMarkup)
	assert.True(t, reply, "главное меню")
}

func TestSetLanguageSwitchesMenu(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(accounts.Account{UserID: userID})

	f.h.SetLanguage(f.ctx, userID, f.store.Snapshot(userID), "ru")

	assert.Equal(t, "ru", f.store.Snapshot(userID).Language)
	s := f.last(t)
	assert.Equal(t, i18n.T(i18n.RU, "language_set"), s.Text)
	kb := s.Markup.(tgbotapi.ReplyKeyboardMarkup)
	assert.Equal(t, i18n.T(i18n.RU, "btn.invest"), kb.Keyboard[0][0].Text)
}

func TestInvestmentsSweepsMaturedFirst(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(accounts.Account{
		UserID:       userID,
		MainBalance:  decimal.NewFromInt(100),
		State:        accounts.StateAwaitingInvestmentAmount,
		StateContext: json.RawMessage(`{"plan_id":"plan_1"}`),
	})
	_, err := f.engine.CommitInvestment(f.ctx, userID, "plan_1", decimal.NewFromInt(50))
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	f.h.Investments(f.ctx, userID, f.store.Snapshot(userID))
	s := f.last(t)
	assert.Contains(t, s.Text, i18n.T(i18n.EN, "investments.header"))
	assert.Contains(t, s.Text, "22h 0m", "осталось до закрытия")

	f.now = f.now.Add(23 * time.Hour)
	f.rec.Reset()
	f.h.Investments(f.ctx, userID, f.store.Snapshot(userID))

	msgs := f.rec.To(userID)
	require.Len(t, msgs, 2)
	assert.Equal(t, i18n.T(i18n.EN, "investments.matured", 1, "$57.50"), msgs[0].Text)
	assert.Equal(t, i18n.T(i18n.EN, "investments.empty"), msgs[1].Text)
	assert.Equal(t, "107.5", f.store.Snapshot(userID).MainBalance.String())
}

func TestTransactionsList(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(accounts.Account{UserID: userID})

	f.h.Transactions(f.ctx, userID, f.store.Snapshot(userID))
	assert.Equal(t, i18n.T(i18n.EN, "tx.empty"), f.last(t).Text)

	_, err := f.engine.Adjust(f.ctx, userID, decimal.NewFromInt(15))
	require.NoError(t, err)

	f.h.Transactions(f.ctx, userID, f.store.Snapshot(userID))
	text := f.last(t).Text
	assert.Contains(t, text, "✅ Credit $15.00")
	assert.Contains(t, text, "01.03.2026 09:00")
}

func TestReferralScreen(t *testing.T) {
	f := newFixture(t)
	ref := userID
	f.store.Seed(accounts.Account{UserID: userID, ReferralEarnings: decimal.RequireFromString("3.5")})
	f.store.Seed(accounts.Account{UserID: 43, ReferrerUserID: &ref})
	f.store.Seed(accounts.Account{UserID: 44, ReferrerUserID: &ref})

	f.h.Referral(f.ctx, userID, f.store.Snapshot(userID))

	text := f.last(t).Text
	assert.Contains(t, text, "https://t.me/invest_bot?start=ref_42")
	assert.Contains(t, text, "Level 1 (7%): 2")
	assert.Contains(t, text, "Level 2 (6%): 0")
	assert.Contains(t, text, "$3.50")
}

func TestRouteMenuKeys(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(accounts.Account{UserID: userID, MainBalance: decimal.NewFromInt(12)})
	acc := f.store.Snapshot(userID)

	assert.True(t, f.h.Route(f.ctx, userID, acc, "btn.balance"))
	assert.Contains(t, f.last(t).Text, "$12.00")

	assert.True(t, f.h.Route(f.ctx, userID, acc, "btn.support"))
	assert.Equal(t, i18n.T(i18n.EN, "support", "helpdesk"), f.last(t).Text)

	assert.False(t, f.h.Route(f.ctx, userID, acc, "btn.deposit"), "пополнение — сценарий, а не экран")
}
