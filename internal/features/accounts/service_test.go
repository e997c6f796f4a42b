package accounts_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger/ledgertest"
	"serotonyl.ru/invest-bot/internal/i18n"
)

func newService() (*accounts.Service, *ledgertest.MemStore) {
	store := ledgertest.New()
	return accounts.NewService(store, decimal.NewFromInt(2)), store
}

func TestParseReferralCode(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"ref_123", 123, true},
		{" ref_42 ", 42, true},
		{"ref_", 0, false},
		{"ref_abc", 0, false},
		{"ref_-5", 0, false},
		{"123", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := accounts.ParseReferralCode(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRegisterNewAccount(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	acc, created, err := svc.Register(ctx, accounts.RegisterRequest{
		UserID:       100,
		Username:     "ivan",
		FirstName:    "Иван",
		LanguageCode: "ru-RU",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, i18n.RU, acc.Locale())
	assert.True(t, decimal.NewFromInt(2).Equal(acc.BonusBalance), "приветственный бонус")
	assert.True(t, acc.MainBalance.IsZero())
	assert.Equal(t, accounts.StateNone, acc.State)
	assert.Nil(t, acc.ReferrerUserID)
}

func TestRegisterIsIdempotent(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	req := accounts.RegisterRequest{UserID: 100, LanguageCode: "en"}

	first, created, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	// повторный /start с другим кодом не меняет реферера и не дарит второй бонус
	req.StartPayload = "ref_5"
	second, created, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Nil(t, second.ReferrerUserID)
	assert.True(t, first.BonusBalance.Equal(second.BonusBalance))
}

func TestRegisterReferrer(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantReferrer *int64
	}{
		{"existing referrer", "ref_1", func() *int64 { v := int64(1); return &v }()},
		{"unknown referrer", "ref_999", nil},
		{"self referral", "ref_100", nil},
		{"garbage payload", "hello", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService()
			store.Seed(accounts.Account{UserID: 1})

			acc, created, err := svc.Register(context.Background(), accounts.RegisterRequest{
				UserID:       100,
				StartPayload: tt.payload,
			})
			require.NoError(t, err)
			require.True(t, created)
			assert.Equal(t, tt.wantReferrer, acc.ReferrerUserID)
		})
	}
}

func TestReferralCountsByLevel(t *testing.T) {
	svc, store := newService()
	ref := func(id int64) *int64 { return &id }

	store.Seed(accounts.Account{UserID: 1})
	store.Seed(accounts.Account{UserID: 2, ReferrerUserID: ref(1)})
	store.Seed(accounts.Account{UserID: 3, ReferrerUserID: ref(1)})
	store.Seed(accounts.Account{UserID: 4, ReferrerUserID: ref(2)})
	store.Seed(accounts.Account{UserID: 5, ReferrerUserID: ref(4)})
	store.Seed(accounts.Account{UserID: 6, ReferrerUserID: ref(5)})

	counts, err := svc.ReferralCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, accounts.ReferralCounts{Level1: 2, Level2: 1, Level3: 1}, counts)
}

func TestSetLanguage(t *testing.T) {
	svc, store := newService()
	store.Seed(accounts.Account{UserID: 1})

	require.NoError(t, svc.SetLanguage(context.Background(), 1, i18n.RU))
	assert.Equal(t, i18n.RU, store.Snapshot(1).Locale())
}
