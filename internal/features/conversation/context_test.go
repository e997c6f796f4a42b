package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
)

func TestEncodeRejectsIncompleteContext(t *testing.T) {
	_, err := Encode(AwaitingInvestmentAmount{})
	assert.Error(t, err)

	raw, err := Encode(AwaitingWalletNetwork{WalletAddress: "TXYZ"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"wallet_address":"TXYZ"}`, string(raw))
}

func TestDecodeByState(t *testing.T) {
	tests := []struct {
		name    string
		state   accounts.State
		raw     string
		want    Context
		expired bool
	}{
		{"none", accounts.StateNone, ``, None{}, false},
		{"plan", accounts.StateAwaitingInvestmentAmount, `{"plan_id":"plan_2"}`, AwaitingInvestmentAmount{PlanID: "plan_2"}, false},
		{"plan missing", accounts.StateAwaitingInvestmentAmount, `{}`, nil, true},
		{"plan broken json", accounts.StateAwaitingInvestmentAmount, `{"plan_id":`, nil, true},
		{"deposit tx", accounts.StateAwaitingPaymentConfirmation, `{"deposit_tx_id":12}`, AwaitingPaymentConfirmation{DepositTxID: 12}, false},
		{"deposit tx zero", accounts.StateAwaitingPaymentConfirmation, `{"deposit_tx_id":0}`, nil, true},
		{"no payload needed", accounts.StateAwaitingWithdrawalAmount, ``, AwaitingWithdrawalAmount{}, false},
		{"unknown state", accounts.State("awaiting_pin"), `{}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.state, json.RawMessage(tt.raw))
			if tt.expired {
				assert.ErrorIs(t, err, common.ErrStateExpired)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpect(t *testing.T) {
	acc := &accounts.Account{
		State:        accounts.StateAwaitingWalletNetwork,
		StateContext: json.RawMessage(`{"wallet_address":"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"}`),
	}

	c, err := Expect[AwaitingWalletNetwork](acc)
	require.NoError(t, err)
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", c.WalletAddress)

	_, err = Expect[AwaitingWithdrawalAmount](acc)
	assert.ErrorIs(t, err, common.ErrStateExpired, "другое состояние")

	acc.State = accounts.StateNone
	_, err = Expect[AwaitingWalletNetwork](acc)
	assert.ErrorIs(t, err, common.ErrStateExpired, "диалог уже сброшен")
}
