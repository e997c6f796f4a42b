// Package conversation ведёт пошаговые диалоги: вклад, пополнение, вывод.
// context.go задаёт типизированный контекст каждого состояния диалога.
// В БД контекст лежит как JSON, наружу отдаётся только конкретный тип.
package conversation

import (
	"encoding/json"
	"fmt"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
)

// Context описывает данные, которые нужны конкретному состоянию.
type Context interface {
	State() accounts.State
	valid() bool
}

// None — диалога нет.
type None struct{}

// AwaitingInvestmentAmount — ждём сумму вклада по выбранному тарифу.
type AwaitingInvestmentAmount struct {
	PlanID string `json:"plan_id"`
}

// AwaitingDepositAmount — ждём сумму пополнения.
type AwaitingDepositAmount struct{}

// AwaitingPaymentConfirmation — ждём нажатия «Я оплатил» по ручному пополнению.
type AwaitingPaymentConfirmation struct {
	DepositTxID int64 `json:"deposit_tx_id"`
}

// AwaitingWalletAddress — ждём адрес кошелька для вывода.
type AwaitingWalletAddress struct{}

// AwaitingWalletNetwork — адрес получен, ждём выбор сети.
type AwaitingWalletNetwork struct {
	WalletAddress string `json:"wallet_address"`
}

// AwaitingWithdrawalAmount — ждём сумму вывода.
type AwaitingWithdrawalAmount struct{}

func (None) State() accounts.State                        { return accounts.StateNone }
func (AwaitingInvestmentAmount) State() accounts.State    { return accounts.StateAwaitingInvestmentAmount }
func (AwaitingDepositAmount) State() accounts.State       { return accounts.StateAwaitingDepositAmount }
func (AwaitingPaymentConfirmation) State() accounts.State { return accounts.StateAwaitingPaymentConfirmation }
func (AwaitingWalletAddress) State() accounts.State       { return accounts.StateAwaitingWalletAddress }
func (AwaitingWalletNetwork) State() accounts.State       { return accounts.StateAwaitingWalletNetwork }
func (AwaitingWithdrawalAmount) State() accounts.State    { return accounts.StateAwaitingWithdrawalAmount }

func (None) valid() bool                          { return true }
func (c AwaitingInvestmentAmount) valid() bool    { return c.PlanID != "" }
func (AwaitingDepositAmount) valid() bool         { return true }
func (c AwaitingPaymentConfirmation) valid() bool { return c.DepositTxID > 0 }
func (AwaitingWalletAddress) valid() bool         { return true }
func (c AwaitingWalletNetwork) valid() bool       { return c.WalletAddress != "" }
func (AwaitingWithdrawalAmount) valid() bool      { return true }

// Encode сериализует контекст для записи в accounts.state_context.
func Encode(c Context) (json.RawMessage, error) {
	if !c.valid() {
		return nil, fmt.Errorf("неполный контекст состояния %s", c.State())
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("сериализация контекста %s: %w", c.State(), err)
	}
	return raw, nil
}

// Decode восстанавливает контекст по состоянию. Пустое или битое поле → ErrStateExpired.
func Decode(state accounts.State, raw json.RawMessage) (Context, error) {
	var c Context
	switch state {
	case accounts.StateNone:
		return None{}, nil
	case accounts.StateAwaitingInvestmentAmount:
		c = decodeInto[AwaitingInvestmentAmount](raw)
	case accounts.StateAwaitingDepositAmount:
		return AwaitingDepositAmount{}, nil
	case accounts.StateAwaitingPaymentConfirmation:
		c = decodeInto[AwaitingPaymentConfirmation](raw)
	case accounts.StateAwaitingWalletAddress:
		return AwaitingWalletAddress{}, nil
	case accounts.StateAwaitingWalletNetwork:
		c = decodeInto[AwaitingWalletNetwork](raw)
	case accounts.StateAwaitingWithdrawalAmount:
		return AwaitingWithdrawalAmount{}, nil
	default:
		return nil, fmt.Errorf("%w: неизвестное состояние %q", common.ErrStateExpired, state)
	}
	if c == nil || !c.valid() {
		return nil, fmt.Errorf("%w: пустой контекст %s", common.ErrStateExpired, state)
	}
	return c, nil
}

func decodeInto[T Context](raw json.RawMessage) Context {
	var v T
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

// Expect достаёт контекст нужного типа из аккаунта.
// Если аккаунт в другом состоянии или контекст неполный, возвращает ErrStateExpired.
func Expect[T Context](acc *accounts.Account) (T, error) {
	var zero T
	if acc.State != zero.State() {
		return zero, common.ErrStateExpired
	}
	c, err := Decode(acc.State, acc.StateContext)
	if err != nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		return zero, common.ErrStateExpired
	}
	return v, nil
}
