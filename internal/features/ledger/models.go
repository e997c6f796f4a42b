// Package ledger — денежное ядро бота: балансы, вклады, транзакции, реферальные выплаты.
// models.go описывает вклады и записи журнала транзакций.
package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/invest-bot/internal/features/accounts"
)

// InvestmentStatus задаёт статус вклада.
type InvestmentStatus string

const (
	InvestmentRunning   InvestmentStatus = "running"
	InvestmentCompleted InvestmentStatus = "completed"
)

// Investment описывает вклад по тарифу.
type Investment struct {
	ID        int64            `db:"id"`
	UserID    int64            `db:"user_id"`
	PlanID    string           `db:"plan_id"`
	Amount    decimal.Decimal  `db:"amount"`
	Profit    decimal.Decimal  `db:"profit"` // ожидаемая прибыль, фиксируется при открытии
	Status    InvestmentStatus `db:"status"`
	StartedAt time.Time        `db:"started_at"`
	MaturesAt time.Time        `db:"matures_at"`
}

// Payout возвращает сумму, которая вернётся на баланс при закрытии: тело + прибыль.
func (i *Investment) Payout() decimal.Decimal {
	return i.Amount.Add(i.Profit)
}

// Remaining возвращает время до закрытия.
func (i *Investment) Remaining(now time.Time) time.Duration {
	if d := i.MaturesAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// TxType задаёт тип записи журнала.
type TxType string

const (
	TxDeposit          TxType = "deposit"
	TxWithdrawal       TxType = "withdrawal"
	TxReferralBonus    TxType = "referral_bonus"
	TxInvestmentProfit TxType = "investment_profit"
	TxAdminCredit      TxType = "admin_credit"
	TxAdminDebit       TxType = "admin_debit"
	TxBonusUnlock      TxType = "bonus_unlock"
)

// TxStatus задаёт статус записи журнала.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// Transaction представляет запись журнала. Единственный источник истины о движении денег.
type Transaction struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Type          TxType          `db:"type"`
	Amount        decimal.Decimal `db:"amount"`
	Status        TxStatus        `db:"status"`
	ExternalRef   *string         `db:"external_ref"`   // payment_id шлюза, уникален
	FromUserID    *int64          `db:"from_user_id"`   // источник реферального бонуса
	Level         *int            `db:"level"`          // уровень реферального бонуса
	WalletAddress *string         `db:"wallet_address"` // снимок кошелька для вывода
	WalletNetwork *string         `db:"wallet_network"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Settlement задаёт исход ревью pending-транзакции.
type Settlement string

const (
	SettleApprove Settlement = "approve"
	SettleReject  Settlement = "reject"
)

// NextState задаёт состояние диалога, которое выставляется в той же транзакции БД,
// что и запись журнала. Build получает ID только что созданной транзакции.
type NextState struct {
	State accounts.State
	Build func(txID int64) (json.RawMessage, error)
}

// DepositRequest описывает заявку на пополнение.
type DepositRequest struct {
	UserID      int64
	Amount      decimal.Decimal
	ExternalRef *string
	// Expect задаёт состояние диалога, в котором заявка допустима (CAS).
	Expect accounts.State
	// Next задаёт следующий шаг диалога. nil сбрасывает в none.
	Next *NextState
}

// ReferralCredit описывает начисление одному уровню реферальной цепочки.
type ReferralCredit struct {
	ReferrerID int64
	FromUserID int64
	Level      int
	Amount     decimal.Decimal
}

// PendingStats содержит сводку ожидающих операций для админа.
type PendingStats struct {
	Withdrawals      int
	WithdrawalsTotal decimal.Decimal
	Deposits         int
	DepositsTotal    decimal.Decimal
}

// Empty сообщает, что ожидающих операций нет.
func (p PendingStats) Empty() bool {
	return p.Withdrawals == 0 && p.Deposits == 0
}
