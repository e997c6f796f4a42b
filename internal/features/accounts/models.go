// Package accounts управляет аккаунтами инвесторов: регистрацией,
// реферальной привязкой, языком, кошельком и состоянием диалога.
// models.go описывает структуру строки таблицы accounts.
package accounts

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// State обозначает текущий шаг диалога с пользователем.
type State string

// Возможные состояния диалога
const (
	StateNone                        State = "none"
	StateAwaitingInvestmentAmount    State = "awaiting_investment_amount"
	StateAwaitingDepositAmount       State = "awaiting_deposit_amount"
	StateAwaitingPaymentConfirmation State = "awaiting_payment_confirmation"
	StateAwaitingWalletAddress       State = "awaiting_wallet_address"
	StateAwaitingWalletNetwork       State = "awaiting_wallet_network"
	StateAwaitingWithdrawalAmount    State = "awaiting_withdrawal_amount"
)

// Account описывает инвестора. Идентифицируется Telegram user ID.
type Account struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"` // Telegram user ID (уникальный)
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	Language  string `db:"language"`

	MainBalance  decimal.Decimal `db:"main_balance"`
	BonusBalance decimal.Decimal `db:"bonus_balance"` // заблокирован до первого вклада

	WalletAddress *string `db:"wallet_address"`
	WalletNetwork *string `db:"wallet_network"`

	State        State           `db:"state"`
	StateContext json.RawMessage `db:"state_context"`

	ReferrerUserID   *int64          `db:"referrer_user_id"`
	ReferralEarnings decimal.Decimal `db:"referral_earnings"`
	TotalInvested    decimal.Decimal `db:"total_invested"`
	TotalWithdrawn   decimal.Decimal `db:"total_withdrawn"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DisplayName возвращает отображаемое имя пользователя.
func (a *Account) DisplayName() string {
	if a.FirstName != "" {
		return a.FirstName
	}
	if a.Username != "" {
		return "@" + a.Username
	}
	return "investor"
}

// HasWallet проверяет, указан ли кошелёк для вывода.
func (a *Account) HasWallet() bool {
	return a.WalletAddress != nil && *a.WalletAddress != "" && a.WalletNetwork != nil && *a.WalletNetwork != ""
}

// Wallet возвращает адрес и сеть (пустые строки, если не заданы).
func (a *Account) Wallet() (address, network string) {
	if a.WalletAddress != nil {
		address = *a.WalletAddress
	}
	if a.WalletNetwork != nil {
		network = *a.WalletNetwork
	}
	return address, network
}

// ReferralCounts содержит количество рефералов по уровням.
type ReferralCounts struct {
	Level1 int
	Level2 int
	Level3 int
}

// RegisterRequest содержит данные пользователя из /start.
type RegisterRequest struct {
	UserID       int64
	Username     string
	FirstName    string
	LanguageCode string // language_code из Telegram
	StartPayload string // "ref_<telegram_id>" или пусто
}
