package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/invest-bot/internal/features/accounts"
)

// Store — журнал и балансы. Каждая мутирующая операция — одна атомарная единица:
// изменение баланса и соответствующая запись журнала фиксируются вместе или никак.
// Реализации: Repository (PostgreSQL) и ledgertest.MemStore.
type Store interface {
	GetAccount(ctx context.Context, userID int64) (*accounts.Account, error)

	// CreateInvestment списывает inv.Amount с основного баланса, увеличивает total_invested,
	// создаёт вклад и сбрасывает диалог expect → none. Заполняет inv.ID и inv.StartedAt.
	CreateInvestment(ctx context.Context, inv *Investment, expect accounts.State) error
	RunningInvestments(ctx context.Context, userID int64) ([]*Investment, error)
	DueInvestments(ctx context.Context, userID int64, now time.Time) ([]*Investment, error)
	// CompleteInvestment закрывает вклад, если он running и срок наступил.
	// Иначе возвращает common.ErrAlreadyProcessed.
	CompleteInvestment(ctx context.Context, investmentID int64, now time.Time) (*Transaction, error)

	CreditReferral(ctx context.Context, c ReferralCredit) (*Transaction, error)
	// UnlockBonus переносит бонусный баланс на основной, если есть running-вклад.
	// Возвращает перенесённую сумму, ноль если переносить нечего.
	UnlockBonus(ctx context.Context, userID int64) (decimal.Decimal, error)

	CreateWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, expect accounts.State) (*Transaction, error)
	CreateDeposit(ctx context.Context, req DepositRequest) (*Transaction, error)

	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (*Transaction, error)
	// Settle переводит pending-транзакцию типа typ в completed/failed с нужным эффектом на баланс.
	Settle(ctx context.Context, txID int64, typ TxType, outcome Settlement) (*Transaction, error)

	// Adjust проводит ручное начисление (delta > 0) или списание (delta < 0) админом.
	Adjust(ctx context.Context, userID int64, delta decimal.Decimal) (*Transaction, error)

	History(ctx context.Context, userID int64, limit int) ([]*Transaction, error)
	PendingStats(ctx context.Context) (PendingStats, error)
}
