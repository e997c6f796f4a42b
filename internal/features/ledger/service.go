// Package ledger — service.go: движок балансов и вкладов.
// Проверяет бизнес-правила, затем вызывает атомарные операции Store.
//
// Сериализация по аккаунту: методы пользовательских сценариев (CommitInvestment,
// RequestWithdrawal, RecordDeposit, SweepMatured, UnlockBonus) ожидают, что
// вызывающий уже держит блокировку аккаунта. Методы, которые вызываются извне
// диалога пользователя (IPN, админ, реферальные выплаты), берут её сами.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/accountlock"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/plans"
)

// HistoryLimit ограничивает историю последних транзакций.
const HistoryLimit = 10

// MoneyScale равен числу знаков после точки в денежных колонках NUMERIC(20,8).
const MoneyScale = 8

// Limits содержит минимальные суммы операций.
type Limits struct {
	MinDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
}

// ReferralNotifier вызывается после фиксации реферального начисления.
type ReferralNotifier func(ctx context.Context, referrerID int64, level int, amount decimal.Decimal)

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSyncPayouts запускает реферальные выплаты в той же горутине.
func WithSyncPayouts() Option {
	return func(s *Service) { s.spawn = func(f func()) { f() } }
}

// WithReferralNotifier подключает уведомление получателей реферальных бонусов.
func WithReferralNotifier(fn ReferralNotifier) Option {
	return func(s *Service) { s.onReferral = fn }
}

// Service ведёт балансы и вклады.
type Service struct {
	store     Store
	catalog   *plans.Catalog
	referrals *plans.ReferralTable
	locker    accountlock.Locker
	limits    Limits

	now        func() time.Time
	spawn      func(func())
	onReferral ReferralNotifier
	payouts    sync.WaitGroup
}

// NewService создаёт движок.
func NewService(store Store, catalog *plans.Catalog, referrals *plans.ReferralTable,
	locker accountlock.Locker, limits Limits, opts ...Option) *Service {
	s := &Service{
		store:     store,
		catalog:   catalog,
		referrals: referrals,
		locker:    locker,
		limits:    limits,
		now:       time.Now,
	}
	s.spawn = func(f func()) {
		s.payouts.Add(1)
		go func() {
			defer s.payouts.Done()
			f()
		}()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits возвращает минимальные суммы.
func (s *Service) Limits() Limits { return s.limits }

// Catalog возвращает каталог тарифов.
func (s *Service) Catalog() *plans.Catalog { return s.catalog }

// Referrals возвращает таблицу реферальных процентов.
func (s *Service) Referrals() *plans.ReferralTable { return s.referrals }

// Now возвращает текущее время движка.
func (s *Service) Now() time.Time { return s.now() }

// Wait дожидается фоновых реферальных выплат. Вызывается при остановке,
// когда новые вклады уже не открываются.
func (s *Service) Wait() {
	s.payouts.Wait()
}

// ParseAmount разбирает сумму из текста пользователя. Допускается запятая.
// Больше MoneyScale знаков после точки база не хранит, такая сумма отклоняется.
func ParseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	text = strings.TrimPrefix(text, "$")
	d, err := decimal.NewFromString(text)
	if err != nil || !validAmount(d) {
		return decimal.Zero, common.ErrInvalidAmount
	}
	return d, nil
}

// validAmount: сумма положительна и без потерь помещается в NUMERIC(20,8).
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(MoneyScale))
}

// Account возвращает аккаунт с актуальными балансами.
func (s *Service) Account(ctx context.Context, userID int64) (*accounts.Account, error) {
	return s.store.GetAccount(ctx, userID)
}

// CommitInvestment открывает вклад из состояния awaiting_investment_amount.
// Порядок проверок: сумма > 0, тариф существует, минимум, максимум, баланс.
// После фиксации асинхронно запускает реферальные выплаты с суммы вклада.
func (s *Service) CommitInvestment(ctx context.Context, userID int64, planID string, amount decimal.Decimal) (*Investment, error) {
	if !validAmount(amount) {
		return nil, common.ErrInvalidAmount
	}
	plan, ok := s.catalog.Get(planID)
	if !ok {
		return nil, common.ErrUnknownPlan
	}
	if amount.LessThan(plan.Min) {
		return nil, common.BelowMinimum(plan.Min)
	}
	if amount.GreaterThan(plan.Max) {
		return nil, common.AboveMaximum(plan.Max)
	}

	acc, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc.MainBalance.LessThan(amount) {
		return nil, common.ErrInsufficientFunds
	}

	now := s.now()
	inv := &Investment{
		UserID:    userID,
		PlanID:    plan.ID,
		Amount:    amount,
		Profit:    plan.Profit(amount).Truncate(MoneyScale),
		StartedAt: now,
		MaturesAt: now.Add(plan.Duration),
	}
	if err := s.store.CreateInvestment(ctx, inv, accounts.StateAwaitingInvestmentAmount); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"plan_id": plan.ID,
		"amount":  amount.String(),
		"inv_id":  inv.ID,
	}).Info("Вклад открыт")

	payoutCtx := context.WithoutCancel(ctx)
	s.spawn(func() { s.ReferralPayout(payoutCtx, userID, amount) })
	return inv, nil
}

// SweepMatured закрывает все вклады аккаунта, срок которых наступил.
// Каждый вклад закрывается отдельной атомарной операцией; вклад, уже закрытый
// параллельным обходом, пропускается.
func (s *Service) SweepMatured(ctx context.Context, userID int64) ([]*Transaction, error) {
	due, err := s.store.DueInvestments(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	var paid []*Transaction
	for _, inv := range due {
		t, err := s.store.CompleteInvestment(ctx, inv.ID, s.now())
		if errors.Is(err, common.ErrAlreadyProcessed) {
			continue
		}
		if err != nil {
			return paid, fmt.Errorf("закрытие вклада %d: %w", inv.ID, err)
		}
		log.WithFields(log.Fields{
			"user_id": userID,
			"inv_id":  inv.ID,
			"profit":  inv.Profit.String(),
		}).Info("Вклад закрыт, выплата зачислена")
		paid = append(paid, t)
	}
	return paid, nil
}

// RunningInvestments возвращает активные вклады.
func (s *Service) RunningInvestments(ctx context.Context, userID int64) ([]*Investment, error) {
	return s.store.RunningInvestments(ctx, userID)
}

// ReferralPayout начисляет бонусы вверх по цепочке пригласивших.
// Каждый уровень проводится отдельно под блокировкой своего аккаунта.
// Ошибка уровня логируется и не отменяет уже сделанные начисления.
// Цепочка обрывается на уровне без процента.
func (s *Service) ReferralPayout(ctx context.Context, sourceUserID int64, amount decimal.Decimal) []*Transaction {
	var credited []*Transaction
	current := sourceUserID

	for level := 1; level <= s.referrals.Levels(); level++ {
		acc, err := s.store.GetAccount(ctx, current)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"user_id": current, "level": level}).
				Error("Реферальная цепочка прервана: не удалось прочитать аккаунт")
			break
		}
		if acc.ReferrerUserID == nil {
			break
		}
		referrerID := *acc.ReferrerUserID
		current = referrerID

		if pct, ok := s.referrals.Percent(level); !ok || !pct.IsPositive() {
			break
		}
		bonus := s.referrals.Bonus(level, amount).Truncate(MoneyScale)
		if !bonus.IsPositive() {
			continue
		}

		t, err := s.creditReferral(ctx, ReferralCredit{
			ReferrerID: referrerID,
			FromUserID: sourceUserID,
			Level:      level,
			Amount:     bonus,
		})
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"referrer_id": referrerID,
				"from":        sourceUserID,
				"level":       level,
				"amount":      bonus.String(),
			}).Error("Не удалось начислить реферальный бонус")
			continue
		}
		credited = append(credited, t)

		if s.onReferral != nil {
			s.onReferral(ctx, referrerID, level, bonus)
		}
	}
	return credited
}

func (s *Service) creditReferral(ctx context.Context, c ReferralCredit) (*Transaction, error) {
	unlock, err := s.locker.Lock(ctx, c.ReferrerID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.store.CreditReferral(ctx, c)
}

// UnlockBonus переносит бонусный баланс на основной, если есть активный вклад.
func (s *Service) UnlockBonus(ctx context.Context, userID int64) (decimal.Decimal, error) {
	moved, err := s.store.UnlockBonus(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if moved.IsPositive() {
		log.WithFields(log.Fields{"user_id": userID, "amount": moved.String()}).Info("Бонус разблокирован")
	}
	return moved, nil
}

// CheckWithdrawable проверяет, что на балансе есть хотя бы минимум для вывода.
func (s *Service) CheckWithdrawable(acc *accounts.Account) error {
	if acc.MainBalance.LessThan(s.limits.MinWithdrawal) {
		return common.BelowMinimum(s.limits.MinWithdrawal)
	}
	return nil
}

// RequestWithdrawal создаёт заявку на вывод из состояния awaiting_withdrawal_amount.
// Сумма списывается сразу; при отказе админа она вернётся на баланс.
func (s *Service) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal) (*Transaction, error) {
	if !validAmount(amount) {
		return nil, common.ErrInvalidAmount
	}
	if amount.LessThan(s.limits.MinWithdrawal) {
		return nil, common.BelowMinimum(s.limits.MinWithdrawal)
	}

	acc, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !acc.HasWallet() {
		return nil, common.ErrWalletNotConfigured
	}
	if amount.GreaterThan(acc.MainBalance) {
		return nil, common.ErrInsufficientFunds
	}

	t, err := s.store.CreateWithdrawal(ctx, userID, amount, accounts.StateAwaitingWithdrawalAmount)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": userID, "tx_id": t.ID, "amount": amount.String()}).
		Info("Заявка на вывод создана")
	return t, nil
}

// ValidateDeposit проверяет сумму пополнения до обращения к платёжному шлюзу.
func (s *Service) ValidateDeposit(amount decimal.Decimal) error {
	if !validAmount(amount) {
		return common.ErrInvalidAmount
	}
	if amount.LessThan(s.limits.MinDeposit) {
		return common.BelowMinimum(s.limits.MinDeposit)
	}
	return nil
}

// RecordDeposit создаёт pending-пополнение. Баланс не меняется до подтверждения.
func (s *Service) RecordDeposit(ctx context.Context, req DepositRequest) (*Transaction, error) {
	if err := s.ValidateDeposit(req.Amount); err != nil {
		return nil, err
	}
	t, err := s.store.CreateDeposit(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": req.UserID, "tx_id": t.ID, "amount": req.Amount.String()}).
		Info("Заявка на пополнение создана")
	return t, nil
}

// ConfirmDeposit подтверждает пополнение по payment_id шлюза.
// Повторное подтверждение не считается ошибкой и возвращает applied=false.
// Зачисляется сумма из заявки, а не сумма из уведомления.
func (s *Service) ConfirmDeposit(ctx context.Context, externalRef string) (*Transaction, bool, error) {
	return s.settleExternal(ctx, externalRef, SettleApprove)
}

// FailDeposit помечает пополнение неудачным (истёк счёт, ошибка оплаты).
func (s *Service) FailDeposit(ctx context.Context, externalRef string) (*Transaction, bool, error) {
	return s.settleExternal(ctx, externalRef, SettleReject)
}

func (s *Service) settleExternal(ctx context.Context, externalRef string, outcome Settlement) (*Transaction, bool, error) {
	t, err := s.store.FindByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, false, err
	}
	if t.Type != TxDeposit {
		return nil, false, common.ErrTransactionNotFound
	}
	if t.Status != TxPending {
		return t, false, nil
	}

	settled, err := s.settleLocked(ctx, t, outcome)
	if errors.Is(err, common.ErrAlreadyProcessed) {
		return t, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return settled, true, nil
}

// SettleDeposit применяет решение админа по ручному пополнению.
func (s *Service) SettleDeposit(ctx context.Context, txID int64, outcome Settlement) (*Transaction, error) {
	return s.settleByID(ctx, txID, TxDeposit, outcome)
}

// SettleWithdrawal применяет решение админа по заявке на вывод.
func (s *Service) SettleWithdrawal(ctx context.Context, txID int64, outcome Settlement) (*Transaction, error) {
	return s.settleByID(ctx, txID, TxWithdrawal, outcome)
}

func (s *Service) settleByID(ctx context.Context, txID int64, typ TxType, outcome Settlement) (*Transaction, error) {
	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Type != typ {
		return nil, common.ErrTransactionNotFound
	}
	if t.Status != TxPending {
		return nil, common.ErrAlreadyProcessed
	}
	return s.settleLocked(ctx, t, outcome)
}

func (s *Service) settleLocked(ctx context.Context, t *Transaction, outcome Settlement) (*Transaction, error) {
	unlock, err := s.locker.Lock(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	settled, err := s.store.Settle(ctx, t.ID, t.Type, outcome)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id": settled.UserID,
		"tx_id":   settled.ID,
		"type":    settled.Type,
		"status":  settled.Status,
		"amount":  settled.Amount.String(),
	}).Info("Транзакция обработана")
	return settled, nil
}

// Adjust проводит ручную корректировку основного баланса админом.
func (s *Service) Adjust(ctx context.Context, userID int64, delta decimal.Decimal) (*Transaction, error) {
	if !validAmount(delta.Abs()) {
		return nil, common.ErrInvalidAmount
	}
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := s.store.Adjust(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": userID, "delta": delta.String(), "tx_id": t.ID}).
		Warn("Ручная корректировка баланса")
	return t, nil
}

// History возвращает последние транзакции аккаунта.
func (s *Service) History(ctx context.Context, userID int64) ([]*Transaction, error) {
	return s.store.History(ctx, userID, HistoryLimit)
}

// PendingStats возвращает сводку ожидающих операций.
func (s *Service) PendingStats(ctx context.Context) (PendingStats, error) {
	return s.store.PendingStats(ctx)
}

// Transaction возвращает транзакцию по ID.
func (s *Service) Transaction(ctx context.Context, id int64) (*Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}
