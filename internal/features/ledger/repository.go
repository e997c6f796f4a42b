// Package ledger — repository.go выполняет все денежные операции над таблицами
// accounts, investments и transactions. Каждая операция — одна транзакция БД,
// строка аккаунта блокируется через FOR UPDATE.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/db/postgres"
	"serotonyl.ru/invest-bot/internal/features/accounts"
)

const txColumns = `id, user_id, type, amount, status, external_ref, from_user_id, level,
	wallet_address, wallet_network, created_at, updated_at`

const investmentColumns = `id, user_id, plan_id, amount, profit, status, started_at, matures_at`

// Repository реализует Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetAccount(ctx context.Context, userID int64) (*accounts.Account, error) {
	query := `SELECT ` + accounts.AccountColumns + ` FROM accounts WHERE user_id = $1`
	a, err := accounts.ScanAccount(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("чтение аккаунта (user_id=%d): %w", userID, err)
	}
	return a, nil
}

// lockAccount читает аккаунт с блокировкой строки до конца транзакции.
func lockAccount(ctx context.Context, tx pgx.Tx, userID int64) (*accounts.Account, error) {
	query := `SELECT ` + accounts.AccountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`
	a, err := accounts.ScanAccount(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("блокировка аккаунта (user_id=%d): %w", userID, err)
	}
	return a, nil
}

func (r *Repository) CreateInvestment(ctx context.Context, inv *Investment, expect accounts.State) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, inv.UserID)
		if err != nil {
			return err
		}
		if acc.State != expect {
			return common.ErrStateExpired
		}
		if acc.MainBalance.LessThan(inv.Amount) {
			return common.ErrInsufficientFunds
		}

		if _, err := tx.Exec(ctx, `
			UPDATE accounts
			SET main_balance = main_balance - $2,
			    total_invested = total_invested + $2,
			    state = 'none', state_context = '{}'::jsonb,
			    updated_at = NOW()
			WHERE user_id = $1
		`, inv.UserID, inv.Amount); err != nil {
			return fmt.Errorf("ошибка списания под вклад: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO investments (user_id, plan_id, amount, profit, status, started_at, matures_at)
			VALUES ($1, $2, $3, $4, 'running', $5, $6)
			RETURNING id
		`, inv.UserID, inv.PlanID, inv.Amount, inv.Profit, inv.StartedAt, inv.MaturesAt).Scan(&inv.ID)
		if err != nil {
			return fmt.Errorf("ошибка создания вклада: %w", err)
		}
		inv.Status = InvestmentRunning
		return nil
	})
}

func (r *Repository) RunningInvestments(ctx context.Context, userID int64) ([]*Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE user_id = $1 AND status = 'running' ORDER BY matures_at`
	return r.queryInvestments(ctx, query, userID)
}

func (r *Repository) DueInvestments(ctx context.Context, userID int64, now time.Time) ([]*Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE user_id = $1 AND status = 'running' AND matures_at <= $2 ORDER BY matures_at`
	return r.queryInvestments(ctx, query, userID, now)
}

func (r *Repository) CompleteInvestment(ctx context.Context, investmentID int64, now time.Time) (*Transaction, error) {
	var out *Transaction
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var userID int64
		var amount, profit decimal.Decimal
		// Условный UPDATE — только один из параллельных обходов закроет вклад
		err := tx.QueryRow(ctx, `
			UPDATE investments SET status = 'completed'
			WHERE id = $1 AND status = 'running' AND matures_at <= $2
			RETURNING user_id, amount, profit
		`, investmentID, now).Scan(&userID, &amount, &profit)
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrAlreadyProcessed
		}
		if err != nil {
			return fmt.Errorf("ошибка закрытия вклада %d: %w", investmentID, err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE accounts SET main_balance = main_balance + $2, updated_at = NOW()
			WHERE user_id = $1
		`, userID, amount.Add(profit)); err != nil {
			return fmt.Errorf("ошибка выплаты по вкладу: %w", err)
		}

		out, err = insertTx(ctx, tx, &Transaction{
			UserID: userID,
			Type:   TxInvestmentProfit,
			Amount: amount.Add(profit),
			Status: TxCompleted,
		})
		return err
	})
	return out, err
}

func (r *Repository) CreditReferral(ctx context.Context, c ReferralCredit) (*Transaction, error) {
	var out *Transaction
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := lockAccount(ctx, tx, c.ReferrerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE accounts
			SET main_balance = main_balance + $2,
			    referral_earnings = referral_earnings + $2,
			    updated_at = NOW()
			WHERE user_id = $1
		`, c.ReferrerID, c.Amount); err != nil {
			return fmt.Errorf("ошибка начисления реферального бонуса: %w", err)
		}

		from, level := c.FromUserID, c.Level
		var err error
		out, err = insertTx(ctx, tx, &Transaction{
			UserID:     c.ReferrerID,
			Type:       TxReferralBonus,
			Amount:     c.Amount,
			Status:     TxCompleted,
			FromUserID: &from,
			Level:      &level,
		})
		return err
	})
	return out, err
}

func (r *Repository) UnlockBonus(ctx context.Context, userID int64) (decimal.Decimal, error) {
	moved := decimal.Zero
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !acc.BonusBalance.IsPositive() {
			return nil
		}

		var hasRunning bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM investments WHERE user_id = $1 AND status = 'running')`, userID,
		).Scan(&hasRunning); err != nil {
			return fmt.Errorf("ошибка проверки вкладов: %w", err)
		}
		if !hasRunning {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE accounts
			SET main_balance = main_balance + bonus_balance, bonus_balance = 0, updated_at = NOW()
			WHERE user_id = $1
		`, userID); err != nil {
			return fmt.Errorf("ошибка разблокировки бонуса: %w", err)
		}
		if _, err := insertTx(ctx, tx, &Transaction{
			UserID: userID,
			Type:   TxBonusUnlock,
			Amount: acc.BonusBalance,
			Status: TxCompleted,
		}); err != nil {
			return err
		}
		moved = acc.BonusBalance
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return moved, nil
}

func (r *Repository) CreateWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, expect accounts.State) (*Transaction, error) {
	var out *Transaction
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if acc.State != expect {
			return common.ErrStateExpired
		}
		if !acc.HasWallet() {
			return common.ErrWalletNotConfigured
		}
		if acc.MainBalance.LessThan(amount) {
			return common.ErrInsufficientFunds
		}

		// Оптимистичное списание: при отказе админа сумма вернётся
		if _, err := tx.Exec(ctx, `
			UPDATE accounts
			SET main_balance = main_balance - $2,
			    state = 'none', state_context = '{}'::jsonb,
			    updated_at = NOW()
			WHERE user_id = $1
		`, userID, amount); err != nil {
			return fmt.Errorf("ошибка списания под вывод: %w", err)
		}

		out, err = insertTx(ctx, tx, &Transaction{
			UserID:        userID,
			Type:          TxWithdrawal,
			Amount:        amount,
			Status:        TxPending,
			WalletAddress: acc.WalletAddress,
			WalletNetwork: acc.WalletNetwork,
		})
		return err
	})
	return out, err
}

func (r *Repository) CreateDeposit(ctx context.Context, req DepositRequest) (*Transaction, error) {
	var out *Transaction
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if acc.State != req.Expect {
			return common.ErrStateExpired
		}

		out, err = insertTx(ctx, tx, &Transaction{
			UserID:      req.UserID,
			Type:        TxDeposit,
			Amount:      req.Amount,
			Status:      TxPending,
			ExternalRef: req.ExternalRef,
		})
		if err != nil {
			return err
		}

		next, raw, err := req.resolveNext(out.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE accounts SET state = $2, state_context = $3, updated_at = NOW() WHERE user_id = $1
		`, req.UserID, string(next), []byte(raw)); err != nil {
			return fmt.Errorf("ошибка смены состояния: %w", err)
		}
		return nil
	})
	return out, err
}

// resolveNext возвращает состояние диалога после создания депозита.
func (req DepositRequest) resolveNext(txID int64) (accounts.State, json.RawMessage, error) {
	if req.Next == nil {
		return accounts.StateNone, json.RawMessage("{}"), nil
	}
	raw, err := req.Next.Build(txID)
	if err != nil {
		return "", nil, fmt.Errorf("контекст состояния %s: %w", req.Next.State, err)
	}
	return req.Next.State, raw, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTx(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение транзакции %d: %w", id, err)
	}
	return t, nil
}

func (r *Repository) FindByExternalRef(ctx context.Context, ref string) (*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE external_ref = $1`
	t, err := scanTx(r.db.QueryRow(ctx, query, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("поиск транзакции по external_ref: %w", err)
	}
	return t, nil
}

func (r *Repository) Settle(ctx context.Context, txID int64, typ TxType, outcome Settlement) (*Transaction, error) {
	var out *Transaction
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		t, err := scanTx(tx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, txID))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("блокировка транзакции %d: %w", txID, err)
		}
		if t.Type != typ {
			return common.ErrTransactionNotFound
		}
		if t.Status != TxPending {
			return common.ErrAlreadyProcessed
		}

		if _, err := lockAccount(ctx, tx, t.UserID); err != nil {
			return err
		}

		status, balanceSQL := settlementEffect(typ, outcome)
		if balanceSQL != "" {
			if _, err := tx.Exec(ctx, balanceSQL, t.UserID, t.Amount); err != nil {
				return fmt.Errorf("ошибка изменения баланса: %w", err)
			}
		}

		err = tx.QueryRow(ctx, `
			UPDATE transactions SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
			RETURNING updated_at
		`, txID, string(status)).Scan(&t.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrAlreadyProcessed
		}
		if err != nil {
			return fmt.Errorf("ошибка смены статуса: %w", err)
		}
		t.Status = status
		out = t
		return nil
	})
	return out, err
}

// settlementEffect возвращает итоговый статус и SQL изменения баланса ($1 user_id, $2 amount).
func settlementEffect(typ TxType, outcome Settlement) (TxStatus, string) {
	switch {
	case typ == TxDeposit && outcome == SettleApprove:
		return TxCompleted, `UPDATE accounts SET main_balance = main_balance + $2, updated_at = NOW() WHERE user_id = $1`
	case typ == TxDeposit:
		return TxFailed, ""
	case typ == TxWithdrawal && outcome == SettleApprove:
		return TxCompleted, `UPDATE accounts SET total_withdrawn = total_withdrawn + $2, updated_at = NOW() WHERE user_id = $1`
	default:
		// отказ по выводу: возвращаем списанное
		return TxFailed, `UPDATE accounts SET main_balance = main_balance + $2, updated_at = NOW() WHERE user_id = $1`
	}
}

func (r *Repository) Adjust(ctx context.Context, userID int64, delta decimal.Decimal) (*Transaction, error) {
	var out *Transaction
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if acc.MainBalance.Add(delta).IsNegative() {
			return common.ErrInsufficientFunds
		}
		if _, err := tx.Exec(ctx, `
			UPDATE accounts SET main_balance = main_balance + $2, updated_at = NOW() WHERE user_id = $1
		`, userID, delta); err != nil {
			return fmt.Errorf("ошибка корректировки баланса: %w", err)
		}

		typ := TxAdminCredit
		if delta.IsNegative() {
			typ = TxAdminDebit
		}
		out, err = insertTx(ctx, tx, &Transaction{
			UserID: userID,
			Type:   typ,
			Amount: delta.Abs(),
			Status: TxCompleted,
		})
		return err
	})
	return out, err
}

func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) PendingStats(ctx context.Context) (PendingStats, error) {
	var s PendingStats
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE type = 'withdrawal'),
			COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal'), 0),
			COUNT(*) FILTER (WHERE type = 'deposit'),
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0)
		FROM transactions
		WHERE status = 'pending'
	`).Scan(&s.Withdrawals, &s.WithdrawalsTotal, &s.Deposits, &s.DepositsTotal)
	if err != nil {
		return PendingStats{}, fmt.Errorf("ошибка сводки pending: %w", err)
	}
	return s, nil
}

func (r *Repository) queryInvestments(ctx context.Context, query string, args ...interface{}) ([]*Investment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса вкладов: %w", err)
	}
	defer rows.Close()

	var out []*Investment
	for rows.Next() {
		var inv Investment
		if err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.PlanID, &inv.Amount, &inv.Profit,
			&inv.Status, &inv.StartedAt, &inv.MaturesAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования вклада: %w", err)
		}
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения вкладов: %w", err)
	}
	return out, nil
}

func insertTx(ctx context.Context, tx pgx.Tx, t *Transaction) (*Transaction, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, status, external_ref, from_user_id, level, wallet_address, wallet_network)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, t.UserID, string(t.Type), t.Amount, string(t.Status), t.ExternalRef, t.FromUserID, t.Level,
		t.WalletAddress, t.WalletNetwork,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи транзакции (%s): %w", t.Type, err)
	}
	return t, nil
}

func scanTx(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.ExternalRef, &t.FromUserID, &t.Level,
		&t.WalletAddress, &t.WalletNetwork, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
