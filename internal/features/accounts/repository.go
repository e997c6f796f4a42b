// Package accounts — repository.go отвечает за операции с таблицей accounts,
// которые не двигают деньги: регистрация, язык, кошелёк, состояние диалога.
// Денежные поля меняет только ledger в своих транзакциях БД.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/invest-bot/internal/common"
)

// Store хранит аккаунты. Реализации: Repository (PostgreSQL) и ledgertest.MemStore.
type Store interface {
	// Create вставляет аккаунт. false, если аккаунт уже был.
	Create(ctx context.Context, a *Account) (bool, error)
	GetByUserID(ctx context.Context, userID int64) (*Account, error)
	SetLanguage(ctx context.Context, userID int64, lang string) error
	// SetState безусловно выставляет состояние диалога.
	SetState(ctx context.Context, userID int64, to State, raw json.RawMessage) error
	// CompareAndSetState меняет состояние, только если текущее равно from.
	// Иначе возвращает common.ErrStateExpired.
	CompareAndSetState(ctx context.Context, userID int64, from, to State, raw json.RawMessage) error
	// SaveWallet сохраняет кошелёк и переводит диалог from → to одним запросом.
	SaveWallet(ctx context.Context, userID int64, from State, address, network string, to State, raw json.RawMessage) error
	ReferralCounts(ctx context.Context, userID int64) (ReferralCounts, error)
}

// AccountColumns перечисляет колонки в порядке ScanAccount.
const AccountColumns = `id, user_id, username, first_name, language,
	main_balance, bonus_balance, wallet_address, wallet_network,
	state, state_context, referrer_user_id,
	referral_earnings, total_invested, total_withdrawn,
	created_at, updated_at`

// Repository реализует Store поверх pgxpool.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий аккаунтов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ScanAccount читает строку с колонками AccountColumns.
// Экспортирована для ledger, который читает аккаунт под FOR UPDATE.
func ScanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var raw []byte
	err := row.Scan(
		&a.ID, &a.UserID, &a.Username, &a.FirstName, &a.Language,
		&a.MainBalance, &a.BonusBalance, &a.WalletAddress, &a.WalletNetwork,
		&a.State, &raw, &a.ReferrerUserID,
		&a.ReferralEarnings, &a.TotalInvested, &a.TotalWithdrawn,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}
	a.StateContext = json.RawMessage(raw)
	return &a, nil
}

// Create добавляет аккаунт. На конфликте по user_id ничего не меняет:
// реферер и приветственный бонус назначаются только один раз.
func (r *Repository) Create(ctx context.Context, a *Account) (bool, error) {
	query := `
		INSERT INTO accounts (user_id, username, first_name, language, bonus_balance, referrer_user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		a.UserID, a.Username, a.FirstName, a.Language, a.BonusBalance, a.ReferrerUserID,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка создания аккаунта (user_id=%d): %w", a.UserID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByUserID возвращает аккаунт или common.ErrAccountNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Account, error) {
	query := `SELECT ` + AccountColumns + ` FROM accounts WHERE user_id = $1`
	a, err := ScanAccount(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil, fmt.Errorf("аккаунт не найден (user_id=%d): %w", userID, err)
		}
		return nil, fmt.Errorf("ошибка чтения аккаунта (user_id=%d): %w", userID, err)
	}
	return a, nil
}

func (r *Repository) SetLanguage(ctx context.Context, userID int64, lang string) error {
	query := `UPDATE accounts SET language = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, lang); err != nil {
		return fmt.Errorf("ошибка смены языка: %w", err)
	}
	return nil
}

func (r *Repository) SetState(ctx context.Context, userID int64, to State, raw json.RawMessage) error {
	query := `UPDATE accounts SET state = $2, state_context = $3, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, string(to), contextBytes(raw)); err != nil {
		return fmt.Errorf("ошибка записи состояния: %w", err)
	}
	return nil
}

func (r *Repository) CompareAndSetState(ctx context.Context, userID int64, from, to State, raw json.RawMessage) error {
	query := `
		UPDATE accounts SET state = $3, state_context = $4, updated_at = NOW()
		WHERE user_id = $1 AND state = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, string(from), string(to), contextBytes(raw))
	if err != nil {
		return fmt.Errorf("ошибка смены состояния: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrStateExpired
	}
	return nil
}

func (r *Repository) SaveWallet(ctx context.Context, userID int64, from State, address, network string, to State, raw json.RawMessage) error {
	query := `
		UPDATE accounts
		SET wallet_address = $3, wallet_network = $4, state = $5, state_context = $6, updated_at = NOW()
		WHERE user_id = $1 AND state = $2
	`
	tag, err := r.db.Exec(ctx, query, userID, string(from), address, network, string(to), contextBytes(raw))
	if err != nil {
		return fmt.Errorf("ошибка сохранения кошелька: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrStateExpired
	}
	return nil
}

// ReferralCounts считает рефералов трёх уровней одним запросом.
func (r *Repository) ReferralCounts(ctx context.Context, userID int64) (ReferralCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM accounts l1 WHERE l1.referrer_user_id = $1),
			(SELECT COUNT(*) FROM accounts l2
				JOIN accounts l1 ON l2.referrer_user_id = l1.user_id
				WHERE l1.referrer_user_id = $1),
			(SELECT COUNT(*) FROM accounts l3
				JOIN accounts l2 ON l3.referrer_user_id = l2.user_id
				JOIN accounts l1 ON l2.referrer_user_id = l1.user_id
				WHERE l1.referrer_user_id = $1)
	`
	var c ReferralCounts
	if err := r.db.QueryRow(ctx, query, userID).Scan(&c.Level1, &c.Level2, &c.Level3); err != nil {
		return ReferralCounts{}, fmt.Errorf("ошибка подсчёта рефералов: %w", err)
	}
	return c, nil
}

// contextBytes гарантирует валидный JSON для NOT NULL колонки.
func contextBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
