// Package admin — service.go: права администратора, вход по паролю,
// решения по pending-транзакциям и ручные начисления.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/features/ledger"
)

// Параметры Argon2id для новых хешей.
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
	argonSaltLength         = 16
)

// Service реализует админскую часть бота.
type Service struct {
	sessions     SessionStore
	engine       *ledger.Service
	adminID      int64
	passwordHash string
	now          func() time.Time
}

// NewService создаёт сервис. Пустой ADMIN_PASSWORD_HASH отключает /login:
// команды корректировки доступны администратору без сессии.
func NewService(sessions SessionStore, engine *ledger.Service, cfg *config.Config) *Service {
	return &Service{
		sessions:     sessions,
		engine:       engine,
		adminID:      cfg.AdminID,
		passwordHash: cfg.AdminPasswordHash,
		now:          time.Now,
	}
}

// IsAdmin проверяет, является ли пользователь администратором.
func (s *Service) IsAdmin(userID int64) bool {
	return userID != 0 && userID == s.adminID
}

func (s *Service) authorize(userID int64) error {
	if !s.IsAdmin(userID) {
		log.WithField("user_id", userID).Warn("Попытка админ-действия без прав")
		return common.ErrNotAdmin
	}
	return nil
}

// Login проверяет пароль и открывает сессию на SessionTTL.
// После MaxLoginAttempts неудач за LoginWindow вход блокируется.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	if err := s.authorize(userID); err != nil {
		return err
	}
	if s.passwordHash == "" {
		return nil
	}

	attempts, err := s.sessions.FailedAttemptsSince(ctx, userID, s.now().Add(-LoginWindow))
	if err != nil {
		return err
	}
	if attempts >= MaxLoginAttempts {
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.passwordHash)
	if err := s.sessions.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).Error("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	session := &Session{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    s.now().Add(SessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Администратор вошёл")
	return nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	if err := s.authorize(userID); err != nil {
		return err
	}
	return s.sessions.DeactivateSession(ctx, userID)
}

// requireSession пропускает администратора с активной сессией.
func (s *Service) requireSession(ctx context.Context, userID int64) error {
	if err := s.authorize(userID); err != nil {
		return err
	}
	if s.passwordHash == "" {
		return nil
	}
	if _, err := s.sessions.GetActiveSession(ctx, userID); err != nil {
		if errors.Is(err, ErrNoSession) {
			return common.ErrSessionRequired
		}
		return err
	}
	if err := s.sessions.UpdateActivity(ctx, userID); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return nil
}

// ReviewWithdrawal применяет решение по заявке на вывод.
// Проверки по порядку: права, существование, статус pending.
func (s *Service) ReviewWithdrawal(ctx context.Context, actorID, txID int64, outcome ledger.Settlement) (*ledger.Transaction, error) {
	if err := s.authorize(actorID); err != nil {
		return nil, err
	}
	return s.engine.SettleWithdrawal(ctx, txID, outcome)
}

// ReviewDeposit применяет решение по ручному пополнению.
func (s *Service) ReviewDeposit(ctx context.Context, actorID, txID int64, outcome ledger.Settlement) (*ledger.Transaction, error) {
	if err := s.authorize(actorID); err != nil {
		return nil, err
	}
	return s.engine.SettleDeposit(ctx, txID, outcome)
}

// Adjust меняет основной баланс на delta (/credit и /debit).
func (s *Service) Adjust(ctx context.Context, actorID, userID int64, delta decimal.Decimal) (*ledger.Transaction, error) {
	if err := s.requireSession(ctx, actorID); err != nil {
		return nil, err
	}
	return s.engine.Adjust(ctx, userID, delta)
}

// Pending возвращает сводку ожидающих операций.
func (s *Service) Pending(ctx context.Context, actorID int64) (ledger.PendingStats, error) {
	if err := s.authorize(actorID); err != nil {
		return ledger.PendingStats{}, err
	}
	return s.engine.PendingStats(ctx)
}

// FormatDigest форматирует сводку для администратора.
func FormatDigest(p ledger.PendingStats) string {
	if p.Empty() {
		return "✅ Ожидающих операций нет"
	}
	return fmt.Sprintf("📋 Ожидают решения:\n📤 Выводы: %d на %s\n💳 Пополнения: %d на %s",
		p.Withdrawals, common.FormatUSD(p.WithdrawalsTotal),
		p.Deposits, common.FormatUSD(p.DepositsTotal))
}

// --- Криптографические утилиты ---

// HashPassword строит хеш Argon2id в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword проверяет пароль по хешу Argon2id.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
