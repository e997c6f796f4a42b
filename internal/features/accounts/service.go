// Package accounts — service.go: регистрация инвесторов и чтение профиля.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/i18n"
)

// ReferralPrefix стоит перед ID пригласившего в параметре /start.
const ReferralPrefix = "ref_"

// Service управляет аккаунтами.
type Service struct {
	store        Store
	welcomeBonus decimal.Decimal
}

// NewService создаёт сервис аккаунтов. welcomeBonus зачисляется на бонусный баланс новичка.
func NewService(store Store, welcomeBonus decimal.Decimal) *Service {
	return &Service{store: store, welcomeBonus: welcomeBonus}
}

// ParseReferralCode достаёт Telegram ID пригласившего из "ref_<id>".
func ParseReferralCode(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, ReferralPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, ReferralPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Register регистрирует пользователя, если его ещё нет.
// Реферер назначается только при создании и только если он уже зарегистрирован
// и это не сам пользователь. Возвращает аккаунт и признак «создан сейчас».
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, bool, error) {
	existing, err := s.store.GetByUserID(ctx, req.UserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, common.ErrAccountNotFound) {
		return nil, false, err
	}

	acc := &Account{
		UserID:       req.UserID,
		Username:     req.Username,
		FirstName:    req.FirstName,
		Language:     string(i18n.Match(req.LanguageCode)),
		BonusBalance: s.welcomeBonus,
	}

	if refID, ok := ParseReferralCode(req.StartPayload); ok && refID != req.UserID {
		if _, err := s.store.GetByUserID(ctx, refID); err == nil {
			acc.ReferrerUserID = &refID
		} else if !errors.Is(err, common.ErrAccountNotFound) {
			return nil, false, err
		} else {
			log.WithFields(log.Fields{
				"user_id":     req.UserID,
				"referrer_id": refID,
			}).Debug("реферер не найден, регистрируем без него")
		}
	}

	created, err := s.store.Create(ctx, acc)
	if err != nil {
		return nil, false, err
	}

	// Создан параллельным апдейтом или только что нами — читаем актуальную строку
	stored, err := s.store.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("чтение после регистрации: %w", err)
	}

	if created {
		fields := log.Fields{"user_id": req.UserID, "username": req.Username}
		if acc.ReferrerUserID != nil {
			fields["referrer_id"] = *acc.ReferrerUserID
		}
		log.WithFields(fields).Info("Новый инвестор зарегистрирован")
	}
	return stored, created, nil
}

// Get возвращает аккаунт по Telegram ID.
func (s *Service) Get(ctx context.Context, userID int64) (*Account, error) {
	return s.store.GetByUserID(ctx, userID)
}

// SetLanguage сохраняет выбранный язык.
func (s *Service) SetLanguage(ctx context.Context, userID int64, loc i18n.Locale) error {
	return s.store.SetLanguage(ctx, userID, string(loc))
}

// ReferralCounts возвращает количество рефералов по уровням.
func (s *Service) ReferralCounts(ctx context.Context, userID int64) (ReferralCounts, error) {
	return s.store.ReferralCounts(ctx, userID)
}

// Locale возвращает язык аккаунта.
func (a *Account) Locale() i18n.Locale {
	return i18n.Parse(a.Language)
}
