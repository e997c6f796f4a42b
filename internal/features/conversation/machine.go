package conversation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/features/accounts"
)

// Machine переключает состояние диалога аккаунта.
// Вызывающий держит блокировку аккаунта на всё время обработки апдейта.
type Machine struct {
	store accounts.Store
}

// NewMachine создаёт Machine поверх хранилища аккаунтов.
func NewMachine(store accounts.Store) *Machine {
	return &Machine{store: store}
}

// Enter безусловно переводит диалог в next. Используется кнопками, которые
// начинают сценарий заново из любого состояния.
func (m *Machine) Enter(ctx context.Context, userID int64, next Context) error {
	raw, err := Encode(next)
	if err != nil {
		return err
	}
	return m.store.SetState(ctx, userID, next.State(), raw)
}

// Advance переводит from → next, только если аккаунт всё ещё в from.
// Иначе common.ErrStateExpired и никаких изменений.
func (m *Machine) Advance(ctx context.Context, userID int64, from accounts.State, next Context) error {
	raw, err := Encode(next)
	if err != nil {
		return err
	}
	return m.store.CompareAndSetState(ctx, userID, from, next.State(), raw)
}

// SaveWallet сохраняет кошелёк и переводит диалог в next одной записью.
func (m *Machine) SaveWallet(ctx context.Context, userID int64, from accounts.State, address, network string, next Context) error {
	raw, err := Encode(next)
	if err != nil {
		return err
	}
	return m.store.SaveWallet(ctx, userID, from, address, network, next.State(), raw)
}

// Reset сбрасывает диалог в none. Ошибка только логируется: сброс вызывается
// на путях, где пользователю уже показана ошибка.
func (m *Machine) Reset(ctx context.Context, userID int64) {
	if err := m.store.SetState(ctx, userID, accounts.StateNone, nil); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось сбросить состояние диалога")
	}
}
