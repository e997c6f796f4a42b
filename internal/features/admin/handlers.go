// Package admin — handlers.go: кнопки ревью под заявками и команды администратора.
// Тексты для админа на русском, пользователю на его языке.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/bot/keyboards"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/i18n"
)

// Handler обрабатывает админ-действия.
type Handler struct {
	service  *Service
	accounts *accounts.Service
	notifier *notify.Notifier
}

// NewHandler создаёт обработчик админ-действий.
func NewHandler(service *Service, accountService *accounts.Service, notifier *notify.Notifier) *Handler {
	return &Handler{
		service:  service,
		accounts: accountService,
		notifier: notifier,
	}
}

// HandleCallback обрабатывает кнопки «Одобрить» / «Отклонить» под заявками.
func (h *Handler) HandleCallback(ctx context.Context, q *tgbotapi.CallbackQuery, a keyboards.Action) {
	actorID := q.From.ID
	outcome := ledger.SettleApprove
	if a.Kind == keyboards.ActAdminReject || a.Kind == keyboards.ActAdminDepReject {
		outcome = ledger.SettleReject
	}

	var (
		t   *ledger.Transaction
		err error
	)
	switch a.Kind {
	case keyboards.ActAdminApprove, keyboards.ActAdminReject:
		t, err = h.service.ReviewWithdrawal(ctx, actorID, a.ID, outcome)
	case keyboards.ActAdminDepApprove, keyboards.ActAdminDepReject:
		t, err = h.service.ReviewDeposit(ctx, actorID, a.ID, outcome)
	default:
		h.notifier.AnswerCallback(q.ID, "")
		return
	}

	if err != nil {
		h.notifier.AnswerCallback(q.ID, reviewError(err, a.ID))
		return
	}

	h.notifier.AnswerCallback(q.ID, "Готово")
	if q.Message != nil {
		h.notifier.Edit(q.Message.Chat.ID, q.Message.MessageID, q.Message.Text+"\n\n"+outcomeLine(t))
	}
	h.notifyOwner(ctx, t)
}

// reviewError возвращает ответ на кнопку при отказе. Причину отказа в правах не раскрываем.
func reviewError(err error, txID int64) string {
	switch {
	case errors.Is(err, common.ErrNotAdmin):
		return "⛔ Недоступно"
	case errors.Is(err, common.ErrTransactionNotFound):
		return fmt.Sprintf("❌ Транзакция #%d не найдена", txID)
	case errors.Is(err, common.ErrAlreadyProcessed):
		return fmt.Sprintf("ℹ️ Транзакция #%d уже обработана", txID)
	default:
		log.WithError(err).WithField("tx_id", txID).Error("Ошибка ревью транзакции")
		return "⚠️ Ошибка, попробуйте ещё раз"
	}
}

func outcomeLine(t *ledger.Transaction) string {
	if t.Status == ledger.TxCompleted {
		return "✅ Одобрено"
	}
	return "❌ Отклонено"
}

// notifyOwner сообщает владельцу решение. Ошибка доставки только логируется.
func (h *Handler) notifyOwner(ctx context.Context, t *ledger.Transaction) {
	loc := i18n.Default
	if acc, err := h.accounts.Get(ctx, t.UserID); err == nil {
		loc = acc.Locale()
	}

	var text string
	switch {
	case t.Type == ledger.TxWithdrawal && t.Status == ledger.TxCompleted:
		text = i18n.T(loc, "withdraw.approved", t.ID, common.FormatUSD(t.Amount))
	case t.Type == ledger.TxWithdrawal:
		text = i18n.T(loc, "withdraw.rejected", t.ID, common.FormatUSD(t.Amount))
	case t.Status == ledger.TxCompleted:
		text = i18n.T(loc, "deposit.confirmed", common.FormatUSD(t.Amount))
	default:
		text = i18n.T(loc, "deposit.rejected", common.FormatUSD(t.Amount))
	}
	h.notifier.Text(t.UserID, text, nil)
}

// HandleCommand обрабатывает /login, /logout, /credit, /debit, /pending.
// Для не-админа возвращает false: команда выглядит как неизвестная.
func (h *Handler) HandleCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}

	switch cmd {
	case "login":
		if len(args) != 1 {
			h.notifier.Text(chatID, "Использование: /login <пароль>", nil)
			return true
		}
		if err := h.service.Login(ctx, userID, args[0]); err != nil {
			h.notifier.Text(chatID, "❌ "+err.Error(), nil)
			return true
		}
		h.notifier.Text(chatID, "✅ Аутентификация успешна", nil)

	case "logout":
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).Error("Ошибка выхода администратора")
		}
		h.notifier.Text(chatID, "👋 Сессия закрыта", nil)

	case "credit", "debit":
		h.adjust(ctx, chatID, userID, cmd, args)

	case "pending":
		stats, err := h.service.Pending(ctx, userID)
		if err != nil {
			log.WithError(err).Error("Ошибка чтения сводки")
			h.notifier.Text(chatID, "⚠️ Не удалось получить сводку", nil)
			return true
		}
		h.notifier.Text(chatID, FormatDigest(stats), nil)

	default:
		return false
	}
	return true
}

// adjust выполняет /credit <user_id> <сумма> и /debit <user_id> <сумма>.
func (h *Handler) adjust(ctx context.Context, chatID, actorID int64, cmd string, args []string) {
	if len(args) != 2 {
		h.notifier.Text(chatID, fmt.Sprintf("Использование: /%s <user_id> <сумма>", cmd), nil)
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || target <= 0 {
		h.notifier.Text(chatID, "❌ Некорректный user_id", nil)
		return
	}
	amount, err := ledger.ParseAmount(args[1])
	if err != nil {
		h.notifier.Text(chatID, "❌ "+err.Error(), nil)
		return
	}

	delta := amount
	if cmd == "debit" {
		delta = amount.Neg()
	}

	t, err := h.service.Adjust(ctx, actorID, target, delta)
	switch {
	case errors.Is(err, common.ErrSessionRequired),
		errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrInsufficientFunds):
		h.notifier.Text(chatID, "❌ "+err.Error(), nil)
		return
	case err != nil:
		log.WithError(err).WithField("target", target).Error("Ошибка корректировки баланса")
		h.notifier.Text(chatID, "⚠️ Ошибка, изменения не применены", nil)
		return
	}

	h.notifier.Text(chatID, fmt.Sprintf("✅ Транзакция #%d: %s %s пользователю %d",
		t.ID, t.Type, common.FormatUSD(t.Amount), target), nil)

	loc := i18n.Default
	if acc, err := h.accounts.Get(ctx, target); err == nil {
		loc = acc.Locale()
	}
	key := "balance.credited"
	if t.Type == ledger.TxAdminDebit {
		key = "balance.debited"
	}
	h.notifier.Text(target, i18n.T(loc, key, common.FormatUSD(t.Amount)), nil)
}
