package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/bot/keyboards"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/menu"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/features/payments"
	"serotonyl.ru/invest-bot/internal/features/wallets"
	"serotonyl.ru/invest-bot/internal/i18n"
)

// InvoiceCreator выставляет счёт через платёжный шлюз.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, userID int64, amount decimal.Decimal) (*payments.Invoice, error)
}

// Handler ведёт пошаговые диалоги. Все методы вызываются под блокировкой
// аккаунта, acc — снимок, прочитанный под ней.
type Handler struct {
	cfg      *config.Config
	machine  *Machine
	engine   *ledger.Service
	screens  *menu.Handler
	gateway  InvoiceCreator
	notifier *notify.Notifier
	dedup    *notify.Dedup
}

// NewHandler создаёт обработчик диалогов. gateway нужен только в режиме invoice.
func NewHandler(cfg *config.Config, machine *Machine, engine *ledger.Service, screens *menu.Handler,
	gateway InvoiceCreator, notifier *notify.Notifier, dedup *notify.Dedup) *Handler {
	return &Handler{
		cfg:      cfg,
		machine:  machine,
		engine:   engine,
		screens:  screens,
		gateway:  gateway,
		notifier: notifier,
		dedup:    dedup,
	}
}

// ============================================================================
// Кнопки, начинающие сценарий
// ============================================================================

// ChoosePlan обрабатывает кнопку тарифа и ждёт сумму вклада.
func (h *Handler) ChoosePlan(ctx context.Context, chatID int64, acc *accounts.Account, number int64) {
	loc := acc.Locale()
	plan, ok := h.engine.Catalog().ByNumber(int(number))
	if !ok {
		h.notifier.Text(chatID, i18n.T(loc, "err.unknown_plan"), nil)
		return
	}
	if err := h.machine.Enter(ctx, acc.UserID, AwaitingInvestmentAmount{PlanID: plan.ID}); err != nil {
		h.fail(ctx, chatID, acc, err)
		return
	}

	text := i18n.T(loc, "invest.enter_amount",
		plan.Number,
		plan.ProfitPercent.String(),
		i18n.Duration(loc, plan.Duration),
		common.FormatUSD(plan.Min),
		common.FormatUSD(plan.Max),
		common.FormatUSD(acc.MainBalance),
	)
	h.notifier.Text(chatID, text, keyboards.Cancel(loc))
}

// StartDeposit обрабатывает кнопку пополнения.
func (h *Handler) StartDeposit(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	if err := h.machine.Enter(ctx, acc.UserID, AwaitingDepositAmount{}); err != nil {
		h.fail(ctx, chatID, acc, err)
		return
	}
	h.notifier.Text(chatID, i18n.T(loc, "deposit.enter_amount", common.FormatUSD(h.engine.Limits().MinDeposit)), keyboards.Cancel(loc))
}

// StartWithdraw обрабатывает кнопку вывода. Сначала пробуем разблокировать бонус,
// потом проверяем минимум и спрашиваем кошелёк, если его ещё нет.
func (h *Handler) StartWithdraw(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()

	acc, err := h.unlockBonus(ctx, chatID, acc)
	if err != nil {
		h.fail(ctx, chatID, acc, err)
		return
	}

	if err := h.engine.CheckWithdrawable(acc); err != nil {
		h.machine.Reset(ctx, acc.UserID)
		text := i18n.T(loc, "withdraw.min_balance",
			common.FormatUSD(h.engine.Limits().MinWithdrawal),
			common.FormatUSD(acc.MainBalance),
		)
		h.notifier.Text(chatID, text, keyboards.MainMenu(loc))
		return
	}

	if !acc.HasWallet() {
		if err := h.machine.Enter(ctx, acc.UserID, AwaitingWalletAddress{}); err != nil {
			h.fail(ctx, chatID, acc, err)
			return
		}
		h.notifier.Text(chatID, i18n.T(loc, "withdraw.enter_wallet"), keyboards.Cancel(loc))
		return
	}

	if err := h.machine.Enter(ctx, acc.UserID, AwaitingWithdrawalAmount{}); err != nil {
		h.fail(ctx, chatID, acc, err)
		return
	}
	h.promptWithdrawalAmount(chatID, acc)
}

// unlockBonus переносит бонус и возвращает перечитанный аккаунт.
func (h *Handler) unlockBonus(ctx context.Context, chatID int64, acc *accounts.Account) (*accounts.Account, error) {
	moved, err := h.engine.UnlockBonus(ctx, acc.UserID)
	if err != nil {
		return acc, err
	}
	if !moved.IsPositive() {
		return acc, nil
	}
	h.notifier.Text(chatID, i18n.T(acc.Locale(), "bonus.unlocked", common.FormatUSD(moved)), nil)
	fresh, err := h.engine.Account(ctx, acc.UserID)
	if err != nil {
		return acc, err
	}
	return fresh, nil
}

func (h *Handler) promptWithdrawalAmount(chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	addr, network := acc.Wallet()
	text := i18n.T(loc, "withdraw.enter_amount",
		common.FormatUSD(acc.MainBalance),
		common.FormatUSD(h.engine.Limits().MinWithdrawal),
		addr,
		strings.ToUpper(network),
	)
	h.notifier.Text(chatID, text, keyboards.Cancel(loc))
}

// ============================================================================
// Кнопки, завершающие шаг: проверяют состояние, иначе «устарело»
// ============================================================================

// SetNetwork сохраняет выбор сети для введённого адреса.
func (h *Handler) SetNetwork(ctx context.Context, chatID int64, acc *accounts.Account, arg string) {
	loc := acc.Locale()
	c, err := Expect[AwaitingWalletNetwork](acc)
	if err != nil {
		h.expired(chatID, acc)
		return
	}
	network, ok := wallets.ParseNetwork(arg)
	if !ok {
		h.expired(chatID, acc)
		return
	}

	if err := wallets.Validate(network, c.WalletAddress); err != nil {
		if errors.Is(err, common.ErrNetworkMismatch) {
			h.notifier.Text(chatID, i18n.T(loc, "err.network_mismatch"), keyboards.Networks(loc))
			return
		}
		h.reject(ctx, chatID, acc, err)
		return
	}

	err = h.machine.SaveWallet(ctx, acc.UserID, accounts.StateAwaitingWalletNetwork,
		c.WalletAddress, string(network), AwaitingWithdrawalAmount{})
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	log.WithFields(log.Fields{"user_id": acc.UserID, "network": network}).Info("Кошелёк для вывода сохранён")
	h.notifier.Text(chatID, i18n.T(loc, "withdraw.wallet_saved", c.WalletAddress, network.Title()), nil)

	addr, net := c.WalletAddress, string(network)
	acc.WalletAddress, acc.WalletNetwork = &addr, &net
	h.promptWithdrawalAmount(chatID, acc)
}

// DepositPaid обрабатывает «Я оплатил» по ручному пополнению.
func (h *Handler) DepositPaid(ctx context.Context, chatID int64, acc *accounts.Account, txID int64) {
	loc := acc.Locale()
	c, err := Expect[AwaitingPaymentConfirmation](acc)
	if err != nil || c.DepositTxID != txID {
		// Повторное нажатие после отправки: заявка своя и ещё ждёт админа
		if t, terr := h.engine.Transaction(ctx, txID); terr == nil &&
			t.UserID == acc.UserID && t.Type == ledger.TxDeposit && t.Status == ledger.TxPending {
			h.notifier.Text(chatID, i18n.T(loc, "deposit.paid_again"), nil)
			return
		}
		h.expired(chatID, acc)
		return
	}

	if err := h.machine.Advance(ctx, acc.UserID, accounts.StateAwaitingPaymentConfirmation, None{}); err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	t, err := h.engine.Transaction(ctx, txID)
	if err != nil {
		h.fail(ctx, chatID, acc, err)
		return
	}
	h.notifier.Text(chatID, i18n.T(loc, "deposit.paid_sent"), keyboards.MainMenu(loc))

	if !h.dedup.Allow(fmt.Sprintf("deposit_paid:%d", acc.UserID)) {
		log.WithFields(log.Fields{"user_id": acc.UserID, "tx_id": txID}).Debug("Повторное уведомление админа подавлено")
		return
	}
	text := fmt.Sprintf("💳 Ручное пополнение #%d\nПользователь: %s\nСумма: %s\nПроверьте поступление на кошелёк:\n%s",
		t.ID, who(acc), common.FormatUSD(t.Amount), h.cfg.AdminDepositWallet)
	h.notifier.Admin(text, keyboards.DepositReview(t.ID))
}

// Cancel отменяет текущий шаг из любого состояния.
// Ручное пополнение, уже записанное в журнал, остаётся pending до решения админа.
func (h *Handler) Cancel(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	h.machine.Reset(ctx, acc.UserID)
	h.notifier.Text(chatID, i18n.T(loc, "action_canceled"), keyboards.MainMenu(loc))
}

// ============================================================================
// Свободный текст: разбирается только в соответствующем состоянии
// ============================================================================

// HandleText обрабатывает текст по текущему состоянию диалога.
func (h *Handler) HandleText(ctx context.Context, chatID int64, acc *accounts.Account, text string) {
	loc := acc.Locale()
	text = strings.TrimSpace(text)

	switch acc.State {
	case accounts.StateAwaitingInvestmentAmount:
		h.investAmount(ctx, chatID, acc, text)
	case accounts.StateAwaitingDepositAmount:
		h.depositAmount(ctx, chatID, acc, text)
	case accounts.StateAwaitingPaymentConfirmation:
		c, err := Expect[AwaitingPaymentConfirmation](acc)
		if err != nil {
			h.expiredReset(ctx, chatID, acc)
			return
		}
		h.notifier.Text(chatID, i18n.T(loc, "deposit.press_paid"), keyboards.DepositPaid(loc, c.DepositTxID))
	case accounts.StateAwaitingWalletAddress:
		h.walletAddress(ctx, chatID, acc, text)
	case accounts.StateAwaitingWalletNetwork:
		c, err := Expect[AwaitingWalletNetwork](acc)
		if err != nil {
			h.expiredReset(ctx, chatID, acc)
			return
		}
		h.notifier.Text(chatID, i18n.T(loc, "withdraw.choose_network", c.WalletAddress), keyboards.Networks(loc))
	case accounts.StateAwaitingWithdrawalAmount:
		h.withdrawalAmount(ctx, chatID, acc, text)
	default:
		h.notifier.Text(chatID, i18n.T(loc, "unknown_input"), keyboards.MainMenu(loc))
	}
}

func (h *Handler) investAmount(ctx context.Context, chatID int64, acc *accounts.Account, text string) {
	loc := acc.Locale()
	c, err := Expect[AwaitingInvestmentAmount](acc)
	if err != nil {
		h.expiredReset(ctx, chatID, acc)
		return
	}
	amount, err := ledger.ParseAmount(text)
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	inv, err := h.engine.CommitInvestment(ctx, acc.UserID, c.PlanID, amount)
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	plan, _ := h.engine.Catalog().Get(inv.PlanID)
	reply := i18n.T(loc, "invest.success",
		common.FormatUSD(inv.Amount),
		plan.Number,
		common.FormatUSD(inv.Profit),
		common.FormatDateTime(inv.MaturesAt, common.LoadLocation(h.cfg.AppTimezone)),
	)
	h.notifier.Text(chatID, reply, keyboards.MainMenu(loc))
}

func (h *Handler) depositAmount(ctx context.Context, chatID int64, acc *accounts.Account, text string) {
	amount, err := ledger.ParseAmount(text)
	if err == nil {
		err = h.engine.ValidateDeposit(amount)
	}
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	if h.cfg.DepositMode == config.DepositModeManual {
		h.manualDeposit(ctx, chatID, acc, amount)
		return
	}
	h.invoiceDeposit(ctx, chatID, acc, amount)
}

// invoiceDeposit выставляет счёт до записи в журнал: ошибка шлюза ничего не меняет.
func (h *Handler) invoiceDeposit(ctx context.Context, chatID int64, acc *accounts.Account, amount decimal.Decimal) {
	loc := acc.Locale()
	inv, err := h.gateway.CreateInvoice(ctx, acc.UserID, amount)
	if err != nil {
		log.WithError(err).WithField("user_id", acc.UserID).Warn("Не удалось создать счёт")
		h.notifier.Text(chatID, i18n.T(loc, "deposit.api_error"), keyboards.Cancel(loc))
		return
	}

	ref := inv.PaymentID
	_, err = h.engine.RecordDeposit(ctx, ledger.DepositRequest{
		UserID:      acc.UserID,
		Amount:      amount,
		ExternalRef: &ref,
		Expect:      accounts.StateAwaitingDepositAmount,
	})
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	caption := i18n.T(loc, "deposit.invoice",
		common.FormatUSD(amount),
		inv.PayAmount.String(),
		strings.ToUpper(inv.PayCurrency),
		inv.PayAddress,
	)
	var markup interface{}
	if inv.PayURL != "" {
		markup = keyboards.Invoice(loc, inv.PayURL)
	}
	h.sendWithQR(chatID, inv.PayAddress, caption, markup)
	h.screens.MainMenu(chatID, acc)
}

// manualDeposit записывает заявку и ждёт «Я оплатил» в той же транзакции БД.
func (h *Handler) manualDeposit(ctx context.Context, chatID int64, acc *accounts.Account, amount decimal.Decimal) {
	loc := acc.Locale()
	t, err := h.engine.RecordDeposit(ctx, ledger.DepositRequest{
		UserID: acc.UserID,
		Amount: amount,
		Expect: accounts.StateAwaitingDepositAmount,
		Next: &ledger.NextState{
			State: accounts.StateAwaitingPaymentConfirmation,
			Build: func(txID int64) (json.RawMessage, error) {
				return Encode(AwaitingPaymentConfirmation{DepositTxID: txID})
			},
		},
	})
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	caption := i18n.T(loc, "deposit.manual", common.FormatMoney(amount), h.cfg.AdminDepositWallet)
	h.sendWithQR(chatID, h.cfg.AdminDepositWallet, caption, keyboards.DepositPaid(loc, t.ID))
}

// sendWithQR отправляет инструкцию с QR-кодом адреса, при ошибке кодирования просто текстом.
func (h *Handler) sendWithQR(chatID int64, address, caption string, markup interface{}) {
	png, err := payments.QRCode(address)
	if err != nil {
		log.WithError(err).Warn("Не удалось построить QR-код")
		h.notifier.Text(chatID, caption, markup)
		return
	}
	if !h.notifier.Photo(chatID, "deposit.png", png, caption, markup) {
		h.notifier.Text(chatID, caption, markup)
	}
}

func (h *Handler) walletAddress(ctx context.Context, chatID int64, acc *accounts.Account, text string) {
	loc := acc.Locale()
	if _, err := wallets.Detect(text); err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}
	if err := h.machine.Advance(ctx, acc.UserID, accounts.StateAwaitingWalletAddress, AwaitingWalletNetwork{WalletAddress: text}); err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}
	h.notifier.Text(chatID, i18n.T(loc, "withdraw.choose_network", text), keyboards.Networks(loc))
}

func (h *Handler) withdrawalAmount(ctx context.Context, chatID int64, acc *accounts.Account, text string) {
	loc := acc.Locale()

	// бонус разблокируется до проверки суммы
	acc, err := h.unlockBonus(ctx, chatID, acc)
	if err != nil {
		h.fail(ctx, chatID, acc, err)
		return
	}

	amount, err := ledger.ParseAmount(text)
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}
	t, err := h.engine.RequestWithdrawal(ctx, acc.UserID, amount)
	if err != nil {
		h.reject(ctx, chatID, acc, err)
		return
	}

	h.notifier.Text(chatID, i18n.T(loc, "withdraw.requested", t.ID, common.FormatUSD(t.Amount)), keyboards.MainMenu(loc))

	var addr, network string
	if t.WalletAddress != nil {
		addr = *t.WalletAddress
	}
	if t.WalletNetwork != nil {
		network = strings.ToUpper(*t.WalletNetwork)
	}
	adminText := fmt.Sprintf("📤 Заявка на вывод #%d\nПользователь: %s\nСумма: %s\nКошелёк: %s (%s)",
		t.ID, who(acc), common.FormatUSD(t.Amount), addr, network)
	h.notifier.Admin(adminText, keyboards.WithdrawalReview(t.ID))
}

// ============================================================================
// Ошибки
// ============================================================================

// reject показывает ошибку пользователю. Ошибки ввода оставляют шаг как есть,
// всё неизвестное считается сбоем и сбрасывает диалог.
func (h *Handler) reject(ctx context.Context, chatID int64, acc *accounts.Account, err error) {
	loc := acc.Locale()
	var limit *common.LimitError

	switch {
	case errors.Is(err, common.ErrInvalidAmount):
		h.notifier.Text(chatID, i18n.T(loc, "err.invalid_amount"), keyboards.Cancel(loc))
	case errors.As(err, &limit) && errors.Is(err, common.ErrBelowMinimum):
		h.notifier.Text(chatID, i18n.T(loc, "err.below_minimum", common.FormatUSD(limit.Limit)), keyboards.Cancel(loc))
	case errors.As(err, &limit) && errors.Is(err, common.ErrAboveMaximum):
		h.notifier.Text(chatID, i18n.T(loc, "err.above_maximum", common.FormatUSD(limit.Limit)), keyboards.Cancel(loc))
	case errors.Is(err, common.ErrInsufficientFunds):
		balance := acc.MainBalance
		if fresh, ferr := h.engine.Account(ctx, acc.UserID); ferr == nil {
			balance = fresh.MainBalance
		}
		h.notifier.Text(chatID, i18n.T(loc, "err.insufficient", common.FormatUSD(balance)), keyboards.Cancel(loc))
	case errors.Is(err, common.ErrInvalidWallet):
		h.notifier.Text(chatID, i18n.T(loc, "err.invalid_wallet"), keyboards.Cancel(loc))
	case errors.Is(err, common.ErrUnknownPlan):
		h.machine.Reset(ctx, acc.UserID)
		h.notifier.Text(chatID, i18n.T(loc, "err.unknown_plan"), keyboards.MainMenu(loc))
	case errors.Is(err, common.ErrWalletNotConfigured):
		h.machine.Reset(ctx, acc.UserID)
		h.notifier.Text(chatID, i18n.T(loc, "err.wallet_missing"), keyboards.MainMenu(loc))
	case errors.Is(err, common.ErrStateExpired):
		h.expired(chatID, acc)
	default:
		h.fail(ctx, chatID, acc, err)
	}
}

// expired отвечает на кнопку или ввод от устаревшего шага. Ничего не меняем.
func (h *Handler) expired(chatID int64, acc *accounts.Account) {
	log.WithFields(log.Fields{"user_id": acc.UserID, "state": acc.State}).Debug("Устаревшее действие отклонено")
	h.notifier.Text(chatID, i18n.T(acc.Locale(), "err.expired"), nil)
}

// expiredReset выходит в меню, когда состояние есть, но контекст битый.
func (h *Handler) expiredReset(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	h.machine.Reset(ctx, acc.UserID)
	h.notifier.Text(chatID, i18n.T(loc, "err.expired"), keyboards.MainMenu(loc))
}

// fail обрабатывает сбой хранилища или неожиданную ошибку: общий ответ и сброс в none.
func (h *Handler) fail(ctx context.Context, chatID int64, acc *accounts.Account, err error) {
	loc := acc.Locale()
	log.WithError(err).WithFields(log.Fields{
		"user_id": acc.UserID,
		"state":   acc.State,
	}).Error("Ошибка в диалоге, состояние сброшено")
	h.machine.Reset(ctx, acc.UserID)
	h.notifier.Text(chatID, i18n.T(loc, "err.generic"), keyboards.MainMenu(loc))
}

// who возвращает подпись пользователя для сообщений админу.
func who(acc *accounts.Account) string {
	if acc.Username != "" {
		return fmt.Sprintf("@%s (%d)", acc.Username, acc.UserID)
	}
	return fmt.Sprintf("%s (%d)", acc.DisplayName(), acc.UserID)
}
