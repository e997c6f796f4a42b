// Package menu — экраны без состояния: главное меню, баланс, вклады, рефералы,
// история операций, FAQ. Ничего не пишут в диалог, кроме сброса в none.
package menu

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/bot/keyboards"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/i18n"
)

// Handler показывает экраны меню.
type Handler struct {
	cfg      *config.Config
	accounts *accounts.Service
	engine   *ledger.Service
	notifier *notify.Notifier
	tz       *time.Location
}

// NewHandler создаёт обработчик экранов.
func NewHandler(cfg *config.Config, accountService *accounts.Service, engine *ledger.Service, notifier *notify.Notifier) *Handler {
	return &Handler{
		cfg:      cfg,
		accounts: accountService,
		engine:   engine,
		notifier: notifier,
		tz:       common.LoadLocation(cfg.AppTimezone),
	}
}

// Start отвечает на /start. Новичку предлагаем выбрать язык, остальным показываем меню.
func (h *Handler) Start(chatID int64, acc *accounts.Account, created bool) {
	loc := acc.Locale()
	if created {
		text := i18n.T(loc, "welcome", acc.DisplayName(), common.FormatUSD(acc.BonusBalance)) +
			"\n\n" + i18n.T(loc, "choose_language")
		h.notifier.Text(chatID, text, keyboards.Language())
		return
	}
	h.notifier.Text(chatID, i18n.T(loc, "welcome_back", acc.DisplayName()), keyboards.MainMenu(loc))
}

// MainMenu показывает главное меню.
func (h *Handler) MainMenu(chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	h.notifier.Text(chatID, i18n.T(loc, "main_menu"), keyboards.MainMenu(loc))
}

// SetLanguage сохраняет язык и показывает меню уже на нём.
func (h *Handler) SetLanguage(ctx context.Context, chatID int64, acc *accounts.Account, code string) {
	loc := i18n.Parse(code)
	if err := h.accounts.SetLanguage(ctx, acc.UserID, loc); err != nil {
		log.WithError(err).WithField("user_id", acc.UserID).Error("Не удалось сохранить язык")
		h.notifier.Text(chatID, i18n.T(acc.Locale(), "err.generic"), nil)
		return
	}
	acc.Language = string(loc)
	h.notifier.Text(chatID, i18n.T(loc, "language_set"), keyboards.MainMenu(loc))
}

// Help показывает список команд.
func (h *Handler) Help(chatID int64, acc *accounts.Account) {
	h.notifier.Text(chatID, i18n.T(acc.Locale(), "help"), nil)
}

// Plans показывает тарифы с кнопками выбора.
func (h *Handler) Plans(chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	var sb strings.Builder
	sb.WriteString(i18n.T(loc, "plans.header"))
	for _, p := range h.engine.Catalog().All() {
		sb.WriteString("\n")
		sb.WriteString(i18n.T(loc, "plans.item",
			p.Number,
			p.ProfitPercent.String(),
			i18n.Duration(loc, p.Duration),
			common.FormatUSD(p.Min),
			common.FormatUSD(p.Max),
		))
	}
	h.notifier.Text(chatID, sb.String(), keyboards.Plans(loc, h.engine.Catalog()))
}

// Balance показывает балансы и итоги.
func (h *Handler) Balance(chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	text := i18n.T(loc, "balance",
		common.FormatUSD(acc.MainBalance),
		common.FormatUSD(acc.BonusBalance),
		common.FormatUSD(acc.TotalInvested),
		common.FormatUSD(acc.TotalWithdrawn),
	)
	h.notifier.Text(chatID, text, keyboards.Balance(loc))
}

// Investments сначала закрывает созревшие вклады, потом показывает активные.
func (h *Handler) Investments(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()

	paid, err := h.engine.SweepMatured(ctx, acc.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", acc.UserID).Error("Ошибка закрытия вкладов")
	}
	if len(paid) > 0 {
		total := paid[0].Amount
		for _, t := range paid[1:] {
			total = total.Add(t.Amount)
		}
		h.notifier.Text(chatID, i18n.T(loc, "investments.matured", len(paid), common.FormatUSD(total)), nil)
	}

	running, err := h.engine.RunningInvestments(ctx, acc.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", acc.UserID).Error("Ошибка чтения вкладов")
		h.notifier.Text(chatID, i18n.T(loc, "err.generic"), nil)
		return
	}
	if len(running) == 0 {
		h.notifier.Text(chatID, i18n.T(loc, "investments.empty"), keyboards.Plans(loc, h.engine.Catalog()))
		return
	}

	now := h.engine.Now()
	var sb strings.Builder
	sb.WriteString(i18n.T(loc, "investments.header"))
	for _, inv := range running {
		number := 0
		if p, ok := h.engine.Catalog().Get(inv.PlanID); ok {
			number = p.Number
		}
		sb.WriteString("\n")
		sb.WriteString(i18n.T(loc, "investments.item",
			number,
			common.FormatUSD(inv.Amount),
			common.FormatUSD(inv.Profit),
			i18n.Duration(loc, inv.Remaining(now)),
		))
	}
	h.notifier.Text(chatID, sb.String(), nil)
}

// Referral показывает ссылку, проценты по уровням и счётчики рефералов.
func (h *Handler) Referral(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	counts, err := h.accounts.ReferralCounts(ctx, acc.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", acc.UserID).Error("Ошибка подсчёта рефералов")
		h.notifier.Text(chatID, i18n.T(loc, "err.generic"), nil)
		return
	}

	pct := func(level int) string {
		p, _ := h.engine.Referrals().Percent(level)
		return p.String()
	}
	text := i18n.T(loc, "referral",
		h.cfg.ReferralLink(acc.UserID),
		pct(1), counts.Level1,
		pct(2), counts.Level2,
		pct(3), counts.Level3,
		common.FormatUSD(acc.ReferralEarnings),
	)
	h.notifier.Text(chatID, text, nil)
}

// FAQ показывает ответы на частые вопросы.
func (h *Handler) FAQ(chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	limits := h.engine.Limits()
	text := i18n.T(loc, "faq", common.FormatUSD(limits.MinDeposit), common.FormatUSD(limits.MinWithdrawal))
	if h.cfg.FAQURL != "" {
		text += i18n.T(loc, "faq.link", h.cfg.FAQURL)
	}
	h.notifier.Text(chatID, text, nil)
}

// Support показывает контакт поддержки.
func (h *Handler) Support(chatID int64, acc *accounts.Account) {
	h.notifier.Text(chatID, i18n.T(acc.Locale(), "support", strings.TrimPrefix(h.cfg.SupportUsername, "@")), nil)
}

// Transactions показывает последние операции.
func (h *Handler) Transactions(ctx context.Context, chatID int64, acc *accounts.Account) {
	loc := acc.Locale()
	txs, err := h.engine.History(ctx, acc.UserID)
	if err != nil {
		log.WithError(err).WithField("user_id", acc.UserID).Error("Ошибка чтения истории")
		h.notifier.Text(chatID, i18n.T(loc, "err.generic"), nil)
		return
	}
	if len(txs) == 0 {
		h.notifier.Text(chatID, i18n.T(loc, "tx.empty"), nil)
		return
	}

	var sb strings.Builder
	sb.WriteString(i18n.T(loc, "tx.header"))
	for _, t := range txs {
		sb.WriteString("\n")
		sb.WriteString(i18n.T(loc, "tx.item",
			i18n.T(loc, "tx.status."+string(t.Status)),
			i18n.T(loc, "tx.type."+string(t.Type)),
			common.FormatUSD(t.Amount),
			common.FormatDateTime(t.CreatedAt, h.tz),
		))
	}
	h.notifier.Text(chatID, sb.String(), nil)
}

// Route показывает экран по ключу кнопки меню. false, если ключ не из этого пакета.
func (h *Handler) Route(ctx context.Context, chatID int64, acc *accounts.Account, key string) bool {
	switch key {
	case "btn.invest":
		h.Plans(chatID, acc)
	case "btn.my_investments":
		h.Investments(ctx, chatID, acc)
	case "btn.balance":
		h.Balance(chatID, acc)
	case "btn.transactions":
		h.Transactions(ctx, chatID, acc)
	case "btn.referral":
		h.Referral(ctx, chatID, acc)
	case "btn.faq":
		h.FAQ(chatID, acc)
	case "btn.support":
		h.Support(chatID, acc)
	default:
		return false
	}
	return true
}
