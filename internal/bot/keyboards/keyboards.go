package keyboards

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"serotonyl.ru/invest-bot/internal/features/plans"
	"serotonyl.ru/invest-bot/internal/features/wallets"
	"serotonyl.ru/invest-bot/internal/i18n"
)

func button(text string, a Action) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, a.Data())
}

// MainMenu строит постоянную reply-клавиатуру главного меню.
func MainMenu(loc i18n.Locale) tgbotapi.ReplyKeyboardMarkup {
	btn := func(key string) tgbotapi.KeyboardButton {
		return tgbotapi.NewKeyboardButton(i18n.T(loc, key))
	}
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(btn("btn.invest"), btn("btn.my_investments")),
		tgbotapi.NewKeyboardButtonRow(btn("btn.balance"), btn("btn.transactions")),
		tgbotapi.NewKeyboardButtonRow(btn("btn.deposit"), btn("btn.withdraw")),
		tgbotapi.NewKeyboardButtonRow(btn("btn.referral")),
		tgbotapi.NewKeyboardButtonRow(btn("btn.faq"), btn("btn.support")),
	)
	kb.ResizeKeyboard = true
	return kb
}

// Language строит выбор языка.
func Language() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("🇬🇧 English", Action{Kind: ActSetLanguage, Arg: string(i18n.EN)}),
			button("🇷🇺 Русский", Action{Kind: ActSetLanguage, Arg: string(i18n.RU)}),
		),
	)
}

// Plans строит по кнопке на тариф и «назад».
func Plans(loc i18n.Locale, catalog *plans.Catalog) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range catalog.All() {
		text := i18n.T(loc, "btn.plan", p.Number, p.ProfitPercent.String(), i18n.Duration(loc, p.Duration))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(text, Action{Kind: ActInvestPlan, ID: int64(p.Number)}),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button(i18n.T(loc, "btn.back"), Action{Kind: ActBackToMain}),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Cancel строит одну кнопку отмены под приглашением к вводу.
func Cancel(loc i18n.Locale) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(i18n.T(loc, "btn.cancel"), Action{Kind: ActCancel})),
	)
}

// Networks строит выбор сети для адреса вывода.
func Networks(loc i18n.Locale) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, n := range wallets.Networks {
		row = append(row, button(n.Title(), Action{Kind: ActSetNetwork, Arg: string(n)}))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(button(i18n.T(loc, "btn.cancel"), Action{Kind: ActCancel})),
	)
}

// Balance строит быстрые действия под экраном баланса.
func Balance(loc i18n.Locale) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button(i18n.T(loc, "btn.deposit"), Action{Kind: ActDeposit}),
			button(i18n.T(loc, "btn.withdraw"), Action{Kind: ActWithdraw}),
		),
		tgbotapi.NewInlineKeyboardRow(
			button(i18n.T(loc, "btn.invest"), Action{Kind: ActShowPlans}),
			button(i18n.T(loc, "btn.transactions"), Action{Kind: ActTransactions}),
		),
	)
}

// Invoice строит ссылку на оплату счёта.
func Invoice(loc i18n.Locale, payURL string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(i18n.T(loc, "btn.pay"), payURL)),
	)
}

// DepositPaid строит «Я оплатил» для ручного пополнения.
func DepositPaid(loc i18n.Locale, txID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(i18n.T(loc, "btn.paid"), Action{Kind: ActDepositPaid, ID: txID})),
		tgbotapi.NewInlineKeyboardRow(button(i18n.T(loc, "btn.cancel"), Action{Kind: ActCancel})),
	)
}

// WithdrawalReview строит кнопки админа для заявки на вывод.
func WithdrawalReview(txID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Одобрить", Action{Kind: ActAdminApprove, ID: txID}),
			button("❌ Отклонить", Action{Kind: ActAdminReject, ID: txID}),
		),
	)
}

// DepositReview строит кнопки админа для ручного пополнения.
func DepositReview(txID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Зачислить", Action{Kind: ActAdminDepApprove, ID: txID}),
			button("❌ Отклонить", Action{Kind: ActAdminDepReject, ID: txID}),
		),
	)
}

// menuKeys перечисляет ключи кнопок главного меню.
var menuKeys = []string{
	"btn.invest", "btn.my_investments", "btn.balance", "btn.transactions",
	"btn.deposit", "btn.withdraw", "btn.referral", "btn.faq", "btn.support",
}

// MenuKey узнаёт кнопку главного меню по тексту на любом языке.
func MenuKey(text string) (string, bool) {
	for _, key := range menuKeys {
		for _, label := range i18n.Labels(key) {
			if text == label {
				return key, true
			}
		}
	}
	return "", false
}
