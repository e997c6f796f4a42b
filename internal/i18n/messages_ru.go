package i18n

var messagesRU = map[string]string{
	"btn.invest":         "💼 Инвестировать",
	"btn.my_investments": "📈 Мои вклады",
	"btn.balance":        "💰 Баланс",
	"btn.deposit":        "➕ Пополнить",
	"btn.withdraw":       "➖ Вывести",
	"btn.referral":       "👥 Партнёрка",
	"btn.transactions":   "📜 История",
	"btn.faq":            "❓ Вопросы",
	"btn.support":        "🆘 Поддержка",
	"btn.cancel":         "❌ Отмена",
	"btn.back":           "⬅️ Назад",
	"btn.paid":           "✅ Я оплатил",
	"btn.pay":            "💳 Оплатить",
	"btn.plan":           "Тариф %d: %s%% / %s",

	"choose_language": "🌐 Выберите язык:",
	"language_set":    "✅ Язык: русский.",
	"welcome":         "👋 Добро пожаловать, %s!\n\nПриумножайте баланс с нашими тарифами и получайте бонусы за рефералов трёх уровней.\n🎁 Приветственный бонус: %s (станет доступен после первого вклада).",
	"welcome_back":    "👋 С возвращением, %s!",
	"main_menu":       "🏠 Главное меню",
	"action_canceled": "❌ Действие отменено.",
	"unknown_input":   "🤔 Не понял. Воспользуйтесь меню.",
	"not_registered":  "Сначала нажмите /start.",
	"help":            "Команды:\n/start — главное меню\n/cancel — отменить текущее действие",
	"rate_limited":    "⏳ Слишком много запросов, подождите немного.",

	"plans.header":        "📊 Тарифы:\n",
	"plans.item":          "%d. +%s%% через %s (от %s до %s)",
	"invest.enter_amount": "📊 Тариф %d: +%s%% через %s.\nОт %s до %s.\nВаш баланс: %s\n\nВведите сумму вклада:",
	"invest.success":      "✅ Вклад %s по тарифу %d открыт.\nОжидаемая прибыль: %s\nЗакрытие: %s",
	"investments.empty":   "Активных вкладов нет.",
	"investments.header":  "📈 Активные вклады:\n",
	"investments.item":    "• Тариф %d: %s → +%s, осталось %s",
	"investments.matured": "🎉 Закрыто вкладов: %d, на баланс зачислено %s.",

	"balance":          "💰 Основной баланс: %s\n🎁 Бонусный баланс: %s\n📈 Инвестировано: %s\n📤 Выведено: %s",
	"referral":         "👥 Партнёрская программа\n\nВаша ссылка:\n%s\n\n1 уровень (%s%%): %d\n2 уровень (%s%%): %d\n3 уровень (%s%%): %d\n\n💵 Заработано: %s",
	"balance.credited": "💰 Ваш баланс пополнен на %s.",
	"balance.debited":  "💸 С вашего баланса списано %s.",
	"referral.bonus":   "🎉 Реферальный бонус %d уровня: %s",
	"faq":              "❓ Вопросы\n\nТело вклада и прибыль зачисляются на основной баланс по окончании срока.\nМинимальное пополнение: %s. Минимальный вывод: %s.\nВыводы проверяются вручную.",
	"faq.link":         "\n\nПодробнее: %s",
	"support":          "🆘 Поддержка: @%s",
	"bonus.unlocked":   "🎁 Бонус %s переведён на основной баланс.",

	"deposit.enter_amount": "➕ Введите сумму пополнения в USD (минимум %s):",
	"deposit.invoice":      "💳 Счёт на %s создан.\nОплатите по кнопке ниже или отправьте %s %s на адрес:\n%s",
	"deposit.manual":       "💳 Отправьте %s USDT на кошелёк ниже и нажмите «Я оплатил».\n\n%s",
	"deposit.paid_sent":    "⏳ Платёж отправлен на проверку. Администратор скоро его подтвердит.",
	"deposit.paid_again":   "⏳ Ваш платёж уже ожидает подтверждения.",
	"deposit.press_paid":   "💳 После перевода нажмите «Я оплатил» или отмените пополнение.",
	"deposit.api_error":    "⚠️ Платёжный сервис недоступен. Попробуйте позже или отмените действие.",
	"deposit.confirmed":    "✅ Пополнение на %s подтверждено и зачислено.",
	"deposit.rejected":     "❌ Пополнение на %s не подтверждено.",

	"withdraw.min_balance":    "Минимальная сумма вывода %s. Ваш баланс: %s.",
	"withdraw.enter_wallet":   "📤 Отправьте адрес USDT-кошелька (TRC20 или BEP20):",
	"withdraw.choose_network": "Выберите сеть для %s:",
	"withdraw.wallet_saved":   "✅ Кошелёк сохранён: %s (%s)",
	"withdraw.enter_amount":   "📤 Введите сумму вывода.\nДоступно: %s (минимум %s)\nКошелёк: %s (%s)",
	"withdraw.requested":      "✅ Заявка на вывод #%d на %s создана. Ожидайте подтверждения.",
	"withdraw.approved":       "✅ Вывод #%d на %s подтверждён и отправлен.",
	"withdraw.rejected":       "❌ Вывод #%d на %s отклонён. Средства возвращены на баланс.",

	"tx.empty":  "Операций пока нет.",
	"tx.header": "📜 Последние операции:\n",
	"tx.item":   "%s %s %s — %s",

	"tx.type.deposit":           "Пополнение",
	"tx.type.withdrawal":        "Вывод",
	"tx.type.referral_bonus":    "Реферальный бонус",
	"tx.type.investment_profit": "Выплата по вкладу",
	"tx.type.admin_credit":      "Начисление",
	"tx.type.admin_debit":       "Списание",
	"tx.type.bonus_unlock":      "Разблокировка бонуса",

	"err.invalid_amount":   "⚠️ Введите положительное число, например 25 или 12.5",
	"err.below_minimum":    "⚠️ Минимум — %s.",
	"err.above_maximum":    "⚠️ Максимум — %s.",
	"err.insufficient":     "⚠️ Недостаточно средств. Доступно: %s",
	"err.unknown_plan":     "⚠️ Такого тарифа нет.",
	"err.invalid_wallet":   "⚠️ Некорректный адрес. Нужен TRC20 (T...) или BEP20 (0x...).",
	"err.network_mismatch": "⚠️ Адрес не относится к выбранной сети.",
	"err.wallet_missing":   "⚠️ Сначала укажите кошелёк для вывода.",
	"err.expired":          "⌛ Действие устарело. Начните заново из меню.",
	"err.generic":          "⚠️ Что-то пошло не так. Попробуйте ещё раз.",
}
