// Package bot содержит главный модуль бота — приём апдейтов, фильтры и маршрутизацию.
// bot.go держит polling и решает, какой обработчик получит апдейт.
package bot

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/accountlock"
	"serotonyl.ru/invest-bot/internal/bot/filters"
	"serotonyl.ru/invest-bot/internal/bot/keyboards"
	"serotonyl.ru/invest-bot/internal/bot/middleware"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/admin"
	"serotonyl.ru/invest-bot/internal/features/conversation"
	"serotonyl.ru/invest-bot/internal/features/menu"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/i18n"
)

// Bot представляет главную структуру бота, объединяющую все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	locker      accountlock.Locker

	accounts *accounts.Service
	machine  *conversation.Machine
	screens  *menu.Handler
	flows    *conversation.Handler
	admin    *admin.Handler
	notifier *notify.Notifier

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
// api может быть nil, если Start не вызывается.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	accountService *accounts.Service,
	locker accountlock.Locker,
	machine *conversation.Machine,
	screens *menu.Handler,
	flows *conversation.Handler,
	adminHandler *admin.Handler,
	notifier *notify.Notifier,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		chatFilter:  chatFilter,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		locker:      locker,
		accounts:    accountService,
		machine:     machine,
		screens:     screens,
		flows:       flows,
		admin:       adminHandler,
		notifier:    notifier,
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.wait()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.wait()
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// wait дожидается обработчиков, которые уже взяли слот.
func (b *Bot) wait() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// Close освобождает фоновые ресурсы бота.
func (b *Bot) Close() {
	b.rateLimiter.Close()
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic(updateFields(update))

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

// updateFields возвращает поля лога, по которым можно найти упавший апдейт.
func updateFields(update tgbotapi.Update) log.Fields {
	fields := log.Fields{"update_id": update.UpdateID}
	if from := update.SentFrom(); from != nil {
		fields["user_id"] = from.ID
	}
	return fields
}

// handleMessage обрабатывает текст и команды.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		b.notifier.Text(chatID, i18n.T(i18n.Match(message.From.LanguageCode), "rate_limited"), nil)
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	log.WithFields(log.Fields{
		"isCommand": isCommand,
		"cmd":       cmd,
		"args":      args,
	}).Debug("parsed command")

	// Админ-команды не трогают диалог пользователя и идут без его блокировки
	if isCommand && b.admin.HandleCommand(ctx, chatID, userID, cmd, args) {
		return
	}

	unlock, err := b.locker.Lock(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось заблокировать аккаунт")
		b.notifier.Text(chatID, i18n.T(i18n.Match(message.From.LanguageCode), "err.generic"), nil)
		return
	}
	defer unlock()

	if isCommand && cmd == "start" {
		b.start(ctx, message, args)
		return
	}

	acc, err := b.accounts.Get(ctx, userID)
	if err != nil {
		b.accountError(chatID, message.From, err)
		return
	}

	if isCommand {
		b.routeCommand(ctx, chatID, acc, cmd)
		return
	}

	// Кнопки главного меню важнее текущего сценария: они его прерывают
	if key, ok := keyboards.MenuKey(message.Text); ok {
		b.routeMenu(ctx, chatID, acc, key)
		return
	}

	b.flows.HandleText(ctx, chatID, acc, message.Text)
}

// start обрабатывает /start [ref_<id>]: регистрация и главное меню.
func (b *Bot) start(ctx context.Context, message *tgbotapi.Message, args []string) {
	req := accounts.RegisterRequest{
		UserID:       message.From.ID,
		Username:     message.From.UserName,
		FirstName:    message.From.FirstName,
		LanguageCode: message.From.LanguageCode,
	}
	if len(args) > 0 {
		req.StartPayload = args[0]
	}

	acc, created, err := b.accounts.Register(ctx, req)
	if err != nil {
		log.WithError(err).WithField("user_id", req.UserID).Error("Ошибка регистрации")
		b.notifier.Text(message.Chat.ID, i18n.T(i18n.Match(req.LanguageCode), "err.generic"), nil)
		return
	}
	if acc.State != accounts.StateNone {
		b.machine.Reset(ctx, acc.UserID)
	}
	b.screens.Start(message.Chat.ID, acc, created)
}

// routeCommand маршрутизирует пользовательскую команду.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, acc *accounts.Account, cmd string) {
	log.WithField("cmd", cmd).Debug("routing command")

	switch cmd {
	case "cancel":
		b.flows.Cancel(ctx, chatID, acc)
	case "help":
		b.screens.Help(chatID, acc)
	case "menu":
		b.toMainMenu(ctx, chatID, acc)
	default:
		b.notifier.Text(chatID, i18n.T(acc.Locale(), "unknown_input"), keyboards.MainMenu(acc.Locale()))
	}
}

// routeMenu обрабатывает кнопку reply-клавиатуры.
func (b *Bot) routeMenu(ctx context.Context, chatID int64, acc *accounts.Account, key string) {
	switch key {
	case "btn.deposit":
		b.flows.StartDeposit(ctx, chatID, acc)
	case "btn.withdraw":
		b.flows.StartWithdraw(ctx, chatID, acc)
	default:
		if acc.State != accounts.StateNone {
			b.machine.Reset(ctx, acc.UserID)
			acc.State = accounts.StateNone
		}
		b.screens.Route(ctx, chatID, acc, key)
	}
}

func (b *Bot) toMainMenu(ctx context.Context, chatID int64, acc *accounts.Account) {
	if acc.State != accounts.StateNone {
		b.machine.Reset(ctx, acc.UserID)
	}
	b.screens.MainMenu(chatID, acc)
}

// handleCallback обрабатывает нажатия inline-кнопок.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	middleware.LogCallback(q)

	if !b.chatFilter.CheckCallback(q) {
		return
	}

	a, ok := keyboards.ParseAction(q.Data)
	if !ok {
		log.WithField("data", q.Data).Debug("Неизвестный callback")
		b.notifier.AnswerCallback(q.ID, "")
		return
	}

	// Ревью заявок блокирует владельца заявки, а не администратора
	if a.IsAdmin() {
		b.admin.HandleCallback(ctx, q, a)
		return
	}

	userID := q.From.ID
	chatID := q.Message.Chat.ID

	if !b.rateLimiter.Allow(userID) {
		b.notifier.AnswerCallback(q.ID, i18n.T(i18n.Match(q.From.LanguageCode), "rate_limited"))
		return
	}

	unlock, err := b.locker.Lock(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось заблокировать аккаунт")
		b.notifier.AnswerCallback(q.ID, i18n.T(i18n.Match(q.From.LanguageCode), "err.generic"))
		return
	}
	defer unlock()

	// Состояние перечитываем под блокировкой: кнопка могла устареть
	acc, err := b.accounts.Get(ctx, userID)
	if err != nil {
		b.notifier.AnswerCallback(q.ID, "")
		b.accountError(chatID, q.From, err)
		return
	}
	b.notifier.AnswerCallback(q.ID, "")

	switch a.Kind {
	case keyboards.ActSetLanguage:
		b.screens.SetLanguage(ctx, chatID, acc, a.Arg)
	case keyboards.ActBackToMain:
		b.toMainMenu(ctx, chatID, acc)
	case keyboards.ActShowPlans:
		b.screens.Plans(chatID, acc)
	case keyboards.ActInvestPlan:
		b.flows.ChoosePlan(ctx, chatID, acc, a.ID)
	case keyboards.ActCancel:
		b.flows.Cancel(ctx, chatID, acc)
	case keyboards.ActDeposit:
		b.flows.StartDeposit(ctx, chatID, acc)
	case keyboards.ActWithdraw:
		b.flows.StartWithdraw(ctx, chatID, acc)
	case keyboards.ActSetNetwork:
		b.flows.SetNetwork(ctx, chatID, acc, a.Arg)
	case keyboards.ActTransactions:
		b.screens.Transactions(ctx, chatID, acc)
	case keyboards.ActDepositPaid:
		b.flows.DepositPaid(ctx, chatID, acc, a.ID)
	}
}

// accountError отвечает, когда аккаунт не прочитался.
func (b *Bot) accountError(chatID int64, from *tgbotapi.User, err error) {
	loc := i18n.Match(from.LanguageCode)
	if errors.Is(err, common.ErrAccountNotFound) {
		b.notifier.Text(chatID, i18n.T(loc, "not_registered"), nil)
		return
	}
	log.WithError(err).WithField("user_id", from.ID).Error("Ошибка чтения аккаунта")
	b.notifier.Text(chatID, i18n.T(loc, "err.generic"), nil)
}

// CommandParser парсит команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Команда начинается с буквы: ".5" это сумма, а не команда.
// Суффикс @botname отбрасывается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}
	if first, _ := utf8.DecodeRuneInString(parts[0]); !unicode.IsLetter(first) {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
