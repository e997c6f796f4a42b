// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// HTTP-сервер вебхука и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/accountlock"
	"serotonyl.ru/invest-bot/internal/bot"
	"serotonyl.ru/invest-bot/internal/bot/filters"
	"serotonyl.ru/invest-bot/internal/bot/middleware"
	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
	"serotonyl.ru/invest-bot/internal/db/postgres"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/admin"
	"serotonyl.ru/invest-bot/internal/features/conversation"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/menu"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/features/payments"
	"serotonyl.ru/invest-bot/internal/features/plans"
	"serotonyl.ru/invest-bot/internal/i18n"
	"serotonyl.ru/invest-bot/internal/jobs"
)

// dedupCapacity ограничивает кэш админ-уведомлений.
const dedupCapacity = 10_000

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Ledger    *ledger.Service
	HTTP      *http.Server
	DB        *pgxpool.Pool
	Redis     *redis.Client
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.Migrate(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Блокировки аккаунтов ===
	locker, rdb, err := newLocker(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// === 3. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development" && cfg.AppLogLevel == "trace"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)
	if cfg.BotUsername == "" {
		cfg.BotUsername = botAPI.Self.UserName
	}

	notifier := notify.New(botAPI, cfg.AdminID)
	dedup := notify.NewDedup(cfg.AdminNotifyWindow, dedupCapacity)

	// === 4. Репозитории ===
	accountRepo := accounts.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 5. Сервисы ===
	accountService := accounts.NewService(accountRepo, cfg.WelcomeBonus)
	engine := ledger.NewService(ledgerRepo,
		plans.DefaultCatalog(),
		plans.NewReferralTable(cfg.ReferralPercents),
		locker,
		ledger.Limits{MinDeposit: cfg.MinDeposit, MinWithdrawal: cfg.MinWithdrawal},
		ledger.WithReferralNotifier(referralNotifier(accountService, notifier)),
	)
	adminService := admin.NewService(adminRepo, engine, cfg)

	// Шлюз нужен только для счетов NowPayments
	var gateway conversation.InvoiceCreator
	if cfg.DepositMode == config.DepositModeInvoice {
		gateway = payments.NewClient(cfg)
	}

	// === 6. Обработчики ===
	machine := conversation.NewMachine(accountRepo)
	screens := menu.NewHandler(cfg, accountService, engine, notifier)
	flows := conversation.NewHandler(cfg, machine, engine, screens, gateway, notifier, dedup)
	adminHandler := admin.NewHandler(adminService, accountService, notifier)
	paymentHandler := payments.NewHandler(cfg.NowPaymentsIPNSecret, engine, accountService, notifier, pool.Ping)

	// === 7. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		accountService, locker,
		machine, screens, flows,
		adminHandler, notifier,
		filters.NewChatFilter(),
	)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg.AppTimezone, engine, dedup, func(text string) bool {
		return notifier.Admin(text, nil)
	})

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Ledger:    engine,
		HTTP:      newHTTPServer(cfg.HTTPAddr, paymentHandler),
		DB:        pool,
		Redis:     rdb,
		BotAPI:    botAPI,
	}, nil
}

// newLocker выбирает блокировку: Redis для нескольких реплик, иначе в памяти.
func newLocker(ctx context.Context, cfg *config.Config) (accountlock.Locker, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR не задан: блокировки аккаунтов в памяти процесса")
		return accountlock.NewMemory(), nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis недоступен: %w", err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("Блокировки аккаунтов через Redis")
	return accountlock.NewRedis(rdb, cfg.AccountLockTTL), rdb, nil
}

// referralNotifier сообщает рефереру о начислении на его языке.
func referralNotifier(accountService *accounts.Service, notifier *notify.Notifier) ledger.ReferralNotifier {
	return func(ctx context.Context, referrerID int64, level int, amount decimal.Decimal) {
		loc := i18n.Default
		if acc, err := accountService.Get(ctx, referrerID); err == nil {
			loc = acc.Locale()
		}
		notifier.Text(referrerID, i18n.T(loc, "referral.bonus", level, common.FormatUSD(amount)), nil)
	}
}

// newHTTPServer создаёт сервер для IPN NowPayments и health-check.
func newHTTPServer(addr string, h *payments.Handler) *http.Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Mount("/", h.Routes())

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Close освобождает соединения.
func (a *App) Close() {
	a.Bot.Close()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
	a.DB.Close()
}
