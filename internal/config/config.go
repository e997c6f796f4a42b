// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// перед этим godotenv подхватывает локальный .env, если он есть.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Режимы приёма депозитов.
const (
	DepositModeInvoice = "invoice" // счёт NowPayments + подтверждение через IPN
	DepositModeManual  = "manual"  // перевод на кошелёк администратора + ручное подтверждение
)

// MaxReferralLevels задаёт глубину реферальной программы.
const MaxReferralLevels = 3

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Единственный администратор: ревью выводов и ручные начисления
	AdminID int64 `envconfig:"ADMIN_ID" required:"true"`
	// Argon2id-хеш пароля для /login. Пустой — команды /credit и /debit доступны без сессии.
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
	BotUsername       string `envconfig:"BOT_USERNAME"`
	SupportUsername   string `envconfig:"SUPPORT_USERNAME" default:"support"`
	FAQURL            string `envconfig:"FAQ_URL"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"invest_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (необязательно) ---
	// Если задан — блокировки аккаунтов распределённые, иначе in-memory.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	AccountLockTTL time.Duration `envconfig:"ACCOUNT_LOCK_TTL" default:"30s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"3"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"5"`

	// --- HTTP (IPN + health) ---
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	WebhookDomain string `envconfig:"WEBHOOK_DOMAIN"`

	// --- Платежи ---
	DepositMode            string        `envconfig:"DEPOSIT_MODE" default:"invoice"`
	AdminDepositWallet     string        `envconfig:"ADMIN_DEPOSIT_WALLET"`
	NowPaymentsAPIKey      string        `envconfig:"NOWPAYMENTS_API_KEY"`
	NowPaymentsIPNSecret   string        `envconfig:"NOWPAYMENTS_IPN_SECRET"`
	NowPaymentsBaseURL     string        `envconfig:"NOWPAYMENTS_BASE_URL" default:"https://api.nowpayments.io/v1"`
	NowPaymentsPayCurrency string        `envconfig:"NOWPAYMENTS_PAY_CURRENCY" default:"usdttrc20"`
	PaymentTimeout         time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"15s"`

	// --- Лимиты и бонусы ---
	MinWithdrawal    decimal.Decimal   `envconfig:"MIN_WITHDRAWAL" default:"10"`
	MinDeposit       decimal.Decimal   `envconfig:"MIN_DEPOSIT" default:"6"`
	WelcomeBonus     decimal.Decimal   `envconfig:"WELCOME_BONUS" default:"2"`
	ReferralPercents []decimal.Decimal `envconfig:"REFERRAL_PERCENTS" default:"7,6,5"`

	// --- Уведомления ---
	// Окно, в течение которого повторное уведомление админа по тому же ключу не отправляется
	AdminNotifyWindow time.Duration `envconfig:"ADMIN_NOTIFY_WINDOW" default:"10m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IPNCallbackURL возвращает адрес, на который NowPayments шлёт уведомления об оплате.
func (c *Config) IPNCallbackURL() string {
	return strings.TrimRight(c.WebhookDomain, "/") + "/payment-ipn"
}

// ReferralLink возвращает реферальную ссылку пользователя.
func (c *Config) ReferralLink(userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=ref_%d", c.BotUsername, userID)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.AdminID == 0 {
		return fmt.Errorf("ADMIN_ID не задан или равен 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS и RATE_LIMIT_BURST должны быть > 0")
	}

	switch c.DepositMode {
	case DepositModeInvoice:
		if c.NowPaymentsAPIKey == "" || c.NowPaymentsIPNSecret == "" {
			return fmt.Errorf("DEPOSIT_MODE=invoice требует NOWPAYMENTS_API_KEY и NOWPAYMENTS_IPN_SECRET")
		}
		if c.WebhookDomain == "" {
			return fmt.Errorf("DEPOSIT_MODE=invoice требует WEBHOOK_DOMAIN")
		}
	case DepositModeManual:
		if c.AdminDepositWallet == "" {
			return fmt.Errorf("DEPOSIT_MODE=manual требует ADMIN_DEPOSIT_WALLET")
		}
	default:
		return fmt.Errorf("неизвестный DEPOSIT_MODE %q", c.DepositMode)
	}

	if c.MinWithdrawal.IsNegative() || c.MinDeposit.IsNegative() || c.WelcomeBonus.IsNegative() {
		return fmt.Errorf("MIN_WITHDRAWAL, MIN_DEPOSIT и WELCOME_BONUS не могут быть отрицательными")
	}
	if len(c.ReferralPercents) > MaxReferralLevels {
		return fmt.Errorf("REFERRAL_PERCENTS: не больше %d уровней", MaxReferralLevels)
	}
	for i, p := range c.ReferralPercents {
		if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("REFERRAL_PERCENTS: уровень %d вне диапазона 0..100", i+1)
		}
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	// .env необязателен: в Docker переменные приходят из окружения
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
