// Package common — errors.go определяет ошибки, общие для всех модулей бота.
// Обработчики различают их через errors.Is и показывают пользователю
// отдельное сообщение на каждый тип проблемы.
package common

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Ошибки валидации ввода
var (
	// ErrInvalidAmount — сумма не число, не больше нуля или с лишними знаками после точки
	ErrInvalidAmount = errors.New("сумма должна быть положительным числом")
	// ErrBelowMinimum — сумма меньше минимальной для операции
	ErrBelowMinimum = errors.New("сумма меньше минимальной")
	// ErrAboveMaximum — сумма больше максимальной для тарифа
	ErrAboveMaximum = errors.New("сумма больше максимальной")
	// ErrUnknownPlan — тариф не найден в каталоге
	ErrUnknownPlan = errors.New("неизвестный тариф")
	// ErrInvalidWallet — адрес кошелька не прошёл проверку формата
	ErrInvalidWallet = errors.New("некорректный адрес кошелька")
	// ErrNetworkMismatch — адрес не соответствует выбранной сети
	ErrNetworkMismatch = errors.New("адрес не соответствует выбранной сети")
	// ErrWalletNotConfigured — у аккаунта нет кошелька для вывода
	ErrWalletNotConfigured = errors.New("кошелёк для вывода не указан")
)

// Ошибки баланса и аккаунтов
var (
	// ErrInsufficientFunds — на основном балансе не хватает средств
	ErrInsufficientFunds = errors.New("недостаточно средств на балансе")
	// ErrAccountNotFound — аккаунт не зарегистрирован
	ErrAccountNotFound = errors.New("аккаунт не найден")
)

// Ошибки диалога
var (
	// ErrStateExpired — кнопка или ввод относятся к устаревшему шагу диалога
	ErrStateExpired = errors.New("действие устарело")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrSessionRequired — для команды нужна активная админ-сессия
	ErrSessionRequired = errors.New("нужна авторизация: /login <пароль>")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrTransactionNotFound — транзакции с таким ID нет
	ErrTransactionNotFound = errors.New("транзакция не найдена")
	// ErrAlreadyProcessed — транзакция уже не в статусе pending
	ErrAlreadyProcessed = errors.New("транзакция уже обработана")
)

// Ошибки платёжного шлюза
var (
	// ErrInvalidSignature — подпись IPN отсутствует или не совпала
	ErrInvalidSignature = errors.New("некорректная подпись уведомления")
	// ErrGatewayUnavailable — платёжный шлюз не ответил или ответил ошибкой
	ErrGatewayUnavailable = errors.New("платёжный шлюз недоступен")
)

// LimitError сообщает, что сумма вышла за границу. Limit показывается пользователю.
type LimitError struct {
	Err   error
	Limit decimal.Decimal
}

func (e *LimitError) Error() string { return e.Err.Error() + ": " + FormatMoney(e.Limit) }

func (e *LimitError) Unwrap() error { return e.Err }

// BelowMinimum оборачивает ErrBelowMinimum с нарушенным минимумом.
func BelowMinimum(limit decimal.Decimal) error {
	return &LimitError{Err: ErrBelowMinimum, Limit: limit}
}

// AboveMaximum оборачивает ErrAboveMaximum с нарушенным максимумом.
func AboveMaximum(limit decimal.Decimal) error {
	return &LimitError{Err: ErrAboveMaximum, Limit: limit}
}
