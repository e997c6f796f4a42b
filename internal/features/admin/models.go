// Package admin — ревью выводов и ручных пополнений, ручная корректировка балансов.
// models.go описывает админ-сессии, которые выдаёт /login.
package admin

import (
	"errors"
	"time"
)

// Session описывает активную сессию администратора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// Ограничения входа
const (
	MaxLoginAttempts = 3              // неудачных попыток за LoginWindow
	LoginWindow      = time.Hour      // окно подсчёта попыток
	SessionTTL       = 24 * time.Hour // срок жизни сессии
)

// ErrNoSession возвращается, если у пользователя нет активной сессии.
var ErrNoSession = errors.New("активная сессия не найдена")
