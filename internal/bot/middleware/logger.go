// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"net/http"
	"time"
	"unicode/utf8"

	chimw "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// maxLoggedText ограничивает текст в логе.
const maxLoggedText = 50

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
		"text":     shorten(message.Text),
	}).Debug("Входящее сообщение")
}

// LogCallback логирует нажатие inline-кнопки.
func LogCallback(q *tgbotapi.CallbackQuery) {
	if q == nil || q.From == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":  q.From.ID,
		"username": q.From.UserName,
		"data":     q.Data,
	}).Debug("Нажатие кнопки")
}

// shorten обрезает текст по рунам, чтобы не резать кириллицу посередине.
func shorten(text string) string {
	if utf8.RuneCountInString(text) <= maxLoggedText {
		return text
	}
	return string([]rune(text)[:maxLoggedText]) + "..."
}

// RequestLogger логирует HTTP-запросы вебхука через logrus.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			entry := log.WithFields(log.Fields{
				"component":  "http",
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"remote":     r.RemoteAddr,
				"request_id": chimw.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("HTTP-запрос")
				return
			}
			entry.Info("HTTP-запрос")
		}()
		next.ServeHTTP(ww, r)
	})
}
