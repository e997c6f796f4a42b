// Package notify доставляет сообщения в Telegram.
// Ошибка отправки не откатывает уже зафиксированные изменения баланса:
// одна повторная попытка, затем лог и сброс.
package notify

import (
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender описывает часть tgbotapi.BotAPI, которая нужна для отправки.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Дольше maxRetryAfter не ждём, даже если Telegram просит.
const maxRetryAfter = 5 * time.Second

// Notifier отправляет сообщения пользователям и админу.
type Notifier struct {
	api        Sender
	adminID    int64
	retryDelay time.Duration
}

// New создаёт Notifier.
func New(api Sender, adminID int64) *Notifier {
	return &Notifier{api: api, adminID: adminID, retryDelay: time.Second}
}

// WithRetryDelay задаёт паузу перед повторной попыткой.
func (n *Notifier) WithRetryDelay(d time.Duration) *Notifier {
	n.retryDelay = d
	return n
}

// AdminID возвращает Telegram ID администратора.
func (n *Notifier) AdminID() int64 { return n.adminID }

// Send отправляет любое сообщение. Возвращает false, если обе попытки не удались.
func (n *Notifier) Send(c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	msg, err := n.api.Send(c)
	if err == nil {
		return msg, true
	}

	time.Sleep(n.backoff(err))

	msg, err = n.api.Send(c)
	if err != nil {
		log.WithError(err).Warn("Сообщение не доставлено после повтора")
		return msg, false
	}
	return msg, true
}

func (n *Notifier) backoff(err error) time.Duration {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		wait := time.Duration(tgErr.RetryAfter) * time.Second
		if wait > maxRetryAfter {
			wait = maxRetryAfter
		}
		return wait
	}
	return n.retryDelay
}

// Text отправляет текст. markup может быть nil, ReplyKeyboardMarkup или InlineKeyboardMarkup.
func (n *Notifier) Text(chatID int64, text string, markup interface{}) bool {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	msg.DisableWebPagePreview = true
	_, ok := n.Send(msg)
	if !ok {
		log.WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
	return ok
}

// Photo отправляет PNG с подписью.
func (n *Notifier) Photo(chatID int64, name string, png []byte, caption string, markup interface{}) bool {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	photo.Caption = caption
	if markup != nil {
		photo.ReplyMarkup = markup
	}
	_, ok := n.Send(photo)
	return ok
}

// Admin отправляет сообщение администратору.
func (n *Notifier) Admin(text string, markup interface{}) bool {
	return n.Text(n.adminID, text, markup)
}

// Edit заменяет текст сообщения и убирает inline-кнопки.
func (n *Notifier) Edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := n.api.Request(edit); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Warn("Не удалось отредактировать сообщение")
	}
}

// AnswerCallback гасит «часики» на inline-кнопке.
func (n *Notifier) AnswerCallback(callbackID, text string) {
	if callbackID == "" {
		return
	}
	if _, err := n.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}
