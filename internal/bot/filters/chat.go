// Package filters отсекает апдейты, которые бот не обслуживает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только личные чаты с живыми пользователями.
type ChatFilter struct{}

// NewChatFilter создаёт фильтр.
func NewChatFilter() *ChatFilter {
	return &ChatFilter{}
}

// CheckAccess проверяет, можно ли обрабатывать сообщение.
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return false
	}
	if message.From.IsBot {
		return false
	}

	// Группы и каналы игнорируем: баланс и кошелёк обсуждаются только в личке
	if !message.Chat.IsPrivate() {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
			"user_id":   message.From.ID,
		}).Debug("deny: not private")
		return false
	}
	return true
}

// CheckCallback проверяет, можно ли обрабатывать нажатие кнопки.
func (f *ChatFilter) CheckCallback(q *tgbotapi.CallbackQuery) bool {
	if q == nil || q.From == nil || q.From.IsBot {
		return false
	}
	// Старые сообщения без Message приходят как inline-mode; их не обслуживаем
	if q.Message == nil || q.Message.Chat == nil {
		return false
	}
	return q.Message.Chat.IsPrivate()
}
