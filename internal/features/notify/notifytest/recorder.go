// Package notifytest подменяет Telegram в тестах и запоминает всё отправленное.
package notifytest

import (
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sent описывает одно отправленное сообщение.
type Sent struct {
	ChatID int64
	Text   string
	Markup interface{}
	Photo  bool
}

// Recorder реализует notify.Sender.
type Recorder struct {
	mu      sync.Mutex
	sent    []Sent
	edits   []Sent
	answers []string
	nextID  int

	// FailNext задаёт, сколько ближайших Send вернут ошибку.
	FailNext int
}

// New создаёт пустой Recorder.
func New() *Recorder { return &Recorder{} }

// Send запоминает сообщение.
func (r *Recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNext > 0 {
		r.FailNext--
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}

	var s Sent
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		s = Sent{ChatID: m.ChatID, Text: m.Text, Markup: m.ReplyMarkup}
	case tgbotapi.PhotoConfig:
		s = Sent{ChatID: m.ChatID, Text: m.Caption, Markup: m.ReplyMarkup, Photo: true}
	default:
		return tgbotapi.Message{}, errors.New("unsupported chattable")
	}
	r.sent = append(r.sent, s)
	r.nextID++
	return tgbotapi.Message{MessageID: r.nextID, Chat: &tgbotapi.Chat{ID: s.ChatID}}, nil
}

// Request запоминает правки и ответы на callback.
func (r *Recorder) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.EditMessageTextConfig:
		r.edits = append(r.edits, Sent{ChatID: m.ChatID, Text: m.Text})
	case tgbotapi.CallbackConfig:
		r.answers = append(r.answers, m.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// To возвращает сообщения, отправленные в чат chatID.
func (r *Recorder) To(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last возвращает последнее сообщение в чат chatID.
func (r *Recorder) Last(chatID int64) (Sent, bool) {
	msgs := r.To(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Edits возвращает все правки сообщений.
func (r *Recorder) Edits() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.edits...)
}

// Answers возвращает ID callback-запросов, на которые ответили.
func (r *Recorder) Answers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.answers...)
}

// Reset очищает записанное.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.edits, r.answers = nil, nil, nil
}
