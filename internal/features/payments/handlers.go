package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/i18n"
)

// IPN не бывает больше maxIPNBody.
const maxIPNBody = 64 << 10

// Handler принимает IPN от NowPayments и отдаёт health-check.
type Handler struct {
	secret   string
	engine   *ledger.Service
	accounts *accounts.Service
	notifier *notify.Notifier
	health   func(ctx context.Context) error
}

// NewHandler создаёт обработчик. health может быть nil.
func NewHandler(secret string, engine *ledger.Service, accountService *accounts.Service,
	notifier *notify.Notifier, health func(ctx context.Context) error) *Handler {
	return &Handler{
		secret:   secret,
		engine:   engine,
		accounts: accountService,
		notifier: notifier,
		health:   health,
	}
}

// Routes возвращает маршруты HTTP-сервера.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payment-ipn", h.HandleIPN)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleIPN проверяет подпись и подтверждает или отклоняет пополнение.
// Неизвестный платёж отвечает 200, чтобы NowPayments не повторял запрос.
func (h *Handler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIPNBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Подпись проверяется до чтения полей платежа
	if err := VerifySignature(body, r.Header.Get(SignatureHeader), h.secret); err != nil {
		log.WithField("remote", r.RemoteAddr).Warn("IPN с неверной подписью отклонён")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil || n.PaymentID == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	fields := log.Fields{
		"payment_id": string(n.PaymentID),
		"status":     n.PaymentStatus,
		"order_id":   n.OrderID,
	}
	if !n.Terminal() {
		log.WithFields(fields).Debug("IPN: промежуточный статус")
		writeOK(w)
		return
	}

	ref := string(n.PaymentID)
	var t *ledger.Transaction
	var applied bool
	if n.PaymentStatus == StatusFinished {
		t, applied, err = h.engine.ConfirmDeposit(r.Context(), ref)
	} else {
		t, applied, err = h.engine.FailDeposit(r.Context(), ref)
	}

	switch {
	case errors.Is(err, common.ErrTransactionNotFound):
		log.WithFields(fields).Warn("IPN для неизвестного платежа")
		writeOK(w)
		return
	case err != nil:
		log.WithError(err).WithFields(fields).Error("IPN: ошибка проведения")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !applied {
		log.WithFields(fields).Info("IPN: платёж уже обработан")
		writeOK(w)
		return
	}

	if n.PaymentStatus == StatusFinished && n.OutcomeAmount.IsPositive() && !n.OutcomeAmount.Equal(t.Amount) {
		// Зачисляется сумма заявки; расхождение только логируем
		log.WithFields(fields).WithFields(log.Fields{
			"recorded": t.Amount.String(),
			"outcome":  n.OutcomeAmount.String(),
		}).Warn("IPN: сумма шлюза отличается от заявки")
	}

	h.notifyOwner(r.Context(), t)
	writeOK(w)
}

func (h *Handler) notifyOwner(ctx context.Context, t *ledger.Transaction) {
	loc := i18n.Default
	if acc, err := h.accounts.Get(ctx, t.UserID); err == nil {
		loc = acc.Locale()
	}
	key := "deposit.rejected"
	if t.Status == ledger.TxCompleted {
		key = "deposit.confirmed"
	}
	h.notifier.Text(t.UserID, i18n.T(loc, key, common.FormatUSD(t.Amount)), nil)
}

// HandleHealth отвечает 200, если база доступна.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			log.WithError(err).Warn("health-check: база недоступна")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
