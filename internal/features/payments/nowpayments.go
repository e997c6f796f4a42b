// Package payments — интеграция с NowPayments: создание счёта, приём IPN, QR-коды.
// nowpayments.go содержит HTTP-клиент API.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/config"
)

// Invoice описывает созданный счёт на оплату.
type Invoice struct {
	PaymentID   string
	OrderID     string
	PayAddress  string
	PayAmount   decimal.Decimal
	PayCurrency string
	PayURL      string // может быть пустым: API /payment не всегда отдаёт ссылку
}

// Client работает с API NowPayments.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	payCurrency string
	callbackURL string
}

// NewClient создаёт клиента из конфигурации.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		http:        &http.Client{Timeout: cfg.PaymentTimeout},
		baseURL:     strings.TrimRight(cfg.NowPaymentsBaseURL, "/"),
		apiKey:      cfg.NowPaymentsAPIKey,
		payCurrency: cfg.NowPaymentsPayCurrency,
		callbackURL: cfg.IPNCallbackURL(),
	}
}

type createPaymentRequest struct {
	PriceAmount    json.Number `json:"price_amount"`
	PriceCurrency  string      `json:"price_currency"`
	PayCurrency    string      `json:"pay_currency"`
	OrderID        string      `json:"order_id"`
	IPNCallbackURL string      `json:"ipn_callback_url"`
}

type createPaymentResponse struct {
	PaymentID   flexID          `json:"payment_id"`
	PayAddress  string          `json:"pay_address"`
	PayAmount   decimal.Decimal `json:"pay_amount"`
	PayCurrency string          `json:"pay_currency"`
	InvoiceURL  string          `json:"invoice_url"`
}

// CreateInvoice создаёт платёж на сумму amount USD.
// Любая ошибка (сеть, таймаут, не-2xx, пустой payment_id) → common.ErrGatewayUnavailable.
func (c *Client) CreateInvoice(ctx context.Context, userID int64, amount decimal.Decimal) (*Invoice, error) {
	orderID := fmt.Sprintf("user_%d_%s", userID, uuid.NewString())
	body, err := json.Marshal(createPaymentRequest{
		PriceAmount:    json.Number(amount.String()),
		PriceCurrency:  "usd",
		PayCurrency:    c.payCurrency,
		OrderID:        orderID,
		IPNCallbackURL: c.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGatewayUnavailable, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: чтение ответа: %v", common.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"body":   truncate(string(raw), 200),
		}).Warn("NowPayments вернул ошибку")
		return nil, fmt.Errorf("%w: HTTP %d", common.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out createPaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: разбор ответа: %v", common.ErrGatewayUnavailable, err)
	}
	if out.PaymentID == "" {
		return nil, fmt.Errorf("%w: пустой payment_id", common.ErrGatewayUnavailable)
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"payment_id": string(out.PaymentID),
		"amount":     amount.String(),
		"took":       time.Since(started).String(),
	}).Info("Счёт NowPayments создан")

	return &Invoice{
		PaymentID:   string(out.PaymentID),
		OrderID:     orderID,
		PayAddress:  out.PayAddress,
		PayAmount:   out.PayAmount,
		PayCurrency: out.PayCurrency,
		PayURL:      out.InvoiceURL,
	}, nil
}

// flexID принимает payment_id и строкой, и числом.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = flexID(s)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
