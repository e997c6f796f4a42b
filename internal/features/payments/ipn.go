package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"serotonyl.ru/invest-bot/internal/common"
)

// SignatureHeader задаёт заголовок с подписью IPN.
const SignatureHeader = "x-nowpayments-sig"

// Статусы платежа NowPayments, на которые мы реагируем.
const (
	StatusFinished = "finished"
	StatusFailed   = "failed"
	StatusExpired  = "expired"
	StatusRefunded = "refunded"
)

// Notification описывает тело IPN.
type Notification struct {
	PaymentID     flexID          `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	OrderID       string          `json:"order_id"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	ActuallyPaid  decimal.Decimal `json:"actually_paid"`
	OutcomeAmount decimal.Decimal `json:"outcome_amount"`
}

// Terminal сообщает, что платёж больше не изменится.
func (n Notification) Terminal() bool {
	switch n.PaymentStatus {
	case StatusFinished, StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// Sign считает подпись NowPayments: HMAC-SHA512 от JSON с отсортированными ключами.
func Sign(body []byte, secret string) (string, error) {
	canonical, err := canonicalJSON(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature проверяет подпись до любого разбора полей платежа.
func VerifySignature(body []byte, signature, secret string) error {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" || secret == "" {
		return common.ErrInvalidSignature
	}
	expected, err := Sign(body, secret)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidSignature, err)
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return common.ErrInvalidSignature
	}
	return nil
}

// canonicalJSON пересобирает JSON с ключами по алфавиту на всех уровнях.
// Числа сохраняются как есть, HTML-символы не экранируются.
func canonicalJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("некорректный JSON: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// map[string]interface{} кодируется с отсортированными ключами
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
