package payments

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrSize задаёт сторону PNG в пикселях.
const qrSize = 256

// QRCode рисует PNG с QR-кодом для адреса или ссылки на оплату.
func QRCode(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("пустое содержимое QR-кода")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("генерация QR-кода: %w", err)
	}
	return png, nil
}
