// Package wallets проверяет адреса кошельков для вывода средств.
// Поддерживаются USDT-сети TRC20 (TRON) и BEP20 (BNB Smart Chain).
package wallets

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"

	errs "serotonyl.ru/invest-bot/internal/common"
)

// Network обозначает сеть вывода.
type Network string

const (
	NetworkTRC20 Network = "trc20"
	NetworkBEP20 Network = "bep20"
)

// Networks перечисляет поддерживаемые сети в порядке показа кнопок.
var Networks = []Network{NetworkTRC20, NetworkBEP20}

// ParseNetwork разбирает имя сети из кнопки.
func ParseNetwork(s string) (Network, bool) {
	switch Network(strings.ToLower(s)) {
	case NetworkTRC20:
		return NetworkTRC20, true
	case NetworkBEP20:
		return NetworkBEP20, true
	}
	return "", false
}

// Title возвращает подпись сети для пользователя.
func (n Network) Title() string {
	return strings.ToUpper(string(n))
}

// Detect определяет сеть по формату адреса.
// TRON: base58check, 21 байт с префиксом 0x41. BEP20: 0x + 20 байт hex.
func Detect(addr string) (Network, error) {
	addr = strings.TrimSpace(addr)
	switch {
	case isTronAddress(addr):
		return NetworkTRC20, nil
	case common.IsHexAddress(addr) && strings.HasPrefix(addr, "0x"):
		return NetworkBEP20, nil
	}
	return "", fmt.Errorf("%w: %q", errs.ErrInvalidWallet, addr)
}

// Validate проверяет, что адрес корректен и относится к сети network.
func Validate(network Network, addr string) error {
	detected, err := Detect(addr)
	if err != nil {
		return err
	}
	if detected != network {
		return fmt.Errorf("%w: адрес %s, выбрана сеть %s", errs.ErrNetworkMismatch, detected.Title(), network.Title())
	}
	return nil
}

func isTronAddress(addr string) bool {
	if !strings.HasPrefix(addr, "T") {
		return false
	}
	a, err := address.Base58ToAddress(addr)
	if err != nil {
		return false
	}
	return len(a) == address.AddressLength && a[0] == address.TronBytePrefix
}
