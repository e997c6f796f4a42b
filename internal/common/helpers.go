// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование денежных сумм, длительностей и дат, русская плюрализация.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces задаёт число знаков после запятой для пользователя.
const MoneyPlaces = 2

// FormatMoney форматирует сумму в долларах с двумя знаками после запятой.
//
// Примеры:
//
//	FormatMoney(decimal.NewFromInt(12))      → "12.00"
//	FormatMoney(decimal.RequireFromString("7.5")) → "7.50"
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyPlaces)
}

// FormatUSD работает как FormatMoney, но со знаком доллара: "$12.00".
func FormatUSD(amount decimal.Decimal) string {
	return "$" + FormatMoney(amount)
}

// DurationParts раскладывает длительность на дни, часы и минуты.
// Отрицательная длительность считается нулевой.
func DurationParts(d time.Duration) (days, hours, minutes int) {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	days = total / (24 * 60)
	hours = (total / 60) % 24
	minutes = total % 60
	return days, hours, minutes
}

// FormatDurationShort форматирует длительность как "2d 5h 10m".
// Нулевые старшие части опускаются, минуты показываются всегда.
func FormatDurationShort(d time.Duration) string {
	days, hours, minutes := DurationParts(d)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}

// FormatDurationRu форматирует длительность по-русски: "2 дня 5 ч 10 мин".
func FormatDurationRu(d time.Duration) string {
	days, hours, minutes := DurationParts(d)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", days, PluralizeDays(days)))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%d ч", hours))
	}
	parts = append(parts, fmt.Sprintf("%d мин", minutes))
	return strings.Join(parts, " ")
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в указанной зоне.
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// LoadLocation загружает часовой пояс по имени. Если tzdata недоступна,
// для Europe/Moscow возвращается фиксированный UTC+3, для остальных UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "Europe/Moscow" {
		return time.FixedZone("MSK", 3*60*60)
	}
	return time.UTC
}
