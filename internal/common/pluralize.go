// Package common — pluralize.go содержит склонение русских числительных
// для сообщений на русской локали.
package common

// pluralRu выбирает форму слова для числа n по правилам русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, ...)
//   - остальные → many (0, 5-20, 25-30, 100, ...)
func pluralRu(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
//	PluralizeDays(1)  → "день"
//	PluralizeDays(3)  → "дня"
//	PluralizeDays(11) → "дней"
func PluralizeDays(n int) string {
	return pluralRu(n, "день", "дня", "дней")
}

// PluralizeReferrals возвращает форму слова «реферал».
func PluralizeReferrals(n int) string {
	return pluralRu(n, "реферал", "реферала", "рефералов")
}

// PluralizeHours возвращает форму слова «час».
func PluralizeHours(n int) string {
	return pluralRu(n, "час", "часа", "часов")
}
