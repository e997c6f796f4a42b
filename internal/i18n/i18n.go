// Package i18n хранит тексты бота на нескольких языках.
// Локаль всегда передаётся явно: у пакета нет глобального «текущего языка».
package i18n

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"serotonyl.ru/invest-bot/internal/common"
)

// Locale задаёт код языка пользователя ("en", "ru").
type Locale string

const (
	EN Locale = "en"
	RU Locale = "ru"

	// Default используется, если ключ или локаль не найдены.
	Default = EN
)

// Supported перечисляет языки, доступные в выборе языка.
var Supported = []Locale{EN, RU}

var catalogs = map[Locale]map[string]string{
	EN: messagesEN,
	RU: messagesRU,
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Russian})

// Parse превращает сохранённый код в Locale. Неизвестный код → Default.
func Parse(code string) Locale {
	if _, ok := catalogs[Locale(code)]; ok {
		return Locale(code)
	}
	return Default
}

// Match подбирает локаль по language_code из Telegram ("ru-RU", "en", "be").
func Match(code string) Locale {
	if code == "" {
		return Default
	}
	tag, _ := language.MatchStrings(matcher, code)
	base, _ := tag.Base()
	return Parse(base.String())
}

// T возвращает текст ключа key на языке loc. Аргументы подставляются через fmt.Sprintf.
// Без перевода берётся английский, без него сам ключ.
func T(loc Locale, key string, args ...interface{}) string {
	msg, ok := catalogs[loc][key]
	if !ok {
		msg, ok = catalogs[Default][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Duration форматирует длительность для локали.
func Duration(loc Locale, d time.Duration) string {
	if loc == RU {
		return common.FormatDurationRu(d)
	}
	return common.FormatDurationShort(d)
}

// Labels возвращает перевод ключа во всех локалях.
// Нужен, чтобы узнать нажатую кнопку reply-клавиатуры независимо от языка.
func Labels(key string) []string {
	out := make([]string, 0, len(Supported))
	for _, loc := range Supported {
		out = append(out, T(loc, key))
	}
	return out
}
