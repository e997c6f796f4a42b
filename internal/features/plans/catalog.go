// Package plans — каталог инвестиционных тарифов и таблица реферальных процентов.
// Оба справочника загружаются при старте и дальше только читаются.
package plans

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Plan описывает инвестиционный тариф.
type Plan struct {
	ID            string          // "plan_1", "plan_2", ...
	Number        int             // порядковый номер для кнопок
	Duration      time.Duration   // срок вклада
	ProfitPercent decimal.Decimal // прибыль за срок, в процентах
	Min           decimal.Decimal
	Max           decimal.Decimal
}

// Profit возвращает прибыль по вкладу суммой principal.
func (p Plan) Profit(principal decimal.Decimal) decimal.Decimal {
	return principal.Mul(p.ProfitPercent).Div(hundred)
}

// Hours возвращает срок тарифа в часах.
func (p Plan) Hours() int {
	return int(p.Duration / time.Hour)
}

var hundred = decimal.NewFromInt(100)

// Catalog хранит неизменяемый набор тарифов.
type Catalog struct {
	byID    map[string]Plan
	ordered []Plan
}

// NewCatalog собирает каталог из списка тарифов (по возрастанию Number).
func NewCatalog(list ...Plan) *Catalog {
	c := &Catalog{byID: make(map[string]Plan, len(list))}
	for _, p := range list {
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Number < c.ordered[j].Number })
	return c
}

// DefaultCatalog возвращает четыре тарифа: 1, 3, 7 и 30 дней.
func DefaultCatalog() *Catalog {
	min := decimal.NewFromInt(5)
	max := decimal.NewFromInt(1_000_000)
	return NewCatalog(
		Plan{ID: "plan_1", Number: 1, Duration: 24 * time.Hour, ProfitPercent: decimal.NewFromInt(15), Min: min, Max: max},
		Plan{ID: "plan_2", Number: 2, Duration: 72 * time.Hour, ProfitPercent: decimal.NewFromInt(20), Min: min, Max: max},
		Plan{ID: "plan_3", Number: 3, Duration: 168 * time.Hour, ProfitPercent: decimal.NewFromInt(27), Min: min, Max: max},
		Plan{ID: "plan_4", Number: 4, Duration: 720 * time.Hour, ProfitPercent: decimal.NewFromInt(32), Min: min, Max: max},
	)
}

// Get возвращает тариф по ID.
func (c *Catalog) Get(id string) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ByNumber возвращает тариф по номеру кнопки.
func (c *Catalog) ByNumber(n int) (Plan, bool) {
	for _, p := range c.ordered {
		if p.Number == n {
			return p, true
		}
	}
	return Plan{}, false
}

// All возвращает тарифы в порядке номеров.
func (c *Catalog) All() []Plan {
	out := make([]Plan, len(c.ordered))
	copy(out, c.ordered)
	return out
}
