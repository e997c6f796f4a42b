package plans

import "github.com/shopspring/decimal"

// ReferralTable хранит проценты реферальных начислений по уровням (уровень 1 это прямой пригласивший).
type ReferralTable struct {
	percents []decimal.Decimal
}

// NewReferralTable создаёт таблицу. Проценты копируются.
func NewReferralTable(percents []decimal.Decimal) *ReferralTable {
	p := make([]decimal.Decimal, len(percents))
	copy(p, percents)
	return &ReferralTable{percents: p}
}

// DefaultReferralTable возвращает проценты 7, 6 и 5.
func DefaultReferralTable() *ReferralTable {
	return NewReferralTable([]decimal.Decimal{
		decimal.NewFromInt(7),
		decimal.NewFromInt(6),
		decimal.NewFromInt(5),
	})
}

// Levels возвращает число оплачиваемых уровней цепочки.
func (t *ReferralTable) Levels() int {
	return len(t.percents)
}

// Percent возвращает процент для уровня (нумерация с 1).
func (t *ReferralTable) Percent(level int) (decimal.Decimal, bool) {
	if level < 1 || level > len(t.percents) {
		return decimal.Zero, false
	}
	return t.percents[level-1], true
}

// Bonus считает начисление уровню level с суммы amount.
func (t *ReferralTable) Bonus(level int, amount decimal.Decimal) decimal.Decimal {
	p, ok := t.Percent(level)
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(p).Div(hundred)
}
