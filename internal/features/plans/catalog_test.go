package plans

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	all := c.All()
	require.Len(t, all, 4)
	for i, p := range all {
		assert.Equal(t, i+1, p.Number)
	}

	p, ok := c.Get("plan_2")
	require.True(t, ok)
	assert.Equal(t, 72*time.Hour, p.Duration)
	assert.Equal(t, 72, p.Hours())
	assert.True(t, p.ProfitPercent.Equal(decimal.NewFromInt(20)))

	_, ok = c.Get("plan_9")
	assert.False(t, ok)
}

func TestPlanProfit(t *testing.T) {
	p, _ := DefaultCatalog().Get("plan_1")
	assert.Equal(t, "7.5", p.Profit(decimal.NewFromInt(50)).String())
	assert.Equal(t, "15", p.Profit(decimal.NewFromInt(100)).String())
}

func TestCatalogAllReturnsCopy(t *testing.T) {
	c := DefaultCatalog()
	all := c.All()
	all[0].ID = "mutated"

	p, ok := c.Get("plan_1")
	require.True(t, ok)
	assert.Equal(t, "plan_1", p.ID)
	assert.Equal(t, "plan_1", c.All()[0].ID)
}

func TestReferralTable(t *testing.T) {
	rt := DefaultReferralTable()
	require.Equal(t, 3, rt.Levels())

	tests := []struct {
		level int
		want  string
	}{
		{1, "7"},
		{2, "6"},
		{3, "5"},
		{4, "0"},
		{0, "0"},
	}
	for _, tt := range tests {
		got := rt.Bonus(tt.level, decimal.NewFromInt(100))
		assert.Equal(t, tt.want, got.String(), "level %d", tt.level)
	}

	_, ok := rt.Percent(4)
	assert.False(t, ok)
}
