package strategy_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-console-go/order"
	"futures-console-go/strategy"
)

func TestBuildGridThreeSlots(t *testing.T) {
	spec := strategy.GridSpec{TotalQuantity: d("0.01"), Count: 3, TickInterval: 1}
	intents, err := strategy.BuildGrid(d("30624.3"), order.Long, order.RoleExit, spec, btcRules())
	require.NoError(t, err)
	require.Len(t, intents, 3)

	wantPrices := []string{"30624.2", "30624.3", "30624.4"}
	for i, it := range intents {
		assert.True(t, it.Price.Equal(d(wantPrices[i])), "slot %d price %s", i, it.Price)
		// 0.01/3 向下截断到 step
		assert.True(t, it.Quantity.Equal(d("0.003")), "slot %d qty %s", i, it.Quantity)
		assert.Equal(t, order.Sell, it.Side)
		assert.True(t, it.ReduceOnly, "exit grid must be reduce-only")
		assert.Equal(t, "BTCUSDT", it.Symbol)
	}
}

// 总挂单量绝不超过请求总量（数量只向下取整）。
func TestBuildGridMassConservation(t *testing.T) {
	spec := strategy.GridSpec{TotalQuantity: d("0.01"), Count: 3, TickInterval: 1}
	intents, err := strategy.BuildGrid(d("30000"), order.Long, order.RoleEntry, spec, btcRules())
	require.NoError(t, err)

	total := decimal.Zero
	for _, it := range intents {
		total = total.Add(it.Quantity)
	}
	assert.True(t, total.LessThanOrEqual(spec.TotalQuantity), "grid total %s exceeds %s", total, spec.TotalQuantity)
}

func TestBuildGridSingleSlot(t *testing.T) {
	spec := strategy.GridSpec{TotalQuantity: d("0.005"), Count: 1, TickInterval: 3}
	intents, err := strategy.BuildGrid(d("30624.3"), order.Long, order.RoleEntry, spec, btcRules())
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.True(t, intents[0].Price.Equal(d("30624.3")), "got %s", intents[0].Price)
	assert.Equal(t, order.Buy, intents[0].Side)
	assert.False(t, intents[0].ReduceOnly)
}

// 偶数分割时中心落在两档之间，价格按 (方向, 角色) 取整落格。
func TestBuildGridEvenCount(t *testing.T) {
	spec := strategy.GridSpec{TotalQuantity: d("0.008"), Count: 4, TickInterval: 1}
	intents, err := strategy.BuildGrid(d("100"), order.Long, order.RoleEntry, spec, btcRules())
	require.NoError(t, err)
	require.Len(t, intents, 4)
	// 原始档位 99.85/99.95/100.05/100.15，多头进场向下取整
	wantPrices := []string{"99.8", "99.9", "100", "100.1"}
	for i, it := range intents {
		assert.True(t, it.Price.Equal(d(wantPrices[i])), "slot %d price %s", i, it.Price)
	}
}

// 单档数量量化为零时整个网格静默丢弃，不报错。
func TestBuildGridAllSlotsDropped(t *testing.T) {
	spec := strategy.GridSpec{TotalQuantity: d("0.002"), Count: 3, TickInterval: 1}
	intents, err := strategy.BuildGrid(d("30000"), order.Long, order.RoleEntry, spec, btcRules())
	require.NoError(t, err)
	assert.Empty(t, intents)
}

// 间隔为 0 是合法输入：全部档位堆叠在中心价。
func TestBuildGridZeroInterval(t *testing.T) {
	spec := strategy.GridSpec{TotalQuantity: d("0.009"), Count: 3, TickInterval: 0}
	intents, err := strategy.BuildGrid(d("30624.3"), order.Short, order.RoleEntry, spec, btcRules())
	require.NoError(t, err)
	require.Len(t, intents, 3)
	for _, it := range intents {
		assert.True(t, it.Price.Equal(d("30624.3")), "got %s", it.Price)
		assert.Equal(t, order.Sell, it.Side)
	}
}

func TestBuildGridInvalidInputs(t *testing.T) {
	rules := btcRules()
	_, err := strategy.BuildGrid(d("30000"), order.Long, order.RoleEntry,
		strategy.GridSpec{TotalQuantity: d("0.01"), Count: 0, TickInterval: 1}, rules)
	assert.ErrorIs(t, err, strategy.ErrInvalidInput)

	_, err = strategy.BuildGrid(d("30000"), order.Long, order.RoleEntry,
		strategy.GridSpec{TotalQuantity: d("0"), Count: 3, TickInterval: 1}, rules)
	assert.ErrorIs(t, err, strategy.ErrInvalidInput)

	_, err = strategy.BuildGrid(d("0"), order.Long, order.RoleEntry,
		strategy.GridSpec{TotalQuantity: d("0.01"), Count: 3, TickInterval: 1}, rules)
	assert.ErrorIs(t, err, strategy.ErrInvalidInput)
}
