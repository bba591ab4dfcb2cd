package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-console-go/infrastructure/logger"
	"futures-console-go/internal/engine"
	"futures-console-go/internal/session"
	"futures-console-go/inventory"
	"futures-console-go/market"
	"futures-console-go/metrics"
	"futures-console-go/order"
	"futures-console-go/risk"
	"futures-console-go/strategy"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func marketDepth(bid, ask string) market.Depth {
	return market.Depth{
		Symbol: "BTCUSDT",
		Bids:   []market.Level{{Price: d(bid), Quantity: d("1")}},
		Asks:   []market.Level{{Price: d(ask), Quantity: d("1")}},
		Ts:     time.Now(),
	}
}

// fakeGateway 可编程的网关替身：按 symbol 返回固定数据，记录下单请求，
// failEvery 大于 0 时每第 N 笔返回错误。
type fakeGateway struct {
	rules     order.SymbolRules
	brackets  risk.BracketTable
	balance   decimal.Decimal
	positions []inventory.Position

	placed    []order.Intent
	failEvery int
	placeErr  error
	cancelled []string
	cancelErr error
}

func (f *fakeGateway) FetchSymbolRules(string) (order.SymbolRules, error) {
	return f.rules, nil
}

func (f *fakeGateway) FetchLeverageBrackets(string) (risk.BracketTable, error) {
	return f.brackets, nil
}

func (f *fakeGateway) FetchAvailableBalance(string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeGateway) FetchPositions(symbol string) ([]inventory.Position, error) {
	if symbol == "" {
		return f.positions, nil
	}
	var out []inventory.Position
	for _, p := range f.positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeGateway) PlaceOrder(it order.Intent) (string, error) {
	f.placed = append(f.placed, it)
	if f.placeErr != nil {
		return "", f.placeErr
	}
	if f.failEvery > 0 && len(f.placed)%f.failEvery == 0 {
		return "", errors.New("rejected")
	}
	return "1001", nil
}

func (f *fakeGateway) CancelAllOrders(symbol string) error {
	f.cancelled = append(f.cancelled, symbol)
	return f.cancelErr
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rules: order.SymbolRules{Symbol: "BTCUSDT", TickSize: d("0.1"), StepSize: d("0.001")},
		brackets: risk.NewBracketTable([]risk.BracketTier{
			{NotionalFloor: d("0"), NotionalCap: d("50000"), MaxLeverage: 125},
			{NotionalFloor: d("50000"), NotionalCap: d("250000"), MaxLeverage: 100},
			{NotionalFloor: d("250000"), NotionalCap: d("1000000"), MaxLeverage: 50},
		}),
		balance: d("3000"),
	}
}

func newConsole(t *testing.T, gw *fakeGateway) (*engine.Console, *metrics.Collector) {
	t.Helper()
	lg, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)
	m := metrics.NewWith(prometheus.NewRegistry())
	sess := session.New("BTCUSDT", nil)
	c := engine.New(engine.Config{
		Asset: "USDT",
		Fees:  strategy.TakerFees(d("0.0004")),
	}, gw, sess, lg, m)
	require.NoError(t, c.RefreshSymbol())
	require.NoError(t, c.RefreshAccount())
	return c, m
}

func TestRecalculate(t *testing.T) {
	c, m := newConsole(t, newFakeGateway())
	state := c.Recalculate(strategy.Inputs{
		EntryPrice: "30000",
		Leverage:   "10",
		ROIPercent: "20",
		Side:       order.Long,
	})
	require.True(t, state.Valid, "reason: %s", state.Reason)
	assert.Equal(t, "30624.3", state.TargetPriceText)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Recomputes))
}

func TestSubmitEntryGridFull(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newConsole(t, gw)

	report, err := c.SubmitEntryGrid(d("30000"), order.Long,
		strategy.GridSpec{TotalQuantity: d("0.009"), Count: 3, TickInterval: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Requested)
	assert.Equal(t, 3, report.Built)
	assert.Equal(t, 3, report.Placed)
	assert.Empty(t, report.Failed)
	assert.Equal(t, "3 of 3 orders placed", report.Summary())
	require.Len(t, gw.placed, 3)
	for _, it := range gw.placed {
		assert.Equal(t, order.Buy, it.Side)
		assert.False(t, it.ReduceOnly)
	}
}

// 单笔失败不中断其余档位，结果按 N of M 汇总。
func TestSubmitGridPartialFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.failEvery = 2
	c, m := newConsole(t, gw)

	report, err := c.SubmitExitGrid(d("30624.3"), order.Long,
		strategy.GridSpec{TotalQuantity: d("0.012"), Count: 4, TickInterval: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Built)
	assert.Equal(t, 2, report.Placed)
	assert.Len(t, report.Failed, 2)
	assert.Len(t, gw.placed, 4, "remaining slots must still be attempted")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OrdersFailed))

	placed, failed := c.Book().Counts()
	assert.Equal(t, 2, placed)
	assert.Equal(t, 2, failed)
}

// 量化后单档为零：无报错、无下单、丢弃档数进指标。
func TestSubmitGridAllDropped(t *testing.T) {
	gw := newFakeGateway()
	c, m := newConsole(t, gw)

	report, err := c.SubmitEntryGrid(d("30000"), order.Long,
		strategy.GridSpec{TotalQuantity: d("0.002"), Count: 3, TickInterval: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Built)
	assert.Empty(t, gw.placed)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.GridSlotsDropped))
}

func TestMaxQuantityNeedsQuote(t *testing.T) {
	c, _ := newConsole(t, newFakeGateway())
	_, _, err := c.MaxQuantity(order.Long, 10)
	assert.ErrorIs(t, err, risk.ErrNoQuote)
}

func TestMaxQuantityCapsLeverage(t *testing.T) {
	gw := newFakeGateway()
	gw.balance = d("6000")
	c, _ := newConsole(t, gw)
	c.Session().SetDepth(marketDepth("30000.1", "30000.3"))

	// 6000×100=600000 名义落在 50x 层：名义压缩为 300000
	qty, lev, err := c.MaxQuantity(order.Long, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, lev)
	// 300000/30000.3 = 9.99990… 向下到 step
	assert.True(t, qty.Equal(d("9.999")), "got %s", qty)
}

func TestCloseAtPriceValidatesQuantity(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{{Symbol: "BTCUSDT", Amount: d("-0.4"), EntryPrice: d("30000")}}
	c, _ := newConsole(t, gw)

	_, err := c.CloseAtPrice(d("29000"), d("0.5"))
	assert.ErrorIs(t, err, risk.ErrQuantityExceedsPosition)
	assert.Empty(t, gw.placed, "rejected close must not reach the gateway")

	id, err := c.CloseAtPrice(d("29000.04"), d("0.3"))
	require.NoError(t, err)
	assert.Equal(t, "1001", id)
	require.Len(t, gw.placed, 1)
	it := gw.placed[0]
	assert.Equal(t, order.Buy, it.Side, "closing a short buys back")
	assert.True(t, it.ReduceOnly)
	// 空头离场价向下取整
	assert.True(t, it.Price.Equal(d("29000")), "got %s", it.Price)
}

func TestCloseWithoutPosition(t *testing.T) {
	c, _ := newConsole(t, newFakeGateway())
	_, err := c.CloseAtPrice(d("30000"), d("0.1"))
	assert.ErrorIs(t, err, risk.ErrQuantityExceedsPosition)
}

func TestEmergencyCloseAllPositions(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("0.5")},
		{Symbol: "ETHUSDT", Amount: d("-2")},
	}
	c, _ := newConsole(t, gw)

	closed, err := c.EmergencyClose()
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
	require.Len(t, gw.placed, 2)
	for _, it := range gw.placed {
		assert.Equal(t, "MARKET", it.Type)
		assert.True(t, it.ReduceOnly)
	}
	assert.Equal(t, order.Sell, gw.placed[0].Side)
	assert.Equal(t, order.Buy, gw.placed[1].Side)
}

func TestEmergencyClosePartialFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("0.5")},
		{Symbol: "ETHUSDT", Amount: d("-2")},
	}
	gw.failEvery = 1 // 每笔都失败
	c, _ := newConsole(t, gw)

	closed, err := c.EmergencyClose()
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
	assert.Len(t, gw.placed, 2, "failures must not stop the sweep")
}

// 目标价以持仓自己的进场价与杠杆为基准，不依赖面板上输入的基准价。
func TestPositionTargetFromEntryPrice(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("0.5"), EntryPrice: d("30000"), Leverage: 10},
	}
	c, _ := newConsole(t, gw)

	// 传入的杠杆与持仓不一致时以持仓为准
	target, err := c.PositionTarget(5, d("20"))
	require.NoError(t, err)
	assert.True(t, target.Equal(d("30624.3")), "got %s", target)

	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("-0.5"), EntryPrice: d("30000"), Leverage: 10},
	}
	require.NoError(t, c.RefreshAccount())
	target, err = c.PositionTarget(10, d("20"))
	require.NoError(t, err)
	assert.True(t, target.Equal(d("29376.2")), "got %s", target)
}

func TestPositionTargetWithoutPosition(t *testing.T) {
	c, _ := newConsole(t, newFakeGateway())
	_, err := c.PositionTarget(10, d("20"))
	assert.ErrorIs(t, err, risk.ErrNoPosition)
}

// taker 进 maker 出的混合费率给出比纯 taker 更近的目标价。
func TestPositionTargetBlendedFees(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("0.5"), EntryPrice: d("30000"), Leverage: 10},
	}
	lg, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)
	c := engine.New(engine.Config{
		Asset: "USDT",
		Fees:  strategy.BlendedFees(d("0.0004"), d("0.0002")),
	}, gw, session.New("BTCUSDT", nil), lg, metrics.NewWith(prometheus.NewRegistry()))
	require.NoError(t, c.RefreshSymbol())
	require.NoError(t, c.RefreshAccount())

	assert.True(t, c.Fees().Exit.Equal(d("0.0002")))
	target, err := c.PositionTarget(10, d("20"))
	require.NoError(t, err)
	// 30000*(1+0.02+0.0004)/(1-0.0002) 向上取整到 0.1
	assert.True(t, target.Equal(d("30618.2")), "got %s", target)
	assert.True(t, target.LessThan(d("30624.3")), "maker exit must need a smaller move")
}

func TestMaxQuantityPortion(t *testing.T) {
	gw := newFakeGateway()
	gw.balance = d("6000")
	c, _ := newConsole(t, gw)
	c.Session().SetDepth(marketDepth("30000.1", "30000.3"))

	// 满仓 9.999，50% 档 4.9995 向下截断到 step
	qty, lev, err := c.MaxQuantityAt(order.Long, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, lev)
	assert.True(t, qty.Equal(d("4.999")), "got %s", qty)

	_, _, err = c.MaxQuantityAt(order.Long, 100, 0)
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}

func TestCancelAllOrdersCurrentSymbol(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newConsole(t, gw)
	require.NoError(t, c.CancelAllOrders())
	assert.Equal(t, []string{"BTCUSDT"}, gw.cancelled)
}

// 平仓扫尾后按涉及的交易对撤销剩余挂单。
func TestEmergencyCloseCancelsOrders(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("0.5")},
		{Symbol: "ETHUSDT", Amount: d("-2")},
	}
	c, _ := newConsole(t, gw)

	_, err := c.EmergencyClose()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, gw.cancelled)
}

func TestRefreshAccountTracksPositions(t *testing.T) {
	gw := newFakeGateway()
	gw.positions = []inventory.Position{
		{Symbol: "BTCUSDT", Amount: d("0.5")},
		{Symbol: "ETHUSDT", Amount: d("-2")},
	}
	c, _ := newConsole(t, gw)

	view := c.Session().Snapshot()
	assert.True(t, view.HasPosition)
	assert.True(t, view.Position.Amount.Equal(d("0.5")))
	assert.Len(t, c.OpenPositions(), 2)

	// 持仓消失后缓存同步清掉
	gw.positions = nil
	require.NoError(t, c.RefreshAccount())
	assert.False(t, c.Session().Snapshot().HasPosition)
	assert.Empty(t, c.OpenPositions())
}

func TestDryRunPlacesNothing(t *testing.T) {
	gw := newFakeGateway()
	lg, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)
	c := engine.New(engine.Config{
		Asset:  "USDT",
		Fees:   strategy.TakerFees(d("0.0004")),
		DryRun: true,
	}, gw, session.New("BTCUSDT", nil), lg, metrics.NewWith(prometheus.NewRegistry()))
	require.NoError(t, c.RefreshSymbol())

	report, err := c.SubmitEntryGrid(d("30000"), order.Long,
		strategy.GridSpec{TotalQuantity: d("0.009"), Count: 3, TickInterval: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Placed)
	assert.Empty(t, gw.placed, "dry-run must not hit the gateway")
	placed, _ := c.Book().Counts()
	assert.Equal(t, 3, placed)
}
