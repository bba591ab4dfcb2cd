package engine

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"futures-console-go/infrastructure/logger"
	"futures-console-go/internal/session"
	"futures-console-go/inventory"
	"futures-console-go/metrics"
	"futures-console-go/order"
	"futures-console-go/risk"
	"futures-console-go/strategy"
)

// Gateway 控制台与交易所交互所需的最小接口；由 gateway.BinanceRESTClient
// 实现，测试中用假实现替换。
type Gateway interface {
	FetchSymbolRules(symbol string) (order.SymbolRules, error)
	FetchLeverageBrackets(symbol string) (risk.BracketTable, error)
	FetchAvailableBalance(asset string) (decimal.Decimal, error)
	FetchPositions(symbol string) ([]inventory.Position, error)
	PlaceOrder(it order.Intent) (string, error)
	CancelAllOrders(symbol string) error
}

// Config 控制台引擎配置。
type Config struct {
	Asset  string // 保证金资产
	Fees   strategy.FeeModel
	DryRun bool // 仅日志输出，不真正下单
}

// Console 把会话状态、纯计算层与交易所网关装配在一起。纯计算层自身
// 不做任何 I/O；所有网络调用都收敛在这里。
type Console struct {
	mu      sync.RWMutex
	cfg     Config
	gw      Gateway
	sess    *session.Session
	book    *order.Book
	tracker *inventory.Tracker
	log     *logger.Logger
	metrics *metrics.Collector
}

func New(cfg Config, gw Gateway, sess *session.Session, log *logger.Logger, m *metrics.Collector) *Console {
	if cfg.Asset == "" {
		cfg.Asset = "USDT"
	}
	return &Console{
		cfg:     cfg,
		gw:      gw,
		sess:    sess,
		book:    order.NewBook(),
		tracker: inventory.NewTracker(),
		log:     log,
		metrics: m,
	}
}

// Session 返回底层会话。
func (c *Console) Session() *session.Session { return c.sess }

// Book 返回订单提交记录。
func (c *Console) Book() *order.Book { return c.book }

// SetFees 运行时更新手续费模型（配置热加载时调用）。
func (c *Console) SetFees(f strategy.FeeModel) {
	c.mu.Lock()
	c.cfg.Fees = f
	c.mu.Unlock()
}

func (c *Console) fees() strategy.FeeModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Fees
}

// Fees 当前生效的手续费模型。
func (c *Console) Fees() strategy.FeeModel { return c.fees() }

// RefreshSymbol 重新加载当前交易对的规则与杠杆阶梯。任一失败都返回
// 错误但不清空已有状态：量化层会按 "规则未知" 降级直通。
func (c *Console) RefreshSymbol() error {
	symbol := c.sess.Symbol()
	rules, err := c.gw.FetchSymbolRules(symbol)
	if err != nil {
		c.log.LogError(err, map[string]interface{}{"symbol": symbol})
		return err
	}
	c.sess.SetRules(rules)
	brackets, err := c.gw.FetchLeverageBrackets(symbol)
	if err != nil {
		c.log.LogError(err, map[string]interface{}{"symbol": symbol})
		return err
	}
	c.sess.SetBrackets(brackets)
	return nil
}

// RefreshAccount 刷新可用余额与当前交易对的持仓。
func (c *Console) RefreshAccount() error {
	balance, err := c.gw.FetchAvailableBalance(c.cfg.Asset)
	if err != nil {
		return fmt.Errorf("refresh balance: %w", err)
	}
	c.sess.SetBalance(balance)
	c.metrics.AvailableBalance.Set(balance.InexactFloat64())

	// 全账户持仓进缓存，当前交易对的那一条灌进会话。
	positions, err := c.gw.FetchPositions("")
	if err != nil {
		return fmt.Errorf("refresh positions: %w", err)
	}
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		c.tracker.Set(p)
		seen[p.Symbol] = true
	}
	for _, p := range c.tracker.Open() {
		if !seen[p.Symbol] {
			c.tracker.Clear(p.Symbol)
		}
	}
	c.sess.ClearPosition()
	if p, ok := c.tracker.Get(c.sess.Symbol()); ok {
		c.sess.SetPosition(p)
	}
	return nil
}

// OpenPositions 缓存中的全部未平仓位（上次账户刷新的快照）。
func (c *Console) OpenPositions() []inventory.Position {
	return c.tracker.Open()
}

// Recalculate 同步重算展示状态；每次输入变化都调用一次。
func (c *Console) Recalculate(in strategy.Inputs) strategy.DisplayState {
	in.Fees = c.fees()
	view := c.sess.Snapshot()
	state := strategy.Recompute(view.Rules, in)
	c.metrics.Recomputes.Inc()
	if state.Valid {
		c.log.LogCalc("target_recomputed", map[string]interface{}{
			"symbol":       view.Symbol,
			"targetPrice":  state.TargetPrice.String(),
			"requiredMove": state.RequiredMoveText,
		})
	}
	return state
}

// MaxQuantity 可用余额在给定杠杆下可开的最大数量；名义先经阶梯表压缩。
func (c *Console) MaxQuantity(side order.PositionSide, leverage int) (decimal.Decimal, int, error) {
	view := c.sess.Snapshot()
	quote, ok := view.EntryQuote(side)
	if !ok {
		return decimal.Decimal{}, leverage, risk.ErrNoQuote
	}
	qty, effective, err := risk.MaxOrderQuantity(view.AvailableBalance, leverage, quote, view.Brackets, view.Rules)
	if err != nil {
		return decimal.Decimal{}, leverage, err
	}
	if effective != leverage {
		c.log.LogRisk("leverage_capped", map[string]interface{}{
			"symbol":    view.Symbol,
			"requested": leverage,
			"effective": effective,
		})
	}
	return qty, effective, nil
}

// PositionTarget 以当前持仓的进场价为基准重算离场目标价。持仓携带杠杆
// 时优先使用，否则用传入的杠杆。
func (c *Console) PositionTarget(leverage int, roiPercent decimal.Decimal) (decimal.Decimal, error) {
	view := c.sess.Snapshot()
	if !view.HasPosition {
		return decimal.Decimal{}, risk.ErrNoPosition
	}
	if view.Position.Leverage > 0 {
		leverage = view.Position.Leverage
	}
	side := view.Position.Side()
	target, err := strategy.QuantizedTargetPrice(view.Position.EntryPrice, leverage, roiPercent, side, c.fees(), view.Rules)
	if err != nil {
		return decimal.Decimal{}, err
	}
	c.log.LogCalc("position_target", map[string]interface{}{
		"symbol":     view.Symbol,
		"entryPrice": view.Position.EntryPrice.String(),
		"target":     target.String(),
		"leverage":   leverage,
	})
	return target, nil
}

// MaxQuantityAt 最大可开数量的百分比档（100 即满仓）。
func (c *Console) MaxQuantityAt(side order.PositionSide, leverage int, percent int64) (decimal.Decimal, int, error) {
	if percent <= 0 {
		return decimal.Decimal{}, leverage, risk.ErrInvalidInput
	}
	qty, effective, err := c.MaxQuantity(side, leverage)
	if err != nil {
		return decimal.Decimal{}, leverage, err
	}
	return risk.PortionOfMax(qty, percent, c.sess.Snapshot().Rules), effective, nil
}

// FailedOrder 单笔提交失败的明细。
type FailedOrder struct {
	Intent order.Intent
	Err    error
}

// SubmitReport 一次网格提交的结果汇总：请求 Requested 档、量化后实际
// 生成 Built 档、成功 Placed 笔。部分失败不是异常结束，剩余档位照常提交。
type SubmitReport struct {
	Requested int
	Built     int
	Placed    int
	Failed    []FailedOrder
}

// Summary 用户可见的一行结果。
func (r SubmitReport) Summary() string {
	return fmt.Sprintf("%d of %d orders placed", r.Placed, r.Built)
}

// SubmitEntryGrid 围绕基准价提交进场网格。
func (c *Console) SubmitEntryGrid(basis decimal.Decimal, side order.PositionSide, spec strategy.GridSpec) (SubmitReport, error) {
	return c.submitGrid(basis, side, order.RoleEntry, spec)
}

// SubmitExitGrid 围绕目标价提交离场（reduce-only）网格。
func (c *Console) SubmitExitGrid(target decimal.Decimal, side order.PositionSide, spec strategy.GridSpec) (SubmitReport, error) {
	return c.submitGrid(target, side, order.RoleExit, spec)
}

func (c *Console) submitGrid(center decimal.Decimal, side order.PositionSide, role order.Role, spec strategy.GridSpec) (SubmitReport, error) {
	view := c.sess.Snapshot()
	intents, err := strategy.BuildGrid(center, side, role, spec, view.Rules)
	if err != nil {
		return SubmitReport{Requested: spec.Count}, err
	}
	report := SubmitReport{Requested: spec.Count, Built: len(intents)}
	if dropped := report.Requested - report.Built; dropped > 0 {
		c.metrics.GridSlotsDropped.Add(float64(dropped))
	}
	for _, it := range intents {
		if _, err := c.place(it); err != nil {
			report.Failed = append(report.Failed, FailedOrder{Intent: it, Err: err})
			continue
		}
		report.Placed++
	}
	c.log.LogOrder("grid_submitted", map[string]interface{}{
		"symbol":    view.Symbol,
		"role":      role.String(),
		"side":      string(side),
		"requested": report.Requested,
		"built":     report.Built,
		"placed":    report.Placed,
	})
	return report, nil
}

// CloseAtPrice 以限价平掉部分或全部持仓。数量先对持仓校验再量化，
// 价格按持仓方向的离场取整。
func (c *Console) CloseAtPrice(price, quantity decimal.Decimal) (string, error) {
	view := c.sess.Snapshot()
	if err := risk.ValidateCloseQuantity(quantity, view.Position.Amount); err != nil {
		c.log.LogRisk("close_rejected", map[string]interface{}{
			"symbol":   view.Symbol,
			"quantity": quantity.String(),
			"position": view.Position.Amount.String(),
			"reason":   err.Error(),
		})
		return "", err
	}
	side := view.Position.Side()
	it := order.Intent{
		Symbol:      view.Symbol,
		Side:        order.SideFor(order.RoleExit, side),
		Type:        "LIMIT",
		TimeInForce: "GTC",
		Price:       order.QuantizePrice(price, view.Rules, order.ExitPriceMode(side)),
		Quantity:    order.QuantizeQuantity(quantity, view.Rules),
		ReduceOnly:  true,
	}
	if !it.Quantity.IsPositive() {
		return "", risk.ErrInvalidInput
	}
	return c.place(it)
}

// CancelAllOrders 撤销当前交易对的全部挂单。
func (c *Console) CancelAllOrders() error {
	return c.cancelAll(c.sess.Symbol())
}

func (c *Console) cancelAll(symbol string) error {
	if c.cfg.DryRun {
		c.log.LogOrder("cancel_all_dry_run", map[string]interface{}{"symbol": symbol})
		return nil
	}
	if err := c.gw.CancelAllOrders(symbol); err != nil {
		c.log.LogError(err, map[string]interface{}{"symbol": symbol, "stage": "cancel_all"})
		return err
	}
	c.log.LogOrder("cancel_all", map[string]interface{}{"symbol": symbol})
	return nil
}

// EmergencyClose 以市价 reduce-only 单平掉所有未平仓位，返回成功笔数。
// 单笔失败不会中断其余仓位的平仓；平仓后按交易对逐个撤销剩余挂单。
func (c *Console) EmergencyClose() (int, error) {
	positions, err := c.gw.FetchPositions("")
	if err != nil {
		return 0, fmt.Errorf("fetch positions: %w", err)
	}
	closed := 0
	swept := map[string]bool{c.sess.Symbol(): true}
	for _, p := range positions {
		if !p.IsOpen() {
			continue
		}
		swept[p.Symbol] = true
		it := order.Intent{
			Symbol:     p.Symbol,
			Side:       order.SideFor(order.RoleExit, p.Side()),
			Type:       "MARKET",
			Quantity:   p.AbsAmount(),
			ReduceOnly: true,
		}
		if _, err := c.place(it); err != nil {
			c.log.LogError(err, map[string]interface{}{"symbol": p.Symbol, "stage": "emergency_close"})
			continue
		}
		closed++
	}
	// 撤单失败已在 cancelAll 内记录，不影响其余交易对
	for symbol := range swept {
		_ = c.cancelAll(symbol)
	}
	c.log.LogRisk("emergency_close", map[string]interface{}{"closed": closed, "open": len(positions)})
	return closed, nil
}

func (c *Console) place(it order.Intent) (string, error) {
	fields := map[string]interface{}{
		"symbol":     it.Symbol,
		"side":       string(it.Side),
		"type":       it.Type,
		"qty":        it.Quantity.String(),
		"reduceOnly": it.ReduceOnly,
	}
	if it.Type != "MARKET" {
		fields["price"] = it.Price.String()
	}
	if c.cfg.DryRun {
		c.log.LogOrder("order_place_dry_run", fields)
		c.book.Append(order.Record{Intent: it, OrderID: "dry-run"})
		c.metrics.OrdersSubmitted.Inc()
		return "dry-run", nil
	}
	id, err := c.gw.PlaceOrder(it)
	c.book.Append(order.Record{Intent: it, OrderID: id, Err: err})
	if err != nil {
		c.metrics.OrdersFailed.Inc()
		fields["error"] = err.Error()
		c.log.LogOrder("order_place_failed", fields)
		return "", err
	}
	c.metrics.OrdersSubmitted.Inc()
	fields["orderId"] = id
	c.log.LogOrder("order_place", fields)
	return id, nil
}
