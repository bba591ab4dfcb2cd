package inventory

import (
	"sync"

	"github.com/shopspring/decimal"

	"futures-console-go/order"
)

// Position 交易所返回的持仓视图。Amount 正为多、负为空。
type Position struct {
	Symbol           string
	Amount           decimal.Decimal
	EntryPrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	LiquidationPrice decimal.Decimal
	Leverage         int
	UnrealizedPnL    decimal.Decimal
}

// IsOpen 是否存在持仓。
func (p Position) IsOpen() bool { return !p.Amount.IsZero() }

// Side 持仓方向；无持仓时约定返回 Long。
func (p Position) Side() order.PositionSide {
	if p.Amount.Sign() < 0 {
		return order.Short
	}
	return order.Long
}

// AbsAmount 持仓数量的绝对值。
func (p Position) AbsAmount() decimal.Decimal { return p.Amount.Abs() }

// NetPnL 扣除进出场手续费估计后的净盈亏：
// 进场费按开仓名义、离场费按当前标记名义计提。
func (p Position) NetPnL(entryFee, exitFee decimal.Decimal) decimal.Decimal {
	absAmt := p.Amount.Abs()
	entryCost := p.EntryPrice.Mul(absAmt).Mul(entryFee)
	exitCost := p.MarkPrice.Mul(absAmt).Mul(exitFee)
	return p.UnrealizedPnL.Sub(entryCost).Sub(exitCost)
}

// Tracker 持仓的最新值缓存：账户轮询写入，引擎读取。
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]Position
}

func NewTracker() *Tracker {
	return &Tracker{positions: make(map[string]Position)}
}

// Set 覆盖某个交易对的持仓；数量为零视为清除。
func (t *Tracker) Set(p Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Amount.IsZero() {
		delete(t.positions, p.Symbol)
		return
	}
	t.positions[p.Symbol] = p
}

func (t *Tracker) Clear(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.positions, symbol)
}

func (t *Tracker) Get(symbol string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[symbol]
	return p, ok
}

// Open 返回所有未平仓位（拷贝）。
func (t *Tracker) Open() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		res = append(res, p)
	}
	return res
}
