package session

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"futures-console-go/inventory"
	"futures-console-go/market"
	"futures-console-go/order"
	"futures-console-go/risk"
)

// EventSink 会话状态变化的旁路通知（日志/指标用）。
type EventSink func(event string, fields map[string]interface{})

// Session 持有当前选中交易对的全部会话状态：交易规则、杠杆阶梯、余额、
// 持仓与最新盘口。写入来自网关刷新与轮询，读取方通过 Snapshot 拿到
// 不可变视图；纯计算层只依赖视图，自身不持有任何状态。
type Session struct {
	mu          sync.RWMutex
	symbol      string
	rules       order.SymbolRules
	brackets    risk.BracketTable
	balance     decimal.Decimal
	position    inventory.Position
	hasPosition bool
	book        market.Depth

	sink EventSink
}

func New(symbol string, sink EventSink) *Session {
	return &Session{symbol: symbol, sink: sink}
}

func (s *Session) Symbol() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbol
}

// SwitchSymbol 切换交易对：规则、阶梯表与盘口全部清空，等待重新加载。
// 余额属于账户层面，保留。
func (s *Session) SwitchSymbol(symbol string) {
	s.mu.Lock()
	s.symbol = symbol
	s.rules = order.SymbolRules{}
	s.brackets = risk.BracketTable{}
	s.position = inventory.Position{}
	s.hasPosition = false
	s.book = market.Depth{}
	s.mu.Unlock()
	s.emit("symbol_switched", map[string]interface{}{"symbol": symbol})
}

func (s *Session) SetRules(r order.SymbolRules) {
	s.mu.Lock()
	s.rules = r
	s.mu.Unlock()
	s.emit("rules_loaded", map[string]interface{}{
		"symbol":   r.Symbol,
		"tickSize": r.TickSize.String(),
		"stepSize": r.StepSize.String(),
	})
}

func (s *Session) SetBrackets(t risk.BracketTable) {
	s.mu.Lock()
	s.brackets = t
	s.mu.Unlock()
	s.emit("brackets_loaded", map[string]interface{}{"maxLeverage": t.MaxLeverage()})
}

func (s *Session) SetBalance(b decimal.Decimal) {
	s.mu.Lock()
	s.balance = b
	s.mu.Unlock()
}

func (s *Session) SetPosition(p inventory.Position) {
	s.mu.Lock()
	s.position = p
	s.hasPosition = p.IsOpen()
	s.mu.Unlock()
}

func (s *Session) ClearPosition() {
	s.mu.Lock()
	s.position = inventory.Position{}
	s.hasPosition = false
	s.mu.Unlock()
}

// SetDepth 覆盖最新盘口帧；来自 WS 监听协程。
func (s *Session) SetDepth(d market.Depth) {
	s.mu.Lock()
	s.book = d
	s.mu.Unlock()
}

// Snapshot 当前状态的只读快照。
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Symbol:           s.symbol,
		Rules:            s.rules,
		Brackets:         s.brackets,
		AvailableBalance: s.balance,
		Position:         s.position,
		HasPosition:      s.hasPosition,
		Book:             s.book,
	}
}

func (s *Session) emit(event string, fields map[string]interface{}) {
	if s.sink != nil {
		s.sink(event, fields)
	}
}

// View 会话状态的不可变快照，供纯计算函数使用。
type View struct {
	Symbol           string
	Rules            order.SymbolRules
	Brackets         risk.BracketTable
	AvailableBalance decimal.Decimal
	Position         inventory.Position
	HasPosition      bool
	Book             market.Depth
}

// EntryQuote 进场参考价：多头取最优卖价、空头取最优买价。
// 盘口尚未就绪时第二个返回值为 false。
func (v View) EntryQuote(side order.PositionSide) (decimal.Decimal, bool) {
	if side == order.Short {
		return v.Book.BestBid()
	}
	return v.Book.BestAsk()
}

// BookAge 最新盘口帧距 now 的时长；从未收到时返回 false。
func (v View) BookAge(now time.Time) (time.Duration, bool) {
	if v.Book.Ts.IsZero() {
		return 0, false
	}
	return now.Sub(v.Book.Ts), true
}
