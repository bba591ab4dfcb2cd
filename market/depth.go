package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Level 盘口的一档价格/数量。
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Depth 盘口快照：买卖各至多五档，Bids 价格降序、Asks 升序。
type Depth struct {
	Symbol string
	Bids   []Level
	Asks   []Level
	Ts     time.Time
}

// BestBid 最优买价；无买盘时第二个返回值为 false。
func (d Depth) BestBid() (decimal.Decimal, bool) {
	if len(d.Bids) == 0 {
		return decimal.Decimal{}, false
	}
	return d.Bids[0].Price, true
}

// BestAsk 最优卖价。
func (d Depth) BestAsk() (decimal.Decimal, bool) {
	if len(d.Asks) == 0 {
		return decimal.Decimal{}, false
	}
	return d.Asks[0].Price, true
}

// Mid 中间价；任一侧缺失时返回 false。
func (d Depth) Mid() (decimal.Decimal, bool) {
	bid, okB := d.BestBid()
	ask, okA := d.BestAsk()
	if !okB || !okA {
		return decimal.Decimal{}, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Latest 单槽 "最新值" 缓冲：网络监听协程只管覆盖写入，消费方按需读
// 最近一帧，从不阻塞等待更新的数据。
type Latest struct {
	mu sync.RWMutex
	d  Depth
	ok bool
}

func (l *Latest) Store(d Depth) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.d = d
	l.ok = true
}

func (l *Latest) Load() (Depth, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.d, l.ok
}

// LastUpdate 最近一帧的时间戳；从未写入时为零值。
func (l *Latest) LastUpdate() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.d.Ts
}
