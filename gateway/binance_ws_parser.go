package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"futures-console-go/market"
)

// depth5Message 对应 <symbol>@depth5@100ms 推送。现货端点使用
// bids/asks 键，合约端点使用 b/a，两种都接受。
type depth5Message struct {
	Symbol string      `json:"s"`
	Bids   [][2]string `json:"bids"`
	Asks   [][2]string `json:"asks"`
	B      [][2]string `json:"b"`
	A      [][2]string `json:"a"`
}

// ParseDepth5 解析 depth5 推送为盘口快照。数量为零的档位被丢弃，
// 每侧最多保留五档。
func ParseDepth5(raw []byte, ts time.Time) (market.Depth, error) {
	var msg depth5Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return market.Depth{}, fmt.Errorf("parse depth5: %w", err)
	}
	bids := msg.Bids
	if len(bids) == 0 {
		bids = msg.B
	}
	asks := msg.Asks
	if len(asks) == 0 {
		asks = msg.A
	}
	d := market.Depth{
		Symbol: msg.Symbol,
		Bids:   parseLevels(bids),
		Asks:   parseLevels(asks),
		Ts:     ts,
	}
	if len(d.Bids) == 0 && len(d.Asks) == 0 {
		return market.Depth{}, fmt.Errorf("depth5 message without levels")
	}
	return d, nil
}

func parseLevels(raw [][2]string) []market.Level {
	levels := make([]market.Level, 0, 5)
	for _, pair := range raw {
		if len(levels) == 5 {
			break
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil || !qty.IsPositive() {
			continue
		}
		levels = append(levels, market.Level{Price: price, Quantity: qty})
	}
	return levels
}
