package strategy

import (
	"github.com/shopspring/decimal"

	"futures-console-go/order"
)

// GridSpec 网格拆单参数。
type GridSpec struct {
	TotalQuantity decimal.Decimal
	Count         int   // 分割数，>= 1；为 1 时退化为中心价上的单笔订单
	TickInterval  int64 // 相邻档位之间的 tick 数；<= 0 时全部档位堆叠在中心价
}

// BuildGrid 把总数量均分为 Count 笔限价单，围绕 center 以固定 tick 间隔
// 铺开。每档价格按 (方向, 角色) 取整；数量一律向下截断到 step，量化后为
// 零的档位被静默丢弃（而不是报错），调用方通过返回的长度得知实际生成数。
func BuildGrid(center decimal.Decimal, side order.PositionSide, role order.Role, spec GridSpec, rules order.SymbolRules) ([]order.Intent, error) {
	if spec.Count < 1 || !spec.TotalQuantity.IsPositive() || !center.IsPositive() {
		return nil, ErrInvalidInput
	}
	count := decimal.NewFromInt(int64(spec.Count))
	interval := decimal.NewFromInt(spec.TickInterval).Mul(rules.TickSize)
	// 以中心对称铺开；偶数分割时中心落在两档之间，不做特殊处理。
	startOffset := count.Sub(one).Div(two).Neg()

	slotQty := order.QuantizeQuantity(spec.TotalQuantity.Div(count), rules)
	if !slotQty.IsPositive() {
		// 总量相对分割数过小，所有档位都量化为零
		return []order.Intent{}, nil
	}

	mode := order.PriceModeFor(side, role)
	intents := make([]order.Intent, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		offset := startOffset.Add(decimal.NewFromInt(int64(i))).Mul(interval)
		price := order.QuantizePrice(center.Add(offset), rules, mode)
		intents = append(intents, order.Intent{
			Symbol:      rules.Symbol,
			Side:        order.SideFor(role, side),
			Type:        "LIMIT",
			TimeInForce: "GTC",
			Price:       price,
			Quantity:    slotQty,
			ReduceOnly:  role == order.RoleExit,
		})
	}
	return intents, nil
}
