package order

import "github.com/shopspring/decimal"

// PositionSide 持仓方向。
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Role 订单在仓位生命周期中的角色。
type Role int

const (
	RoleEntry Role = iota
	RoleExit
)

func (r Role) String() string {
	if r == RoleExit {
		return "EXIT"
	}
	return "ENTRY"
}

// Side 委托方向（交易所语义）。
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// SideFor 由角色与持仓方向导出委托方向：进多=买、平多=卖，空头相反。
func SideFor(role Role, pos PositionSide) Side {
	long := pos == Long
	if role == RoleExit {
		long = !long
	}
	if long {
		return Buy
	}
	return Sell
}

// Intent 一笔待提交订单的全部参数；价格与数量均已量化。
type Intent struct {
	Symbol      string
	Side        Side
	Type        string // LIMIT / MARKET
	TimeInForce string // LIMIT 单默认 GTC
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	ReduceOnly  bool
}

// Params 生成交易所下单参数。数字字段一律是量化后的归一化十进制
// 字符串，绝不经过浮点格式化，交易所会校验这些字段的精度。
func (it Intent) Params() map[string]string {
	typ := it.Type
	if typ == "" {
		typ = "LIMIT"
	}
	p := map[string]string{
		"symbol":   it.Symbol,
		"side":     string(it.Side),
		"type":     typ,
		"quantity": it.Quantity.String(),
	}
	if typ == "LIMIT" {
		tif := it.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		p["timeInForce"] = tif
		p["price"] = it.Price.String()
	}
	if it.ReduceOnly {
		p["reduceOnly"] = "true"
	}
	return p
}
