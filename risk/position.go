package risk

import (
	"github.com/shopspring/decimal"

	"futures-console-go/order"
)

var hundred = decimal.NewFromInt(100)

// MaxOrderQuantity 可用余额在给定杠杆下可开的最大数量。期望名义先经
// 阶梯表压缩，数量向下截断到 step，宁可少报也不超卖。
// 返回压缩后的有效杠杆。
func MaxOrderQuantity(balance decimal.Decimal, leverage int, price decimal.Decimal, table BracketTable, rules order.SymbolRules) (decimal.Decimal, int, error) {
	if leverage <= 0 || balance.Sign() < 0 {
		return decimal.Decimal{}, leverage, ErrInvalidInput
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, leverage, ErrNoQuote
	}
	notional := balance.Mul(decimal.NewFromInt(int64(leverage)))
	notional, leverage = table.CapNotional(notional, leverage, balance)
	qty := order.QuantizeQuantity(notional.Div(price), rules)
	return qty, leverage, nil
}

// PortionOfMax 最大数量的百分比档（如 25/50/100）。结果同样向下截断，
// 保持 "数量从不向上取整" 的不变量。
func PortionOfMax(maxQty decimal.Decimal, percent int64, rules order.SymbolRules) decimal.Decimal {
	target := maxQty.Mul(decimal.NewFromInt(percent)).Div(hundred)
	return order.QuantizeQuantity(target, rules)
}

// ValidateCloseQuantity 平仓数量不得超过当前持仓的绝对值；必须在构建
// 任何离场订单之前校验。
func ValidateCloseQuantity(requested, positionAmount decimal.Decimal) error {
	if !requested.IsPositive() {
		return ErrInvalidInput
	}
	if requested.Cmp(positionAmount.Abs()) > 0 {
		return ErrQuantityExceedsPosition
	}
	return nil
}
