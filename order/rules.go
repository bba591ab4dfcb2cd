package order

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SymbolRules 描述交易对的报价约束（来自 exchangeInfo 过滤器）。
// TickSize/StepSize 为零表示元数据尚未加载：此时量化原样返回，
// 展示精度回落到 PricePrecision/QuantityPrecision。
// 换币种时整体替换，期间不做原地修改。
type SymbolRules struct {
	Symbol            string
	TickSize          decimal.Decimal
	StepSize          decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
}

// HasTick 报价步长是否已知。
func (r SymbolRules) HasTick() bool { return r.TickSize.IsPositive() }

// HasStep 数量步长是否已知。
func (r SymbolRules) HasStep() bool { return r.StepSize.IsPositive() }

// PriceDecimals 展示用价格小数位：tick 已知时取其归一化后的小数位数。
// 仅影响展示，下单载荷使用量化后的十进制字符串本身。
func (r SymbolRules) PriceDecimals() int32 {
	if r.HasTick() {
		return stepDecimals(r.TickSize)
	}
	return r.PricePrecision
}

// QuantityDecimals 展示用数量小数位。
func (r SymbolRules) QuantityDecimals() int32 {
	if r.HasStep() {
		return stepDecimals(r.StepSize)
	}
	return r.QuantityPrecision
}

// stepDecimals 步长归一化后的小数位（"0.100" -> 1）。
func stepDecimals(step decimal.Decimal) int32 {
	s := step.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}
