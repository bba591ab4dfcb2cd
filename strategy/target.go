package strategy

import (
	"errors"

	"github.com/shopspring/decimal"

	"futures-console-go/order"
)

// ErrInvalidInput 非正的价格/杠杆等非法输入。调用方应跳过本次计算并
// 保留上一次有效结果，而不是中断。
var ErrInvalidInput = errors.New("invalid input")

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// FeeModel 进/出场手续费率（小数，如 0.0004）。
type FeeModel struct {
	Entry decimal.Decimal
	Exit  decimal.Decimal
}

// MakerFees 进出场均按 maker 费率。
func MakerFees(rate decimal.Decimal) FeeModel {
	return FeeModel{Entry: rate, Exit: rate}
}

// TakerFees 进出场均按 taker 费率。
func TakerFees(rate decimal.Decimal) FeeModel {
	return FeeModel{Entry: rate, Exit: rate}
}

// BlendedFees taker 进场 + maker 离场的混合费率。
func BlendedFees(taker, maker decimal.Decimal) FeeModel {
	return FeeModel{Entry: taker, Exit: maker}
}

// TargetPrice 计算达到目标 ROI（以保证金计，非名义）所需的离场价，未量化。
//
//	Long:  entry * (1 + roi/lev + feeEntry) / (1 - feeExit)
//	Short: entry * (1 - roi/lev - feeEntry) / (1 + feeExit)
func TargetPrice(entry decimal.Decimal, leverage int, roiPercent decimal.Decimal, side order.PositionSide, fees FeeModel) (decimal.Decimal, error) {
	if leverage <= 0 || !entry.IsPositive() {
		return decimal.Decimal{}, ErrInvalidInput
	}
	roi := roiPercent.Div(hundred).Div(decimal.NewFromInt(int64(leverage)))
	if side == order.Short {
		return entry.Mul(one.Sub(roi).Sub(fees.Entry)).Div(one.Add(fees.Exit)), nil
	}
	return entry.Mul(one.Add(roi).Add(fees.Entry)).Div(one.Sub(fees.Exit)), nil
}

// QuantizedTargetPrice 量化后的目标价：多头向上、空头向下取整。
// 未量化的目标价不允许越过下单边界。
func QuantizedTargetPrice(entry decimal.Decimal, leverage int, roiPercent decimal.Decimal, side order.PositionSide, fees FeeModel, rules order.SymbolRules) (decimal.Decimal, error) {
	raw, err := TargetPrice(entry, leverage, roiPercent, side, fees)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return order.QuantizePrice(raw, rules, order.TargetPriceMode(side)), nil
}

// RequiredMovePercent 达成目标所需的净价格波动百分比：
// roi/lev + 进场费率 + 离场费率，按方向取符号（多头为正）。
func RequiredMovePercent(leverage int, roiPercent decimal.Decimal, side order.PositionSide, fees FeeModel) (decimal.Decimal, error) {
	if leverage <= 0 {
		return decimal.Decimal{}, ErrInvalidInput
	}
	pct := roiPercent.Div(decimal.NewFromInt(int64(leverage))).
		Add(fees.Entry.Add(fees.Exit).Mul(hundred))
	if side == order.Short {
		return pct.Neg(), nil
	}
	return pct, nil
}
