package order

import "github.com/shopspring/decimal"

// RoundMode 控制对齐到 tick/step 网格时的取整方向。
type RoundMode int

const (
	RoundDown    RoundMode = iota // 向零截断
	RoundCeiling                  // 向上一格
	RoundFloor                    // 向负无穷
	RoundHalfUp                   // 最近一格，平半远离零
)

func (m RoundMode) String() string {
	switch m {
	case RoundDown:
		return "DOWN"
	case RoundCeiling:
		return "CEILING"
	case RoundFloor:
		return "FLOOR"
	case RoundHalfUp:
		return "HALF_UP"
	default:
		return "UNKNOWN"
	}
}

// QuantizePrice 将价格对齐到 tick 网格；tick 未知时原样返回。
func QuantizePrice(price decimal.Decimal, rules SymbolRules, mode RoundMode) decimal.Decimal {
	return snapToStep(price, rules.TickSize, mode)
}

// QuantizeQuantity 将数量对齐到 step 网格。数量只允许向下截断：
// 向上取整可能请求超出实际可用或本意的数量，这里在 API 层面封死。
func QuantizeQuantity(qty decimal.Decimal, rules SymbolRules) decimal.Decimal {
	return snapToStep(qty, rules.StepSize, RoundDown)
}

// snapToStep 以精确的 QuoRem 对齐到步长网格，不经过浮点除法。
func snapToStep(v, step decimal.Decimal, mode RoundMode) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	q, r := v.QuoRem(step, 0)
	if r.IsZero() {
		return v
	}
	down := q.Mul(step)
	switch mode {
	case RoundCeiling:
		if v.Sign() > 0 {
			return down.Add(step)
		}
		return down
	case RoundFloor:
		if v.Sign() < 0 {
			return down.Sub(step)
		}
		return down
	case RoundHalfUp:
		if r.Abs().Add(r.Abs()).Cmp(step) >= 0 {
			if v.Sign() < 0 {
				return down.Sub(step)
			}
			return down.Add(step)
		}
		return down
	default:
		return down
	}
}

// EntryPriceMode 进场限价单的取整方向：多头向下、空头向上，
// 挂单价始终偏向更容易以 maker 身份成交的一侧。
func EntryPriceMode(side PositionSide) RoundMode {
	if side == Short {
		return RoundCeiling
	}
	return RoundDown
}

// ExitPriceMode 离场限价单：多头卖得更高、空头买得更低。
func ExitPriceMode(side PositionSide) RoundMode {
	if side == Short {
		return RoundFloor
	}
	return RoundCeiling
}

// TargetPriceMode 目标价即将作为离场单提交，取整方向与离场一致。
func TargetPriceMode(side PositionSide) RoundMode {
	return ExitPriceMode(side)
}

// BasisPriceMode 用户手填基准价的归一化，不区分方向。
func BasisPriceMode() RoundMode {
	return RoundHalfUp
}

// PriceModeFor 按 (方向, 角色) 选取整方向。历史版本在离场取整上
// 存在分歧，这里固定为按方向取 Ceiling/Floor。
func PriceModeFor(side PositionSide, role Role) RoundMode {
	if role == RoleExit {
		return ExitPriceMode(side)
	}
	return EntryPriceMode(side)
}
