package strategy

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"futures-console-go/order"
)

// Inputs 来自界面的原始文本输入；每次编辑都同步触发一次重算。
type Inputs struct {
	EntryPrice string
	Leverage   string
	ROIPercent string
	Side       order.PositionSide // 空值表示尚未选择方向
	Fees       FeeModel
}

// DisplayState 重算结果。任何非法或未就绪的输入都以 N/A 呈现，
// 计算永远不会把校验失败向上抛成崩溃。
type DisplayState struct {
	Valid            bool
	Reason           string // Valid=false 时的提示
	TargetPrice      decimal.Decimal
	TargetPriceText  string
	RequiredMove     decimal.Decimal
	RequiredMoveText string
}

const textNA = "N/A"

func invalidState(reason string) DisplayState {
	return DisplayState{
		Reason:           reason,
		TargetPriceText:  textNA,
		RequiredMoveText: textNA,
	}
}

// Recompute 纯函数：由当前规则与输入得到展示状态。宿主界面在每次输入
// 变化时同步调用；无阻塞 I/O，必须在同一个事件周期内完成。
func Recompute(rules order.SymbolRules, in Inputs) DisplayState {
	if in.Side != order.Long && in.Side != order.Short {
		return invalidState("position side not selected")
	}
	entry, err := decimal.NewFromString(strings.TrimSpace(in.EntryPrice))
	if err != nil {
		return invalidState("entry price is not a number")
	}
	lev, err := strconv.Atoi(strings.TrimSpace(in.Leverage))
	if err != nil {
		return invalidState("leverage is not a number")
	}
	roi, err := decimal.NewFromString(strings.TrimSpace(in.ROIPercent))
	if err != nil {
		return invalidState("target roi is not a number")
	}
	if !entry.IsPositive() || lev <= 0 || !roi.IsPositive() {
		return invalidState("inputs must be positive")
	}
	target, err := QuantizedTargetPrice(entry, lev, roi, in.Side, in.Fees, rules)
	if err != nil {
		return invalidState(err.Error())
	}
	move, err := RequiredMovePercent(lev, roi, in.Side, in.Fees)
	if err != nil {
		return invalidState(err.Error())
	}
	sign := ""
	if move.Sign() > 0 {
		sign = "+"
	}
	return DisplayState{
		Valid:            true,
		TargetPrice:      target,
		TargetPriceText:  target.StringFixed(rules.PriceDecimals()),
		RequiredMove:     move,
		RequiredMoveText: sign + move.StringFixed(2) + "%",
	}
}

// NormalizeBasisPrice 基准价输入框编辑完成后的归一化：HALF_UP 对齐
// tick。解析失败时原样返回，交给下一次重算去拒绝。
func NormalizeBasisPrice(text string, rules order.SymbolRules) string {
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return text
	}
	return order.QuantizePrice(v, rules, order.BasisPriceMode()).String()
}
