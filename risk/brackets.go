package risk

import "github.com/shopspring/decimal"

// BracketTier 名义区间 [NotionalFloor, NotionalCap) 内允许的最大杠杆。
type BracketTier struct {
	NotionalFloor decimal.Decimal
	NotionalCap   decimal.Decimal
	MaxLeverage   int
}

// Contains 半开区间判定。
func (t BracketTier) Contains(notional decimal.Decimal) bool {
	return notional.Cmp(t.NotionalFloor) >= 0 && notional.Cmp(t.NotionalCap) < 0
}

// BracketTable 按名义下限升序排列的阶梯表；首层的 MaxLeverage 即该
// 交易对的绝对杠杆上限。换币种时整表替换，从不原地修改。
type BracketTable struct {
	tiers []BracketTier
}

// NewBracketTable 拷贝 tiers 构造不可变表。
func NewBracketTable(tiers []BracketTier) BracketTable {
	cp := make([]BracketTier, len(tiers))
	copy(cp, tiers)
	return BracketTable{tiers: cp}
}

func (t BracketTable) Empty() bool { return len(t.tiers) == 0 }

// Tiers 返回阶梯的拷贝。
func (t BracketTable) Tiers() []BracketTier {
	cp := make([]BracketTier, len(t.tiers))
	copy(cp, t.tiers)
	return cp
}

// MaxLeverage 交易对的绝对杠杆上限；空表返回 0。
func (t BracketTable) MaxLeverage() int {
	if len(t.tiers) == 0 {
		return 0
	}
	return t.tiers[0].MaxLeverage
}

// TierFor 查找名义所在的阶梯。
func (t BracketTable) TierFor(notional decimal.Decimal) (BracketTier, bool) {
	for _, tier := range t.tiers {
		if tier.Contains(notional) {
			return tier, true
		}
	}
	return BracketTier{}, false
}

// CapNotional 依据阶梯表压缩期望名义。所选杠杆超出所在层的上限时，
// 请求在该杠杆下不可行：名义重算为 可用余额 × 层内最大杠杆，杠杆降为
// 层上限。必须先于按余额推导最大下单数量执行：超出阶梯上限的请求会
// 被交易所直接拒绝，而不是静默接受。
func (t BracketTable) CapNotional(desired decimal.Decimal, selectedLeverage int, availableBalance decimal.Decimal) (decimal.Decimal, int) {
	tier, ok := t.TierFor(desired)
	if !ok {
		return desired, selectedLeverage
	}
	if selectedLeverage <= tier.MaxLeverage {
		return desired, selectedLeverage
	}
	return availableBalance.Mul(decimal.NewFromInt(int64(tier.MaxLeverage))), tier.MaxLeverage
}
