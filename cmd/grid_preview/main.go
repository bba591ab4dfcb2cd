package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"futures-console-go/order"
	"futures-console-go/strategy"
)

// 在不触网的情况下预览网格档位，便于下单前核对价格与数量取整。
func main() {
	symbol := flag.String("symbol", "BTCUSDT", "合约代码")
	center := flag.String("center", "", "网格中心价")
	sideFlag := flag.String("side", "LONG", "方向 LONG/SHORT")
	roleFlag := flag.String("role", "entry", "entry 进场 / exit 离场")
	total := flag.String("qty", "", "总数量")
	count := flag.Int("count", 3, "档位数量")
	interval := flag.Int64("interval", 1, "相邻档位间隔（tick 数）")
	tick := flag.String("tick", "0.1", "价格步长")
	step := flag.String("step", "0.001", "数量步长")
	flag.Parse()

	if *center == "" || *total == "" {
		log.Fatalf("必须指定 -center 和 -qty")
	}
	centerPrice := mustDecimal("中心价", *center)
	side := order.PositionSide(*sideFlag)
	if side != order.Long && side != order.Short {
		log.Fatalf("方向无效: %s", *sideFlag)
	}
	role := order.RoleEntry
	if *roleFlag == "exit" {
		role = order.RoleExit
	}

	rules := order.SymbolRules{
		Symbol:   *symbol,
		TickSize: mustDecimal("价格步长", *tick),
		StepSize: mustDecimal("数量步长", *step),
	}
	spec := strategy.GridSpec{
		TotalQuantity: mustDecimal("总数量", *total),
		Count:         *count,
		TickInterval:  *interval,
	}

	intents, err := strategy.BuildGrid(centerPrice, side, role, spec, rules)
	if err != nil {
		log.Fatalf("构建网格失败: %v", err)
	}
	if len(intents) == 0 {
		fmt.Println("量化后单档数量为零，无可提交档位")
		return
	}
	fmt.Printf("[%s] %s %s 网格，共 %d 档:\n", *symbol, side, role, len(intents))
	for i, it := range intents {
		fmt.Printf("  #%d %s %s @ %s x %s reduceOnly=%v\n",
			i+1, it.Side, it.Type, it.Price.String(), it.Quantity.String(), it.ReduceOnly)
	}
}

func mustDecimal(name, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("%s无效: %v", name, err)
	}
	return d
}
