package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"futures-console-go/order"
	"futures-console-go/strategy"
)

func main() {
	entry := flag.String("entry", "", "进场价格")
	leverage := flag.Int("leverage", 10, "杠杆倍数")
	roi := flag.String("roi", "20", "目标回报率（%）")
	sideFlag := flag.String("side", "LONG", "方向 LONG/SHORT")
	fee := flag.String("fee", "0.0004", "单边手续费率")
	tick := flag.String("tick", "", "价格步长（可选，给出则按规则取整）")
	flag.Parse()

	if *entry == "" {
		log.Fatalf("必须指定 -entry")
	}
	entryPrice, err := decimal.NewFromString(*entry)
	if err != nil {
		log.Fatalf("进场价格无效: %v", err)
	}
	roiPct, err := decimal.NewFromString(*roi)
	if err != nil {
		log.Fatalf("回报率无效: %v", err)
	}
	feeRate, err := decimal.NewFromString(*fee)
	if err != nil {
		log.Fatalf("手续费率无效: %v", err)
	}
	side := order.PositionSide(*sideFlag)
	if side != order.Long && side != order.Short {
		log.Fatalf("方向无效: %s", *sideFlag)
	}

	fees := strategy.TakerFees(feeRate)
	var rules order.SymbolRules
	if *tick != "" {
		t, err := decimal.NewFromString(*tick)
		if err != nil {
			log.Fatalf("价格步长无效: %v", err)
		}
		rules.TickSize = t
	}

	target, err := strategy.QuantizedTargetPrice(entryPrice, *leverage, roiPct, side, fees, rules)
	if err != nil {
		log.Fatalf("计算目标价失败: %v", err)
	}
	move, err := strategy.RequiredMovePercent(*leverage, roiPct, side, fees)
	if err != nil {
		log.Fatalf("计算所需波动失败: %v", err)
	}

	fmt.Printf("方向: %s  杠杆: %dx  目标ROI: %s%%\n", side, *leverage, roiPct.String())
	fmt.Printf("目标价格: %s\n", target.String())
	fmt.Printf("所需价格波动: %s%%\n", move.StringFixed(4))
}
