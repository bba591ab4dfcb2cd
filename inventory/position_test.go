package inventory

import (
	"testing"

	"github.com/shopspring/decimal"

	"futures-console-go/order"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPositionSide(t *testing.T) {
	long := Position{Symbol: "BTCUSDT", Amount: d("0.5")}
	if !long.IsOpen() || long.Side() != order.Long {
		t.Fatalf("long position misread: %s", long.Side())
	}
	short := Position{Symbol: "BTCUSDT", Amount: d("-0.5")}
	if short.Side() != order.Short || !short.AbsAmount().Equal(d("0.5")) {
		t.Fatalf("short position misread: %s %s", short.Side(), short.AbsAmount())
	}
	flat := Position{Symbol: "BTCUSDT"}
	if flat.IsOpen() {
		t.Fatalf("zero amount should not be open")
	}
}

func TestNetPnL(t *testing.T) {
	p := Position{
		Amount:        d("1"),
		EntryPrice:    d("30000"),
		MarkPrice:     d("30624.3"),
		UnrealizedPnL: d("624.3"),
	}
	// 624.3 - 30000×0.0004 - 30624.3×0.0004 = 600.05028
	got := p.NetPnL(d("0.0004"), d("0.0004"))
	if !got.Equal(d("600.05028")) {
		t.Fatalf("net pnl %s", got)
	}
	if !got.LessThan(p.UnrealizedPnL) {
		t.Fatalf("fees should reduce pnl")
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Set(Position{Symbol: "BTCUSDT", Amount: d("0.5")})
	tr.Set(Position{Symbol: "ETHUSDT", Amount: d("-2")})

	if p, ok := tr.Get("BTCUSDT"); !ok || !p.Amount.Equal(d("0.5")) {
		t.Fatalf("get failed: %+v %v", p, ok)
	}
	if len(tr.Open()) != 2 {
		t.Fatalf("open count %d", len(tr.Open()))
	}

	// 数量归零即清除
	tr.Set(Position{Symbol: "BTCUSDT", Amount: d("0")})
	if _, ok := tr.Get("BTCUSDT"); ok {
		t.Fatalf("zero amount should clear the entry")
	}

	tr.Clear("ETHUSDT")
	if len(tr.Open()) != 0 {
		t.Fatalf("expected empty tracker")
	}
}
