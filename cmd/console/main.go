package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"futures-console-go/config"
	"futures-console-go/gateway"
	"futures-console-go/infrastructure/logger"
	"futures-console-go/internal/engine"
	"futures-console-go/internal/session"
	"futures-console-go/market"
	"futures-console-go/metrics"
	"futures-console-go/order"
	"futures-console-go/strategy"
)

// 手动交易控制台：行情推送 + 账户轮询 + 逐行命令交互。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbolFlag := flag.String("symbol", "", "合约代码（覆盖配置）")
	dryRun := flag.Bool("dry-run", false, "仅日志输出，不真正下单")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *symbolFlag != "" {
		cfg.Console.Symbol = strings.ToUpper(*symbolFlag)
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
	}

	fees, err := cfg.Trading.FeeModel()
	if err != nil {
		log.Fatalf("手续费配置无效: %v", err)
	}

	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.BaseURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
		Limiter:      gateway.NewTokenBucketLimiter(cfg.Gateway.RestRate, cfg.Gateway.RestBurst),
	}
	client.Observe = func(path string, err error, elapsed time.Duration) {
		m.RestRequests.WithLabelValues(path).Inc()
		m.RestLatency.WithLabelValues(path).Observe(elapsed.Seconds())
		if err != nil {
			m.RestErrors.WithLabelValues(path).Inc()
		}
	}

	sess := session.New(cfg.Console.Symbol, func(event string, fields map[string]interface{}) {
		lg.LogCalc(event, fields)
	})
	console := engine.New(engine.Config{
		Asset:  cfg.Console.Asset,
		Fees:   fees,
		DryRun: *dryRun,
	}, client, sess, lg, m)

	if err := console.RefreshSymbol(); err != nil {
		log.Fatalf("加载交易对规则失败: %v", err)
	}
	if err := console.RefreshAccount(); err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "startup"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &market.Latest{}
	// 行情流按交易对一条；切换交易对时停旧开新
	var streamCancel context.CancelFunc
	startStream := func(symbol string) {
		if streamCancel != nil {
			streamCancel()
		}
		streamCtx, cancelStream := context.WithCancel(ctx)
		streamCancel = cancelStream
		go runDepthStream(streamCtx, cfg, symbol, buf, lg, m)
	}
	startStream(sess.Symbol())
	go runAccountPoll(ctx, cfg, console, sess, buf, m, lg)

	// 配置热加载：手续费模型变化即时生效，其余字段需重启。
	watcher := config.Watcher{Path: *cfgPath}
	go func() {
		err := watcher.Start(ctx, func(next config.AppConfig) {
			fees, err := next.Trading.FeeModel()
			if err != nil {
				lg.LogError(err, map[string]interface{}{"stage": "config_reload"})
				return
			}
			console.SetFees(fees)
			lg.LogCalc("config_reloaded", map[string]interface{}{"feeMode": next.Trading.FeeMode})
		})
		if err != nil && ctx.Err() == nil {
			lg.LogError(err, map[string]interface{}{"stage": "config_watch"})
		}
	}()

	repl(console, sess, cfg, startStream)
	cancel()
}

// runDepthStream 维护深度推送连接，断线自动重连，最新快照写入单槽缓冲。
func runDepthStream(ctx context.Context, cfg config.AppConfig, symbol string, buf *market.Latest, lg *logger.Logger, m *metrics.Collector) {
	ws := gateway.NewBinanceWSReal()
	if cfg.Gateway.WSEndpoint != "" {
		ws.BaseEndpoint = cfg.Gateway.WSEndpoint
	}
	if err := ws.SubscribeDepth(symbol); err != nil {
		lg.LogError(err, map[string]interface{}{"stage": "ws_subscribe"})
		return
	}
	ws.OnConnect(func() { m.WsConnects.Inc() })
	ws.OnDisconnect(func(err error) {
		m.WsFailures.Inc()
		if err != nil {
			lg.LogError(err, map[string]interface{}{"stage": "ws_disconnect"})
		}
	})
	if err := ws.Run(ctx, &gateway.LatestDepthHandler{Buf: buf}); err != nil && ctx.Err() == nil {
		lg.LogError(err, map[string]interface{}{"stage": "ws_run"})
	}
}

// runAccountPoll 周期性把最新深度灌进会话，并刷新余额与持仓。
func runAccountPoll(ctx context.Context, cfg config.AppConfig, console *engine.Console, sess *session.Session, buf *market.Latest, m *metrics.Collector, lg *logger.Logger) {
	interval := time.Duration(cfg.Console.AccountPollMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 过旧的帧不进会话，宁可让报价不可用也不用陈旧盘口
			fresh := time.Since(buf.LastUpdate()) < 2*interval
			if d, ok := buf.Load(); ok && fresh && d.Symbol == sess.Symbol() {
				sess.SetDepth(d)
				if bid, ok := d.BestBid(); ok {
					m.BestBid.Set(bid.InexactFloat64())
				}
				if ask, ok := d.BestAsk(); ok {
					m.BestAsk.Set(ask.InexactFloat64())
				}
			}
			if err := console.RefreshAccount(); err != nil {
				lg.LogError(err, map[string]interface{}{"stage": "account_poll"})
			}
		}
	}
}

// replState 面板上用户可编辑的输入，全部以文本持有，重算时才解析。
type replState struct {
	side     order.PositionSide
	basis    string
	leverage int
	roi      string
	qty      string
	count    int
	interval int64
}

func repl(console *engine.Console, sess *session.Session, cfg config.AppConfig, onSymbolSwitch func(symbol string)) {
	st := replState{
		side:     order.Long,
		leverage: cfg.Console.Leverage,
		roi:      cfg.Console.ROIPercent,
		count:    cfg.Console.GridCount,
		interval: cfg.Console.GridIntervalTicks,
	}
	fmt.Printf("控制台就绪，交易对 %s。输入 help 查看命令。\n", sess.Symbol())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]
		switch cmd {
		case "quit", "q":
			return
		case "help":
			printHelp()
		case "symbol":
			if len(args) != 1 {
				fmt.Println("用法: symbol <SYMBOL>")
				continue
			}
			sess.SwitchSymbol(strings.ToUpper(args[0]))
			st.basis = ""
			if err := console.RefreshSymbol(); err != nil {
				fmt.Printf("加载规则失败: %v\n", err)
			}
			if onSymbolSwitch != nil {
				onSymbolSwitch(sess.Symbol())
			}
		case "side":
			if len(args) != 1 {
				fmt.Println("用法: side long|short")
				continue
			}
			switch strings.ToLower(args[0]) {
			case "long":
				st.side = order.Long
			case "short":
				st.side = order.Short
			default:
				fmt.Println("方向无效，应为 long 或 short")
				continue
			}
			recalc(console, st)
		case "price":
			if len(args) != 1 {
				fmt.Println("用法: price <基准价>")
				continue
			}
			st.basis = strategy.NormalizeBasisPrice(args[0], sess.Snapshot().Rules)
			fmt.Printf("基准价 = %s\n", st.basis)
			recalc(console, st)
		case "lev":
			if len(args) != 1 {
				fmt.Println("用法: lev <杠杆>")
				continue
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				fmt.Println("杠杆无效")
				continue
			}
			st.leverage = n
			recalc(console, st)
		case "roi":
			if len(args) != 1 {
				fmt.Println("用法: roi <百分比>")
				continue
			}
			st.roi = args[0]
			recalc(console, st)
		case "qty":
			if len(args) != 1 {
				fmt.Println("用法: qty <数量>")
				continue
			}
			st.qty = args[0]
		case "grid":
			if len(args) != 2 {
				fmt.Println("用法: grid <档数> <tick间隔>")
				continue
			}
			count, err1 := strconv.Atoi(args[0])
			iv, err2 := strconv.ParseInt(args[1], 10, 64)
			if err1 != nil || err2 != nil || count < 1 {
				fmt.Println("网格参数无效")
				continue
			}
			st.count, st.interval = count, iv
		case "max":
			percent := int64(100)
			if len(args) == 1 {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || n <= 0 {
					fmt.Println("百分比无效")
					continue
				}
				percent = n
			}
			qty, effective, err := console.MaxQuantityAt(st.side, st.leverage, percent)
			if err != nil {
				fmt.Printf("计算最大数量失败: %v\n", err)
				continue
			}
			st.qty = qty.String()
			fmt.Printf("可开数量 %s（最大值的 %d%%，有效杠杆 %dx）\n", st.qty, percent, effective)
		case "calc":
			recalc(console, st)
		case "entry":
			submitGrid(console, st, order.RoleEntry)
		case "exit":
			submitGrid(console, st, order.RoleExit)
		case "pexit":
			doPositionExit(console, sess, st)
		case "cancel":
			if err := console.CancelAllOrders(); err != nil {
				fmt.Printf("撤单失败: %v\n", err)
				continue
			}
			fmt.Println("已撤销当前交易对的全部挂单")
		case "close":
			doClose(console, st, args)
		case "panic":
			closed, err := console.EmergencyClose()
			if err != nil {
				fmt.Printf("一键平仓失败: %v\n", err)
				continue
			}
			fmt.Printf("已提交平仓 %d 笔\n", closed)
		case "balance":
			if err := console.RefreshAccount(); err != nil {
				fmt.Printf("刷新账户失败: %v\n", err)
				continue
			}
			printStatus(console, sess, st)
		case "status":
			printStatus(console, sess, st)
		default:
			fmt.Printf("未知命令: %s（输入 help 查看命令）\n", cmd)
		}
	}
}

func recalc(console *engine.Console, st replState) {
	state := console.Recalculate(strategy.Inputs{
		EntryPrice: st.basis,
		Leverage:   strconv.Itoa(st.leverage),
		ROIPercent: st.roi,
		Side:       st.side,
	})
	fmt.Printf("目标价格: %s  所需波动: %s\n", state.TargetPriceText, state.RequiredMoveText)
}

func submitGrid(console *engine.Console, st replState, role order.Role) {
	if st.basis == "" || st.qty == "" {
		fmt.Println("需先设置 price 与 qty")
		return
	}
	total, err := decimal.NewFromString(st.qty)
	if err != nil {
		fmt.Printf("数量无效: %v\n", err)
		return
	}
	spec := strategy.GridSpec{TotalQuantity: total, Count: st.count, TickInterval: st.interval}

	var report engine.SubmitReport
	if role == order.RoleEntry {
		basis, err := decimal.NewFromString(st.basis)
		if err != nil {
			fmt.Printf("基准价无效: %v\n", err)
			return
		}
		report, err = console.SubmitEntryGrid(basis, st.side, spec)
		if err != nil {
			fmt.Printf("进场网格失败: %v\n", err)
			return
		}
	} else {
		state := console.Recalculate(strategy.Inputs{
			EntryPrice: st.basis,
			Leverage:   strconv.Itoa(st.leverage),
			ROIPercent: st.roi,
			Side:       st.side,
		})
		if !state.Valid {
			fmt.Printf("目标价不可用: %s\n", state.Reason)
			return
		}
		report, err = console.SubmitExitGrid(state.TargetPrice, st.side, spec)
		if err != nil {
			fmt.Printf("离场网格失败: %v\n", err)
			return
		}
	}
	fmt.Println(report.Summary())
	for _, f := range report.Failed {
		fmt.Printf("  失败 @ %s: %v\n", f.Intent.Price.String(), f.Err)
	}
}

// doPositionExit 以持仓进场价重算目标价，并以持仓全量提交离场网格。
func doPositionExit(console *engine.Console, sess *session.Session, st replState) {
	roiPct, err := decimal.NewFromString(st.roi)
	if err != nil {
		fmt.Printf("回报率无效: %v\n", err)
		return
	}
	target, err := console.PositionTarget(st.leverage, roiPct)
	if err != nil {
		fmt.Printf("计算持仓目标价失败: %v\n", err)
		return
	}
	view := sess.Snapshot()
	fmt.Printf("持仓目标价 %s（进场 %s）\n", target.String(), view.Position.EntryPrice.String())
	spec := strategy.GridSpec{
		TotalQuantity: view.Position.AbsAmount(),
		Count:         st.count,
		TickInterval:  st.interval,
	}
	report, err := console.SubmitExitGrid(target, view.Position.Side(), spec)
	if err != nil {
		fmt.Printf("离场网格失败: %v\n", err)
		return
	}
	fmt.Println(report.Summary())
	for _, f := range report.Failed {
		fmt.Printf("  失败 @ %s: %v\n", f.Intent.Price.String(), f.Err)
	}
}

func doClose(console *engine.Console, st replState, args []string) {
	if len(args) != 2 {
		fmt.Println("用法: close <价格> <数量>")
		return
	}
	price, err := decimal.NewFromString(args[0])
	if err != nil {
		fmt.Printf("价格无效: %v\n", err)
		return
	}
	qty, err := decimal.NewFromString(args[1])
	if err != nil {
		fmt.Printf("数量无效: %v\n", err)
		return
	}
	id, err := console.CloseAtPrice(price, qty)
	if err != nil {
		fmt.Printf("平仓下单失败: %v\n", err)
		return
	}
	fmt.Printf("平仓单已提交，orderId=%s\n", id)
}

func printStatus(console *engine.Console, sess *session.Session, st replState) {
	view := sess.Snapshot()
	fmt.Printf("[%s] 余额 %s  方向 %s  杠杆 %dx  ROI %s%%\n",
		view.Symbol, view.AvailableBalance.String(), st.side, st.leverage, st.roi)
	if bid, ok := view.Book.BestBid(); ok {
		ask, _ := view.Book.BestAsk()
		line := fmt.Sprintf("盘口 bid %s / ask %s", bid.String(), ask.String())
		if mid, ok := view.Book.Mid(); ok {
			line += " / mid " + mid.String()
		}
		if age, ok := view.BookAge(time.Now()); ok {
			line += fmt.Sprintf("（%s 前更新）", age.Truncate(time.Millisecond))
		}
		fmt.Println(line)
	}
	if view.HasPosition {
		p := view.Position
		fees := console.Fees()
		fmt.Printf("持仓 %s @ %s（标记价 %s，未实现 %s，扣费后 %s）\n",
			p.Amount.String(), p.EntryPrice.String(), p.MarkPrice.String(),
			p.UnrealizedPnL.String(), p.NetPnL(fees.Entry, fees.Exit).String())
	} else {
		fmt.Println("当前无持仓")
	}
	for _, p := range console.OpenPositions() {
		if p.Symbol == view.Symbol {
			continue
		}
		fmt.Printf("其他持仓 [%s] %s @ %s\n", p.Symbol, p.Amount.String(), p.EntryPrice.String())
	}
}

func printHelp() {
	fmt.Println(`命令:
  symbol <SYMBOL>      切换交易对（重新加载规则与阶梯）
  side long|short      设置方向
  price <基准价>       设置基准价（按 tick 四舍五入）
  lev <杠杆>           设置杠杆
  roi <百分比>         设置目标回报率
  qty <数量>           设置总数量
  grid <档数> <间隔>   设置网格参数
  max [百分比]         按余额与阶梯计算最大可开数量并填入 qty，可取百分比档
  calc                 重算目标价
  entry                按基准价提交进场网格
  exit                 按目标价提交离场网格（reduce-only）
  pexit                按持仓进场价重算目标并全量提交离场网格
  cancel               撤销当前交易对的全部挂单
  close <价格> <数量>  限价平仓
  panic                市价平掉全部持仓并撤销相关挂单
  balance / status     刷新并显示账户状态
  quit                 退出`)
}
