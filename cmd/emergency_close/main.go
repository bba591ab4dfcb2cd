package main

import (
	"flag"
	"fmt"
	"log"

	"futures-console-go/config"
	"futures-console-go/gateway"
	"futures-console-go/infrastructure/logger"
	"futures-console-go/internal/engine"
	"futures-console-go/internal/session"
	"futures-console-go/metrics"
)

// 一键平仓：对账户内所有未平仓位提交市价 reduce-only 单。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dryRun := flag.Bool("dry-run", false, "仅打印，不真正下单")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

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
	}

	sess := session.New(cfg.Console.Symbol, nil)
	console := engine.New(engine.Config{
		Asset:  cfg.Console.Asset,
		Fees:   fees,
		DryRun: *dryRun,
	}, client, sess, lg, metrics.New())

	closed, err := console.EmergencyClose()
	if err != nil {
		log.Fatalf("一键平仓失败: %v", err)
	}
	fmt.Printf("已提交平仓 %d 笔\n", closed)
}
