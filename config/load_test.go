package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
env: dev
gateway:
  apiKey: foo
  apiSecret: bar
  baseURL: https://api.test
  restRate: 5
  restBurst: 10
trading:
  makerFeeRate: "0.0002"
  takerFeeRate: "0.0004"
  feeMode: taker
console:
  symbol: BTCUSDT
  leverage: 10
  roiPercent: "20"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Gateway.APIKey != "foo" || cfg.Console.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	// 缺省值
	if cfg.Console.Asset != "USDT" || cfg.Console.GridCount != 1 || cfg.Console.AccountPollMs != 5000 {
		t.Fatalf("defaults not applied: %+v", cfg.Console)
	}
	if cfg.Logger.Level == "" {
		t.Fatalf("logger defaults not applied")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing env", `
gateway: {apiKey: foo, apiSecret: bar, baseURL: x}
trading: {makerFeeRate: "0.0002", takerFeeRate: "0.0004", feeMode: taker}
console: {symbol: BTCUSDT, leverage: 10}
`},
		{"missing credentials", `
env: dev
gateway: {baseURL: x}
trading: {makerFeeRate: "0.0002", takerFeeRate: "0.0004", feeMode: taker}
console: {symbol: BTCUSDT, leverage: 10}
`},
		{"bad fee mode", `
env: dev
gateway: {apiKey: foo, apiSecret: bar, baseURL: x}
trading: {makerFeeRate: "0.0002", takerFeeRate: "0.0004", feeMode: nonsense}
console: {symbol: BTCUSDT, leverage: 10}
`},
		{"zero leverage", `
env: dev
gateway: {apiKey: foo, apiSecret: bar, baseURL: x}
trading: {makerFeeRate: "0.0002", takerFeeRate: "0.0004", feeMode: taker}
console: {symbol: BTCUSDT, leverage: 0}
`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeTempConfig(t, c.content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("FC_GATEWAY_API_KEY", "env-key")
	t.Setenv("FC_GATEWAY_API_SECRET", "env-secret")
	cfg, err := LoadWithEnvOverrides(writeTempConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.APIKey != "env-key" || cfg.Gateway.APISecret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg.Gateway)
	}
}

func TestFeeModel(t *testing.T) {
	trading := TradingConfig{MakerFeeRate: "0.0002", TakerFeeRate: "0.0004", FeeMode: "blended"}
	fees, err := trading.FeeModel()
	if err != nil {
		t.Fatalf("fee model err: %v", err)
	}
	if fees.Entry.String() != "0.0004" || fees.Exit.String() != "0.0002" {
		t.Fatalf("blended fees: %s/%s", fees.Entry, fees.Exit)
	}

	trading.FeeMode = "maker"
	fees, err = trading.FeeModel()
	if err != nil || fees.Entry.String() != "0.0002" || fees.Exit.String() != "0.0002" {
		t.Fatalf("maker fees: %s/%s %v", fees.Entry, fees.Exit, err)
	}
}
