package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"futures-console-go/infrastructure/logger"
	"futures-console-go/strategy"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string        `yaml:"env"`
	MetricsAddr string        `yaml:"metricsAddr"`
	Gateway     GatewayConfig `yaml:"gateway"`
	Trading     TradingConfig `yaml:"trading"`
	Console     ConsoleConfig `yaml:"console"`
	Logger      logger.Config `yaml:"logger"`
}

type GatewayConfig struct {
	APIKey     string  `yaml:"apiKey"`
	APISecret  string  `yaml:"apiSecret"`
	BaseURL    string  `yaml:"baseURL"`
	WSEndpoint string  `yaml:"wsEndpoint"`
	RestRate   float64 `yaml:"restRate"`  // REST 限流：每秒令牌数
	RestBurst  int     `yaml:"restBurst"` // REST 限流：最大突发令牌数
}

// TradingConfig 手续费率按十进制字符串配置（如 "0.0004"），避免浮点。
type TradingConfig struct {
	MakerFeeRate string `yaml:"makerFeeRate"`
	TakerFeeRate string `yaml:"takerFeeRate"`
	FeeMode      string `yaml:"feeMode"` // maker | taker | blended（taker 进 maker 出）
}

// FeeModel 解析费率并按 FeeMode 组装进/出场费率对。
func (t TradingConfig) FeeModel() (strategy.FeeModel, error) {
	maker, err := decimal.NewFromString(t.MakerFeeRate)
	if err != nil {
		return strategy.FeeModel{}, fmt.Errorf("parse makerFeeRate: %w", err)
	}
	taker, err := decimal.NewFromString(t.TakerFeeRate)
	if err != nil {
		return strategy.FeeModel{}, fmt.Errorf("parse takerFeeRate: %w", err)
	}
	switch t.FeeMode {
	case "maker":
		return strategy.MakerFees(maker), nil
	case "taker":
		return strategy.TakerFees(taker), nil
	case "blended":
		return strategy.BlendedFees(taker, maker), nil
	default:
		return strategy.FeeModel{}, fmt.Errorf("unknown feeMode %q", t.FeeMode)
	}
}

// ConsoleConfig 控制台默认输入与轮询周期。
type ConsoleConfig struct {
	Symbol            string `yaml:"symbol"`
	Asset             string `yaml:"asset"` // 保证金资产，默认 USDT
	Leverage          int    `yaml:"leverage"`
	ROIPercent        string `yaml:"roiPercent"`
	GridCount         int    `yaml:"gridCount"`
	GridIntervalTicks int64  `yaml:"gridIntervalTicks"`
	AccountPollMs     int    `yaml:"accountPollMs"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("FC_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("FC_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Trading.FeeMode == "" {
		cfg.Trading.FeeMode = "taker"
	}
	if cfg.Console.Asset == "" {
		cfg.Console.Asset = "USDT"
	}
	if cfg.Console.GridCount == 0 {
		cfg.Console.GridCount = 1
	}
	if cfg.Console.AccountPollMs == 0 {
		cfg.Console.AccountPollMs = 5000
	}
	if cfg.Logger.Level == "" {
		cfg.Logger = logger.DefaultConfig()
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return errors.New("gateway.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.baseURL is required")
	}
	if _, err := cfg.Trading.FeeModel(); err != nil {
		return fmt.Errorf("trading: %w", err)
	}
	if cfg.Console.Symbol == "" {
		return errors.New("console.symbol is required")
	}
	if cfg.Console.Leverage <= 0 {
		return errors.New("console.leverage must be > 0")
	}
	if cfg.Console.GridCount < 1 {
		return errors.New("console.gridCount must be >= 1")
	}
	if cfg.Console.AccountPollMs < 0 {
		return errors.New("console.accountPollMs must be >= 0")
	}
	return nil
}
