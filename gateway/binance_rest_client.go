package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"futures-console-go/inventory"
	"futures-console-go/order"
	"futures-console-go/risk"
)

// BinanceRESTClient 可签名的简化 USDT-M 合约客户端；默认不发起真实
// 网络调用，HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	HTTPClient   *http.Client
	RecvWindowMs int64
	Limiter      RateLimiter
	// Observe 每次请求完成后回调（指标埋点），可为 nil。
	Observe func(path string, err error, elapsed time.Duration)
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// 测试中替换为固定时间
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

func (c *BinanceRESTClient) do(method, path string, params map[string]string, signed bool, out interface{}) (err error) {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	if c.Observe != nil {
		start := time.Now()
		defer func() { c.Observe(path, err, time.Since(start)) }()
	}
	endpoint := c.BaseURL + path
	if signed {
		if params == nil {
			params = map[string]string{}
		}
		params["timestamp"] = strconv.FormatInt(timeNowMillis(), 10)
		if c.RecvWindowMs > 0 {
			params["recvWindow"] = strconv.FormatInt(c.RecvWindowMs, 10)
		}
		query, sig := SignParams(params, c.Secret)
		endpoint += "?" + query + "&signature=" + url.QueryEscape(sig)
	} else if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}
	req, err := http.NewRequest(method, endpoint, bytes.NewBuffer(nil))
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		PricePrecision    int32  `json:"pricePrecision"`
		QuantityPrecision int32  `json:"quantityPrecision"`
		Filters           []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// FetchSymbolRules 读取 /fapi/v1/exchangeInfo 的 PRICE_FILTER/LOT_SIZE，
// 组装交易规则。过滤器缺失时对应步长保持为零，量化退化为直通。
func (c *BinanceRESTClient) FetchSymbolRules(symbol string) (order.SymbolRules, error) {
	var info exchangeInfoResp
	if err := c.do(http.MethodGet, "/fapi/v1/exchangeInfo", map[string]string{"symbol": symbol}, false, &info); err != nil {
		return order.SymbolRules{}, fmt.Errorf("fetch exchangeInfo: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := order.SymbolRules{
			Symbol:            s.Symbol,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				if v, err := decimal.NewFromString(f.TickSize); err == nil {
					rules.TickSize = v
				}
			case "LOT_SIZE":
				if v, err := decimal.NewFromString(f.StepSize); err == nil {
					rules.StepSize = v
				}
			}
		}
		return rules, nil
	}
	return order.SymbolRules{}, fmt.Errorf("symbol %s not in exchangeInfo", symbol)
}

type leverageBracketResp []struct {
	Symbol   string `json:"symbol"`
	Brackets []struct {
		Bracket         int         `json:"bracket"`
		InitialLeverage int         `json:"initialLeverage"`
		NotionalFloor   json.Number `json:"notionalFloor"`
		NotionalCap     json.Number `json:"notionalCap"`
	} `json:"brackets"`
}

// FetchLeverageBrackets 读取 /fapi/v1/leverageBracket 并构造阶梯表。
func (c *BinanceRESTClient) FetchLeverageBrackets(symbol string) (risk.BracketTable, error) {
	var resp leverageBracketResp
	if err := c.do(http.MethodGet, "/fapi/v1/leverageBracket", map[string]string{"symbol": symbol}, true, &resp); err != nil {
		return risk.BracketTable{}, fmt.Errorf("fetch leverage brackets: %w", err)
	}
	for _, entry := range resp {
		if entry.Symbol != symbol {
			continue
		}
		tiers := make([]risk.BracketTier, 0, len(entry.Brackets))
		for _, b := range entry.Brackets {
			tierFloor, err := decimal.NewFromString(b.NotionalFloor.String())
			if err != nil {
				return risk.BracketTable{}, fmt.Errorf("bracket %d floor: %w", b.Bracket, err)
			}
			tierCap, err := decimal.NewFromString(b.NotionalCap.String())
			if err != nil {
				return risk.BracketTable{}, fmt.Errorf("bracket %d cap: %w", b.Bracket, err)
			}
			tiers = append(tiers, risk.BracketTier{
				NotionalFloor: tierFloor,
				NotionalCap:   tierCap,
				MaxLeverage:   b.InitialLeverage,
			})
		}
		return risk.NewBracketTable(tiers), nil
	}
	return risk.BracketTable{}, fmt.Errorf("symbol %s not in leverageBracket", symbol)
}

type balanceResp []struct {
	Asset            string `json:"asset"`
	AvailableBalance string `json:"availableBalance"`
}

// FetchAvailableBalance 读取 /fapi/v2/balance 中指定资产的可用余额。
func (c *BinanceRESTClient) FetchAvailableBalance(asset string) (decimal.Decimal, error) {
	var resp balanceResp
	if err := c.do(http.MethodGet, "/fapi/v2/balance", nil, true, &resp); err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch balance: %w", err)
	}
	for _, b := range resp {
		if b.Asset == asset {
			v, err := decimal.NewFromString(b.AvailableBalance)
			if err != nil {
				return decimal.Decimal{}, fmt.Errorf("parse balance: %w", err)
			}
			return v, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("asset %s not in balance", asset)
}

type positionRiskResp []struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	LiquidationPrice string `json:"liquidationPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
}

// FetchPositions 读取 /fapi/v2/positionRisk；symbol 为空时返回全部。
// 数量为零的条目被跳过。
func (c *BinanceRESTClient) FetchPositions(symbol string) ([]inventory.Position, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	var resp positionRiskResp
	if err := c.do(http.MethodGet, "/fapi/v2/positionRisk", params, true, &resp); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	positions := make([]inventory.Position, 0, len(resp))
	for _, p := range resp {
		amt, err := decimal.NewFromString(p.PositionAmt)
		if err != nil || amt.IsZero() {
			continue
		}
		pos := inventory.Position{Symbol: p.Symbol, Amount: amt}
		if v, err := decimal.NewFromString(p.EntryPrice); err == nil {
			pos.EntryPrice = v
		}
		if v, err := decimal.NewFromString(p.MarkPrice); err == nil {
			pos.MarkPrice = v
		}
		if v, err := decimal.NewFromString(p.LiquidationPrice); err == nil {
			pos.LiquidationPrice = v
		}
		if v, err := decimal.NewFromString(p.UnRealizedProfit); err == nil {
			pos.UnrealizedPnL = v
		}
		if v, err := strconv.Atoi(p.Leverage); err == nil {
			pos.Leverage = v
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

type placeResp struct {
	OrderID json.Number `json:"orderId"`
}

// PlaceOrder 调用 /fapi/v1/order 下单。价格/数量来自 Intent.Params，
// 均为量化后的十进制字符串。
func (c *BinanceRESTClient) PlaceOrder(it order.Intent) (string, error) {
	var pr placeResp
	if err := c.do(http.MethodPost, "/fapi/v1/order", it.Params(), true, &pr); err != nil {
		return "", err
	}
	if pr.OrderID.String() == "" {
		return "", fmt.Errorf("empty orderId")
	}
	return pr.OrderID.String(), nil
}

// CancelAllOrders 撤销某交易对的全部挂单。
func (c *BinanceRESTClient) CancelAllOrders(symbol string) error {
	return c.do(http.MethodDelete, "/fapi/v1/allOpenOrders", map[string]string{"symbol": symbol}, true, nil)
}
