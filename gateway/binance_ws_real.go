package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"futures-console-go/market"
)

// BinanceFuturesWSEndpoint 合约行情流默认端点。
const BinanceFuturesWSEndpoint = "wss://fstream.binance.com"

// DepthHandler 接收解析后的盘口帧。
type DepthHandler interface {
	OnDepth(d market.Depth)
}

// BinanceWSReal 订阅单个交易对的 depth5@100ms 流并连接真实 WS。
// 断线后按固定退避重连，直到 ctx 取消。
type BinanceWSReal struct {
	BaseEndpoint string
	Dialer       *websocket.Dialer
	ReadTimeout  time.Duration
	RetryDelay   time.Duration

	symbol       string
	onConnect    func()
	onDisconnect func(error)
}

func NewBinanceWSReal() *BinanceWSReal {
	return &BinanceWSReal{
		BaseEndpoint: BinanceFuturesWSEndpoint,
		Dialer:       websocket.DefaultDialer,
		ReadTimeout:  10 * time.Second,
		RetryDelay:   3 * time.Second,
	}
}

func (b *BinanceWSReal) SubscribeDepth(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol required")
	}
	b.symbol = strings.ToLower(symbol)
	return nil
}

func (b *BinanceWSReal) OnConnect(fn func())         { b.onConnect = fn }
func (b *BinanceWSReal) OnDisconnect(fn func(error)) { b.onDisconnect = fn }

// Run 连接并持续读取，把每帧交给 handler；连接断开后重连。
// 仅在 ctx 取消时返回。
func (b *BinanceWSReal) Run(ctx context.Context, handler DepthHandler) error {
	if b.symbol == "" {
		return fmt.Errorf("no stream subscribed")
	}
	endpoint := strings.TrimSuffix(b.BaseEndpoint, "/") + "/ws/" + b.symbol + "@depth5@100ms"
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.readLoop(ctx, endpoint, handler); err != nil {
			if b.onDisconnect != nil {
				b.onDisconnect(err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.RetryDelay):
		}
	}
}

func (b *BinanceWSReal) readLoop(ctx context.Context, endpoint string, handler DepthHandler) error {
	conn, _, err := b.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()
	if b.onConnect != nil {
		b.onConnect()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(b.ReadTimeout))
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		d, err := ParseDepth5(raw, time.Now().UTC())
		if err != nil {
			continue
		}
		if handler != nil {
			handler.OnDepth(d)
		}
	}
}

// LatestDepthHandler 把盘口帧写入单槽缓冲，符合 "最新值覆盖" 语义。
type LatestDepthHandler struct {
	Buf *market.Latest
}

func (h *LatestDepthHandler) OnDepth(d market.Depth) {
	if h.Buf != nil {
		h.Buf.Store(d)
	}
}
