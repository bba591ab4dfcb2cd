// Package metrics provides Prometheus metrics for the trading console.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 控制台侧的全部指标。
type Collector struct {
	Recomputes       prometheus.Counter
	OrdersSubmitted  prometheus.Counter
	OrdersFailed     prometheus.Counter
	GridSlotsDropped prometheus.Counter
	WsConnects       prometheus.Counter
	WsFailures       prometheus.Counter
	RestRequests     *prometheus.CounterVec
	RestErrors       *prometheus.CounterVec
	RestLatency      *prometheus.HistogramVec
	AvailableBalance prometheus.Gauge
	BestBid          prometheus.Gauge
	BestAsk          prometheus.Gauge
}

// New 在默认注册表上注册并返回控制台指标集合。
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith 在指定注册表上注册指标；测试中传入独立的 Registry。
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		Recomputes: factory.NewCounter(prometheus.CounterOpts{
			Name: "console_recomputes_total",
			Help: "输入变化触发的重算次数",
		}),
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "console_orders_submitted_total",
			Help: "成功提交的订单数量",
		}),
		OrdersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "console_orders_failed_total",
			Help: "提交失败的订单数量",
		}),
		GridSlotsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "console_grid_slots_dropped_total",
			Help: "量化后数量为零而被丢弃的网格档位数",
		}),
		WsConnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "console_ws_connects_total",
			Help: "行情 WS 连接次数",
		}),
		WsFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "console_ws_failures_total",
			Help: "行情 WS 断开次数",
		}),
		RestRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "console_rest_requests_total",
			Help: "REST 请求数量",
		}, []string{"action"}),
		RestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "console_rest_errors_total",
			Help: "REST 错误数量",
		}, []string{"action"}),
		RestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_rest_latency_seconds",
			Help:    "REST 请求耗时",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		AvailableBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "console_available_balance",
			Help: "最近一次刷新的可用保证金",
		}),
		BestBid: factory.NewGauge(prometheus.GaugeOpts{
			Name: "console_best_bid",
			Help: "最优买价",
		}),
		BestAsk: factory.NewGauge(prometheus.GaugeOpts{
			Name: "console_best_ask",
			Help: "最优卖价",
		}),
	}
}

// StartMetricsServer 启动 Prometheus 指标服务器；addr 为空则关闭。
func StartMetricsServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
