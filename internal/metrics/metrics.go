// Package metrics exposes Prometheus counters for the fetch lifecycle:
// cache lookups, in-flight joins, transport attempts, retries and store writes.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 汇总抓取过程的 Prometheus 指标，可并发使用。
type Collector struct {
	cacheLookups     *prometheus.CounterVec
	dedupJoins       *prometheus.CounterVec
	transportTotal   *prometheus.CounterVec
	transportSeconds *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	storeWrites      *prometheus.CounterVec
	inFlight         *prometheus.GaugeVec
	throttleWait     *prometheus.HistogramVec
}

// New 在指定 Registerer 上注册全部指标。
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_cache_lookups_total",
				Help: "Cache lookups partitioned by result (hit, miss, bypass)",
			},
			[]string{"origin", "result"},
		),
		dedupJoins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_inflight_joins_total",
				Help: "Fetches that joined an in-flight request instead of calling the transport",
			},
			[]string{"origin"},
		),
		transportTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_transport_requests_total",
				Help: "Transport calls partitioned by status code (0 for transport errors)",
			},
			[]string{"origin", "method", "status_code"},
		),
		transportSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_transport_duration_seconds",
				Help:    "Duration of transport calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"origin", "method"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_retries_total",
				Help: "Retry attempts started after a failed attempt",
			},
			[]string{"origin", "attempt"},
		),
		storeWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_store_writes_total",
				Help: "Artifact writes partitioned by result (ok, error)",
			},
			[]string{"origin", "result"},
		),
		inFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scrape_inflight_requests",
				Help: "Number of refs with a transport call currently in flight",
			},
			[]string{"origin"},
		),
		throttleWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_throttle_wait_seconds",
				Help:    "Time spent waiting for rate limiter admission",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"origin"},
		),
	}
}

// Cache lookup results.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
)

// RecordCacheLookup 记录一次缓存查询结果。
func (c *Collector) RecordCacheLookup(origin, result string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(origin, result).Inc()
}

// RecordDedupJoin 记录一次加入已有 in-flight 请求。
func (c *Collector) RecordDedupJoin(origin string) {
	if c == nil {
		return
	}
	c.dedupJoins.WithLabelValues(origin).Inc()
}

// RecordTransport 记录一次传输调用；statusCode 为 0 表示传输层错误。
func (c *Collector) RecordTransport(origin, method string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.transportTotal.WithLabelValues(origin, method, strconv.Itoa(statusCode)).Inc()
	c.transportSeconds.WithLabelValues(origin, method).Observe(duration.Seconds())
}

// RecordRetry 记录第 attempt 次重试。
func (c *Collector) RecordRetry(origin string, attempt int) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(origin, strconv.Itoa(attempt)).Inc()
}

// RecordStoreWrite 记录一次写缓存结果。
func (c *Collector) RecordStoreWrite(origin string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeWrites.WithLabelValues(origin, result).Inc()
}

// InFlightInc 在传输调用开始时调用。
func (c *Collector) InFlightInc(origin string) {
	if c == nil {
		return
	}
	c.inFlight.WithLabelValues(origin).Inc()
}

// InFlightDec 在传输调用结束时调用。
func (c *Collector) InFlightDec(origin string) {
	if c == nil {
		return
	}
	c.inFlight.WithLabelValues(origin).Dec()
}

// RecordThrottleWait 记录等待限速放行的耗时。
func (c *Collector) RecordThrottleWait(origin string, d time.Duration) {
	if c == nil {
		return
	}
	c.throttleWait.WithLabelValues(origin).Observe(d.Seconds())
}
