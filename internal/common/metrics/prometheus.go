// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 佣金明细计算结果
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
)

// Metrics 指标收集器，每个实例持有独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	httpRequestsInFlight  prometheus.Gauge
	rateLimitedTotal      *prometheus.CounterVec
	cacheHitsTotal        *prometheus.CounterVec
	cacheMissesTotal      *prometheus.CounterVec
	commissionLinesTotal  *prometheus.CounterVec
	commissionCalcSeconds prometheus.Histogram
	commissionUpserts     *prometheus.CounterVec
	commissionRateWrites  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	defaultMu      sync.Mutex
)

// Init 初始化指标收集器并设为默认
func Init(namespace string) *Metrics {
	m := New(namespace)

	defaultMu.Lock()
	defaultMetrics = m
	defaultMu.Unlock()
	return m
}

// GetMetrics 获取默认指标收集器，未初始化时使用默认命名空间
func GetMetrics() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = New("")
	}
	return defaultMetrics
}

// New 创建指标收集器
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketplace"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		httpRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		rateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}, []string{"caller_type"}),
		cacheHitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}, []string{"cache"}),
		cacheMissesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}, []string{"cache"}),
		commissionLinesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_lines_total",
			Help:      "Total number of commission targets evaluated",
		}, []string{"target", "outcome"}),
		commissionCalcSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commission_calculation_duration_seconds",
			Help:      "Commission line calculation duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		commissionUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_upserts_total",
			Help:      "Total number of commission line upsert batches",
		}, []string{"status"}),
		commissionRateWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_rate_writes_total",
			Help:      "Total number of admin writes to commission rates and rules",
		}, []string{"operation"}),
	}
}

// Registry 返回该收集器的 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware 返回 Gin 中间件，skipPaths 中的路径不计入
func (m *Metrics) Middleware(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		// 未匹配路由归为 unknown
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回默认收集器的 HTTP 处理器
func Handler() gin.HandlerFunc {
	m := GetMetrics()
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return gin.WrapH(h)
}

// RecordRateLimited 记录被限流拒绝的请求
func (m *Metrics) RecordRateLimited(callerType string) {
	if callerType == "" {
		callerType = "anonymous"
	}
	m.rateLimitedTotal.WithLabelValues(callerType).Inc()
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cache string) {
	m.cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cache string) {
	m.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordCommissionLine 记录一个商品行或配送方式的匹配结果
func (m *Metrics) RecordCommissionLine(target, outcome string) {
	m.commissionLinesTotal.WithLabelValues(target, outcome).Inc()
}

// ObserveCommissionCalculation 记录一次佣金计算耗时
func (m *Metrics) ObserveCommissionCalculation(d time.Duration) {
	m.commissionCalcSeconds.Observe(d.Seconds())
}

// RecordCommissionUpsert 记录佣金明细写入批次
func (m *Metrics) RecordCommissionUpsert(status string) {
	m.commissionUpserts.WithLabelValues(status).Inc()
}

// RecordCommissionRateWrite 记录费率/规则管理写操作
func (m *Metrics) RecordCommissionRateWrite(operation string) {
	m.commissionRateWrites.WithLabelValues(operation).Inc()
}
