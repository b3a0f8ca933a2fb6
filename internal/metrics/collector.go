// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器.
// 同时实现 cache.Recorder 与 multimodal.MetricsRecorder。
type Collector struct {
	// 请求指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// 条目指标
	itemsTotal   *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	cacheRejections *prometheus.CounterVec
	cacheSize       *prometheus.GaugeVec
	cacheEntries    *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器. reg 为 nil 时注册到 prometheus.DefaultRegisterer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 请求指标
	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of preprocessing requests",
		},
		[]string{"status"},
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Preprocessing request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"status"},
	)

	// 条目指标
	c.itemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Total number of multimodal items by outcome",
		},
		[]string{"modality", "outcome"}, // outcome: hit, miss, computed
	)

	c.itemDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Per-item lookup or processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"modality", "outcome"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.cacheEvictions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of LRU evictions",
		},
		[]string{"cache_type"},
	)

	c.cacheRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_rejections_total",
			Help:      "Total number of entries larger than the cache capacity",
		},
		[]string{"cache_type"},
	)

	c.cacheSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current cache usage in the cache's capacity unit",
		},
		[]string{"cache_type"},
	)

	c.cacheEntries = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of cache entries",
		},
		[]string{"cache_type"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 请求与条目指标记录
// =============================================================================

// RecordRequest 记录一次 Apply
func (c *Collector) RecordRequest(status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(status).Inc()
	c.requestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordItem 记录单个条目的查询或计算
func (c *Collector) RecordItem(modality, outcome string, duration time.Duration) {
	c.itemsTotal.WithLabelValues(modality, outcome).Inc()
	c.itemDuration.WithLabelValues(modality, outcome).Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheEviction 记录 LRU 淘汰
func (c *Collector) RecordCacheEviction(cacheType string) {
	c.cacheEvictions.WithLabelValues(cacheType).Inc()
}

// RecordCacheRejection 记录超出容量而未保留的条目
func (c *Collector) RecordCacheRejection(cacheType string) {
	c.cacheRejections.WithLabelValues(cacheType).Inc()
	c.logger.Debug("cache entry rejected", zap.String("cache_type", cacheType))
}

// SetCacheUsage 更新缓存用量
func (c *Collector) SetCacheUsage(cacheType string, size int64, entries int) {
	c.cacheSize.WithLabelValues(cacheType).Set(float64(size))
	c.cacheEntries.WithLabelValues(cacheType).Set(float64(entries))
}
