package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/BaSui01/mmcache/llm"

// Recorder 同时覆盖处理器事件与缓存事件，
// multimodal.MetricsRecorder 与 cache.Recorder 都是它的子集.
type Recorder interface {
	RecordRequest(status string, duration time.Duration)
	RecordItem(modality, outcome string, duration time.Duration)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	RecordCacheEviction(cacheType string)
	RecordCacheRejection(cacheType string)
	SetCacheUsage(cacheType string, size int64, entries int)
}

type cacheUsage struct {
	size    int64
	entries int64
}

// Metrics 基于 OpenTelemetry Meter 的指标收集器
type Metrics struct {
	meter metric.Meter
	// 柜台
	requestTotal metric.Int64Counter
	itemTotal    metric.Int64Counter
	cacheEvents  metric.Int64Counter
	// 直方图
	requestDuration metric.Float64Histogram
	itemDuration    metric.Float64Histogram
	// 高地语
	cacheSize    metric.Int64ObservableGauge
	cacheEntries metric.Int64ObservableGauge

	mu    sync.Mutex
	usage map[string]cacheUsage
}

// NewMetrics 创建指标收集器. meter 为 nil 时使用全局 MeterProvider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{
		meter: meter,
		usage: make(map[string]cacheUsage),
	}

	var err error

	// 请求计数
	m.requestTotal, err = meter.Int64Counter("mmcache.request.total",
		metric.WithDescription("Total number of processing requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	// 条目计数
	m.itemTotal, err = meter.Int64Counter("mmcache.item.total",
		metric.WithDescription("Total multimodal items by modality and outcome"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, err
	}

	m.cacheEvents, err = meter.Int64Counter("mmcache.cache.events",
		metric.WithDescription("Processing cache events (hit, miss, eviction, rejection)"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}

	// 请求延迟
	m.requestDuration, err = meter.Float64Histogram("mmcache.request.duration",
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5))
	if err != nil {
		return nil, err
	}

	m.itemDuration, err = meter.Float64Histogram("mmcache.item.duration",
		metric.WithDescription("Per-item processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5))
	if err != nil {
		return nil, err
	}

	m.cacheSize, err = meter.Int64ObservableGauge("mmcache.cache.size",
		metric.WithDescription("Current processing cache usage in capacity units"))
	if err != nil {
		return nil, err
	}

	m.cacheEntries, err = meter.Int64ObservableGauge("mmcache.cache.entries",
		metric.WithDescription("Current number of cached entries"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(m.observeUsage, m.cacheSize, m.cacheEntries)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) observeUsage(_ context.Context, o metric.Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, u := range m.usage {
		attrs := metric.WithAttributes(attribute.String("cache_type", name))
		o.ObserveInt64(m.cacheSize, u.size, attrs)
		o.ObserveInt64(m.cacheEntries, u.entries, attrs)
	}
	return nil
}

// RecordRequest 记录一次 Apply 调用
func (m *Metrics) RecordRequest(status string, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordItem 记录单个条目的处理结果
func (m *Metrics) RecordItem(modality, outcome string, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("modality", modality),
		attribute.String("outcome", outcome))
	m.itemTotal.Add(ctx, 1, attrs)
	m.itemDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) cacheEvent(cacheType, event string) {
	m.cacheEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache_type", cacheType),
		attribute.String("event", event)))
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cacheType string) { m.cacheEvent(cacheType, "hit") }

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cacheType string) { m.cacheEvent(cacheType, "miss") }

func (m *Metrics) RecordCacheEviction(cacheType string) { m.cacheEvent(cacheType, "eviction") }

func (m *Metrics) RecordCacheRejection(cacheType string) { m.cacheEvent(cacheType, "rejection") }

// SetCacheUsage 保存最新用量，由 observable gauge 在采集时读取
func (m *Metrics) SetCacheUsage(cacheType string, size int64, entries int) {
	m.mu.Lock()
	m.usage[cacheType] = cacheUsage{size: size, entries: int64(entries)}
	m.mu.Unlock()
}

// Fanout 把事件转发给多个 Recorder，nil 元素被跳过.
type Fanout []Recorder

func (f Fanout) each(fn func(Recorder)) {
	for _, r := range f {
		if r != nil {
			fn(r)
		}
	}
}

func (f Fanout) RecordRequest(status string, duration time.Duration) {
	f.each(func(r Recorder) { r.RecordRequest(status, duration) })
}

func (f Fanout) RecordItem(modality, outcome string, duration time.Duration) {
	f.each(func(r Recorder) { r.RecordItem(modality, outcome, duration) })
}

func (f Fanout) RecordCacheHit(cacheType string) {
	f.each(func(r Recorder) { r.RecordCacheHit(cacheType) })
}

func (f Fanout) RecordCacheMiss(cacheType string) {
	f.each(func(r Recorder) { r.RecordCacheMiss(cacheType) })
}

func (f Fanout) RecordCacheEviction(cacheType string) {
	f.each(func(r Recorder) { r.RecordCacheEviction(cacheType) })
}

func (f Fanout) RecordCacheRejection(cacheType string) {
	f.each(func(r Recorder) { r.RecordCacheRejection(cacheType) })
}

func (f Fanout) SetCacheUsage(cacheType string, size int64, entries int) {
	f.each(func(r Recorder) { r.SetCacheUsage(cacheType, size, entries) })
}
