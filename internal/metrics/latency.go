package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// LatencyTracker 用 DDSketch 按操作名统计延迟分位数.
type LatencyTracker struct {
	mu               sync.Mutex
	sketches         map[string]*ddsketch.DDSketch
	relativeAccuracy float64
}

// NewLatencyTracker 创建延迟统计器.
// relativeAccuracy 为分位数的相对误差（例如 0.01 表示 1%）。
func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	return &LatencyTracker{
		sketches:         make(map[string]*ddsketch.DDSketch),
		relativeAccuracy: relativeAccuracy,
	}
}

// Record 记录一次耗时，单位毫秒.
func (lt *LatencyTracker) Record(operation string, duration time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[operation]
	if !exists {
		var err error
		sketch, err = ddsketch.LogUnboundedDenseDDSketch(lt.relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(0.01)
		}
		lt.sketches[operation] = sketch
	}

	// 负值会被 DDSketch 拒绝
	ms := float64(duration.Microseconds()) / 1000.0
	if ms < 0 {
		ms = 0
	}
	_ = sketch.Add(ms)
}

// RecordFunc 执行 fn 并记录耗时.
func (lt *LatencyTracker) RecordFunc(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	lt.Record(operation, time.Since(start))
	return err
}

// GetQuantile 返回操作在给定分位数（0..1）的耗时，单位毫秒.
func (lt *LatencyTracker) GetQuantile(operation string, quantile float64) (float64, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[operation]
	if !exists {
		return 0, fmt.Errorf("no data for operation: %s", operation)
	}
	return sketch.GetValueAtQuantile(quantile)
}

// Stats 单个操作的延迟统计
type Stats struct {
	Operation string
	Count     int64
	Min       float64
	P50       float64
	P90       float64
	P95       float64
	P99       float64
	Max       float64
}

// GetStats 返回操作的统计.
func (lt *LatencyTracker) GetStats(operation string) (Stats, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[operation]
	if !exists {
		return Stats{}, fmt.Errorf("no data for operation: %s", operation)
	}
	return sketchStats(operation, sketch), nil
}

// GetAllStats 返回所有操作的统计，按操作名排序.
func (lt *LatencyTracker) GetAllStats() []Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	stats := make([]Stats, 0, len(lt.sketches))
	for operation, sketch := range lt.sketches {
		stats = append(stats, sketchStats(operation, sketch))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Operation < stats[j].Operation })
	return stats
}

func sketchStats(operation string, sketch *ddsketch.DDSketch) Stats {
	count := sketch.GetCount()
	if count == 0 {
		return Stats{Operation: operation}
	}

	min, _ := sketch.GetMinValue()
	p50, _ := sketch.GetValueAtQuantile(0.50)
	p90, _ := sketch.GetValueAtQuantile(0.90)
	p95, _ := sketch.GetValueAtQuantile(0.95)
	p99, _ := sketch.GetValueAtQuantile(0.99)
	max, _ := sketch.GetMaxValue()

	return Stats{
		Operation: operation,
		Count:     int64(count),
		Min:       min,
		P50:       p50,
		P90:       p90,
		P95:       p95,
		P99:       p99,
		Max:       max,
	}
}

// String 返回可读的统计行.
func (s Stats) String() string {
	if s.Count == 0 {
		return fmt.Sprintf("  %s: no data", s.Operation)
	}
	return fmt.Sprintf("  %s (n=%d): min=%.3fms p50=%.3fms p90=%.3fms p95=%.3fms p99=%.3fms max=%.3fms",
		s.Operation, s.Count, s.Min, s.P50, s.P90, s.P95, s.P99, s.Max)
}
