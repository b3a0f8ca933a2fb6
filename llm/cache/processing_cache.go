package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/BaSui01/mmcache/types"
)

var ErrCacheMiss = errors.New("cache miss")

// Unit 容量计量单位
type Unit string

const (
	// UnitBytes 按 ProcessedItem.SizeBytes 估算的字节数计量（默认）
	UnitBytes Unit = "bytes"
	// UnitEntries 每个条目计 1，容量即条目数上限
	UnitEntries Unit = "entries"
)

// Sizer 计算条目占用的容量
type Sizer func(e *Entry) int64

// ByteSizer 返回处理结果的字节估算
func ByteSizer(e *Entry) int64 {
	return e.Item.SizeBytes()
}

// EntryCountSizer 每个条目计 1
func EntryCountSizer(*Entry) int64 {
	return 1
}

// SizerFor 返回单位对应的 Sizer
func SizerFor(u Unit) (Sizer, error) {
	switch u {
	case UnitBytes, "":
		return ByteSizer, nil
	case UnitEntries:
		return EntryCountSizer, nil
	default:
		return nil, fmt.Errorf("unknown cache unit: %q", u)
	}
}

// Entry 缓存条目：完整的单条处理结果 + 容量估算
type Entry struct {
	Item *types.ProcessedItem
	// Fingerprint 原始载荷指纹，仅在开启键校验时非零
	Fingerprint uint64

	size int64
}

// NewEntry 创建缓存条目
func NewEntry(item *types.ProcessedItem, fingerprint uint64) *Entry {
	return &Entry{Item: item, Fingerprint: fingerprint}
}

// Size 返回条目写入时计入的容量，未写入时为 0
func (e *Entry) Size() int64 {
	return e.size
}

// Recorder 接收缓存事件，internal/metrics.Collector 实现该接口
type Recorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	RecordCacheEviction(cacheType string)
	RecordCacheRejection(cacheType string)
	SetCacheUsage(cacheType string, size int64, entries int)
}

// Stats 缓存统计
type Stats struct {
	Unit     Unit  `json:"unit"`
	Capacity int64 `json:"capacity"`

	Size    int64 `json:"size"`
	Entries int   `json:"entries"`

	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	Rejections int64   `json:"rejections"` // 超过容量而未保留的写入
	HitRate    float64 `json:"hit_rate"`
}

// Option 配置 ProcessingCache
type Option func(*ProcessingCache)

// WithUnit 设置容量计量单位
func WithUnit(u Unit) Option {
	return func(c *ProcessingCache) {
		c.unit = u
	}
}

// WithSizer 使用自定义 Sizer（单位名称仅用于日志与统计）
func WithSizer(u Unit, s Sizer) Option {
	return func(c *ProcessingCache) {
		c.unit = u
		c.sizer = s
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(c *ProcessingCache) {
		c.logger = logger
	}
}

// WithRecorder 设置指标接收者
func WithRecorder(r Recorder) Option {
	return func(c *ProcessingCache) {
		c.recorder = r
	}
}

// WithName 设置缓存名称，作为指标的 cache_type 标签
func WithName(name string) Option {
	return func(c *ProcessingCache) {
		c.name = name
	}
}

// ============================================================
// ProcessingCache: 容量受限的 LRU（双向链表 + map，O(1) 操作）
// ============================================================

// ProcessingCache 以内容键缓存单条处理结果。
//
// 不变量：任意写入完成后 size <= capacity。写入超过容量时从最久未使用的
// 条目开始淘汰；单个条目大于容量时不保留（处理结果照常返回，只是不缓存）。
// 所有操作持同一把锁，写入与淘汰对并发读取是原子的。
type ProcessingCache struct {
	mu       sync.RWMutex
	capacity int64
	size     int64
	unit     Unit
	sizer    Sizer
	items    map[ContentKey]*lruNode
	head     *lruNode // 最近使用
	tail     *lruNode // 最久未使用
	stats    Stats

	name     string
	recorder Recorder
	logger   *zap.Logger
}

type lruNode struct {
	key   ContentKey
	entry *Entry
	prev  *lruNode
	next  *lruNode
}

// NewProcessingCache 创建处理缓存。capacity 必须为正，否则返回 CAPACITY_CONFIG 错误。
func NewProcessingCache(capacity int64, opts ...Option) (*ProcessingCache, error) {
	if capacity <= 0 {
		return nil, types.Errorf(types.ErrCapacityConfig, "cache capacity must be positive, got %d", capacity)
	}

	c := &ProcessingCache{
		capacity: capacity,
		unit:     UnitBytes,
		items:    make(map[ContentKey]*lruNode),
		name:     "processing",
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sizer == nil {
		sizer, err := SizerFor(c.unit)
		if err != nil {
			return nil, types.NewError(types.ErrCapacityConfig, "invalid cache unit").WithCause(err)
		}
		c.sizer = sizer
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "processing_cache"))
	c.stats.Unit = c.unit
	c.stats.Capacity = capacity

	c.logger.Info("processing cache initialized",
		zap.String("name", c.name),
		zap.String("capacity", c.formatCapacity(capacity)),
		zap.String("unit", string(c.unit)),
	)

	return c, nil
}

// Get 获取缓存，命中时刷新最近使用顺序
func (c *ProcessingCache) Get(key ContentKey) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		c.record(func(r Recorder) { r.RecordCacheMiss(c.name) })
		return nil, false
	}

	c.moveToHead(node)
	c.stats.Hits++
	c.record(func(r Recorder) { r.RecordCacheHit(c.name) })

	return node.entry, true
}

// Lookup 与 Get 相同，未命中时返回 ErrCacheMiss
func (c *ProcessingCache) Lookup(key ContentKey) (*Entry, error) {
	entry, ok := c.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Put 写入缓存，返回条目是否被保留。
// 条目大于容量时调用成功但不保留，同键的旧条目一并移除，后续 Get 必然未命中。
func (c *ProcessingCache) Put(key ContentKey, entry *Entry) bool {
	if entry == nil || entry.Item == nil {
		return false
	}
	size := c.sizer(entry)

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.capacity {
		if node, ok := c.items[key]; ok {
			c.unlink(node)
		}
		c.stats.Rejections++
		c.record(func(r Recorder) { r.RecordCacheRejection(c.name) })
		c.logger.Debug("entry larger than capacity, not cached",
			zap.String("key", string(key)),
			zap.String("size", c.formatCapacity(size)),
			zap.String("capacity", c.formatCapacity(c.capacity)),
		)
		c.publishUsage()
		return false
	}

	// 写入时复制一份元信息，size 以写入时刻为准
	stored := &Entry{Item: entry.Item, Fingerprint: entry.Fingerprint, size: size}

	if node, ok := c.items[key]; ok {
		c.size += size - node.entry.size
		node.entry = stored
		c.moveToHead(node)
	} else {
		node := &lruNode{key: key, entry: stored}
		c.items[key] = node
		c.addToHead(node)
		c.size += size
	}

	// 淘汰最久未使用的，直到满足容量；刚写入的条目位于头部，不会被淘汰
	for c.size > c.capacity && c.tail != nil && c.tail != c.head {
		c.evictTail()
	}

	c.publishUsage()
	return true
}

// Contains 判断键是否存在，不影响最近使用顺序和命中统计
func (c *ProcessingCache) Contains(key ContentKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.items[key]
	return ok
}

// Delete 删除缓存
func (c *ProcessingCache) Delete(key ContentKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(node)
	c.publishUsage()
	return true
}

// Clear 清空缓存，统计计数保留
func (c *ProcessingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[ContentKey]*lruNode)
	c.head = nil
	c.tail = nil
	c.size = 0
	c.publishUsage()
}

// Len 返回条目数
func (c *ProcessingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Size 返回当前占用
func (c *ProcessingCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Capacity 返回容量
func (c *ProcessingCache) Capacity() int64 {
	return c.capacity
}

// Unit 返回容量单位
func (c *ProcessingCache) Unit() Unit {
	return c.unit
}

// Keys 按最近使用到最久未使用的顺序返回所有键
func (c *ProcessingCache) Keys() []ContentKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]ContentKey, 0, len(c.items))
	for n := c.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats 返回统计快照
func (c *ProcessingCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.size
	stats.Entries = len(c.items)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// formatCapacity 按单位格式化容量
func (c *ProcessingCache) formatCapacity(v int64) string {
	if c.unit == UnitBytes {
		return humanize.IBytes(uint64(v))
	}
	return fmt.Sprintf("%d %s", v, c.unit)
}

func (c *ProcessingCache) record(fn func(Recorder)) {
	if c.recorder != nil {
		fn(c.recorder)
	}
}

// publishUsage 上报当前占用（需持有锁）
func (c *ProcessingCache) publishUsage() {
	c.record(func(r Recorder) { r.SetCacheUsage(c.name, c.size, len(c.items)) })
}

// addToHead 添加节点到头部 O(1)
func (c *ProcessingCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// removeNode 从链表中移除节点 O(1)
func (c *ProcessingCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

// moveToHead 移动节点到头部 O(1)
func (c *ProcessingCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

// unlink 从 map 与链表中移除节点并扣减占用
func (c *ProcessingCache) unlink(node *lruNode) {
	c.removeNode(node)
	delete(c.items, node.key)
	c.size -= node.entry.size
}

// evictTail 淘汰尾部节点 O(1)
func (c *ProcessingCache) evictTail() {
	if c.tail == nil {
		return
	}
	c.unlink(c.tail)
	c.stats.Evictions++
	c.record(func(r Recorder) { r.RecordCacheEviction(c.name) })
}
