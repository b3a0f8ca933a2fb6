package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mmcache/types"
)

// itemOfFloats 构造一个带 n 个 float32 的处理结果
func itemOfFloats(n int, fill float32) *types.ProcessedItem {
	t := types.NewTensor(n)
	for i := range t.Data {
		t.Data[i] = fill
	}
	return &types.ProcessedItem{
		Modality:  types.ModalityImage,
		Tensors:   map[string]types.Tensor{"pixel_values": t},
		NumTokens: 1,
	}
}

func newSlotCache(t *testing.T, capacity int64) *ProcessingCache {
	t.Helper()
	c, err := NewProcessingCache(capacity, WithUnit(UnitEntries), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return c
}

func TestNewProcessingCache_RejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int64{0, -1} {
		c, err := NewProcessingCache(capacity)
		assert.Nil(t, c)
		require.Error(t, err)
		assert.True(t, types.IsCapacityConfig(err), "expected CAPACITY_CONFIG, got %v", err)
	}

	_, err := NewProcessingCache(10, WithUnit("furlongs"))
	assert.True(t, types.IsCapacityConfig(err))
}

func TestProcessingCache_Basic(t *testing.T) {
	c := newSlotCache(t, 3)

	entry := NewEntry(itemOfFloats(4, 1), 0)
	assert.True(t, c.Put("key1", entry))

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	assert.Same(t, entry.Item, got.Item)
	assert.Equal(t, int64(1), got.Size())

	_, err := c.Lookup("missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// 容量 2：写入 A、B；Get(A)；写入 C → B 被淘汰，A 与 C 保留
func TestProcessingCache_LRUScenario(t *testing.T) {
	c := newSlotCache(t, 2)

	a := NewEntry(itemOfFloats(1, 1), 0)
	b := NewEntry(itemOfFloats(1, 2), 0)
	cc := NewEntry(itemOfFloats(1, 3), 0)

	c.Put("A", a)
	c.Put("B", b)
	_, ok := c.Get("A")
	require.True(t, ok)

	c.Put("C", cc)

	if _, ok := c.Get("B"); ok {
		t.Error("B should have been evicted")
	}
	got, ok := c.Get("A")
	require.True(t, ok, "A should survive")
	assert.Same(t, a.Item, got.Item, "A should keep its original value")
	assert.True(t, c.Contains("C"))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestProcessingCache_EvictionTieBreakIsInsertionOrder(t *testing.T) {
	c := newSlotCache(t, 3)

	for _, k := range []ContentKey{"k1", "k2", "k3"} {
		c.Put(k, NewEntry(itemOfFloats(1, 0), 0))
	}
	c.Put("k4", NewEntry(itemOfFloats(1, 0), 0))

	assert.Equal(t, []ContentKey{"k4", "k3", "k2"}, c.Keys())
}

func TestProcessingCache_ContainsDoesNotTouchRecency(t *testing.T) {
	c := newSlotCache(t, 2)

	c.Put("A", NewEntry(itemOfFloats(1, 0), 0))
	c.Put("B", NewEntry(itemOfFloats(1, 0), 0))
	assert.True(t, c.Contains("A"))
	c.Put("C", NewEntry(itemOfFloats(1, 0), 0))

	assert.False(t, c.Contains("A"), "Contains must not refresh A")
	assert.True(t, c.Contains("B"))

	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestProcessingCache_OversizeEntryIsNotRetained(t *testing.T) {
	small := NewEntry(itemOfFloats(8, 0), 0)
	capacity := ByteSizer(small) * 2

	c, err := NewProcessingCache(capacity)
	require.NoError(t, err)

	c.Put("small", small)
	big := NewEntry(itemOfFloats(1024, 0), 0)
	require.Greater(t, ByteSizer(big), capacity)

	assert.False(t, c.Put("big", big), "oversize entry must not be retained")
	_, ok := c.Get("big")
	assert.False(t, ok)
	assert.True(t, c.Contains("small"), "rejecting an oversize entry must not evict others")
	assert.Equal(t, int64(1), c.Stats().Rejections)

	// 同键的旧条目在超大写入后也必须失效
	c.Put("small", big)
	assert.False(t, c.Contains("small"))
	assert.Zero(t, c.Size())
}

func TestProcessingCache_ByteBudget(t *testing.T) {
	unit := ByteSizer(NewEntry(itemOfFloats(16, 0), 0))
	c, err := NewProcessingCache(unit*3 + unit/2)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Put(ContentKey(fmt.Sprintf("k%d", i)), NewEntry(itemOfFloats(16, float32(i)), 0))
		assert.LessOrEqual(t, c.Size(), c.Capacity())
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []ContentKey{"k9", "k8", "k7"}, c.Keys())
}

func TestProcessingCache_UpdateExistingKey(t *testing.T) {
	unit := ByteSizer(NewEntry(itemOfFloats(16, 0), 0))
	c, err := NewProcessingCache(unit * 3)
	require.NoError(t, err)

	c.Put("a", NewEntry(itemOfFloats(16, 0), 0))
	c.Put("b", NewEntry(itemOfFloats(16, 0), 0))
	c.Put("c", NewEntry(itemOfFloats(16, 0), 0))

	// 变大后的 a 需要淘汰最久未使用的 b
	bigger := NewEntry(itemOfFloats(32, 1), 0)
	require.True(t, c.Put("a", bigger))

	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, bigger.Item, got.Item)
	assert.LessOrEqual(t, c.Size(), c.Capacity())
}

func TestProcessingCache_DeleteAndClear(t *testing.T) {
	c := newSlotCache(t, 4)
	c.Put("a", NewEntry(itemOfFloats(1, 0), 0))
	c.Put("b", NewEntry(itemOfFloats(1, 0), 0))

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, int64(1), c.Size())

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
	assert.Empty(t, c.Keys())
}

func TestProcessingCache_NilEntryIgnored(t *testing.T) {
	c := newSlotCache(t, 1)
	assert.False(t, c.Put("a", nil))
	assert.False(t, c.Put("a", &Entry{}))
	assert.Zero(t, c.Len())
}

func TestProcessingCache_Stats(t *testing.T) {
	c := newSlotCache(t, 2)
	c.Put("a", NewEntry(itemOfFloats(1, 0), 0))
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, UnitEntries, stats.Unit)
	assert.Equal(t, int64(2), stats.Capacity)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

type recordingRecorder struct {
	mu                                 sync.Mutex
	hits, misses, evictions, rejection int
	size                               int64
	entries                            int
}

func (r *recordingRecorder) RecordCacheHit(string) { r.mu.Lock(); r.hits++; r.mu.Unlock() }
func (r *recordingRecorder) RecordCacheMiss(string) { r.mu.Lock(); r.misses++; r.mu.Unlock() }
func (r *recordingRecorder) RecordCacheEviction(string) {
	r.mu.Lock()
	r.evictions++
	r.mu.Unlock()
}
func (r *recordingRecorder) RecordCacheRejection(string) {
	r.mu.Lock()
	r.rejection++
	r.mu.Unlock()
}
func (r *recordingRecorder) SetCacheUsage(_ string, size int64, entries int) {
	r.mu.Lock()
	r.size, r.entries = size, entries
	r.mu.Unlock()
}

func TestProcessingCache_Recorder(t *testing.T) {
	rec := &recordingRecorder{}
	c, err := NewProcessingCache(1, WithUnit(UnitEntries), WithRecorder(rec), WithName("test"))
	require.NoError(t, err)

	c.Put("a", NewEntry(itemOfFloats(1, 0), 0))
	c.Get("a")
	c.Get("b")
	c.Put("b", NewEntry(itemOfFloats(1, 0), 0))
	c.Put("c", &Entry{Item: itemOfFloats(1, 0)})

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 2, rec.evictions)
	assert.Equal(t, int64(1), rec.size)
	assert.Equal(t, 1, rec.entries)
}

func TestProcessingCache_ConcurrentPutsNeverOvershoot(t *testing.T) {
	unit := ByteSizer(NewEntry(itemOfFloats(8, 0), 0))
	c, err := NewProcessingCache(unit * 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := ContentKey(fmt.Sprintf("w%d-%d", w, i%20))
				if _, ok := c.Get(key); !ok {
					c.Put(key, NewEntry(itemOfFloats(8, float32(i)), 0))
				}
				if size := c.Size(); size > c.Capacity() {
					t.Errorf("size %d exceeds capacity %d", size, c.Capacity())
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), c.Capacity())
	assert.LessOrEqual(t, c.Len(), 5)
}
