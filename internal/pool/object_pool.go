// Package pool provides typed object pooling on top of sync.Pool.
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool.
type Pool[T any] struct {
	pool    sync.Pool
	newFunc func() T
	reset   func(*T)

	// Metrics
	gets   atomic.Int64
	puts   atomic.Int64
	news   atomic.Int64
	resets atomic.Int64
}

// NewPool creates a new object pool.
func NewPool[T any](newFunc func() T, resetFunc func(*T)) *Pool[T] {
	p := &Pool[T]{
		newFunc: newFunc,
		reset:   resetFunc,
	}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	p.puts.Add(1)
	if p.reset != nil {
		p.resets.Add(1)
		p.reset(&obj)
	}
	p.pool.Put(obj)
}

// Stats returns pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Gets:   p.gets.Load(),
		Puts:   p.puts.Load(),
		News:   p.news.Load(),
		Resets: p.resets.Load(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Gets   int64 `json:"gets"`
	Puts   int64 `json:"puts"`
	News   int64 `json:"news"`
	Resets int64 `json:"resets"`
}

// HitRate returns the fraction of Gets served without allocating.
func (s PoolStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}

// SlicePool hands out scratch slices of a requested length.
// Contents of a returned slice are unspecified; callers overwrite them.
type SlicePool[T any] struct {
	pool *Pool[*[]T]
}

// NewSlicePool creates a new slice pool whose fresh slices have capacity initSize.
func NewSlicePool[T any](initSize int) *SlicePool[T] {
	return &SlicePool[T]{
		pool: NewPool(
			func() *[]T {
				s := make([]T, 0, initSize)
				return &s
			},
			func(s **[]T) {
				**s = (**s)[:0] // Reset length but keep capacity
			},
		),
	}
}

// Get returns a slice of length n, growing the pooled backing array if needed.
func (p *SlicePool[T]) Get(n int) *[]T {
	s := p.pool.Get()
	if cap(*s) < n {
		*s = make([]T, n)
	} else {
		*s = (*s)[:n]
	}
	return s
}

// Put returns a slice to the pool.
func (p *SlicePool[T]) Put(s *[]T) {
	if s == nil {
		return
	}
	p.pool.Put(s)
}

// Stats returns statistics of the underlying pool.
func (p *SlicePool[T]) Stats() PoolStats {
	return p.pool.Stats()
}
