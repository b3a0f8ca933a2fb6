// MockAdapter 多模态处理器的测试模拟实现。
//
// 包装真实处理器统计调用次数，支持错误注入与延迟。
package mocks

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/mmcache/types"
)

// ErrInjected MockAdapter 默认注入的错误
var ErrInjected = errors.New("mock adapter: injected failure")

// Processor 与 multimodal.Adapter 方法集一致
type Processor interface {
	Modality() types.Modality
	Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error)
}

// MockAdapter 包装一个 Processor
type MockAdapter struct {
	inner Processor

	mu        sync.RWMutex
	err       error
	failAfter int // 第 N 次调用之后开始失败，0 表示不失败
	delay     time.Duration

	calls atomic.Int64
}

// NewMockAdapter 创建新的 MockAdapter
func NewMockAdapter(inner Processor) *MockAdapter {
	return &MockAdapter{inner: inner}
}

// WithError 每次调用都返回 err
func (m *MockAdapter) WithError(err error) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter 前 n 次调用成功，之后返回 ErrInjected
func (m *MockAdapter) WithFailAfter(n int) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithDelay 每次调用前休眠
func (m *MockAdapter) WithDelay(d time.Duration) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

func (m *MockAdapter) Modality() types.Modality {
	return m.inner.Modality()
}

func (m *MockAdapter) Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error) {
	n := m.calls.Add(1)

	m.mu.RLock()
	err, failAfter, delay := m.err, m.failAfter, m.delay
	m.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if failAfter > 0 && n > int64(failAfter) {
		return nil, ErrInjected
	}
	return m.inner.Process(item, params)
}

// Calls 返回 Process 调用次数
func (m *MockAdapter) Calls() int64 {
	return m.calls.Load()
}

// Reset 清零调用计数
func (m *MockAdapter) Reset() {
	m.calls.Store(0)
}
