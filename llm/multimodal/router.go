package multimodal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/mmcache/types"
)

// Adapter 单模态处理器.
// Process 必须是纯函数：相同的条目与参数总是得到结构相同的结果。
// 畸形输入返回 MALFORMED_INPUT 错误。
type Adapter interface {
	Modality() types.Modality
	Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error)
}

// Registry 按模态标签路由到对应的 Adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.Modality]Adapter
}

// NewRegistry 创建空注册表.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[types.Modality]Adapter)}
}

// DefaultRegistry 返回注册了图像、视频、音频处理器的注册表.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewImageProcessor())
	r.Register(NewVideoProcessor())
	r.Register(NewAudioProcessor())
	return r
}

// Register 注册处理器，同一模态后注册的覆盖先注册的.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Modality()] = a
}

// Adapter 获取模态对应的处理器.
func (r *Registry) Adapter(m types.Modality) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[m]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for modality %q", m)
	}
	return a, nil
}

// HasModality 检查模态是否已注册.
func (r *Registry) HasModality(m types.Modality) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[m]
	return ok
}

// Modalities 返回已注册的模态，按名称排序.
func (r *Registry) Modalities() []types.Modality {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Modality, 0, len(r.adapters))
	for m := range r.adapters {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Process 按条目的模态标签分发处理.
func (r *Registry) Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error) {
	if item == nil {
		return nil, types.NewMalformedInputError("nil item")
	}
	a, err := r.Adapter(item.Modality())
	if err != nil {
		return nil, types.NewError(types.ErrMalformedInput, "unsupported modality").WithCause(err)
	}
	return a.Process(item, params)
}
