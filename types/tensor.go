package types

import (
	"math"
	"slices"
	"sort"
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: slices.Clone(shape), Data: make([]float32, n)}
}

// Clone deep-copies t.
func (t Tensor) Clone() Tensor {
	return Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// Equal compares shape and bit patterns, so NaN equals NaN and -0 differs
// from +0. Processing is deterministic, so bit equality is the contract.
func (t Tensor) Equal(o Tensor) bool {
	if !slices.Equal(t.Shape, o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if math.Float32bits(t.Data[i]) != math.Float32bits(o.Data[i]) {
			return false
		}
	}
	return true
}

// ProcessedItem is the model-ready output for one raw item.
type ProcessedItem struct {
	Modality  Modality
	Tensors   map[string]Tensor
	Metadata  map[string]int
	NumTokens int // placeholder tokens this item expands to in the prompt
}

const processedItemOverhead = 64

// SizeBytes estimates the memory held by the item.
func (p *ProcessedItem) SizeBytes() int64 {
	if p == nil {
		return 0
	}
	size := int64(processedItemOverhead)
	for name, t := range p.Tensors {
		size += int64(len(name)) + 4*int64(len(t.Data)) + 8*int64(len(t.Shape))
	}
	for name := range p.Metadata {
		size += int64(len(name)) + 8
	}
	return size
}

// Clone deep-copies p so the copy can be handed to callers without exposing
// cached state.
func (p *ProcessedItem) Clone() *ProcessedItem {
	if p == nil {
		return nil
	}
	cp := &ProcessedItem{
		Modality:  p.Modality,
		NumTokens: p.NumTokens,
	}
	if p.Tensors != nil {
		cp.Tensors = make(map[string]Tensor, len(p.Tensors))
		for k, t := range p.Tensors {
			cp.Tensors[k] = t.Clone()
		}
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]int, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

// Equal is structural equality, tensor by tensor.
func (p *ProcessedItem) Equal(o *ProcessedItem) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Modality != o.Modality || p.NumTokens != o.NumTokens {
		return false
	}
	if len(p.Tensors) != len(o.Tensors) || len(p.Metadata) != len(o.Metadata) {
		return false
	}
	for k, t := range p.Tensors {
		ot, ok := o.Tensors[k]
		if !ok || !t.Equal(ot) {
			return false
		}
	}
	for k, v := range p.Metadata {
		if ov, ok := o.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// TensorNames returns tensor names in sorted order.
func (p *ProcessedItem) TensorNames() []string {
	names := make([]string, 0, len(p.Tensors))
	for k := range p.Tensors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
