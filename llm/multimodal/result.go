package multimodal

import (
	"slices"

	"github.com/BaSui01/mmcache/types"
)

// PlaceholderRange 是某个条目在展开后的 token 序列中占据的区间.
type PlaceholderRange struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// ApplyStats 记录一次 Apply 的缓存使用情况，不参与结果比较.
type ApplyStats struct {
	Items    int // 请求中的条目总数
	Unique   int // 去重后的条目数
	Hits     int
	Computed int
}

// ProcessingResult 是一次请求的完整预处理输出.
type ProcessingResult struct {
	RequestID      string
	PromptTokenIDs []int
	MMItems        map[types.Modality][]*types.ProcessedItem
	Placeholders   map[types.Modality][]PlaceholderRange
	Stats          ApplyStats
}

// Items 返回某模态的有序结果，缺失的模态返回空.
func (r *ProcessingResult) Items(m types.Modality) []*types.ProcessedItem {
	return r.MMItems[m]
}

// Flatten 按规范模态顺序（image, video, audio）拼接所有结果.
func (r *ProcessingResult) Flatten() []*types.ProcessedItem {
	var out []*types.ProcessedItem
	for _, m := range types.CanonicalModalities {
		out = append(out, r.MMItems[m]...)
	}
	return out
}

// NumItems 返回结果条目总数.
func (r *ProcessingResult) NumItems() int {
	n := 0
	for _, m := range types.CanonicalModalities {
		n += len(r.MMItems[m])
	}
	return n
}

// Equal 结构化比较 token 序列、各模态结果与占位区间.
// RequestID 与 Stats 不参与比较；缺失的模态等同于空列表。
func (r *ProcessingResult) Equal(o *ProcessingResult) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !slices.Equal(r.PromptTokenIDs, o.PromptTokenIDs) {
		return false
	}
	for _, m := range types.CanonicalModalities {
		a, b := r.MMItems[m], o.MMItems[m]
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		if !slices.Equal(r.Placeholders[m], o.Placeholders[m]) {
			return false
		}
	}
	return true
}
