package multimodal

import (
	"github.com/BaSui01/mmcache/types"
)

// VideoProcessor 在帧数上下限内均匀采样帧，再逐帧做图像变换.
type VideoProcessor struct{}

// NewVideoProcessor 创建视频处理器.
func NewVideoProcessor() *VideoProcessor {
	return &VideoProcessor{}
}

func (p *VideoProcessor) Modality() types.Modality {
	return types.ModalityVideo
}

// Process 输出 pixel_values_videos [n, 3, S, S].
func (p *VideoProcessor) Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error) {
	video, ok := item.(*types.VideoItem)
	if !ok {
		return nil, types.NewMalformedInputError("video processor got %T", item)
	}
	if err := video.Validate(); err != nil {
		return nil, err
	}

	vp := params.Video
	indices := SampleFrameIndices(len(video.Frames), vp)
	size := vp.Image.Size
	frameLen := 3 * size * size

	pixels := types.NewTensor(len(indices), 3, size, size)
	for i, src := range indices {
		resizeNormalize(video.Frames[src], vp.Image, pixels.Data[i*frameLen:(i+1)*frameLen])
	}

	gridT := len(indices) / vp.TemporalPatchSize
	grid := size / vp.Image.PatchSize
	return &types.ProcessedItem{
		Modality: types.ModalityVideo,
		Tensors:  map[string]types.Tensor{TensorPixelValuesVideos: pixels},
		Metadata: map[string]int{
			MetaGridT:        gridT,
			MetaGridH:        grid,
			MetaGridW:        grid,
			MetaFrames:       len(indices),
			MetaSourceFrames: len(video.Frames),
		},
		NumTokens: gridT * vp.Image.TokensPerImage(),
	}, nil
}

// SampleFrameIndices 返回采样帧在源视频中的下标.
// 采样数先限制在 [MinFrames, MaxFrames]，再向上取整到 TemporalPatchSize 的倍数；
// 帧数不足时重复帧。下标为 round(i*(T-1)/(n-1))，全程整数运算。
func SampleFrameIndices(total int, p types.VideoParams) []int {
	n := total
	if n < p.MinFrames {
		n = p.MinFrames
	}
	if n > p.MaxFrames {
		n = p.MaxFrames
	}
	if tps := p.TemporalPatchSize; n%tps != 0 {
		n += tps - n%tps
	}

	out := make([]int, n)
	if n == 1 || total == 1 {
		return out
	}
	for i := range out {
		out[i] = (2*i*(total-1) + (n - 1)) / (2 * (n - 1))
	}
	return out
}
