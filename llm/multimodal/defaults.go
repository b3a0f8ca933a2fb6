package multimodal

import "github.com/BaSui01/mmcache/types"

// 输出张量名称
const (
	TensorPixelValues       = "pixel_values"
	TensorPixelValuesVideos = "pixel_values_videos"
	TensorInputFeatures     = "input_features"
)

// 元数据键
const (
	MetaGridT        = "grid_t"
	MetaGridH        = "grid_h"
	MetaGridW        = "grid_w"
	MetaSourceFrames = "source_frames"
	MetaFrames       = "frames"
	MetaSamples      = "samples"
)

// DefaultLimit 未配置时每种模态的条目上限
const DefaultLimit = 3

// DefaultImageParams 返回默认图像参数（CLIP 归一化，224px，14px patch，2x2 合并）.
func DefaultImageParams() types.ImageParams {
	return types.ImageParams{
		Size:      224,
		PatchSize: 14,
		MergeSize: 2,
		Mean:      [3]float32{0.48145466, 0.4578275, 0.40821073},
		Std:       [3]float32{0.26862954, 0.26130258, 0.27577711},
	}
}

// DefaultVideoParams 返回默认视频参数，帧分辨率低于图像以控制 token 数.
func DefaultVideoParams() types.VideoParams {
	img := DefaultImageParams()
	img.Size = 112
	return types.VideoParams{
		Image:             img,
		MinFrames:         2,
		MaxFrames:         16,
		TemporalPatchSize: 2,
	}
}

// DefaultAudioParams 返回默认音频参数（16kHz，25ms 窗口，10ms 步长）.
func DefaultAudioParams() types.AudioParams {
	return types.AudioParams{
		TargetSampleRate: 16000,
		SampleRatePolicy: types.SampleRateResample,
		WindowSize:       400,
		HopLength:        160,
		FeatureSize:      80,
		MinSamples:       400,
		MaxSamples:       16000 * 30,
	}
}

// DefaultParameters 返回全部模态的默认参数.
func DefaultParameters() types.ProcessingParameters {
	limits := make(map[types.Modality]int, len(types.CanonicalModalities))
	for _, m := range types.CanonicalModalities {
		limits[m] = DefaultLimit
	}
	return types.ProcessingParameters{
		Image:  DefaultImageParams(),
		Video:  DefaultVideoParams(),
		Audio:  DefaultAudioParams(),
		Limits: limits,
	}
}
