package multimodal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mmcache/llm/cache"
	"github.com/BaSui01/mmcache/llm/tokenizer"
	"github.com/BaSui01/mmcache/testutil/mocks"
	"github.com/BaSui01/mmcache/types"
)

// smallParams 返回计算量很小的参数，测试用
func smallParams() types.ProcessingParameters {
	img := types.ImageParams{
		Size:      28,
		PatchSize: 14,
		MergeSize: 1,
		Mean:      [3]float32{0.5, 0.5, 0.5},
		Std:       [3]float32{0.5, 0.5, 0.5},
	}
	return types.ProcessingParameters{
		Image: img,
		Video: types.VideoParams{Image: img, MinFrames: 2, MaxFrames: 6, TemporalPatchSize: 2},
		Audio: types.AudioParams{
			TargetSampleRate: 16000,
			SampleRatePolicy: types.SampleRateResample,
			WindowSize:       64,
			HopLength:        32,
			FeatureSize:      8,
			MinSamples:       64,
			MaxSamples:       2048,
		},
		Limits: map[types.Modality]int{
			types.ModalityImage: 4,
			types.ModalityVideo: 2,
			types.ModalityAudio: 3,
		},
	}
}

func newTestEncoder(t *testing.T) *tokenizer.TemplateEncoder {
	t.Helper()
	enc, err := tokenizer.NewTemplateEncoder(tokenizer.NewEstimatorTokenizer("test", 0), nil)
	require.NoError(t, err)
	return enc
}

// countingRegistry 返回包装了计数器的默认处理器
func countingRegistry() (*Registry, map[types.Modality]*mocks.MockAdapter) {
	counters := map[types.Modality]*mocks.MockAdapter{
		types.ModalityImage: mocks.NewMockAdapter(NewImageProcessor()),
		types.ModalityVideo: mocks.NewMockAdapter(NewVideoProcessor()),
		types.ModalityAudio: mocks.NewMockAdapter(NewAudioProcessor()),
	}
	r := NewRegistry()
	for _, c := range counters {
		r.Register(c)
	}
	return r, counters
}

func newCachedProcessor(t *testing.T, capacity int64, opts ...Option) *Processor {
	t.Helper()
	c, err := cache.NewProcessingCache(capacity)
	require.NoError(t, err)
	p, err := NewProcessor(smallParams(), newTestEncoder(t), append([]Option{WithCache(c)}, opts...)...)
	require.NoError(t, err)
	return p
}

func newBaselineProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(smallParams(), newTestEncoder(t), WithDedupe(false))
	require.NoError(t, err)
	return p
}

// promptFor 生成与条目数匹配的提示词
func promptFor(t *testing.T, data types.MMData) string {
	t.Helper()
	return newTestEncoder(t).DummyPrompt(data.Counts())
}
