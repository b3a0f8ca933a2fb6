package multimodal

import (
	"math"
	"sync"

	"github.com/BaSui01/mmcache/internal/pool"
	"github.com/BaSui01/mmcache/types"
)

// logFloor 避免对零能量取对数
const logFloor = 1e-10

// windowScratch 为每次 Process 提供窗口大小的 float64 暂存区
var windowScratch = pool.NewSlicePool[float64](512)

// AudioProcessor 重采样到目标采样率，裁剪/补零后按帧提取频带对数能量.
type AudioProcessor struct {
	extractors sync.Map // [2]int{window, features} -> *bandExtractor
}

// NewAudioProcessor 创建音频处理器.
func NewAudioProcessor() *AudioProcessor {
	return &AudioProcessor{}
}

func (p *AudioProcessor) Modality() types.Modality {
	return types.ModalityAudio
}

// Process 输出 input_features [frames, FeatureSize].
func (p *AudioProcessor) Process(item types.RawItem, params types.ProcessingParameters) (*types.ProcessedItem, error) {
	audio, ok := item.(*types.AudioItem)
	if !ok {
		return nil, types.NewMalformedInputError("audio processor got %T", item)
	}
	if err := audio.Validate(); err != nil {
		return nil, err
	}

	ap := params.Audio
	samples := audio.Samples
	if audio.SampleRate != ap.TargetSampleRate {
		if ap.SampleRatePolicy == types.SampleRateStrict {
			return nil, types.NewMalformedInputError("audio sample rate %d does not match %d",
				audio.SampleRate, ap.TargetSampleRate)
		}
		samples = Resample(samples, audio.SampleRate, ap.TargetSampleRate, ap.MaxSamples)
	}
	samples = fitLength(samples, ap.MinSamples, ap.MaxSamples)

	frames := 1 + (len(samples)-ap.WindowSize)/ap.HopLength
	features := types.NewTensor(frames, ap.FeatureSize)
	ext := p.extractor(ap.WindowSize, ap.FeatureSize)
	buf := windowScratch.Get(ap.WindowSize)
	defer windowScratch.Put(buf)
	for f := 0; f < frames; f++ {
		start := f * ap.HopLength
		ext.extract(samples[start:start+ap.WindowSize], features.Data[f*ap.FeatureSize:(f+1)*ap.FeatureSize], *buf)
	}

	return &types.ProcessedItem{
		Modality: types.ModalityAudio,
		Tensors:  map[string]types.Tensor{TensorInputFeatures: features},
		Metadata: map[string]int{
			MetaFrames:  frames,
			MetaSamples: len(samples),
		},
		NumTokens: (frames + 1) / 2,
	}, nil
}

// extractor 按 (窗口, 频带数) 复用 DFT 系数表，表只读，可并发使用.
func (p *AudioProcessor) extractor(windowSize, featureSize int) *bandExtractor {
	key := [2]int{windowSize, featureSize}
	if v, ok := p.extractors.Load(key); ok {
		return v.(*bandExtractor)
	}
	v, _ := p.extractors.LoadOrStore(key, newBandExtractor(windowSize, featureSize))
	return v.(*bandExtractor)
}

// Resample 线性插值重采样. 输入不会被修改，采样率相同时返回原切片.
// maxLen > 0 时只生成前 maxLen 个输出样本，前缀与不限长时逐点相同.
func Resample(input []float32, fromRate, toRate, maxLen int) []float32 {
	if fromRate == toRate {
		return input
	}

	ratio := float64(toRate) / float64(fromRate)
	n := math.Ceil(float64(len(input)) * ratio)
	if maxLen > 0 && n > float64(maxLen) {
		n = float64(maxLen)
	}
	output := make([]float32, int(n))
	for i := range output {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(input) {
			output[i] = input[srcIdx]*(1-frac) + input[srcIdx+1]*frac
		} else if srcIdx < len(input) {
			output[i] = input[srcIdx]
		}
	}
	return output
}

// fitLength 截断到 maxLen，不足 minLen 时补零. 返回的切片不与输入共享尾部.
func fitLength(samples []float32, minLen, maxLen int) []float32 {
	if len(samples) > maxLen {
		samples = samples[:maxLen]
	}
	if len(samples) >= minLen {
		return samples
	}
	out := make([]float32, minLen)
	copy(out, samples)
	return out
}

// bandExtractor 对加窗帧做 DFT，把 0..W/2 的功率谱均分为若干频带求对数能量
type bandExtractor struct {
	window []float64
	cos    [][]float64
	sin    [][]float64
	bands  [][2]int // 每个频带的 [起始, 结束) 频点
}

func newBandExtractor(windowSize, featureSize int) *bandExtractor {
	bins := windowSize/2 + 1
	e := &bandExtractor{
		window: make([]float64, windowSize),
		cos:    make([][]float64, bins),
		sin:    make([][]float64, bins),
		bands:  make([][2]int, featureSize),
	}
	// 周期 Hann 窗
	for n := range e.window {
		e.window[n] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(windowSize))
	}
	for k := 0; k < bins; k++ {
		e.cos[k] = make([]float64, windowSize)
		e.sin[k] = make([]float64, windowSize)
		for n := 0; n < windowSize; n++ {
			phase := 2 * math.Pi * float64((k*n)%windowSize) / float64(windowSize)
			e.cos[k][n] = math.Cos(phase)
			e.sin[k][n] = math.Sin(phase)
		}
	}
	for b := range e.bands {
		lo := b * bins / featureSize
		hi := (b + 1) * bins / featureSize
		if hi <= lo {
			hi = lo + 1
		}
		e.bands[b] = [2]int{lo, hi}
	}
	return e
}

// extract 写入一帧的频带能量，buf 为调用方提供的窗口大小的暂存区.
func (e *bandExtractor) extract(frame []float32, dst []float32, buf []float64) {
	for n, s := range frame {
		buf[n] = float64(s) * e.window[n]
	}
	for b, band := range e.bands {
		var energy float64
		for k := band[0]; k < band[1]; k++ {
			var re, im float64
			ck, sk := e.cos[k], e.sin[k]
			for n, v := range buf {
				re += float64(v * ck[n])
				im -= float64(v * sk[n])
			}
			energy += float64(re*re) + float64(im*im)
		}
		dst[b] = float32(math.Log10(math.Max(energy, logFloor)))
	}
}
