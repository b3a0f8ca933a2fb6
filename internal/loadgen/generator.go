// Package loadgen 按命中率生成多模态批量请求，用于对比带缓存与不带缓存的处理结果.
//
// 每个条目以 HitRate 的概率取该模态固定的"命中"输入（必然在第二次出现时命中缓存），
// 否则随机生成新的图像、视频或音频. SimplifyRate 控制请求形状：
// 单元素列表折叠为单个条目，空模态被删除，两种形状应得到相同结果.
package loadgen

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/BaSui01/mmcache/types"
)

// 随机输入的尺寸范围，上界不含
const (
	minImageSide = 128
	maxImageSide = 256
	minFrames    = 2
	maxFrames    = 8
	minSamples   = 512
	maxSamples   = 1024

	hitImageSide = 128
	hitFrames    = 4
	hitSamples   = 512

	// DefaultSampleRate 生成音频的采样率
	DefaultSampleRate = 16000
)

// Prompter 为给定的条目数量构造带占位符的提示词.
// tokenizer.TemplateEncoder 实现该接口.
type Prompter interface {
	DummyPrompt(counts map[types.Modality]int) string
}

// Config 生成器配置
type Config struct {
	HitRate      float64                `json:"hit_rate"`
	SimplifyRate float64                `json:"simplify_rate"`
	Limits       map[types.Modality]int `json:"limits"`
	Seed         uint64                 `json:"seed"`
	SampleRate   int                    `json:"sample_rate"`
}

// Validate 检查配置
func (c Config) Validate() error {
	if c.HitRate < 0 || c.HitRate > 1 {
		return types.Errorf(types.ErrInvalidConfig, "hit rate %v out of [0,1]", c.HitRate)
	}
	if c.SimplifyRate < 0 || c.SimplifyRate > 1 {
		return types.Errorf(types.ErrInvalidConfig, "simplify rate %v out of [0,1]", c.SimplifyRate)
	}
	for m, n := range c.Limits {
		if !m.Valid() {
			return types.Errorf(types.ErrInvalidConfig, "unknown modality %q in limits", m)
		}
		if n < 0 {
			return types.Errorf(types.ErrInvalidConfig, "negative limit %d for %s", n, m)
		}
	}
	if c.SampleRate < 0 {
		return types.Errorf(types.ErrInvalidConfig, "negative sample rate %d", c.SampleRate)
	}
	return nil
}

// Stats 已生成的请求统计
type Stats struct {
	Batches    int
	Items      int
	HitItems   int
	Simplified int
}

// Generator 可复现的请求生成器. 非并发安全.
type Generator struct {
	cfg      Config
	rng      *rand.Rand
	hits     map[types.Modality]types.RawItem
	prompter Prompter
	logger   *zap.Logger
	stats    Stats
}

// New 创建生成器. 相同的 Seed 产生相同的请求序列.
func New(cfg Config, prompter Prompter, logger *zap.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prompter == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "loadgen requires a prompter")
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limits := make(map[types.Modality]int, len(cfg.Limits))
	for m, n := range cfg.Limits {
		limits[m] = n
	}
	cfg.Limits = limits

	return &Generator{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		hits:     HitInputs(cfg.SampleRate),
		prompter: prompter,
		logger:   logger.With(zap.String("component", "loadgen")),
	}, nil
}

// HitInputs 返回每个模态固定的命中输入：黑色 128×128 图像、4 帧黑色视频、512 个零采样.
func HitInputs(sampleRate int) map[types.Modality]types.RawItem {
	black := func() *types.ImageItem {
		return types.NewImageItem(hitImageSide, hitImageSide, make([]byte, hitImageSide*hitImageSide*3))
	}
	frames := make([]*types.ImageItem, hitFrames)
	for i := range frames {
		frames[i] = black()
	}
	return map[types.Modality]types.RawItem{
		types.ModalityImage: black(),
		types.ModalityVideo: types.NewVideoItem(frames...),
		types.ModalityAudio: types.NewAudioItem(make([]float32, hitSamples), sampleRate),
	}
}

// Next 生成下一个请求. 每个模态恰好生成 Limits 个条目.
func (g *Generator) Next() types.BatchRequest {
	g.stats.Batches++

	items := make(map[types.Modality][]types.RawItem, len(g.cfg.Limits))
	counts := make(map[types.Modality]int, len(g.cfg.Limits))
	for _, m := range types.CanonicalModalities {
		limit, ok := g.cfg.Limits[m]
		if !ok {
			continue
		}
		list := make([]types.RawItem, 0, limit)
		for i := 0; i < limit; i++ {
			if g.rng.Float64() < g.cfg.HitRate {
				list = append(list, g.hits[m])
				g.stats.HitItems++
			} else {
				list = append(list, g.random(m))
			}
		}
		g.stats.Items += limit
		items[m] = list
		counts[m] = limit
	}

	prompt := g.prompter.DummyPrompt(counts)

	simplify := g.rng.Float64() < g.cfg.SimplifyRate
	data := make(types.MMData, len(items))
	for m, list := range items {
		switch {
		case simplify && len(list) == 0:
			// 删除空模态
		case simplify && len(list) == 1:
			data[m] = types.One(list[0])
		default:
			data[m] = types.Many(list...)
		}
	}
	if simplify {
		g.stats.Simplified++
	}

	id := fmt.Sprintf("loadgen-%d", g.stats.Batches)
	g.logger.Debug("generated batch",
		zap.String("request_id", id),
		zap.Any("counts", counts),
		zap.Bool("simplified", simplify),
	)

	return types.BatchRequest{ID: id, Prompt: prompt, MMData: data}
}

// Stats 返回累计统计
func (g *Generator) Stats() Stats {
	return g.stats
}

func (g *Generator) random(m types.Modality) types.RawItem {
	switch m {
	case types.ModalityImage:
		return g.randomImage(g.between(minImageSide, maxImageSide), g.between(minImageSide, maxImageSide))
	case types.ModalityVideo:
		n := g.between(minFrames, maxFrames)
		w, h := g.between(minImageSide, maxImageSide), g.between(minImageSide, maxImageSide)
		frames := make([]*types.ImageItem, n)
		for i := range frames {
			frames[i] = g.randomImage(w, h)
		}
		return types.NewVideoItem(frames...)
	case types.ModalityAudio:
		samples := make([]float32, g.between(minSamples, maxSamples))
		for i := range samples {
			samples[i] = g.rng.Float32()*2 - 1
		}
		return types.NewAudioItem(samples, g.cfg.SampleRate)
	default:
		panic(fmt.Sprintf("loadgen: unsupported modality %q", m))
	}
}

func (g *Generator) randomImage(w, h int) *types.ImageItem {
	pix := make([]byte, w*h*3)
	for i := 0; i < len(pix); i += 8 {
		v := g.rng.Uint64()
		for j := 0; j < 8 && i+j < len(pix); j++ {
			pix[i+j] = byte(v >> (8 * j))
		}
	}
	return types.NewImageItem(w, h, pix)
}

// between 返回 [lo, hi) 内的整数
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo)
}
