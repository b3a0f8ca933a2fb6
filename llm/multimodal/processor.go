package multimodal

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/mmcache/internal/ctxkeys"
	"github.com/BaSui01/mmcache/llm/cache"
	"github.com/BaSui01/mmcache/llm/tokenizer"
	"github.com/BaSui01/mmcache/types"
)

const instrumentationName = "github.com/BaSui01/mmcache/llm/multimodal"

// 条目处理结果，用于指标标签
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeComputed = "computed"
)

// MetricsRecorder 接收编排器的处理事件，internal/metrics.Collector 实现该接口.
type MetricsRecorder interface {
	RecordItem(modality, outcome string, duration time.Duration)
	RecordRequest(status string, duration time.Duration)
}

// LatencyRecorder 记录按操作名分组的延迟，internal/metrics.LatencyTracker 实现该接口.
type LatencyRecorder interface {
	Record(operation string, duration time.Duration)
}

// Option 配置 Processor.
type Option func(*Processor)

// WithCache 启用处理缓存. 不设置时每个条目都重新计算（基线处理器）。
func WithCache(c *cache.ProcessingCache) Option {
	return func(p *Processor) { p.cache = c }
}

// WithKeyBuilder 替换内容键构建器.
func WithKeyBuilder(b *cache.KeyBuilder) Option {
	return func(p *Processor) {
		if b != nil {
			p.keys = b
		}
	}
}

// WithRegistry 替换模态处理器注册表.
func WithRegistry(r *Registry) Option {
	return func(p *Processor) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithLogger 设置日志.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics 设置指标接收器.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLatencyTracker 设置延迟分位数接收器.
func WithLatencyTracker(l LatencyRecorder) Option {
	return func(p *Processor) { p.latency = l }
}

// WithWorkers 限制单次请求内并行计算的条目数，n <= 0 时使用 GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDedupe 控制同一请求内相同内容是否只计算一次，默认开启.
func WithDedupe(enabled bool) Option {
	return func(p *Processor) { p.dedupe = enabled }
}

// WithKeyVerification 开启键校验：缓存条目携带原始载荷的 xxhash 指纹，
// 命中时指纹不一致返回 KEY_COLLISION.
func WithKeyVerification(enabled bool) Option {
	return func(p *Processor) { p.verify = enabled }
}

// WithTracer 设置 OpenTelemetry tracer，默认使用全局 TracerProvider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Processor 批处理编排器.
// 并发安全；多个请求可以共享同一个 Processor 和缓存。
type Processor struct {
	params   types.ProcessingParameters
	encoder  tokenizer.PromptEncoder
	registry *Registry
	keys     *cache.KeyBuilder
	cache    *cache.ProcessingCache

	logger  *zap.Logger
	metrics MetricsRecorder
	latency LatencyRecorder
	tracer  trace.Tracer

	workers int
	dedupe  bool
	verify  bool

	inflight singleflight.Group
}

// NewProcessor 创建编排器. params 在构造时复制，之后不可变。
func NewProcessor(params types.ProcessingParameters, encoder tokenizer.PromptEncoder, opts ...Option) (*Processor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if encoder == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "processor requires a prompt encoder")
	}

	p := &Processor{
		params:   params.Clone(),
		encoder:  encoder,
		registry: DefaultRegistry(),
		keys:     cache.NewKeyBuilder(nil),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
		workers:  runtime.GOMAXPROCS(0),
		dedupe:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "mm_processor"))

	p.logger.Info("multimodal processor created",
		zap.Bool("cached", p.cache != nil),
		zap.Bool("dedupe", p.dedupe),
		zap.Bool("verify_keys", p.verify),
		zap.Int("workers", p.workers),
		zap.String("key_strategy", p.keys.Strategy().Name()))

	return p, nil
}

// Params 返回参数副本.
func (p *Processor) Params() types.ProcessingParameters {
	return p.params.Clone()
}

// Cache 返回编排器使用的缓存，未启用时为 nil.
func (p *Processor) Cache() *cache.ProcessingCache {
	return p.cache
}

// job 是去重后的一个待处理条目
type job struct {
	modality    types.Modality
	index       int // 首次出现的位置
	item        types.RawItem
	key         cache.ContentKey
	fingerprint uint64

	result *types.ProcessedItem
	hit    bool
}

// Apply 处理一次请求.
//
// 单个条目与单元素列表等价，缺失的模态等同于空列表；
// 结果按 image、video、audio 的顺序组织，同一模态内保持输入顺序。
// 提示词编码不缓存，每次调用都重新计算。
// req.ID 为空时依次使用 context 中的请求 ID 与新生成的 uuid.
// 返回的条目是深拷贝，调用方修改它们不会影响缓存。
func (p *Processor) Apply(ctx context.Context, req types.BatchRequest) (*ProcessingResult, error) {
	start := time.Now()
	if req.ID == "" {
		if id, ok := ctxkeys.RequestID(ctx); ok {
			req.ID = id
		} else {
			req.ID = uuid.NewString()
		}
	}
	ctx = ctxkeys.WithRequestID(ctx, req.ID)

	ctx, span := p.tracer.Start(ctx, "multimodal.apply",
		trace.WithAttributes(
			attribute.String("request.id", req.ID),
			attribute.Bool("cache.enabled", p.cache != nil),
		))
	defer span.End()

	logger := p.logger.With(zap.String("request_id", req.ID))
	result, err := p.apply(ctx, req, logger)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = string(types.GetErrorCode(err))
		if status == "" {
			status = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if types.IsKeyCollision(err) {
			logger.Error("content key collision detected", zap.Error(err))
		} else {
			logger.Debug("apply failed", zap.Error(err))
		}
	} else {
		span.SetAttributes(
			attribute.Int("items", result.Stats.Items),
			attribute.Int("cache.hits", result.Stats.Hits),
			attribute.Int("computed", result.Stats.Computed),
		)
		logger.Debug("apply completed",
			zap.Int("items", result.Stats.Items),
			zap.Int("unique", result.Stats.Unique),
			zap.Int("hits", result.Stats.Hits),
			zap.Int("computed", result.Stats.Computed),
			zap.Duration("duration", duration))
	}

	if p.metrics != nil {
		p.metrics.RecordRequest(status, duration)
	}
	if p.latency != nil {
		p.latency.Record("apply", duration)
	}
	return result, err
}

func (p *Processor) apply(ctx context.Context, req types.BatchRequest, logger *zap.Logger) (*ProcessingResult, error) {
	norm, unknown := req.MMData.Normalize()
	if len(unknown) > 0 {
		sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
		return nil, types.Errorf(types.ErrMalformedInput, "unknown modality %q", unknown[0])
	}

	counts := make(map[types.Modality]int, len(types.CanonicalModalities))
	for _, m := range types.CanonicalModalities {
		n := len(norm[m])
		counts[m] = n
		if limit, ok := p.params.Limit(m); ok && n > limit {
			return nil, types.Errorf(types.ErrLimitExceeded, "%d %s items exceed the limit of %d", n, m, limit)
		}
	}

	encoded, err := p.encoder.Encode(req.Prompt, counts)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}

	slots, jobs, err := p.plan(norm)
	if err != nil {
		return nil, err
	}

	misses, err := p.lookup(jobs, logger)
	if err != nil {
		return nil, err
	}
	if err := p.computeAll(ctx, misses); err != nil {
		return nil, err
	}

	result, err := p.assemble(encoded, slots)
	if err != nil {
		return nil, err
	}
	result.RequestID = req.ID
	result.Stats = ApplyStats{
		Items:    countItems(slots),
		Unique:   len(jobs),
		Hits:     len(jobs) - len(misses),
		Computed: len(misses),
	}
	return result, nil
}

// plan 校验条目、计算内容键并在请求内去重.
func (p *Processor) plan(norm map[types.Modality][]types.RawItem) (map[types.Modality][]*job, []*job, error) {
	useKeys := p.cache != nil || p.dedupe
	slots := make(map[types.Modality][]*job, len(types.CanonicalModalities))
	seen := make(map[cache.ContentKey]*job)
	var jobs []*job

	for _, m := range types.CanonicalModalities {
		items := norm[m]
		slots[m] = make([]*job, len(items))
		for idx, item := range items {
			if item == nil {
				return nil, nil, types.NewMalformedInputError("nil item").WithItem(m, idx)
			}
			if item.Modality() != m {
				return nil, nil, types.NewMalformedInputError("%s item listed under %s", item.Modality(), m).WithItem(m, idx)
			}
			if err := item.Validate(); err != nil {
				return nil, nil, types.AtItem(err, m, idx)
			}

			j := &job{modality: m, index: idx, item: item}
			if useKeys {
				j.key = p.keys.Key(item, p.params)
			}
			if p.verify {
				j.fingerprint = cache.Fingerprint(item)
			}

			if p.dedupe {
				if prev, ok := seen[j.key]; ok {
					if p.verify && prev.fingerprint != j.fingerprint {
						return nil, nil, types.Errorf(types.ErrKeyCollision,
							"key %s maps to different payloads at %s[%d]", j.key, prev.modality, prev.index).WithItem(m, idx)
					}
					slots[m][idx] = prev
					continue
				}
				seen[j.key] = j
			}
			slots[m][idx] = j
			jobs = append(jobs, j)
		}
	}
	return slots, jobs, nil
}

// lookup 查询缓存，返回未命中的条目.
func (p *Processor) lookup(jobs []*job, logger *zap.Logger) ([]*job, error) {
	if p.cache == nil {
		return jobs, nil
	}

	var misses []*job
	for _, j := range jobs {
		start := time.Now()
		entry, ok := p.cache.Get(j.key)
		if !ok {
			p.recordItem(j.modality, OutcomeMiss, time.Since(start))
			misses = append(misses, j)
			continue
		}
		if p.verify && entry.Fingerprint != 0 && entry.Fingerprint != j.fingerprint {
			return nil, types.Errorf(types.ErrKeyCollision,
				"cached entry for %s has fingerprint %x, payload has %x", j.key, entry.Fingerprint, j.fingerprint).
				WithItem(j.modality, j.index)
		}
		j.result = entry.Item
		j.hit = true
		p.recordItem(j.modality, OutcomeHit, time.Since(start))
		logger.Debug("cache hit", zap.String("key", string(j.key)))
	}
	return misses, nil
}

// computeAll 并行计算未命中的条目，任一条目失败时取消其余计算.
func (p *Processor) computeAll(ctx context.Context, misses []*job) error {
	if len(misses) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, j := range misses {
		g.Go(func() error {
			item, err := p.compute(gctx, j)
			if err != nil {
				return types.AtItem(err, j.modality, j.index)
			}
			j.result = item
			return nil
		})
	}
	return g.Wait()
}

// compute 处理单个条目并写入缓存.
// 跨请求的同键并发未命中通过 singleflight 合并为一次计算。
func (p *Processor) compute(ctx context.Context, j *job) (*types.ProcessedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := p.tracer.Start(ctx, "multimodal.process_item",
		trace.WithAttributes(
			attribute.String("modality", string(j.modality)),
			attribute.Int("index", j.index),
		))
	defer span.End()

	start := time.Now()
	run := func() (any, error) {
		item, err := p.registry.Process(j.item, p.params)
		if err != nil {
			return nil, err
		}
		if p.cache != nil && !p.cache.Put(j.key, cache.NewEntry(item, j.fingerprint)) {
			p.logger.Warn("processed item exceeds cache capacity, not retained",
				zap.String("modality", string(j.modality)),
				zap.Int64("size", item.SizeBytes()))
		}
		return item, nil
	}

	var (
		v   any
		err error
	)
	if p.cache != nil {
		v, err, _ = p.inflight.Do(p.flightKey(j), run)
	} else {
		v, err = run()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	p.recordItem(j.modality, OutcomeComputed, time.Since(start))
	return v.(*types.ProcessedItem), nil
}

// flightKey 开启键校验时把指纹并入 singleflight 键，冲突的载荷不会共享结果.
func (p *Processor) flightKey(j *job) string {
	if !p.verify {
		return string(j.key)
	}
	return string(j.key) + "#" + strconv.FormatUint(j.fingerprint, 16)
}

// assemble 展开占位符并按模态组织结果.
func (p *Processor) assemble(encoded *tokenizer.EncodedPrompt, slots map[types.Modality][]*job) (*ProcessingResult, error) {
	result := &ProcessingResult{
		MMItems:      make(map[types.Modality][]*types.ProcessedItem, len(types.CanonicalModalities)),
		Placeholders: make(map[types.Modality][]PlaceholderRange, len(types.CanonicalModalities)),
	}
	for _, m := range types.CanonicalModalities {
		items := make([]*types.ProcessedItem, len(slots[m]))
		for i, j := range slots[m] {
			items[i] = j.result.Clone()
		}
		result.MMItems[m] = items
		result.Placeholders[m] = make([]PlaceholderRange, 0, len(items))
	}

	ids := make([]int, 0, len(encoded.TokenIDs))
	next := 0
	for pos, id := range encoded.TokenIDs {
		if next >= len(encoded.Placeholders) || encoded.Placeholders[next].Position != pos {
			ids = append(ids, id)
			continue
		}
		m := encoded.Placeholders[next].Modality
		next++
		k := len(result.Placeholders[m])
		if k >= len(result.MMItems[m]) {
			return nil, types.Errorf(types.ErrPromptMismatch, "prompt has more %s placeholders than items", m)
		}
		n := result.MMItems[m][k].NumTokens
		result.Placeholders[m] = append(result.Placeholders[m], PlaceholderRange{Offset: len(ids), Length: n})
		for i := 0; i < n; i++ {
			ids = append(ids, id)
		}
	}
	for _, m := range types.CanonicalModalities {
		if len(result.Placeholders[m]) != len(result.MMItems[m]) {
			return nil, types.Errorf(types.ErrPromptMismatch, "prompt has %d %s placeholders but %d items were given",
				len(result.Placeholders[m]), m, len(result.MMItems[m]))
		}
	}
	result.PromptTokenIDs = ids
	return result, nil
}

func countItems(slots map[types.Modality][]*job) int {
	total := 0
	for _, m := range types.CanonicalModalities {
		total += len(slots[m])
	}
	return total
}

func (p *Processor) recordItem(m types.Modality, outcome string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordItem(string(m), outcome, d)
	}
	if p.latency != nil {
		p.latency.Record(string(m)+"."+outcome, d)
	}
}
