package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/mmcache/config"
	"github.com/BaSui01/mmcache/internal/loadgen"
	"github.com/BaSui01/mmcache/internal/metrics"
	"github.com/BaSui01/mmcache/internal/telemetry"
	"github.com/BaSui01/mmcache/llm/cache"
	"github.com/BaSui01/mmcache/llm/multimodal"
	"github.com/BaSui01/mmcache/llm/observability"
	"github.com/BaSui01/mmcache/llm/tokenizer"
	"github.com/BaSui01/mmcache/types"
)

type benchOptions struct {
	configPath   string
	batches      int
	hitRate      float64
	simplifyRate float64
	seed         uint64
	metricsAddr  string
}

func newBenchCmd() *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run baseline and cached processors over generated batches and compare results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (YAML)")
	flags.IntVar(&opts.batches, "batches", 100, "Number of generated batches")
	flags.Float64Var(&opts.hitRate, "hit-rate", 0.5, "Probability that an item repeats a fixed input")
	flags.Float64Var(&opts.simplifyRate, "simplify-rate", 1.0, "Probability that a batch folds single-item lists")
	flags.Uint64Var(&opts.seed, "seed", 0, "Random seed for the load generator")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address while running")
	return cmd
}

// benchEnv 一次 bench 运行所需的全部组件
type benchEnv struct {
	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers
	registry  *prometheus.Registry
	latency   *metrics.LatencyTracker
	encoder   *tokenizer.TemplateEncoder
	cache     *cache.ProcessingCache
	baseline  *multimodal.Processor
	cached    *multimodal.Processor
}

func runBench(ctx context.Context, out io.Writer, opts benchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.batches <= 0 {
		return fmt.Errorf("--batches must be positive, got %d", opts.batches)
	}

	cfg, err := config.NewLoader().
		WithConfigPath(opts.configPath).
		WithValidator((*config.Config).Validate).
		Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	env, err := newBenchEnv(cfg, providers, logger)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, env.registry, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	gen, err := loadgen.New(loadgen.Config{
		HitRate:      opts.hitRate,
		SimplifyRate: opts.simplifyRate,
		Limits:       env.baseline.Params().Limits,
		Seed:         opts.seed,
	}, env.encoder, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	lastReport := start
	for i := 0; i < opts.batches; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := gen.Next()
		if err := env.compare(ctx, i, req); err != nil {
			return err
		}
		if interval := cfg.Metrics.ReportInterval; interval > 0 && time.Since(lastReport) >= interval {
			lastReport = time.Now()
			logger.Info("bench progress",
				zap.Int("batches", i+1),
				zap.Int("total", opts.batches),
				zap.Float64("hit_rate", env.cacheHitRate()),
			)
		}
	}

	env.report(out, opts, gen.Stats(), time.Since(start))
	return nil
}

func newBenchEnv(cfg *config.Config, providers *telemetry.Providers, logger *zap.Logger) (*benchEnv, error) {
	env := &benchEnv{
		cfg:       cfg,
		logger:    logger,
		providers: providers,
		registry:  prometheus.NewRegistry(),
		latency:   metrics.NewLatencyTracker(cfg.Metrics.LatencyAccuracy),
	}

	tok, err := tokenizer.New(tokenizer.Kind(cfg.Tokenizer.Kind), cfg.Tokenizer.Model)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}
	env.encoder, err = tokenizer.NewTemplateEncoder(tok, nil)
	if err != nil {
		return nil, fmt.Errorf("create prompt encoder: %w", err)
	}

	var recorder observability.Fanout
	if cfg.Metrics.Enabled {
		otelMetrics, err := observability.NewMetrics(providers.Meter("github.com/BaSui01/mmcache"))
		if err != nil {
			return nil, fmt.Errorf("create otel metrics: %w", err)
		}
		recorder = observability.Fanout{
			metrics.NewCollector(cfg.Metrics.Namespace, env.registry, logger),
			otelMetrics,
		}
	}

	params := cfg.Processing.Parameters()
	tracer := providers.Tracer("github.com/BaSui01/mmcache/llm/multimodal")

	env.baseline, err = multimodal.NewProcessor(params, env.encoder,
		multimodal.WithDedupe(false),
		multimodal.WithWorkers(cfg.Processing.Workers),
		multimodal.WithLogger(logger.Named("baseline")),
	)
	if err != nil {
		return nil, err
	}

	opts := []multimodal.Option{
		multimodal.WithDedupe(cfg.Processing.Dedupe),
		multimodal.WithWorkers(cfg.Processing.Workers),
		multimodal.WithLogger(logger),
		multimodal.WithLatencyTracker(env.latency),
		multimodal.WithTracer(tracer),
	}
	if recorder != nil {
		opts = append(opts, multimodal.WithMetrics(recorder))
	}
	if cfg.Cache.Enabled {
		capacity, err := cfg.Cache.CapacityValue()
		if err != nil {
			return nil, err
		}
		cacheOpts := []cache.Option{
			cache.WithUnit(cache.Unit(cfg.Cache.Unit)),
			cache.WithLogger(logger),
		}
		if recorder != nil {
			cacheOpts = append(cacheOpts, cache.WithRecorder(recorder))
		}
		env.cache, err = cache.NewProcessingCache(capacity, cacheOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			multimodal.WithCache(env.cache),
			multimodal.WithKeyVerification(cfg.Cache.VerifyKeys),
		)
	}

	env.cached, err = multimodal.NewProcessor(params, env.encoder, opts...)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// compare 用两个处理器处理同一请求. 两者必须得到相同结果或相同错误码.
func (e *benchEnv) compare(ctx context.Context, batch int, req types.BatchRequest) error {
	want, wantErr := e.baseline.Apply(ctx, req)
	got, gotErr := e.cached.Apply(ctx, req)

	switch {
	case wantErr != nil || gotErr != nil:
		if types.GetErrorCode(wantErr) != types.GetErrorCode(gotErr) {
			return fmt.Errorf("batch %d (%s): baseline error %v, cached error %v", batch, req.ID, wantErr, gotErr)
		}
		e.logger.Warn("batch failed in both processors",
			zap.Int("batch", batch), zap.Error(wantErr))
		return nil
	case !want.Equal(got):
		e.logger.Error("cached result differs from baseline",
			zap.Int("batch", batch),
			zap.String("request_id", req.ID),
			zap.Any("counts", req.MMData.Counts()),
		)
		return fmt.Errorf("batch %d (%s): cached result differs from baseline", batch, req.ID)
	}
	return nil
}

func (e *benchEnv) cacheHitRate() float64 {
	if e.cache == nil {
		return 0
	}
	return e.cache.Stats().HitRate
}

func (e *benchEnv) report(out io.Writer, opts benchOptions, gs loadgen.Stats, elapsed time.Duration) {
	fmt.Fprintf(out, "mmcache bench: %d batches equivalent in %s\n", gs.Batches, elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  generated items: %s (repeated inputs %s, simplified batches %d)\n",
		humanize.Comma(int64(gs.Items)), humanize.Comma(int64(gs.HitItems)), gs.Simplified)
	fmt.Fprintf(out, "  hit rate %.2f, simplify rate %.2f, seed %d\n", opts.hitRate, opts.simplifyRate, opts.seed)

	if e.cache == nil {
		fmt.Fprintln(out, "cache: disabled")
	} else {
		s := e.cache.Stats()
		fmt.Fprintf(out, "cache: %s / %s in %s entries\n",
			formatUsage(s.Unit, s.Size), formatUsage(s.Unit, s.Capacity), humanize.Comma(int64(s.Entries)))
		fmt.Fprintf(out, "  hits %s, misses %s, evictions %s, rejections %s, hit rate %.1f%%\n",
			humanize.Comma(s.Hits), humanize.Comma(s.Misses), humanize.Comma(s.Evictions),
			humanize.Comma(s.Rejections), s.HitRate*100)
	}

	fmt.Fprintln(out, "latency:")
	for _, st := range e.latency.GetAllStats() {
		fmt.Fprintln(out, st.String())
	}
}

func formatUsage(unit cache.Unit, v int64) string {
	if unit == cache.UnitBytes {
		return humanize.IBytes(uint64(v))
	}
	return humanize.Comma(v) + " " + string(unit)
}

// serveMetrics 在后台暴露 /metrics，返回的函数用于关闭服务.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics server started", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
