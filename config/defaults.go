// =============================================================================
// 📦 mmcache 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/mmcache/llm/multimodal"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Cache:      DefaultCacheConfig(),
		Processing: DefaultProcessingConfig(),
		Tokenizer:  DefaultTokenizerConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:    true,
		Capacity:   "1GiB",
		Unit:       "bytes",
		VerifyKeys: false,
	}
}

// DefaultProcessingConfig 返回默认预处理配置
func DefaultProcessingConfig() ProcessingConfig {
	params := multimodal.DefaultParameters()
	return ProcessingConfig{
		Image:   params.Image,
		Video:   params.Video,
		Audio:   params.Audio,
		Limits:  params.Limits,
		Workers: 0,
		Dedupe:  true,
	}
}

// DefaultTokenizerConfig 返回默认分词器配置
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		Kind:  "estimator",
		Model: "mmcache-estimator",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mmcache",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:         true,
		Namespace:       "mmcache",
		LatencyAccuracy: 0.01,
		ReportInterval:  10 * time.Second,
	}
}
