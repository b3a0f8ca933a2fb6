// =============================================================================
// 📦 mmcache 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MMCACHE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/mmcache/llm/tokenizer"
	"github.com/BaSui01/mmcache/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 mmcache 的完整配置结构
type Config struct {
	// Cache 处理缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Processing 预处理参数
	Processing ProcessingConfig `yaml:"processing" env:"PROCESSING"`

	// Tokenizer 分词器配置
	Tokenizer TokenizerConfig `yaml:"tokenizer" env:"TOKENIZER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// CacheConfig 处理缓存配置
type CacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 容量，bytes 单位下支持 "512MiB"、"1GB" 等写法
	Capacity string `yaml:"capacity" env:"CAPACITY"`
	// 容量单位: bytes, entries
	Unit string `yaml:"unit" env:"UNIT"`
	// 是否开启内容键冲突校验
	VerifyKeys bool `yaml:"verify_keys" env:"VERIFY_KEYS"`
}

// CapacityValue 解析容量
func (c CacheConfig) CapacityValue() (int64, error) {
	s := strings.TrimSpace(c.Capacity)
	if s == "" {
		return 0, types.NewError(types.ErrCapacityConfig, "cache capacity is empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, types.Errorf(types.ErrCapacityConfig, "cache capacity %q must be positive", s)
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, types.Errorf(types.ErrCapacityConfig, "cache capacity %q is invalid", s).WithCause(err)
	}
	if n == 0 || n > 1<<62 {
		return 0, types.Errorf(types.ErrCapacityConfig, "cache capacity %q is out of range", s)
	}
	return int64(n), nil
}

// ProcessingConfig 预处理配置
type ProcessingConfig struct {
	Image types.ImageParams `yaml:"image" env:"IMAGE"`
	Video types.VideoParams `yaml:"video" env:"VIDEO"`
	Audio types.AudioParams `yaml:"audio" env:"AUDIO"`
	// 每种模态的条目上限
	Limits map[types.Modality]int `yaml:"limits" env:"LIMITS"`
	// 单次请求内并行计算的条目数，0 表示 GOMAXPROCS
	Workers int `yaml:"workers" env:"WORKERS"`
	// 同一请求内相同内容只计算一次
	Dedupe bool `yaml:"dedupe" env:"DEDUPE"`
}

// Parameters 返回一份独立的处理参数
func (p ProcessingConfig) Parameters() types.ProcessingParameters {
	return types.ProcessingParameters{
		Image:  p.Image,
		Video:  p.Video,
		Audio:  p.Audio,
		Limits: p.Limits,
	}.Clone()
}

// TokenizerConfig 分词器配置
type TokenizerConfig struct {
	// 类型: estimator, tiktoken
	Kind string `yaml:"kind" env:"KIND"`
	// 模型或编码名称
	Model string `yaml:"model" env:"MODEL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用 Prometheus 指标
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// 延迟分位数的相对误差
	LatencyAccuracy float64 `yaml:"latency_accuracy" env:"LATENCY_ACCURACY"`
	// 统计输出周期
	ReportInterval time.Duration `yaml:"report_interval" env:"REPORT_INTERVAL"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MMCACHE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(splitList(value)))
		}

	case reflect.Array:
		// 定长数组，如 MEAN="0.5,0.5,0.5"，元素个数必须一致
		parts := splitList(value)
		if len(parts) != field.Len() {
			return fmt.Errorf("expected %d comma separated values, got %d", field.Len(), len(parts))
		}
		for i, part := range parts {
			if err := setFieldValue(field.Index(i), part); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}

	case reflect.Map:
		return setMapValue(field, value)
	}

	return nil
}

// setMapValue 解析 "image=4,video=2" 形式的映射，逐键覆盖已有值.
// 先复制原 map 再写入，避免改动 DefaultConfig 共享的底层 map。
func setMapValue(field reflect.Value, value string) error {
	mapType := field.Type()
	if mapType.Key().Kind() != reflect.String {
		return fmt.Errorf("unsupported map key type %s", mapType.Key())
	}

	merged := reflect.MakeMapWithSize(mapType, field.Len())
	iter := field.MapRange()
	for iter.Next() {
		merged.SetMapIndex(iter.Key(), iter.Value())
	}

	for _, pair := range splitList(value) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("invalid map entry %q, want key=value", pair)
		}
		key := reflect.New(mapType.Key()).Elem()
		key.SetString(strings.TrimSpace(k))
		elem := reflect.New(mapType.Elem()).Elem()
		if err := setFieldValue(elem, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("map entry %q: %w", k, err)
		}
		merged.SetMapIndex(key, elem)
	}
	field.Set(merged)
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置.
// 容量错误返回 CAPACITY_CONFIG，其余返回 INVALID_CONFIG。
func (c *Config) Validate() error {
	if c.Cache.Enabled {
		if _, err := c.Cache.CapacityValue(); err != nil {
			return err
		}
		switch c.Cache.Unit {
		case "bytes", "entries":
		default:
			return types.Errorf(types.ErrCapacityConfig, "cache unit %q must be bytes or entries", c.Cache.Unit)
		}
	}

	if err := c.Processing.Parameters().Validate(); err != nil {
		return err
	}

	var errs []string
	if c.Processing.Workers < 0 {
		errs = append(errs, "processing workers must not be negative")
	}
	switch tokenizer.Kind(c.Tokenizer.Kind) {
	case tokenizer.KindEstimator, tokenizer.KindTiktoken:
	default:
		errs = append(errs, fmt.Sprintf("unknown tokenizer kind %q", c.Tokenizer.Kind))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}
	if c.Metrics.LatencyAccuracy <= 0 || c.Metrics.LatencyAccuracy >= 1 {
		errs = append(errs, "metrics latency_accuracy must be in (0, 1)")
	}

	if len(errs) > 0 {
		return types.Errorf(types.ErrInvalidConfig, "config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
