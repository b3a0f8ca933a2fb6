// 配置加载器与配置校验测试。
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mmcache/types"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "1GiB", cfg.Cache.Capacity)
	assert.Equal(t, 224, cfg.Processing.Image.Size)
	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
cache:
  capacity: "256MiB"
  unit: "bytes"
  verify_keys: true

processing:
  image:
    size: 112
    patch_size: 14
    merge_size: 2
    mean: [0.5, 0.5, 0.5]
    std: [0.25, 0.25, 0.25]
  audio:
    sample_rate_policy: "strict"
  limits:
    image: 8
  workers: 4

tokenizer:
  kind: "tiktoken"
  model: "cl100k_base"

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, "256MiB", cfg.Cache.Capacity)
	assert.True(t, cfg.Cache.VerifyKeys)
	assert.Equal(t, 112, cfg.Processing.Image.Size)
	assert.Equal(t, [3]float32{0.25, 0.25, 0.25}, cfg.Processing.Image.Std)
	assert.Equal(t, types.SampleRateStrict, cfg.Processing.Audio.SampleRatePolicy)
	assert.Equal(t, 8, cfg.Processing.Limits[types.ModalityImage])
	assert.Equal(t, 3, cfg.Processing.Limits[types.ModalityAudio], "unset limits keep their defaults")
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, "tiktoken", cfg.Tokenizer.Kind)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未设置的字段保留默认值
	assert.Equal(t, 16000, cfg.Processing.Audio.TargetSampleRate)

	capacity, err := cfg.Cache.CapacityValue()
	require.NoError(t, err)
	assert.Equal(t, int64(256<<20), capacity)
	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("MMCACHE_CACHE_CAPACITY", "4096")
	t.Setenv("MMCACHE_CACHE_UNIT", "entries")
	t.Setenv("MMCACHE_PROCESSING_VIDEO_MAX_FRAMES", "8")
	t.Setenv("MMCACHE_PROCESSING_VIDEO_IMAGE_SIZE", "56")
	t.Setenv("MMCACHE_PROCESSING_AUDIO_SAMPLE_RATE_POLICY", "strict")
	t.Setenv("MMCACHE_PROCESSING_DEDUPE", "false")
	t.Setenv("MMCACHE_LOG_LEVEL", "warn")
	t.Setenv("MMCACHE_LOG_OUTPUT_PATHS", "stdout, /tmp/mmcache.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "4096", cfg.Cache.Capacity)
	assert.Equal(t, "entries", cfg.Cache.Unit)
	assert.Equal(t, 8, cfg.Processing.Video.MaxFrames)
	assert.Equal(t, 56, cfg.Processing.Video.Image.Size)
	assert.Equal(t, types.SampleRateStrict, cfg.Processing.Audio.SampleRatePolicy)
	assert.False(t, cfg.Processing.Dedupe)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stdout", "/tmp/mmcache.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvMapAndArrayFields(t *testing.T) {
	t.Setenv("MMCACHE_PROCESSING_LIMITS", "image=8, audio=0")
	t.Setenv("MMCACHE_PROCESSING_IMAGE_MEAN", "0.5,0.25,0")
	t.Setenv("MMCACHE_PROCESSING_IMAGE_STD", "1, 1, 1")

	defaults := DefaultConfig().Processing.Limits
	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Processing.Limits[types.ModalityImage])
	assert.Equal(t, 0, cfg.Processing.Limits[types.ModalityAudio])
	// 未出现在环境变量里的模态保留默认上限
	assert.Equal(t, defaults[types.ModalityVideo], cfg.Processing.Limits[types.ModalityVideo])
	assert.Equal(t, [3]float32{0.5, 0.25, 0}, cfg.Processing.Image.Mean)
	assert.Equal(t, [3]float32{1, 1, 1}, cfg.Processing.Image.Std)

	// 覆盖不能回写到默认配置
	assert.Equal(t, defaults, DefaultConfig().Processing.Limits)
}

func TestLoader_InvalidEnvListValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{name: "数组长度不符", key: "MMCACHE_PROCESSING_IMAGE_MEAN", value: "0.5,0.5"},
		{name: "数组元素非数字", key: "MMCACHE_PROCESSING_IMAGE_STD", value: "1,x,1"},
		{name: "映射缺少等号", key: "MMCACHE_PROCESSING_LIMITS", value: "image"},
		{name: "映射值非数字", key: "MMCACHE_PROCESSING_LIMITS", value: "image=lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := NewLoader().Load()
			assert.Error(t, err)
		})
	}
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
cache:
  capacity: "64MiB"
tokenizer:
  model: "yaml-model"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	// 环境变量应该覆盖 YAML
	t.Setenv("MMCACHE_CACHE_CAPACITY", "128MiB")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "128MiB", cfg.Cache.Capacity)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "yaml-model", cfg.Tokenizer.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_TOKENIZER_MODEL", "custom-prefix-model")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-prefix-model", cfg.Tokenizer.Model)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("MMCACHE_CACHE_CAPACITY", "0")

	// 默认不校验
	_, err := NewLoader().Load()
	require.NoError(t, err)

	_, err = NewLoader().
		WithValidator((*Config).Validate).
		Load()
	require.Error(t, err)
	assert.True(t, types.IsCapacityConfig(err))
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("MMCACHE_PROCESSING_WORKERS", "many")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "bytes", cfg.Cache.Unit)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
cache:
  capacity: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		code   types.ErrorCode
	}{
		{name: "默认配置有效", modify: func(*Config) {}},
		{name: "容量为零", modify: func(c *Config) { c.Cache.Capacity = "0" }, code: types.ErrCapacityConfig},
		{name: "容量为负", modify: func(c *Config) { c.Cache.Capacity = "-1" }, code: types.ErrCapacityConfig},
		{name: "容量无法解析", modify: func(c *Config) { c.Cache.Capacity = "lots" }, code: types.ErrCapacityConfig},
		{name: "未知单位", modify: func(c *Config) { c.Cache.Unit = "tokens" }, code: types.ErrCapacityConfig},
		{name: "禁用缓存时不校验容量", modify: func(c *Config) {
			c.Cache.Enabled = false
			c.Cache.Capacity = "0"
		}},
		{name: "图像尺寸不整除", modify: func(c *Config) { c.Processing.Image.Size = 100 }, code: types.ErrInvalidConfig},
		{name: "负数上限", modify: func(c *Config) { c.Processing.Limits[types.ModalityVideo] = -1 }, code: types.ErrInvalidConfig},
		{name: "未知分词器", modify: func(c *Config) { c.Tokenizer.Kind = "bpe" }, code: types.ErrInvalidConfig},
		{name: "无效日志级别", modify: func(c *Config) { c.Log.Level = "loud" }, code: types.ErrInvalidConfig},
		{name: "采样率越界", modify: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, code: types.ErrInvalidConfig},
		{name: "负数并发", modify: func(c *Config) { c.Processing.Workers = -2 }, code: types.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
		})
	}
}

func TestCacheConfig_CapacityValue(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{in: "1GiB", want: 1 << 30},
		{in: "512MiB", want: 512 << 20},
		{in: "1GB", want: 1_000_000_000},
		{in: "4096", want: 4096},
		{in: " 2KiB ", want: 2048},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CacheConfig{Capacity: tt.in}.CapacityValue()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessingConfig_ParametersIsACopy(t *testing.T) {
	cfg := DefaultProcessingConfig()
	params := cfg.Parameters()
	params.Limits[types.ModalityImage] = 99

	assert.Equal(t, 3, cfg.Limits[types.ModalityImage])
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("cache:\n  capacity: \"2GiB\"\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, "2GiB", cfg.Cache.Capacity)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("MMCACHE_TOKENIZER_KIND", "tiktoken")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "tiktoken", cfg.Tokenizer.Kind)
}
