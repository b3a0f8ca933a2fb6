package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mmcache/config"
	"github.com/BaSui01/mmcache/llm/cache"
)

const smallConfig = `
cache:
  capacity: "64MiB"
  unit: "bytes"
  verify_keys: true

processing:
  image:
    size: 28
    patch_size: 14
    merge_size: 1
    mean: [0.5, 0.5, 0.5]
    std: [0.5, 0.5, 0.5]
  video:
    image:
      size: 28
      patch_size: 14
      merge_size: 1
      mean: [0.5, 0.5, 0.5]
      std: [0.5, 0.5, 0.5]
    min_frames: 2
    max_frames: 4
    temporal_patch_size: 2
  audio:
    window_size: 64
    hop_length: 32
    feature_size: 8
    min_samples: 64
    max_samples: 2048
  limits:
    image: 2
    video: 1
    audio: 2
  workers: 2

log:
  level: "error"
  format: "json"
  output_paths: ["stderr"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunBench_CachedMatchesBaseline(t *testing.T) {
	var out bytes.Buffer
	err := runBench(context.Background(), &out, benchOptions{
		configPath:   writeConfig(t, smallConfig),
		batches:      6,
		hitRate:      0.5,
		simplifyRate: 0.5,
		seed:         3,
	})
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "6 batches equivalent")
	assert.Contains(t, report, "cache: ")
	assert.Contains(t, report, "latency:")
	assert.Contains(t, report, "apply (n=6)")
}

func TestRunBench_CacheDisabled(t *testing.T) {
	disabled := strings.Replace(smallConfig, "cache:\n", "cache:\n  enabled: false\n", 1)

	var out bytes.Buffer
	err := runBench(context.Background(), &out, benchOptions{
		configPath: writeConfig(t, disabled),
		batches:    2,
		hitRate:    1,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "cache: disabled")

	cfg, err := config.NewLoader().WithConfigPath(writeConfig(t, disabled)).Load()
	require.NoError(t, err)
	env, err := newBenchEnv(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, env.cache)
	assert.Nil(t, env.cached.Cache())
}

func TestRunBench_ServesMetrics(t *testing.T) {
	var out bytes.Buffer
	err := runBench(context.Background(), &out, benchOptions{
		configPath:  writeConfig(t, smallConfig),
		batches:     2,
		hitRate:     1,
		metricsAddr: "127.0.0.1:0",
	})
	assert.NoError(t, err)
}

func TestRunBench_InvalidOptions(t *testing.T) {
	err := runBench(context.Background(), &bytes.Buffer{}, benchOptions{batches: 0})
	assert.Error(t, err)

	err = runBench(context.Background(), &bytes.Buffer{}, benchOptions{
		configPath: writeConfig(t, smallConfig),
		batches:    1,
		hitRate:    2,
	})
	assert.Error(t, err, "hit rate outside [0,1] is rejected by the generator")

	err = runBench(context.Background(), &bytes.Buffer{}, benchOptions{
		configPath: writeConfig(t, "cache:\n  capacity: \"0\"\n"),
		batches:    1,
	})
	assert.Error(t, err)
}

func TestRunBench_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runBench(ctx, &bytes.Buffer{}, benchOptions{
		configPath: writeConfig(t, smallConfig),
		batches:    3,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatUsage(t *testing.T) {
	assert.Equal(t, "1.0 MiB", formatUsage(cache.UnitBytes, 1<<20))
	assert.Equal(t, "1,024 entries", formatUsage(cache.UnitEntries, 1024))
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "mmcache dev")
}

func TestBenchCmd_Flags(t *testing.T) {
	cmd := newBenchCmd()
	for _, name := range []string{"config", "batches", "hit-rate", "simplify-rate", "seed", "metrics-addr"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestInitLogger(t *testing.T) {
	logger := initLogger(config.LogConfig{Level: "bogus", Format: "console", OutputPaths: []string{"stderr"}})
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
