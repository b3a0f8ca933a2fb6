package loadgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mmcache/llm/cache"
	"github.com/BaSui01/mmcache/llm/multimodal"
	"github.com/BaSui01/mmcache/llm/tokenizer"
	"github.com/BaSui01/mmcache/types"
)

func newEncoder(t *testing.T) *tokenizer.TemplateEncoder {
	t.Helper()
	enc, err := tokenizer.NewTemplateEncoder(
		tokenizer.NewEstimatorTokenizer("loadgen-test", 1<<16),
		tokenizer.DefaultPlaceholders(),
	)
	require.NoError(t, err)
	return enc
}

func allLimits(n int) map[types.Modality]int {
	return map[types.Modality]int{
		types.ModalityImage: n,
		types.ModalityVideo: n,
		types.ModalityAudio: n,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{HitRate: 0.5, SimplifyRate: 1, Limits: allLimits(3)}, false},
		{"hit rate above one", Config{HitRate: 1.5}, true},
		{"negative simplify rate", Config{SimplifyRate: -0.1}, true},
		{"negative limit", Config{Limits: map[types.Modality]int{types.ModalityImage: -1}}, true},
		{"unknown modality", Config{Limits: map[types.Modality]int{"pointcloud": 1}}, true},
		{"negative sample rate", Config{SampleRate: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, types.IsErrorCode(err, types.ErrInvalidConfig), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RequiresPrompter(t *testing.T) {
	_, err := New(Config{Limits: allLimits(1)}, nil, nil)
	assert.Error(t, err)
}

func TestGenerator_CountsAndPrompt(t *testing.T) {
	enc := newEncoder(t)
	g, err := New(Config{HitRate: 0.3, Limits: allLimits(3), Seed: 1}, enc, nil)
	require.NoError(t, err)

	req := g.Next()
	assert.Equal(t, "loadgen-1", req.ID)
	counts := req.MMData.Counts()
	assert.Equal(t, allLimits(3), counts)
	assert.Equal(t, enc.DummyPrompt(counts), req.Prompt)

	for m, items := range req.MMData {
		for i, item := range items.Slice() {
			assert.NoError(t, item.Validate(), "%s[%d]", m, i)
			assert.Equal(t, m, item.Modality())
		}
	}
}

func TestGenerator_SameSeedSameSequence(t *testing.T) {
	cfg := Config{HitRate: 0.5, SimplifyRate: 0.5, Limits: allLimits(2), Seed: 42}
	a, err := New(cfg, newEncoder(t), nil)
	require.NoError(t, err)
	b, err := New(cfg, newEncoder(t), nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ra, rb := a.Next(), b.Next()
		assert.Equal(t, ra.Prompt, rb.Prompt)
		for _, m := range types.CanonicalModalities {
			assert.Equal(t, ra.MMData[m].IsSingle(), rb.MMData[m].IsSingle())
			assert.Equal(t, ra.MMData[m].Slice(), rb.MMData[m].Slice(), "batch %d %s", i, m)
		}
	}
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestGenerator_HitRateExtremes(t *testing.T) {
	hits := HitInputs(DefaultSampleRate)

	always, err := New(Config{HitRate: 1, Limits: allLimits(3)}, newEncoder(t), nil)
	require.NoError(t, err)
	req := always.Next()
	for m, items := range req.MMData {
		for _, item := range items.Slice() {
			assert.Equal(t, hits[m], item)
		}
	}
	assert.Equal(t, 9, always.Stats().HitItems)

	never, err := New(Config{HitRate: 0, Limits: allLimits(3)}, newEncoder(t), nil)
	require.NoError(t, err)
	never.Next()
	assert.Zero(t, never.Stats().HitItems)
	assert.Equal(t, 9, never.Stats().Items)
}

func TestGenerator_Simplify(t *testing.T) {
	limits := map[types.Modality]int{
		types.ModalityImage: 1,
		types.ModalityVideo: 0,
		types.ModalityAudio: 2,
	}

	g, err := New(Config{SimplifyRate: 1, Limits: limits}, newEncoder(t), nil)
	require.NoError(t, err)
	req := g.Next()
	assert.True(t, req.MMData[types.ModalityImage].IsSingle())
	_, hasVideo := req.MMData[types.ModalityVideo]
	assert.False(t, hasVideo, "empty modality is dropped")
	assert.False(t, req.MMData[types.ModalityAudio].IsSingle())
	assert.Equal(t, 1, g.Stats().Simplified)

	g, err = New(Config{SimplifyRate: 0, Limits: limits}, newEncoder(t), nil)
	require.NoError(t, err)
	req = g.Next()
	assert.False(t, req.MMData[types.ModalityImage].IsSingle())
	video, hasVideo := req.MMData[types.ModalityVideo]
	assert.True(t, hasVideo)
	assert.Zero(t, video.Len())
}

func TestGenerator_CachedMatchesBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("processes full-size media")
	}
	enc := newEncoder(t)
	params := multimodal.DefaultParameters()

	baseline, err := multimodal.NewProcessor(params, enc, multimodal.WithDedupe(false))
	require.NoError(t, err)
	c, err := cache.NewProcessingCache(1 << 30)
	require.NoError(t, err)
	cached, err := multimodal.NewProcessor(params, enc, multimodal.WithCache(c), multimodal.WithKeyVerification(true))
	require.NoError(t, err)

	g, err := New(Config{HitRate: 0.5, SimplifyRate: 1, Limits: params.Limits, Seed: 7}, enc, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		req := g.Next()
		want, err := baseline.Apply(ctx, req)
		require.NoError(t, err)
		got, err := cached.Apply(ctx, req)
		require.NoError(t, err)
		require.True(t, want.Equal(got), "batch %d differs", i)
	}
	assert.Positive(t, c.Stats().Hits)
}
