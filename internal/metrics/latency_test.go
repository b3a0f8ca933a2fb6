package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyTracker_Quantiles(t *testing.T) {
	lt := NewLatencyTracker(0.01)
	for i := 1; i <= 100; i++ {
		lt.Record("image.hit", time.Duration(i)*time.Millisecond)
	}

	p50, err := lt.GetQuantile("image.hit", 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 50, p50, 2)

	stats, err := lt.GetStats("image.hit")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Count)
	assert.InDelta(t, 1, stats.Min, 0.05)
	assert.InDelta(t, 100, stats.Max, 2)
	assert.Contains(t, stats.String(), "image.hit (n=100)")

	_, err = lt.GetQuantile("video.miss", 0.5)
	assert.Error(t, err)
}

func TestLatencyTracker_GetAllStatsSorted(t *testing.T) {
	lt := NewLatencyTracker(0.01)
	lt.Record("video.computed", time.Millisecond)
	lt.Record("apply", time.Millisecond)
	lt.Record("audio.hit", time.Millisecond)

	stats := lt.GetAllStats()
	require.Len(t, stats, 3)
	assert.Equal(t, "apply", stats[0].Operation)
	assert.Equal(t, "audio.hit", stats[1].Operation)
	assert.Equal(t, "video.computed", stats[2].Operation)
}

func TestLatencyTracker_RecordFunc(t *testing.T) {
	lt := NewLatencyTracker(0.01)
	boom := errors.New("boom")

	err := lt.RecordFunc("op", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	stats, err := lt.GetStats("op")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Count)
}
