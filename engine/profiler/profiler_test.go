package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickAccumulatesUntilInterval(t *testing.T) {
	p := NewProfiler(time.Hour)
	assert.False(t, p.Tick(graph.ExecuteStats{Passes: 2, Draws: 10}))
	assert.Zero(t, p.Last().Frames)

	p.lastTime = time.Now().Add(-2 * time.Hour)
	require.True(t, p.Tick(graph.ExecuteStats{Passes: 1, Skipped: 1, Draws: 4, SkippedPasses: []graph.Label{"g-pass"}}))

	r := p.Last()
	assert.Equal(t, 2, r.Frames)
	assert.Equal(t, 3, r.Passes)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 14, r.Draws)
	assert.Equal(t, []graph.Label{"g-pass"}, r.SkippedPasses)
	assert.Greater(t, r.HeapMB, 0.0)

	assert.False(t, p.Tick(graph.ExecuteStats{}), "counters restart after a report")
}

func TestNonPositiveIntervalDefaultsToOneSecond(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(0).updateInterval)
}
