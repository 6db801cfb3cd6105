package profiler

import (
	"runtime"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t   time.Time
	mem runtime.MemStats
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) readMem(m *runtime.MemStats) { *m = c.mem }

func TestTickReportsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(WithInterval(time.Second), withClock(clock.now, clock.readMem))

	for range 49 {
		clock.t = clock.t.Add(20 * time.Millisecond)
		_, ok := p.Tick(renderer.Performance{})
		require.False(t, ok)
	}

	clock.t = clock.t.Add(20 * time.Millisecond)
	clock.mem.Alloc = 2 << 20
	clock.mem.TotalAlloc = 4 << 20
	clock.mem.NumGC = 2
	clock.mem.PauseNs[0] = 3000
	clock.mem.PauseNs[1] = 1000

	s, ok := p.Tick(renderer.Performance{DrawCalls: 12})
	require.True(t, ok)
	assert.InDelta(t, 50, s.FPS, 1e-9)
	assert.Equal(t, 20*time.Millisecond, s.FrameTime)
	assert.InDelta(t, 2, s.HeapMB, 1e-9)
	assert.InDelta(t, 4, s.AllocRateMB, 1e-9)
	assert.Equal(t, time.Microsecond, s.GCLast)
	assert.Equal(t, 3*time.Microsecond, s.GCMax)
	assert.Equal(t, 12, s.Counters.DrawCalls)
	assert.Equal(t, s, p.Last())

	// The next interval starts from the reported values.
	clock.t = clock.t.Add(2 * time.Second)
	s, ok = p.Tick(renderer.Performance{})
	require.True(t, ok)
	assert.InDelta(t, 0.5, s.FPS, 1e-9)
	assert.Zero(t, s.AllocRateMB)
	assert.Zero(t, s.GCMax)
}
