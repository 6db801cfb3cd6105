// Package profiler reports frame rate, memory and render counters through the engine logger.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
)

// Stats is one reporting interval.
type Stats struct {
	FPS float64
	// FrameTime is the average frame duration over the interval.
	FrameTime time.Duration
	// HeapMB is the live heap.
	HeapMB float64
	// AllocRateMB is the allocation churn in MB per second.
	AllocRateMB float64
	// SysMB is the memory obtained from the OS.
	SysMB    float64
	GCCount  uint32
	GCLast   time.Duration
	GCMax    time.Duration
	Counters renderer.Performance
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Logs stats at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	now            func() time.Time
	readMem        func(*runtime.MemStats)
	last           Stats
}

// NewProfiler creates a new Profiler. The interval defaults to 1 second.
//
// Parameters:
//   - options: ProfilerBuilderOption values
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		readMem:        runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the frame's render counters.
// Logs statistics when the update interval has elapsed: FPS, heap usage, allocation rate,
// GC count and pause times, total memory, and the counters of the latest frame.
//
// Parameters:
//   - counters: the render counters of the frame just drawn
//
// Returns:
//   - Stats: the reported stats, valid when the bool is true
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(counters renderer.Performance) (Stats, bool) {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Stats{}, false
	}

	p.readMem(&p.memStats)
	s := Stats{
		FPS:       float64(p.frameCount) / elapsed.Seconds(),
		FrameTime: elapsed / time.Duration(p.frameCount),
		HeapMB:    float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:     float64(p.memStats.Sys) / 1024 / 1024,
		GCCount:   p.memStats.NumGC,
		Counters:  counters,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if gcCount := p.memStats.NumGC; gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		s.GCLast = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			s.GCMax = max(s.GCMax, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	common.Logger().Info("profiler",
		"fps", s.FPS,
		"frame", s.FrameTime,
		"heap_mb", s.HeapMB,
		"alloc_mb_s", s.AllocRateMB,
		"gc", s.GCCount,
		"gc_last", s.GCLast,
		"gc_max", s.GCMax,
		"sys_mb", s.SysMB,
		"render", counters.String())

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = s
	return s, true
}

// Last returns the most recently reported stats.
func (p *Profiler) Last() Stats {
	return p.last
}
