package profiler

import (
	"runtime"
	"time"
)

// ProfilerBuilderOption is a functional option applied by NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often stats are reported. Non-positive values keep the default.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval to a profiler
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// withClock replaces the time and memory sources.
func withClock(now func() time.Time, readMem func(*runtime.MemStats)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
		p.readMem = readMem
	}
}
