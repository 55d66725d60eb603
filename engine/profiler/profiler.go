package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
)

// Report summarizes the frames recorded over one profiler interval.
type Report struct {
	Frames  int
	FPS     float64
	Passes  int
	Skipped int
	Draws   int
	// SkippedPasses holds every distinct pass skipped during the interval.
	SkippedPasses []graph.Label
	HeapMB        float64
	AllocRateMB   float64
	GCCount       uint32
	MaxPause      time.Duration
}

// Profiler tracks frame rate, pass and draw counts and memory statistics. It logs a Report through
// graph.Logger once per interval.
type Profiler struct {
	mu *sync.Mutex

	updateInterval time.Duration
	lastTime       time.Time
	frames         int
	passes         int
	skipped        int
	draws          int
	skippedPasses  map[graph.Label]bool

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// NewProfiler creates a Profiler that reports once per interval, one second when interval is not
// positive.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: interval,
		lastTime:       time.Now(),
		skippedPasses:  make(map[graph.Label]bool),
	}
}

// Tick records one executed frame and logs a report when the interval has elapsed.
//
// Parameters:
//   - stats: the execute statistics of the frame
//
// Returns:
//   - bool: true if a report was produced this tick
func (p *Profiler) Tick(stats graph.ExecuteStats) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	p.passes += stats.Passes
	p.skipped += stats.Skipped
	p.draws += stats.Draws
	for _, l := range stats.SkippedPasses {
		p.skippedPasses[l] = true
	}

	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	r := Report{
		Frames:  p.frames,
		FPS:     float64(p.frames) / elapsed.Seconds(),
		Passes:  p.passes,
		Skipped: p.skipped,
		Draws:   p.draws,
	}
	for l := range p.skippedPasses {
		r.SkippedPasses = append(r.SkippedPasses, l)
	}
	p.readMemory(&r, elapsed)

	graph.Logger().Info("profiler",
		"fps", r.FPS,
		"draws_per_frame", r.Draws/r.Frames,
		"passes", r.Passes,
		"skipped", r.Skipped,
		"skipped_passes", r.SkippedPasses,
		"heap_mb", r.HeapMB,
		"alloc_rate_mb", r.AllocRateMB,
		"gc", r.GCCount,
		"max_pause", r.MaxPause)

	p.last = r
	p.frames, p.passes, p.skipped, p.draws = 0, 0, 0, 0
	clear(p.skippedPasses)
	p.lastTime = now
	return true
}

// readMemory fills the memory fields of r. PauseNs is a ring of the last 256 GC pauses.
func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	r.GCCount = p.memStats.NumGC

	start := p.lastGCCount
	if r.GCCount-start > 256 {
		start = r.GCCount - 256
	}
	for i := start; i < r.GCCount; i++ {
		if pause := time.Duration(p.memStats.PauseNs[i%256]); pause > r.MaxPause {
			r.MaxPause = pause
		}
	}
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent report, the zero Report before the first interval elapses.
func (p *Profiler) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
