package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"go.uber.org/zap"
)

// Profiler tracks frame rate, memory statistics and the quality controller's state, and logs a
// summary at a configurable interval.
type Profiler struct {
	logger         *zap.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// quality counters at the previous report, for per-interval deltas
	lastUp      int
	lastDown    int
	lastDropped int
	utilSum     float64
	utilFrames  int
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options for the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         zap.NewNop(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the controller's stats for that frame.
// Logs performance statistics when the update interval has elapsed: FPS, quality level,
// mean utilization, adaptations and dropped frames over the interval, heap usage, allocation
// rate and GC pauses.
//
// Parameters:
//   - stats: the controller stats of the frame just completed
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats quality.FrameStats) bool {
	p.frameCount++
	if stats.TelemetryAvailable && !stats.Suspended {
		p.utilSum += stats.Utilization
		p.utilFrames++
	}

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	meanUtil := 0.0
	if p.utilFrames > 0 {
		meanUtil = p.utilSum / float64(p.utilFrames)
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("frame stats",
		zap.Float64("fps", fps),
		zap.Int("level", stats.Level),
		zap.Float64("mean_utilization", meanUtil),
		zap.Float64("supersampling", stats.ActualSupersampling),
		zap.Int("viewport_width", stats.Viewport.Width),
		zap.Int("viewport_height", stats.Viewport.Height),
		zap.Int("adaptations_up", stats.AdaptationsUp-p.lastUp),
		zap.Int("adaptations_down", stats.AdaptationsDown-p.lastDown),
		zap.Int("dropped_frames", stats.DroppedFrames-p.lastDropped),
		zap.Bool("reprojecting", stats.InterleavedReprojection),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc_count", gcCount),
		zap.Uint64("gc_last_pause_us", lastPauseUs),
		zap.Uint64("gc_max_pause_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB))

	p.frameCount = 0
	p.utilSum, p.utilFrames = 0, 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastUp, p.lastDown, p.lastDropped = stats.AdaptationsUp, stats.AdaptationsDown, stats.DroppedFrames
	return true
}
