// Package quality implements adaptive stereo render quality: a control loop that turns compositor
// telemetry into a quality level, pools of multisampled render targets and double-buffered resolve
// targets, viewport derivation and the fenced present pipeline.
package quality

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"go.uber.org/zap"
)

// telemetryWarnFrames is the length of an unavailable-telemetry streak that triggers a warning.
const telemetryWarnFrames = 90

// Telemetry is one frame of compositor timing as consumed by NewFrame.
type Telemetry struct {
	Timing              compositor.FrameTiming
	TargetFrameDuration time.Duration
	// Available is false when the compositor had no timing for the last frame.
	Available bool
}

// Valid reports whether the telemetry can drive adaptation. A non-positive frame budget or a
// negative interval is treated like missing timing.
func (t Telemetry) Valid() bool {
	return t.Available && t.TargetFrameDuration > 0 && t.Timing.ClientFrameInterval >= 0
}

// PollTelemetry reads the compositor's timing for the last frame. A timing error yields
// unavailable telemetry rather than an error.
//
// Parameters:
//   - c: the compositor
//
// Returns:
//   - Telemetry: the telemetry for NewFrame
func PollTelemetry(c compositor.Compositor) Telemetry {
	timing, err := c.FrameTiming()
	return Telemetry{
		Timing:              timing,
		TargetFrameDuration: c.DisplayFrameDuration(),
		Available:           err == nil,
	}
}

// BufferUsage is the fraction of the allocated render and resolve buffers the viewport covers,
// used to scale texture coordinates when sampling them.
type BufferUsage struct {
	Render  float64
	Resolve float64
}

type controller struct {
	logger *zap.Logger
	device gpu.Device
	comp   compositor.Compositor

	table     Table
	globalMax float64
	settings  Settings

	renderPool   *RenderTargetPool
	resolvePool  *ResolveTargetPool
	recommendedW int
	recommendedH int

	frame             int
	level             int
	history           utilizationHistory
	lowStreak         int
	lastAdaptedFrame  int
	unavailableStreak int
	telemetryOK       bool
	adapted           bool
	lastReason        Reason

	actualSupersampling float64
	viewport            Viewport
	lastViewport        Viewport
	reprojecting        bool
	usage               BufferUsage
	resolveIndex        int

	adaptationsUp        int
	adaptationsDown      int
	droppedFrames        int
	telemetryUnavailable int
	submitErrors         int
	fenceWaits           int
	fenceWaitAttempts    int
	probePixel           [4]uint8
	probeValid           bool

	released bool
}

// Controller is the adaptive quality control loop together with the render target pools and the
// present pipeline it drives. It is owned by the render thread: every method must be called from
// that thread and no method is safe for concurrent use.
type Controller interface {
	// NewFrame ingests the last frame's telemetry, adapts the quality level, derives the viewport
	// and clears the selected render target. It must be called exactly once per frame before any
	// rendering. It never fails: missing telemetry holds the current level.
	//
	// Parameters:
	//   - t: the compositor telemetry
	//
	// Returns:
	//   - BufferUsage: the fraction of the render and resolve buffers the viewport covers
	NewFrame(t Telemetry) BufferUsage

	// CurrentRenderTarget returns the render target selected for this frame. The renderer must
	// not retain it past Swap.
	//
	// Returns:
	//   - *StereoRenderTarget: the render target, nil after Release or a failed Resize
	CurrentRenderTarget() *StereoRenderTarget

	// CurrentResolveTarget returns the resolve buffer this frame resolves into.
	//
	// Returns:
	//   - *StereoResolveTarget: the resolve target, nil after Release or a failed Resize
	CurrentResolveTarget() *StereoResolveTarget

	// Resolve blits both eye layers of the current render target, limited to the viewport, into
	// the current resolve buffer.
	//
	// Returns:
	//   - error: ErrResolveTargetInFlight if the buffer's fence is still outstanding, or a device error
	Resolve() error

	// Present submits a resolve buffer to the compositor. With double buffering it waits for the
	// other buffer's fence, submits that buffer at the last completed frame's viewport and fences
	// the buffer resolved this frame. It is a no-op while rendering is suspended.
	//
	// Parameters:
	//   - readPixelProbe: read one pixel of the submitted buffer back before submission
	//
	// Returns:
	//   - error: ErrFenceWaitFailed or ErrFenceWaitExhausted, both fatal for the session
	Present(readPixelProbe bool) error

	// Swap records the viewport of the completed frame and, with double buffering, flips the
	// current resolve buffer.
	Swap()

	// Resize tears down both pools and rebuilds them for a new recommended size.
	//
	// Parameters:
	//   - width, height: the new recommended per-eye size
	//
	// Returns:
	//   - error: an allocation or ErrIncompleteFramebuffer error
	Resize(width, height int) error

	// Release frees every GPU resource. Calling it more than once is a no-op.
	Release()

	// Level returns the current quality level.
	Level() int

	// Viewport returns the viewport derived for the current frame.
	Viewport() Viewport

	// Stats returns a snapshot of the controller state.
	Stats() FrameStats

	// Settings returns the operator settings.
	Settings() Settings

	// SetSettings replaces the operator settings. They take effect on the next NewFrame.
	SetSettings(s Settings)

	// Table returns a copy of the quality table.
	Table() Table
}

var _ Controller = &controller{}

// NewController validates the quality table, queries the compositor's recommended size and
// allocates both target pools. Allocation and completeness failures are returned eagerly.
//
// Parameters:
//   - device: the GPU device
//   - comp: the compositor
//   - options: functional options for the controller
//
// Returns:
//   - Controller: the controller
//   - error: ErrInvalidTable, ErrIncompleteFramebuffer or an allocation error
func NewController(device gpu.Device, comp compositor.Compositor, options ...ControllerBuilderOption) (Controller, error) {
	c := &controller{
		logger:           zap.NewNop(),
		device:           device,
		comp:             comp,
		table:            DefaultTable(),
		settings:         DefaultSettings(),
		level:            -1,
		frame:            0,
		lastAdaptedFrame: -minFramesBetweenAdaptations,
	}
	for _, opt := range options {
		opt(c)
	}

	if err := c.table.Validate(); err != nil {
		return nil, err
	}
	c.globalMax = c.table.GlobalMaxSupersampling()
	if c.level < 0 {
		c.level = (c.table.Len() - 1) / 2
	}
	c.level = common.Clamp(c.level, 0, c.table.Len()-1)

	w, h := comp.RecommendedRenderTargetSize()
	if err := c.allocate(w, h); err != nil {
		return nil, err
	}
	c.derive()
	return c, nil
}

func (c *controller) allocate(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid recommended size %dx%d", width, height)
	}
	rp, err := NewRenderTargetPool(c.device, c.table.RenderTargets, width, height, c.logger)
	if err != nil {
		return fmt.Errorf("failed to build render target pool: %w", err)
	}
	sp, err := NewResolveTargetPool(c.device, c.globalMax, width, height, c.logger)
	if err != nil {
		rp.Release()
		return fmt.Errorf("failed to build resolve target pool: %w", err)
	}
	c.renderPool, c.resolvePool = rp, sp
	c.recommendedW, c.recommendedH = width, height
	c.resolveIndex = 0
	c.lastViewport = Viewport{}
	return nil
}

func (c *controller) releasePools() {
	c.renderPool.Release()
	c.resolvePool.Release()
	c.renderPool, c.resolvePool = nil, nil
}

// derive computes the per-frame values that follow from the level and the settings.
func (c *controller) derive() {
	lvl := c.table.Levels[c.level]
	meta := c.table.RenderTargets[lvl.RenderTargetIndex]
	c.reprojecting = c.settings.ForceInterleavedReprojection || lvl.ForceInterleavedReprojection
	c.actualSupersampling = ActualSupersampling(lvl, meta, c.settings.desiredSupersampling(c.globalMax))
	c.viewport = DeriveViewport(c.recommendedW, c.recommendedH, c.actualSupersampling)
	c.usage = BufferUsage{
		Render:  c.actualSupersampling / meta.MaxSupersampling,
		Resolve: c.actualSupersampling / c.globalMax,
	}
}

func (c *controller) NewFrame(t Telemetry) BufferUsage {
	if c.released {
		return BufferUsage{}
	}
	frame := c.frame
	c.frame++
	c.adapted = false
	valid := t.Valid()
	c.telemetryOK = valid
	s := c.settings
	lo, hi := s.levelBand(c.table)

	if !valid {
		c.unavailableStreak++
		c.telemetryUnavailable++
		if c.unavailableStreak%telemetryWarnFrames == 0 {
			c.logger.Warn("frame timing unavailable", zap.Int("frames", c.unavailableStreak), zap.Int("level", c.level))
		}
	} else {
		c.unavailableStreak = 0
	}

	if valid && !s.SuspendedRendering {
		dropped := max(t.Timing.NumDroppedFrames, 0)
		c.droppedFrames += dropped

		// the budget uses the reprojection state the measured frame ran under
		u := Utilization(t.Timing.ClientFrameInterval, t.TargetFrameDuration, t.Timing.LowResources, c.reprojecting)
		c.history.push(u)
		if u < headroomUtilization {
			c.lowStreak++
		} else {
			c.lowStreak = 0
		}

		if frame-c.lastAdaptedFrame >= minFramesBetweenAdaptations {
			next, reason := decide(c.table, c.level, dropped, c.lowStreak, c.history)
			next = common.Clamp(next, lo, hi)
			// a band change can reverse the step; the clamp below moves the level instead
			if reason != ReasonNone && next != c.level && reason.Upgrade() == (next > c.level) {
				c.adapt(frame, next, reason)
			}
		}
	}

	c.level = common.Clamp(c.level, lo, hi)
	c.derive()
	c.comp.SetForceInterleavedReprojection(c.reprojecting)

	if !s.SuspendedRendering && !c.renderPool.Released() {
		rt := c.CurrentRenderTarget()
		if err := c.device.ClearRenderTarget(rt.Color, rt.DepthStencil, c.viewport.Width, c.viewport.Height); err != nil {
			c.logger.Error("failed to clear render target", zap.Int("render_target", rt.Index), zap.Error(err))
		}
	}
	return c.usage
}

func (c *controller) adapt(frame, next int, reason Reason) {
	c.logger.Debug("quality adapted",
		zap.Int("frame", frame),
		zap.Int("from", c.level),
		zap.Int("to", next),
		zap.Stringer("reason", reason),
		zap.Float64("utilization", c.history.current))
	if next > c.level {
		c.adaptationsUp++
	} else {
		c.adaptationsDown++
	}
	c.level = next
	c.lastAdaptedFrame = frame
	c.lastReason = reason
	c.adapted = true
	c.lowStreak = 0
}

func (c *controller) CurrentRenderTarget() *StereoRenderTarget {
	if c.released || c.renderPool.Released() {
		return nil
	}
	return c.renderPool.Target(c.table.Levels[c.level].RenderTargetIndex)
}

func (c *controller) CurrentResolveTarget() *StereoResolveTarget {
	if c.released || c.resolvePool.Released() {
		return nil
	}
	return c.resolvePool.Target(c.resolveIndex)
}

func (c *controller) Resolve() error {
	if c.released {
		return ErrReleased
	}
	if c.settings.SuspendedRendering {
		return nil
	}
	rt, dst := c.CurrentRenderTarget(), c.CurrentResolveTarget()
	if rt == nil || dst == nil {
		return fmt.Errorf("%w: no targets allocated", ErrReleased)
	}
	if dst.InFlight() {
		return fmt.Errorf("%w: resolve target %d", ErrResolveTargetInFlight, dst.Index)
	}
	vp := c.viewport
	if vp.Width > dst.Width || vp.Height > dst.Height {
		return fmt.Errorf("%w: viewport %dx%d, resolve target %d is %dx%d",
			ErrViewportExceedsTarget, vp.Width, vp.Height, dst.Index, dst.Width, dst.Height)
	}
	for _, eye := range compositor.Eyes {
		if err := c.device.ResolveLayer(rt.Color, dst.Color, int(eye), vp.Width, vp.Height, c.settings.ResolveFilter); err != nil {
			return fmt.Errorf("failed to resolve %s eye of render target %d into resolve target %d: %w", eye, rt.Index, dst.Index, err)
		}
	}
	dst.resolved = true
	return nil
}

func (c *controller) Swap() {
	if c.released {
		return
	}
	c.lastViewport = c.viewport
	if c.settings.DoubleBuffering {
		c.resolveIndex = 1 - c.resolveIndex
	}
}

func (c *controller) Resize(width, height int) error {
	if c.released {
		return ErrReleased
	}
	c.releasePools()
	if err := c.allocate(width, height); err != nil {
		return fmt.Errorf("failed to resize to %dx%d: %w", width, height, err)
	}
	c.derive()
	c.logger.Info("stereo targets resized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("viewport_width", c.viewport.Width),
		zap.Int("viewport_height", c.viewport.Height))
	return nil
}

func (c *controller) Release() {
	if c.released {
		return
	}
	c.releasePools()
	c.released = true
}

func (c *controller) Level() int { return c.level }

func (c *controller) Viewport() Viewport { return c.viewport }

func (c *controller) Settings() Settings { return c.settings }

func (c *controller) SetSettings(s Settings) {
	c.logger.Debug("quality settings updated",
		zap.Float64("desired_supersampling", s.DesiredSupersampling),
		zap.Int("minimum_level", s.MinimumQualityLevel),
		zap.Int("maximum_level", s.MaximumQualityLevel),
		zap.Bool("force_reprojection", s.ForceInterleavedReprojection),
		zap.Bool("suspended", s.SuspendedRendering),
		zap.Bool("double_buffering", s.DoubleBuffering))
	c.settings = s
}

func (c *controller) Table() Table { return c.table.Clone() }

func (c *controller) Stats() FrameStats {
	lvl := c.table.Levels[c.level]
	return FrameStats{
		Frame:                   c.frame - 1,
		Level:                   c.level,
		Utilization:             c.history.current,
		PrevUtilization:         c.history.prev,
		PrevPrevUtilization:     c.history.prevPrev,
		TelemetryAvailable:      c.telemetryOK,
		Suspended:               c.settings.SuspendedRendering,
		ActualSupersampling:     c.actualSupersampling,
		Viewport:                c.viewport,
		LastViewport:            c.lastViewport,
		RenderBufferUsage:       c.usage.Render,
		ResolveBufferUsage:      c.usage.Resolve,
		InterleavedReprojection: c.reprojecting,
		RenderTargetIndex:       lvl.RenderTargetIndex,
		MSAALevel:               c.table.RenderTargets[lvl.RenderTargetIndex].MSAALevel,
		ResolveIndex:            c.resolveIndex,
		Adapted:                 c.adapted,
		LastAdaptedFrame:        c.lastAdaptedFrame,
		LastReason:              c.lastReason,
		AdaptationsUp:           c.adaptationsUp,
		AdaptationsDown:         c.adaptationsDown,
		DroppedFrames:           c.droppedFrames,
		TelemetryUnavailable:    c.telemetryUnavailable,
		SubmitErrors:            c.submitErrors,
		FenceWaits:              c.fenceWaits,
		FenceWaitAttempts:       c.fenceWaitAttempts,
		ProbePixel:              c.probePixel,
		ProbeValid:              c.probeValid,
	}
}
