package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/camera"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/Carmen-Shannon/oxy-vr/engine/window"
	"go.uber.org/zap"
)

// ErrMissingCollaborator is returned by NewEngine when no controller or compositor was supplied.
var ErrMissingCollaborator = errors.New("engine: controller and compositor are required")

// Frame is what the render callback receives each frame: the render target to draw both eyes
// into, the viewport to restrict drawing to and per-eye view-projection matrices built from the
// viewport aspect.
type Frame struct {
	// Index counts rendered frames from 0.
	Index int
	// DeltaTime is the wall time since the previous frame in seconds.
	DeltaTime float32
	// Target is the stereo render target; layer 0 is the left eye.
	Target *quality.StereoRenderTarget
	// Viewport is the region of each layer to render.
	Viewport quality.Viewport
	// Usage is the fraction of the render and resolve buffers the viewport covers.
	Usage quality.BufferUsage
	// Projections holds a column-major view-projection matrix per eye.
	Projections [2][16]float32
}

// engine implements the Engine interface.
// The render loop runs on the goroutine that calls Run; application logic ticks on its own goroutine.
type engine struct {
	logger *zap.Logger

	tickRateChannel chan time.Duration
	settingsChannel chan quality.Settings
	settingsSource  <-chan quality.Settings

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once
	errMu       *sync.Mutex
	err         error

	controller quality.Controller
	compositor compositor.Compositor
	window     window.Window
	closed     bool

	profiler         *profiler.Profiler
	profilingEnabled bool
	metrics          *profiler.Metrics

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(frame *Frame)

	camera camera.Camera

	frame      Frame
	lastRender time.Time
}

// Engine drives the per-frame stereo quality loop against a compositor and runs application logic
// on a fixed tick.
type Engine interface {
	// Controller returns the quality controller driven by the render loop. It must only be
	// touched from the render thread, for example inside the render callback.
	//
	// Returns:
	//   - quality.Controller: the controller
	Controller() quality.Controller

	// Window returns the mirror window, or nil when running without one.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Camera returns the stereo camera the per-eye matrices are built from.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// EnableProfiler enables the periodic frame stats log line.
	EnableProfiler()

	// DisableProfiler disables the periodic frame stats log line.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for application logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function that draws both eyes each frame. It runs on the
	// render thread between NewFrame and Resolve and is skipped while rendering is suspended.
	//
	// Parameters:
	//   - callback: function receiving the frame to draw
	SetRenderCallback(callback func(frame *Frame))

	// SetSettings hands new operator settings to the render thread. Safe to call from any
	// goroutine; the latest value wins and takes effect at the start of the next frame.
	//
	// Parameters:
	//   - s: the settings
	SetSettings(s quality.Settings)

	// Run drives frames until the compositor or the window asks to quit, Quit is called or a
	// fatal error occurs. It closes the window before returning.
	//
	// Returns:
	//   - error: the fatal error that ended the session, nil on a clean quit
	Run() error

	// Quit signals the render loop and tick goroutine to stop.
	// Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: ErrMissingCollaborator without a controller or compositor
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		logger:          zap.NewNop(),
		tickRateChannel: make(chan time.Duration, 1),
		settingsChannel: make(chan quality.Settings, 1),
		quitChannel:     make(chan struct{}),
		errMu:           &sync.Mutex{},
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.controller == nil || e.compositor == nil {
		return nil, ErrMissingCollaborator
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}
	if e.camera == nil {
		e.camera = camera.NewCamera()
	}

	if e.window != nil {
		e.window.SetCloseCallback(e.Quit)
		// key callbacks fire inside the window's message pump, which is the render thread
		e.window.SetKeyDownCallback(func(keyCode uint32) {
			s, changed := ApplyKey(e.controller.Settings(), keyCode, e.controller.Table())
			if changed {
				e.controller.SetSettings(s)
				e.logger.Info("operator settings changed",
					zap.Uint32("key", keyCode),
					zap.Float64("desired_supersampling", s.DesiredSupersampling),
					zap.Int("maximum_level", s.MaximumQualityLevel),
					zap.Bool("force_reprojection", s.ForceInterleavedReprojection),
					zap.Bool("suspended", s.SuspendedRendering),
					zap.Bool("double_buffering", s.DoubleBuffering),
					zap.Bool("read_pixel_probe", s.ReadPixelProbe))
			}
		})
	}

	return e, nil
}

func (e *engine) Controller() quality.Controller {
	return e.controller
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Run() error {
	e.running = true
	e.lastRender = time.Now()
	e.wg.Add(1)
	go e.handleEngine()
	if e.settingsSource != nil {
		e.wg.Add(1)
		go e.forwardSettings()
	}

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			if e.quitting() {
				e.closeWindow()
				return
			}
			if err := e.renderFrame(); err != nil {
				e.fail(err)
				e.closeWindow()
			}
		})
		e.window.ProcessMessages()
		e.closeWindow()
		e.signalQuit()
	} else {
		for !e.quitting() {
			if err := e.renderFrame(); err != nil {
				e.fail(err)
			}
		}
	}

	e.wg.Wait()
	e.running = false
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// fail records the first fatal error and stops the session.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
		e.logger.Error("session terminated", zap.Error(err))
	}
	e.errMu.Unlock()
	e.signalQuit()
}

func (e *engine) closeWindow() {
	if e.window == nil || e.closed {
		return
	}
	e.closed = true
	if err := e.window.Close(); err != nil {
		e.logger.Warn("failed to close mirror window", zap.Error(err))
	}
}

// renderFrame runs one frame of the stereo loop: apply pending settings and device events, adapt
// quality from the last frame's telemetry, render, resolve, present and wait for the compositor.
func (e *engine) renderFrame() error {
	e.drainSettings()
	if err := e.drainEvents(); err != nil {
		return err
	}
	if e.quitting() {
		return nil
	}

	now := time.Now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	c := e.controller
	usage := c.NewFrame(quality.PollTelemetry(e.compositor))
	stats := c.Stats()
	if r, ok := e.compositor.(compositor.WorkloadReporter); ok && !stats.Suspended {
		r.ReportWorkload(compositor.Workload{Pixels: stats.Viewport.Pixels(), Samples: stats.MSAALevel})
	}

	if !stats.Suspended {
		if e.renderCallback != nil {
			e.prepareFrame(dt, usage, stats.Viewport)
			e.renderCallback(&e.frame)
		}
		if err := c.Resolve(); err != nil {
			return err
		}
		if err := c.Present(c.Settings().ReadPixelProbe); err != nil {
			return err
		}
		c.Swap()
		e.frame.Index++
	}

	stats = c.Stats()
	if e.metrics != nil {
		e.metrics.Record(stats)
	}
	if e.profilingEnabled {
		e.profiler.Tick(stats)
	}

	if err := e.compositor.WaitFrame(); err != nil {
		return fmt.Errorf("compositor wait failed: %w", err)
	}
	return nil
}

// prepareFrame fills the reusable Frame without allocating.
func (e *engine) prepareFrame(dt float32, usage quality.BufferUsage, vp quality.Viewport) {
	f := &e.frame
	f.DeltaTime = dt
	f.Target = e.controller.CurrentRenderTarget()
	f.Viewport = vp
	f.Usage = usage

	e.camera.SetAspect(float32(vp.Aspect))
	e.camera.EyeMatrices(&f.Projections)
}

func (e *engine) drainSettings() {
	select {
	case s := <-e.settingsChannel:
		e.controller.SetSettings(s)
	default:
	}
}

func (e *engine) drainEvents() error {
	for {
		ev, ok := e.compositor.PollEvent()
		if !ok {
			return nil
		}
		switch ev.Kind {
		case compositor.EventResolutionChanged:
			if err := e.controller.Resize(ev.Width, ev.Height); err != nil {
				return err
			}
		case compositor.EventQuit:
			e.logger.Info("compositor requested quit")
			e.signalQuit()
		}
	}
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// forwardSettings relays an external settings stream, such as a config watcher, to the render thread.
func (e *engine) forwardSettings() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quitChannel:
			return
		case s, ok := <-e.settingsSource:
			if !ok {
				return
			}
			e.SetSettings(s)
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running {
		replacePending(e.tickRateChannel, newRate)
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(frame *Frame)) {
	e.renderCallback = callback
}

func (e *engine) SetSettings(s quality.Settings) {
	replacePending(e.settingsChannel, s)
}

// replacePending sends v on a one-slot channel, dropping a value that was not consumed yet.
func replacePending[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
