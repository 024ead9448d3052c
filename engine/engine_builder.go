package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/camera"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/Carmen-Shannon/oxy-vr/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithController sets the quality controller the render loop drives.
//
// Parameters:
//   - c: the controller, built against the same compositor
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithController(c quality.Controller) EngineBuilderOption {
	return func(e *engine) {
		e.controller = c
	}
}

// WithCompositor sets the compositor frames are paced by and submitted to.
//
// Parameters:
//   - c: the compositor
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCompositor(c compositor.Compositor) EngineBuilderOption {
	return func(e *engine) {
		e.compositor = c
	}
}

// WithProfiling enables or disables the periodic frame stats log line.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithMetrics records every frame's stats into Prometheus collectors.
//
// Parameters:
//   - m: the metrics
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMetrics(m *profiler.Metrics) EngineBuilderOption {
	return func(e *engine) {
		e.metrics = m
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the desktop mirror window. The engine pumps its messages on the render thread,
// maps its keys to operator settings and closes it when Run returns.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithSettingsSource relays every value received on ch to the render thread as new operator settings.
//
// Parameters:
//   - ch: the settings stream, for example from a config watcher
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSettingsSource(ch <-chan quality.Settings) EngineBuilderOption {
	return func(e *engine) {
		e.settingsSource = ch
	}
}

// WithCamera sets the stereo camera the per-eye matrices handed to the render callback come from.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logger
	}
}
