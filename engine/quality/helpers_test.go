package quality

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/stretchr/testify/require"
)

const testFrameDuration = 10 * time.Millisecond

// telemetry builds available telemetry with the given utilization against testFrameDuration.
func telemetry(utilization float64) Telemetry {
	return Telemetry{
		Timing: compositor.FrameTiming{
			ClientFrameInterval: time.Duration(utilization * float64(testFrameDuration)),
		},
		TargetFrameDuration: testFrameDuration,
		Available:           true,
	}
}

func droppedTelemetry(utilization float64, dropped int) Telemetry {
	t := telemetry(utilization)
	t.Timing.NumDroppedFrames = dropped
	return t
}

func unavailableTelemetry() Telemetry {
	return Telemetry{TargetFrameDuration: testFrameDuration}
}

type fixture struct {
	controller *controller
	device     gpu.HeadlessDevice
	compositor compositor.Simulated
}

func newFixture(t *testing.T, options ...ControllerBuilderOption) fixture {
	t.Helper()
	device := gpu.NewHeadlessDevice()
	comp := compositor.NewSimulated(compositor.WithSimulatedNoise(0))
	c, err := NewController(device, comp, options...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return fixture{controller: c.(*controller), device: device, compositor: comp}
}

// frame runs one full frame with scripted telemetry.
func (f fixture) frame(t *testing.T, tel Telemetry) {
	t.Helper()
	f.controller.NewFrame(tel)
	require.NoError(t, f.controller.Resolve())
	require.NoError(t, f.controller.Present(false))
	f.controller.Swap()
}

// simulatedFrame runs one frame against the simulated compositor's cost model.
func (f fixture) simulatedFrame(t *testing.T) {
	t.Helper()
	c := f.controller
	c.NewFrame(PollTelemetry(f.compositor))
	stats := c.Stats()
	f.compositor.ReportWorkload(compositor.Workload{Pixels: stats.Viewport.Pixels(), Samples: stats.MSAALevel})
	require.NoError(t, c.Resolve())
	require.NoError(t, c.Present(false))
	c.Swap()
	require.NoError(t, f.compositor.WaitFrame())
}

func settingsWith(mutate func(*Settings)) Settings {
	s := DefaultSettings()
	mutate(&s)
	return s
}
