package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-vr/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	engine     *engine
	device     gpu.HeadlessDevice
	compositor compositor.Simulated
	controller quality.Controller
}

func newRig(t *testing.T, simOptions []compositor.SimulatedOption, options ...EngineBuilderOption) rig {
	t.Helper()
	device := gpu.NewHeadlessDevice()
	comp := compositor.NewSimulated(append([]compositor.SimulatedOption{compositor.WithSimulatedNoise(0)}, simOptions...)...)
	c, err := quality.NewController(device, comp)
	require.NoError(t, err)
	t.Cleanup(c.Release)

	e, err := NewEngine(append([]EngineBuilderOption{WithController(c), WithCompositor(comp)}, options...)...)
	require.NoError(t, err)
	return rig{engine: e.(*engine), device: device, compositor: comp, controller: c}
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine()
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = NewEngine(WithCompositor(compositor.NewSimulated()))
	assert.ErrorIs(t, err, ErrMissingCollaborator)
}

func TestRunUntilCompositorQuits(t *testing.T) {
	r := newRig(t, []compositor.SimulatedOption{compositor.WithSimulatedFrameLimit(50)})

	var indices []int
	r.engine.SetRenderCallback(func(f *Frame) {
		indices = append(indices, f.Index)
		require.NotNil(t, f.Target)
		assert.Equal(t, r.controller.Viewport(), f.Viewport)
		assert.LessOrEqual(t, f.Viewport.Width, f.Target.Width)
		assert.LessOrEqual(t, f.Usage.Render, 1.0)

		assert.Positive(t, f.Projections[compositor.EyeLeft][12])
		assert.InDelta(t, f.Projections[compositor.EyeLeft][12], -f.Projections[compositor.EyeRight][12], 1e-6)
		assert.Equal(t, f.Projections[compositor.EyeLeft][0], f.Projections[compositor.EyeRight][0])
	})

	require.NoError(t, r.engine.Run())

	require.Len(t, indices, 50)
	for i, idx := range indices {
		assert.Equal(t, i, idx)
	}
	assert.Equal(t, 50, r.compositor.Frame())
	assert.Equal(t, 98, r.compositor.SubmissionCount())
}

func TestRunAppliesResolutionChange(t *testing.T) {
	r := newRig(t, []compositor.SimulatedOption{
		compositor.WithSimulatedFrameLimit(20),
		compositor.WithSimulatedResizeAt(10, 2016, 2240),
	})

	require.NoError(t, r.engine.Run())

	rt := r.controller.CurrentResolveTarget()
	require.NotNil(t, rt)
	assert.Equal(t, 3225, rt.Width)
	assert.Zero(t, r.device.Stats().DoubleReleases)
}

func TestRunReturnsFatalPresentError(t *testing.T) {
	r := newRig(t, []compositor.SimulatedOption{compositor.WithSimulatedFrameLimit(100)})
	r.device.SetFenceWaitFailure(true)

	err := r.engine.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, quality.ErrFenceWaitFailed)
	assert.Equal(t, 1, r.compositor.Frame(), "the second present waits on the first fence")
}

func TestSettingsHandOff(t *testing.T) {
	r := newRig(t, []compositor.SimulatedOption{compositor.WithSimulatedFrameLimit(5)})

	s := quality.DefaultSettings()
	s.DesiredSupersampling = 0.5
	r.engine.SetSettings(quality.DefaultSettings())
	r.engine.SetSettings(s)

	var first quality.Viewport
	r.engine.SetRenderCallback(func(f *Frame) {
		if f.Index == 0 {
			first = f.Viewport
		}
	})
	require.NoError(t, r.engine.Run())

	assert.Equal(t, 0.5, r.controller.Settings().DesiredSupersampling)
	assert.Less(t, first.Width, 1000, "the latest settings apply from the first frame")
}

func TestSettingsSourceIsForwarded(t *testing.T) {
	source := make(chan quality.Settings, 1)
	r := newRig(t, []compositor.SimulatedOption{compositor.WithSimulatedFrameLimit(5)}, WithSettingsSource(source))

	s := quality.DefaultSettings()
	s.ForceInterleavedReprojection = true
	source <- s

	r.engine.SetRenderCallback(func(f *Frame) {
		if f.Index == 0 {
			assert.Eventually(t, func() bool {
				return len(source) == 0 && len(r.engine.settingsChannel) == 1
			}, time.Second, time.Millisecond)
		}
	})
	require.NoError(t, r.engine.Run())

	assert.True(t, r.controller.Settings().ForceInterleavedReprojection)
	assert.True(t, r.compositor.ForcedReprojection())
}

func TestSuspendedRenderingSkipsTheRenderCallback(t *testing.T) {
	r := newRig(t, []compositor.SimulatedOption{compositor.WithSimulatedFrameLimit(10)})
	s := quality.DefaultSettings()
	s.SuspendedRendering = true
	r.engine.SetSettings(s)

	calls := 0
	r.engine.SetRenderCallback(func(*Frame) { calls++ })
	require.NoError(t, r.engine.Run())

	assert.Zero(t, calls)
	assert.Equal(t, 10, r.compositor.Frame())
	assert.Zero(t, r.compositor.SubmissionCount())
	assert.Zero(t, r.device.Stats().Resolves)
}

func TestMetricsAreRecordedEachFrame(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newRig(t, []compositor.SimulatedOption{compositor.WithSimulatedFrameLimit(30)}, WithMetrics(profiler.NewMetrics(reg)))

	require.NoError(t, r.engine.Run())

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, float64(r.controller.Level()), values["oxyvr_quality_level"])
	assert.Equal(t, float64(r.controller.Viewport().Pixels()), values["oxyvr_viewport_pixels"])
	assert.Equal(t, 29.0, values["oxyvr_fence_wait_attempts"])
}

func TestQuitFromTickCallback(t *testing.T) {
	r := newRig(t, nil, WithTickRate(500))

	ticks := 0
	r.engine.SetTickCallback(func(dt float32) {
		ticks++
		if ticks == 3 {
			r.engine.Quit()
		}
	})

	require.NoError(t, r.engine.Run())
	assert.GreaterOrEqual(t, ticks, 3)
	assert.Positive(t, r.compositor.Frame())
}

func TestApplyKey(t *testing.T) {
	table := quality.DefaultTable()
	base := quality.DefaultSettings()

	tests := []struct {
		name    string
		start   func(*quality.Settings)
		key     uint32
		check   func(t *testing.T, s quality.Settings)
		changed bool
	}{
		{
			name:    "raise supersampling",
			key:     common.KeyEqual,
			check:   func(t *testing.T, s quality.Settings) { assert.InDelta(t, 1.1, s.DesiredSupersampling, 1e-9) },
			changed: true,
		},
		{
			name:    "supersampling capped at the largest target",
			start:   func(s *quality.Settings) { s.DesiredSupersampling = 1.6 },
			key:     common.KeyEqual,
			changed: false,
		},
		{
			name:    "lower supersampling floors at the minimum",
			start:   func(s *quality.Settings) { s.DesiredSupersampling = 0.35 },
			key:     common.KeyMinus,
			check:   func(t *testing.T, s quality.Settings) { assert.InDelta(t, 0.3, s.DesiredSupersampling, 1e-9) },
			changed: true,
		},
		{
			name:    "lower maximum level",
			key:     common.KeyLeftBracket,
			check:   func(t *testing.T, s quality.Settings) { assert.Equal(t, 9, s.MaximumQualityLevel) },
			changed: true,
		},
		{
			name:    "maximum level stops at the top",
			key:     common.KeyRightBracket,
			changed: false,
		},
		{
			name:  "reset band",
			start: func(s *quality.Settings) { s.MinimumQualityLevel, s.MaximumQualityLevel = 4, 5 },
			key:   common.Key0,
			check: func(t *testing.T, s quality.Settings) {
				assert.Equal(t, 0, s.MinimumQualityLevel)
				assert.Equal(t, 10, s.MaximumQualityLevel)
			},
			changed: true,
		},
		{
			name:    "toggle reprojection",
			key:     common.KeyR,
			check:   func(t *testing.T, s quality.Settings) { assert.True(t, s.ForceInterleavedReprojection) },
			changed: true,
		},
		{
			name:    "toggle double buffering",
			key:     common.KeyD,
			check:   func(t *testing.T, s quality.Settings) { assert.False(t, s.DoubleBuffering) },
			changed: true,
		},
		{
			name:    "toggle suspend",
			key:     common.KeyP,
			check:   func(t *testing.T, s quality.Settings) { assert.True(t, s.SuspendedRendering) },
			changed: true,
		},
		{
			name:    "toggle probe",
			key:     common.KeyX,
			check:   func(t *testing.T, s quality.Settings) { assert.True(t, s.ReadPixelProbe) },
			changed: true,
		},
		{
			name:    "unbound key",
			key:     'Q',
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			if tt.start != nil {
				tt.start(&s)
			}
			got, changed := ApplyKey(s, tt.key, table)
			assert.Equal(t, tt.changed, changed)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}
