package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveViewport(t *testing.T) {
	tests := []struct {
		name          string
		w, h          int
		supersampling float64
		expected      Viewport
	}{
		{
			name:          "unit supersampling",
			w:             1512,
			h:             1680,
			supersampling: 1.0,
			expected:      Viewport{Width: 1512, Height: 1680, Aspect: 1512.0 / 1680.0},
		},
		{
			name:          "fractional result floors",
			w:             1512,
			h:             1680,
			supersampling: 0.94,
			expected:      Viewport{Width: 1421, Height: 1579, Aspect: 1421.0 / 1579.0},
		},
		{
			name:          "upscale",
			w:             1000,
			h:             1100,
			supersampling: 1.25,
			expected:      Viewport{Width: 1250, Height: 1375, Aspect: 1250.0 / 1375.0},
		},
		{
			name:          "degenerate height has no aspect",
			w:             100,
			h:             1,
			supersampling: 0.5,
			expected:      Viewport{Width: 50, Height: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveViewport(tt.w, tt.h, tt.supersampling)
			assert.Equal(t, tt.expected.Width, got.Width)
			assert.Equal(t, tt.expected.Height, got.Height)
			assert.InDelta(t, tt.expected.Aspect, got.Aspect, 1e-12)
		})
	}
}

func TestActualSupersamplingNeverExceedsRenderTarget(t *testing.T) {
	table := DefaultTable()
	globalMax := table.GlobalMaxSupersampling()

	for level := range table.Levels {
		meta := table.Meta(level)
		for desired := MinDesiredSupersampling; desired <= globalMax+1e-9; desired += 0.01 {
			actual := ActualSupersampling(table.Levels[level], meta, desired)
			assert.LessOrEqual(t, actual, meta.MaxSupersampling, "level %d desired %.2f", level, desired)

			vp := DeriveViewport(1512, 1680, actual)
			assert.LessOrEqual(t, vp.Width, allocationSize(1512, meta.MaxSupersampling))
			assert.LessOrEqual(t, vp.Height, allocationSize(1680, meta.MaxSupersampling))
			assert.LessOrEqual(t, vp.Width, allocationSize(1512, globalMax))
		}
	}
}

func TestControllerSupersamplingClamp(t *testing.T) {
	f := newFixture(t)
	c := f.controller
	table := c.Table()

	for level := range table.Levels {
		for _, desired := range []float64{0.0, 0.3, 0.75, 1.0, 1.3, 1.6, 4.0} {
			c.SetSettings(settingsWith(func(s *Settings) {
				s.MinimumQualityLevel = level
				s.MaximumQualityLevel = level
				s.DesiredSupersampling = desired
			}))
			usage := c.NewFrame(unavailableTelemetry())
			stats := c.Stats()
			meta := table.Meta(level)

			assert.Equal(t, level, stats.Level)
			assert.LessOrEqual(t, stats.ActualSupersampling, meta.MaxSupersampling)
			assert.GreaterOrEqual(t, stats.ActualSupersampling, table.Levels[level].ResolutionScale*MinDesiredSupersampling-1e-12)
			assert.LessOrEqual(t, usage.Render, 1.0)
			assert.LessOrEqual(t, usage.Resolve, 1.0)

			rt := c.CurrentRenderTarget()
			assert.LessOrEqual(t, stats.Viewport.Width, rt.Width)
			assert.LessOrEqual(t, stats.Viewport.Height, rt.Height)
		}
	}
}

func TestBufferUsage(t *testing.T) {
	f := newFixture(t, WithInitialLevel(6))

	usage := f.controller.NewFrame(unavailableTelemetry())
	stats := f.controller.Stats()

	assert.InDelta(t, 1.0, stats.ActualSupersampling, 1e-12)
	assert.InDelta(t, 1.0/1.4, usage.Render, 1e-12)
	assert.InDelta(t, 1.0/1.6, usage.Resolve, 1e-12)
	assert.Equal(t, Viewport{Width: 1512, Height: 1680, Aspect: 1512.0 / 1680.0}, f.controller.Viewport())
}

func TestDesiredSupersamplingIsClamped(t *testing.T) {
	f := newFixture(t, WithInitialLevel(10), WithSettings(settingsWith(func(s *Settings) {
		s.DesiredSupersampling = 5
	})))
	f.controller.NewFrame(unavailableTelemetry())
	// 1.4 * clamp(5, 0.3, 1.6) capped at the 8x target's 1.6
	assert.InDelta(t, 1.6, f.controller.Stats().ActualSupersampling, 1e-12)

	f.controller.SetSettings(settingsWith(func(s *Settings) {
		s.DesiredSupersampling = 0.01
		s.MinimumQualityLevel = 6
		s.MaximumQualityLevel = 6
	}))
	f.controller.NewFrame(unavailableTelemetry())
	assert.InDelta(t, 0.3, f.controller.Stats().ActualSupersampling, 1e-12)
}
