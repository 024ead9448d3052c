package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesControllerDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, quality.DefaultSettings(), cfg.Settings())
	assert.Equal(t, quality.DefaultTable(), cfg.Table())
}

func TestParseOverridesOnlyGivenKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
quality:
  desired_supersampling: 1.3
  maximum_quality_level: 7
  double_buffering: false
  resolve_filter: nearest
  fence_poll_timeout: 2ms
  fence_max_attempts: 0
log:
  level: debug
simulation:
  profile: spike
  frames: 500
`))
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 1.3, s.DesiredSupersampling)
	assert.Equal(t, 0, s.MinimumQualityLevel)
	assert.Equal(t, 7, s.MaximumQualityLevel)
	assert.False(t, s.DoubleBuffering)
	assert.Equal(t, gpu.FilterNearest, s.ResolveFilter)
	assert.Equal(t, 2*time.Millisecond, s.FencePollTimeout)
	assert.Zero(t, s.FenceMaxAttempts)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, 500, cfg.Simulation.Frames)
	assert.Equal(t, "spike", cfg.Simulation.Profile)
	assert.Equal(t, 90.0, cfg.Display.RefreshRate, "untouched blocks keep their defaults")
	assert.Equal(t, 1512, cfg.Display.RecommendedWidth)
}

func TestParseCustomTable(t *testing.T) {
	cfg, err := Parse([]byte(`
quality:
  table:
    render_targets:
      - {msaa: 2, max_supersampling: 1.2}
    levels:
      - {render_target: 0, resolution_scale: 0.5, force_interleaved_reprojection: true}
      - {render_target: 0, resolution_scale: 0.8}
      - {render_target: 0, resolution_scale: 1.2}
`))
	require.NoError(t, err)

	table := cfg.Table()
	require.Equal(t, 3, table.Len())
	assert.True(t, table.Levels[0].ForceInterleavedReprojection)
	assert.Equal(t, 1.2, table.GlobalMaxSupersampling())
	assert.Equal(t, 2, table.Meta(2).MSAALevel)
	assert.Len(t, cfg.ControllerOptions(), 3)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed", yaml: "quality: [1, 2"},
		{name: "refresh rate", yaml: "display: {refresh_rate: 0}"},
		{name: "recommended size", yaml: "display: {recommended_width: -1}"},
		{name: "supersampling", yaml: "quality: {desired_supersampling: 0}"},
		{name: "fence attempts", yaml: "quality: {fence_max_attempts: -2}"},
		{name: "filter", yaml: "quality: {resolve_filter: cubic}"},
		{name: "log level", yaml: "log: {level: loud}"},
		{name: "mirror size", yaml: "mirror: {width: 0}"},
		{name: "profile", yaml: "simulation: {profile: chaos}"},
		{name: "empty table", yaml: "quality: {table: {levels: []}}"},
		{
			name: "table index out of range",
			yaml: `
quality:
  table:
    render_targets: [{msaa: 4, max_supersampling: 1.4}]
    levels: [{render_target: 1, resolution_scale: 1}]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Display.RefreshRate = -1
	cfg.Mirror.Height = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "refresh_rate")
	assert.Contains(t, err.Error(), "mirror size")
}

func TestInvalidTableWrapsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Quality.Table = &quality.Table{}
	assert.ErrorIs(t, cfg.Validate(), quality.ErrInvalidTable)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "oxyvr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics: {address: \":9100\"}\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Metrics.Address)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, gpu.FilterLinear, f)

	f, err = ParseFilter(" Nearest ")
	require.NoError(t, err)
	assert.Equal(t, gpu.FilterNearest, f)

	_, err = ParseFilter("bicubic")
	assert.Error(t, err)
}
