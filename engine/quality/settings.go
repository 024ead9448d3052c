package quality

import (
	"time"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
)

// MinDesiredSupersampling is the lower clamp applied to Settings.DesiredSupersampling.
const MinDesiredSupersampling = 0.3

// Settings is the operator register board. The controller reads it every frame and applies no
// validation beyond clamping at the point of use.
type Settings struct {
	DesiredSupersampling         float64
	MinimumQualityLevel          int
	MaximumQualityLevel          int
	ForceInterleavedReprojection bool
	SuspendedRendering           bool

	DoubleBuffering bool
	ReadPixelProbe  bool
	ResolveFilter   gpu.Filter

	// FencePollTimeout bounds a single fence poll inside Present.
	FencePollTimeout time.Duration
	// FenceMaxAttempts bounds the fence poll loop; 0 retries until the fence signals.
	FenceMaxAttempts int
}

// DefaultSettings returns settings that let the controller roam the whole default table with
// double buffering on.
func DefaultSettings() Settings {
	return Settings{
		DesiredSupersampling: 1.0,
		MinimumQualityLevel:  0,
		MaximumQualityLevel:  len(DefaultTable().Levels) - 1,
		DoubleBuffering:      true,
		ResolveFilter:        gpu.FilterLinear,
		FencePollTimeout:     time.Microsecond,
		FenceMaxAttempts:     100000,
	}
}

// levelBand returns the operator's [min,max] band clamped to the table. When the band is
// inverted the minimum wins.
func (s Settings) levelBand(t Table) (int, int) {
	last := t.Len() - 1
	lo := common.Clamp(s.MinimumQualityLevel, 0, last)
	hi := common.Clamp(s.MaximumQualityLevel, 0, last)
	return lo, max(hi, lo)
}

// desiredSupersampling returns the desired factor clamped to [MinDesiredSupersampling, globalMax].
func (s Settings) desiredSupersampling(globalMax float64) float64 {
	return common.Clamp(s.DesiredSupersampling, MinDesiredSupersampling, globalMax)
}
