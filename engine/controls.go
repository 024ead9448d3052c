package engine

import (
	"math"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
)

// supersamplingStep is the desired supersampling change per key press.
const supersamplingStep = 0.1

// ApplyKey maps a mirror window key press to an operator settings change.
//
// Parameters:
//   - s: the current settings
//   - keyCode: the pressed key, one of the common key codes
//   - table: the controller's quality table, bounding level and supersampling changes
//
// Returns:
//   - quality.Settings: the updated settings
//   - bool: false when the key is not bound or the change is a no-op
func ApplyKey(s quality.Settings, keyCode uint32, table quality.Table) (quality.Settings, bool) {
	before := s
	top := table.Len() - 1

	switch keyCode {
	case common.KeyEqual:
		s.DesiredSupersampling = stepSupersampling(s.DesiredSupersampling, supersamplingStep, table.GlobalMaxSupersampling())
	case common.KeyMinus:
		s.DesiredSupersampling = stepSupersampling(s.DesiredSupersampling, -supersamplingStep, table.GlobalMaxSupersampling())
	case common.KeyLeftBracket:
		s.MaximumQualityLevel = max(common.Clamp(s.MaximumQualityLevel, 0, top)-1, 0)
	case common.KeyRightBracket:
		s.MaximumQualityLevel = min(common.Clamp(s.MaximumQualityLevel, 0, top)+1, top)
	case common.Key0:
		s.MinimumQualityLevel, s.MaximumQualityLevel = 0, top
	case common.KeyR:
		s.ForceInterleavedReprojection = !s.ForceInterleavedReprojection
	case common.KeyP:
		s.SuspendedRendering = !s.SuspendedRendering
	case common.KeyD:
		s.DoubleBuffering = !s.DoubleBuffering
	case common.KeyX:
		s.ReadPixelProbe = !s.ReadPixelProbe
	default:
		return s, false
	}
	return s, s != before
}

// stepSupersampling moves v by delta on a 0.1 grid within [MinDesiredSupersampling, hi].
func stepSupersampling(v, delta, hi float64) float64 {
	v = math.Round((v+delta)*10) / 10
	return common.Clamp(v, quality.MinDesiredSupersampling, hi)
}
