package quality

import "math"

// Viewport is the per-eye render area derived from the quality level.
type Viewport struct {
	Width  int
	Height int
	Aspect float64
}

// Pixels returns the per-eye viewport area.
func (v Viewport) Pixels() int { return v.Width * v.Height }

// IsZero reports whether no viewport has been recorded.
func (v Viewport) IsZero() bool { return v.Width == 0 || v.Height == 0 }

// ActualSupersampling is the level's scale applied to the clamped desired supersampling,
// capped at the render target's allocation factor.
//
// Parameters:
//   - level: the active quality level
//   - meta: the level's render target configuration
//   - desired: the operator's desired supersampling, already clamped
//
// Returns:
//   - float64: the supersampling factor rendering runs at
func ActualSupersampling(level Level, meta RenderTargetMeta, desired float64) float64 {
	return min(level.ResolutionScale*desired, meta.MaxSupersampling)
}

// DeriveViewport scales the recommended size by the supersampling factor, flooring to whole pixels.
//
// Parameters:
//   - recommendedW, recommendedH: the headset's recommended per-eye size
//   - supersampling: the factor to apply
//
// Returns:
//   - Viewport: the derived viewport and its aspect ratio
func DeriveViewport(recommendedW, recommendedH int, supersampling float64) Viewport {
	v := Viewport{
		Width:  scaledSize(recommendedW, supersampling),
		Height: scaledSize(recommendedH, supersampling),
	}
	if v.Height > 0 {
		v.Aspect = float64(v.Width) / float64(v.Height)
	}
	return v
}

// scaledSize floors size*factor.
func scaledSize(size int, factor float64) int {
	return int(math.Floor(float64(size) * factor))
}

// allocationSize is scaledSize with a one pixel floor so allocations are never empty.
func allocationSize(size int, factor float64) int {
	return max(scaledSize(size, factor), 1)
}
