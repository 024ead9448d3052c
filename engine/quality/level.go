package quality

import (
	"fmt"
	"slices"
)

// Level is one entry of the ordered quality table. Index 0 is the cheapest configuration.
type Level struct {
	// RenderTargetIndex selects the RenderTargetMeta (and pooled render target) the level renders into.
	RenderTargetIndex int `yaml:"render_target"`
	// ResolutionScale multiplies the operator's desired supersampling.
	ResolutionScale float64 `yaml:"resolution_scale"`
	// ForceInterleavedReprojection makes the compositor reproject whenever this level is active.
	ForceInterleavedReprojection bool `yaml:"force_interleaved_reprojection"`
}

// RenderTargetMeta describes one pooled multisampled render target configuration.
type RenderTargetMeta struct {
	MSAALevel int `yaml:"msaa"`
	// MaxSupersampling is the factor the target is allocated at; derived supersampling is clamped to it.
	MaxSupersampling float64 `yaml:"max_supersampling"`
}

// Table is the immutable quality configuration owned by a Controller.
type Table struct {
	Levels        []Level            `yaml:"levels"`
	RenderTargets []RenderTargetMeta `yaml:"render_targets"`
}

// DefaultTable returns the built-in 11-level table: a forced-reprojection floor, six 4x MSAA
// steps up to 1.1x, then three 8x MSAA steps up to 1.4x.
func DefaultTable() Table {
	return Table{
		Levels: []Level{
			{RenderTargetIndex: 0, ResolutionScale: 0.65, ForceInterleavedReprojection: true},
			{RenderTargetIndex: 0, ResolutionScale: 0.65},
			{RenderTargetIndex: 0, ResolutionScale: 0.73},
			{RenderTargetIndex: 0, ResolutionScale: 0.81},
			{RenderTargetIndex: 0, ResolutionScale: 0.88},
			{RenderTargetIndex: 0, ResolutionScale: 0.94},
			{RenderTargetIndex: 0, ResolutionScale: 1.00},
			{RenderTargetIndex: 0, ResolutionScale: 1.10},
			{RenderTargetIndex: 1, ResolutionScale: 1.10},
			{RenderTargetIndex: 1, ResolutionScale: 1.25},
			{RenderTargetIndex: 1, ResolutionScale: 1.40},
		},
		RenderTargets: []RenderTargetMeta{
			{MSAALevel: 4, MaxSupersampling: 1.4},
			{MSAALevel: 8, MaxSupersampling: 1.6},
		},
	}
}

// Validate checks the table is usable: at least one level and render target, positive factors,
// render target indices in range and cost non-decreasing with the level index.
func (t Table) Validate() error {
	if len(t.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidTable)
	}
	if len(t.RenderTargets) == 0 {
		return fmt.Errorf("%w: no render targets", ErrInvalidTable)
	}
	for i, rt := range t.RenderTargets {
		if rt.MSAALevel < 1 {
			return fmt.Errorf("%w: render target %d has msaa level %d", ErrInvalidTable, i, rt.MSAALevel)
		}
		if rt.MaxSupersampling <= 0 {
			return fmt.Errorf("%w: render target %d has max supersampling %g", ErrInvalidTable, i, rt.MaxSupersampling)
		}
	}
	for i, l := range t.Levels {
		if l.RenderTargetIndex < 0 || l.RenderTargetIndex >= len(t.RenderTargets) {
			return fmt.Errorf("%w: level %d references render target %d of %d", ErrInvalidTable, i, l.RenderTargetIndex, len(t.RenderTargets))
		}
		if l.ResolutionScale <= 0 {
			return fmt.Errorf("%w: level %d has resolution scale %g", ErrInvalidTable, i, l.ResolutionScale)
		}
		if i == 0 {
			continue
		}
		prev := t.Levels[i-1]
		if l.RenderTargetIndex < prev.RenderTargetIndex ||
			l.RenderTargetIndex == prev.RenderTargetIndex && l.ResolutionScale < prev.ResolutionScale {
			return fmt.Errorf("%w: level %d is cheaper than level %d", ErrInvalidTable, i, i-1)
		}
	}
	return nil
}

// Len returns the number of levels.
func (t Table) Len() int { return len(t.Levels) }

// Meta returns the render target configuration of a level.
func (t Table) Meta(level int) RenderTargetMeta {
	return t.RenderTargets[t.Levels[level].RenderTargetIndex]
}

// GlobalMaxSupersampling is the largest MaxSupersampling across render targets. Resolve targets
// are allocated at this factor.
func (t Table) GlobalMaxSupersampling() float64 {
	m := 0.0
	for _, rt := range t.RenderTargets {
		m = max(m, rt.MaxSupersampling)
	}
	return m
}

// Clone returns a deep copy so the caller's slices cannot alias controller state.
func (t Table) Clone() Table {
	return Table{
		Levels:        slices.Clone(t.Levels),
		RenderTargets: slices.Clone(t.RenderTargets),
	}
}
