package quality

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"go.uber.org/zap"
)

// stereoLayers is the layer count of every stereo texture.
const stereoLayers = 2

// RenderTargetPool owns one multisampled stereo render target per RenderTargetMeta, each sized at
// the recommended size times the meta's MaxSupersampling. Targets are allocated once and never
// resized; a resolution change rebuilds the pool.
type RenderTargetPool struct {
	targets  []*StereoRenderTarget
	released bool
}

// NewRenderTargetPool allocates and completeness-checks every render target. On failure everything
// allocated so far is released and the error names the failing target and status.
//
// Parameters:
//   - device: the GPU device
//   - metas: the render target configurations
//   - recommendedW, recommendedH: the headset's recommended per-eye size
//   - logger: the logger
//
// Returns:
//   - *RenderTargetPool: the pool
//   - error: an allocation or ErrIncompleteFramebuffer error
func NewRenderTargetPool(device gpu.Device, metas []RenderTargetMeta, recommendedW, recommendedH int, logger *zap.Logger) (*RenderTargetPool, error) {
	p := &RenderTargetPool{targets: make([]*StereoRenderTarget, 0, len(metas))}
	for i, meta := range metas {
		t, err := newStereoRenderTarget(device, i, meta, recommendedW, recommendedH)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.targets = append(p.targets, t)
		logger.Info("render target allocated",
			zap.Int("index", i),
			zap.Int("msaa", meta.MSAALevel),
			zap.Float64("max_supersampling", meta.MaxSupersampling),
			zap.Int("width", t.Width),
			zap.Int("height", t.Height))
	}
	return p, nil
}

func newStereoRenderTarget(device gpu.Device, index int, meta RenderTargetMeta, recommendedW, recommendedH int) (*StereoRenderTarget, error) {
	t := &StereoRenderTarget{
		Index:  index,
		Meta:   meta,
		Width:  allocationSize(recommendedW, meta.MaxSupersampling),
		Height: allocationSize(recommendedH, meta.MaxSupersampling),
	}

	var err error
	t.Color, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:   fmt.Sprintf("render target %d color", index),
		Width:   t.Width,
		Height:  t.Height,
		Layers:  stereoLayers,
		Samples: meta.MSAALevel,
		Format:  gpu.FormatColor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate render target %d (msaa %d, %dx%d) color: %w", index, meta.MSAALevel, t.Width, t.Height, err)
	}
	t.DepthStencil, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:   fmt.Sprintf("render target %d depth", index),
		Width:   t.Width,
		Height:  t.Height,
		Layers:  stereoLayers,
		Samples: meta.MSAALevel,
		Format:  gpu.FormatDepthStencil,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("failed to allocate render target %d (msaa %d, %dx%d) depth: %w", index, meta.MSAALevel, t.Width, t.Height, err)
	}

	if status := device.CheckFramebuffer(t.Color, t.DepthStencil); status != gpu.FramebufferComplete {
		t.Release()
		return nil, fmt.Errorf("%w: render target %d (msaa %d, %dx%d): %s (0x%04X)",
			ErrIncompleteFramebuffer, index, meta.MSAALevel, t.Width, t.Height, status, uint32(status))
	}

	if t.LeftView, err = device.CreateLayerView(t.Color, int(compositor.EyeLeft)); err == nil {
		t.RightView, err = device.CreateLayerView(t.Color, int(compositor.EyeRight))
	}
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("failed to create render target %d eye views: %w", index, err)
	}
	return t, nil
}

// Len returns the number of pooled render targets.
func (p *RenderTargetPool) Len() int { return len(p.targets) }

// Target returns the render target for a RenderTargetMeta index.
func (p *RenderTargetPool) Target(index int) *StereoRenderTarget {
	return p.targets[index]
}

// Released reports whether Release has been called.
func (p *RenderTargetPool) Released() bool { return p == nil || p.released }

// Release frees every render target. Safe on a nil pool and when called repeatedly.
func (p *RenderTargetPool) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	for _, t := range p.targets {
		t.Release()
	}
}

// ResolveTargetPool owns the front and back single-sampled stereo resolve targets, sized at the
// recommended size times the table's global max supersampling.
type ResolveTargetPool struct {
	targets  [2]*StereoResolveTarget
	released bool
}

// NewResolveTargetPool allocates and completeness-checks both resolve targets.
//
// Parameters:
//   - device: the GPU device
//   - globalMaxSupersampling: the largest supersampling factor of any render target
//   - recommendedW, recommendedH: the headset's recommended per-eye size
//   - logger: the logger
//
// Returns:
//   - *ResolveTargetPool: the pool
//   - error: an allocation or ErrIncompleteFramebuffer error
func NewResolveTargetPool(device gpu.Device, globalMaxSupersampling float64, recommendedW, recommendedH int, logger *zap.Logger) (*ResolveTargetPool, error) {
	p := &ResolveTargetPool{}
	for i := range p.targets {
		t, err := newStereoResolveTarget(device, i, globalMaxSupersampling, recommendedW, recommendedH)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.targets[i] = t
		logger.Info("resolve target allocated",
			zap.Int("index", i),
			zap.Int("width", t.Width),
			zap.Int("height", t.Height))
	}
	return p, nil
}

func newStereoResolveTarget(device gpu.Device, index int, factor float64, recommendedW, recommendedH int) (*StereoResolveTarget, error) {
	t := &StereoResolveTarget{
		Index:  index,
		Width:  allocationSize(recommendedW, factor),
		Height: allocationSize(recommendedH, factor),
	}

	var err error
	t.Color, err = device.CreateTexture(gpu.TextureDescriptor{
		Label:   fmt.Sprintf("resolve target %d", index),
		Width:   t.Width,
		Height:  t.Height,
		Layers:  stereoLayers,
		Samples: 1,
		Format:  gpu.FormatColor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate resolve target %d (%dx%d): %w", index, t.Width, t.Height, err)
	}

	if status := device.CheckFramebuffer(t.Color, nil); status != gpu.FramebufferComplete {
		t.Release()
		return nil, fmt.Errorf("%w: resolve target %d (%dx%d): %s (0x%04X)",
			ErrIncompleteFramebuffer, index, t.Width, t.Height, status, uint32(status))
	}

	if t.LeftView, err = device.CreateLayerView(t.Color, int(compositor.EyeLeft)); err == nil {
		t.RightView, err = device.CreateLayerView(t.Color, int(compositor.EyeRight))
	}
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("failed to create resolve target %d eye views: %w", index, err)
	}
	return t, nil
}

// Target returns the front (0) or back (1) resolve target.
func (p *ResolveTargetPool) Target(index int) *StereoResolveTarget {
	return p.targets[index]
}

// Released reports whether Release has been called.
func (p *ResolveTargetPool) Released() bool { return p == nil || p.released }

// Release frees both resolve targets and any outstanding fences. Safe on a nil pool and when
// called repeatedly.
func (p *ResolveTargetPool) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	for _, t := range p.targets {
		t.Release()
	}
}
