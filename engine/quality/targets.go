package quality

import (
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
)

// releaser is any GPU handle a stereo target owns.
type releaser interface {
	Release()
}

// StereoRenderTarget is a multisampled two-layer color and depth/stencil pair with a view per eye.
type StereoRenderTarget struct {
	Index  int
	Meta   RenderTargetMeta
	Width  int
	Height int

	Color        gpu.Texture
	DepthStencil gpu.Texture
	LeftView     gpu.TextureView
	RightView    gpu.TextureView
}

// View returns the single-layer view of an eye.
func (t *StereoRenderTarget) View(eye compositor.Eye) gpu.TextureView {
	if eye == compositor.EyeRight {
		return t.RightView
	}
	return t.LeftView
}

// handles lists the owned handles, views before the textures they alias.
func (t *StereoRenderTarget) handles() []releaser {
	return collect(t.LeftView, t.RightView, t.Color, t.DepthStencil)
}

// Release frees every handle. Safe on partially built targets and when called repeatedly.
func (t *StereoRenderTarget) Release() {
	if t == nil {
		return
	}
	for _, h := range t.handles() {
		h.Release()
	}
	t.LeftView, t.RightView, t.Color, t.DepthStencil = nil, nil, nil, nil
}

// StereoResolveTarget is a single-sampled two-layer color texture with a view per eye. The fence
// records that the compositor submission reading it has been issued to the GPU.
type StereoResolveTarget struct {
	Index  int
	Width  int
	Height int

	Color     gpu.Texture
	LeftView  gpu.TextureView
	RightView gpu.TextureView

	fence    gpu.Fence
	resolved bool
}

// View returns the single-layer view of an eye.
func (t *StereoResolveTarget) View(eye compositor.Eye) gpu.TextureView {
	if eye == compositor.EyeRight {
		return t.RightView
	}
	return t.LeftView
}

// InFlight reports whether a fence for the buffer's last submission is still outstanding.
func (t *StereoResolveTarget) InFlight() bool {
	return t.fence != nil
}

func (t *StereoResolveTarget) handles() []releaser {
	hs := collect(t.LeftView, t.RightView, t.Color)
	if t.fence != nil {
		hs = append(hs, t.fence)
	}
	return hs
}

// Release frees every handle including an outstanding fence. Safe to call repeatedly.
func (t *StereoResolveTarget) Release() {
	if t == nil {
		return
	}
	for _, h := range t.handles() {
		h.Release()
	}
	t.LeftView, t.RightView, t.Color, t.fence = nil, nil, nil, nil
	t.resolved = false
}

// collect drops nil handles.
func collect(handles ...releaser) []releaser {
	hs := make([]releaser, 0, len(handles))
	for _, h := range handles {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return hs
}
