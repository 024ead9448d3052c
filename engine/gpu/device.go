// Package gpu defines the narrow GPU surface the stereo quality subsystem needs: texture
// allocation, per-layer views, framebuffer completeness checks, render target clears,
// resolve blits, fences and a single-pixel readback. Implementations exist for WebGPU
// and for a headless CPU-side backend.
package gpu

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTextureReleased is returned when an operation references a texture that has already been released.
	ErrTextureReleased = errors.New("gpu: texture released")
	// ErrLayerOutOfRange is returned when a view or copy references a layer the texture does not have.
	ErrLayerOutOfRange = errors.New("gpu: layer out of range")
	// ErrRegionOutOfBounds is returned when a resolve or readback region exceeds a texture's allocated size.
	ErrRegionOutOfBounds = errors.New("gpu: region out of bounds")
	// ErrUnsupported is returned when the backend cannot satisfy a request at all.
	ErrUnsupported = errors.New("gpu: unsupported")
)

// Format identifies the texel format of a texture.
type Format int

const (
	// FormatColor is the backend's presentable 8-bit RGBA color format.
	FormatColor Format = iota
	// FormatDepthStencil is a combined depth/stencil format.
	FormatDepthStencil
)

func (f Format) String() string {
	switch f {
	case FormatColor:
		return "color"
	case FormatDepthStencil:
		return "depth-stencil"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Filter selects the sampling filter used when a blit scales its source.
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

// FramebufferStatus is the result of a framebuffer completeness check.
// The numeric values follow the GL status enums so diagnostics read the same on every backend.
type FramebufferStatus uint32

const (
	FramebufferComplete                    FramebufferStatus = 0x8CD5
	FramebufferIncompleteAttachment        FramebufferStatus = 0x8CD6
	FramebufferIncompleteMissingAttachment FramebufferStatus = 0x8CD7
	FramebufferUnsupported                 FramebufferStatus = 0x8CDD
	FramebufferIncompleteMultisample       FramebufferStatus = 0x8D56
)

func (s FramebufferStatus) String() string {
	switch s {
	case FramebufferComplete:
		return "complete"
	case FramebufferIncompleteAttachment:
		return "incomplete attachment"
	case FramebufferIncompleteMissingAttachment:
		return "missing attachment"
	case FramebufferUnsupported:
		return "unsupported"
	case FramebufferIncompleteMultisample:
		return "incomplete multisample"
	default:
		return fmt.Sprintf("status 0x%04X", uint32(s))
	}
}

// FenceStatus is the outcome of a single bounded fence wait.
type FenceStatus int

const (
	// FenceSignaled means all commands issued before the fence have completed.
	FenceSignaled FenceStatus = iota
	// FenceTimeout means the wait timed out; retrying is valid.
	FenceTimeout
	// FenceWaitFailed means the driver reported an explicit wait failure; retrying is not valid.
	FenceWaitFailed
)

func (s FenceStatus) String() string {
	switch s {
	case FenceSignaled:
		return "signaled"
	case FenceTimeout:
		return "timeout"
	case FenceWaitFailed:
		return "wait failed"
	default:
		return fmt.Sprintf("fence status(%d)", int(s))
	}
}

// TextureDescriptor describes a texture allocation.
type TextureDescriptor struct {
	Label   string
	Width   int
	Height  int
	Layers  int
	Samples int
	Format  Format
}

// Texture is a GPU texture handle. Release is idempotent.
type Texture interface {
	// Descriptor returns the descriptor the texture was allocated with.
	//
	// Returns:
	//   - TextureDescriptor: the allocation descriptor
	Descriptor() TextureDescriptor

	// Released reports whether Release has been called.
	//
	// Returns:
	//   - bool: true once the texture has been released
	Released() bool

	// Release frees the underlying GPU resource. Calling Release more than once is a no-op.
	Release()
}

// TextureView is a single-layer view aliasing one eye layer of a stereo texture.
// Release is idempotent and does not release the viewed texture.
type TextureView interface {
	// Texture returns the texture this view aliases.
	//
	// Returns:
	//   - Texture: the viewed texture
	Texture() Texture

	// Layer returns the array layer this view aliases.
	//
	// Returns:
	//   - int: the layer index
	Layer() int

	// Released reports whether Release has been called.
	//
	// Returns:
	//   - bool: true once the view has been released
	Released() bool

	// Release frees the view. Calling Release more than once is a no-op.
	Release()
}

// Fence is a GPU synchronization point signaled once all previously issued commands complete.
type Fence interface {
	// ClientWait blocks for at most timeout waiting for the fence.
	//
	// Parameters:
	//   - timeout: the upper bound for this single wait
	//
	// Returns:
	//   - FenceStatus: signaled, timeout, or an explicit wait failure
	ClientWait(timeout time.Duration) FenceStatus

	// Release deletes the fence. Calling Release more than once is a no-op.
	Release()
}

// Device is the GPU collaborator used by the stereo render target pools and the present pipeline.
// All methods must be called from the render thread.
type Device interface {
	// CreateTexture allocates a texture. Multisampled textures with more than one layer are valid.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the allocated texture
	//   - error: an error if allocation fails
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateLayerView creates a single-layer view of an array texture.
	//
	// Parameters:
	//   - tex: the array texture
	//   - layer: the layer to alias
	//
	// Returns:
	//   - TextureView: the view
	//   - error: an error if the layer is out of range or the texture was released
	CreateLayerView(tex Texture, layer int) (TextureView, error)

	// CheckFramebuffer verifies the color (and optional depth) attachment combination
	// can be rendered to, for every layer.
	//
	// Parameters:
	//   - color: the color attachment
	//   - depth: the depth/stencil attachment, may be nil
	//
	// Returns:
	//   - FramebufferStatus: FramebufferComplete or the failing status
	CheckFramebuffer(color, depth Texture) FramebufferStatus

	// ClearRenderTarget clears both layers of the render target and sets the viewport
	// used by subsequent rendering into it.
	//
	// Parameters:
	//   - color: the color attachment
	//   - depth: the depth/stencil attachment, may be nil
	//   - viewportW, viewportH: the viewport in pixels
	//
	// Returns:
	//   - error: an error if the target cannot be bound
	ClearRenderTarget(color, depth Texture, viewportW, viewportH int) error

	// ResolveLayer blits the [0,width)x[0,height) region of one layer of src into the same
	// layer and region of dst, resolving multisampled sources.
	//
	// Parameters:
	//   - src: the source texture (may be multisampled)
	//   - dst: the single-sampled destination texture
	//   - layer: the eye layer to copy
	//   - width, height: the region size in pixels
	//   - filter: the filter used when the backend has to scale; the wgpu device copies the
	//     region 1:1 and ignores it
	//
	// Returns:
	//   - error: an error if the region or layer is invalid
	ResolveLayer(src, dst Texture, layer, width, height int, filter Filter) error

	// InsertFence issues a fence after all currently queued commands.
	//
	// Returns:
	//   - Fence: the new fence
	//   - error: an error if the fence cannot be created
	InsertFence() (Fence, error)

	// ReadPixel reads back a single pixel. This is a CPU/GPU synchronization point.
	//
	// Parameters:
	//   - tex: the single-sampled texture to read
	//   - layer: the layer to read
	//   - x, y: the pixel coordinates
	//
	// Returns:
	//   - [4]uint8: the RGBA pixel
	//   - error: an error if the readback fails
	ReadPixel(tex Texture, layer, x, y int) ([4]uint8, error)
}

// Mirror is implemented by devices that can present textures to a desktop window surface.
type Mirror interface {
	// CopyToSurface copies a region of one layer of a single-sampled texture into the
	// current surface image at the given destination offset, clipped to the surface.
	//
	// Parameters:
	//   - tex: the source texture
	//   - layer: the source layer
	//   - width, height: the region size in pixels
	//   - dstX: the horizontal offset in the surface image
	//
	// Returns:
	//   - error: an error if no surface image can be acquired or the copy is invalid
	CopyToSurface(tex Texture, layer, width, height, dstX int) error

	// PresentSurface presents and releases the current surface image.
	PresentSurface()

	// SurfaceSize returns the configured surface size.
	//
	// Returns:
	//   - width, height: the surface size in pixels
	SurfaceSize() (width, height int)
}

// validateRegion checks a blit region against a texture's allocated size and layer count.
func validateRegion(desc TextureDescriptor, layer, width, height int) error {
	if layer < 0 || layer >= desc.Layers {
		return fmt.Errorf("%w: %q layer %d of %d", ErrLayerOutOfRange, desc.Label, layer, desc.Layers)
	}
	if width < 0 || height < 0 || width > desc.Width || height > desc.Height {
		return fmt.Errorf("%w: %dx%d exceeds %q (%dx%d)", ErrRegionOutOfBounds, width, height, desc.Label, desc.Width, desc.Height)
	}
	return nil
}
