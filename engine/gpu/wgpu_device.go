package gpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// fencePollInterval is the sleep between queue polls while a fence wait is pending.
const fencePollInterval = 100 * time.Microsecond

// WGPUDevice is a Device backed by WebGPU. When created with a surface descriptor it also
// implements Mirror so resolved eye textures can be shown in a desktop window.
type WGPUDevice interface {
	Device
	Mirror

	// ConfigureSurface (re)configures the window surface. It is a no-op for devices created
	// without a surface.
	//
	// Parameters:
	//   - width, height: the surface size in pixels
	ConfigureSurface(width, height int)

	// Release frees the queue, device, adapter, surface and instance.
	Release()
}

type wgpuDeviceImpl struct {
	mu *sync.Mutex

	logger *zap.Logger

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	forceFallbackAdapter bool
	maxSamples           int

	colorFormat   wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int

	// surface image acquired by CopyToSurface and presented by PresentSurface
	frameSurface *wgpu.Texture
}

// WGPUDeviceOption is a functional option applied to the WebGPU device during construction.
type WGPUDeviceOption func(*wgpuDeviceImpl)

// WithWGPUFallbackAdapter forces the software fallback adapter.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - WGPUDeviceOption: option function to apply
func WithWGPUFallbackAdapter(force bool) WGPUDeviceOption {
	return func(d *wgpuDeviceImpl) {
		d.forceFallbackAdapter = force
	}
}

// WithWGPUMaxSamples sets the highest sample count the adapter is trusted to render.
// WebGPU only guarantees 1 and 4; 8 and 16 depend on adapter format features.
//
// Parameters:
//   - samples: the highest supported sample count
//
// Returns:
//   - WGPUDeviceOption: option function to apply
func WithWGPUMaxSamples(samples int) WGPUDeviceOption {
	return func(d *wgpuDeviceImpl) {
		d.maxSamples = samples
	}
}

// WithWGPULogger sets the logger used for device diagnostics.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - WGPUDeviceOption: option function to apply
func WithWGPULogger(logger *zap.Logger) WGPUDeviceOption {
	return func(d *wgpuDeviceImpl) {
		d.logger = logger
	}
}

var _ WGPUDevice = &wgpuDeviceImpl{}

// NewWGPUDevice requests an adapter and device. The calling goroutine is locked to its OS thread
// and must be the render thread for the lifetime of the device.
//
// Parameters:
//   - surfaceDescriptor: the window surface, or nil for an offscreen device
//   - options: functional options for the device
//
// Returns:
//   - WGPUDevice: the device
//   - error: an error if no adapter or device could be acquired
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...WGPUDeviceOption) (WGPUDevice, error) {
	runtime.LockOSThread()
	d := &wgpuDeviceImpl{
		mu:          &sync.Mutex{},
		logger:      zap.NewNop(),
		instance:    wgpu.CreateInstance(nil),
		maxSamples:  4,
		colorFormat: wgpu.TextureFormatRGBA8Unorm,
	}
	for _, opt := range options {
		opt(d)
	}

	if surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Stereo Device",
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if d.surface != nil {
		// eye textures are copied straight into the surface image, so they share its format
		capabilities := d.surface.GetCapabilities(d.adapter)
		d.colorFormat = capabilities.Formats[0]
	}
	return d, nil
}

func (d *wgpuDeviceImpl) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return
	}
	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      d.colorFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeImmediate,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.surfaceWidth = width
	d.surfaceHeight = height
}

func (d *wgpuDeviceImpl) SurfaceSize() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceWidth, d.surfaceHeight
}

func (d *wgpuDeviceImpl) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface != nil {
		d.frameSurface.Release()
		d.frameSurface = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// wgpuTexture is a stereo texture. WebGPU has no multisampled array textures, so multisampled
// allocations hold one texture per layer plus a single-sampled scratch texture per layer that
// resolve passes write into before the copy to the destination layer.
type wgpuTexture struct {
	device   *wgpuDeviceImpl
	desc     TextureDescriptor
	format   wgpu.TextureFormat
	perLayer bool
	released atomic.Bool

	textures []*wgpu.Texture
	scratch  []*wgpu.Texture
}

func (t *wgpuTexture) Descriptor() TextureDescriptor { return t.desc }
func (t *wgpuTexture) Released() bool                { return t.released.Load() }

func (t *wgpuTexture) Release() {
	if t.released.Swap(true) {
		return
	}
	for _, tex := range t.textures {
		tex.Release()
	}
	for _, tex := range t.scratch {
		tex.Release()
	}
	t.textures = nil
	t.scratch = nil
}

// layer returns the backing texture and array layer for an eye layer.
func (t *wgpuTexture) layer(layer int) (*wgpu.Texture, uint32) {
	if t.perLayer {
		return t.textures[layer], 0
	}
	return t.textures[0], uint32(layer)
}

func (t *wgpuTexture) createView(layer int) (*wgpu.TextureView, error) {
	tex, base := t.layer(layer)
	return tex.CreateView(&wgpu.TextureViewDescriptor{
		Format:          t.format,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  base,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
}

type wgpuView struct {
	tex      *wgpuTexture
	layer    int
	view     *wgpu.TextureView
	released atomic.Bool
}

func (v *wgpuView) Texture() Texture { return v.tex }
func (v *wgpuView) Layer() int       { return v.layer }
func (v *wgpuView) Released() bool   { return v.released.Load() }

// View returns the native WebGPU view for compositors that sample it directly.
func (v *wgpuView) View() *wgpu.TextureView { return v.view }

func (v *wgpuView) Release() {
	if v.released.Swap(true) {
		return
	}
	v.view.Release()
}

type wgpuFence struct {
	device   *wgpuDeviceImpl
	done     atomic.Bool
	failed   atomic.Bool
	released atomic.Bool
}

func (f *wgpuFence) ClientWait(timeout time.Duration) FenceStatus {
	deadline := time.Now().Add(timeout)
	for {
		if f.released.Load() || f.failed.Load() {
			return FenceWaitFailed
		}
		f.device.poll()
		if f.done.Load() {
			return FenceSignaled
		}
		if f.failed.Load() {
			return FenceWaitFailed
		}
		if !time.Now().Before(deadline) {
			return FenceTimeout
		}
		time.Sleep(fencePollInterval)
	}
}

func (f *wgpuFence) Release() {
	f.released.Store(true)
}

func (d *wgpuDeviceImpl) poll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Poll(false, nil)
	}
}

func (d *wgpuDeviceImpl) nativeFormat(f Format) wgpu.TextureFormat {
	if f == FormatDepthStencil {
		return wgpu.TextureFormatDepth24PlusStencil8
	}
	return d.colorFormat
}

func (d *wgpuDeviceImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Layers <= 0 {
		desc.Layers = 1
	}
	if desc.Samples <= 0 {
		desc.Samples = 1
	}
	if desc.Samples > d.maxSamples {
		return nil, fmt.Errorf("%w: %q requests %d samples, adapter supports %d", ErrUnsupported, desc.Label, desc.Samples, d.maxSamples)
	}

	t := &wgpuTexture{
		device:   d,
		desc:     desc,
		format:   d.nativeFormat(desc.Format),
		perLayer: desc.Samples > 1,
	}

	usage := wgpu.TextureUsageRenderAttachment
	if desc.Format == FormatColor && desc.Samples == 1 {
		usage |= wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	}

	allocate := func(label string, layers, samples uint32, usage wgpu.TextureUsage) (*wgpu.Texture, error) {
		tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: label,
			Size: wgpu.Extent3D{
				Width:              uint32(desc.Width),
				Height:             uint32(desc.Height),
				DepthOrArrayLayers: layers,
			},
			MipLevelCount: 1,
			SampleCount:   samples,
			Dimension:     wgpu.TextureDimension2D,
			Format:        t.format,
			Usage:         usage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create texture %q: %w", label, err)
		}
		return tex, nil
	}

	var err error
	if !t.perLayer {
		var tex *wgpu.Texture
		if tex, err = allocate(desc.Label, uint32(desc.Layers), 1, usage); err == nil {
			t.textures = append(t.textures, tex)
		}
	} else {
		for layer := 0; layer < desc.Layers && err == nil; layer++ {
			var tex *wgpu.Texture
			if tex, err = allocate(fmt.Sprintf("%s Layer %d", desc.Label, layer), 1, uint32(desc.Samples), usage); err == nil {
				t.textures = append(t.textures, tex)
			}
		}
		for layer := 0; layer < desc.Layers && err == nil && desc.Format == FormatColor; layer++ {
			var tex *wgpu.Texture
			if tex, err = allocate(fmt.Sprintf("%s Scratch %d", desc.Label, layer), 1, 1, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageCopySrc); err == nil {
				t.scratch = append(t.scratch, tex)
			}
		}
	}
	if err != nil {
		t.Release()
		return nil, err
	}

	d.logger.Debug("wgpu texture allocated",
		zap.String("label", desc.Label),
		zap.Int("width", desc.Width),
		zap.Int("height", desc.Height),
		zap.Int("layers", desc.Layers),
		zap.Int("samples", desc.Samples))
	return t, nil
}

func (d *wgpuDeviceImpl) CreateLayerView(tex Texture, layer int) (TextureView, error) {
	wt, err := d.texture(tex)
	if err != nil {
		return nil, err
	}
	if layer < 0 || layer >= wt.desc.Layers {
		return nil, fmt.Errorf("%w: %q layer %d of %d", ErrLayerOutOfRange, wt.desc.Label, layer, wt.desc.Layers)
	}
	view, err := wt.createView(layer)
	if err != nil {
		return nil, fmt.Errorf("failed to create view of %q layer %d: %w", wt.desc.Label, layer, err)
	}
	return &wgpuView{tex: wt, layer: layer, view: view}, nil
}

// CheckFramebuffer validates the attachment combination structurally. WebGPU reports
// invalid attachments at pass encoding time, so the rules a pass would enforce are checked here.
func (d *wgpuDeviceImpl) CheckFramebuffer(color, depth Texture) FramebufferStatus {
	ct, err := d.texture(color)
	if err != nil {
		return FramebufferIncompleteMissingAttachment
	}
	if ct.desc.Format != FormatColor {
		return FramebufferIncompleteAttachment
	}
	if ct.desc.Samples > d.maxSamples {
		return FramebufferIncompleteMultisample
	}
	if depth == nil {
		return FramebufferComplete
	}
	dt, err := d.texture(depth)
	if err != nil {
		return FramebufferIncompleteMissingAttachment
	}
	if dt.desc.Format != FormatDepthStencil {
		return FramebufferIncompleteAttachment
	}
	if dt.desc.Samples != ct.desc.Samples || dt.desc.Layers != ct.desc.Layers {
		return FramebufferIncompleteMultisample
	}
	if dt.desc.Width != ct.desc.Width || dt.desc.Height != ct.desc.Height {
		return FramebufferUnsupported
	}
	return FramebufferComplete
}

func (d *wgpuDeviceImpl) ClearRenderTarget(color, depth Texture, viewportW, viewportH int) error {
	ct, err := d.texture(color)
	if err != nil {
		return err
	}
	var dt *wgpuTexture
	if depth != nil {
		if dt, err = d.texture(depth); err != nil {
			return err
		}
	}
	if err := validateRegion(ct.desc, 0, viewportW, viewportH); err != nil {
		return err
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	var views []*wgpu.TextureView
	defer func() {
		for _, v := range views {
			v.Release()
		}
	}()

	for layer := 0; layer < ct.desc.Layers; layer++ {
		cv, err := ct.createView(layer)
		if err != nil {
			return fmt.Errorf("failed to create clear view: %w", err)
		}
		views = append(views, cv)

		desc := &wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       cv,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			}},
		}
		if dt != nil {
			dv, err := dt.createView(layer)
			if err != nil {
				return fmt.Errorf("failed to create depth clear view: %w", err)
			}
			views = append(views, dv)
			desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:              dv,
				DepthLoadOp:       wgpu.LoadOpClear,
				DepthStoreOp:      wgpu.StoreOpStore,
				DepthClearValue:   1.0,
				StencilLoadOp:     wgpu.LoadOpClear,
				StencilStoreOp:    wgpu.StoreOpStore,
				StencilClearValue: 0,
			}
		}

		pass := encoder.BeginRenderPass(desc)
		pass.SetViewport(0, 0, float32(viewportW), float32(viewportH), 0, 1)
		pass.End()
	}

	return d.submit(encoder)
}

// ResolveLayer copies the region 1:1 through a resolve pass, so the filter is not used.
func (d *wgpuDeviceImpl) ResolveLayer(src, dst Texture, layer, width, height int, _ Filter) error {
	st, err := d.texture(src)
	if err != nil {
		return err
	}
	dt, err := d.texture(dst)
	if err != nil {
		return err
	}
	if dt.desc.Samples > 1 {
		return fmt.Errorf("%w: resolve destination %q is multisampled", ErrUnsupported, dt.desc.Label)
	}
	if err := validateRegion(st.desc, layer, width, height); err != nil {
		return err
	}
	if err := validateRegion(dt.desc, layer, width, height); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return nil
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	source, sourceLayer := st.layer(layer)
	if st.perLayer {
		msaaView, err := st.createView(layer)
		if err != nil {
			return fmt.Errorf("failed to create resolve source view: %w", err)
		}
		defer msaaView.Release()
		scratchView, err := st.scratch[layer].CreateView(nil)
		if err != nil {
			return fmt.Errorf("failed to create resolve scratch view: %w", err)
		}
		defer scratchView.Release()

		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:          msaaView,
				ResolveTarget: scratchView,
				LoadOp:        wgpu.LoadOpLoad,
				StoreOp:       wgpu.StoreOpStore,
			}},
		})
		pass.End()
		source, sourceLayer = st.scratch[layer], 0
	}

	dest, destLayer := dt.layer(layer)
	encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  source,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: sourceLayer},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture:  dest,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: destLayer},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)

	return d.submit(encoder)
}

func (d *wgpuDeviceImpl) InsertFence() (Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue == nil {
		return nil, errors.New("failed to insert fence: device released")
	}
	f := &wgpuFence{device: d}
	d.queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
		if status == wgpu.QueueWorkDoneStatusSuccess {
			f.done.Store(true)
		} else {
			f.failed.Store(true)
		}
	})
	return f, nil
}

// ReadPixel copies one texel into a mappable buffer and blocks until the map completes.
func (d *wgpuDeviceImpl) ReadPixel(tex Texture, layer, x, y int) ([4]uint8, error) {
	var pixel [4]uint8

	wt, err := d.texture(tex)
	if err != nil {
		return pixel, err
	}
	if wt.desc.Samples > 1 {
		return pixel, fmt.Errorf("%w: cannot read back multisampled %q", ErrUnsupported, wt.desc.Label)
	}
	if err := validateRegion(wt.desc, layer, x+1, y+1); err != nil {
		return pixel, err
	}

	buffer, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Pixel Readback",
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  256,
	})
	if err != nil {
		return pixel, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	defer buffer.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return pixel, fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	source, sourceLayer := wt.layer(layer)
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  source,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(x), Y: uint32(y), Z: sourceLayer},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buffer,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  256,
				RowsPerImage: 1,
			},
		},
		&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)
	if err := d.submit(encoder); err != nil {
		return pixel, err
	}

	var mapped, failed atomic.Bool
	buffer.MapAsync(wgpu.MapModeRead, 0, 256, func(status wgpu.BufferMapAsyncStatus) {
		if status == wgpu.BufferMapAsyncStatusSuccess {
			mapped.Store(true)
		} else {
			failed.Store(true)
		}
	})
	for !mapped.Load() && !failed.Load() {
		d.device.Poll(true, nil)
	}
	if failed.Load() {
		return pixel, fmt.Errorf("failed to map readback buffer for %q", wt.desc.Label)
	}
	copy(pixel[:], buffer.GetMappedRange(0, 4))
	buffer.Unmap()

	d.mu.Lock()
	bgra := d.colorFormat == wgpu.TextureFormatBGRA8Unorm || d.colorFormat == wgpu.TextureFormatBGRA8UnormSrgb
	d.mu.Unlock()
	if bgra {
		pixel[0], pixel[2] = pixel[2], pixel[0]
	}
	return pixel, nil
}

func (d *wgpuDeviceImpl) CopyToSurface(tex Texture, layer, width, height, dstX int) error {
	wt, err := d.texture(tex)
	if err != nil {
		return err
	}
	if err := validateRegion(wt.desc, layer, width, height); err != nil {
		return err
	}

	d.mu.Lock()
	if d.surface == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: device has no surface", ErrUnsupported)
	}
	if d.frameSurface == nil {
		surfaceTexture, err := d.surface.GetCurrentTexture()
		if err != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to acquire surface image: %w", err)
		}
		d.frameSurface = surfaceTexture
	}
	frame := d.frameSurface
	width = min(width, d.surfaceWidth-dstX)
	height = min(height, d.surfaceHeight)
	d.mu.Unlock()

	if width <= 0 || height <= 0 {
		return nil
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	source, sourceLayer := wt.layer(layer)
	encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  source,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: sourceLayer},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture:  frame,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(dstX)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)
	return d.submit(encoder)
}

func (d *wgpuDeviceImpl) PresentSurface() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return
	}
	d.surface.Present()
	d.frameSurface.Release()
	d.frameSurface = nil
}

// submit finishes the encoder and submits the resulting command buffer.
func (d *wgpuDeviceImpl) submit(encoder *wgpu.CommandEncoder) error {
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	defer commandBuffer.Release()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.Submit(commandBuffer)
	return nil
}

// texture unwraps a Texture belonging to this device.
func (d *wgpuDeviceImpl) texture(tex Texture) (*wgpuTexture, error) {
	wt, ok := tex.(*wgpuTexture)
	if !ok || wt == nil || wt.device != d {
		return nil, fmt.Errorf("%w: texture %T does not belong to this device", ErrUnsupported, tex)
	}
	if wt.Released() {
		return nil, fmt.Errorf("%w: %q", ErrTextureReleased, wt.desc.Label)
	}
	return wt, nil
}
