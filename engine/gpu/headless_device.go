package gpu

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HeadlessStats is a snapshot of the headless device's allocation and command counters.
type HeadlessStats struct {
	LiveTextures   int
	LiveViews      int
	LiveFences     int
	TexturesMade   int
	DoubleReleases int
	Clears         int
	Resolves       int
	FencesIssued   int
	FenceWaits     int
	PixelReads     int
	TexturePixels  int64
}

type headlessDevice struct {
	mu *sync.Mutex

	logger *zap.Logger

	maxSamples     int
	maxTextureSize int
	fenceLatency   int
	failFenceWaits bool

	// pending failure to inject into the next CreateTexture call, keyed by label
	failLabel string

	stats HeadlessStats
}

// HeadlessDevice is a CPU-side Device that performs no rendering. It tracks every allocation,
// signals fences after a configurable number of polls and can inject driver failures.
type HeadlessDevice interface {
	Device

	// Stats returns a snapshot of the allocation and command counters.
	//
	// Returns:
	//   - HeadlessStats: the current counters
	Stats() HeadlessStats

	// SetFenceWaitFailure makes every subsequent fence wait report an explicit wait failure.
	//
	// Parameters:
	//   - fail: true to inject failures
	SetFenceWaitFailure(fail bool)

	// SetFenceLatency sets how many timed-out polls a newly issued fence reports before signaling.
	//
	// Parameters:
	//   - polls: the number of timeouts before signaling (0 signals immediately)
	SetFenceLatency(polls int)

	// FailNextTexture makes the next CreateTexture call whose label equals label fail.
	//
	// Parameters:
	//   - label: the texture label to fail
	FailNextTexture(label string)
}

// HeadlessDeviceOption is a functional option applied to the headless device during construction.
type HeadlessDeviceOption func(*headlessDevice)

// WithHeadlessMaxSamples caps the sample count the device treats as renderable. Framebuffers
// with more samples report FramebufferIncompleteMultisample.
//
// Parameters:
//   - samples: the highest supported sample count
//
// Returns:
//   - HeadlessDeviceOption: option function to apply
func WithHeadlessMaxSamples(samples int) HeadlessDeviceOption {
	return func(d *headlessDevice) {
		d.maxSamples = samples
	}
}

// WithHeadlessMaxTextureSize caps the texture dimension the device can allocate.
//
// Parameters:
//   - size: the largest width or height in pixels
//
// Returns:
//   - HeadlessDeviceOption: option function to apply
func WithHeadlessMaxTextureSize(size int) HeadlessDeviceOption {
	return func(d *headlessDevice) {
		d.maxTextureSize = size
	}
}

// WithHeadlessFenceLatency sets how many polls every new fence times out before signaling.
//
// Parameters:
//   - polls: the number of timeouts before signaling
//
// Returns:
//   - HeadlessDeviceOption: option function to apply
func WithHeadlessFenceLatency(polls int) HeadlessDeviceOption {
	return func(d *headlessDevice) {
		d.fenceLatency = polls
	}
}

// WithHeadlessLogger sets the logger used for allocation diagnostics.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - HeadlessDeviceOption: option function to apply
func WithHeadlessLogger(logger *zap.Logger) HeadlessDeviceOption {
	return func(d *headlessDevice) {
		d.logger = logger
	}
}

var _ HeadlessDevice = &headlessDevice{}

// NewHeadlessDevice creates a headless Device.
//
// Parameters:
//   - options: functional options for the device
//
// Returns:
//   - HeadlessDevice: the device
func NewHeadlessDevice(options ...HeadlessDeviceOption) HeadlessDevice {
	d := &headlessDevice{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		maxSamples:     16,
		maxTextureSize: 16384,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

type headlessTexture struct {
	device   *headlessDevice
	desc     TextureDescriptor
	released bool

	// per-layer content stamp, bumped by clears and resolves so readbacks are observable
	stamps []uint8
}

func (t *headlessTexture) Descriptor() TextureDescriptor { return t.desc }

func (t *headlessTexture) Released() bool {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return t.released
}

func (t *headlessTexture) Release() {
	d := t.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.released {
		d.stats.DoubleReleases++
		return
	}
	t.released = true
	d.stats.LiveTextures--
	d.stats.TexturePixels -= int64(t.desc.Width) * int64(t.desc.Height) * int64(t.desc.Layers) * int64(max(t.desc.Samples, 1))
}

type headlessView struct {
	device   *headlessDevice
	tex      *headlessTexture
	layer    int
	released bool
}

func (v *headlessView) Texture() Texture { return v.tex }
func (v *headlessView) Layer() int       { return v.layer }

func (v *headlessView) Released() bool {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	return v.released
}

func (v *headlessView) Release() {
	d := v.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if v.released {
		d.stats.DoubleReleases++
		return
	}
	v.released = true
	d.stats.LiveViews--
}

type headlessFence struct {
	device    *headlessDevice
	remaining int
	released  bool
}

func (f *headlessFence) ClientWait(timeout time.Duration) FenceStatus {
	d := f.device
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.FenceWaits++
	if d.failFenceWaits || f.released {
		return FenceWaitFailed
	}
	if f.remaining > 0 {
		f.remaining--
		return FenceTimeout
	}
	return FenceSignaled
}

func (f *headlessFence) Release() {
	d := f.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if f.released {
		d.stats.DoubleReleases++
		return
	}
	f.released = true
	d.stats.LiveFences--
}

func (d *headlessDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Layers <= 0 {
		desc.Layers = 1
	}
	if desc.Samples <= 0 {
		desc.Samples = 1
	}
	if d.failLabel != "" && d.failLabel == desc.Label {
		d.failLabel = ""
		return nil, fmt.Errorf("failed to create texture %q: out of memory", desc.Label)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.maxTextureSize || desc.Height > d.maxTextureSize {
		return nil, fmt.Errorf("failed to create texture %q: size %dx%d outside [1, %d]", desc.Label, desc.Width, desc.Height, d.maxTextureSize)
	}

	t := &headlessTexture{
		device: d,
		desc:   desc,
		stamps: make([]uint8, desc.Layers),
	}
	d.stats.LiveTextures++
	d.stats.TexturesMade++
	d.stats.TexturePixels += int64(desc.Width) * int64(desc.Height) * int64(desc.Layers) * int64(desc.Samples)
	d.logger.Debug("headless texture allocated",
		zap.String("label", desc.Label),
		zap.Int("width", desc.Width),
		zap.Int("height", desc.Height),
		zap.Int("layers", desc.Layers),
		zap.Int("samples", desc.Samples))
	return t, nil
}

func (d *headlessDevice) CreateLayerView(tex Texture, layer int) (TextureView, error) {
	ht, err := d.texture(tex)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if layer < 0 || layer >= ht.desc.Layers {
		return nil, fmt.Errorf("%w: %q layer %d of %d", ErrLayerOutOfRange, ht.desc.Label, layer, ht.desc.Layers)
	}
	d.stats.LiveViews++
	return &headlessView{device: d, tex: ht, layer: layer}, nil
}

func (d *headlessDevice) CheckFramebuffer(color, depth Texture) FramebufferStatus {
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

func (d *headlessDevice) ClearRenderTarget(color, depth Texture, viewportW, viewportH int) error {
	ct, err := d.texture(color)
	if err != nil {
		return err
	}
	if depth != nil {
		if _, err := d.texture(depth); err != nil {
			return err
		}
	}
	if err := validateRegion(ct.desc, 0, viewportW, viewportH); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range ct.stamps {
		ct.stamps[i]++
	}
	d.stats.Clears++
	return nil
}

func (d *headlessDevice) ResolveLayer(src, dst Texture, layer, width, height int, filter Filter) error {
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
	d.mu.Lock()
	defer d.mu.Unlock()
	dt.stamps[layer] = st.stamps[layer]
	d.stats.Resolves++
	return nil
}

func (d *headlessDevice) InsertFence() (Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.FencesIssued++
	d.stats.LiveFences++
	return &headlessFence{device: d, remaining: d.fenceLatency}, nil
}

func (d *headlessDevice) ReadPixel(tex Texture, layer, x, y int) ([4]uint8, error) {
	ht, err := d.texture(tex)
	if err != nil {
		return [4]uint8{}, err
	}
	if ht.desc.Samples > 1 {
		return [4]uint8{}, fmt.Errorf("%w: cannot read back multisampled %q", ErrUnsupported, ht.desc.Label)
	}
	if err := validateRegion(ht.desc, layer, x+1, y+1); err != nil {
		return [4]uint8{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.PixelReads++
	return [4]uint8{ht.stamps[layer], uint8(layer), 0, 255}, nil
}

func (d *headlessDevice) Stats() HeadlessStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *headlessDevice) SetFenceWaitFailure(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failFenceWaits = fail
}

func (d *headlessDevice) SetFenceLatency(polls int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fenceLatency = polls
}

func (d *headlessDevice) FailNextTexture(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failLabel = label
}

// texture unwraps a Texture belonging to this device.
func (d *headlessDevice) texture(tex Texture) (*headlessTexture, error) {
	ht, ok := tex.(*headlessTexture)
	if !ok || ht == nil {
		return nil, fmt.Errorf("%w: texture %T does not belong to the headless device", ErrUnsupported, tex)
	}
	if ht.Released() {
		return nil, fmt.Errorf("%w: %q", ErrTextureReleased, ht.desc.Label)
	}
	return ht, nil
}
