package compositor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"go.uber.org/zap"
)

// Mirror is a Compositor that presents submitted eyes side by side on a desktop surface and
// paces frames on a wall clock. Its telemetry is measured: the client interval is the time the
// application spent between WaitFrame calls.
type Mirror interface {
	Compositor

	// Events returns the queue that window callbacks push device events into.
	//
	// Returns:
	//   - *EventQueue: the event queue
	Events() *EventQueue
}

type mirrorImpl struct {
	mu *sync.Mutex

	logger *zap.Logger
	target gpu.Mirror

	width         int
	height        int
	frameDuration time.Duration
	events        *EventQueue

	frameStart time.Time
	timing     *FrameTiming
	reproject  bool

	now   func() time.Time
	sleep func(time.Duration)
}

// MirrorOption is a functional option applied to the mirror compositor during construction.
type MirrorOption func(*mirrorImpl)

// WithMirrorRecommendedSize sets the per-eye recommended render size.
func WithMirrorRecommendedSize(width, height int) MirrorOption {
	return func(m *mirrorImpl) {
		m.width = width
		m.height = height
	}
}

// WithMirrorRefreshRate sets the pacing rate in Hz.
func WithMirrorRefreshRate(hz float64) MirrorOption {
	return func(m *mirrorImpl) {
		if hz > 0 {
			m.frameDuration = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithMirrorLogger sets the logger.
func WithMirrorLogger(logger *zap.Logger) MirrorOption {
	return func(m *mirrorImpl) {
		m.logger = logger
	}
}

// WithMirrorClock replaces the wall clock and sleep function.
func WithMirrorClock(now func() time.Time, sleep func(time.Duration)) MirrorOption {
	return func(m *mirrorImpl) {
		m.now = now
		m.sleep = sleep
	}
}

var _ Mirror = &mirrorImpl{}

// NewMirror creates a desktop mirror compositor presenting through target.
//
// Parameters:
//   - target: the device surface the eyes are copied into
//   - options: functional options for the compositor
//
// Returns:
//   - Mirror: the compositor
func NewMirror(target gpu.Mirror, options ...MirrorOption) Mirror {
	m := &mirrorImpl{
		mu:            &sync.Mutex{},
		logger:        zap.NewNop(),
		target:        target,
		width:         1512,
		height:        1680,
		frameDuration: time.Second / 90,
		events:        NewEventQueue(),
		now:           time.Now,
		sleep:         time.Sleep,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *mirrorImpl) Events() *EventQueue { return m.events }

func (m *mirrorImpl) FrameTiming() (FrameTiming, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timing == nil {
		return FrameTiming{}, ErrTimingUnavailable
	}
	return *m.timing, nil
}

func (m *mirrorImpl) RecommendedRenderTargetSize() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}

func (m *mirrorImpl) DisplayFrameDuration() time.Duration {
	return m.frameDuration
}

// Submit copies the eye image into its half of the surface, clipped to the half width.
func (m *mirrorImpl) Submit(eye Eye, view gpu.TextureView, bounds Bounds) error {
	if eye != EyeLeft && eye != EyeRight {
		return fmt.Errorf("%w: %s", ErrInvalidSubmission, eye)
	}
	if view == nil || view.Released() {
		return fmt.Errorf("%w: %s eye view is released", ErrInvalidSubmission, eye)
	}
	if err := bounds.Validate(); err != nil {
		return err
	}

	desc := view.Texture().Descriptor()
	surfaceW, _ := m.target.SurfaceSize()
	half := surfaceW / 2
	w := min(int(math.Floor(bounds.UMax*float64(desc.Width))), half)
	h := int(math.Floor(bounds.VMax * float64(desc.Height)))
	if err := m.target.CopyToSurface(view.Texture(), view.Layer(), w, h, int(eye)*half); err != nil {
		return fmt.Errorf("failed to mirror %s eye: %w", eye, err)
	}
	return nil
}

func (m *mirrorImpl) SetForceInterleavedReprojection(force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reproject = force
}

// WaitFrame presents the surface, records the work time since the previous WaitFrame as the
// client interval and sleeps out the rest of the display interval.
func (m *mirrorImpl) WaitFrame() error {
	m.target.PresentSurface()

	m.mu.Lock()
	now := m.now()
	budget := m.frameDuration
	if m.reproject {
		budget *= 2
	}
	var sleep time.Duration
	if !m.frameStart.IsZero() {
		work := now.Sub(m.frameStart)
		dropped := 0
		if work > budget {
			dropped = int(math.Ceil(float64(work)/float64(budget))) - 1
		}
		m.timing = &FrameTiming{
			NumDroppedFrames:    dropped,
			ClientFrameInterval: work,
			PreSubmitGPU:        work,
			CompositorIdleCPU:   max(budget-work, 0),
		}
		sleep = budget - work
	}
	m.mu.Unlock()

	if sleep > 0 {
		m.sleep(sleep)
	}

	m.mu.Lock()
	m.frameStart = m.now()
	m.mu.Unlock()
	return nil
}

func (m *mirrorImpl) PollEvent() (Event, bool) {
	return m.events.Poll()
}
