package compositor

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type surfaceCopy struct {
	label         string
	layer         int
	width, height int
	dstX          int
}

type fakeSurface struct {
	width, height int
	copies        []surfaceCopy
	presents      int
}

func (s *fakeSurface) CopyToSurface(tex gpu.Texture, layer, width, height, dstX int) error {
	s.copies = append(s.copies, surfaceCopy{label: tex.Descriptor().Label, layer: layer, width: width, height: height, dstX: dstX})
	return nil
}

func (s *fakeSurface) PresentSurface() { s.presents++ }

func (s *fakeSurface) SurfaceSize() (int, int) { return s.width, s.height }

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) work(d time.Duration) { c.now = c.now.Add(d) }

func TestMirrorSubmitCopiesEachEyeIntoItsHalf(t *testing.T) {
	device := gpu.NewHeadlessDevice()
	tex, err := device.CreateTexture(gpu.TextureDescriptor{Label: "resolve", Width: 2000, Height: 1000, Layers: 2})
	require.NoError(t, err)
	left, err := device.CreateLayerView(tex, 0)
	require.NoError(t, err)
	right, err := device.CreateLayerView(tex, 1)
	require.NoError(t, err)

	surface := &fakeSurface{width: 1600, height: 900}
	m := NewMirror(surface)

	bounds := Bounds{UMax: 0.5, VMax: 0.8}
	require.NoError(t, m.Submit(EyeLeft, left, bounds))
	require.NoError(t, m.Submit(EyeRight, right, Bounds{UMax: 0.25, VMax: 0.5}))

	require.Len(t, surface.copies, 2)
	// 1000 wide clipped to the 800 pixel half
	assert.Equal(t, surfaceCopy{label: "resolve", layer: 0, width: 800, height: 800, dstX: 0}, surface.copies[0])
	assert.Equal(t, surfaceCopy{label: "resolve", layer: 1, width: 500, height: 500, dstX: 800}, surface.copies[1])

	assert.ErrorIs(t, m.Submit(EyeLeft, nil, bounds), ErrInvalidSubmission)
	assert.ErrorIs(t, m.Submit(EyeLeft, left, Bounds{}), ErrInvalidSubmission)
}

func TestMirrorPacing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	surface := &fakeSurface{width: 100, height: 100}
	m := NewMirror(surface, WithMirrorRefreshRate(100), WithMirrorClock(clock.Now, clock.Sleep))

	// the first frame has no measured interval
	require.NoError(t, m.WaitFrame())
	_, err := m.FrameTiming()
	assert.ErrorIs(t, err, ErrTimingUnavailable)
	assert.Empty(t, clock.sleeps)

	clock.work(4 * time.Millisecond)
	require.NoError(t, m.WaitFrame())
	timing, err := m.FrameTiming()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Millisecond, timing.ClientFrameInterval)
	assert.Zero(t, timing.NumDroppedFrames)
	assert.Equal(t, []time.Duration{6 * time.Millisecond}, clock.sleeps)

	clock.work(25 * time.Millisecond)
	require.NoError(t, m.WaitFrame())
	timing, err = m.FrameTiming()
	require.NoError(t, err)
	assert.Equal(t, 2, timing.NumDroppedFrames)
	assert.Len(t, clock.sleeps, 1, "an overrun frame does not sleep")

	m.SetForceInterleavedReprojection(true)
	clock.work(15 * time.Millisecond)
	require.NoError(t, m.WaitFrame())
	timing, err = m.FrameTiming()
	require.NoError(t, err)
	assert.Zero(t, timing.NumDroppedFrames)
	assert.Equal(t, 5*time.Millisecond, clock.sleeps[1])

	assert.Equal(t, 4, surface.presents)
}

func TestMirrorEvents(t *testing.T) {
	m := NewMirror(&fakeSurface{}, WithMirrorRecommendedSize(640, 720))
	w, h := m.RecommendedRenderTargetSize()
	assert.Equal(t, 640, w)
	assert.Equal(t, 720, h)

	m.Events().Push(Event{Kind: EventQuit})
	e, ok := m.PollEvent()
	require.True(t, ok)
	assert.Equal(t, EventQuit, e.Kind)
}
