package quality

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderTargetPoolAllocation(t *testing.T) {
	device := gpu.NewHeadlessDevice()
	table := DefaultTable()

	pool, err := NewRenderTargetPool(device, table.RenderTargets, 1512, 1680, zap.NewNop())
	require.NoError(t, err)
	defer pool.Release()

	require.Equal(t, 2, pool.Len())

	tests := []struct {
		index   int
		width   int
		height  int
		samples int
	}{
		{index: 0, width: 2116, height: 2352, samples: 4},
		{index: 1, width: 2419, height: 2688, samples: 8},
	}
	for _, tt := range tests {
		rt := pool.Target(tt.index)
		assert.Equal(t, tt.width, rt.Width, "target %d", tt.index)
		assert.Equal(t, tt.height, rt.Height, "target %d", tt.index)

		for _, tex := range []gpu.Texture{rt.Color, rt.DepthStencil} {
			desc := tex.Descriptor()
			assert.Equal(t, tt.width, desc.Width)
			assert.Equal(t, tt.height, desc.Height)
			assert.Equal(t, 2, desc.Layers)
			assert.Equal(t, tt.samples, desc.Samples)
		}
		assert.Equal(t, gpu.FormatColor, rt.Color.Descriptor().Format)
		assert.Equal(t, gpu.FormatDepthStencil, rt.DepthStencil.Descriptor().Format)

		assert.Equal(t, 0, rt.View(compositor.EyeLeft).Layer())
		assert.Equal(t, 1, rt.View(compositor.EyeRight).Layer())
		assert.Same(t, rt.Color, rt.LeftView.Texture())
	}

	stats := device.Stats()
	assert.Equal(t, 4, stats.LiveTextures)
	assert.Equal(t, 4, stats.LiveViews)
}

func TestResolveTargetPoolAllocation(t *testing.T) {
	device := gpu.NewHeadlessDevice()

	pool, err := NewResolveTargetPool(device, 1.6, 1512, 1680, zap.NewNop())
	require.NoError(t, err)
	defer pool.Release()

	for i := range 2 {
		rt := pool.Target(i)
		desc := rt.Color.Descriptor()
		assert.Equal(t, i, rt.Index)
		assert.Equal(t, 2419, desc.Width)
		assert.Equal(t, 2688, desc.Height)
		assert.Equal(t, 1, desc.Samples)
		assert.Equal(t, 2, desc.Layers)
		assert.False(t, rt.InFlight())
	}
	assert.NotSame(t, pool.Target(0).Color, pool.Target(1).Color)
}

func TestIncompleteFramebufferIsReportedEagerly(t *testing.T) {
	device := gpu.NewHeadlessDevice(gpu.WithHeadlessMaxSamples(4))
	comp := compositor.NewSimulated()

	_, err := NewController(device, comp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteFramebuffer)
	assert.Contains(t, err.Error(), "render target 1")
	assert.Contains(t, err.Error(), "msaa 8")
	assert.Contains(t, err.Error(), "incomplete multisample")
	assert.Contains(t, err.Error(), "0x8D56")

	stats := device.Stats()
	assert.Zero(t, stats.LiveTextures)
	assert.Zero(t, stats.LiveViews)
	assert.Zero(t, stats.DoubleReleases)
}

func TestPartialConstructionFailureReleasesEverything(t *testing.T) {
	tests := []struct {
		name  string
		label string
	}{
		{name: "first color", label: "render target 0 color"},
		{name: "second depth", label: "render target 1 depth"},
		{name: "first resolve", label: "resolve target 0"},
		{name: "second resolve", label: "resolve target 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := gpu.NewHeadlessDevice()
			device.FailNextTexture(tt.label)

			_, err := NewController(device, compositor.NewSimulated())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of memory")

			stats := device.Stats()
			assert.Zero(t, stats.LiveTextures)
			assert.Zero(t, stats.LiveViews)
			assert.Zero(t, stats.DoubleReleases)
		})
	}
}

func TestPoolReleaseIsIdempotent(t *testing.T) {
	device := gpu.NewHeadlessDevice()
	table := DefaultTable()

	rp, err := NewRenderTargetPool(device, table.RenderTargets, 800, 900, zap.NewNop())
	require.NoError(t, err)
	sp, err := NewResolveTargetPool(device, table.GlobalMaxSupersampling(), 800, 900, zap.NewNop())
	require.NoError(t, err)

	// a fence left on a resolve target is freed with it
	fence, err := device.InsertFence()
	require.NoError(t, err)
	sp.Target(1).fence = fence

	rp.Release()
	rp.Release()
	sp.Release()
	sp.Release()

	var nilPool *RenderTargetPool
	nilPool.Release()
	var nilResolve *ResolveTargetPool
	nilResolve.Release()

	stats := device.Stats()
	assert.Zero(t, stats.LiveTextures)
	assert.Zero(t, stats.LiveViews)
	assert.Zero(t, stats.LiveFences)
	assert.Zero(t, stats.DoubleReleases)
	assert.True(t, rp.Released())
	assert.True(t, sp.Released())
	assert.True(t, nilPool.Released())
}

func TestTargetReleaseAfterPartialBuild(t *testing.T) {
	device := gpu.NewHeadlessDevice()
	color, err := device.CreateTexture(gpu.TextureDescriptor{Label: "partial", Width: 4, Height: 4, Layers: 2})
	require.NoError(t, err)

	rt := &StereoRenderTarget{Color: color}
	rt.Release()
	rt.Release()

	var nilTarget *StereoRenderTarget
	nilTarget.Release()

	assert.True(t, color.Released())
	assert.Zero(t, device.Stats().DoubleReleases)
}
