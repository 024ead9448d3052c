package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/stretchr/testify/assert"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, float32(1.7), c.Fov())
	assert.Equal(t, float32(0.063), c.IPD())
	assert.Equal(t, float32(1), c.Aspect())

	p := c.ProjectionMatrix()
	assert.Equal(t, p[0], p[5], "square aspect scales both axes alike")
	assert.Equal(t, float32(-1), p[11])
}

func TestEyeMatricesAreMirrored(t *testing.T) {
	c := NewCamera(WithIPD(0.07), WithNear(0.1), WithFar(100))
	left := c.EyeMatrix(compositor.EyeLeft)
	right := c.EyeMatrix(compositor.EyeRight)

	assert.Positive(t, left[12])
	assert.InDelta(t, left[12], -right[12], 1e-6)
	assert.InDelta(t, c.ProjectionMatrix()[0]*0.035, left[12], 1e-6)
	for i := range 12 {
		assert.Equal(t, left[i], right[i], "element %d", i)
	}

	var both [2][16]float32
	c.EyeMatrices(&both)
	assert.Equal(t, left, both[compositor.EyeLeft])
	assert.Equal(t, right, both[compositor.EyeRight])
}

func TestSetAspect(t *testing.T) {
	c := NewCamera()
	before := c.ProjectionMatrix()

	c.SetAspect(0)
	assert.Equal(t, before, c.ProjectionMatrix(), "non-positive aspect is ignored")

	c.SetAspect(0.9)
	after := c.ProjectionMatrix()
	assert.InDelta(t, before[0]/0.9, after[0], 1e-5)
	assert.Equal(t, before[5], after[5])
}

func TestZeroIPD(t *testing.T) {
	c := NewCamera(WithIPD(0))
	assert.Equal(t, c.EyeMatrix(compositor.EyeLeft), c.EyeMatrix(compositor.EyeRight))
	assert.Equal(t, c.ProjectionMatrix(), c.EyeMatrix(compositor.EyeLeft))
}

func TestSetters(t *testing.T) {
	c := NewCamera()
	c.SetFov(1.2)
	c.SetNear(0.2)
	c.SetFar(50)
	c.SetIPD(0.06)

	assert.Equal(t, float32(1.2), c.Fov())
	assert.Equal(t, float32(0.2), c.Near())
	assert.Equal(t, float32(50), c.Far())
	assert.Equal(t, float32(0.06), c.IPD())
	assert.InDelta(t, c.ProjectionMatrix()[0]*0.03, c.EyeMatrix(compositor.EyeLeft)[12], 1e-6)
}
