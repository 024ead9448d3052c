package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, 0, Clamp(-2, 0, 3))
	assert.Equal(t, 2, Clamp(2, 0, 3))
	// lower bound wins when the band is inverted
	assert.Equal(t, 4, Clamp(1, 4, 2))
	assert.InDelta(t, 0.3, Clamp(0.1, 0.3, 1.6), 1e-9)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}

func TestPerspectiveUsesAspect(t *testing.T) {
	out := make([]float32, 16)
	Perspective(out, math.Pi/2, 2.0, 0.1, 100)
	assert.InDelta(t, 0.5, out[0], 1e-5)
	assert.InDelta(t, 1.0, out[5], 1e-5)
	assert.Equal(t, float32(-1), out[11])
}

func TestMul4Identity(t *testing.T) {
	id := make([]float32, 16)
	Identity(id)
	tr := make([]float32, 16)
	Translation(tr, 1, 2, 3)
	out := make([]float32, 16)
	Mul4(out, id, tr)
	assert.Equal(t, tr, out)
}
