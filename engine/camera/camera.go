package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
)

type cameraImpl struct {
	mu *sync.Mutex

	fov    float32
	aspect float32
	near   float32
	far    float32
	ipd    float32

	projectionMatrix [16]float32
	eyeOffset        [2][16]float32
	eyeMatrices      [2][16]float32
}

// Camera is the head-locked stereo camera. It holds one perspective projection shared by both
// eyes and offsets each eye by half the interpupillary distance.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height) of the eye viewport.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// IPD returns the interpupillary distance in meters.
	IPD() float32

	// ProjectionMatrix returns the shared 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// EyeMatrix returns the projection of one eye including its offset from the head center.
	//
	// Parameters:
	//   - eye: the eye
	//
	// Returns:
	//   - [16]float32: the column-major eye matrix
	EyeMatrix(eye compositor.Eye) [16]float32

	// EyeMatrices copies both eye matrices into out without allocating.
	//
	// Parameters:
	//   - out: destination indexed by compositor.Eye
	EyeMatrices(out *[2][16]float32)

	// SetFov sets the vertical field of view in radians and recomputes the matrices.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio and recomputes the matrices when it changed.
	// The viewport aspect changes with the quality level, so this runs every frame.
	//
	// Parameters:
	//   - aspect: the aspect ratio, values <= 0 are ignored
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance and recomputes the matrices.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes the matrices.
	SetFar(far float32)

	// SetIPD sets the interpupillary distance in meters and recomputes the matrices.
	SetIPD(ipd float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a stereo camera. Defaults approximate a consumer headset: a 1.7 radian
// vertical field of view and a 63 mm interpupillary distance.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		fov:    1.7,
		aspect: 1.0,
		near:   0.05,
		far:    1000.0,
		ipd:    0.063,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) IPD() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ipd
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) EyeMatrix(eye compositor.Eye) [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eyeMatrices[eyeIndex(eye)]
}

func (c *cameraImpl) EyeMatrices(out *[2][16]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*out = c.eyeMatrices
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 || aspect == c.aspect {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetIPD(ipd float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ipd = ipd
	c.updateMatrices()
}

func eyeIndex(eye compositor.Eye) int {
	if eye == compositor.EyeRight {
		return 1
	}
	return 0
}

// updateMatrices recalculates the projection and both eye matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	fov := c.fov
	if fov <= 0 || fov >= math.Pi {
		fov = 1.7
	}
	common.Perspective(c.projectionMatrix[:], fov, c.aspect, c.near, c.far)

	for _, eye := range compositor.Eyes {
		// the left eye sits at -ipd/2, so the world moves the other way
		offset := c.ipd / 2
		if eye == compositor.EyeRight {
			offset = -offset
		}
		i := eyeIndex(eye)
		common.Translation(c.eyeOffset[i][:], offset, 0, 0)
		common.Mul4(c.eyeMatrices[i][:], c.projectionMatrix[:], c.eyeOffset[i][:])
	}
}
