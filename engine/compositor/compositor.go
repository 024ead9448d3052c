// Package compositor defines the headset compositor the stereo quality subsystem talks to:
// per-frame timing telemetry, the recommended render size, eye submission, the forced
// reprojection hint and device events. A simulated compositor drives the loop headless and a
// mirror compositor presents the submitted eyes on a desktop window.
package compositor

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
)

var (
	// ErrTimingUnavailable is returned by FrameTiming when the compositor has no timing for the last frame.
	ErrTimingUnavailable = errors.New("compositor: frame timing unavailable")
	// ErrInvalidSubmission is returned by Submit for an unknown eye, a released view or malformed bounds.
	ErrInvalidSubmission = errors.New("compositor: invalid submission")
)

// Eye identifies one of the two stereo eye layers.
type Eye int

const (
	EyeLeft Eye = iota
	EyeRight
)

// Eyes lists both eyes in submission order.
var Eyes = [2]Eye{EyeLeft, EyeRight}

func (e Eye) String() string {
	switch e {
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return fmt.Sprintf("eye(%d)", int(e))
	}
}

// Bounds is the texture-space rectangle of a submitted eye texture that holds the rendered image.
type Bounds struct {
	UMin float64
	VMin float64
	UMax float64
	VMax float64
}

// Validate reports whether the bounds form a non-empty rectangle inside [0,1]x[0,1].
func (b Bounds) Validate() error {
	if b.UMin < 0 || b.VMin < 0 || b.UMax > 1 || b.VMax > 1 || b.UMin >= b.UMax || b.VMin >= b.VMax {
		return fmt.Errorf("%w: bounds (%g,%g)-(%g,%g)", ErrInvalidSubmission, b.UMin, b.VMin, b.UMax, b.VMax)
	}
	return nil
}

// FrameTiming is the compositor's telemetry for the most recently completed frame.
type FrameTiming struct {
	NumDroppedFrames    int
	ClientFrameInterval time.Duration
	PreSubmitGPU        time.Duration
	PostSubmitGPU       time.Duration
	CompositorIdleCPU   time.Duration
	LowResources        bool
}

// Workload describes what the application rendered this frame.
type Workload struct {
	// Pixels is the per-eye viewport area.
	Pixels int
	// Samples is the MSAA sample count of the render target.
	Samples int
}

// Compositor is the headset runtime the quality subsystem submits frames to.
// All methods are called from the render thread.
type Compositor interface {
	// FrameTiming returns the telemetry for the most recently completed frame.
	//
	// Returns:
	//   - FrameTiming: the frame telemetry
	//   - error: ErrTimingUnavailable when no timing exists for the last frame
	FrameTiming() (FrameTiming, error)

	// RecommendedRenderTargetSize returns the per-eye render size the headset recommends at 1.0 supersampling.
	//
	// Returns:
	//   - width, height: the recommended size in pixels
	RecommendedRenderTargetSize() (width, height int)

	// DisplayFrameDuration returns the headset's refresh interval.
	//
	// Returns:
	//   - time.Duration: the target frame duration
	DisplayFrameDuration() time.Duration

	// Submit hands one eye of a finished frame to the compositor.
	//
	// Parameters:
	//   - eye: the eye being submitted
	//   - view: the single-layer view of the resolve target holding the eye image
	//   - bounds: the texture-space region of the view containing the image
	//
	// Returns:
	//   - error: an error if the submission is rejected
	Submit(eye Eye, view gpu.TextureView, bounds Bounds) error

	// SetForceInterleavedReprojection tells the compositor whether to run interleaved reprojection.
	//
	// Parameters:
	//   - force: true to force reprojection
	SetForceInterleavedReprojection(force bool)

	// WaitFrame blocks until the compositor is ready for the next frame.
	//
	// Returns:
	//   - error: an error if the compositor shut down
	WaitFrame() error

	// PollEvent pops the next pending device event.
	//
	// Returns:
	//   - Event: the event
	//   - bool: false when the queue is empty
	PollEvent() (Event, bool)
}

// WorkloadReporter is implemented by compositors that model GPU cost from the rendered workload.
type WorkloadReporter interface {
	// ReportWorkload records what the application rendered this frame.
	//
	// Parameters:
	//   - w: the workload
	ReportWorkload(w Workload)
}
