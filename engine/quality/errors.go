package quality

import "errors"

var (
	// ErrIncompleteFramebuffer is returned when a render or resolve target fails its completeness check.
	ErrIncompleteFramebuffer = errors.New("quality: incomplete framebuffer")
	// ErrFenceWaitFailed is returned when the driver reports an explicit fence wait failure.
	ErrFenceWaitFailed = errors.New("quality: fence wait failed")
	// ErrFenceWaitExhausted is returned when a fence stays unsignaled for the whole retry budget.
	ErrFenceWaitExhausted = errors.New("quality: fence wait retry budget exhausted")
	// ErrResolveTargetInFlight is returned when Resolve would overwrite a buffer the compositor may still be reading.
	ErrResolveTargetInFlight = errors.New("quality: resolve target still in flight")
	// ErrInvalidTable is returned when a quality table fails validation.
	ErrInvalidTable = errors.New("quality: invalid quality table")
	// ErrReleased is returned by operations on a released controller.
	ErrReleased = errors.New("quality: controller released")
	// ErrViewportExceedsTarget is returned when the viewport does not fit a target's allocation.
	ErrViewportExceedsTarget = errors.New("quality: viewport exceeds target allocation")
)
