package quality

// FrameStats is a snapshot of the controller state after the most recent frame operation.
// Counters are cumulative since construction.
type FrameStats struct {
	// Frame is the index of the current frame, -1 before the first NewFrame.
	Frame int
	Level int

	Utilization         float64
	PrevUtilization     float64
	PrevPrevUtilization float64
	TelemetryAvailable  bool
	Suspended           bool

	ActualSupersampling     float64
	Viewport                Viewport
	LastViewport            Viewport
	RenderBufferUsage       float64
	ResolveBufferUsage      float64
	InterleavedReprojection bool
	RenderTargetIndex       int
	MSAALevel               int
	ResolveIndex            int

	// Adapted is true when this frame changed the level; LastReason explains the latest change.
	Adapted          bool
	LastAdaptedFrame int
	LastReason       Reason

	AdaptationsUp        int
	AdaptationsDown      int
	DroppedFrames        int
	TelemetryUnavailable int
	SubmitErrors         int
	FenceWaits           int
	// FenceWaitAttempts is the number of polls the most recent Present spent waiting.
	FenceWaitAttempts int

	ProbePixel [4]uint8
	ProbeValid bool
}
