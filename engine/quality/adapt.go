package quality

import (
	"fmt"
	"time"
)

const (
	// minFramesBetweenAdaptations is the rate limit between two quality changes.
	minFramesBetweenAdaptations = 2
	// saturatedUtilization steps down immediately.
	saturatedUtilization = 0.9
	// predictiveUtilization steps down when the trend projects saturation on the next frame.
	predictiveUtilization = 0.85
	// headroomUtilization must hold for headroomFrames consecutive frames before stepping up.
	headroomUtilization = 0.7
	headroomFrames      = 3
	// lowResourcesBudget shrinks the frame budget while the compositor reports low resources.
	lowResourcesBudget = 0.75
)

// Reason explains a quality change.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonDroppedFrames
	ReasonSaturated
	ReasonPredictedSaturation
	ReasonHeadroom
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDroppedFrames:
		return "dropped frames"
	case ReasonSaturated:
		return "saturated"
	case ReasonPredictedSaturation:
		return "predicted saturation"
	case ReasonHeadroom:
		return "headroom"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Upgrade reports whether the reason raises quality.
func (r Reason) Upgrade() bool { return r == ReasonHeadroom }

// utilizationHistory holds the current and two previous utilization samples.
type utilizationHistory struct {
	current  float64
	prev     float64
	prevPrev float64
}

func (h *utilizationHistory) push(u float64) {
	h.prevPrev, h.prev, h.current = h.prev, h.current, u
}

// Utilization is the client frame interval relative to the frame budget. The budget shrinks under
// low resources and doubles while interleaved reprojection halves the application's rate.
//
// Parameters:
//   - interval: the client frame interval
//   - target: the display frame duration
//   - lowResources: the compositor's low-resources hint
//   - reprojecting: whether interleaved reprojection is active
//
// Returns:
//   - float64: the utilization, 0 when the target is not positive
func Utilization(interval, target time.Duration, lowResources, reprojecting bool) float64 {
	budget := float64(target)
	if lowResources {
		budget *= lowResourcesBudget
	}
	if reprojecting {
		budget *= 2
	}
	if budget <= 0 {
		return 0
	}
	return float64(interval) / budget
}

// decide picks the next level from the current one. The first matching rule wins: dropped frames,
// saturation, predicted saturation, then a sustained run of headroom. Callers apply rate limiting.
func decide(t Table, level, dropped, lowStreak int, h utilizationHistory) (int, Reason) {
	switch {
	case dropped > 0:
		return stepDown(t, level), ReasonDroppedFrames
	case h.current >= saturatedUtilization:
		return stepDown(t, level), ReasonSaturated
	case h.current >= predictiveUtilization &&
		h.current+max(h.current-h.prev, 0.5*(h.current-h.prevPrev)) >= saturatedUtilization:
		return stepDown(t, level), ReasonPredictedSaturation
	case lowStreak >= headroomFrames:
		return min(level+1, t.Len()-1), ReasonHeadroom
	default:
		return level, ReasonNone
	}
}

// stepDown drops two levels, or one when the level two steps down would force reprojection.
func stepDown(t Table, level int) int {
	step := 2
	if t.Levels[max(level-2, 0)].ForceInterleavedReprojection {
		step = 1
	}
	return max(level-step, 0)
}
