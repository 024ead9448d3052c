package compositor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"go.uber.org/zap"
)

// LoadProfile scripts how scene cost varies over the frames of a simulation.
type LoadProfile string

const (
	// LoadSteady keeps scene cost constant.
	LoadSteady LoadProfile = "steady"
	// LoadSpike raises the cost 2.2x for three frames out of every 120.
	LoadSpike LoadProfile = "spike"
	// LoadRamp sweeps the cost between 0.6x and 1.8x over a 600 frame triangle wave.
	LoadRamp LoadProfile = "ramp"
	// LoadHeavy runs at 1.6x cost with the low-resources hint raised.
	LoadHeavy LoadProfile = "heavy"
)

// LoadProfiles lists every recognized profile.
var LoadProfiles = []LoadProfile{LoadSteady, LoadSpike, LoadRamp, LoadHeavy}

// ParseLoadProfile resolves a profile name case-insensitively.
//
// Parameters:
//   - name: the profile name
//
// Returns:
//   - LoadProfile: the profile
//   - error: an error if the name is not recognized
func ParseLoadProfile(name string) (LoadProfile, error) {
	p := LoadProfile(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range LoadProfiles {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown load profile %q", name)
}

// Multiplier returns the scene cost multiplier for a frame.
func (p LoadProfile) Multiplier(frame int) float64 {
	switch p {
	case LoadSpike:
		if t := frame % 120; t >= 60 && t < 63 {
			return 2.2
		}
		return 1
	case LoadRamp:
		t := float64(frame % 600)
		if t < 300 {
			return 0.6 + 1.2*t/300
		}
		return 1.8 - 1.2*(t-300)/300
	case LoadHeavy:
		return 1.6
	default:
		return 1
	}
}

// LowResources reports whether the profile raises the low-resources hint on a frame.
func (p LoadProfile) LowResources(frame int) bool {
	return p == LoadHeavy
}

// Submission records one eye handed to the simulated compositor.
type Submission struct {
	Frame   int
	Eye     Eye
	Texture string
	Layer   int
	Bounds  Bounds
}

// Simulated is a Compositor that models GPU frame cost from the reported workload instead of
// talking to a headset. It drives the quality loop in tests and in the simulate command.
type Simulated interface {
	Compositor
	WorkloadReporter

	// ChangeResolution changes the recommended render size and queues an EventResolutionChanged.
	//
	// Parameters:
	//   - width, height: the new recommended size in pixels
	ChangeResolution(width, height int)

	// Frame returns the number of completed frames.
	Frame() int

	// SubmissionCount returns the total number of eye submissions.
	SubmissionCount() int

	// LastSubmission returns the most recent submission for an eye.
	//
	// Parameters:
	//   - eye: the eye
	//
	// Returns:
	//   - Submission: the submission
	//   - bool: false if the eye was never submitted
	LastSubmission(eye Eye) (Submission, bool)

	// ForcedReprojection returns the last value pushed through SetForceInterleavedReprojection.
	ForcedReprojection() bool
}

type simulatedImpl struct {
	mu *sync.Mutex

	logger *zap.Logger

	width         int
	height        int
	frameDuration time.Duration

	profile   LoadProfile
	rng       *rand.Rand
	noise     float64
	baseCost  time.Duration
	pixelCost float64

	realtime bool
	lastWait time.Time

	gapEvery   int
	frameLimit int
	quitSent   bool
	resizes    map[int][2]int
	events     *EventQueue

	frame       int
	workload    Workload
	hasWorkload bool
	timing      *FrameTiming
	reprojected bool

	submissions int
	last        [2]*Submission
}

// SimulatedOption is a functional option applied to the simulated compositor during construction.
type SimulatedOption func(*simulatedImpl)

// WithSimulatedRecommendedSize sets the per-eye recommended render size.
func WithSimulatedRecommendedSize(width, height int) SimulatedOption {
	return func(s *simulatedImpl) {
		s.width = width
		s.height = height
	}
}

// WithSimulatedRefreshRate sets the display refresh rate in Hz.
func WithSimulatedRefreshRate(hz float64) SimulatedOption {
	return func(s *simulatedImpl) {
		if hz > 0 {
			s.frameDuration = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithSimulatedLoadProfile sets the scripted scene load.
func WithSimulatedLoadProfile(profile LoadProfile) SimulatedOption {
	return func(s *simulatedImpl) {
		s.profile = profile
	}
}

// WithSimulatedSeed seeds the frame cost noise.
func WithSimulatedSeed(seed uint64) SimulatedOption {
	return func(s *simulatedImpl) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	}
}

// WithSimulatedNoise sets the relative amplitude of the uniform frame cost noise. Zero disables noise.
func WithSimulatedNoise(amplitude float64) SimulatedOption {
	return func(s *simulatedImpl) {
		s.noise = amplitude
	}
}

// WithSimulatedCost sets the fixed per-frame cost and the cost per sample-weighted pixel in nanoseconds.
func WithSimulatedCost(base time.Duration, nsPerPixel float64) SimulatedOption {
	return func(s *simulatedImpl) {
		s.baseCost = base
		s.pixelCost = nsPerPixel
	}
}

// WithSimulatedRealtime makes WaitFrame sleep out the remainder of each display interval.
func WithSimulatedRealtime(realtime bool) SimulatedOption {
	return func(s *simulatedImpl) {
		s.realtime = realtime
	}
}

// WithSimulatedTimingGaps makes FrameTiming fail on every n-th frame.
func WithSimulatedTimingGaps(every int) SimulatedOption {
	return func(s *simulatedImpl) {
		s.gapEvery = every
	}
}

// WithSimulatedFrameLimit queues an EventQuit once the given number of frames completed.
func WithSimulatedFrameLimit(frames int) SimulatedOption {
	return func(s *simulatedImpl) {
		s.frameLimit = frames
	}
}

// WithSimulatedResizeAt schedules a recommended size change after the given frame completes.
func WithSimulatedResizeAt(frame, width, height int) SimulatedOption {
	return func(s *simulatedImpl) {
		s.resizes[frame] = [2]int{width, height}
	}
}

// WithSimulatedLogger sets the logger.
func WithSimulatedLogger(logger *zap.Logger) SimulatedOption {
	return func(s *simulatedImpl) {
		s.logger = logger
	}
}

var _ Simulated = &simulatedImpl{}

// NewSimulated creates a simulated compositor. Defaults model a 90 Hz headset recommending
// 1512x1680 per eye with a steady scene.
//
// Parameters:
//   - options: functional options for the compositor
//
// Returns:
//   - Simulated: the compositor
func NewSimulated(options ...SimulatedOption) Simulated {
	s := &simulatedImpl{
		mu:            &sync.Mutex{},
		logger:        zap.NewNop(),
		width:         1512,
		height:        1680,
		frameDuration: time.Second / 90,
		profile:       LoadSteady,
		rng:           rand.New(rand.NewPCG(1, 2)),
		noise:         0.05,
		baseCost:      2 * time.Millisecond,
		pixelCost:     0.95,
		resizes:       make(map[int][2]int),
		events:        NewEventQueue(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// msaaCost is the relative shading cost of a sample count.
func msaaCost(samples int) float64 {
	switch {
	case samples >= 16:
		return 2.2
	case samples >= 8:
		return 1.6
	case samples >= 4:
		return 1.3
	case samples >= 2:
		return 1.15
	default:
		return 1
	}
}

func (s *simulatedImpl) FrameTiming() (FrameTiming, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timing == nil {
		return FrameTiming{}, ErrTimingUnavailable
	}
	if s.gapEvery > 0 && s.frame%s.gapEvery == 0 {
		return FrameTiming{}, ErrTimingUnavailable
	}
	return *s.timing, nil
}

func (s *simulatedImpl) RecommendedRenderTargetSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *simulatedImpl) DisplayFrameDuration() time.Duration {
	return s.frameDuration
}

func (s *simulatedImpl) Submit(eye Eye, view gpu.TextureView, bounds Bounds) error {
	if eye != EyeLeft && eye != EyeRight {
		return fmt.Errorf("%w: %s", ErrInvalidSubmission, eye)
	}
	if view == nil || view.Released() {
		return fmt.Errorf("%w: %s eye view is released", ErrInvalidSubmission, eye)
	}
	if err := bounds.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions++
	s.last[eye] = &Submission{
		Frame:   s.frame,
		Eye:     eye,
		Texture: view.Texture().Descriptor().Label,
		Layer:   view.Layer(),
		Bounds:  bounds,
	}
	return nil
}

func (s *simulatedImpl) SetForceInterleavedReprojection(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reprojected = force
}

func (s *simulatedImpl) ReportWorkload(w Workload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workload = w
	s.hasWorkload = true
}

// WaitFrame closes the current frame: it turns the reported workload into the timing the next
// FrameTiming call returns, then applies scheduled resizes and the frame limit.
func (s *simulatedImpl) WaitFrame() error {
	s.mu.Lock()

	budget := s.frameDuration
	if s.reprojected {
		budget *= 2
	}
	if s.hasWorkload {
		cost := s.frameCost()
		dropped := 0
		if cost > budget {
			dropped = int(math.Ceil(float64(cost)/float64(budget))) - 1
		}
		s.timing = &FrameTiming{
			NumDroppedFrames:    dropped,
			ClientFrameInterval: cost,
			PreSubmitGPU:        cost * 85 / 100,
			PostSubmitGPU:       cost * 5 / 100,
			CompositorIdleCPU:   max(budget-cost, 0),
			LowResources:        s.profile.LowResources(s.frame),
		}
		s.hasWorkload = false
	}

	s.frame++
	if size, ok := s.resizes[s.frame]; ok {
		s.width, s.height = size[0], size[1]
		s.events.Push(Event{Kind: EventResolutionChanged, Width: size[0], Height: size[1]})
		s.logger.Info("simulated resolution change", zap.Int("frame", s.frame), zap.Int("width", size[0]), zap.Int("height", size[1]))
	}
	if s.frameLimit > 0 && s.frame >= s.frameLimit && !s.quitSent {
		s.quitSent = true
		s.events.Push(Event{Kind: EventQuit})
	}

	var sleep time.Duration
	if s.realtime {
		now := time.Now()
		if !s.lastWait.IsZero() {
			sleep = budget - now.Sub(s.lastWait)
		}
		s.lastWait = now.Add(max(sleep, 0))
	}
	s.mu.Unlock()

	if sleep > 0 {
		time.Sleep(sleep)
	}
	return nil
}

// frameCost models the GPU time of the reported workload. Callers hold mu.
func (s *simulatedImpl) frameCost() time.Duration {
	weighted := float64(s.workload.Pixels) * float64(len(Eyes)) * msaaCost(s.workload.Samples)
	cost := float64(s.baseCost) + weighted*s.pixelCost
	cost *= s.profile.Multiplier(s.frame)
	if s.noise > 0 {
		cost *= 1 + s.noise*(2*s.rng.Float64()-1)
	}
	return time.Duration(cost)
}

func (s *simulatedImpl) PollEvent() (Event, bool) {
	return s.events.Poll()
}

func (s *simulatedImpl) ChangeResolution(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.events.Push(Event{Kind: EventResolutionChanged, Width: width, Height: height})
}

func (s *simulatedImpl) Frame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *simulatedImpl) SubmissionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions
}

func (s *simulatedImpl) LastSubmission(eye Eye) (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eye != EyeLeft && eye != EyeRight || s.last[eye] == nil {
		return Submission{}, false
	}
	return *s.last[eye], true
}

func (s *simulatedImpl) ForcedReprojection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reprojected
}
