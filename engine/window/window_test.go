package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineWindowOptions(t *testing.T) {
	tests := []struct {
		name      string
		options   []WindowBuilderOption
		expWidth  int
		expHeight int
		expTitle  string
	}{
		{
			name:      "defaults",
			expWidth:  1512,
			expHeight: 840,
			expTitle:  "oxy-vr mirror",
		},
		{
			name:      "explicit size and title",
			options:   []WindowBuilderOption{WithTitle("bench"), WithSize(1024, 576)},
			expWidth:  1024,
			expHeight: 576,
			expTitle:  "bench",
		},
		{
			name:      "empty title and zero size keep defaults",
			options:   []WindowBuilderOption{WithTitle(""), WithSize(0, -1)},
			expWidth:  1512,
			expHeight: 840,
			expTitle:  "oxy-vr mirror",
		},
		{
			name:      "inverted limits collapse to the minimum",
			options:   []WindowBuilderOption{WithSizeLimits(1000, 500, 400, 200)},
			expWidth:  1000,
			expHeight: 500,
			expTitle:  "oxy-vr mirror",
		},
		{
			name:      "size clamped to limits",
			options:   []WindowBuilderOption{WithSize(100, 5000), WithSizeLimits(320, 180, 3840, 1200)},
			expWidth:  320,
			expHeight: 1200,
			expTitle:  "oxy-vr mirror",
		},
		{
			name:      "custom minimums",
			options:   []WindowBuilderOption{WithSizeLimits(800, 600, 3840, 2160), WithSize(640, 480)},
			expWidth:  800,
			expHeight: 600,
			expTitle:  "oxy-vr mirror",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newEngineWindow(tt.options...)
			assert.Equal(t, tt.expWidth, w.Width())
			assert.Equal(t, tt.expHeight, w.Height())
			assert.Equal(t, tt.expTitle, w.title)
			assert.False(t, w.IsRunning(), "no platform window")
		})
	}
}

func TestCloseCallbackRunsOnce(t *testing.T) {
	w := newEngineWindow()
	calls := 0
	w.SetCloseCallback(func() { calls++ })

	w.notifyClose()
	w.notifyClose()
	// the loop exits at once without a platform window
	w.ProcessMessages()

	assert.Equal(t, 1, calls)
}
