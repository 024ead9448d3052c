package profiler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Record(quality.FrameStats{
		Level:                   4,
		Utilization:             0.72,
		ActualSupersampling:     0.88,
		Viewport:                quality.Viewport{Width: 100, Height: 50},
		InterleavedReprojection: true,
		AdaptationsUp:           2,
		AdaptationsDown:         1,
		DroppedFrames:           3,
		TelemetryUnavailable:    1,
		FenceWaits:              1,
		FenceWaitAttempts:       5,
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.level))
	assert.Equal(t, 0.72, testutil.ToFloat64(m.utilization))
	assert.Equal(t, 5000.0, testutil.ToFloat64(m.viewportPixels))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reprojecting))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.adaptations.WithLabelValues("up")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.droppedFrames))

	// cumulative totals only add their growth
	m.Record(quality.FrameStats{
		Level:           5,
		AdaptationsUp:   3,
		AdaptationsDown: 1,
		DroppedFrames:   3,
		FenceWaits:      1,
	})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.adaptations.WithLabelValues("up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adaptations.WithLabelValues("down")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.droppedFrames))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.reprojecting))

	// a fresh controller restarts its totals
	m.Record(quality.FrameStats{DroppedFrames: 2})
	assert.Equal(t, 5.0, testutil.ToFloat64(m.droppedFrames))

	expected := `
# HELP oxyvr_quality_level Current adaptive quality level
# TYPE oxyvr_quality_level gauge
oxyvr_quality_level 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "oxyvr_quality_level"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.fenceWaitAttempts))
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Record(quality.FrameStats{Level: 7})

	srv := NewServer(":0", reg)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "oxyvr_quality_level 7")
}
