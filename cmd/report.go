package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Carmen-Shannon/oxy-vr/common"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/olekukonko/tablewriter"
)

// adaptation is one level change seen during a simulation.
type adaptation struct {
	frame       int
	from        int
	to          int
	reason      quality.Reason
	utilization float64
}

// trajectory accumulates the level a simulation spent each rendered frame at.
type trajectory struct {
	frames      int
	levels      map[int]int
	adaptations []adaptation
	prev        int
	utilSum     float64
	utilFrames  int
}

func newTrajectory(initialLevel int) *trajectory {
	return &trajectory{
		levels: make(map[int]int),
		prev:   initialLevel,
	}
}

// observe records the stats of one rendered frame.
func (t *trajectory) observe(s quality.FrameStats) {
	t.frames++
	t.levels[s.Level]++
	if s.TelemetryAvailable {
		t.utilSum += s.Utilization
		t.utilFrames++
	}
	if s.Adapted {
		t.adaptations = append(t.adaptations, adaptation{
			frame:       s.Frame,
			from:        t.prev,
			to:          s.Level,
			reason:      s.LastReason,
			utilization: s.Utilization,
		})
	}
	t.prev = s.Level
}

func (t *trajectory) meanUtilization() float64 {
	if t.utilFrames == 0 {
		return 0
	}
	return t.utilSum / float64(t.utilFrames)
}

// render writes the level histogram, the adaptation log (at most maxLog rows, the latest kept)
// and a summary of the final controller state.
func (t *trajectory) render(w io.Writer, table quality.Table, final quality.FrameStats, maxLog int) error {
	fmt.Fprintf(w, "Level histogram (%d rendered frames)\n", t.frames)
	hist := tablewriter.NewWriter(w)
	hist.Header("Level", "Frames", "Share")
	for level := range table.Len() {
		n := t.levels[level]
		share := 0.0
		if t.frames > 0 {
			share = float64(n) / float64(t.frames) * 100
		}
		if err := hist.Append([]string{strconv.Itoa(level), strconv.Itoa(n), fmt.Sprintf("%.1f %%", share)}); err != nil {
			return fmt.Errorf("failed to append histogram row: %w", err)
		}
	}
	if err := hist.Render(); err != nil {
		return fmt.Errorf("failed to render histogram: %w", err)
	}

	log := t.adaptations
	if maxLog >= 0 && len(log) > maxLog {
		log = log[len(log)-maxLog:]
	}
	fmt.Fprintf(w, "\nAdaptations (%d total, showing %d)\n", len(t.adaptations), len(log))
	adapt := tablewriter.NewWriter(w)
	adapt.Header("Frame", "From", "To", "Reason", "Utilization")
	for _, a := range log {
		if err := adapt.Append([]string{
			strconv.Itoa(a.frame),
			strconv.Itoa(a.from),
			strconv.Itoa(a.to),
			a.reason.String(),
			fmt.Sprintf("%.3f", a.utilization),
		}); err != nil {
			return fmt.Errorf("failed to append adaptation row: %w", err)
		}
	}
	if err := adapt.Render(); err != nil {
		return fmt.Errorf("failed to render adaptations: %w", err)
	}

	fmt.Fprintln(w, "\nSummary")
	summary := tablewriter.NewWriter(w)
	rows := [][]string{
		{"Final level", strconv.Itoa(final.Level)},
		{"Actual supersampling", fmt.Sprintf("%.3f", final.ActualSupersampling)},
		{"Viewport", fmt.Sprintf("%dx%d", final.Viewport.Width, final.Viewport.Height)},
		{"Mean utilization", fmt.Sprintf("%.3f", t.meanUtilization())},
		{"Adaptations up/down", fmt.Sprintf("%d/%d", final.AdaptationsUp, final.AdaptationsDown)},
		{"Dropped frames", strconv.Itoa(final.DroppedFrames)},
		{"Telemetry unavailable", strconv.Itoa(final.TelemetryUnavailable)},
		{"Submit errors", strconv.Itoa(final.SubmitErrors)},
	}
	for _, row := range rows {
		if err := summary.Append(row); err != nil {
			return fmt.Errorf("failed to append summary row: %w", err)
		}
	}
	return summary.Render()
}

// renderLevels writes the quality table with the supersampling and per-eye viewport every level
// derives for the given recommended size and desired supersampling.
func renderLevels(w io.Writer, table quality.Table, recommendedW, recommendedH int, desired float64) error {
	desired = common.Clamp(desired, quality.MinDesiredSupersampling, table.GlobalMaxSupersampling())

	out := tablewriter.NewWriter(w)
	out.Header("Level", "Render target", "MSAA", "Scale", "Supersampling", "Viewport", "Reprojection")
	for i, level := range table.Levels {
		meta := table.Meta(i)
		ss := quality.ActualSupersampling(level, meta, desired)
		vp := quality.DeriveViewport(recommendedW, recommendedH, ss)
		if err := out.Append([]string{
			strconv.Itoa(i),
			strconv.Itoa(level.RenderTargetIndex),
			fmt.Sprintf("%dx", meta.MSAALevel),
			fmt.Sprintf("%.2f", level.ResolutionScale),
			fmt.Sprintf("%.3f", ss),
			fmt.Sprintf("%dx%d", vp.Width, vp.Height),
			strconv.FormatBool(level.ForceInterleavedReprojection),
		}); err != nil {
			return fmt.Errorf("failed to append level %d: %w", i, err)
		}
	}
	return out.Render()
}
