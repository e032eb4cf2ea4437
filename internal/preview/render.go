package preview

import (
	"fmt"
	"strings"

	styles "github.com/charmbracelet/lipgloss"
	"github.com/logvision/backend/internal/view"
)

var (
	warnStyle  = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	valueStyle = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "0", Dark: "15"})
)

// Header is the one-line summary above the charts.
func Header(snap *view.Snapshot) string {
	parts := []string{titleStyle.Render(string(snap.State))}
	switch {
	case snap.State == view.StateLoading:
		parts = append(parts, fmt.Sprintf("%s %.0f%%", snap.Progress.Status, snap.Progress.Percent))
	case snap.State.HasSeries():
		st := snap.Stats
		parts = append(parts, fmt.Sprintf("%d of %d points (%s)", st.Displayed, st.Total, formatStride(st.SamplingRate)))
		if st.Segments > 1 {
			parts = append(parts, fmt.Sprintf("segment %d/%d", st.Segment, st.Segments))
		}
		if snap.Domain != nil {
			parts = append(parts, fmt.Sprintf("zoom %s - %s",
				snap.Domain.Start.Format("15:04:05"), snap.Domain.End.Format("15:04:05")))
		}
		parts = append(parts, string(snap.ChartType))
	}
	return strings.Join(parts, borderFg.Render(" | "))
}

// Render draws the whole snapshot: header, one chart per panel with its
// legend, the top categorical values and any warnings.
func Render(snap *view.Snapshot, opts Options) string {
	opts = opts.withDefaults()

	blocks := []string{Header(snap)}
	if snap.State.HasSeries() {
		for _, panel := range snap.Panels {
			signals := snap.PanelSignals(panel.ID)
			blocks = append(blocks,
				Chart(snap.Points, signals, snap.ChartType, opts),
				Legend(signals, opts.Highlight),
			)
		}
		if top := TopValues(snap.Points, snap.Signals, opts); len(top) > 0 {
			blocks = append(blocks, RenderTopValues(top))
		}
	}
	for _, w := range snap.Warnings {
		blocks = append(blocks, warnStyle.Render("WARNING: "+w))
	}
	return styles.JoinVertical(styles.Left, blocks...)
}

// RenderTopValues lists each signal's ranked values with their counts.
func RenderTopValues(top []Summary) string {
	var b strings.Builder
	for i, s := range top {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(titleStyle.Render(s.Signal))
		for rank, v := range s.Values {
			fmt.Fprintf(&b, "\n  #%-2d %s %s", rank+1, valueStyle.Render(v.Value), borderFg.Render(fmt.Sprint(v.Count)))
		}
	}
	return b.String()
}
