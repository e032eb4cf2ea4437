// Package preview renders view snapshots for terminals: braille charts of
// the visible signals per panel and a ranking of the most frequent
// categorical values.
package preview

import (
	"fmt"
	"strings"
	"time"

	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
	"github.com/logvision/backend/internal/models"
)

// Options controls the rendered size and the top value window.
type Options struct {
	Width  int
	Height int
	TopK   int
	// Tick is the bucket width of the top value window and Window its
	// length in ticks.
	Tick   time.Duration
	Window int
	// Highlight is the ID of the signal drawn on top in the highlight colour.
	Highlight string
}

// DefaultOptions returns an 80x16 chart with a one minute top-5 window.
func DefaultOptions() Options {
	return Options{
		Width:  80,
		Height: 16,
		TopK:   5,
		Tick:   time.Second,
		Window: 60,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.Tick <= 0 {
		o.Tick = d.Tick
	}
	if o.Window <= 0 {
		o.Window = d.Window
	}
	return o
}

var (
	borderColor = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	borderFg    = styles.NewStyle().Foreground(borderColor)
	titleStyle  = styles.NewStyle().Bold(true)
	chartStyle  = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

// Series returns one column per key. A point without a value for a key
// repeats the previous value, or 0 before the first one.
func Series(points []models.FlatPoint, keys []string) [][]float64 {
	out := make([][]float64, len(keys))
	for i, k := range keys {
		col := make([]float64, len(points))
		var last float64
		for j, p := range points {
			if v, ok := p.Values[k]; ok {
				last = v
			}
			col[j] = last
		}
		out[i] = col
	}
	return out
}

// steps doubles every sample so the line is drawn as flat bars.
func steps(col []float64) []float64 {
	out := make([]float64, 0, 2*len(col))
	for _, v := range col {
		out = append(out, v, v)
	}
	return out
}

// Chart draws the visible signals of one panel. The highlighted signal is
// drawn last so it stays on top.
func Chart(points []models.FlatPoint, signals []models.Signal, chartType models.ChartType, opts Options) string {
	opts = opts.withDefaults()

	var drawn []models.Signal
	var highlighted *models.Signal
	for i := range signals {
		switch {
		case !signals[i].Visible:
		case signals[i].ID == opts.Highlight:
			highlighted = &signals[i]
		default:
			drawn = append(drawn, signals[i])
		}
	}
	if highlighted != nil {
		drawn = append(drawn, *highlighted)
	}
	if len(points) == 0 || len(drawn) == 0 {
		return chartStyle.Render(blank(opts.Width, opts.Height))
	}

	keys := make([]string, len(drawn))
	for i, s := range drawn {
		keys[i] = s.Name
	}
	data := Series(points, keys)
	for i := range data {
		if chartType == models.ChartTypeBar {
			data[i] = steps(data[i])
		}
		if len(data[i]) == 1 {
			data[i] = append(data[i], data[i][0])
		}
	}

	highlight, dim := plot.Red, plot.DimGray
	if !styles.DefaultRenderer().HasDarkBackground() {
		highlight, dim = plot.Black, plot.LightGray
	}
	colors := make([]plot.Color, len(data))
	for i := range colors {
		colors[i] = dim
	}
	if highlighted != nil || len(data) == 1 {
		colors[len(colors)-1] = highlight
	}

	canvas := plot.NewCanvas(opts.Width, opts.Height)
	canvas.NumDataPoints = len(data[0])
	canvas.ShowAxis = false
	canvas.LineColors = colors
	canvas.Fill(data)

	body := canvas.String()
	if body == "" {
		body = blank(opts.Width, opts.Height)
	}
	labels := timeLabels(points[0].Time(), points[len(points)-1].Time(), opts.Width)
	return chartStyle.Render(styles.JoinVertical(styles.Left, body, labels))
}

func blank(w, h int) string {
	line := strings.Repeat(" ", w)
	rows := make([]string, h)
	for i := range rows {
		rows[i] = line
	}
	return strings.Join(rows, "\n")
}

// timeLabels spreads the first and last timestamp across width.
func timeLabels(start, end time.Time, width int) string {
	layout := "15:04:05"
	if end.Sub(start) >= 24*time.Hour {
		layout = "01-02 15:04"
	}
	left, right := start.Format(layout), end.Format(layout)
	gap := width - len(left) - len(right)
	if gap < 1 {
		return borderFg.Render(left)
	}
	return borderFg.Render(left + strings.Repeat(" ", gap) + right)
}

// Legend lists visible signals in their palette colours.
func Legend(signals []models.Signal, highlight string) string {
	var parts []string
	for _, s := range signals {
		if !s.Visible {
			continue
		}
		style := styles.NewStyle().Foreground(styles.Color(s.Color))
		name := s.Name
		if s.ID == highlight {
			name = titleStyle.Render(name)
		}
		parts = append(parts, style.Render("■")+" "+name)
	}
	if len(parts) == 0 {
		return borderFg.Render("no visible signals")
	}
	return strings.Join(parts, "  ")
}

func formatStride(rate int) string {
	if rate <= 1 {
		return "all points"
	}
	return fmt.Sprintf("every %d", rate)
}
