package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/claude/scaledash/internal/figure"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmptyFigure means the figure has no points to draw.
var ErrEmptyFigure = errors.New("figure has no data to render")

// WritePNG renders fig as a static chart. Left-side quantities share the
// primary y-axis and right-side ones the secondary; axis ranges follow the
// figure's current x window and y ranges.
func WritePNG(w io.Writer, fig *figure.Figure, width, height int) error {
	axisOf := map[string]figure.YAxis{}
	for i, ax := range fig.Layout.YAxes {
		axisOf[figure.AxisID(i)] = ax
	}

	var series []chart.TimeSeries
	var primary, secondary []figure.YAxis
	for _, tr := range fig.Data {
		xs, ys := finitePoints(tr)
		if len(xs) == 0 {
			continue
		}
		d := tr.Quantity.Descriptor()
		col := drawing.Color{R: d.Color.R, G: d.Color.G, B: d.Color.B, A: 255}

		style := pointStyle(col)
		if tr.RunningMean {
			style = lineStyle(col)
		}
		ts := chart.TimeSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: style}
		if d.Side == quantity.Right {
			ts.YAxis = chart.YAxisSecondary
		}
		series = append(series, ts)

		if tr.RunningMean {
			continue
		}
		if d.Side == quantity.Right {
			secondary = append(secondary, axisOf[tr.YAxis])
		} else {
			primary = append(primary, axisOf[tr.YAxis])
		}
	}
	if len(series) == 0 {
		return ErrEmptyFigure
	}
	// go-chart cannot range an empty primary axis.
	if len(primary) == 0 {
		primary, secondary = secondary, nil
		for i := range series {
			series[i].YAxis = chart.YAxisPrimary
		}
	}
	rendered := make([]chart.Series, len(series))
	for i, ts := range series {
		rendered[i] = ts
	}

	ch := chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		YAxis:          chart.YAxis{Name: axisName(primary), Range: unionRange(primary)},
		YAxisSecondary: chart.YAxis{Name: axisName(secondary), Range: unionRange(secondary)},
		Series:         rendered,
	}
	if xr := fig.Layout.XAxis.Range; xr != nil && xr[1].After(xr[0]) {
		ch.XAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(xr[0]),
			Max: chart.TimeToFloat64(xr[1]),
		}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    3,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
	}
}

// finitePoints drops the gaps of a trace; go-chart cannot draw NaN.
func finitePoints(tr figure.Trace) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(tr.X))
	ys := make([]float64, 0, len(tr.Y))
	for i, v := range tr.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, tr.X[i])
		ys = append(ys, v)
	}
	return xs, ys
}

// unionRange covers the explicit ranges of axes. Nil lets go-chart autoscale.
func unionRange(axes []figure.YAxis) chart.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, ax := range axes {
		if len(ax.Range) != 2 {
			return nil
		}
		lo, hi = math.Min(lo, ax.Range[0]), math.Max(hi, ax.Range[1])
	}
	if len(axes) == 0 || !(hi > lo) {
		return nil
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func axisName(axes []figure.YAxis) string {
	if len(axes) == 1 {
		return axes[0].Title.Text
	}
	return ""
}
