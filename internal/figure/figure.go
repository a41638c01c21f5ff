// Package figure builds the dashboard's multi-axis Plotly figure and keeps its
// axis ranges in step with the selected time window.
package figure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
)

// axisStep is the share of the plot width taken by each stacked side axis.
const axisStep = 0.15

// gridAlpha is the opacity of an axis' grid lines.
const gridAlpha = 0.25

// dateLayout is the date string format Plotly reads and writes for date axes.
const dateLayout = "2006-01-02 15:04:05.999999"

// Options selects what the figure shows.
type Options struct {
	Quantities []quantity.Quantity
	// RunningMean is the running-mean window in days; 0 disables it.
	RunningMean int
}

// Figure is a Plotly figure: traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one scatter trace bound to a y-axis.
type Trace struct {
	Type          string `json:"type"`
	Mode          string `json:"mode"`
	Name          string `json:"name"`
	X             Dates  `json:"x"`
	Y             Values `json:"y"`
	HoverTemplate string `json:"hovertemplate,omitempty"`
	HoverInfo     string `json:"hoverinfo,omitempty"`
	Marker        Marker `json:"marker"`
	Line          *Line  `json:"line,omitempty"`
	YAxis         string `json:"yaxis"`

	Quantity    quantity.Quantity `json:"-"`
	RunningMean bool              `json:"-"`
}

type Marker struct {
	Color string `json:"color"`
}

type Line struct {
	Color string `json:"color"`
}

type Font struct {
	Color string `json:"color"`
}

type Title struct {
	Text string `json:"text"`
	Font Font   `json:"font"`
}

// Layout holds the figure layout. Y axes are emitted as yaxis, yaxis2, ...
type Layout struct {
	XAxis      XAxis
	YAxes      []YAxis
	HoverMode  string
	Margin     Margin
	UIRevision string
}

type Margin struct {
	T int `json:"t"`
}

// XAxis is the shared date axis.
type XAxis struct {
	Type      string     `json:"type"`
	Domain    [2]float64 `json:"domain"`
	Range     *DateRange `json:"range,omitempty"`
	AutoRange bool       `json:"autorange"`
}

// YAxis is the value axis of one quantity.
type YAxis struct {
	Title      Title     `json:"title"`
	TickFont   Font      `json:"tickfont"`
	Side       string    `json:"side"`
	Anchor     string    `json:"anchor"`
	Overlaying string    `json:"overlaying,omitempty"`
	Position   float64   `json:"position"`
	ShowGrid   bool      `json:"showgrid"`
	GridColor  string    `json:"gridcolor"`
	GridWidth  int       `json:"gridwidth"`
	ShowSpikes bool      `json:"showspikes"`
	SpikeMode  string    `json:"spikemode"`
	SpikeSnap  string    `json:"spikesnap"`
	Range      []float64 `json:"range,omitempty"`
	AutoRange  bool      `json:"autorange"`

	Quantity quantity.Quantity `json:"-"`
}

// AxisID returns the trace reference of the i-th y-axis: y, y2, y3, ...
func AxisID(i int) string {
	if i == 0 {
		return "y"
	}
	return "y" + strconv.Itoa(i+1)
}

// AxisKey returns the layout key of the i-th y-axis: yaxis, yaxis2, ...
func AxisKey(i int) string {
	if i == 0 {
		return "yaxis"
	}
	return "yaxis" + strconv.Itoa(i+1)
}

func (l Layout) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"xaxis":      l.XAxis,
		"hovermode":  l.HoverMode,
		"margin":     l.Margin,
		"uirevision": l.UIRevision,
	}
	for i, ax := range l.YAxes {
		m[AxisKey(i)] = ax
	}
	return json.Marshal(m)
}

// Dates marshals as Plotly date strings.
type Dates []time.Time

func (d Dates) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, t := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(FormatDate(t))
		buf.WriteByte('"')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// DateRange is an explicit x-axis range.
type DateRange [2]time.Time

func (r DateRange) MarshalJSON() ([]byte, error) {
	return Dates(r[:]).MarshalJSON()
}

// Values marshals NaN as null so gaps survive JSON encoding.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 8*len(v)+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// FormatDate renders t the way Plotly writes dates.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

var parseLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02", time.RFC3339Nano, "2006-01-02T15:04:05"}

// ParseDate reads a date string reported by the chart.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid chart date %q", s)
}

// Build renders one marker trace per quantity, each on its own y-axis, plus a
// running-mean line per quantity when enabled, and applies the full time range.
func Build(ctx context.Context, st store.Store, scale timescale.Scale, opts Options) (*Figure, error) {
	fig := &Figure{
		Layout: Layout{
			HoverMode:  "x unified",
			Margin:     Margin{T: 40},
			UIRevision: uuid.NewString(),
		},
	}

	offset := map[quantity.Side]float64{}
	for i, q := range opts.Quantities {
		d := q.Descriptor()
		points, err := st.Series(ctx, q)
		if err != nil {
			return nil, err
		}

		x := make(Dates, len(points))
		y := make(Values, len(points))
		for j, p := range points {
			x[j], y[j] = p.Time, p.Value
		}
		fig.Data = append(fig.Data, Trace{
			Type:          "scatter",
			Mode:          "markers",
			Name:          d.Label,
			X:             x,
			Y:             y,
			HoverTemplate: "%{y:.1f}",
			Marker:        Marker{Color: d.ColorName},
			YAxis:         AxisID(i),
			Quantity:      q,
		})

		if opts.RunningMean > 0 {
			days, means := DailyMeans(points)
			fig.Data = append(fig.Data, Trace{
				Type:        "scatter",
				Mode:        "lines",
				Name:        d.Label + ", running mean",
				X:           days,
				Y:           RollingMean(means, opts.RunningMean),
				HoverInfo:   "skip",
				Marker:      Marker{Color: d.ColorName},
				Line:        &Line{Color: d.ColorName},
				YAxis:       AxisID(i),
				Quantity:    q,
				RunningMean: true,
			})
		}

		pos := offset[d.Side]
		if d.Side == quantity.Right {
			pos = 1 - pos
		}
		ax := YAxis{
			Title:      Title{Text: d.Label, Font: Font{Color: d.ColorName}},
			TickFont:   Font{Color: d.ColorName},
			Side:       string(d.Side),
			Anchor:     "free",
			Position:   pos,
			ShowGrid:   true,
			GridColor:  d.Color.RGBA(gridAlpha),
			GridWidth:  2,
			ShowSpikes: true,
			SpikeMode:  "across",
			SpikeSnap:  "cursor",
			AutoRange:  true,
			Quantity:   q,
		}
		if i > 0 {
			ax.Overlaying = "y"
		}
		fig.Layout.YAxes = append(fig.Layout.YAxes, ax)
		offset[d.Side] += axisStep
	}

	fig.Layout.XAxis = XAxis{
		Type: "date",
		Domain: [2]float64{
			math.Max(offset[quantity.Left]-axisStep, 0),
			math.Min(1, 1+axisStep-offset[quantity.Right]),
		},
	}

	if err := ApplyRange(ctx, fig, scale, st, timescale.Full); err != nil {
		return nil, err
	}
	return fig, nil
}

// DailyMeans resamples points into calendar days (UTC) from the first to the
// last day, averaging each day's values. Days without readings are NaN.
func DailyMeans(points []store.Point) (Dates, Values) {
	if len(points) == 0 {
		return nil, nil
	}
	first := points[0].Time.UTC().Truncate(24 * time.Hour)
	last := points[len(points)-1].Time.UTC().Truncate(24 * time.Hour)
	n := int(last.Sub(first)/(24*time.Hour)) + 1

	buckets := make([]stats.Float64Data, n)
	for _, p := range points {
		i := int(p.Time.UTC().Truncate(24*time.Hour).Sub(first) / (24 * time.Hour))
		buckets[i] = append(buckets[i], p.Value)
	}

	days := make(Dates, n)
	means := make(Values, n)
	for i, b := range buckets {
		days[i] = first.AddDate(0, 0, i)
		means[i] = mean(b)
	}
	return days, means
}

// RollingMean is a centred moving average of window n with no minimum
// count: position i averages the non-NaN values of
// [i+(n-1)/2-n+1, i+(n-1)/2], and is NaN when that window is empty.
func RollingMean(values []float64, n int) Values {
	if n < 1 {
		n = 1
	}
	out := make(Values, len(values))
	shift := (n - 1) / 2
	window := make(stats.Float64Data, 0, n)
	for i := range values {
		hi := min(i+shift, len(values)-1)
		lo := max(i+shift-n+1, 0)
		window = window[:0]
		for _, v := range values[lo : hi+1] {
			if !math.IsNaN(v) {
				window = append(window, v)
			}
		}
		out[i] = mean(window)
	}
	return out
}

func mean(values stats.Float64Data) float64 {
	m, err := values.Mean()
	if err != nil {
		return math.NaN()
	}
	return m
}

// Clone returns a copy whose layout can be modified independently. Trace data
// is immutable and shared.
func (f *Figure) Clone() *Figure {
	c := &Figure{
		Data:   append([]Trace(nil), f.Data...),
		Layout: f.Layout,
	}
	if f.Layout.XAxis.Range != nil {
		r := *f.Layout.XAxis.Range
		c.Layout.XAxis.Range = &r
	}
	c.Layout.YAxes = make([]YAxis, len(f.Layout.YAxes))
	for i, ax := range f.Layout.YAxes {
		ax.Range = append([]float64(nil), ax.Range...)
		c.Layout.YAxes[i] = ax
	}
	return c
}
