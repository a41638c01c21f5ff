// Package timescale maps measurement timestamps onto the 0–100 percentage
// scale used by the dashboard's time-range slider.
package timescale

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// PadFraction matches Plotly's default autoscale padding.
const PadFraction = 0.063

// DefaultWindow is the span used when the dataset has no usable span.
const DefaultWindow = 24 * time.Hour

// Epoch anchors the default window of an empty dataset.
var Epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Scale converts between absolute timestamps and percentages of the dataset span.
type Scale struct {
	min  time.Time
	max  time.Time
	span float64 // nanoseconds, always > 0
}

// New builds a scale from the earliest and latest timestamps of a dataset.
// With n == 0 the scale covers one day from Epoch; a zero span becomes one day
// centred on the single timestamp.
func New(first, last time.Time, n int) Scale {
	switch {
	case n == 0:
		first, last = Epoch, Epoch.Add(DefaultWindow)
	case !last.After(first):
		mid := first
		first, last = mid.Add(-DefaultWindow/2), mid.Add(DefaultWindow/2)
	}
	return Scale{min: first, max: last, span: float64(last.Sub(first))}
}

// Min returns the timestamp at 0 %.
func (s Scale) Min() time.Time { return s.min }

// Max returns the timestamp at 100 %.
func (s Scale) Max() time.Time { return s.max }

// ToPercent returns the position of t on the scale. Values outside the
// dataset span map outside [0,100].
func (s Scale) ToPercent(t time.Time) float64 {
	return float64(t.Sub(s.min)) * 100 / s.span
}

// ToTime is the inverse of ToPercent.
func (s Scale) ToTime(p float64) time.Time {
	return s.min.Add(time.Duration(math.Round(s.span * p / 100)))
}

// Mark is a labelled slider position.
type Mark struct {
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
}

// Marks returns n evenly spaced slider marks from 0 to 100, labelled with dates.
func (s Scale) Marks(n int) []Mark {
	if n < 2 {
		n = 2
	}
	pos := floats.Span(make([]float64, n), 0, 100)
	marks := make([]Mark, n)
	for i, p := range pos {
		marks[i] = Mark{Percent: p, Label: s.ToTime(p).Format("2006-01-02")}
	}
	return marks
}

// Clamp limits p to [0,100].
func Clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}
