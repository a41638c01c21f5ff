package timescale

import "math"

// Range is a pair of percentages denoting the visible window. Low <= High.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Full is the whole dataset span.
var Full = Range{Low: 0, High: 100}

// Clamp limits both ends to [0,100] and swaps a reversed pair.
func (r Range) Clamp() Range {
	lo, hi := Clamp(r.Low), Clamp(r.High)
	if lo > hi {
		lo, hi = hi, lo
	}
	return Range{Low: lo, High: hi}
}

// Width returns High - Low.
func (r Range) Width() float64 { return r.High - r.Low }

// Equal compares ranges within tol on both ends.
func (r Range) Equal(o Range, tol float64) bool {
	return math.Abs(r.Low-o.Low) <= tol && math.Abs(r.High-o.High) <= tol
}

// Pad widens r by PadFraction of its width on both ends.
func Pad(r Range) Range {
	p := PadFraction * r.Width()
	return Range{Low: r.Low - p, High: r.High + p}
}

// Unpad removes the padding added by Pad.
func Unpad(r Range) Range {
	p := PadFraction * r.Width() / (1 + 2*PadFraction)
	return Range{Low: r.Low + p, High: r.High - p}
}
