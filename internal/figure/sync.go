package figure

import (
	"context"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
)

// ApplyRange shows the percentage window r: the x-axis gets the padded window
// as absolute times and every y-axis is rescaled to the data inside r.
func ApplyRange(ctx context.Context, fig *Figure, scale timescale.Scale, st store.Store, r timescale.Range) error {
	padded := timescale.Pad(r)
	fig.Layout.XAxis.Range = &DateRange{scale.ToTime(padded.Low), scale.ToTime(padded.High)}
	fig.Layout.XAxis.AutoRange = false
	return RescaleY(ctx, fig, scale, st, r)
}

// RescaleY fits each y-axis to its quantity's values inside the unpadded
// window r, padded like the x-axis. The x-axis is left untouched.
func RescaleY(ctx context.Context, fig *Figure, scale timescale.Scale, st store.Store, r timescale.Range) error {
	from, to := scale.ToTime(r.Low), scale.ToTime(r.High)
	for i := range fig.Layout.YAxes {
		ax := &fig.Layout.YAxes[i]
		lo, hi, ok, err := yExtent(ctx, st, ax.Quantity, scale, from, to)
		if err != nil {
			return err
		}
		if !ok {
			ax.Range = nil
			ax.AutoRange = true
			continue
		}
		p := timescale.Pad(timescale.Range{Low: lo, High: hi})
		ax.Range = []float64{p.Low, p.High}
		ax.AutoRange = false
	}
	return nil
}

// yExtent returns the value range to show for q in [from, to]. A window with
// fewer than two distinct values falls back to the whole series, and a
// constant series is widened by one unit each way. ok is false when q has no
// values at all.
func yExtent(ctx context.Context, st store.Store, q quantity.Quantity, scale timescale.Scale, from, to time.Time) (lo, hi float64, ok bool, err error) {
	e, err := st.Extent(ctx, q, from, to)
	if err != nil {
		return 0, 0, false, err
	}
	if e.Count > 0 && e.Max > e.Min {
		return e.Min, e.Max, true, nil
	}

	full, err := st.Extent(ctx, q, scale.Min(), scale.Max())
	if err != nil {
		return 0, 0, false, err
	}
	switch {
	case full.Count == 0:
		return 0, 0, false, nil
	case full.Max == full.Min:
		return full.Min - 1, full.Max + 1, true, nil
	}
	return full.Min, full.Max, true, nil
}

// ReadRange converts the figure's x-axis back to the unpadded percentage
// window. ok is false while the axis is on autorange.
func ReadRange(fig *Figure, scale timescale.Scale) (r timescale.Range, ok bool) {
	xr := fig.Layout.XAxis.Range
	if xr == nil || fig.Layout.XAxis.AutoRange {
		return timescale.Full, false
	}
	return FromChart(scale, xr[0], xr[1]), true
}

// FromChart converts a padded x-axis range reported by the chart into the
// unpadded percentage window.
func FromChart(scale timescale.Scale, lo, hi time.Time) timescale.Range {
	return timescale.Unpad(timescale.Range{Low: scale.ToPercent(lo), High: scale.ToPercent(hi)})
}
