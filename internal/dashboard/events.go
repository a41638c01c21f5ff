package dashboard

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/claude/scaledash/internal/figure"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/timescale"
)

// EventType names a UI input.
type EventType string

const (
	EventQuantities  EventType = "quantities"
	EventRunningMean EventType = "running_mean"
	EventTimeRange   EventType = "time_range"
	EventRelayout    EventType = "relayout"
)

// Origin tags where a change came from, so the UI can apply an update without
// feeding it back as a new event.
type Origin string

const (
	OriginControl Origin = "control"
	OriginSlider  Origin = "slider"
	OriginChart   Origin = "chart"
	OriginServer  Origin = "server"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginControl, OriginSlider, OriginChart, OriginServer:
		return true
	}
	return false
}

var defaultOrigin = map[EventType]Origin{
	EventQuantities:  OriginControl,
	EventRunningMean: OriginControl,
	EventTimeRange:   OriginSlider,
	EventRelayout:    OriginChart,
}

// Event is one UI input. Only the payload field matching Type is read.
type Event struct {
	Type   EventType `json:"type"`
	Origin Origin    `json:"origin,omitempty"`

	Quantities  []quantity.Quantity `json:"quantities,omitempty"`
	RunningMean *RunningMeanChange  `json:"running_mean,omitempty"`
	Range       *timescale.Range    `json:"range,omitempty"`
	// Relayout is the chart's relayout data, e.g. {"xaxis.range[0]": "2021-01-03 10:00"}.
	Relayout map[string]any `json:"relayout,omitempty"`
}

// RunningMeanChange is the state of the running-mean toggle and slider.
// Days, when set, takes precedence over the slider position.
type RunningMeanChange struct {
	Enabled  bool `json:"enabled"`
	Position int  `json:"position"`
	Days     int  `json:"days,omitempty"`
}

type handler func(c *Controller, ctx context.Context, ev Event) (Update, error)

var handlers = map[EventType]handler{
	EventQuantities:  (*Controller).onQuantities,
	EventRunningMean: (*Controller).onRunningMean,
	EventTimeRange:   (*Controller).onTimeRange,
	EventRelayout:    (*Controller).onRelayout,
}

func (c *Controller) onQuantities(ctx context.Context, ev Event) (Update, error) {
	for i, q := range ev.Quantities {
		if !q.Valid() {
			return Update{}, fmt.Errorf("%w: %w", ErrInvalidEvent, quantity.ErrUnknown)
		}
		if slices.Contains(ev.Quantities[:i], q) {
			return Update{}, fmt.Errorf("%w: duplicate quantity %q", ErrInvalidEvent, q)
		}
	}
	c.state.Quantities = slices.Clone(ev.Quantities)
	return c.redraw(ctx)
}

func (c *Controller) onRunningMean(ctx context.Context, ev Event) (Update, error) {
	if ev.RunningMean == nil {
		return Update{}, fmt.Errorf("%w: running_mean payload required", ErrInvalidEvent)
	}
	days := SliderDays(ev.RunningMean.Position)
	if ev.RunningMean.Days > 0 {
		days = min(ev.RunningMean.Days, MaxRunningMean)
	}
	c.state.RunningMean = RunningMean{Enabled: ev.RunningMean.Enabled, Days: days}
	return c.redraw(ctx)
}

// onTimeRange reapplies the slider window unless the chart already shows it.
func (c *Controller) onTimeRange(ctx context.Context, ev Event) (Update, error) {
	if ev.Range == nil {
		return Update{}, fmt.Errorf("%w: range payload required", ErrInvalidEvent)
	}
	r := ev.Range.Clamp()
	current, ok := figure.ReadRange(c.state.Figure, c.scale)
	if !ok {
		current = c.state.Range
	}
	if r.Equal(current, rangeTolerance) {
		return Update{}, nil
	}
	if err := figure.ApplyRange(ctx, c.state.Figure, c.scale, c.st, r); err != nil {
		return Update{}, err
	}
	c.state.Range = r
	return Update{Changed: true, Figure: c.state.Figure}, nil
}

// onRelayout follows pan, zoom and reset on the chart. Autosize and
// unrelated relayouts only echo the current window back to the slider.
func (c *Controller) onRelayout(ctx context.Context, ev Event) (Update, error) {
	data := ev.Relayout
	if _, autosize := data["autosize"]; len(data) == 0 || autosize {
		return c.echo(), nil
	}

	if _, reset := data["xaxis.autorange"]; reset {
		r := timescale.Full
		if err := figure.ApplyRange(ctx, c.state.Figure, c.scale, c.st, r); err != nil {
			return Update{}, err
		}
		c.state.Range = r
		return Update{Changed: true, Figure: c.state.Figure, Range: &r}, nil
	}

	lo, hi, ok, err := relayoutRange(data)
	if err != nil {
		return Update{}, err
	}
	if !ok {
		return c.echo(), nil
	}

	r := figure.FromChart(c.scale, lo, hi)
	if ev.Origin == OriginChart && r.Equal(c.state.Range, rangeTolerance) {
		return Update{}, nil
	}

	// The chart keeps the x range it reported; only the y-axes follow.
	c.state.Figure.Layout.XAxis.Range = &figure.DateRange{lo, hi}
	c.state.Figure.Layout.XAxis.AutoRange = false
	if err := figure.RescaleY(ctx, c.state.Figure, c.scale, c.st, r); err != nil {
		return Update{}, err
	}
	c.state.Range = r
	slider := r.Clamp()
	return Update{Changed: true, Figure: c.state.Figure, Range: &slider}, nil
}

func (c *Controller) echo() Update {
	r := c.state.Range.Clamp()
	return Update{Range: &r}
}

// redraw rebuilds the figure for the current settings.
func (c *Controller) redraw(ctx context.Context) (Update, error) {
	if err := c.rebuild(ctx); err != nil {
		return Update{}, err
	}
	return Update{Changed: true, Figure: c.state.Figure}, nil
}

// relayoutRange extracts the new x range from relayout data, which carries it
// either as "xaxis.range[0]"/"xaxis.range[1]" or as an "xaxis.range" pair.
func relayoutRange(data map[string]any) (lo, hi time.Time, ok bool, err error) {
	var a, b any
	if pair, found := data["xaxis.range"].([]any); found && len(pair) == 2 {
		a, b = pair[0], pair[1]
	} else {
		var foundA, foundB bool
		a, foundA = data["xaxis.range[0]"]
		b, foundB = data["xaxis.range[1]"]
		if !foundA || !foundB {
			return time.Time{}, time.Time{}, false, nil
		}
	}
	if lo, err = chartDate(a); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if hi, err = chartDate(b); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if hi.Before(lo) {
		lo, hi = hi, lo
	}
	return lo, hi, true, nil
}

func chartDate(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: x range value %v is not a date", ErrInvalidEvent, v)
	}
	t, err := figure.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return t, nil
}
