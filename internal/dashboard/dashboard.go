// Package dashboard holds the application state of the dashboard and applies
// UI events to it through an event-dispatch table.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/scaledash/internal/figure"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
)

var (
	// ErrUnknownEvent means the event type has no handler.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrInvalidEvent means the event payload is missing or malformed.
	ErrInvalidEvent = errors.New("invalid event")
)

// rangeTolerance is how close two percentage windows must be to count as equal.
const rangeTolerance = 1e-6

// sliderMarks is the number of labelled stops on the time-range slider.
const sliderMarks = 6

// RunningMean holds the running-mean settings.
type RunningMean struct {
	Enabled bool `json:"enabled"`
	Days    int  `json:"days"`
}

// Settings are the user-selectable options of the figure.
type Settings struct {
	Quantities  []quantity.Quantity
	RunningMean RunningMean
}

// State is everything the dashboard shows. Owned by a Controller.
type State struct {
	Settings
	// Range is the unpadded percentage window currently shown on the chart.
	Range  timescale.Range
	Figure *figure.Figure
}

// Update is the result of one event. Figure is set when the chart must be
// redrawn and Range when the time-range slider must move.
type Update struct {
	Origin  Origin           `json:"origin"`
	Changed bool             `json:"changed"`
	Figure  *figure.Figure   `json:"figure,omitempty"`
	Range   *timescale.Range `json:"range,omitempty"`
}

// View is a snapshot of the dashboard for rendering the page.
type View struct {
	Quantities        []quantity.Quantity `json:"quantities"`
	RunningMean       RunningMean         `json:"running_mean"`
	RunningMeanSlider Slider              `json:"running_mean_slider"`
	Range             timescale.Range     `json:"range"`
	Marks             []timescale.Mark    `json:"marks"`
	Start             time.Time           `json:"start"`
	End               time.Time           `json:"end"`
	Rows              int                 `json:"rows"`
	Figure            *figure.Figure      `json:"figure"`
}

// Controller serializes events against one State.
type Controller struct {
	st    store.Store
	scale timescale.Scale
	log   *slog.Logger

	// first and last reading; the store does not change after load
	first, last time.Time

	mu    sync.Mutex
	state State
}

// New builds the initial figure for defaults over the full time range.
func New(ctx context.Context, st store.Store, defaults Settings, log *slog.Logger) (*Controller, error) {
	first, last, err := st.Bounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading data bounds: %w", err)
	}
	c := &Controller{
		st:    st,
		scale: timescale.New(first, last, st.Len()),
		log:   log,
		first: first,
		last:  last,
		state: State{Settings: defaults, Range: timescale.Full},
	}
	if err := c.rebuild(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Scale returns the percentage scale of the loaded data.
func (c *Controller) Scale() timescale.Scale { return c.scale }

// Store returns the measurement store behind the dashboard.
func (c *Controller) Store() store.Store { return c.st }

// Dispatch applies ev and reports what the UI must change.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Update, error) {
	h, ok := handlers[ev.Type]
	if !ok {
		return Update{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	if ev.Origin == "" {
		ev.Origin = defaultOrigin[ev.Type]
	}
	if !ev.Origin.Valid() {
		return Update{}, fmt.Errorf("%w: origin %q", ErrInvalidEvent, ev.Origin)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := h(c, ctx, ev)
	if err != nil {
		return Update{}, err
	}
	u.Origin = ev.Origin
	if u.Figure != nil {
		u.Figure = u.Figure.Clone()
	}
	c.log.Debug("event dispatched", "type", ev.Type, "origin", ev.Origin, "changed", u.Changed)
	return u, nil
}

// View returns a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	days := s.RunningMean.Days
	return View{
		Quantities:        append([]quantity.Quantity(nil), s.Quantities...),
		RunningMean:       s.RunningMean,
		RunningMeanSlider: runningMeanSlider(days),
		Range:             s.Range.Clamp(),
		Marks:             c.scale.Marks(sliderMarks),
		Start:             c.first,
		End:               c.last,
		Rows:              c.st.Len(),
		Figure:            s.Figure.Clone(),
	}
}

// Figure returns a copy of the current figure.
func (c *Controller) Figure() *figure.Figure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Figure.Clone()
}

// Window returns the absolute time bounds of the visible, unpadded window.
func (c *Controller) Window() (from, to time.Time) {
	c.mu.Lock()
	r := c.state.Range
	c.mu.Unlock()
	return c.scale.ToTime(r.Low), c.scale.ToTime(r.High)
}

// rebuild redraws the figure from the current settings and reapplies the
// current range. Callers hold mu, except New.
func (c *Controller) rebuild(ctx context.Context) error {
	opts := figure.Options{Quantities: c.state.Quantities}
	if c.state.RunningMean.Enabled {
		opts.RunningMean = c.state.RunningMean.Days
	}
	fig, err := figure.Build(ctx, c.st, c.scale, opts)
	if err != nil {
		return fmt.Errorf("building figure: %w", err)
	}
	if err := figure.ApplyRange(ctx, fig, c.scale, c.st, c.state.Range); err != nil {
		return fmt.Errorf("applying range: %w", err)
	}
	c.state.Figure = fig
	return nil
}

// AxisSummary is the y range currently shown for one quantity.
type AxisSummary struct {
	Quantity  quantity.Quantity `json:"quantity"`
	Range     []float64         `json:"range,omitempty"`
	AutoRange bool              `json:"autorange"`
}

// Summary is a compact, figure-free description of the dashboard.
type Summary struct {
	Quantities  []quantity.Quantity `json:"quantities"`
	RunningMean RunningMean         `json:"running_mean"`
	Range       timescale.Range     `json:"range"`
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
	Rows        int                 `json:"rows"`
	Axes        []AxisSummary       `json:"axes"`
}

// Summary describes the current state without trace data.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	sum := Summary{
		Quantities:  append([]quantity.Quantity(nil), s.Quantities...),
		RunningMean: s.RunningMean,
		Range:       s.Range.Clamp(),
		From:        c.scale.ToTime(s.Range.Low),
		To:          c.scale.ToTime(s.Range.High),
		Start:       c.first,
		End:         c.last,
		Rows:        c.st.Len(),
	}
	for _, ax := range s.Figure.Layout.YAxes {
		sum.Axes = append(sum.Axes, AxisSummary{
			Quantity:  ax.Quantity,
			Range:     append([]float64(nil), ax.Range...),
			AutoRange: ax.AutoRange,
		})
	}
	return sum
}
