package mcp

import (
	"context"
	"time"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
)

// DataSource abstracts the dashboard for MCP tools. Both Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Quantities(ctx context.Context) ([]quantity.Info, error)
	Measurements(ctx context.Context, start, end time.Time) ([]store.Measurement, error)
	WindowStats(ctx context.Context, q quantity.Quantity, start, end time.Time) (*store.Extent, error)
	Summary(ctx context.Context) (*dashboard.Summary, error)
	SetTimeRange(ctx context.Context, r timescale.Range) (*dashboard.Summary, error)
}

// Local serves MCP requests straight from a dashboard controller.
type Local struct {
	dash *dashboard.Controller
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal wraps dash as a DataSource.
func NewLocal(dash *dashboard.Controller) *Local {
	return &Local{dash: dash}
}

func (l *Local) Quantities(context.Context) ([]quantity.Info, error) {
	return quantity.Catalog(), nil
}

func (l *Local) Measurements(ctx context.Context, start, end time.Time) ([]store.Measurement, error) {
	return l.dash.Store().Rows(ctx, start, end)
}

func (l *Local) WindowStats(ctx context.Context, q quantity.Quantity, start, end time.Time) (*store.Extent, error) {
	e, err := l.dash.Store().Extent(ctx, q, start, end)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (l *Local) Summary(context.Context) (*dashboard.Summary, error) {
	s := l.dash.Summary()
	return &s, nil
}

// SetTimeRange moves the dashboard window as if the slider had been dragged.
func (l *Local) SetTimeRange(ctx context.Context, r timescale.Range) (*dashboard.Summary, error) {
	if _, err := l.dash.Dispatch(ctx, dashboard.Event{
		Type:   dashboard.EventTimeRange,
		Origin: dashboard.OriginServer,
		Range:  &r,
	}); err != nil {
		return nil, err
	}
	return l.Summary(ctx)
}
