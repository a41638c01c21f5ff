package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/timescale"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to first and last.
// A date-only end covers the whole day.
func defaultTimeRange(startStr, endStr string, first, last time.Time) (time.Time, time.Time, error) {
	start, end := first, last
	var err error

	if endStr != "" {
		var dateOnly bool
		end, dateOnly, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	}

	if startStr != "" {
		start, _, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	return start, end, nil
}

func parseFlexTime(s string) (t time.Time, dateOnly bool, err error) {
	t, err = time.Parse(time.RFC3339, s)
	if err == nil {
		return t, false, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, true, nil
	}
	return time.Time{}, false, err
}

// --- Tool definitions ---

var toolListQuantities = mcp.NewTool("list_quantities",
	mcp.WithDescription("List the plottable quantities with their keys, labels, colors and y-axis side."),
)

var toolGetMeasurements = mcp.NewTool("get_measurements",
	mcp.WithDescription("Retrieve raw scale readings ordered by time. Each reading has a timestamp and the values present for that weigh-in; missing values are omitted."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to the first reading.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to the last reading.")),
)

var toolGetWindowStats = mcp.NewTool("get_window_stats",
	mcp.WithDescription("Get statistics (min, max, mean, median, stddev, count) of one quantity over a time window."),
	mcp.WithString("quantity", mcp.Required(), mcp.Description("Quantity key (kg, BMI, Body fat, Water, Muscles, Bones)"),
		mcp.Enum("kg", "BMI", "Body fat", "Water", "Muscles", "Bones")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to the first reading.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to the last reading.")),
)

var toolGetDashboardState = mcp.NewTool("get_dashboard_state",
	mcp.WithDescription("Describe what the dashboard currently shows: selected quantities, running-mean setting, visible time window and y-axis ranges."),
)

var toolSetTimeRange = mcp.NewTool("set_time_range",
	mcp.WithDescription("Move the dashboard's visible time window, as if the time-range slider were dragged. Give either start/end dates or low/high percentages of the dataset span."),
	mcp.WithString("start", mcp.Description("Window start date (ISO 8601 or YYYY-MM-DD)")),
	mcp.WithString("end", mcp.Description("Window end date (ISO 8601 or YYYY-MM-DD)")),
	mcp.WithNumber("low", mcp.Description("Window start as a percentage of the dataset span"), mcp.Min(0), mcp.Max(100)),
	mcp.WithNumber("high", mcp.Description("Window end as a percentage of the dataset span"), mcp.Min(0), mcp.Max(100)),
)

// --- Tool handlers ---

func (h *handlers) listQuantities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := h.ds.Quantities(ctx)
	if err != nil {
		h.log.Error("mcp list_quantities", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(infos)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getMeasurements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.ds.Summary(ctx)
	if err != nil {
		h.log.Error("mcp get_measurements", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), sum.Start, sum.End)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	rows, err := h.ds.Measurements(ctx, start, end)
	if err != nil {
		h.log.Error("mcp get_measurements", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"measurements": rows})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWindowStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("quantity")
	if err != nil {
		return mcp.NewToolResultError("quantity parameter is required"), nil
	}
	q, err := quantity.Parse(key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sum, err := h.ds.Summary(ctx)
	if err != nil {
		h.log.Error("mcp get_window_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), sum.Start, sum.End)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	stats, err := h.ds.WindowStats(ctx, q, start, end)
	if err != nil {
		h.log.Error("mcp get_window_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"quantity": q,
		"start":    start,
		"end":      end,
		"stats":    stats,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDashboardState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.ds.Summary(ctx)
	if err != nil {
		h.log.Error("mcp get_dashboard_state", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sum)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) setTimeRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.ds.Summary(ctx)
	if err != nil {
		h.log.Error("mcp set_time_range", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	r, err := windowFromRequest(req, sum.Start, sum.End, sum.Rows)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sum, err = h.ds.SetTimeRange(ctx, r)
	if err != nil {
		h.log.Error("mcp set_time_range", "error", err)
		return mcp.NewToolResultError("update failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sum)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// windowFromRequest reads the target window as dates when given, otherwise
// as percentages. Missing ends keep the full span.
func windowFromRequest(req mcp.CallToolRequest, first, last time.Time, rows int) (timescale.Range, error) {
	startStr, endStr := req.GetString("start", ""), req.GetString("end", "")
	if startStr == "" && endStr == "" {
		r := timescale.Range{Low: req.GetFloat("low", 0), High: req.GetFloat("high", 100)}
		if r.Low > r.High {
			return timescale.Range{}, errors.New("low must not exceed high")
		}
		return r.Clamp(), nil
	}

	start, end, err := defaultTimeRange(startStr, endStr, first, last)
	if err != nil {
		return timescale.Range{}, errors.New("invalid date format: " + err.Error())
	}
	if end.Before(start) {
		return timescale.Range{}, errors.New("end must not be before start")
	}
	scale := timescale.New(first, last, rows)
	return timescale.Range{Low: scale.ToPercent(start), High: scale.ToPercent(end)}.Clamp(), nil
}
