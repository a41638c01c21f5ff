package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

var jan1 = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func newLocal(t *testing.T) (*Local, *handlers) {
	t.Helper()
	var rows []store.Measurement
	for d := 0; d <= 30; d++ {
		m := store.NewMeasurement(jan1.AddDate(0, 0, d))
		m.Values[quantity.Mass] = 80 - float64(d)/15
		m.Values[quantity.BodyFat] = 22 - float64(d%4)/2
		rows = append(rows, m)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dash, err := dashboard.New(context.Background(), store.NewMemory(rows), dashboard.Settings{
		Quantities: []quantity.Quantity{quantity.Mass},
	}, log)
	if err != nil {
		t.Fatalf("dashboard.New: %v", err)
	}
	l := NewLocal(dash)
	return l, &handlers{ds: l, log: log}
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// TestDefaultTimeRange verifies dates default to the dataset span and parse
// both RFC3339 and YYYY-MM-DD.
func TestDefaultTimeRange(t *testing.T) {
	first := jan1
	last := jan1.AddDate(0, 0, 30)

	start, end, err := defaultTimeRange("", "", first, last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(first) || !end.Equal(last) {
		t.Errorf("defaults = %v..%v, want dataset span", start, end)
	}

	// A date-only end covers the whole day.
	start, end, err = defaultTimeRange("2021-01-05", "2021-01-10", first, last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Day() != 5 || start.Hour() != 0 {
		t.Errorf("start = %v, want 2021-01-05 00:00", start)
	}
	if end.Day() != 10 || end.Hour() != 23 {
		t.Errorf("end = %v, want end of 2021-01-10", end)
	}

	start, _, err = defaultTimeRange("2021-01-15T10:30:00Z", "", first, last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	if _, _, err = defaultTimeRange("not-a-date", "", first, last); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestWindowFromRequest(t *testing.T) {
	first := jan1
	last := jan1.AddDate(0, 0, 30)

	r, err := windowFromRequest(callTool(map[string]any{"low": 10.0, "high": 40.0}), first, last, 31)
	if err != nil {
		t.Fatal(err)
	}
	if r.Low != 10 || r.High != 40 {
		t.Errorf("range = %+v, want 10..40", r)
	}

	r, err = windowFromRequest(callTool(map[string]any{"start": "2021-01-16T00:00:00Z"}), first, last, 31)
	if err != nil {
		t.Fatal(err)
	}
	if r.Low != 50 || r.High != 100 {
		t.Errorf("range = %+v, want 50..100", r)
	}

	if _, err := windowFromRequest(callTool(map[string]any{"low": 60.0, "high": 40.0}), first, last, 31); err == nil {
		t.Error("expected error for reversed percentages")
	}
	if _, err := windowFromRequest(callTool(map[string]any{"start": "2021-01-20", "end": "2021-01-10"}), first, last, 31); err == nil {
		t.Error("expected error for reversed dates")
	}
}

func TestGetWindowStatsTool(t *testing.T) {
	_, h := newLocal(t)

	res, err := h.getWindowStats(context.Background(), callTool(map[string]any{
		"quantity": "kg",
		"start":    "2021-01-01",
		"end":      "2021-01-16",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var got struct {
		Quantity string       `json:"quantity"`
		Stats    store.Extent `json:"stats"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Stats.Count != 16 {
		t.Errorf("count = %d, want 16", got.Stats.Count)
	}
	if got.Stats.Max != 80 || got.Stats.Min != 79 {
		t.Errorf("extent = [%v, %v], want [79, 80]", got.Stats.Min, got.Stats.Max)
	}

	res, _ = h.getWindowStats(context.Background(), callTool(map[string]any{"quantity": "Height"}))
	if !res.IsError {
		t.Error("expected tool error for unknown quantity")
	}
	res, _ = h.getWindowStats(context.Background(), callTool(nil))
	if !res.IsError {
		t.Error("expected tool error for missing quantity")
	}
}

func TestGetMeasurementsTool(t *testing.T) {
	_, h := newLocal(t)

	res, err := h.getMeasurements(context.Background(), callTool(map[string]any{"end": "2021-01-03"}))
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Measurements []store.Measurement `json:"measurements"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Measurements) != 3 {
		t.Errorf("got %d measurements, want 3", len(got.Measurements))
	}
}

func TestSetTimeRangeTool(t *testing.T) {
	l, h := newLocal(t)

	res, err := h.setTimeRange(context.Background(), callTool(map[string]any{"low": 0.0, "high": 50.0}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	sum, err := l.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Range.High != 50 {
		t.Errorf("range high = %v, want 50", sum.Range.High)
	}
	if !sum.To.Equal(jan1.AddDate(0, 0, 15)) {
		t.Errorf("window end = %v, want 2021-01-16", sum.To)
	}
	if len(sum.Axes) != 1 || len(sum.Axes[0].Range) != 2 {
		t.Fatalf("axes = %+v", sum.Axes)
	}
}

func TestNewRegistersTools(t *testing.T) {
	l, _ := newLocal(t)
	s := New(l, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	tools := s.ListTools()
	for _, name := range []string{"list_quantities", "get_measurements", "get_window_stats", "get_dashboard_state", "set_time_range"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}
