package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestQuantities verifies the catalog round-trips through the REST API.
func TestQuantities(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/quantities": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, quantity.Catalog())
		},
	})
	defer ts.Close()

	infos, err := NewHTTPClient(ts.URL).Quantities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != quantity.Count {
		t.Fatalf("got %d quantities, want %d", len(infos), quantity.Count)
	}
	if infos[2].Key != "Body fat" {
		t.Errorf("key=%q, want 'Body fat'", infos[2].Key)
	}
}

// TestMeasurements verifies the client sends the window and decodes sparse rows.
func TestMeasurements(t *testing.T) {
	at := time.Date(2021, 1, 2, 7, 0, 0, 0, time.UTC)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/measurements": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("start"); got != "2021-01-01T00:00:00Z" {
				t.Errorf("start=%q", got)
			}
			if got := r.URL.Query().Get("end"); got != "2021-01-07T00:00:00Z" {
				t.Errorf("end=%q", got)
			}
			m := store.NewMeasurement(at)
			m.Values[quantity.Mass] = 80.2
			writeTestJSON(t, w, []store.Measurement{m})
		},
	})
	defer ts.Close()

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := NewHTTPClient(ts.URL).Measurements(context.Background(), start, start.AddDate(0, 0, 6))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if got := rows[0].Value(quantity.Mass); got != 80.2 {
		t.Errorf("mass=%v, want 80.2", got)
	}
	if !rows[0].Time.Equal(at) {
		t.Errorf("time=%v, want %v", rows[0].Time, at)
	}
}

// TestWindowStats verifies the quantity key is sent and the stats object unwrapped.
func TestWindowStats(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("quantity"); got != "Body fat" {
				t.Errorf("quantity=%q, want 'Body fat'", got)
			}
			writeTestJSON(t, w, map[string]any{
				"quantity": "Body fat",
				"stats":    store.Extent{Min: 20, Max: 22.5, Mean: 21, Count: 30},
			})
		},
	})
	defer ts.Close()

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	stats, err := NewHTTPClient(ts.URL).WindowStats(context.Background(), quantity.BodyFat, start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 30 {
		t.Errorf("count=%d, want 30", stats.Count)
	}
	if stats.Max != 22.5 {
		t.Errorf("max=%v, want 22.5", stats.Max)
	}
}

// TestSetTimeRange verifies the client posts a server-origin time_range event
// and then reads back the summary.
func TestSetTimeRange(t *testing.T) {
	var posted bool
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/events": func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method=%s, want POST", r.Method)
			}
			var ev dashboard.Event
			if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
				t.Fatal(err)
			}
			if ev.Type != dashboard.EventTimeRange || ev.Origin != dashboard.OriginServer {
				t.Errorf("event = %s/%s, want time_range/server", ev.Type, ev.Origin)
			}
			if ev.Range == nil || ev.Range.High != 40 {
				t.Errorf("range = %+v, want high 40", ev.Range)
			}
			posted = true
			writeTestJSON(t, w, dashboard.Update{Origin: ev.Origin, Changed: true})
		},
		"/api/v1/dashboard/summary": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, dashboard.Summary{
				Quantities: []quantity.Quantity{quantity.Mass},
				Range:      timescale.Range{Low: 10, High: 40},
				Rows:       31,
			})
		},
	})
	defer ts.Close()

	sum, err := NewHTTPClient(ts.URL).SetTimeRange(context.Background(), timescale.Range{Low: 10, High: 40})
	if err != nil {
		t.Fatal(err)
	}
	if !posted {
		t.Error("event was not posted")
	}
	if sum.Range.High != 40 || sum.Rows != 31 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Quantities) != 1 || sum.Quantities[0] != quantity.Mass {
		t.Errorf("quantities = %v, want [kg]", sum.Quantities)
	}
}

// TestHTTPClientServerError verifies the client returns an error on non-200 responses.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/dashboard/summary": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).Summary(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want status code", err)
	}
}
