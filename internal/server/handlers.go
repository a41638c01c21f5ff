package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/export"
	"github.com/claude/scaledash/internal/quantity"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultPNGWidth  = 1200
	defaultPNGHeight = 600
)

func (s *Server) handleQuantities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, quantity.Catalog())
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no ingest result"})
		return
	}
	writeJSON(w, http.StatusOK, s.ingest)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Summary())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev dashboard.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	update, err := s.dash.Dispatch(r.Context(), ev)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownEvent) || errors.Is(err, dashboard.ErrInvalidEvent) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("event error", "type", ev.Type, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	st := s.dash.Store()
	first, last, err := st.Bounds(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	start, end, err := parseTimeRange(r, first, last)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := st.Rows(r.Context(), start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("quantity")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity parameter required"})
		return
	}
	q, err := quantity.Parse(key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Defaults to the window currently shown on the chart.
	from, to := s.dash.Window()
	start, end, err := parseTimeRange(r, from, to)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	extent, err := s.dash.Store().Extent(r.Context(), q, start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quantity": q,
		"start":    start,
		"end":      end,
		"stats":    extent,
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	from, to := s.dash.Window()
	start, end, err := parseTimeRange(r, from, to)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := s.dash.Store().Rows(r.Context(), start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows); err != nil {
		s.log.Error("xlsx export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="scaledash.xlsx"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleFigurePNG(w http.ResponseWriter, r *http.Request) {
	width, err := intParam(r, "width", defaultPNGWidth)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	height, err := intParam(r, "height", defaultPNGHeight)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := export.WritePNG(&buf, s.dash.Figure(), width, height); err != nil {
		if errors.Is(err, export.ErrEmptyFigure) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("png export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 10000 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

// parseTimeRange reads start/end as RFC3339 or YYYY-MM-DD. A date-only end
// covers the whole day. Missing values fall back to defStart and defEnd.
func parseTimeRange(r *http.Request, defStart, defEnd time.Time) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	start, end = defStart, defEnd
	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			start, err = time.Parse("2006-01-02", startStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
	}

	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return start, end, nil
}
