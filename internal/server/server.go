package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/ingest"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	dash   *dashboard.Controller
	ingest *ingest.Result
	log    *slog.Logger
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(dash *dashboard.Controller, ingestResult *ingest.Result, log *slog.Logger) *Server {
	s := &Server{
		dash:   dash,
		ingest: ingestResult,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/quantities", s.handleQuantities)
		r.Get("/ingest", s.handleIngest)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/summary", s.handleSummary)
		r.Post("/events", s.handleEvent)
		r.Get("/measurements", s.handleMeasurements)
		r.Get("/stats", s.handleStats)
		r.Get("/export.xlsx", s.handleExportXLSX)
		r.Get("/figure.png", s.handleFigurePNG)
	})
}

// SetMCP mounts the MCP streamable HTTP endpoint at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Handle("/mcp", h)
}

// SetFrontend mounts the embedded SPA filesystem.
// Unmatched routes serve index.html.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
