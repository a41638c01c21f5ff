package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/scaledash"
	"github.com/claude/scaledash/internal/config"
	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/ingest"
	"github.com/claude/scaledash/internal/mcp"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/server"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dataPath := flag.String("data", "", "path to the scale's CSV export (overrides config)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("scaledash", Version)
		return
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}

	level, _ := cfg.SlogLevel()
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log.Info("scaledash starting", "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("scaledash failed", "error", err)
		stop()
		os.Exit(1)
	}
	log.Info("server stopped")
}

// run serves the dashboard until ctx is cancelled. Every resource it opens is
// released before it returns.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := quantity.Validate(); err != nil {
		return fmt.Errorf("quantity table invalid: %w", err)
	}

	// Ingest the export
	st, res, err := ingest.Load(ctx, cfg.Data.Path, ingest.Options{
		Heavy:      cfg.Storage.Heavy,
		ScratchDir: cfg.Storage.ScratchDir,
	}, log)
	if err != nil {
		return fmt.Errorf("loading export %s: %w", cfg.Data.Path, err)
	}
	defer st.Close()
	log.Info("export loaded",
		"path", cfg.Data.Path,
		"strategy", res.Strategy,
		"sections", res.Sections,
		"rows", res.RowsInserted,
		"missing_columns", res.MissingColumns,
	)

	dash, err := dashboard.New(ctx, st, dashboard.Settings{
		Quantities: cfg.Quantities(),
		RunningMean: dashboard.RunningMean{
			Enabled: cfg.Dashboard.RunningMean.Enabled,
			Days:    cfg.Dashboard.RunningMean.Days,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("building dashboard: %w", err)
	}

	// Create server
	srv := server.New(dash, res, log)

	mcpSrv := mcp.New(mcp.NewLocal(dash), Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	// Serve embedded frontend
	webFS, err := fs.Sub(scaledash.WebFS, "web")
	if err != nil {
		return fmt.Errorf("loading embedded frontend: %w", err)
	}
	srv.SetFrontend(webFS)

	// Start server, tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
			Logf:     func(format string, args ...any) { log.Debug(fmt.Sprintf(format, args...)) },
		}
		if err := tsServer.Start(); err != nil {
			return fmt.Errorf("tsnet start: %w", err)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			return fmt.Errorf("tsnet listen: %w", err)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := cfg.Addr()
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
