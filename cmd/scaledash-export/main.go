package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/scaledash/internal/config"
	"github.com/claude/scaledash/internal/dashboard"
	"github.com/claude/scaledash/internal/export"
	"github.com/claude/scaledash/internal/ingest"
	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/timescale"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dataPath := flag.String("data", "", "path to the scale's CSV export (overrides config)")
	out := flag.String("out", "", "output file, .xlsx or .png (required)")
	startStr := flag.String("start", "", "window start (YYYY-MM-DD), defaults to the first reading")
	endStr := flag.String("end", "", "window end (YYYY-MM-DD), defaults to the last reading")
	quantities := flag.String("quantities", "", "comma-separated quantity keys for the chart (overrides config)")
	width := flag.Int("width", 1200, "PNG width in pixels")
	height := flag.Int("height", 600, "PNG height in pixels")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("scaledash-export", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *out == "" {
		fmt.Fprintf(os.Stderr, "Usage: scaledash-export -out chart.png|readings.xlsx [-data export.csv] [-start YYYY-MM-DD] [-end YYYY-MM-DD]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}

	opts := options{
		out:    *out,
		start:  *startStr,
		end:    *endStr,
		width:  *width,
		height: *height,
	}
	if *quantities != "" {
		opts.quantities = strings.Split(*quantities, ",")
	}

	if err := run(context.Background(), cfg, opts, log); err != nil {
		log.Error("export failed", "error", err)
		os.Exit(1)
	}
	log.Info("export complete", "path", *out)
}

type options struct {
	out           string
	start, end    string
	quantities    []string
	width, height int
}

// run writes the export described by opts. The output file is removed on
// failure and the store is always closed.
func run(ctx context.Context, cfg *config.Config, opts options, log *slog.Logger) error {
	settings := dashboard.Settings{
		Quantities: cfg.Quantities(),
		RunningMean: dashboard.RunningMean{
			Enabled: cfg.Dashboard.RunningMean.Enabled,
			Days:    cfg.Dashboard.RunningMean.Days,
		},
	}
	if len(opts.quantities) > 0 {
		qs, err := quantity.ParseList(opts.quantities)
		if err != nil {
			return fmt.Errorf("invalid quantities: %w", err)
		}
		settings.Quantities = qs
	}

	st, res, err := ingest.Load(ctx, cfg.Data.Path, ingest.Options{
		Heavy:      cfg.Storage.Heavy,
		ScratchDir: cfg.Storage.ScratchDir,
	}, log)
	if err != nil {
		return fmt.Errorf("loading export %s: %w", cfg.Data.Path, err)
	}
	defer st.Close()
	log.Info("export loaded", "path", cfg.Data.Path, "rows", res.RowsInserted)

	dash, err := dashboard.New(ctx, st, settings, log)
	if err != nil {
		return fmt.Errorf("building dashboard: %w", err)
	}

	if opts.start != "" || opts.end != "" {
		r, err := window(dash.Scale(), opts.start, opts.end)
		if err != nil {
			return fmt.Errorf("invalid window: %w", err)
		}
		if _, err := dash.Dispatch(ctx, dashboard.Event{Type: dashboard.EventTimeRange, Range: &r}); err != nil {
			return fmt.Errorf("applying window: %w", err)
		}
	}

	ext := strings.ToLower(filepath.Ext(opts.out))
	if ext != ".xlsx" && ext != ".png" {
		return fmt.Errorf("unsupported output type %q", filepath.Ext(opts.out))
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	switch ext {
	case ".xlsx":
		from, to := dash.Window()
		rows, qerr := st.Rows(ctx, from, to)
		if qerr != nil {
			err = qerr
			break
		}
		log.Info("writing spreadsheet", "rows", len(rows))
		err = export.WriteXLSX(f, rows)
	case ".png":
		err = export.WritePNG(f, dash.Figure(), opts.width, opts.height)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(opts.out)
		return err
	}
	return nil
}

// window converts optional YYYY-MM-DD bounds into a slider range. The end
// date is inclusive.
func window(scale timescale.Scale, startStr, endStr string) (timescale.Range, error) {
	r := timescale.Full
	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return r, fmt.Errorf("start: %w", err)
		}
		r.Low = scale.ToPercent(t)
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return r, fmt.Errorf("end: %w", err)
		}
		r.High = scale.ToPercent(t.Add(24*time.Hour - time.Nanosecond))
	}
	if r.Low > r.High {
		return r, fmt.Errorf("start %s is after end %s", startStr, endStr)
	}
	return r.Clamp(), nil
}
