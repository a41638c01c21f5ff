// Package ingest reads a scale's CSV export and loads its Weight tables into a store.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/claude/scaledash/internal/store"
)

// Options selects the ingestion strategy.
type Options struct {
	// Heavy streams rows from the file into a SQLite scratch store instead of
	// buffering the Weight sections in memory.
	Heavy bool
	// ScratchDir is the parent directory of the scratch store. Empty means os.TempDir().
	ScratchDir string
}

// Result holds the outcome of an ingest operation.
type Result struct {
	Strategy       string   `json:"strategy"`
	Sections       int      `json:"sections"`
	RowsReceived   int      `json:"rows_received"`
	RowsInserted   int      `json:"rows_inserted"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

func (r *Result) addMissing(cols []string) {
	for _, c := range cols {
		if !slices.Contains(r.MissingColumns, c) {
			r.MissingColumns = append(r.MissingColumns, c)
		}
	}
}

// Load opens the export at path and ingests every Weight section.
// A missing file or an export without a Weight section is an error; a Weight
// section without rows yields an empty store.
func Load(ctx context.Context, path string, opts Options, log *slog.Logger) (store.Store, *Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	if opts.Heavy {
		return loadHeavy(ctx, f, opts.ScratchDir, log)
	}

	mem := store.NewMemory(nil)
	res, err := Parse(ctx, f, mem, log)
	if err != nil {
		return nil, nil, err
	}
	return mem, res, nil
}

// Parse reads the export in a single pass, buffering each Weight section before
// decoding it into sink.
func Parse(ctx context.Context, r io.Reader, sink store.Sink, log *slog.Logger) (*Result, error) {
	sections, err := splitSections(r)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	if len(sections) == 0 {
		return nil, ErrNoWeightSection
	}

	res := &Result{Strategy: "memory", Sections: len(sections)}
	var d decoder
	for i, text := range sections {
		if err := d.decodeTable(ctx, strings.NewReader(text), sink, res, log); err != nil {
			return nil, fmt.Errorf("Weight section %d: %w", i+1, err)
		}
	}
	return res, nil
}

// loadHeavy locates the Weight sections by byte offset in a first pass, then
// decodes each one straight from the file into a scratch database.
func loadHeavy(ctx context.Context, f *os.File, scratchDir string, log *slog.Logger) (store.Store, *Result, error) {
	sections, err := scanSections(f)
	if err != nil {
		return nil, nil, err
	}
	if len(sections) == 0 {
		return nil, nil, ErrNoWeightSection
	}

	db, err := store.OpenSQLite(ctx, scratchDir)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Strategy: "sqlite", Sections: len(sections)}
	var d decoder
	for i, s := range sections {
		r := io.NewSectionReader(f, s.offset, s.length)
		if err := d.decodeTable(ctx, r, db, res, log); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("Weight section %d: %w", i+1, err)
		}
	}
	return db, res, nil
}
