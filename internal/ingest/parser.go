package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
)

// SectionLabel is the line that opens a table of scale readings in the export.
const SectionLabel = "Weight"

var (
	// ErrNoWeightSection means the export contains no "Weight" table.
	ErrNoWeightSection = errors.New("no Weight section in export")
	// ErrMissingColumn means a required header column is absent.
	ErrMissingColumn = errors.New("missing column")
)

// batchSize bounds how many rows are buffered before handing them to the sink.
const batchSize = 500

var (
	dateLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006", "01/02/2006", "2006/01/02"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04:05 PM"}
)

// section is the byte span of one Weight table, header line included.
type section struct {
	offset int64
	length int64
}

// scanSections finds every Weight table in r. A table starts on the line after
// the label and ends before the next blank line or at EOF.
func scanSections(r io.Reader) ([]section, error) {
	br := bufio.NewReader(r)
	var sections []section
	var offset int64
	inSection := false

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			text := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
			switch {
			case !inSection && text == SectionLabel:
				inSection = true
				sections = append(sections, section{offset: offset + int64(len(line))})
			case inSection && text == "":
				inSection = false
			case inSection:
				sections[len(sections)-1].length += int64(len(line))
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scanning export: %w", err)
		}
	}
	return sections, nil
}

// splitSections reads r once and returns the text of every Weight table.
func splitSections(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var sections []string
	var current *strings.Builder

	for scanner.Scan() {
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		switch {
		case current == nil && text == SectionLabel:
			current = &strings.Builder{}
		case current != nil && text == "":
			sections = append(sections, current.String())
			current = nil
		case current != nil:
			current.WriteString(scanner.Text())
			current.WriteByte('\n')
		}
	}
	if current != nil {
		sections = append(sections, current.String())
	}
	return sections, scanner.Err()
}

// columns maps header names to field indexes for one table.
type columns struct {
	date, time int
	values     [quantity.Count]int // -1 when absent
	missing    []string
}

func parseHeader(fields []string) (columns, error) {
	c := columns{date: -1, time: -1}
	for i := range c.values {
		c.values[i] = -1
	}
	for i, f := range fields {
		name := strings.TrimSpace(f)
		switch name {
		case "Date":
			c.date = i
		case "Time":
			c.time = i
		default:
			if q, err := quantity.Parse(name); err == nil {
				c.values[q] = i
			}
		}
	}
	if c.date < 0 {
		return c, fmt.Errorf("%w: Date", ErrMissingColumn)
	}
	if c.time < 0 {
		return c, fmt.Errorf("%w: Time", ErrMissingColumn)
	}
	for _, q := range quantity.All() {
		if c.values[q] < 0 {
			c.missing = append(c.missing, q.Key())
		}
	}
	return c, nil
}

// decoder turns table records into measurements.
type decoder struct {
	layout string // last layout that parsed, tried first
}

// decodeTable reads one table (header + rows) from r and appends rows to sink.
func (d *decoder) decodeTable(ctx context.Context, r io.Reader, sink store.Sink, res *Result, log *slog.Logger) error {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return err
	}
	if len(cols.missing) > 0 {
		log.Warn("Weight section lacks columns, values will be missing", "columns", cols.missing)
		res.addMissing(cols.missing)
	}

	batch := make([]store.Measurement, 0, batchSize)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading row: %w", err)
		}
		if isBlank(record) {
			continue
		}
		res.RowsReceived++

		m, err := d.decodeRow(record, cols)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return fmt.Errorf("section row %d: %w", line, err)
		}
		batch = append(batch, m)

		if len(batch) == batchSize {
			if err := sink.Append(ctx, batch); err != nil {
				return err
			}
			res.RowsInserted += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := sink.Append(ctx, batch); err != nil {
			return err
		}
		res.RowsInserted += len(batch)
	}
	return nil
}

func (d *decoder) decodeRow(record []string, cols columns) (store.Measurement, error) {
	if cols.date >= len(record) || cols.time >= len(record) {
		return store.Measurement{}, fmt.Errorf("%w: short row", ErrMissingColumn)
	}
	ts, err := d.parseTimestamp(record[cols.date], record[cols.time])
	if err != nil {
		return store.Measurement{}, err
	}
	m := store.NewMeasurement(ts)
	for q, idx := range cols.values {
		if idx >= 0 && idx < len(record) {
			m.Values[q] = parseValue(record[idx])
		}
	}
	return m, nil
}

// parseTimestamp combines the Date and Time cells. Layouts are tried in order,
// starting with the last one that matched.
func (d *decoder) parseTimestamp(date, clock string) (time.Time, error) {
	s := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	if d.layout != "" {
		if t, err := time.Parse(d.layout, s); err == nil {
			return t, nil
		}
	}
	for _, dl := range dateLayouts {
		for _, tl := range timeLayouts {
			layout := dl + " " + tl
			if t, err := time.Parse(layout, s); err == nil {
				d.layout = layout
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// parseValue accepts decimal points or commas. Empty or malformed cells are NaN.
func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
