package store

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/montanaflynn/stats"
)

// Memory keeps rows in a time-sorted slice. Used for the light ingestion strategy.
type Memory struct {
	rows []Measurement
}

// NewMemory returns a store holding rows, sorted by time.
func NewMemory(rows []Measurement) *Memory {
	m := &Memory{}
	_ = m.Append(context.Background(), rows)
	return m
}

// Append adds rows and keeps the slice ordered.
func (m *Memory) Append(_ context.Context, rows []Measurement) error {
	m.rows = append(m.rows, rows...)
	sort.SliceStable(m.rows, func(i, j int) bool {
		return m.rows[i].Time.Before(m.rows[j].Time)
	})
	return nil
}

func (m *Memory) Len() int { return len(m.rows) }

func (m *Memory) Bounds(context.Context) (time.Time, time.Time, error) {
	if len(m.rows) == 0 {
		return time.Time{}, time.Time{}, nil
	}
	return m.rows[0].Time, m.rows[len(m.rows)-1].Time, nil
}

func (m *Memory) Series(_ context.Context, q quantity.Quantity) ([]Point, error) {
	points := make([]Point, 0, len(m.rows))
	for _, r := range m.rows {
		if v := r.Value(q); !math.IsNaN(v) {
			points = append(points, Point{Time: r.Time, Value: v})
		}
	}
	return points, nil
}

func (m *Memory) Extent(_ context.Context, q quantity.Quantity, from, to time.Time) (Extent, error) {
	var values stats.Float64Data
	for _, r := range m.window(from, to) {
		if v := r.Value(q); !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	return summarize(values)
}

func (m *Memory) Rows(_ context.Context, from, to time.Time) ([]Measurement, error) {
	w := m.window(from, to)
	out := make([]Measurement, len(w))
	copy(out, w)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// window returns the sub-slice of rows with from <= Time <= to.
func (m *Memory) window(from, to time.Time) []Measurement {
	lo := sort.Search(len(m.rows), func(i int) bool { return !m.rows[i].Time.Before(from) })
	hi := sort.Search(len(m.rows), func(i int) bool { return m.rows[i].Time.After(to) })
	if lo >= hi {
		return nil
	}
	return m.rows[lo:hi]
}

// summarize computes the window statistics; an empty input yields a zero Extent.
func summarize(values stats.Float64Data) (Extent, error) {
	if len(values) == 0 {
		return Extent{}, nil
	}
	e := Extent{Count: len(values)}
	var err error
	if e.Min, err = values.Min(); err != nil {
		return Extent{}, err
	}
	if e.Max, err = values.Max(); err != nil {
		return Extent{}, err
	}
	if e.Mean, err = values.Mean(); err != nil {
		return Extent{}, err
	}
	if e.Median, err = stats.Median(values); err != nil {
		return Extent{}, err
	}
	if len(values) > 1 {
		if e.StdDev, err = stats.StandardDeviationSample(values); err != nil {
			return Extent{}, err
		}
	}
	return e, nil
}
