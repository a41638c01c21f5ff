// Package store holds the ingested measurement rows and answers the window
// queries the dashboard needs.
package store

import (
	"context"
	"math"
	"time"

	"github.com/claude/scaledash/internal/quantity"
)

// Measurement is one scale reading. Missing cells are NaN.
type Measurement struct {
	Time   time.Time
	Values [quantity.Count]float64
}

// NewMeasurement returns a row at t with every value missing.
func NewMeasurement(t time.Time) Measurement {
	m := Measurement{Time: t}
	for i := range m.Values {
		m.Values[i] = math.NaN()
	}
	return m
}

// Value returns the reading for q, NaN when missing.
func (m Measurement) Value(q quantity.Quantity) float64 {
	return m.Values[q]
}

// Point is a single timestamped value of one quantity.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Extent summarizes the values of one quantity inside a window.
type Extent struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// Store is the read side used by the figure builder and the HTTP/MCP surfaces.
// Both *Memory and *SQLite satisfy it.
type Store interface {
	// Len returns the number of rows.
	Len() int
	// Bounds returns the earliest and latest timestamp. Zero times when empty.
	Bounds(ctx context.Context) (first, last time.Time, err error)
	// Series returns the non-missing values of q ordered by time.
	Series(ctx context.Context, q quantity.Quantity) ([]Point, error)
	// Extent summarizes q over the closed interval [from, to].
	Extent(ctx context.Context, q quantity.Quantity, from, to time.Time) (Extent, error)
	// Rows returns all rows in [from, to] ordered by time.
	Rows(ctx context.Context, from, to time.Time) ([]Measurement, error)
	Close() error
}

// Sink receives rows during ingestion.
type Sink interface {
	Append(ctx context.Context, rows []Measurement) error
}

// Compile-time checks.
var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
	_ Sink  = (*Memory)(nil)
	_ Sink  = (*SQLite)(nil)
)
