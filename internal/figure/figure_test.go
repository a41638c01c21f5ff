package figure

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/claude/scaledash/internal/quantity"
	"github.com/claude/scaledash/internal/store"
	"github.com/claude/scaledash/internal/timescale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(t time.Time, vals map[quantity.Quantity]float64) store.Measurement {
	m := store.NewMeasurement(t)
	for q, v := range vals {
		m.Values[q] = v
	}
	return m
}

func january() (*store.Memory, timescale.Scale) {
	var rows []store.Measurement
	for d := 1; d <= 31; d++ {
		rows = append(rows, reading(time.Date(2021, 1, d, 7, 0, 0, 0, time.UTC), map[quantity.Quantity]float64{
			quantity.Mass:    80 - float64(d)/10,
			quantity.BodyFat: 20 + float64(d%5),
			quantity.Water:   55,
			quantity.BMI:     24 + float64(d%3)/10,
		}))
	}
	st := store.NewMemory(rows)
	first, last, _ := st.Bounds(context.Background())
	return st, timescale.New(first, last, st.Len())
}

func TestOneAxisPerQuantity(t *testing.T) {
	st, scale := january()
	qs := []quantity.Quantity{quantity.Mass, quantity.BodyFat, quantity.Water, quantity.BMI}

	fig, err := Build(context.Background(), st, scale, Options{Quantities: qs})
	require.NoError(t, err)
	require.Len(t, fig.Layout.YAxes, len(qs))
	require.Len(t, fig.Data, len(qs))

	seen := map[string]bool{}
	for i, tr := range fig.Data {
		assert.False(t, seen[tr.YAxis], "axis %s used twice", tr.YAxis)
		seen[tr.YAxis] = true
		assert.Equal(t, qs[i], tr.Quantity)
		assert.Equal(t, qs[i], fig.Layout.YAxes[i].Quantity)
	}

	axes := fig.Layout.YAxes
	assert.Empty(t, axes[0].Overlaying)
	assert.Equal(t, "y", axes[1].Overlaying)
	// left: kg at 0, Water at 0.15; right: Body fat at 1, BMI at 0.85
	assert.InDelta(t, 0.0, axes[0].Position, 1e-12)
	assert.InDelta(t, 1.0, axes[1].Position, 1e-12)
	assert.InDelta(t, 0.15, axes[2].Position, 1e-12)
	assert.InDelta(t, 0.85, axes[3].Position, 1e-12)
	assert.InDelta(t, 0.15, fig.Layout.XAxis.Domain[0], 1e-12)
	assert.InDelta(t, 0.85, fig.Layout.XAxis.Domain[1], 1e-12)
	assert.Equal(t, "rgba(0,128,0,0.25)", axes[1].GridColor)
}

func TestRunningMeanAddsOneTracePerQuantity(t *testing.T) {
	st, scale := january()
	qs := []quantity.Quantity{quantity.Mass, quantity.BodyFat}

	fig, err := Build(context.Background(), st, scale, Options{Quantities: qs, RunningMean: 7})
	require.NoError(t, err)
	require.Len(t, fig.Data, 2*len(qs))

	var means int
	for _, tr := range fig.Data {
		if tr.RunningMean {
			means++
			assert.Equal(t, "lines", tr.Mode)
			assert.Len(t, tr.X, 31)
		}
	}
	assert.Equal(t, len(qs), means)
	assert.Len(t, fig.Layout.YAxes, len(qs))
}

func TestFullRangeReproducesExtent(t *testing.T) {
	st, scale := january()
	fig, err := Build(context.Background(), st, scale, Options{Quantities: []quantity.Quantity{quantity.Mass, quantity.BodyFat}})
	require.NoError(t, err)

	want := map[quantity.Quantity][2]float64{
		quantity.Mass:    {76.9, 79.9},
		quantity.BodyFat: {20, 24},
	}
	for _, ax := range fig.Layout.YAxes {
		require.Len(t, ax.Range, 2)
		assert.False(t, ax.AutoRange)
		got := timescale.Unpad(timescale.Range{Low: ax.Range[0], High: ax.Range[1]})
		assert.InDelta(t, want[ax.Quantity][0], got.Low, 1e-9, "%s low", ax.Quantity)
		assert.InDelta(t, want[ax.Quantity][1], got.High, 1e-9, "%s high", ax.Quantity)
	}

	assert.False(t, fig.Layout.XAxis.AutoRange)
	r, ok := ReadRange(fig, scale)
	require.True(t, ok)
	assert.InDelta(t, 0, r.Low, 1e-6)
	assert.InDelta(t, 100, r.High, 1e-6)
}

// TestFirstHalfOfJanuary covers two readings where the left half of the span
// holds a single value, so the mass axis falls back to the whole series.
func TestFirstHalfOfJanuary(t *testing.T) {
	jan1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)
	st := store.NewMemory([]store.Measurement{
		reading(jan1, map[quantity.Quantity]float64{quantity.Mass: 80}),
		reading(jan31, map[quantity.Quantity]float64{quantity.Mass: 78}),
	})
	scale := timescale.New(jan1, jan31, 2)
	ctx := context.Background()

	fig, err := Build(ctx, st, scale, Options{Quantities: []quantity.Quantity{quantity.Mass}})
	require.NoError(t, err)
	require.NoError(t, ApplyRange(ctx, fig, scale, st, timescale.Range{Low: 0, High: 50}))

	xr := fig.Layout.XAxis.Range
	require.NotNil(t, xr)
	padding := time.Duration(float64(15*24*time.Hour) * timescale.PadFraction)
	assert.WithinDuration(t, jan1.Add(-padding), xr[0], time.Second)
	assert.WithinDuration(t, time.Date(2021, 1, 16, 0, 0, 0, 0, time.UTC).Add(padding), xr[1], time.Second)

	y := fig.Layout.YAxes[0].Range
	require.Len(t, y, 2)
	assert.InDelta(t, 78-0.063*2, y[0], 1e-9)
	assert.InDelta(t, 80+0.063*2, y[1], 1e-9)

	r, ok := ReadRange(fig, scale)
	require.True(t, ok)
	assert.InDelta(t, 0, r.Low, 1e-6)
	assert.InDelta(t, 50, r.High, 1e-6)
}

func TestDegenerateAxes(t *testing.T) {
	st, scale := january()
	ctx := context.Background()
	fig, err := Build(ctx, st, scale, Options{Quantities: []quantity.Quantity{quantity.Water, quantity.Bones}})
	require.NoError(t, err)

	// constant series: widened by one each way before padding
	water := fig.Layout.YAxes[0]
	require.Len(t, water.Range, 2)
	got := timescale.Unpad(timescale.Range{Low: water.Range[0], High: water.Range[1]})
	assert.InDelta(t, 54, got.Low, 1e-9)
	assert.InDelta(t, 56, got.High, 1e-9)

	// no values at all: autorange
	bones := fig.Layout.YAxes[1]
	assert.Nil(t, bones.Range)
	assert.True(t, bones.AutoRange)
}

func TestEmptyStore(t *testing.T) {
	st := store.NewMemory(nil)
	scale := timescale.New(time.Time{}, time.Time{}, 0)
	fig, err := Build(context.Background(), st, scale, Options{Quantities: []quantity.Quantity{quantity.Mass}, RunningMean: 7})
	require.NoError(t, err)
	require.Len(t, fig.Data, 2)
	assert.Empty(t, fig.Data[0].X)
	assert.True(t, fig.Layout.YAxes[0].AutoRange)
	require.NotNil(t, fig.Layout.XAxis.Range)
	assert.True(t, fig.Layout.XAxis.Range[0].Before(timescale.Epoch))
}

func TestDailyMeans(t *testing.T) {
	at := func(d, h int) time.Time { return time.Date(2021, 1, d, h, 0, 0, 0, time.UTC) }
	days, means := DailyMeans([]store.Point{
		{Time: at(1, 7), Value: 80},
		{Time: at(1, 19), Value: 81},
		{Time: at(4, 7), Value: 79},
	})
	require.Len(t, days, 4)
	assert.Equal(t, at(1, 0), days[0])
	assert.Equal(t, at(4, 0), days[3])
	assert.Equal(t, 80.5, means[0])
	assert.True(t, math.IsNaN(means[1]))
	assert.True(t, math.IsNaN(means[2]))
	assert.Equal(t, 79.0, means[3])
}

func TestRollingMean(t *testing.T) {
	nan := math.NaN()
	in := []float64{1, 2, nan, 4, 5}

	// odd window: [i-1, i+1]
	got := RollingMean(in, 3)
	assert.InDeltaSlice(t, []float64{1.5, 1.5, 3, 4.5, 4.5}, []float64(got), 1e-12)

	// even window: [i-2, i+1]
	got = RollingMean(in, 4)
	assert.InDeltaSlice(t, []float64{1.5, 1.5, 7.0 / 3, 11.0 / 3, 4.5}, []float64(got), 1e-12)

	// window of one keeps gaps
	got = RollingMean(in, 1)
	assert.True(t, math.IsNaN(got[2]))
	assert.Equal(t, 4.0, got[3])
}

func TestMarshalLayout(t *testing.T) {
	st, scale := january()
	fig, err := Build(context.Background(), st, scale, Options{Quantities: []quantity.Quantity{quantity.Mass, quantity.BMI}, RunningMean: 3})
	require.NoError(t, err)

	b, err := json.Marshal(fig)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	var data []map[string]any
	require.NoError(t, json.Unmarshal(raw["data"], &data))
	var layout map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["layout"], &layout))

	assert.Contains(t, layout, "yaxis")
	assert.Contains(t, layout, "yaxis2")
	assert.NotContains(t, layout, "yaxis3")
	assert.Contains(t, layout, "uirevision")
	assert.JSONEq(t, `"x unified"`, string(layout["hovermode"]))
	assert.Equal(t, "y2", data[2]["yaxis"])
	assert.Equal(t, "2021-01-01 07:00:00", data[0]["x"].([]any)[0])
}

func TestValuesMarshalNaN(t *testing.T) {
	b, err := json.Marshal(Values{1.5, math.NaN(), 80})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,null,80]`, string(b))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2021, 1, 16, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{"2021-01-16 12:30", "2021-01-16 12:30:00.000", "2021-01-16T12:30:00Z"} {
		got, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseDate("soon")
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	st, scale := january()
	ctx := context.Background()
	fig, err := Build(ctx, st, scale, Options{Quantities: []quantity.Quantity{quantity.Mass}})
	require.NoError(t, err)

	c := fig.Clone()
	require.NoError(t, ApplyRange(ctx, fig, scale, st, timescale.Range{Low: 10, High: 20}))

	r, _ := ReadRange(c, scale)
	assert.InDelta(t, 100, r.High, 1e-6)
	assert.NotEqual(t, fig.Layout.YAxes[0].Range, c.Layout.YAxes[0].Range)
}
