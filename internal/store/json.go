package store

import (
	"encoding/json"
	"math"
	"time"

	"github.com/claude/scaledash/internal/quantity"
)

type measurementJSON struct {
	Time   time.Time          `json:"time"`
	Values map[string]float64 `json:"values"`
}

// MarshalJSON encodes the row with its values keyed by export column.
// Missing values are omitted.
func (m Measurement) MarshalJSON() ([]byte, error) {
	out := measurementJSON{Time: m.Time, Values: make(map[string]float64, quantity.Count)}
	for _, q := range quantity.All() {
		if v := m.Values[q]; !math.IsNaN(v) {
			out.Values[q.Key()] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown keys are an error.
func (m *Measurement) UnmarshalJSON(b []byte) error {
	var in measurementJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*m = NewMeasurement(in.Time)
	for key, v := range in.Values {
		q, err := quantity.Parse(key)
		if err != nil {
			return err
		}
		m.Values[q] = v
	}
	return nil
}
