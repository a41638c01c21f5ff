package quantity

import (
	"errors"
	"fmt"
)

// ErrUnknown is returned when a key does not name a quantity in the table.
var ErrUnknown = errors.New("unknown quantity")

// Side is the preferred side of a quantity's y-axis.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// RGB is an opaque colour.
type RGB struct {
	R, G, B uint8
}

// Descriptor holds the static display metadata for one measured body metric.
type Descriptor struct {
	Key       string // CSV column header in the scale export
	Label     string
	ColorName string
	Color     RGB
	Side      Side
	Column    string // column name in the scratch database
}

// Quantity indexes the descriptor table.
type Quantity int

const (
	Mass Quantity = iota
	BMI
	BodyFat
	Water
	Muscles
	Bones

	Count int = iota
)

var table = [Count]Descriptor{
	Mass:    {Key: "kg", Label: "Total Mass [kg]", ColorName: "black", Color: RGB{0, 0, 0}, Side: Left, Column: "mass_kg"},
	BMI:     {Key: "BMI", Label: "BMI", ColorName: "orange", Color: RGB{255, 165, 0}, Side: Right, Column: "bmi"},
	BodyFat: {Key: "Body fat", Label: "Body Fat %", ColorName: "green", Color: RGB{0, 128, 0}, Side: Right, Column: "body_fat_pct"},
	Water:   {Key: "Water", Label: "Water Mass [kg]", ColorName: "blue", Color: RGB{0, 0, 255}, Side: Left, Column: "water_kg"},
	Muscles: {Key: "Muscles", Label: "Muscle Mass [kg]", ColorName: "red", Color: RGB{255, 0, 0}, Side: Left, Column: "muscle_kg"},
	Bones:   {Key: "Bones", Label: "Bone Mass [kg]", ColorName: "grey", Color: RGB{128, 128, 128}, Side: Right, Column: "bone_kg"},
}

// All returns every quantity in table order.
func All() []Quantity {
	qs := make([]Quantity, Count)
	for i := range qs {
		qs[i] = Quantity(i)
	}
	return qs
}

// Descriptor returns the display metadata for q.
func (q Quantity) Descriptor() Descriptor {
	return table[q]
}

func (q Quantity) Key() string   { return table[q].Key }
func (q Quantity) Label() string { return table[q].Label }

func (q Quantity) String() string {
	if !q.Valid() {
		return fmt.Sprintf("Quantity(%d)", int(q))
	}
	return table[q].Key
}

// Valid reports whether q indexes the table.
func (q Quantity) Valid() bool {
	return q >= 0 && int(q) < Count
}

// MarshalText encodes a quantity as its export key.
func (q Quantity) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(q))
	}
	return []byte(table[q].Key), nil
}

// UnmarshalText decodes an export key.
func (q *Quantity) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Parse looks a quantity up by its export key.
func Parse(key string) (Quantity, error) {
	for i, d := range table {
		if d.Key == key {
			return Quantity(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, key)
}

// ParseList parses keys in order, rejecting unknown keys and duplicates.
func ParseList(keys []string) ([]Quantity, error) {
	seen := make(map[Quantity]bool, len(keys))
	qs := make([]Quantity, 0, len(keys))
	for _, k := range keys {
		q, err := Parse(k)
		if err != nil {
			return nil, err
		}
		if seen[q] {
			return nil, fmt.Errorf("duplicate quantity %q", k)
		}
		seen[q] = true
		qs = append(qs, q)
	}
	return qs, nil
}

// Validate checks the descriptor table for consistency. Called once at startup.
func Validate() error {
	keys := map[string]bool{}
	labels := map[string]bool{}
	columns := map[string]bool{}
	for i, d := range table {
		if d.Key == "" || d.Label == "" || d.Column == "" {
			return fmt.Errorf("quantity %d: key, label and column are required", i)
		}
		if d.Side != Left && d.Side != Right {
			return fmt.Errorf("quantity %q: invalid axis side %q", d.Key, d.Side)
		}
		if keys[d.Key] {
			return fmt.Errorf("quantity %q: duplicate key", d.Key)
		}
		if labels[d.Label] {
			return fmt.Errorf("quantity %q: duplicate label %q", d.Key, d.Label)
		}
		if columns[d.Column] {
			return fmt.Errorf("quantity %q: duplicate column %q", d.Key, d.Column)
		}
		keys[d.Key], labels[d.Label], columns[d.Column] = true, true, true
	}
	return nil
}

// RGBA formats the quantity colour with the given alpha as a CSS colour.
func (c RGB) RGBA(alpha float64) string {
	return fmt.Sprintf("rgba(%d,%d,%d,%.2f)", c.R, c.G, c.B, alpha)
}

// Hex formats the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Info is the public description of a quantity served to clients.
type Info struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
	Hex   string `json:"hex"`
	Side  Side   `json:"side"`
}

// Info returns the client-facing description of q.
func (q Quantity) Info() Info {
	d := table[q]
	return Info{Key: d.Key, Label: d.Label, Color: d.ColorName, Hex: d.Color.Hex(), Side: d.Side}
}

// Catalog lists every quantity in table order.
func Catalog() []Info {
	infos := make([]Info, 0, Count)
	for _, q := range All() {
		infos = append(infos, q.Info())
	}
	return infos
}
