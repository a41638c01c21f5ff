package quantity

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestValidate verifies the built-in descriptor table passes its own startup checks.
func TestValidate(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

// TestParse verifies lookup by export column header.
func TestParse(t *testing.T) {
	q, err := Parse("Body fat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != BodyFat {
		t.Errorf("Parse(Body fat) = %v, want BodyFat", q)
	}
	if q.Label() != "Body Fat %" {
		t.Errorf("label = %q", q.Label())
	}

	if _, err := Parse("Height"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Parse(Height) error = %v, want ErrUnknown", err)
	}
}

// TestParseListRejectsDuplicates verifies a selection cannot name a quantity twice,
// which would produce two axes for one series.
func TestParseListRejectsDuplicates(t *testing.T) {
	if _, err := ParseList([]string{"kg", "BMI", "kg"}); err == nil {
		t.Fatal("expected error for duplicate key")
	}
	qs, err := ParseList([]string{"Bones", "kg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 || qs[0] != Bones || qs[1] != Mass {
		t.Errorf("ParseList = %v, want [Bones kg]", qs)
	}
}

// TestJSONRoundTrip verifies quantities travel as their export keys.
func TestJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal([]Quantity{Mass, Water})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["kg","Water"]` {
		t.Errorf("json = %s", data)
	}
	var got []Quantity
	if err := json.Unmarshal([]byte(`["Muscles"]`), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != Muscles {
		t.Errorf("decoded = %v", got)
	}
}

func TestRGBA(t *testing.T) {
	if got := Water.Descriptor().Color.RGBA(0.25); got != "rgba(0,0,255,0.25)" {
		t.Errorf("RGBA = %q", got)
	}
	if got := BMI.Descriptor().Color.Hex(); got != "#ffa500" {
		t.Errorf("Hex = %q", got)
	}
}

// TestCatalog verifies the client-facing table keeps table order and colours.
func TestCatalog(t *testing.T) {
	c := Catalog()
	if len(c) != Count {
		t.Fatalf("catalog length = %d, want %d", len(c), Count)
	}
	if c[0].Key != "kg" || c[0].Side != Left {
		t.Errorf("first entry = %+v", c[0])
	}
	if c[1].Hex != "#ffa500" {
		t.Errorf("BMI hex = %q, want #ffa500", c[1].Hex)
	}
}
