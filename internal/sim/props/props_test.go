package props

import (
	"encoding/json"
	"testing"
)

func TestParseAndString(t *testing.T) {
	m, err := Parse([]string{"solid", " ORE ", "none", ""})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m != Solid|Ore {
		t.Fatalf("Parse=%v, want SOLID|ORE", m)
	}
	if got := m.String(); got != "SOLID|ORE" {
		t.Fatalf("String=%q", got)
	}
	if None.String() != "NONE" {
		t.Fatalf("None.String=%q", None.String())
	}
	if _, err := Parse([]string{"PLASMA"}); err == nil {
		t.Fatalf("expected unknown property error")
	}
}

func TestHasIsSubsetCheck(t *testing.T) {
	ore := RawMaterial | Solid | Ore
	if !ore.Has(Solid) {
		t.Fatalf("ore should carry SOLID")
	}
	if ore.Has(Solid | Liquid) {
		t.Fatalf("ore should not carry LIQUID")
	}
	if !ore.Has(None) {
		t.Fatalf("every mask carries the empty set")
	}
	if !Satisfies(ore, Solid|Ore) || Satisfies(Solid, Solid|Ore) {
		t.Fatalf("Satisfies mismatch")
	}
}

func TestJSONForms(t *testing.T) {
	var m Mask
	if err := json.Unmarshal([]byte(`["ENERGY","fuel"]`), &m); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if m != Energy|Fuel {
		t.Fatalf("list form=%v", m)
	}
	if err := json.Unmarshal([]byte(`8`), &m); err != nil {
		t.Fatalf("unmarshal int: %v", err)
	}
	if m != Energy {
		t.Fatalf("int form=%v", m)
	}
	b, err := json.Marshal(Solid | Ore)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `["ORE","SOLID"]` {
		t.Fatalf("marshal=%s", b)
	}
}
