package model

import "testing"

func TestTagsSetAndNames(t *testing.T) {
	var tags Tags
	tags.Set(Working, true)
	tags.Set(NotPowered, true)
	tags.Set(NotPowered, false)
	if !tags.Has(Working) || tags.Has(NotPowered) {
		t.Fatalf("tags=%v", tags)
	}
	tags.Set(OutputBufferFull, true)
	if got := tags.String(); got != "WORKING|OUTPUT_BUFFER_FULL" {
		t.Fatalf("String=%q", got)
	}
	if Tags(0).String() != "NONE" {
		t.Fatalf("zero tags=%q", Tags(0).String())
	}
}

func TestMachineTimes(t *testing.T) {
	m := Machine{ProcessingTime: 3, Efficiency: 1.5, Length: 4}
	if got := m.AdjustedTime(); got != 2 {
		t.Fatalf("AdjustedTime=%v, want 2", got)
	}
	if got := m.TransitTime(); got != 12 {
		t.Fatalf("TransitTime=%v, want 12", got)
	}
}

func TestPortReadyAndBound(t *testing.T) {
	p := Port{ID: 1, RefractoryTime: 1, AssignedType: Unassigned}
	if p.Ready() || p.Bound() {
		t.Fatalf("fresh port should be neither ready nor bound")
	}
	p.RefractoryTimer = 1
	p.Connected = 7
	p.AssignedType = 2
	if !p.Ready() || !p.Bound() {
		t.Fatalf("port should be ready and bound: %+v", p)
	}
	m := Machine{Ports: []Port{p}}
	if m.Port(1) == nil || m.Port(2) != nil {
		t.Fatalf("Port lookup mismatch")
	}
}
