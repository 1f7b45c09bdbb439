package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_TuningYAML(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tu.FactoryID != "plant_1" || tu.TickRateHz != 5 || tu.Workers != 4 {
		t.Fatalf("unexpected tuning: %+v", tu)
	}
	if got := tu.DT(); got != 0.2 {
		t.Fatalf("dt: got %v want 0.2", got)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu != Defaults() {
		t.Fatalf("got %+v want defaults", tu)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("workers: 8\ndt_override: 0.25\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Workers != 8 || tu.TickRateHz != 5 || tu.DT() != 0.25 {
		t.Fatalf("unexpected tuning: %+v", tu)
	}
}

func TestLoad_RejectsBadRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for tick_rate_hz=0")
	}
}
