package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/transport/observer"
)

func TestLatestSnapshotPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"900.snap.zst", "3000.snap.zst", "junk.snap.zst", "6000.txt"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := latestSnapshot(dir); filepath.Base(got) != "3000.snap.zst" {
		t.Fatalf("latest=%q", got)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir latest=%q", got)
	}
}

func TestWriteMetrics(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	f := factory.New(factory.Config{ID: "plant_9"}, cats)
	if _, err := f.CreateMachine("generator_1", "generator"); err != nil {
		t.Fatal(err)
	}
	f.AdvanceSimulation(0.2)

	var buf bytes.Buffer
	writeMetrics(&buf, f, observer.NewServer(f, nil, observer.Options{}), nil)
	out := buf.String()
	for _, want := range []string{
		`logisim_factory_tick{factory="plant_9"} 1`,
		`logisim_factory_machines{factory="plant_9"} 1`,
		`logisim_observer_sessions{factory="plant_9"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "logisim_index_") {
		t.Fatalf("index metrics written without an index")
	}
}

func TestOpenRuntimeIndexDisabled(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("idx=%v err=%v", idx, err)
	}
	t.Setenv("LS_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}
