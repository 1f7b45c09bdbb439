package main

import (
	"path/filepath"
	"testing"

	persistlog "logisim.dev/internal/persistence/log"
	"logisim.dev/internal/persistence/snapshot"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/sim/layout"
)

// record runs the sample layout for ticks ticks, logging every tick and
// snapshotting after snapAt ticks.
func record(t *testing.T, cats *catalogs.Catalogs, dir string, ticks, snapAt int) snapshot.SnapshotV1 {
	t.Helper()
	l, err := layout.Load("../../configs/layout.yaml")
	if err != nil {
		t.Fatalf("load layout: %v", err)
	}
	f := factory.New(factory.Config{Workers: 4}, cats)
	tl := persistlog.NewTickLogger(dir)
	f.SetTickLogger(tl)
	if _, err := l.Apply(f); err != nil {
		t.Fatalf("apply layout: %v", err)
	}

	var snap snapshot.SnapshotV1
	for i := 0; i < ticks; i++ {
		if i == snapAt {
			snap = f.ExportSnapshot()
		}
		if i == snapAt+5 {
			// A mid-run construction op must replay too.
			if err := f.Inject(1, "electricity", 3); err != nil {
				t.Fatalf("inject: %v", err)
			}
		}
		f.AdvanceSimulation(0.25)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	return snap
}

func TestReplayFromScratchAndFromSnapshot(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	dir := t.TempDir()
	snap := record(t, cats, dir, 60, 20)

	files, err := persistlog.Files(filepath.Join(dir, "ticks"), "ticks")
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	fresh := factory.New(factory.Config{Workers: 1}, cats)
	checked, err := replay(fresh, files, 0, 0)
	if err != nil {
		t.Fatalf("replay from scratch: %v", err)
	}
	if checked != 60 || fresh.CurrentTick() != 60 {
		t.Fatalf("checked=%d tick=%d", checked, fresh.CurrentTick())
	}

	resumed := factory.New(factory.Config{Workers: 2}, cats)
	if err := resumed.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	checked, err = replay(resumed, files, 0, 50)
	if err != nil {
		t.Fatalf("replay from snapshot: %v", err)
	}
	if checked != 31 || resumed.CurrentTick() != 51 {
		t.Fatalf("checked=%d tick=%d", checked, resumed.CurrentTick())
	}
}

func TestReplayDetectsDigestMismatch(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	dir := t.TempDir()
	record(t, cats, dir, 10, 0)
	files, _ := persistlog.Files(filepath.Join(dir, "ticks"), "ticks")

	// A different factory id changes every digest.
	other := factory.New(factory.Config{ID: "plant_2"}, cats)
	if _, err := replay(other, files, 0, 0); err == nil {
		t.Fatalf("expected digest mismatch")
	}
}
