package log

import (
	"path/filepath"
	"testing"
	"time"

	"logisim.dev/internal/sim/factory"
)

func TestTickLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	entries := []factory.TickLogEntry{
		{Tick: 0, DT: 0.25, Ops: []factory.RecordedOp{{Op: factory.OpCreate, Machine: 1, Template: "miner_1", Recipe: "miner"}}, Digest: "aa"},
		{Tick: 1, DT: 0.25, Transfers: 2, Digest: "bb"},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := Files(filepath.Join(dir, "ticks"), "ticks")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []factory.TickLogEntry
	if err := ReadFile(files[0], func(e factory.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 || got[0].Ops[0].Template != "miner_1" || got[1].Transfers != 2 || got[1].Digest != "bb" {
		t.Fatalf("got %+v", got)
	}
}

func TestWriterRotatesHourlyAndAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 59, 0, 0, time.UTC)
	w := NewJSONLZstdWriter(dir, "audit")
	w.now = func() time.Time { return now }

	write := func(tick uint64) {
		t.Helper()
		if err := w.Write(factory.AuditEntry{Tick: tick, Actor: "FACTORY", Action: "WARN"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	write(1)
	now = now.Add(2 * time.Minute)
	write(2)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	// Reopening the same hour appends a second zstd frame.
	write(3)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	files, err := Files(dir, "audit")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "audit-2026-01-02-03.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	var ticks []uint64
	for _, path := range files {
		if err := ReadFile(path, func(e factory.AuditEntry) error {
			ticks = append(ticks, e.Tick)
			return nil
		}); err != nil {
			t.Fatalf("ReadFile(%s): %v", path, err)
		}
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[1] != 2 || ticks[2] != 3 {
		t.Fatalf("ticks=%v", ticks)
	}
}
