package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"logisim.dev/internal/persistence/snapshot"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/sim/tuning"
)

func TestSQLiteIndex_WritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "factory.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}

	_ = idx.WriteTick(factory.TickLogEntry{
		Tick: 0, DT: 0.2, Digest: "d0",
		Ops: []factory.RecordedOp{
			{Op: factory.OpCreate, Machine: 1, Template: "miner_1"},
			{Op: factory.OpConnect, Machine: 1, Target: 2, Item: "ore"},
		},
	})
	_ = idx.WriteTick(factory.TickLogEntry{Tick: 1, DT: 0.2, Digest: "d1", Transfers: 3})
	_ = idx.WriteAudit(factory.AuditEntry{Tick: 1, Actor: "FACTORY", Action: "WARN", Machine: 2, Reason: "short"})
	_ = idx.WriteAudit(factory.AuditEntry{Tick: 1, Actor: "FACTORY", Action: "WARN", Machine: 3, Reason: "short"})
	idx.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, FactoryID: "plant_1", Tick: 2},
		NextID:   3,
		Machines: []snapshot.MachineV1{{ID: 1}, {ID: 2}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	count := func(q string) int {
		t.Helper()
		var n int
		if err := db.QueryRow(q).Scan(&n); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
		return n
	}
	if n := count(`SELECT COUNT(*) FROM ticks`); n != 2 {
		t.Fatalf("ticks=%d want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM ops WHERE tick=0`); n != 2 {
		t.Fatalf("ops=%d want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM audits WHERE tick=1`); n != 2 {
		t.Fatalf("audits=%d want 2", n)
	}
	if n := count(`SELECT transfers FROM ticks WHERE tick=1`); n != 3 {
		t.Fatalf("transfers=%d want 3", n)
	}
	if n := count(`SELECT machines FROM snapshots WHERE tick=2`); n != 2 {
		t.Fatalf("snapshot machines=%d want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM catalogs WHERE name IN ('items','recipes','machines','tuning')`); n != 4 {
		t.Fatalf("catalog rows=%d want 4", n)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: factory.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(factory.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(factory.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestNilIndexIsNoop(t *testing.T) {
	var s *SQLiteIndex
	if err := s.WriteTick(factory.TickLogEntry{}); err != nil {
		t.Fatal(err)
	}
	s.RecordSnapshot("", snapshot.SnapshotV1{})
	if st := s.Stats(); st.QueueCapacity != 0 {
		t.Fatalf("stats=%+v", st)
	}
}
