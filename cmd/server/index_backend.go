package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"logisim.dev/internal/persistence/indexdb"
	"logisim.dev/internal/persistence/snapshot"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/sim/tuning"
)

type runtimeIndex interface {
	factory.TickLogger
	factory.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

// openRuntimeIndex picks the read-model backend from LS_INDEX_BACKEND
// (sqlite by default). A nil index means indexing is off.
func openRuntimeIndex(factoryDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(factoryDir, "index", "factory.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported LS_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a factory.TickLogger
	b factory.TickLogger
}

func (m multiTickLogger) WriteTick(entry factory.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a factory.AuditLogger
	b factory.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry factory.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
