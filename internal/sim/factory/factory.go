package factory

import (
	"io"
	"log"
	"sync/atomic"

	"logisim.dev/internal/persistence/snapshot"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/deferred"
)

type Config struct {
	ID                 string
	TickRateHz         int
	Workers            int
	SnapshotEveryTicks int
	StatusEveryTicks   int

	// DT is the simulated seconds Run advances per tick; 0 means 1/TickRateHz.
	DT float64
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "plant_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.StatusEveryTicks <= 0 {
		c.StatusEveryTicks = 1
	}
}

// Factory is the machine arena plus the tick pipeline. Machine state is owned
// by the goroutine running Run (or by the caller when driven via
// AdvanceSimulation directly); other goroutines go through Do.
type Factory struct {
	cfg      Config
	catalogs *catalogs.Catalogs
	logger   *log.Logger

	tick atomic.Uint64

	// machines[id]; slot 0 is never used and destroyed slots are nil.
	machines []*model.Machine

	pending deferred.Log

	// Per-tick counters filled during log replay.
	transfers int
	warnings  int

	// Construction ops since the last tick, recorded into the next tick log entry.
	ops []RecordedOp

	reqs chan request
	stop chan struct{}

	// Optional sinks (may be nil). Implemented in internal/persistence/* and internal/transport/*.
	tickLogger      TickLogger
	auditLogger     AuditLogger
	snapshotSink    chan<- snapshot.SnapshotV1
	statusPublisher StatusPublisher

	lastReport atomic.Pointer[TickReport]
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// StatusPublisher receives a status frame every StatusEveryTicks ticks. It is
// called on the sim goroutine and must not block.
type StatusPublisher interface {
	PublishStatus(report TickReport, machines []MachineStatus)
}

type TickReport struct {
	Tick      uint64  `json:"tick"`
	DT        float64 `json:"dt"`
	Machines  int     `json:"machines"`
	Transfers int     `json:"transfers"`
	Warnings  int     `json:"warnings"`
	Digest    string  `json:"digest"`
}

type TickLogEntry struct {
	Tick      uint64       `json:"tick"`
	DT        float64      `json:"dt"`
	Ops       []RecordedOp `json:"ops,omitempty"`
	Transfers int          `json:"transfers,omitempty"`
	Warnings  int          `json:"warnings,omitempty"`
	Digest    string       `json:"digest"`
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "CONNECT"
	Machine uint32         `json:"machine,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func New(cfg Config, cats *catalogs.Catalogs) *Factory {
	cfg.applyDefaults()
	return &Factory{
		cfg:      cfg,
		catalogs: cats,
		logger:   log.New(io.Discard, "", 0),
		machines: []*model.Machine{nil},
		reqs:     make(chan request, 64),
		stop:     make(chan struct{}),
	}
}

func (f *Factory) SetLogger(l *log.Logger) {
	if l != nil {
		f.logger = l
	}
}
func (f *Factory) SetTickLogger(l TickLogger)                    { f.tickLogger = l }
func (f *Factory) SetAuditLogger(l AuditLogger)                  { f.auditLogger = l }
func (f *Factory) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { f.snapshotSink = ch }
func (f *Factory) SetStatusPublisher(p StatusPublisher)          { f.statusPublisher = p }

func (f *Factory) ID() string                   { return f.cfg.ID }
func (f *Factory) TickRateHz() int              { return f.cfg.TickRateHz }
func (f *Factory) Config() Config               { return f.cfg }
func (f *Factory) CurrentTick() uint64          { return f.tick.Load() }
func (f *Factory) Catalogs() *catalogs.Catalogs { return f.catalogs }

// LastReport is safe to call from any goroutine.
func (f *Factory) LastReport() (TickReport, bool) {
	r := f.lastReport.Load()
	if r == nil {
		return TickReport{}, false
	}
	return *r, true
}

func (f *Factory) machine(id model.MachineID) *model.Machine {
	if id == model.NoMachine || int(id) >= len(f.machines) {
		return nil
	}
	return f.machines[id]
}

func (f *Factory) liveIDs() []model.MachineID {
	out := make([]model.MachineID, 0, len(f.machines))
	for i, m := range f.machines {
		if m != nil {
			out = append(out, model.MachineID(i))
		}
	}
	return out
}

func (f *Factory) audit(action string, id model.MachineID, reason string, details map[string]any) {
	if f.auditLogger == nil {
		return
	}
	_ = f.auditLogger.WriteAudit(AuditEntry{
		Tick:    f.tick.Load(),
		Actor:   "FACTORY",
		Action:  action,
		Machine: uint32(id),
		Reason:  reason,
		Details: details,
	})
}
