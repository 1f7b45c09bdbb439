package factory

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	conveyorruntime "logisim.dev/internal/sim/factory/feature/conveyor/runtime"
	powerruntime "logisim.dev/internal/sim/factory/feature/power/runtime"
	statusruntime "logisim.dev/internal/sim/factory/feature/status/runtime"
	storageruntime "logisim.dev/internal/sim/factory/feature/storage/runtime"
	transferruntime "logisim.dev/internal/sim/factory/feature/transfer/runtime"
	workruntime "logisim.dev/internal/sim/factory/feature/work/runtime"
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/deferred"
	"logisim.dev/internal/sim/factory/logic/matching"
)

type stageFunc func(m *model.Machine, w *deferred.Writer)

// AdvanceSimulation runs the pipeline once. Stage order is fixed; every stage
// ends with a barrier that applies the deferred log before the next begins.
func (f *Factory) AdvanceSimulation(dt float64) TickReport {
	nowTick := f.tick.Load()
	ids := f.liveIDs()
	f.transfers, f.warnings = 0, 0

	room := func(target model.MachineID, p model.Packet) float64 {
		m := f.machine(target)
		if m == nil {
			return 0
		}
		return matching.CapacityAvailable(p, m.Bins)
	}
	lineOps := conveyorruntime.Ops{Room: room}
	portOps := transferruntime.Ops{Room: room}

	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { storageruntime.Aggregate(m) })
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { workruntime.Start(m) })
	f.stage(ids, func(m *model.Machine, w *deferred.Writer) {
		if m.Transporter {
			conveyorruntime.Step(m, dt, lineOps, w)
			return
		}
		workruntime.Advance(m, dt)
	})
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { workruntime.Finish(m) })
	f.stage(ids, func(m *model.Machine, w *deferred.Writer) { transferruntime.Push(m, portOps, w) })
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { transferruntime.Resolve(m) })
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { transferruntime.Cool(m, dt) })
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { powerruntime.UpdateStatus(m, dt) })
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { powerruntime.Consume(m, dt) })
	f.stage(ids, func(m *model.Machine, _ *deferred.Writer) { statusruntime.Derive(m) })

	report := TickReport{
		Tick:      nowTick,
		DT:        dt,
		Machines:  len(ids),
		Transfers: f.transfers,
		Warnings:  f.warnings,
		Digest:    f.stateDigest(nowTick),
	}
	if f.tickLogger != nil {
		entry := TickLogEntry{Tick: nowTick, DT: dt, Ops: f.ops, Transfers: report.Transfers, Warnings: report.Warnings, Digest: report.Digest}
		if err := f.tickLogger.WriteTick(entry); err != nil {
			f.logger.Printf("tick log: %v", err)
		}
	}
	f.ops = nil
	f.tick.Store(nowTick + 1)
	f.lastReport.Store(&report)
	return report
}

// stage runs fn over ids split into contiguous chunks, one errgroup goroutine
// per chunk, then replays the deferred log.
func (f *Factory) stage(ids []model.MachineID, fn stageFunc) {
	workers := f.cfg.Workers
	if workers <= 1 || len(ids) < 2 {
		for _, id := range ids {
			fn(f.machines[id], f.pending.Writer(id))
		}
		f.barrier()
		return
	}

	chunk := (len(ids) + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(ids); start += chunk {
		part := ids[start:min(start+chunk, len(ids))]
		g.Go(func() error {
			for _, id := range part {
				fn(f.machines[id], f.pending.Writer(id))
			}
			return nil
		})
	}
	_ = g.Wait()
	f.barrier()
}

// barrier applies deferred entries single-threaded in (source, seq) order.
func (f *Factory) barrier() {
	if f.pending.Len() == 0 {
		return
	}
	for _, e := range f.pending.Drain() {
		switch e.Kind {
		case deferred.Deliver:
			target := f.machine(e.Target)
			if target == nil {
				f.warn(e.Source, "delivery dropped: target %d is gone", e.Target)
				continue
			}
			target.Transfer = append(target.Transfer, e.Packet)
			f.transfers++
		case deferred.Warn:
			f.warn(e.Source, "%s", e.Msg)
		}
	}
}

func (f *Factory) warn(id model.MachineID, format string, args ...any) {
	f.warnings++
	msg := fmt.Sprintf(format, args...)
	f.logger.Printf("tick=%d machine=%d: %s", f.tick.Load(), id, msg)
	f.audit("WARN", id, msg, nil)
}
