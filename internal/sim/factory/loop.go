package factory

import (
	"context"
	"time"
)

type request struct {
	fn   func(*Factory)
	done chan struct{}
}

// Run drives the pipeline at TickRateHz until ctx is cancelled or Stop is
// called. Requests submitted via Do run between ticks.
func (f *Factory) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(f.cfg.TickRateHz)
	dt := interval.Seconds()
	if f.cfg.DT > 0 {
		dt = f.cfg.DT
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.stop:
			return nil
		case req := <-f.reqs:
			req.fn(f)
			close(req.done)
		case <-ticker.C:
			f.StepOnce(dt)
		}
	}
}

func (f *Factory) Stop() { close(f.stop) }

// Do runs fn on the sim goroutine between ticks and waits for it.
func (f *Factory) Do(ctx context.Context, fn func(*Factory)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case f.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StepOnce advances one tick with the same side effects as the server loop:
// status frames and periodic snapshots.
func (f *Factory) StepOnce(dt float64) TickReport {
	report := f.AdvanceSimulation(dt)

	if f.statusPublisher != nil && report.Tick%uint64(f.cfg.StatusEveryTicks) == 0 {
		f.statusPublisher.PublishStatus(report, f.Statuses())
	}

	// Snapshot every N ticks, starting after tick 0.
	if f.snapshotSink != nil && report.Tick != 0 && f.cfg.SnapshotEveryTicks > 0 {
		if report.Tick%uint64(f.cfg.SnapshotEveryTicks) == 0 {
			select {
			case f.snapshotSink <- f.ExportSnapshot():
			default:
				f.logger.Printf("snapshot sink backed up; dropped tick=%d", report.Tick)
			}
		}
	}
	return report
}
