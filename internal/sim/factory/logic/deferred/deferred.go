// Package deferred records cross-machine effects produced by parallel stage
// workers. The owner drains the log at the stage barrier and applies it on a
// single goroutine.
package deferred

import (
	"sort"
	"sync"

	"logisim.dev/internal/sim/factory/kernel/model"
)

type Kind uint8

const (
	// Deliver appends Packet to the target's transfer buffer.
	Deliver Kind = iota + 1
	// Warn reports a recoverable bookkeeping inconsistency on Source.
	Warn
)

type Entry struct {
	Target model.MachineID
	Source model.MachineID
	Seq    uint32
	Kind   Kind
	Port   int
	Packet model.Packet
	Msg    string
}

type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// Writer appends on behalf of one source machine. A Writer must only be used
// by the worker that owns the source.
type Writer struct {
	log    *Log
	source model.MachineID
	seq    uint32
}

func (l *Log) Writer(source model.MachineID) *Writer {
	return &Writer{log: l, source: source}
}

func (w *Writer) Deliver(target model.MachineID, port int, p model.Packet) {
	w.push(Entry{Target: target, Kind: Deliver, Port: port, Packet: p})
}

func (w *Writer) Warn(msg string) {
	w.push(Entry{Target: w.source, Kind: Warn, Msg: msg})
}

func (w *Writer) push(e Entry) {
	e.Source = w.source
	e.Seq = w.seq
	w.seq++
	w.log.mu.Lock()
	w.log.entries = append(w.log.entries, e)
	w.log.mu.Unlock()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Drain empties the log and returns its entries ordered by (Source, Seq), so
// replay order does not depend on how workers interleaved.
func (l *Log) Drain() []Entry {
	l.mu.Lock()
	out := l.entries
	l.entries = nil
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
