package deferred

import (
	"sync"
	"testing"

	"logisim.dev/internal/sim/factory/kernel/model"
)

func TestDrainOrderIsIndependentOfInterleaving(t *testing.T) {
	var l Log
	var wg sync.WaitGroup
	for src := model.MachineID(8); src >= 1; src-- {
		wg.Add(1)
		go func(src model.MachineID) {
			defer wg.Done()
			w := l.Writer(src)
			for i := 0; i < 5; i++ {
				w.Deliver(src+100, 1, model.Packet{Type: i, Quantity: float64(i)})
			}
		}(src)
	}
	wg.Wait()

	if l.Len() != 40 {
		t.Fatalf("Len=%d, want 40", l.Len())
	}
	got := l.Drain()
	if len(got) != 40 {
		t.Fatalf("Drain len=%d", len(got))
	}
	for i, e := range got {
		wantSrc := model.MachineID(i/5 + 1)
		if e.Source != wantSrc || int(e.Seq) != i%5 || e.Packet.Type != i%5 {
			t.Fatalf("entry %d = %+v", i, e)
		}
		if e.Target != wantSrc+100 || e.Kind != Deliver {
			t.Fatalf("entry %d target/kind = %+v", i, e)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("log should be empty after Drain")
	}
}

func TestWarnTargetsSource(t *testing.T) {
	var l Log
	w := l.Writer(3)
	w.Deliver(4, 2, model.Packet{Quantity: 1})
	w.Warn("short")
	got := l.Drain()
	if len(got) != 2 || got[1].Kind != Warn || got[1].Target != 3 || got[1].Msg != "short" || got[1].Seq != 1 {
		t.Fatalf("Drain=%+v", got)
	}
}
