package main

import (
	"fmt"
	"io"

	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/transport/observer"
)

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(w io.Writer, f *factory.Factory, obs *observer.Server, idx runtimeIndex) {
	id := f.ID()
	rep, _ := f.LastReport()

	fmt.Fprintf(w, "# HELP logisim_factory_tick Next tick to run.\n")
	fmt.Fprintf(w, "# TYPE logisim_factory_tick gauge\n")
	fmt.Fprintf(w, "logisim_factory_tick{factory=%q} %d\n", id, f.CurrentTick())

	fmt.Fprintf(w, "# HELP logisim_factory_machines Live machines at the last tick.\n")
	fmt.Fprintf(w, "# TYPE logisim_factory_machines gauge\n")
	fmt.Fprintf(w, "logisim_factory_machines{factory=%q} %d\n", id, rep.Machines)

	fmt.Fprintf(w, "# HELP logisim_factory_tick_transfers Packets delivered during the last tick.\n")
	fmt.Fprintf(w, "# TYPE logisim_factory_tick_transfers gauge\n")
	fmt.Fprintf(w, "logisim_factory_tick_transfers{factory=%q} %d\n", id, rep.Transfers)

	fmt.Fprintf(w, "# HELP logisim_factory_tick_warnings Bookkeeping warnings during the last tick.\n")
	fmt.Fprintf(w, "# TYPE logisim_factory_tick_warnings gauge\n")
	fmt.Fprintf(w, "logisim_factory_tick_warnings{factory=%q} %d\n", id, rep.Warnings)

	if obs != nil {
		st := obs.Stats()
		fmt.Fprintf(w, "# HELP logisim_observer_sessions Connected observer sessions.\n")
		fmt.Fprintf(w, "# TYPE logisim_observer_sessions gauge\n")
		fmt.Fprintf(w, "logisim_observer_sessions{factory=%q} %d\n", id, st.Sessions)
		fmt.Fprintf(w, "# HELP logisim_observer_frames_total Status frames by outcome.\n")
		fmt.Fprintf(w, "# TYPE logisim_observer_frames_total counter\n")
		fmt.Fprintf(w, "logisim_observer_frames_total{factory=%q,outcome=\"sent\"} %d\n", id, st.FramesSent)
		fmt.Fprintf(w, "logisim_observer_frames_total{factory=%q,outcome=\"dropped\"} %d\n", id, st.FramesDropped)
	}

	if idx != nil {
		st := idx.Stats()
		fmt.Fprintf(w, "# HELP logisim_index_queue_depth Read-model writer backlog.\n")
		fmt.Fprintf(w, "# TYPE logisim_index_queue_depth gauge\n")
		fmt.Fprintf(w, "logisim_index_queue_depth{factory=%q} %d\n", id, st.QueueDepth)
		fmt.Fprintf(w, "# HELP logisim_index_dropped_total Read-model writes dropped on a full queue.\n")
		fmt.Fprintf(w, "# TYPE logisim_index_dropped_total counter\n")
		fmt.Fprintf(w, "logisim_index_dropped_total{factory=%q,kind=\"tick\"} %d\n", id, st.DropTickTotal)
		fmt.Fprintf(w, "logisim_index_dropped_total{factory=%q,kind=\"audit\"} %d\n", id, st.DropAuditTotal)
		fmt.Fprintf(w, "logisim_index_dropped_total{factory=%q,kind=\"snapshot\"} %d\n", id, st.DropSnapshotTotal)
	}
}
