package runtime

import (
	"sort"

	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/deferred"
	"logisim.dev/internal/sim/factory/logic/matching"
	"logisim.dev/internal/sim/props"
)

// Ops is the factory-facing callback set used by the line runtime. Reads of
// other machines go through it; writes go through the deferred writer.
type Ops struct {
	// Room is the spare capacity the target machine has for p.
	Room func(target model.MachineID, p model.Packet) float64
}

// Step advances one transporter by dt. Only the packet closest to the end of
// the line is considered for egress; while it is stuck nothing moves. A
// disabled line is frozen.
func Step(m *model.Machine, dt float64, ops Ops, w *deferred.Writer) {
	if m == nil || !m.Transporter || m.Disabled || len(m.Storage) == 0 {
		return
	}
	sort.SliceStable(m.Storage, func(i, j int) bool {
		return m.Storage[i].Elapsed > m.Storage[j].Elapsed
	})
	total := m.TransitTime()

	head := &m.Storage[0]
	if head.Elapsed+dt >= total {
		pi, room := egressPort(m, *head, ops)
		if pi < 0 {
			return
		}
		port := &m.Ports[pi]
		qty := head.Quantity
		if room < qty {
			qty = room
		}
		w.Deliver(port.Connected, port.ConnectedPort, model.Packet{Type: head.Type, Props: head.Props, Quantity: qty})
		port.RefractoryTimer = 0

		rest := head.Quantity - qty
		head.Quantity = 0
		if rest > 0 {
			if len(m.Storage) > 1 && m.Storage[1].Type == head.Type && m.Storage[1].Props == head.Props {
				m.Storage[1].Quantity += rest
			} else {
				head.Quantity = rest
			}
		}
	}

	for i := range m.Storage {
		m.Storage[i].Elapsed += dt
		if m.Storage[i].Elapsed > total {
			m.Storage[i].Elapsed = total
		}
	}
	m.Storage = matching.CleanBuffer(m.Storage)
}

func egressPort(m *model.Machine, p model.Packet, ops Ops) (int, float64) {
	for i := range m.Ports {
		port := &m.Ports[i]
		if port.Direction != model.Out || port.Connected == model.NoMachine || !port.Ready() {
			continue
		}
		if !props.Satisfies(p.Props, port.Props) {
			continue
		}
		if port.AssignedType != model.Unassigned && port.AssignedType != matching.AnyType && port.AssignedType != p.Type {
			continue
		}
		if ops.Room == nil {
			continue
		}
		if room := ops.Room(port.Connected, p); room > 0 {
			return i, room
		}
	}
	return -1, 0
}
