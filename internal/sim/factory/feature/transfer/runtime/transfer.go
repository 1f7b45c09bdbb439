package runtime

import (
	"fmt"

	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/deferred"
	"logisim.dev/internal/sim/factory/logic/matching"
)

// Ops is the factory-facing callback set used by port transfers.
type Ops struct {
	Room func(target model.MachineID, p model.Packet) float64
}

// Push fires every ready, bound Out port of a non-transporter machine. It
// returns the number of deliveries queued.
func Push(m *model.Machine, ops Ops, w *deferred.Writer) int {
	if m == nil || m.Transporter {
		return 0
	}
	sent := 0
	for i := range m.Ports {
		port := &m.Ports[i]
		if port.Direction != model.Out || !port.Bound() || !port.Ready() {
			continue
		}
		want := model.Packet{Type: port.AssignedType, Props: port.Props, Quantity: port.RecipeQuantity}
		if want.Quantity <= 0 {
			continue
		}
		b := matching.BinFor(want, m.Bins)
		if b < 0 || m.Bins[b].Current < want.Quantity {
			continue
		}
		if ops.Room == nil || ops.Room(port.Connected, want) < want.Quantity {
			continue
		}

		got := drain(m, want)
		if got < want.Quantity {
			w.Warn(fmt.Sprintf("port %d: wanted %g of type %d, storage held %g", port.ID, want.Quantity, want.Type, got))
		}
		port.RefractoryTimer = 0
		if got <= 0 {
			continue
		}
		want.Quantity = got
		w.Deliver(port.Connected, port.ConnectedPort, want)
		sent++
	}
	if sent > 0 {
		m.Storage = matching.CleanBuffer(m.Storage)
	}
	return sent
}

// drain removes up to want.Quantity from packets of exactly the wanted type,
// spreading across as many packets as needed. Code 0 is not a wildcard here.
func drain(m *model.Machine, want model.Packet) float64 {
	var got float64
	for i := range m.Storage {
		if got >= want.Quantity {
			break
		}
		p := &m.Storage[i]
		if p.Quantity <= 0 || p.Type != want.Type {
			continue
		}
		take := want.Quantity - got
		if p.Quantity < take {
			take = p.Quantity
		}
		p.Quantity -= take
		got += take
	}
	return got
}

// Resolve moves staged inbound packets into storage.
func Resolve(m *model.Machine) {
	if m == nil || len(m.Transfer) == 0 {
		return
	}
	for _, p := range m.Transfer {
		p.Elapsed = 0
		m.Storage = append(m.Storage, p)
	}
	for i := range m.Transfer {
		m.Transfer[i] = model.Packet{}
	}
	m.Transfer = m.Transfer[:0]
}

// Cool advances every port's refractory timer.
func Cool(m *model.Machine, dt float64) {
	if m == nil {
		return
	}
	for i := range m.Ports {
		m.Ports[i].RefractoryTimer += dt
	}
}
