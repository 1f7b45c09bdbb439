package runtime

import (
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/matching"
	"logisim.dev/internal/sim/props"
)

type stackKey struct {
	typ   int
	props props.Mask
}

// Aggregate recomputes bin totals from storage and collapses storage into one
// packet per (type, props) pair. Keys keep first-seen order.
func Aggregate(m *model.Machine) {
	if m == nil {
		return
	}
	if m.Transporter {
		aggregateLine(m)
		return
	}

	for i := range m.Bins {
		m.Bins[i].Current = 0
	}

	var order []stackKey
	totals := map[stackKey]float64{}
	for i := range m.Storage {
		p := &m.Storage[i]
		if p.Quantity <= 0 {
			continue
		}
		if b := matching.BinFor(*p, m.Bins); b >= 0 {
			m.Bins[b].Current += p.Quantity
		}
		k := stackKey{typ: p.Type, props: p.Props}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += p.Quantity
		p.Quantity = 0
	}

	m.Storage = matching.CleanBuffer(m.Storage)
	for _, k := range order {
		m.Storage = append(m.Storage, model.Packet{Type: k.typ, Props: k.props, Quantity: totals[k]})
	}
}

// Transporters keep packet identity (elapsed time) and only refresh the single line bin.
func aggregateLine(m *model.Machine) {
	m.Storage = matching.CleanBuffer(m.Storage)
	if len(m.Bins) == 0 {
		return
	}
	b := &m.Bins[0]
	b.Current = 0
	for _, p := range m.Storage {
		if matching.IsCompatible(p, *b) {
			b.Current += p.Quantity
		}
	}
}
