package runtime

import (
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/matching"
	"logisim.dev/internal/sim/props"
)

// Need is the power a machine draws over dt.
func Need(m *model.Machine, dt float64) float64 {
	return m.PowerConsumption * dt
}

// UpdateStatus sets or clears NotPowered. Idle machines are evaluated too.
func UpdateStatus(m *model.Machine, dt float64) {
	if m == nil {
		return
	}
	if m.PowerType == props.None {
		m.Tags.Set(model.NotPowered, false)
		return
	}
	powered := false
	if !m.Disabled {
		need := Need(m, dt)
		for _, b := range m.Bins {
			if b.BinType.Has(m.PowerType) && b.Current >= need {
				powered = true
				break
			}
		}
	}
	m.Tags.Set(model.NotPowered, !powered)
}

// Consume deducts this tick's draw from the first matching power packet. A
// packet that runs dry is drained without spilling into the next one.
func Consume(m *model.Machine, dt float64) float64 {
	if m == nil || m.PowerType == props.None || m.Disabled || !m.Processing {
		return 0
	}
	if m.Tags.Has(model.OutputBufferFull) || m.Tags.Has(model.NotPowered) {
		return 0
	}
	need := Need(m, dt)
	for i := range m.Storage {
		p := &m.Storage[i]
		if p.Quantity <= 0 || !p.Props.Has(m.PowerType) {
			continue
		}
		take := need
		if p.Quantity < take {
			take = p.Quantity
		}
		p.Quantity -= take
		m.Storage = matching.CleanBuffer(m.Storage)
		return take
	}
	return 0
}
