package runtime

import (
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/factory/logic/matching"
	"logisim.dev/internal/sim/props"
)

// CanStart gates a start attempt on the previous tick's status.
func CanStart(m *model.Machine) bool {
	if m == nil || m.Transporter || m.Processing || m.Disabled {
		return false
	}
	return !m.Tags.Has(model.OutputBufferFull) && !m.Tags.Has(model.NotPowered)
}

// Start consumes every non-power recipe input in one step, or nothing at all.
// Each requirement draws from the first packet that still covers it after
// earlier requirements reserved their share.
func Start(m *model.Machine) bool {
	if !CanStart(m) {
		return false
	}

	picks := make([]int, len(m.Inputs))
	reserved := make([]float64, len(m.Storage))
	for ri, req := range m.Inputs {
		picks[ri] = -1
		if isPowerInput(m, req) {
			continue
		}
		for si := range m.Storage {
			p := m.Storage[si]
			p.Quantity -= reserved[si]
			if matching.MatchesRequirement(p, req) {
				picks[ri] = si
				break
			}
		}
		if picks[ri] < 0 {
			return false
		}
		reserved[picks[ri]] += req.Quantity
	}

	for ri, si := range picks {
		if si < 0 {
			continue
		}
		m.Storage[si].Quantity -= m.Inputs[ri].Quantity
	}
	m.Processing = true
	m.ProcessTimer = 0
	return true
}

// Power inputs are drained by the power stage instead.
func isPowerInput(m *model.Machine, req model.Packet) bool {
	return m.PowerType != props.None && props.Satisfies(req.Props, m.PowerType)
}

// Advance runs the recipe timer of a non-transporter machine.
func Advance(m *model.Machine, dt float64) {
	if m == nil || m.Transporter || !m.Processing || m.Disabled {
		return
	}
	if m.Tags.Has(model.NotPowered) || m.Tags.Has(model.OutputBufferFull) || m.Tags.Has(model.ProcessingFinished) {
		return
	}
	m.ProcessTimer += dt
	m.WorkTimer += dt
	if m.ProcessTimer >= m.AdjustedTime() {
		m.Tags.Set(model.ProcessingFinished, true)
		m.ProcessTimer = 0
	}
}

// Finish emits recipe outputs once every output has room in the machine's own bins.
func Finish(m *model.Machine) bool {
	if m == nil || m.Transporter || !m.Tags.Has(model.ProcessingFinished) || m.Tags.Has(model.NotPowered) {
		return false
	}
	for _, out := range m.Outputs {
		if matching.CapacityAvailable(out, m.Bins) <= 0 {
			return false
		}
	}
	for _, out := range m.Outputs {
		out.Elapsed = 0
		m.Storage = append(m.Storage, out)
	}
	m.Tags.Set(model.ProcessingFinished, false)
	m.Processing = false
	return true
}
