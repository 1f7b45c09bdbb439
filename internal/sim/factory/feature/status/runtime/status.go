package runtime

import (
	"logisim.dev/internal/sim/factory/kernel/model"
)

const portTags = model.InputBlocked | model.OutputBlocked | model.InputStarved |
	model.InputBufferFull | model.OutputBufferFull

// Derive recomputes the observable status tags. It never touches quantities.
// ProcessingFinished and NotPowered belong to their stages and are left alone.
// Transporters carry no derived tags; their single bin is shared by both ports.
func Derive(m *model.Machine) {
	if m == nil {
		return
	}
	if m.Transporter {
		m.Tags &^= model.Working | model.NoRecipe | portTags
		m.PercentComplete = 0
		return
	}
	working := m.Processing && !m.Disabled && !m.Tags.Has(model.NotPowered)
	m.Tags.Set(model.Working, working)
	m.PercentComplete = 0
	if working {
		if adj := m.AdjustedTime(); adj > 0 {
			m.PercentComplete = m.ProcessTimer / adj
		}
		if m.PercentComplete > 1 {
			m.PercentComplete = 1
		}
	}
	m.Tags.Set(model.NoRecipe, len(m.Inputs) == 0 && len(m.Outputs) == 0)

	var ports model.Tags
	for i := range m.Ports {
		ports |= portStatus(m, &m.Ports[i])
	}
	m.Tags = m.Tags&^portTags | ports
}

func portStatus(m *model.Machine, p *model.Port) model.Tags {
	in := p.Direction == model.In
	b := binFor(m, p)
	switch {
	case b == nil:
		if in {
			return model.InputBlocked
		}
		return model.OutputBlocked
	case in && b.Current < p.RecipeQuantity:
		return model.InputStarved
	case b.Current >= b.Capacity:
		if in {
			return model.InputBufferFull
		}
		return model.OutputBufferFull
	}
	return 0
}

func binFor(m *model.Machine, p *model.Port) *model.Bin {
	for i := range m.Bins {
		if m.Bins[i].BinType.Has(p.Props) {
			return &m.Bins[i]
		}
	}
	return nil
}
