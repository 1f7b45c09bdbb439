package factory

import (
	"fmt"

	"logisim.dev/internal/sim/factory/kernel/model"
)

type MachineStatus struct {
	ID              uint32      `json:"id"`
	Template        string      `json:"template"`
	Recipe          string      `json:"recipe,omitempty"`
	Processing      bool        `json:"processing"`
	Disabled        bool        `json:"disabled"`
	Tags            []string    `json:"tags"`
	PercentComplete float64     `json:"percent_complete"`
	Bins            []BinStatus `json:"bins"`
	Stored          float64     `json:"stored"`
}

type BinStatus struct {
	Props    string  `json:"props"`
	Current  float64 `json:"current"`
	Capacity float64 `json:"capacity"`
}

// Status reads one machine's derived status. Call on the sim goroutine.
func (f *Factory) Status(id model.MachineID) (MachineStatus, error) {
	m := f.machine(id)
	if m == nil {
		return MachineStatus{}, fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	return statusOf(m), nil
}

// Tags is the raw tag set of one machine.
func (f *Factory) Tags(id model.MachineID) (model.Tags, error) {
	m := f.machine(id)
	if m == nil {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMachine, id)
	}
	return m.Tags, nil
}

// Statuses lists every live machine in id order.
func (f *Factory) Statuses() []MachineStatus {
	out := make([]MachineStatus, 0, len(f.machines))
	for _, m := range f.machines {
		if m == nil {
			continue
		}
		out = append(out, statusOf(m))
	}
	return out
}

func statusOf(m *model.Machine) MachineStatus {
	s := MachineStatus{
		ID:              uint32(m.ID),
		Template:        m.Template,
		Recipe:          m.RecipeID,
		Processing:      m.Processing,
		Disabled:        m.Disabled,
		Tags:            m.Tags.Names(),
		PercentComplete: m.PercentComplete,
		Bins:            make([]BinStatus, 0, len(m.Bins)),
	}
	for _, b := range m.Bins {
		s.Bins = append(s.Bins, BinStatus{Props: b.BinType.String(), Current: b.Current, Capacity: b.Capacity})
	}
	for _, p := range m.Storage {
		s.Stored += p.Quantity
	}
	return s
}

// Machine returns a deep copy of one machine's state, for inspection and tests.
func (f *Factory) Machine(id model.MachineID) (model.Machine, bool) {
	m := f.machine(id)
	if m == nil {
		return model.Machine{}, false
	}
	c := *m
	c.Ports = append([]model.Port(nil), m.Ports...)
	c.Bins = append([]model.Bin(nil), m.Bins...)
	c.Storage = append([]model.Packet(nil), m.Storage...)
	c.Transfer = append([]model.Packet(nil), m.Transfer...)
	c.Inputs = append([]model.Packet(nil), m.Inputs...)
	c.Outputs = append([]model.Packet(nil), m.Outputs...)
	return c, true
}

func (f *Factory) MachineCount() int {
	n := 0
	for _, m := range f.machines {
		if m != nil {
			n++
		}
	}
	return n
}
