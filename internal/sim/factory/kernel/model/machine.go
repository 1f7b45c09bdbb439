package model

import (
	"strings"

	"logisim.dev/internal/sim/props"
)

// MachineID indexes the factory arena. Zero is never a live machine.
type MachineID uint32

const NoMachine MachineID = 0

// Unassigned marks a port that has not been bound to an item type.
const Unassigned = -1

type Direction uint8

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "OUT"
	}
	return "IN"
}

type Port struct {
	ID              int
	Props           props.Mask
	Direction       Direction
	RefractoryTime  float64
	RefractoryTimer float64
	AssignedType    int
	RecipeQuantity  float64
	Connected       MachineID
	ConnectedPort   int
}

// Ready reports whether the refractory interval has elapsed.
func (p *Port) Ready() bool { return p.RefractoryTimer >= p.RefractoryTime }

func (p *Port) Bound() bool { return p.Connected != NoMachine && p.AssignedType != Unassigned }

// Bin is a capacity-limited counter. Current is recomputed from storage every tick.
type Bin struct {
	BinType  props.Mask
	Capacity float64
	Current  float64
}

type Packet struct {
	Type     int
	Props    props.Mask
	Quantity float64
	Elapsed  float64
}

type Machine struct {
	ID       MachineID
	Template string
	Class    string
	RecipeID string

	Processing   bool
	Disabled     bool
	ProcessTimer float64
	WorkTimer    float64

	Efficiency float64
	Level      int
	Quality    float64

	PowerType        props.Mask
	PowerConsumption float64
	PowerStorage     float64

	Transporter    bool
	Length         int
	ProcessingTime float64

	Ports    []Port
	Bins     []Bin
	Storage  []Packet
	Transfer []Packet

	// Inputs and Outputs are the recipe requirement and yield templates.
	Inputs  []Packet
	Outputs []Packet

	Tags            Tags
	PercentComplete float64
}

// AdjustedTime is the recipe time scaled by efficiency.
func (m *Machine) AdjustedTime() float64 {
	if m.Efficiency <= 0 {
		return m.ProcessingTime
	}
	return m.ProcessingTime / m.Efficiency
}

// TransitTime is the end-to-end delay of a transporter.
func (m *Machine) TransitTime() float64 {
	return m.ProcessingTime * float64(m.Length)
}

func (m *Machine) Port(id int) *Port {
	for i := range m.Ports {
		if m.Ports[i].ID == id {
			return &m.Ports[i]
		}
	}
	return nil
}

// Tags are derived status flags; most are recomputed every tick.
type Tags uint32

const (
	ProcessingFinished Tags = 1 << iota
	NotPowered
	Working
	NoRecipe
	InputBlocked
	OutputBlocked
	InputStarved
	InputBufferFull
	OutputBufferFull
)

var tagNames = []struct {
	tag  Tags
	name string
}{
	{ProcessingFinished, "PROCESSING_FINISHED"},
	{NotPowered, "NOT_POWERED"},
	{Working, "WORKING"},
	{NoRecipe, "NO_RECIPE"},
	{InputBlocked, "INPUT_BLOCKED"},
	{OutputBlocked, "OUTPUT_BLOCKED"},
	{InputStarved, "INPUT_STARVED"},
	{InputBufferFull, "INPUT_BUFFER_FULL"},
	{OutputBufferFull, "OUTPUT_BUFFER_FULL"},
}

func (t Tags) Has(f Tags) bool { return t&f == f }

// Set adds or removes f depending on on.
func (t *Tags) Set(f Tags, on bool) {
	if on {
		*t |= f
	} else {
		*t &^= f
	}
}

func (t Tags) Names() []string {
	out := []string{}
	for _, n := range tagNames {
		if t&n.tag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (t Tags) String() string {
	if t == 0 {
		return "NONE"
	}
	return strings.Join(t.Names(), "|")
}
