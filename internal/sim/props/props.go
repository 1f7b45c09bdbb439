package props

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Mask is a set of item property flags. Compatibility checks are plain
// bitwise subset tests.
type Mask uint32

const (
	None        Mask = 0
	RawMaterial Mask = 1 << 0
	Solid       Mask = 1 << 1
	Liquid      Mask = 1 << 2
	Energy      Mask = 1 << 3
	Product     Mask = 1 << 4
	Coolant     Mask = 1 << 5
	Fuel        Mask = 1 << 6
	Waste       Mask = 1 << 7
	Gas         Mask = 1 << 8
	Ore         Mask = 1 << 9
)

var names = []struct {
	bit  Mask
	name string
}{
	{RawMaterial, "RAW_MATERIAL"},
	{Solid, "SOLID"},
	{Liquid, "LIQUID"},
	{Energy, "ENERGY"},
	{Product, "PRODUCT"},
	{Coolant, "COOLANT"},
	{Fuel, "FUEL"},
	{Waste, "WASTE"},
	{Gas, "GAS"},
	{Ore, "ORE"},
}

// Names returns every known flag name in bit order.
func Names() []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.name)
	}
	return out
}

// Has reports whether every bit of sub is also set in m.
func (m Mask) Has(sub Mask) bool { return m&sub == sub }

// Satisfies is the requirement form of Has: m carries every bit that req demands.
func Satisfies(m, req Mask) bool { return req&m == req }

func (m Mask) List() []string {
	if m == None {
		return []string{}
	}
	out := make([]string, 0, 4)
	for _, n := range names {
		if m&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (m Mask) String() string {
	if m == None {
		return "NONE"
	}
	return strings.Join(m.List(), "|")
}

// Parse converts flag names (case-insensitive) into a mask.
func Parse(list []string) (Mask, error) {
	var m Mask
	for _, s := range list {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || s == "NONE" {
			continue
		}
		bit, ok := lookup(s)
		if !ok {
			return None, fmt.Errorf("unknown property %q", s)
		}
		m |= bit
	}
	return m, nil
}

func lookup(name string) (Mask, bool) {
	for _, n := range names {
		if n.name == name {
			return n.bit, true
		}
	}
	return None, false
}

func (m Mask) MarshalJSON() ([]byte, error) {
	l := m.List()
	sort.Strings(l)
	return json.Marshal(l)
}

// UnmarshalJSON accepts either a list of flag names or a raw integer.
func (m *Mask) UnmarshalJSON(b []byte) error {
	var raw uint32
	if err := json.Unmarshal(b, &raw); err == nil {
		*m = Mask(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("props: %w", err)
	}
	v, err := Parse(list)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
