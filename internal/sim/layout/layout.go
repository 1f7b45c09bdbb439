// Package layout describes a plant as YAML and builds it through the
// factory's construction calls.
package layout

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"logisim.dev/internal/sim/factory/kernel/model"
)

type Layout struct {
	Machines    []MachineSpec    `yaml:"machines"`
	Connections []ConnectionSpec `yaml:"connections"`
	Seeds       []SeedSpec       `yaml:"seeds"`
}

type MachineSpec struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
	Recipe   string `yaml:"recipe"`
	Disabled bool   `yaml:"disabled"`
}

type ConnectionSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Item string `yaml:"item"`
}

type SeedSpec struct {
	Machine  string  `yaml:"machine"`
	Item     string  `yaml:"item"`
	Quantity float64 `yaml:"quantity"`
}

// Builder is the subset of *factory.Factory a layout needs.
type Builder interface {
	CreateMachine(template, recipe string) (model.MachineID, error)
	Connect(src, dst model.MachineID, item string) error
	SetDisabled(id model.MachineID, disabled bool) error
	Inject(id model.MachineID, item string, qty float64) error
}

func Load(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout: %w", err)
	}
	l.Normalize()
	if err := l.Validate(); err != nil {
		return l, fmt.Errorf("layout: %w", err)
	}
	return l, nil
}

func (l *Layout) Normalize() {
	for i := range l.Machines {
		l.Machines[i].Name = strings.TrimSpace(l.Machines[i].Name)
		l.Machines[i].Template = strings.TrimSpace(l.Machines[i].Template)
		l.Machines[i].Recipe = strings.TrimSpace(l.Machines[i].Recipe)
	}
	for i := range l.Connections {
		l.Connections[i].From = strings.TrimSpace(l.Connections[i].From)
		l.Connections[i].To = strings.TrimSpace(l.Connections[i].To)
		l.Connections[i].Item = strings.TrimSpace(l.Connections[i].Item)
	}
	for i := range l.Seeds {
		l.Seeds[i].Machine = strings.TrimSpace(l.Seeds[i].Machine)
		l.Seeds[i].Item = strings.TrimSpace(l.Seeds[i].Item)
	}
}

// Validate checks names only; catalog references are checked by the factory
// when the layout is applied.
func (l Layout) Validate() error {
	names := map[string]bool{}
	for _, m := range l.Machines {
		if m.Name == "" || m.Template == "" {
			return fmt.Errorf("machine requires name and template")
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate machine name %q", m.Name)
		}
		names[m.Name] = true
	}
	for _, c := range l.Connections {
		if !names[c.From] || !names[c.To] {
			return fmt.Errorf("connection %s -> %s references unknown machine", c.From, c.To)
		}
		if c.Item == "" {
			return fmt.Errorf("connection %s -> %s requires item", c.From, c.To)
		}
	}
	for _, s := range l.Seeds {
		if !names[s.Machine] {
			return fmt.Errorf("seed references unknown machine %q", s.Machine)
		}
		if s.Quantity <= 0 {
			return fmt.Errorf("seed %s/%s quantity must be positive", s.Machine, s.Item)
		}
	}
	return nil
}

// Apply creates machines in file order, then connections, seeds and disabled
// flags. It stops at the first error and returns the ids built so far.
func (l Layout) Apply(b Builder) (map[string]model.MachineID, error) {
	ids := make(map[string]model.MachineID, len(l.Machines))
	for _, m := range l.Machines {
		id, err := b.CreateMachine(m.Template, m.Recipe)
		if err != nil {
			return ids, fmt.Errorf("machine %s: %w", m.Name, err)
		}
		ids[m.Name] = id
	}
	for _, c := range l.Connections {
		if err := b.Connect(ids[c.From], ids[c.To], c.Item); err != nil {
			return ids, fmt.Errorf("connect %s -> %s: %w", c.From, c.To, err)
		}
	}
	for _, s := range l.Seeds {
		if err := b.Inject(ids[s.Machine], s.Item, s.Quantity); err != nil {
			return ids, fmt.Errorf("seed %s: %w", s.Machine, err)
		}
	}
	for _, m := range l.Machines {
		if !m.Disabled {
			continue
		}
		if err := b.SetDisabled(ids[m.Name], true); err != nil {
			return ids, fmt.Errorf("disable %s: %w", m.Name, err)
		}
	}
	return ids, nil
}
