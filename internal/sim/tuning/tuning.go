package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	FactoryID string `yaml:"factory_id"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	Workers            int `yaml:"workers"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	StatusEveryTicks   int `yaml:"status_every_ticks"`
	// ArchiveEveryTicks copies every Nth-tick snapshot into archives/; 0 disables.
	ArchiveEveryTicks int `yaml:"archive_every_ticks"`

	// DTOverride fixes the simulated seconds per tick; 0 means 1/tick_rate_hz.
	DTOverride float64 `yaml:"dt_override"`
}

func Defaults() Tuning {
	return Tuning{
		FactoryID:          "plant_1",
		TickRateHz:         5,
		Workers:            4,
		SnapshotEveryTicks: 3000,
		StatusEveryTicks:   5,
		ArchiveEveryTicks:  36000,
	}
}

// Load reads a tuning file over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in 1..1000, got %d", t.TickRateHz)
	}
	if t.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", t.Workers)
	}
	if t.SnapshotEveryTicks < 0 || t.StatusEveryTicks < 0 || t.ArchiveEveryTicks < 0 {
		return fmt.Errorf("tick intervals must be >= 0")
	}
	if t.DTOverride < 0 {
		return fmt.Errorf("dt_override must be >= 0, got %g", t.DTOverride)
	}
	return nil
}

// DT is the simulated seconds advanced per tick.
func (t Tuning) DT() float64 {
	if t.DTOverride > 0 {
		return t.DTOverride
	}
	return 1 / float64(t.TickRateHz)
}
