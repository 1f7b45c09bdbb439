package runtime

import (
	"testing"

	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/props"
)

func miner() *model.Machine {
	return &model.Machine{
		ID:               3,
		PowerType:        props.Energy,
		PowerConsumption: 1,
		Bins: []model.Bin{
			{BinType: props.Energy, Capacity: 10},
			{BinType: props.Solid | props.Ore, Capacity: 50},
		},
	}
}

func TestEmptyPowerBinTagsNotPowered(t *testing.T) {
	m := miner()
	m.Processing = true
	UpdateStatus(m, 0.5)
	if !m.Tags.Has(model.NotPowered) {
		t.Fatalf("expected NotPowered, tags=%v", m.Tags)
	}
	m.Storage = []model.Packet{{Type: 1, Props: props.Energy, Quantity: 3}}
	if got := Consume(m, 0.5); got != 0 || m.Storage[0].Quantity != 3 {
		t.Fatalf("unpowered machine consumed %v", got)
	}
}

func TestPoweredMachineConsumes(t *testing.T) {
	m := miner()
	m.Processing = true
	m.Bins[0].Current = 3
	m.Storage = []model.Packet{{Type: 2, Props: props.Solid, Quantity: 1}, {Type: 1, Props: props.Energy, Quantity: 3}}
	UpdateStatus(m, 0.5)
	if m.Tags.Has(model.NotPowered) {
		t.Fatalf("machine should be powered")
	}
	if got := Consume(m, 0.5); got != 0.5 || m.Storage[1].Quantity != 2.5 {
		t.Fatalf("Consume=%v storage=%+v", got, m.Storage)
	}
}

func TestIdleMachinesAreEvaluatedButDoNotConsume(t *testing.T) {
	m := miner()
	m.Bins[0].Current = 0.25
	UpdateStatus(m, 0.5)
	if !m.Tags.Has(model.NotPowered) {
		t.Fatalf("idle machine with 0.25 < 0.5 should be NotPowered")
	}
	m.Bins[0].Current = 5
	m.Storage = []model.Packet{{Type: 1, Props: props.Energy, Quantity: 5}}
	UpdateStatus(m, 0.5)
	if m.Tags.Has(model.NotPowered) {
		t.Fatalf("idle machine with stock should be powered")
	}
	if Consume(m, 0.5) != 0 {
		t.Fatalf("idle machine must not consume")
	}
}

func TestPartialDrainAndUnpoweredTypes(t *testing.T) {
	m := miner()
	m.Processing = true
	m.PowerConsumption = 4
	m.Storage = []model.Packet{{Type: 1, Props: props.Energy, Quantity: 1}, {Type: 1, Props: props.Energy, Quantity: 5}}
	if got := Consume(m, 0.5); got != 1 || len(m.Storage) != 1 || m.Storage[0].Quantity != 5 {
		t.Fatalf("Consume=%v storage=%+v", got, m.Storage)
	}

	gen := &model.Machine{Disabled: true}
	gen.Tags.Set(model.NotPowered, true)
	UpdateStatus(gen, 1)
	if gen.Tags.Has(model.NotPowered) {
		t.Fatalf("machines without a power type are always powered")
	}

	m.Disabled = true
	m.Bins[0].Current = 10
	UpdateStatus(m, 0.5)
	if !m.Tags.Has(model.NotPowered) {
		t.Fatalf("disabled machine that needs power reports NotPowered")
	}
}
