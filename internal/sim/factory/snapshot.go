package factory

import (
	"fmt"

	"logisim.dev/internal/persistence/snapshot"
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/props"
)

// ExportSnapshot captures the full arena. Header.Tick is the next tick to run.
func (f *Factory) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			FactoryID: f.cfg.ID,
			Tick:      f.tick.Load(),
		},
		TickRateHz:         f.cfg.TickRateHz,
		Workers:            f.cfg.Workers,
		SnapshotEveryTicks: f.cfg.SnapshotEveryTicks,
		NextID:             uint32(len(f.machines)),
	}
	if f.catalogs != nil {
		snap.Catalogs = snapshot.CatalogsV1{
			Items:    f.catalogs.Items.Digest,
			Recipes:  f.catalogs.Recipes.Digest,
			Machines: f.catalogs.Machines.Digest,
		}
	}
	for _, m := range f.machines {
		if m == nil {
			continue
		}
		snap.Machines = append(snap.Machines, exportMachine(m))
	}
	snap.Header.Machines = len(snap.Machines)
	return snap
}

// ImportSnapshot replaces all machine state. Catalog digest mismatches are
// logged, not fatal.
func (f *Factory) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.NextID == 0 {
		return fmt.Errorf("snapshot next_id must be at least 1")
	}
	machines := make([]*model.Machine, snap.NextID)
	for _, mv := range snap.Machines {
		if mv.ID == 0 || mv.ID >= snap.NextID {
			return fmt.Errorf("snapshot machine id %d out of range (next_id=%d)", mv.ID, snap.NextID)
		}
		if machines[mv.ID] != nil {
			return fmt.Errorf("snapshot machine id %d duplicated", mv.ID)
		}
		machines[mv.ID] = importMachine(mv)
	}
	if f.catalogs != nil && snap.Catalogs.Machines != "" && snap.Catalogs.Machines != f.catalogs.Machines.Digest {
		f.logger.Printf("snapshot tick=%d was taken against a different machines catalog", snap.Header.Tick)
	}

	f.machines = machines
	f.ops = nil
	f.tick.Store(snap.Header.Tick)
	return nil
}

func exportMachine(m *model.Machine) snapshot.MachineV1 {
	mv := snapshot.MachineV1{
		ID:               uint32(m.ID),
		Template:         m.Template,
		Class:            m.Class,
		RecipeID:         m.RecipeID,
		Processing:       m.Processing,
		Disabled:         m.Disabled,
		ProcessTimer:     m.ProcessTimer,
		WorkTimer:        m.WorkTimer,
		Efficiency:       m.Efficiency,
		Level:            m.Level,
		Quality:          m.Quality,
		PowerType:        uint32(m.PowerType),
		PowerConsumption: m.PowerConsumption,
		PowerStorage:     m.PowerStorage,
		Transporter:      m.Transporter,
		Length:           m.Length,
		ProcessingTime:   m.ProcessingTime,
		Storage:          exportPackets(m.Storage),
		Transfer:         exportPackets(m.Transfer),
		Inputs:           exportPackets(m.Inputs),
		Outputs:          exportPackets(m.Outputs),
		Tags:             uint32(m.Tags),
		PercentComplete:  m.PercentComplete,
	}
	for _, p := range m.Ports {
		mv.Ports = append(mv.Ports, snapshot.PortV1{
			ID:              p.ID,
			Props:           uint32(p.Props),
			Direction:       uint8(p.Direction),
			RefractoryTime:  p.RefractoryTime,
			RefractoryTimer: p.RefractoryTimer,
			AssignedType:    p.AssignedType,
			RecipeQuantity:  p.RecipeQuantity,
			Connected:       uint32(p.Connected),
			ConnectedPort:   p.ConnectedPort,
		})
	}
	for _, b := range m.Bins {
		mv.Bins = append(mv.Bins, snapshot.BinV1{BinType: uint32(b.BinType), Capacity: b.Capacity, Current: b.Current})
	}
	return mv
}

func importMachine(mv snapshot.MachineV1) *model.Machine {
	m := &model.Machine{
		ID:               model.MachineID(mv.ID),
		Template:         mv.Template,
		Class:            mv.Class,
		RecipeID:         mv.RecipeID,
		Processing:       mv.Processing,
		Disabled:         mv.Disabled,
		ProcessTimer:     mv.ProcessTimer,
		WorkTimer:        mv.WorkTimer,
		Efficiency:       mv.Efficiency,
		Level:            mv.Level,
		Quality:          mv.Quality,
		PowerType:        props.Mask(mv.PowerType),
		PowerConsumption: mv.PowerConsumption,
		PowerStorage:     mv.PowerStorage,
		Transporter:      mv.Transporter,
		Length:           mv.Length,
		ProcessingTime:   mv.ProcessingTime,
		Storage:          importPackets(mv.Storage),
		Transfer:         importPackets(mv.Transfer),
		Inputs:           importPackets(mv.Inputs),
		Outputs:          importPackets(mv.Outputs),
		Tags:             model.Tags(mv.Tags),
		PercentComplete:  mv.PercentComplete,
	}
	for _, p := range mv.Ports {
		m.Ports = append(m.Ports, model.Port{
			ID:              p.ID,
			Props:           props.Mask(p.Props),
			Direction:       model.Direction(p.Direction),
			RefractoryTime:  p.RefractoryTime,
			RefractoryTimer: p.RefractoryTimer,
			AssignedType:    p.AssignedType,
			RecipeQuantity:  p.RecipeQuantity,
			Connected:       model.MachineID(p.Connected),
			ConnectedPort:   p.ConnectedPort,
		})
	}
	for _, b := range mv.Bins {
		m.Bins = append(m.Bins, model.Bin{BinType: props.Mask(b.BinType), Capacity: b.Capacity, Current: b.Current})
	}
	return m
}

func exportPackets(ps []model.Packet) []snapshot.PacketV1 {
	if len(ps) == 0 {
		return nil
	}
	out := make([]snapshot.PacketV1, 0, len(ps))
	for _, p := range ps {
		out = append(out, snapshot.PacketV1{Type: p.Type, Props: uint32(p.Props), Quantity: p.Quantity, Elapsed: p.Elapsed})
	}
	return out
}

func importPackets(ps []snapshot.PacketV1) []model.Packet {
	if len(ps) == 0 {
		return nil
	}
	out := make([]model.Packet, 0, len(ps))
	for _, p := range ps {
		out = append(out, model.Packet{Type: p.Type, Props: props.Mask(p.Props), Quantity: p.Quantity, Elapsed: p.Elapsed})
	}
	return out
}
