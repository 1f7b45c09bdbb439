package factory

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"logisim.dev/internal/sim/factory/kernel/model"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func (f *Factory) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	h.Write([]byte(f.cfg.ID))
	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(len(f.machines)))
	for _, m := range f.machines {
		if m == nil {
			continue
		}
		digestMachine(h, &tmp, m)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StateDigest hashes the current state as of the last completed tick.
func (f *Factory) StateDigest() string {
	t := f.tick.Load()
	if t > 0 {
		t--
	}
	return f.stateDigest(t)
}

func digestMachine(h hashWriter, tmp *[8]byte, m *model.Machine) {
	digestWriteU64(h, tmp, uint64(m.ID))
	digestWriteString(h, tmp, m.Template)
	digestWriteString(h, tmp, m.RecipeID)
	h.Write([]byte{boolByte(m.Processing), boolByte(m.Disabled), boolByte(m.Transporter)})
	digestWriteF64(h, tmp, m.ProcessTimer)
	digestWriteF64(h, tmp, m.WorkTimer)
	digestWriteF64(h, tmp, m.Efficiency)
	digestWriteF64(h, tmp, m.ProcessingTime)
	digestWriteU64(h, tmp, uint64(m.PowerType))
	digestWriteF64(h, tmp, m.PowerConsumption)
	digestWriteU64(h, tmp, uint64(m.Length))
	digestWriteU64(h, tmp, uint64(m.Tags))
	digestWriteF64(h, tmp, m.PercentComplete)

	digestWriteU64(h, tmp, uint64(len(m.Ports)))
	for _, p := range m.Ports {
		digestWriteU64(h, tmp, uint64(p.ID))
		digestWriteU64(h, tmp, uint64(p.Props))
		h.Write([]byte{byte(p.Direction)})
		digestWriteF64(h, tmp, p.RefractoryTime)
		digestWriteF64(h, tmp, p.RefractoryTimer)
		digestWriteU64(h, tmp, uint64(int64(p.AssignedType)))
		digestWriteF64(h, tmp, p.RecipeQuantity)
		digestWriteU64(h, tmp, uint64(p.Connected))
		digestWriteU64(h, tmp, uint64(p.ConnectedPort))
	}
	digestWriteU64(h, tmp, uint64(len(m.Bins)))
	for _, b := range m.Bins {
		digestWriteU64(h, tmp, uint64(b.BinType))
		digestWriteF64(h, tmp, b.Capacity)
		digestWriteF64(h, tmp, b.Current)
	}
	digestPackets(h, tmp, m.Storage)
	digestPackets(h, tmp, m.Transfer)
	digestPackets(h, tmp, m.Inputs)
	digestPackets(h, tmp, m.Outputs)
}

func digestPackets(h hashWriter, tmp *[8]byte, ps []model.Packet) {
	digestWriteU64(h, tmp, uint64(len(ps)))
	for _, p := range ps {
		digestWriteU64(h, tmp, uint64(int64(p.Type)))
		digestWriteU64(h, tmp, uint64(p.Props))
		digestWriteF64(h, tmp, p.Quantity)
		digestWriteF64(h, tmp, p.Elapsed)
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
