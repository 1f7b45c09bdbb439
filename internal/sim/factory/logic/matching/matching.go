// Package matching holds the pure compatibility and capacity checks shared by
// every pipeline stage.
package matching

import (
	"logisim.dev/internal/sim/factory/kernel/model"
	"logisim.dev/internal/sim/props"
)

// AnyType is the wildcard packet type used by requirements.
const AnyType = 0

// IsCompatible reports whether the packet carries every bit the bin demands.
func IsCompatible(p model.Packet, b model.Bin) bool {
	return props.Satisfies(p.Props, b.BinType)
}

// BinFor returns the index of the first compatible bin, or -1.
func BinFor(p model.Packet, bins []model.Bin) int {
	for i := range bins {
		if IsCompatible(p, bins[i]) {
			return i
		}
	}
	return -1
}

// CapacityAvailable is the spare room of the first compatible bin, 0 when none.
func CapacityAvailable(p model.Packet, bins []model.Bin) float64 {
	i := BinFor(p, bins)
	if i < 0 {
		return 0
	}
	return bins[i].Capacity - bins[i].Current
}

// MatchesType is the wildcard-aware identity check without the quantity test.
func MatchesType(p, req model.Packet) bool {
	if req.Type == AnyType {
		return props.Satisfies(p.Props, req.Props)
	}
	return p.Type == req.Type
}

func MatchesRequirement(p, req model.Packet) bool {
	return MatchesType(p, req) && p.Quantity >= req.Quantity
}

// CleanBuffer drops emptied packets in place and returns the shortened slice.
func CleanBuffer(buf []model.Packet) []model.Packet {
	out := buf[:0]
	for _, p := range buf {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	for i := len(out); i < len(buf); i++ {
		buf[i] = model.Packet{}
	}
	return out
}

// Total sums the quantity held in buf.
func Total(buf []model.Packet) float64 {
	var n float64
	for _, p := range buf {
		n += p.Quantity
	}
	return n
}
