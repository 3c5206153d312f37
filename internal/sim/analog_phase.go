package sim

import "github.com/uflsim/engine/internal/netdesc"

// analogClampBits is the packed word's value width (spec.md §4.F "12-bit
// value").
const analogClampBits = 12

// analogEmission is phase 6: count this tick's spikes across the configured
// analog-pool population, apply the scale factor and exponential decay,
// clamp to the 12-bit range, and emit (spec.md §4.E phase 6).
func (r *Run) analogEmission() {
	if r.analogPop <= 0 || r.EventSink == nil {
		return
	}
	if r.analogPop > len(r.Graph.CellPops) {
		return
	}
	cp := &r.Graph.CellPops[r.analogPop-1]

	var spikes int
	for ci := range cp.Cells {
		if cp.Cells[ci].SpikeFlag {
			spikes++
		}
	}

	decay := netdesc.DecayFactor(r.Desc.Global.DtMs, r.analogTauMs)
	r.analogAccum = r.analogAccum*decay + float64(spikes)*r.analogScale

	r.EventSink.EmitAnalog(r.analogChannel, clampAnalog(r.analogAccum), r.Tick)
}

// clampAnalog saturates v to the signed 12-bit range the packed word format
// uses.
func clampAnalog(v float64) int {
	const max = 1<<(analogClampBits-1) - 1
	const min = -(1 << (analogClampBits - 1))
	i := int(v + 0.5)
	if i > max {
		return max
	}
	if i < min {
		return min
	}
	return i
}
