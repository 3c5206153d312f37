package sim

import (
	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/network"
)

// synapseAdvance is phase 4: consume each arena slot's queued contribution
// into its conductance, applying the presynaptic/postsynaptic modulator
// triple where present, then run the Hebbian learning-history update
// (spec.md §4.E phase 4).
func (r *Run) synapseAdvance() {
	for i := range r.Graph.Arena {
		slot := &r.Graph.Arena[i]
		if slot.Kind == netdesc.PresynapticModulator || slot.Kind == netdesc.PostsynapticModulator {
			continue // advanced alongside their parent below
		}
		r.advanceSlot(slot)
	}
	r.advanceLearning()
}

// advanceSlot consumes one normal (or learning) slot's current queue entry
// into G, first advancing its presynaptic modulator (if any and enabled) and
// scaling the incoming contribution by that modulator's updated G, then
// advancing its postsynaptic modulator (if any) identically but
// independently (spec.md §4.E phase 4, §9 "presynaptic triple").
func (r *Run) advanceSlot(slot *network.SynapseSlot) {
	q, ok := r.popQueue(slot)
	if !ok {
		return
	}
	if r.Desc.Global.Presynaptic && slot.HasPre() {
		pre := r.Graph.Slot(slot.PreSlotIdx)
		r.advanceModulator(pre)
		q *= pre.G
	}
	slot.G = slot.G*slot.DCS + q
	if slot.HasPost() {
		r.advanceModulator(r.Graph.Slot(slot.PostSlotIdx))
	}
}

// advanceModulator consumes a pre/postsynaptic modulator slot's own queue
// entry into its own G, independent of whatever normal slot it modulates.
func (r *Run) advanceModulator(slot *network.SynapseSlot) {
	q, ok := r.popQueue(slot)
	if !ok {
		return
	}
	slot.G = slot.G*slot.DCS + q
}

// popQueue reads and clears the slot's queue entry for the current tick.
func (r *Run) popQueue(slot *network.SynapseSlot) (float64, bool) {
	n := len(slot.Queue)
	if n == 0 {
		return 0, false
	}
	idx := r.Tick % n
	q := slot.Queue[idx]
	slot.Queue[idx] = 0
	return q, true
}

// advanceLearning walks every learning slot's pending-coincidence history,
// counting each entry down to arrival. When an entry's count reaches zero,
// LearnCurrent is nudged toward LearnMax (reinforced) if the postsynaptic
// cell spiked on that same tick, and toward LearnInitial (decayed)
// otherwise; postsynaptic spikes on earlier ticks of the learning window are
// not counted (spec.md §4.E phase 4 "Hebbian update").
func (r *Run) advanceLearning() {
	for i := range r.Graph.Arena {
		slot := &r.Graph.Arena[i]
		if slot.Kind != netdesc.Learning || len(slot.History) == 0 {
			continue
		}
		postSpiked := r.postCellSpiked(slot.Key)
		for hi := range slot.History {
			entry := &slot.History[hi]
			if entry.SenderPop == network.FreeSender {
				continue
			}
			entry.RemainingTicks--
			if entry.RemainingTicks > 0 {
				continue
			}
			if postSpiked {
				slot.LearnCurrent += slot.LearnDelta * (slot.LearnMax - slot.LearnCurrent)
			} else {
				slot.LearnCurrent += slot.LearnDelta * (slot.LearnInitial - slot.LearnCurrent)
			}
			entry.SenderPop = network.FreeSender
		}
	}
}

// postCellSpiked reports whether the cell owning key's synapse slot fired
// this tick, per phase 2's SpikeFlag (synapseAdvance always runs after
// cellUpdate within the same Step call, so the flag still reflects the
// current tick).
func (r *Run) postCellSpiked(key network.SlotKey) bool {
	if key.Pop < 1 || key.Pop > len(r.Graph.CellPops) {
		return false
	}
	cp := &r.Graph.CellPops[key.Pop-1]
	if key.Cell < 0 || key.Cell >= len(cp.Cells) {
		return false
	}
	return cp.Cells[key.Cell].SpikeFlag
}
