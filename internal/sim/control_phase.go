package sim

import (
	"github.com/uflsim/engine/internal/engerr"
	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/network"
)

// controlPoll is phase 7: drain the control channel, acting on pause/
// resume/terminate immediately and handing update off to reload (spec.md
// §4.E phase 7, §4.G).
func (r *Run) controlPoll() {
	if r.ControlSource == nil {
		return
	}
	for {
		cmd, payload := r.ControlSource.Poll()
		switch cmd {
		case CmdNone:
			return
		case CmdPause:
			r.paused = true
		case CmdResume:
			r.paused = false
		case CmdTerminate:
			r.terminated = true
			return
		case CmdUpdate:
			if err := r.reload(payload); err != nil {
				r.terminated = true
				return
			}
		}
	}
}

// reload rebuilds the network from a freshly delivered description buffer
// and copies current run-time state element-wise into it at matching
// (population, cell, synapse-type) coordinates, aligning queues by (s+d)
// mod length (spec.md §4.G "U: ... preserving current state where the
// topology is unchanged").
func (r *Run) reload(payload []byte) error {
	desc, err := netdesc.LoadBuffer(payload)
	if err != nil {
		return engerr.Config("sim.reload", err)
	}
	next, err := network.Build(desc)
	if err != nil {
		return err
	}

	copyCellState(r.Graph, next)
	r.copyQueueState(next)

	r.Desc = desc
	r.Graph = next
	return nil
}

// copyCellState copies Vm/Theta/gating state into the new graph for every
// (population, cell) coordinate present in both.
func copyCellState(old, next *network.Graph) {
	for pi := range old.CellPops {
		if pi >= len(next.CellPops) {
			break
		}
		oldCp, nextCp := &old.CellPops[pi], &next.CellPops[pi]
		n := len(oldCp.Cells)
		if len(nextCp.Cells) < n {
			n = len(nextCp.Cells)
		}
		for ci := 0; ci < n; ci++ {
			src, dst := &oldCp.Cells[ci], &nextCp.Cells[ci]
			dst.Vm = src.Vm
			dst.VmPrev = src.VmPrev
			dst.Theta = src.Theta
			dst.NoiseExc = src.NoiseExc
			dst.NoiseInh = src.NoiseInh
			dst.BursterH = src.BursterH
		}
	}
}

// copyQueueState copies each matching arena slot's conductance/learning
// state and re-aligns its delay queue onto the new slot's (generally
// differently sized) queue by aligning on (s+d) mod length, since a queue
// entry at position (tick+delay) mod oldLen must land at (tick+delay) mod
// newLen in the rebuilt slot.
func (r *Run) copyQueueState(next *network.Graph) {
	for i := range r.Graph.Arena {
		old := &r.Graph.Arena[i]
		idx := next.SlotByKey(old.Key)
		if idx < 0 {
			continue
		}
		dst := next.Slot(idx)
		dst.G = old.G
		dst.LearnCurrent = old.LearnCurrent
		dst.History = old.History

		oldLen := len(old.Queue)
		newLen := len(dst.Queue)
		if oldLen == 0 || newLen == 0 {
			continue
		}
		for p := 0; p < oldLen; p++ {
			v := old.Queue[p]
			if v == 0 {
				continue
			}
			// p is (deliveryTick mod oldLen); every still-pending entry's
			// deliveryTick lies in [r.Tick, r.Tick+oldLen), so recover it
			// before re-aligning onto the new queue's length.
			deliveryTick := r.Tick + (((p - r.Tick) % oldLen) + oldLen) % oldLen
			dst.Queue[deliveryTick%newLen] += v
		}
	}
}
