package network

import (
	"fmt"

	"github.com/uflsim/engine/internal/engerr"
	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/rng"
)

// Build constructs the runtime Graph from a network description, following
// the five-step procedure of spec.md §4.B.
func Build(d *netdesc.Description) (*Graph, error) {
	g := &Graph{Desc: d, index: make(map[SlotKey]int)}

	// Step 1: allocate cell populations, init Vm/Theta.
	g.CellPops = make([]CellPop, len(d.CellPops))
	for pi := range d.CellPops {
		cp := &d.CellPops[pi]
		rt := CellPop{Desc: cp, Cells: make([]Cell, cp.Count)}
		seed := rng.ThresholdSeed(pi)
		stream := rng.NewStream(seed)
		for ci := range rt.Cells {
			rt.Cells[ci].Vm = d.Global.Vm0
			rt.Cells[ci].VmPrev = d.Global.Vm0
			rt.Cells[ci].Theta = cp.Theta0 + stream.Gaussian(0, cp.Theta0SD)
		}
		g.CellPops[pi] = rt
	}

	g.FiberPops = make([]FiberPop, len(d.FiberPops))
	for fi := range d.FiberPops {
		fp := &d.FiberPops[fi]
		seed := fp.Seed
		if seed == 0 {
			seed = rng.ThresholdSeed(len(d.CellPops) + fi)
		}
		rt := FiberPop{Desc: fp, Fibers: make([]Fiber, fp.Count), Seed: seed}
		for i := range rt.Fibers {
			switch fp.Subtype {
			case netdesc.ElectricStimulus:
				rt.Fibers[i].NextStim = firstStimTick(fp)
			}
		}
		g.FiberPops[fi] = rt
	}

	// Step 2: enumerate terminals for every source population's target
	// records, drawing receiver/delay per the legacy LCG protocol.
	type pending struct {
		srcIsCell  bool
		srcPop     int
		srcCell    int
		tr         *netdesc.TargetRecord
		termIdx    int
		receiver   int
		delay      int
	}
	var all []pending

	for pi := range d.CellPops {
		cp := &d.CellPops[pi]
		for ti := range cp.Targets {
			tr := &cp.Targets[ti]
			if err := validateTarget(tr, len(d.CellPops)); err != nil {
				return nil, err
			}
			for ci := 0; ci < cp.Count; ci++ {
				stream := rng.NewLCGStream(ci, tr.WiringSeed)
				receiverPop := tr.ReceiverPop
				receiverCount := d.CellPops[receiverPop-1].Count
				special := tr.NumTerminals == tr.NCT-tr.MCT
				for t := 0; t < tr.NumTerminals; t++ {
					uReceiver := stream.Uniform()
					uDelayCandidate := stream.Uniform() // see Open Question below
					_ = stream.Uniform()                // legacy reserved draw, never remove (spec.md §4.B step 2, §9)
					receiver := int(uReceiver * float64(receiverCount))
					if receiver >= receiverCount {
						receiver = receiverCount - 1
					}
					var delay int
					if special {
						delay = tr.MCT + t
					} else {
						// Open Question (spec.md §9): the candidate delay
						// computed above is discarded and a fresh draw
						// taken; preserved verbatim, not "fixed".
						uDelayFinal := stream.Uniform()
						_ = uDelayCandidate
						span := tr.NCT - tr.MCT + 1
						delay = tr.MCT + int(uDelayFinal*float64(span))
						if delay > tr.NCT {
							delay = tr.NCT
						}
					}
					all = append(all, pending{
						srcIsCell: true, srcPop: pi, srcCell: ci,
						tr: tr, termIdx: t, receiver: receiver, delay: delay,
					})
				}
			}
		}
	}

	for fi := range d.FiberPops {
		fp := &d.FiberPops[fi]
		for ti := range fp.Targets {
			tr := &fp.Targets[ti]
			if err := validateTarget(tr, len(d.CellPops)); err != nil {
				return nil, err
			}
			for ci := 0; ci < fp.Count; ci++ {
				stream := rng.NewLCGStream(ci, tr.WiringSeed)
				receiverPop := tr.ReceiverPop
				receiverCount := d.CellPops[receiverPop-1].Count
				special := tr.NumTerminals == tr.NCT-tr.MCT
				for t := 0; t < tr.NumTerminals; t++ {
					uReceiver := stream.Uniform()
					uDelayCandidate := stream.Uniform()
					_ = stream.Uniform()
					receiver := int(uReceiver * float64(receiverCount))
					if receiver >= receiverCount {
						receiver = receiverCount - 1
					}
					var delay int
					if special {
						delay = tr.MCT + t
					} else {
						uDelayFinal := stream.Uniform()
						_ = uDelayCandidate
						span := tr.NCT - tr.MCT + 1
						delay = tr.MCT + int(uDelayFinal*float64(span))
						if delay > tr.NCT {
							delay = tr.NCT
						}
					}
					all = append(all, pending{
						srcIsCell: false, srcPop: fi, srcCell: ci,
						tr: tr, termIdx: t, receiver: receiver, delay: delay,
					})
				}
			}
		}
	}

	// First pass: discover every (target-cell, synapse-type) pair touched,
	// and the max delay feeding it.
	maxDelay := make(map[SlotKey]int)
	for _, p := range all {
		key := SlotKey{Pop: p.tr.ReceiverPop, Cell: p.receiver, Type: p.tr.SynapseType}
		if cur, ok := maxDelay[key]; !ok || p.delay > cur {
			maxDelay[key] = p.delay
		}
	}
	for key, md := range maxDelay {
		st := d.SynapseByIndex(key.Type)
		if st == nil {
			return nil, engerr.Semantic("network.Build", fmt.Errorf("synapse type %d referenced but not defined", key.Type))
		}
		slot := SynapseSlot{
			Key:           key,
			Kind:          st.Kind,
			ParentType:    st.ParentType,
			EQ:            st.EQ,
			DCS:           st.DCS(d.Global.DtMs),
			Queue:         make([]float64, md+1),
			ParentSlotIdx: -1,
			PreSlotIdx:    -1,
			PostSlotIdx:   -1,
			LearnMax:      st.LearnMax,
			LearnDelta:    st.LearnDelta,
			LearnWindow:   st.LearnW,
		}
		idx := len(g.Arena)
		g.Arena = append(g.Arena, slot)
		g.index[key] = idx
	}

	// Second pass: attach terminals to their resolved slot, and wire
	// cells' IncomingSlots lists.
	incomingSeen := make(map[SlotKey]bool)
	for _, p := range all {
		key := SlotKey{Pop: p.tr.ReceiverPop, Cell: p.receiver, Type: p.tr.SynapseType}
		slotIdx := g.index[key]
		term := Terminal{
			Delay:      p.delay,
			Strength:   p.tr.Strength,
			TargetSlot: slotIdx,
			LearnTerm:  -1,
		}
		if p.srcIsCell {
			cell := &g.CellPops[p.srcPop].Cells[p.srcCell]
			cell.Terminals = append(cell.Terminals, term)
		} else {
			fib := &g.FiberPops[p.srcPop].Fibers[p.srcCell]
			fib.Terminals = append(fib.Terminals, term)
		}
		if !incomingSeen[key] {
			incomingSeen[key] = true
			g.CellPops[key.Pop-1].Cells[key.Cell].IncomingSlots = append(
				g.CellPops[key.Pop-1].Cells[key.Cell].IncomingSlots, slotIdx)
		}
	}

	// Resolve pre/post modulator <-> normal cross-references within each
	// (pop, cell) coordinate (spec.md §3 "cached indices").
	byCellType := make(map[[2]int]map[int]int) // (pop,cell) -> type -> arena idx
	for idx := range g.Arena {
		s := &g.Arena[idx]
		key := [2]int{s.Key.Pop, s.Key.Cell}
		m, ok := byCellType[key]
		if !ok {
			m = make(map[int]int)
			byCellType[key] = m
		}
		m[s.Key.Type] = idx
	}
	for idx := range g.Arena {
		s := &g.Arena[idx]
		if s.Kind != netdesc.PresynapticModulator && s.Kind != netdesc.PostsynapticModulator {
			continue
		}
		m := byCellType[[2]int{s.Key.Pop, s.Key.Cell}]
		parentIdx, ok := m[s.ParentType]
		if !ok {
			return nil, engerr.Semantic("network.Build", fmt.Errorf(
				"synapse type %d (pre/post) at pop %d cell %d has no normal parent %d materialized",
				s.Key.Type, s.Key.Pop, s.Key.Cell, s.ParentType))
		}
		s.ParentSlotIdx = parentIdx
		parent := &g.Arena[parentIdx]
		if s.Kind == netdesc.PresynapticModulator {
			parent.PreSlotIdx = idx
		} else {
			parent.PostSlotIdx = idx
		}
	}

	return g, nil
}

func validateTarget(tr *netdesc.TargetRecord, numCellPops int) error {
	if tr.ReceiverPop < 1 || tr.ReceiverPop > numCellPops {
		return engerr.Semantic("network.Build", fmt.Errorf("target record references out-of-range receiver population %d", tr.ReceiverPop))
	}
	if tr.MCT < 0 || tr.MCT > tr.NCT {
		return engerr.Semantic("network.Build", fmt.Errorf("target record has invalid conduction range [%d,%d]", tr.MCT, tr.NCT))
	}
	if tr.NumTerminals < 0 {
		return engerr.Semantic("network.Build", fmt.Errorf("target record has negative terminal count"))
	}
	return nil
}

// firstStimTick returns the first scheduled tick for an electric-stimulus
// fiber: the start of its stimulus window (spec.md §4.B step 5).
func firstStimTick(fp *netdesc.FiberPopulation) int {
	return fp.TStart
}
