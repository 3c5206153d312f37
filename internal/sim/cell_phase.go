package sim

import (
	"math"

	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/network"
)

// noiseFireProb and noiseTauMs govern the gaussian noise conductance's two
// independent per-tick chance draws against a fixed low firing probability,
// per spec.md §4.E phase 2 "two independent chance draws per tick against
// fixed low firing probability and exponential decay between ticks".
const (
	noiseFireProb = 0.01
	noiseTauMs    = 5.0
)

// cellUpdate is phase 2: dispatched once per population (spec.md §9
// "Heterogeneous cell/fiber behavior ... dispatch once per population
// outside the cell loop"), not per cell per tick.
func (r *Run) cellUpdate() {
	dt := r.Desc.Global.DtMs
	for pi := range r.Graph.CellPops {
		cp := &r.Graph.CellPops[pi]
		var spikesThisTick int
		for ci := range cp.Cells {
			cell := &cp.Cells[ci]
			cell.SpikeFlag = false

			if !r.noNoise && cp.Desc.NoiseAmp > 0 {
				r.applyNoise(cp, cell, pi)
			}
			gNet, drive, psrProb := r.sumConductances(cp, cell, pi)
			cell.GK = gNet
			cell.PSRProb = psrProb

			switch cp.Desc.Subtype {
			case netdesc.Burster:
				r.updateBurster(cp, cell, dt, gNet, drive)
			case netdesc.PSR:
				r.updatePSR(cp, cell, dt, pi, psrProb)
			default: // Standard, Phrenic, Lumbar, *Laryngeal share the leaky-integrator dynamics.
				r.updateStandard(cp, cell, dt, gNet, drive)
			}

			if cell.SpikeFlag {
				spikesThisTick++
				r.deliverFromCell(pi, ci, cell)
			}
		}
		cp.RecordTickSpikes(spikesThisTick, firingRateWindowTicks)
	}
}

// sumConductances accumulates each cell's incoming synapse contributions
// (plus the persistent noise conductances applyNoise maintains) into this
// tick's net conductance and drive. It returns the totals rather than
// storing them on the cell, so the noise accumulators it reads stay the
// only thing that persists across ticks.
func (r *Run) sumConductances(cp *network.CellPop, cell *network.Cell, popIdx int) (gNet, drive, psrProb float64) {
	gNet += r.Desc.Global.Gm0
	drive += r.Desc.Global.Gm0 * r.Desc.Global.EqRef
	if cp.InjectedG != 0 {
		gNet += cp.InjectedG
		drive += cp.InjectedG * r.Desc.Global.EqRef
	}
	if cell.NoiseExc != 0 {
		gNet += cell.NoiseExc
		drive += cell.NoiseExc * r.Desc.Global.EqRef
	}
	if cell.NoiseInh != 0 {
		gNet += cell.NoiseInh
		drive += cell.NoiseInh * r.Desc.Global.EqRef
	}

	presynaptic := r.Desc.Global.Presynaptic
	for _, slotIdx := range cell.IncomingSlots {
		slot := r.Graph.Slot(slotIdx)
		if slot.Kind != netdesc.Normal {
			continue
		}
		g := slot.G
		if presynaptic && slot.HasPost() {
			g *= r.Graph.Slot(slot.PostSlotIdx).G
		}
		gNet += g
		drive += g * slot.EQ
		if cp.Desc.Subtype == netdesc.PSR {
			psrProb += (1 - slot.DCS) * g
		}
	}
	return gNet, drive, psrProb
}

// applyNoise decays the cell's persistent noise conductances from the
// previous tick and then rolls two independent chance draws to add a fresh
// excitatory/inhibitory increment (spec.md §4.E phase 2).
func (r *Run) applyNoise(cp *network.CellPop, cell *network.Cell, popIdx int) {
	decay := netdesc.DecayFactor(r.Desc.Global.DtMs, noiseTauMs)
	cell.NoiseExc *= decay
	cell.NoiseInh *= decay

	stream := r.cellNoise[popIdx]
	if stream.BoolP(noiseFireProb) {
		cell.NoiseExc += cp.Desc.NoiseAmp
	}
	if stream.BoolP(noiseFireProb) {
		cell.NoiseInh -= cp.Desc.NoiseAmp
	}
}

// updateStandard advances Vm by a one-step exponential solution of the
// linearized RC equation using the summed conductances, and relaxes Θ
// toward Θ0 + accommodation·(Vm−Vm0) with factor DCTH (spec.md §4.E phase
// 2 "Standard").
func (r *Run) updateStandard(cp *network.CellPop, cell *network.Cell, dt, gNet, drive float64) {
	if gNet <= 0 {
		gNet = r.Desc.Global.Gm0
	}
	vinf := drive / gNet
	tau := cp.Desc.TauM / gNet
	decay := netdesc.DecayFactor(dt, tau)
	cell.VmPrev = cell.Vm
	cell.Vm = vinf + (cell.Vm-vinf)*decay

	vt := cp.Desc.Theta0 + cp.Desc.Accommodation*(cell.Vm-r.Desc.Global.Vm0)
	dcth := netdesc.DecayFactor(dt, cp.Desc.TauTh)
	cell.Theta = vt + (cell.Theta-vt)*dcth

	if cell.Vm >= cell.Theta {
		cell.SpikeFlag = true
	}
}

// updateBurster integrates a voltage-dependent gating variable h and adds a
// persistent-sodium drive term before the same one-step exponential update
// (spec.md §4.E phase 2 "Burster"). Reuses Accommodation as the persistent-
// sodium conductance gain, since burster populations have no use for the
// standard subtype's accommodation term.
func (r *Run) updateBurster(cp *network.CellPop, cell *network.Cell, dt, gNet, drive float64) {
	const eNa = 50.0
	mInf := 1 / (1 + math.Exp(-(cell.Vm-cp.Desc.Theta0)/5))
	hInf := 1 / (1 + math.Exp((cell.Vm-cp.Desc.Theta0)/5))
	tauH := cp.Desc.TauK
	cell.BursterH = hInf + (cell.BursterH-hInf)*netdesc.DecayFactor(dt, tauH)

	gNaP := cp.Desc.Accommodation
	iNaP := gNaP * mInf * cell.BursterH * (eNa - cell.Vm)

	if gNet <= 0 {
		gNet = r.Desc.Global.Gm0
	}
	vinf := (drive + iNaP) / gNet
	tau := cp.Desc.TauM / gNet
	cell.VmPrev = cell.Vm
	cell.Vm = vinf + (cell.Vm-vinf)*netdesc.DecayFactor(dt, tau)

	if cell.Vm >= cp.Desc.Theta0 {
		cell.SpikeFlag = true
	}
}

// updatePSR implements the probabilistic-spike-response subtype: Vm relaxes
// toward its accumulated probability term with a decay chosen by whether Vm
// is currently below that probability (spec.md §4.E phase 2 "PSR").
func (r *Run) updatePSR(cp *network.CellPop, cell *network.Cell, dt float64, popIdx int, prob float64) {
	var dc float64
	if cell.Vm < prob {
		dc = netdesc.DecayFactor(dt, cp.Desc.TauTh)
	} else {
		dc = netdesc.DecayFactor(dt, cp.Desc.TauM)
	}
	cell.VmPrev = cell.Vm
	cell.Vm = (cell.Vm-prob)*dc + prob

	if cell.Vm > cell.Theta {
		stream := r.cellNoise[popIdx]
		if stream.Uniform() <= cell.Vm-cell.Theta {
			cell.SpikeFlag = true
		}
	}
}

// deliverFromCell performs the terminal delivery spec.md §4.E phase 2
// describes for a spiking cell: additive (or learned/pre-post) strength
// into each target slot's queue, a learning-history record where either
// side is a learning participant, and a spike event for any configured
// channel.
func (r *Run) deliverFromCell(popIdx, cellIdx int, cell *network.Cell) {
	for ti := range cell.Terminals {
		term := &cell.Terminals[ti]
		if term.Disabled {
			continue
		}
		slot := r.Graph.Slot(term.TargetSlot)
		strength := term.Strength
		if slot.Kind == netdesc.Learning {
			strength = slot.LearnCurrent
		}
		r.deliver(term.TargetSlot, term.Delay, strength)
		if slot.Kind == netdesc.Learning {
			r.recordLearning(term.TargetSlot, popIdx, ti, term.Delay)
		}
	}
	if ch, ok := r.spikeChannel[network.SlotKey{Pop: popIdx + 1, Cell: cellIdx}]; ok && r.EventSink != nil {
		r.EventSink.EmitSpike(ch, r.Tick)
	}
}
