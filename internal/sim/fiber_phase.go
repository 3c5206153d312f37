package sim

import (
	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/network"
)

// fiberUpdate is phase 3: for every fiber population whose active window
// contains the current tick, dispatch by subtype and deliver terminals for
// any fiber that fires (spec.md §4.E phase 3 "Stochastic ... Electric-
// stimulus ... Afferent").
func (r *Run) fiberUpdate() error {
	for pi := range r.Graph.FiberPops {
		fp := &r.Graph.FiberPops[pi]
		desc := fp.Desc
		if r.Tick < desc.TStart || r.Tick >= desc.TStop {
			continue
		}

		switch desc.Subtype {
		case netdesc.ElectricStimulus:
			r.updateElectricStimulus(pi, fp)
		case netdesc.Afferent:
			if err := r.updateAfferent(pi, fp); err != nil {
				return err
			}
		default: // Stochastic
			r.updateStochastic(pi, fp)
		}
	}
	return nil
}

// updateStochastic draws one uniform sample per fiber and fires it against
// the population's fixed probability (spec.md §4.E phase 3 "Stochastic").
func (r *Run) updateStochastic(popIdx int, fp *network.FiberPop) {
	stream := r.fiberDraw[popIdx]
	for fi := range fp.Fibers {
		fiber := &fp.Fibers[fi]
		fiber.EventFlag = stream.BoolP(fp.Desc.Prob)
		if fiber.EventFlag {
			r.deliverFromFiber(popIdx, fi, fiber)
		}
	}
}

// updateElectricStimulus fires every fiber in the population in lockstep
// whenever the tick counter reaches the scheduled next-stimulus tick, then
// reschedules by the fixed period 1/freq_hz, optionally jittered within
// fuzz_ticks (spec.md §4.E phase 3 "Electric-stimulus").
func (r *Run) updateElectricStimulus(popIdx int, fp *network.FiberPop) {
	desc := fp.Desc
	if desc.FreqHz <= 0 {
		return
	}
	periodTicks := (1000.0 / desc.FreqHz) / r.Desc.Global.DtMs
	stream := r.fiberDraw[popIdx]
	for fi := range fp.Fibers {
		fiber := &fp.Fibers[fi]
		fiber.EventFlag = r.Tick >= fiber.NextStim
		if !fiber.EventFlag {
			continue
		}
		r.deliverFromFiber(popIdx, fi, fiber)

		next := periodTicks
		if desc.FuzzTicks > 0 {
			next += float64(stream.UniformRange(-float64(desc.FuzzTicks), float64(desc.FuzzTicks)))
		}
		if next < 1 {
			next = 1
		}
		fiber.NextStim = r.Tick + int(next+0.5)
	}
}

// updateAfferent pulls this tick's resampled external signal, remaps it to
// a firing probability, and rolls one uniform draw per fiber against that
// probability (spec.md §4.E phase 3 "Afferent").
func (r *Run) updateAfferent(popIdx int, fp *network.FiberPop) error {
	src := r.afferents[popIdx]
	if src == nil {
		return nil
	}
	sample, ok := src.Next(r.Tick)
	if !ok {
		return nil
	}
	prob := src.Remap(sample)
	stream := r.fiberDraw[popIdx]
	for fi := range fp.Fibers {
		fiber := &fp.Fibers[fi]
		fiber.PrevSample = fiber.Sample
		fiber.Sample = sample
		fiber.EventFlag = stream.BoolP(prob)
		if fiber.EventFlag {
			r.deliverFromFiber(popIdx, fi, fiber)
		}
	}
	return nil
}

// deliverFromFiber performs the same terminal delivery a spiking cell does
// (spec.md §4.E phase 3's "same delivery mechanism as phase 2"), plus a
// fiber event on any configured channel.
func (r *Run) deliverFromFiber(popIdx, fiberIdx int, fiber *network.Fiber) {
	for ti := range fiber.Terminals {
		term := &fiber.Terminals[ti]
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
			r.recordLearning(term.TargetSlot, -(popIdx + 1), ti, term.Delay)
		}
	}
	if ch, ok := r.fiberChannel[network.SlotKey{Pop: -(popIdx + 1), Cell: fiberIdx}]; ok && r.EventSink != nil {
		r.EventSink.EmitSpike(ch, r.Tick)
	}
}
