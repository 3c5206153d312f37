// Package network holds the runtime graph the builder (spec.md §4.B)
// derives from a netdesc.Description: cells, fibers, terminals, synapse
// slots, and their delay queues. None of these are resized once built,
// except a learning slot's history buffer, which may grow in place
// (spec.md §3 "Lifecycle").
package network

import "github.com/uflsim/engine/internal/netdesc"

// SlotKey addresses one synapse slot in the arena by its owning
// (population, cell, synapse-type) coordinate, per spec.md §9's cyclic-
// reference design note: terminals carry a stable arena index rather than
// a raw pointer, so mid-run reload can re-point them without chasing
// back-references.
type SlotKey struct {
	Pop  int
	Cell int
	Type int
}

// LearningEntry is one in-flight Hebbian coincidence record (spec.md §3).
// SenderPop == FreeSender marks a free slot in the growable pool.
type LearningEntry struct {
	SenderPop      int
	SenderTerminal int
	ReceiverTerm   int
	RemainingTicks int
}

// FreeSender marks a LearningEntry slot as returned to the free pool.
const FreeSender = -1

// SynapseSlot is a target cell's receiver object for all terminals bearing
// one synapse type (GLOSSARY).
type SynapseSlot struct {
	Key SlotKey

	Kind       netdesc.SynapseKind
	ParentType int // synapse-type index this slot's type modulates, if Kind is pre/post

	EQ  float64
	DCS float64

	G float64

	// Learning state (only meaningful when Kind == Learning on the
	// feeding normal's parent chain).
	LearnInitial float64
	LearnCurrent float64
	LearnMax     float64
	LearnDelta   float64
	LearnWindow  int
	History      []LearningEntry

	// Queue is the circular delay buffer, length MaxDelay+1 (spec.md §3
	// "Invariant: between ticks, q values are 0 ... or 1 ...").
	Queue []float64

	// ParentSlotIdx is the arena index of the Normal slot this pre/post
	// modulator slot acts on, resolved once at build time (spec.md §3
	// "cached indices").
	ParentSlotIdx int
	// PreSlotIdx/PostSlotIdx are the arena indices of the pre/post
	// modulator slots attached to this Normal slot, if any (at most one of
	// each, per spec.md §3 invariant).
	PreSlotIdx  int
	PostSlotIdx int
}

// HasPre reports whether this normal slot has an attached presynaptic
// modulator.
func (s *SynapseSlot) HasPre() bool { return s.PreSlotIdx >= 0 }

// HasPost reports whether this normal slot has an attached postsynaptic
// modulator.
func (s *SynapseSlot) HasPost() bool { return s.PostSlotIdx >= 0 }

// Terminal is one outgoing axonal endpoint (GLOSSARY).
type Terminal struct {
	Delay        int
	Strength     float64
	Disabled     bool
	TargetSlot   int // arena index
	LearnTerm    int // index into the target slot's learning-terminal numbering, or -1
}

// Cell is one cell instance. Per DESIGN.md decision #2, subtype-specific
// state is carried in named fields rather than overloading Vm/GK.
type Cell struct {
	Vm, VmPrev float64
	GK         float64
	Theta      float64

	NoiseExc, NoiseInh float64
	SpikeFlag          bool

	// Burster-specific gating variable.
	BursterH float64

	// PSR-specific probability accumulator.
	PSRProb float64

	// incoming slots, in arena-index order, resolved at build time.
	IncomingSlots []int

	// outgoing terminals of all the target records this cell's population
	// has, in one flat list.
	Terminals []Terminal
}

// Fiber is one fiber instance.
type Fiber struct {
	EventFlag bool

	// Afferent state.
	Sample     float64
	PrevSample float64

	// Electric-stimulus state.
	NextStim int

	Terminals []Terminal
}

// CellPop is the runtime wrapper around a netdesc.CellPopulation.
type CellPop struct {
	Desc  *netdesc.CellPopulation
	Cells []Cell

	// InjectedG is the per-tick conductance bias derived from evaluating
	// Desc.InjectedExpr against the current lung volume (spec.md §4.E
	// phase 1), applied to every cell in the population against EqRef.
	InjectedG float64

	// spikeHistory is a ring buffer of per-tick total spike counts across
	// the population, used by FiringRateHz to report the binned firing
	// rate the phrenic/lumbar motor formulas and the plot channel's
	// "binned firing rate" variable both need (original_source/lung.c's
	// lmmfr-scaled rate; see SPEC_FULL.md §3 supplement).
	spikeHistory []int
	histPos      int
}

// RecordTickSpikes appends this tick's total spike count to the
// population's rolling history, sized to cap ticks (spec.md §4.E phase 5's
// "binned window").
func (p *CellPop) RecordTickSpikes(count, cap int) {
	if cap <= 0 {
		return
	}
	if len(p.spikeHistory) < cap {
		p.spikeHistory = append(p.spikeHistory, count)
		return
	}
	p.spikeHistory[p.histPos%cap] = count
	p.histPos++
}

// FiringRateHz reports the population's mean per-cell firing rate over the
// last window ticks of dtMs each, in spikes/second/cell.
func (p *CellPop) FiringRateHz(window int, dtMs float64) float64 {
	n := len(p.spikeHistory)
	if n == 0 || len(p.Cells) == 0 {
		return 0
	}
	if window > n {
		window = n
	}
	var sum int
	for i := 0; i < window; i++ {
		sum += p.spikeHistory[(p.histPos%n+n-1-i)%n]
	}
	seconds := float64(window) * dtMs / 1000.0
	if seconds <= 0 {
		return 0
	}
	return float64(sum) / float64(len(p.Cells)) / seconds
}

// FiberPop is the runtime wrapper around a netdesc.FiberPopulation.
type FiberPop struct {
	Desc   *netdesc.FiberPopulation
	Fibers []Fiber
	Seed   int64
}

// Graph is the complete runtime network the builder produces.
type Graph struct {
	Desc *netdesc.Description

	CellPops  []CellPop
	FiberPops []FiberPop

	// Arena holds every materialized synapse slot, addressed by stable
	// index; Terminal.TargetSlot is an index into this slice.
	Arena []SynapseSlot
	index map[SlotKey]int
}

// SlotByKey returns the arena index for key, or -1 if not materialized.
func (g *Graph) SlotByKey(k SlotKey) int {
	if g.index == nil {
		return -1
	}
	if idx, ok := g.index[k]; ok {
		return idx
	}
	return -1
}

// Slot returns a pointer to the arena slot at idx.
func (g *Graph) Slot(idx int) *SynapseSlot { return &g.Arena[idx] }
