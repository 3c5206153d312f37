package sim

import (
	"fmt"
	"time"

	"github.com/uflsim/engine/internal/afferent"
	"github.com/uflsim/engine/internal/engerr"
	"github.com/uflsim/engine/internal/formula"
	"github.com/uflsim/engine/internal/lung"
	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/network"
	"github.com/uflsim/engine/internal/rng"
)

// firingRateWindowTicks is the binned window used for the phrenic/lumbar
// drive formulas and the "binned firing rate" plot variable.
const firingRateWindowTicks = 40

// lmmfr is the reference maximum firing rate (spikes/s/cell) original_source
// /lung.c's paramgen() normalizes motor pool rates against before they drive
// the mechanical model (see notes100128 referenced there).
const lmmfr = 40.0

// Run holds everything the tick loop needs: the built network, the
// per-population randomness streams, and the optional output/control
// sinks. Grounded on spec.md §9 "Globals": a run-context value passed
// explicitly rather than the original's process-wide singleton.
type Run struct {
	Desc  *netdesc.Description
	Graph *network.Graph

	Formulas      *formula.Cache
	Lung          *lung.Subsystem
	lastLungState lung.State

	cellNoise  []*rng.Stream
	fiberDraw  []*rng.Stream
	afferents  []*afferent.Source // indexed by fiber population; nil where not afferent

	PlotSink      PlotSink
	EventSink     EventSink
	ControlSource ControlSource

	plotChannels []PlotChannelSpec
	spikeChannel map[network.SlotKey]int // (pop,cell) -> event channel, cells only
	fiberChannel map[network.SlotKey]int

	Tick       int
	NSteps     int
	paused     bool
	terminated bool

	noNoise bool

	// Analog pool emission (phase 6, spec.md §4.E phase 6), configured via
	// WithAnalogPool; analogPop == 0 means disabled.
	analogPop     int
	analogChannel int
	analogScale   float64
	analogTauMs   float64
	analogAccum   float64
}

// PlotChannelSpec names one subscribed plot channel (spec.md §6's
// "pop,cell,variable[,type[,scale,spike]],label").
type PlotChannelSpec struct {
	Pop, Cell int
	Variable  int // spec.md §6 plot-channel variable codes
	Scale     float64
}

// NewRun constructs a run context over an already-built graph.
func NewRun(desc *netdesc.Description, g *network.Graph) *Run {
	r := &Run{
		Desc:     desc,
		Graph:    g,
		Formulas: formula.NewCache(),
		NSteps:   desc.Global.NSteps,
	}
	if desc.Global.LungEnabled {
		mass := desc.Lung.BodyMassKg
		if mass <= 0 {
			mass = 70
		}
		r.Lung = lung.New(mass, desc.Global.BabyLung || desc.Lung.BabyLung)
	}
	r.cellNoise = make([]*rng.Stream, len(g.CellPops))
	for i, cp := range g.CellPops {
		seed := cp.Desc.NoiseSeed
		if seed == 0 {
			seed = rng.ThresholdSeed(len(g.CellPops) + i + 1000)
		}
		r.cellNoise[i] = rng.NewStream(seed)
	}
	r.fiberDraw = make([]*rng.Stream, len(g.FiberPops))
	for i, fp := range g.FiberPops {
		r.fiberDraw[i] = rng.NewStream(fp.Seed)
	}
	r.afferents = make([]*afferent.Source, len(g.FiberPops))
	return r
}

// WithNoNoise disables membrane noise conductances (CLI --nonoise).
func (r *Run) WithNoNoise(v bool) *Run { r.noNoise = v; return r }

// WithPlotChannels subscribes the run script's plot-channel list for
// phase-5 plot emission (spec.md §6 "pop,cell,variable[,type[,scale,spike]]
// ,label").
func (r *Run) WithPlotChannels(channels []PlotChannelSpec) *Run {
	r.plotChannels = channels
	return r
}

// WithSpikeChannels subscribes the run script's event-table channel list:
// cellChannels/fiberChannels map a (pop,cell) coordinate to its event-table
// channel index (spec.md §6 "C|F pop,cell").
func (r *Run) WithSpikeChannels(cellChannels, fiberChannels map[network.SlotKey]int) *Run {
	r.spikeChannel = cellChannels
	r.fiberChannel = fiberChannels
	return r
}

// WithAnalogPool enables phase 6's analog channel: spikes across pop
// (1-based) are counted each tick, scaled, and exponentially decayed onto
// channel (spec.md §6 run-script "analog-pool output" parameters).
func (r *Run) WithAnalogPool(pop, channel int, scale, tauMs float64) *Run {
	r.analogPop = pop
	r.analogChannel = channel
	r.analogScale = scale
	r.analogTauMs = tauMs
	return r
}

// OpenAfferents opens the external source file for every afferent fiber
// population, per spec.md §4.C's open(path) contract. Kept separate from
// network.Build so the builder stays free of file I/O.
func (r *Run) OpenAfferents() error {
	for i, fp := range r.Graph.FiberPops {
		if fp.Desc.Subtype != netdesc.Afferent {
			continue
		}
		src, err := afferent.Open(fp.Desc.SourcePath, r.Desc.Global.DtMs, fp.Desc)
		if err != nil {
			return err
		}
		r.afferents[i] = src
	}
	return nil
}

// Step advances the simulation by exactly one tick, running the seven
// ordered phases of spec.md §4.E.
func (r *Run) Step() error {
	if r.Desc.Global.LungEnabled {
		if err := r.lungAdvance(); err != nil {
			return err
		}
	}
	r.cellUpdate()
	if err := r.fiberUpdate(); err != nil {
		return err
	}
	r.synapseAdvance()
	r.plotEmission()
	r.analogEmission()
	r.controlPoll()
	r.Tick++
	return nil
}

// RunToCompletion steps the simulation nsteps times, honoring pause/resume/
// terminate from the control channel (spec.md §4.G, §5).
func (r *Run) RunToCompletion(nsteps int) error {
	for r.Tick < nsteps {
		if r.terminated {
			return nil
		}
		for r.paused && !r.terminated {
			time.Sleep(500 * time.Millisecond)
			r.controlPoll()
		}
		if r.terminated {
			return nil
		}
		if err := r.Step(); err != nil {
			return err
		}
	}
	return nil
}

// deliver adds contribution w into slot's queue at tick s+delay, the
// mechanism every spiking cell and firing fiber uses (spec.md §4.E phase
// 2/3 "On spike/fire ... add its strength into its target slot's q").
func (r *Run) deliver(slotIdx, delay int, w float64) {
	slot := r.Graph.Slot(slotIdx)
	n := len(slot.Queue)
	if n == 0 {
		return
	}
	idx := (r.Tick + delay) % n
	slot.Queue[idx] += w
}

// recordLearning appends a pending coincidence entry to the target slot's
// learning history, arriving window ticks after the terminal's delay
// (spec.md §4.E phase 2 "arrival_time = terminal.delay + 1 + window").
func (r *Run) recordLearning(slotIdx int, senderPop, senderTerminal, delay int) {
	slot := r.Graph.Slot(slotIdx)
	if slot.Kind != netdesc.Learning {
		return
	}
	entry := network.LearningEntry{
		SenderPop:      senderPop,
		SenderTerminal: senderTerminal,
		ReceiverTerm:   slotIdx,
		RemainingTicks: delay + 1 + slot.LearnWindow,
	}
	for i := range slot.History {
		if slot.History[i].SenderPop == network.FreeSender {
			slot.History[i] = entry
			return
		}
	}
	slot.History = append(slot.History, entry)
}

func fatalf(op, format string, args ...any) error {
	return engerr.Semantic(op, fmt.Errorf(format, args...))
}
