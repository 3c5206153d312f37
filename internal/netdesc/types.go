// Package netdesc holds the in-memory, immutable network description
// produced by the parameter loader (spec.md §3, §4.A) and the schema-driven
// record-stream reader that populates it from text files or in-memory
// buffers delivered over the control channel.
package netdesc

// SynapseKind distinguishes the four synapse-type variants (spec.md §3).
type SynapseKind int

const (
	Normal SynapseKind = iota
	PresynapticModulator
	PostsynapticModulator
	Learning
)

// CellSubtype enumerates the cell population behaviors spec.md §3/§4.E
// names.
type CellSubtype int

const (
	Standard CellSubtype = iota
	Burster
	PSR
	Phrenic
	Lumbar
	InspiratoryLaryngeal
	ExpiratoryLaryngeal
)

// FiberSubtype enumerates the fiber population event-generation modes
// (spec.md §3).
type FiberSubtype int

const (
	Stochastic FiberSubtype = iota
	ElectricStimulus
	Afferent
)

// GlobalParams holds the run-wide constants and flags (spec.md §3).
type GlobalParams struct {
	DtMs            float64 `field:"dt" type:"float" default:"0.5"`
	NSteps          int     `field:"n_steps" type:"int"`
	SpawnNumber     int     `field:"spawn_number" type:"int" default:"0"`
	EK              float64 `field:"e_k" type:"float" default:"-80"`
	Vm0             float64 `field:"vm0" type:"float" default:"-65"`
	Gm0             float64 `field:"gm0" type:"float" default:"1"`
	EqRef           float64 `field:"eq_ref" type:"float" default:"0"`
	Presynaptic     bool    `field:"presynaptic" type:"bool" default:"false"`
	Quiet           bool    `field:"quiet" type:"bool" default:"false"`
	LungEnabled     bool    `field:"lung_enabled" type:"bool" default:"false"`
	Condi           bool    `field:"condi" type:"bool" default:"false"`
	BabyLung        bool    `field:"baby_lung" type:"bool" default:"false"`
	PhrenicFormula  string  `field:"phrenic_formula" type:"string"`
	LumbarFormula   string  `field:"lumbar_formula" type:"string"`
}

// SynapseType is one entry of the synapse-type table (index 1..T, index 0
// reserved per spec.md §3).
type SynapseType struct {
	Index      int
	EQ   float64     `field:"eq" type:"float"`
	Tau  float64     `field:"tau" type:"float" default:"5"`
	Kind SynapseKind `field:"kind" type:"enum" enum:"normal,presynaptic-modulator,postsynaptic-modulator,learning" default:"normal"`
	ParentType int     `field:"parent" type:"int"` // index of the normal type this pre/post modulates; 0 if Normal/Learning
	LearnW     int     `field:"learn_window" type:"int"`
	LearnMax   float64 `field:"learn_max" type:"float"`
	LearnDelta float64 `field:"learn_delta" type:"float"`
}

// DCS returns the per-step conductance decay factor exp(-dt/tau).
func (s *SynapseType) DCS(dtMs float64) float64 {
	return decayFactor(dtMs, s.Tau)
}

// TargetRecord is one outgoing pop-to-pop wiring link (spec.md §3).
type TargetRecord struct {
	ReceiverPop  int     `field:"receiver_pop" type:"int"`
	MCT          int     `field:"mct" type:"int"`
	NCT          int     `field:"nct" type:"int"`
	NumTerminals int     `field:"nt" type:"int"`
	SynapseType  int     `field:"synapse_type" type:"int"`
	Strength     float64 `field:"strength" type:"float"`
	WiringSeed   int64   `field:"seed" type:"int"`
}

// CellPopulation is one source-or-target cell population (spec.md §3).
type CellPopulation struct {
	Index         int
	Name          string      `field:"name" type:"string"`
	Count         int         `field:"count" type:"int"`
	Subtype       CellSubtype `field:"subtype" type:"enum" enum:"standard,burster,psr,phrenic,lumbar,insp-laryngeal,exp-laryngeal" default:"standard"`
	TauM          float64 `field:"tau_m" type:"float" default:"10"`
	TauTh         float64 `field:"tau_th" type:"float" default:"20"`
	TauK          float64 `field:"tau_k" type:"float" default:"10"`
	Accommodation float64 `field:"accommodation" type:"float"`
	NoiseAmp      float64 `field:"noise_amp" type:"float"`
	NoiseSeed     int64   `field:"noise_seed" type:"int"`
	InjectedConst float64 `field:"injected_const" type:"float"`
	InjectedExpr  string  `field:"injected_expr" type:"string"`
	Theta0        float64 `field:"theta0" type:"float" default:"5"`
	Theta0SD      float64 `field:"theta0_sd" type:"float"`
	Targets       []TargetRecord
}

// FiberPopulation is one fiber population (spec.md §3).
type FiberPopulation struct {
	Index       int
	Name        string       `field:"name" type:"string"`
	Count       int          `field:"count" type:"int"`
	Subtype     FiberSubtype `field:"subtype" type:"enum" enum:"stochastic,electric-stimulus,afferent" default:"stochastic"`
	TStart      int          `field:"t_start" type:"int"`
	TStop       int          `field:"t_stop" type:"int"`
	Prob        float64 `field:"prob" type:"float"`
	FreqHz      float64 `field:"freq_hz" type:"float"`
	FuzzTicks   int     `field:"fuzz_ticks" type:"int"`
	SourcePath  string  `field:"source_path" type:"string"`
	ValueTable  []ValueProbPoint
	SlopeScale  float64 `field:"slope_scale" type:"float"`
	Calibration AfferentCalibration
	CalGain     float64 `field:"gain" type:"float" default:"1"`
	CalOffset   float64 `field:"offset" type:"float" default:"0"`
	Seed        int64   `field:"seed" type:"int"`
	Targets     []TargetRecord
}

// ValueProbPoint is one (value, probability) pair of the afferent remap
// table, ascending in Value (spec.md §4.C).
type ValueProbPoint struct {
	Value float64
	Prob  float64
}

// AfferentCalibration is the gain/offset applied to a raw afferent sample
// before the piecewise-linear remap, carried over from
// original_source/affmodel.cpp (not present in spec.md's distillation, see
// SPEC_FULL.md).
type AfferentCalibration struct {
	Gain   float64 `field:"gain" type:"float" default:"1"`
	Offset float64 `field:"offset" type:"float" default:"0"`
}

// LungParams holds the body-size parameters that select the lung
// subsystem's derived constants (spec.md §4.D).
type LungParams struct {
	BodyMassKg float64 `field:"body_mass_kg" type:"float" default:"70"`
	BabyLung   bool    `field:"baby_lung" type:"bool" default:"false"`
}

// Description is the complete, immutable output of the parameter loader:
// everything the network builder needs to construct the runtime graph.
type Description struct {
	Global    GlobalParams
	Synapses  []SynapseType // index 0 reserved/unused
	CellPops  []CellPopulation
	FiberPops []FiberPopulation
	Lung      LungParams
}

// SynapseByIndex returns the synapse type at idx, or nil if out of range.
func (d *Description) SynapseByIndex(idx int) *SynapseType {
	if idx <= 0 || idx >= len(d.Synapses) {
		return nil
	}
	return &d.Synapses[idx]
}

// CellPopByIndex returns the cell population at idx (1-based), or nil.
func (d *Description) CellPopByIndex(idx int) *CellPopulation {
	if idx < 1 || idx > len(d.CellPops) {
		return nil
	}
	return &d.CellPops[idx-1]
}
