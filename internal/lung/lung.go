// Package lung implements the mechanical respiratory subsystem spec.md §4.D
// describes: a two-variable (V_di, V_ab) ODE whose derivatives come from a
// static pressure-balance solve across the diaphragm, abdominal wall, rib
// cage, and lung elastance, plus airway resistance. Grounded on the
// teacher's chem.Integrate clamp-at-zero delta-integration idiom
// (internal/lung reuses the same "add a bounded delta" shape for the
// muscle-activation low-pass filters and the V_di/V_ab Euler step) and on
// the literal constants of original_source/lung.c.
package lung

import (
	"fmt"
	"math"

	"github.com/uflsim/engine/internal/engerr"
	"gonum.org/v1/gonum/mat"
)

// MotorInputs are the per-cell firing rates driving the mechanical model,
// in spikes/second (spec.md §4.D).
type MotorInputs struct {
	Phrenic             float64
	Abdominal           float64
	LaryngealConstrict  float64
	LaryngealDilate     float64
	IntercostalsIn      float64
	IntercostalsEx      float64
}

// State is the subsystem's public output for a tick, consumed by the
// simulation core for plot output or injected-current evaluation.
type State struct {
	VolumeL       float64 // total lung volume
	TrachealFlow  float64 // V_L time derivative
	Ptp           float64 // transpulmonary pressure
	Vdi, Vab      float64
	VdiT, VabT    float64
	Pdi, Pab, Prc float64

	// Filtered (60ms/35ms time-constant) muscle activations, 0..1.
	Phrenic, Abdominal, LaryngealConstrict, LaryngealDilate float64
}

// constants holds the body-size-derived parameters that select the
// subsystem's operating point, computed once from the "fit" literals in
// original_source/lung.c (paramgen()).
type constants struct {
	Pdimax, Vdi0, Ldi_min, Fdi, PdiRV float64
	FCEmax, VCEmax, Cab, Vab0         float64
	CL, VL0                          float64
	Crc, VrcMin, VrcMax, PrcDiv, PrcAdd float64
	A, Vsum, C1                       float64
	VdiFRC, VabFRC, VC                 float64
	Rab, Rdi                           float64
	k1, k2                             float64 // Rohrer's constants
}

func deriveConstants(bodyMassKg float64, babyLung bool) constants {
	// Literal values from original_source/lung.c; the scaling by body
	// mass relative to the 70kg reference adult the original's paramgen()
	// was fit against is the one addition this port makes, since spec.md
	// §4.D calls for body-size-derived constants and the original's
	// paramgen() hardcodes a single adult subject.
	scale := bodyMassKg / 70.0
	if babyLung {
		// A neonatal subject uses the alternate constant table spec.md
		// §4.D's "baby-lung flag" selects: smaller absolute volumes, same
		// dimensionless shape parameters.
		scale = bodyMassKg / 3.5
	}

	c := constants{
		Pdimax:  130.0,
		Vdi0:    6.30549,
		Ldi_min: .64,
		Fdi:     .15,
		PdiRV:   20,
		FCEmax:  33,
		VCEmax:  34.7,
		Cab:     .108 * scale,
		Vab0:    5.58636 * scale,
		CL:      .201 * scale,
		VL0:     1.41 * scale,
		Crc:     .110 * scale,
		A:       0.425,
		Vsum:    13.907 * scale,
		C1:      .369,
		VdiFRC:  2.967 * scale,
		VabFRC:  5.586 * scale,
		VC:      5.370 * scale,
		Rab:     1.5,
		Rdi:     6,
		k1:      .0035118054562923917,
		k2:      .68076194767587761,
	}
	limitVrc := 2.2 * scale
	vrc0 := 7.1412 * scale
	c.VrcMin = vrc0 - .99*limitVrc
	c.VrcMax = vrc0 + .05*limitVrc
	c.PrcDiv = -4 * c.Crc / (c.VrcMax - c.VrcMin) / (1 + c.C1)
	c.PrcAdd = math.Log((vrc0-c.VrcMin)/(c.VrcMax-vrc0)) / c.PrcDiv
	return c
}

// Subsystem is one running instance of the mechanical lung model.
type Subsystem struct {
	c constants

	Vdi, Vab   float64
	VdiT, VabT float64

	// low-pass filtered activations.
	phrenic, abdominal, laryngealConstrict, laryngealDilate float64

	ready bool
}

// New constructs a subsystem at its functional-residual-capacity rest
// point, deriving constants from the body-size parameters on first use
// (spec.md §4.D "a first call derives model constants").
func New(bodyMassKg float64, babyLung bool) *Subsystem {
	c := deriveConstants(bodyMassKg, babyLung)
	return &Subsystem{
		c:     c,
		Vdi:   c.VdiFRC,
		Vab:   c.VabFRC,
		ready: true,
	}
}

const (
	muscleTauMs     = 60.0
	laryngealTauMs  = 35.0
)

// lowpass advances a first-order low-pass filter toward target by dtMs,
// reusing the teacher's "bounded delta" integration shape (chem.Integrate)
// rather than a bare Euler line with no named helper.
func lowpass(cur, target, dtMs, tauMs float64) float64 {
	return cur + (target-cur)*(dtMs/tauMs)
}

// Step advances the subsystem by dtMs given the tick's motor drive,
// returning the resulting state or a fatal error on abdominal-volume
// underflow or non-convergence of the static balance solve (spec.md §4.D).
func (s *Subsystem) Step(dtMs float64, in MotorInputs) (State, error) {
	s.phrenic = lowpass(s.phrenic, clamp01(in.Phrenic), dtMs, muscleTauMs)
	s.abdominal = lowpass(s.abdominal, clamp01(in.Abdominal), dtMs, muscleTauMs)
	s.laryngealConstrict = lowpass(s.laryngealConstrict, clamp01(in.LaryngealConstrict), dtMs, laryngealTauMs)
	s.laryngealDilate = lowpass(s.laryngealDilate, clamp01(in.LaryngealDilate), dtMs, laryngealTauMs)

	vdiT, vabT, err := s.solveRates()
	if err != nil {
		return State{}, err
	}
	s.VdiT, s.VabT = vdiT, vabT

	dtS := dtMs / 1000.0
	s.Vdi += vdiT * dtS
	s.Vab += vabT * dtS

	if s.Vab < s.c.VrcMin/20 { // underflow guard: abdominal volume collapsed
		return State{}, engerr.Numeric("lung.Step", fmt.Errorf(
			"abdominal volume underflow: Vab=%.4f below physiological minimum; likely lumbar overdrive", s.Vab))
	}

	st := State{
		Vdi: s.Vdi, Vab: s.Vab,
		VdiT: vdiT, VabT: vabT,
		Phrenic:            s.phrenic,
		Abdominal:          s.abdominal,
		LaryngealConstrict: s.laryngealConstrict,
		LaryngealDilate:    s.laryngealDilate,
	}
	st.VolumeL = s.lungVolume()
	st.TrachealFlow = s.trachealFlow(vdiT, vabT)
	st.Pdi = s.sigmaDi(vdiT)
	st.Pab = s.sigmaAb(vabT)
	st.Prc = s.sigmaRc(vdiT, vabT)
	st.Ptp = s.sigmaL()
	return st, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (s *Subsystem) lungVolume() float64 {
	c := &s.c
	vl := (c.Vsum - (1+c.C1)*s.Vdi - s.Vab) / c.C1
	if vl < 0 {
		vl = 0
	}
	return vl
}

func (s *Subsystem) trachealFlow(vdiT, vabT float64) float64 {
	return -((1+s.c.C1)*vdiT + vabT) / s.c.C1
}

func (s *Subsystem) sigmaL() float64 {
	return (s.lungVolume() - s.c.VL0) / s.c.CL
}

func (s *Subsystem) sigmaRc(vdiT, vabT float64) float64 {
	c := &s.c
	vrc := (c.Vsum - s.Vdi - s.Vab) / c.C1
	vrcT := -(vdiT + vabT) / c.C1
	ratio := (c.VrcMax - vrc) / (vrc - c.VrcMin)
	if ratio <= 0 {
		ratio = 1e-9
	}
	return math.Log(ratio)/c.PrcDiv + c.PrcAdd + 2.7*vrcT
}

func (s *Subsystem) sigmaDi(vdiT float64) float64 {
	c := &s.c
	e := ((1-c.Ldi_min)/c.Vdi0*s.Vdi + c.Ldi_min - 1.05) / 0.19
	ffl := math.Exp(-0.5 * e * e)
	vdiTmax := 2.449
	x := vdiT / vdiTmax
	e2 := math.Exp(-1.409 * math.Sinh(3.2*x+1.59443531272566456619))
	ffv := 0.1433 / (0.1074 + e2)
	pdi := s.phrenic * c.Pdimax * ffl * ffv
	if s.Vdi > c.VdiFRC {
		kdiPsv := c.PdiRV / math.Pow(0.64*c.Vdi0-c.VdiFRC, 2)
		pdi += kdiPsv * math.Pow(s.Vdi-c.VdiFRC, 2)
	}
	pdi += c.Rdi * vdiT
	return pdi
}

func (s *Subsystem) sigmaAb(vabT float64) float64 {
	c := &s.c
	x := vabT / c.VCEmax
	e2 := math.Exp(-1.409 * math.Sinh(3.2*x+1.59443531272566456619))
	ffv := 0.1433 / (0.1074 + e2)
	fce := s.abdominal * c.FCEmax * ffv
	pab := fce*0.01 + (s.Vab-c.Vab0)/c.Cab
	pab += c.Rab * vabT
	return pab
}

// airwayResistance implements Rohrer's equation plus the fixed "rest of
// airway" term; it returns +Inf, signalling the closed-glottis case, when
// laryngeal constriction is full (>= 1) and dilation is zero or less.
func (s *Subsystem) airwayResistance(vlT float64) float64 {
	if s.laryngealConstrict >= 1 && s.laryngealDilate <= 0 {
		return math.Inf(1)
	}
	k1 := s.c.k1 * (1 + 4*s.laryngealConstrict) / (1 + 2*s.laryngealDilate)
	k2 := s.c.k2 * (1 + 4*s.laryngealConstrict) / (1 + 2*s.laryngealDilate)
	return k1 + k2*math.Abs(vlT) + .72 + .44*math.Abs(vlT)
}

// residual returns (f0, f1) of the static-balance system at the candidate
// rates (spec.md §4.D "two-equation algebraic system").
func (s *Subsystem) residual(vdiT, vabT float64) (float64, float64) {
	vlT := s.trachealFlowFromRates(vdiT, vabT)
	rrs := s.airwayResistance(vlT)
	sigmaL := s.sigmaL()
	sigmaDi := s.sigmaDi(vdiT)
	sigmaAb := s.sigmaAb(vabT)
	sigmaRc := s.sigmaRc(vdiT, vabT)
	fa := s.fa()

	f0 := -vlT*rrs - sigmaL + (fa+s.c.Fdi)*sigmaDi - sigmaRc
	f1 := sigmaAb + vlT*rrs + sigmaL - sigmaDi
	return f0, f1
}

func (s *Subsystem) trachealFlowFromRates(vdiT, vabT float64) float64 {
	return -((1+s.c.C1)*vdiT + vabT) / s.c.C1
}

func (s *Subsystem) fa() float64 {
	vl := s.lungVolume()
	vdiTLC := s.c.VdiFRC * 1.7 // approximate TLC relative to FRC, see deriveConstants
	return (s.Vdi-vdiTLC)/(s.Vdi-vdiTLC+vl)/(1+s.c.C1) + .15
}

const (
	newtonMaxIter = 50
	newtonTol     = 1e-6
)

// solveRates finds (Vdi_t, Vab_t) by 2-D Newton iteration on the residual,
// falling back to a bracketed 1-D bisection for the closed-glottis case
// where airway resistance is effectively infinite and the system degrades
// to Vdi_t + Vab_t = 0 (spec.md §4.D).
func (s *Subsystem) solveRates() (float64, float64, error) {
	if math.IsInf(s.airwayResistance(0), 1) {
		return s.solveClosedGlottis()
	}

	x := mat.NewVecDense(2, []float64{s.VdiT, s.VabT})
	const h = 1e-6
	for iter := 0; iter < newtonMaxIter; iter++ {
		vdiT, vabT := x.AtVec(0), x.AtVec(1)
		f0, f1 := s.residual(vdiT, vabT)
		if math.Hypot(f0, f1) < newtonTol {
			return vdiT, vabT, nil
		}

		f0d0, f1d0 := s.residual(vdiT+h, vabT)
		f0d1, f1d1 := s.residual(vdiT, vabT+h)
		j := mat.NewDense(2, 2, []float64{
			(f0d0 - f0) / h, (f0d1 - f0) / h,
			(f1d0 - f1) / h, (f1d1 - f1) / h,
		})

		var jInv mat.Dense
		if err := jInv.Inverse(j); err != nil {
			return 0, 0, engerr.Numeric("lung.solveRates", fmt.Errorf("singular jacobian at iteration %d: %w", iter, err))
		}
		var delta mat.VecDense
		fvec := mat.NewVecDense(2, []float64{f0, f1})
		delta.MulVec(&jInv, fvec)
		x.SetVec(0, vdiT-delta.AtVec(0))
		x.SetVec(1, vabT-delta.AtVec(1))
	}
	return 0, 0, engerr.Numeric("lung.solveRates", fmt.Errorf(
		"static balance failed to converge after %d iterations at Vdi=%.6f Vab=%.6f", newtonMaxIter, s.Vdi, s.Vab))
}

// solveClosedGlottis handles zero net airway flow: Vdi_t + Vab_t = 0, so
// Vab_t = -Vdi_t and a single residual (f0) is searched by bisection.
func (s *Subsystem) solveClosedGlottis() (float64, float64, error) {
	f := func(vdiT float64) float64 {
		f0, _ := s.residual(vdiT, -vdiT)
		return f0
	}
	lo, hi := -5.0, 5.0
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) {
		return 0, 0, engerr.Numeric("lung.solveClosedGlottis", fmt.Errorf("non-finite residual at bracket endpoints"))
	}
	if flo*fhi > 0 {
		// widen the bracket once; if still same sign, report non-convergence.
		lo, hi = -50, 50
		flo, fhi = f(lo), f(hi)
		if flo*fhi > 0 {
			return 0, 0, engerr.Numeric("lung.solveClosedGlottis", fmt.Errorf("no sign change found for closed-glottis root"))
		}
	}
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		fmid := f(mid)
		if math.Abs(fmid) < newtonTol || (hi-lo) < 1e-9 {
			return mid, -mid, nil
		}
		if fmid*flo < 0 {
			hi = mid
			fhi = fmid
		} else {
			lo = mid
			flo = fmid
		}
		_ = fhi
	}
	return 0, 0, engerr.Numeric("lung.solveClosedGlottis", fmt.Errorf("bisection failed to converge"))
}
