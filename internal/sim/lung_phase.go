package sim

import (
	"github.com/uflsim/engine/internal/lung"
	"github.com/uflsim/engine/internal/netdesc"
)

// lungAdvance is phase 1: evaluate the phrenic/lumbar motor formulas over
// current per-population firing rates, step the lung subsystem, and update
// any injected-current population's conductance bias against lung volume
// (spec.md §4.E phase 1).
func (r *Run) lungAdvance() error {
	var phrenicRate, lumbarRate, constrictRate, dilateRate float64
	for i := range r.Graph.CellPops {
		cp := &r.Graph.CellPops[i]
		switch cp.Desc.Subtype {
		case netdesc.Phrenic:
			phrenicRate = cp.FiringRateHz(firingRateWindowTicks, r.Desc.Global.DtMs)
		case netdesc.Lumbar:
			lumbarRate = cp.FiringRateHz(firingRateWindowTicks, r.Desc.Global.DtMs)
		case netdesc.InspiratoryLaryngeal:
			dilateRate = cp.FiringRateHz(firingRateWindowTicks, r.Desc.Global.DtMs)
		case netdesc.ExpiratoryLaryngeal:
			constrictRate = cp.FiringRateHz(firingRateWindowTicks, r.Desc.Global.DtMs)
		}
	}

	phrenicDrive, err := r.evalMotorFormula(r.Desc.Global.PhrenicFormula, phrenicRate)
	if err != nil {
		return err
	}
	lumbarDrive, err := r.evalMotorFormula(r.Desc.Global.LumbarFormula, lumbarRate)
	if err != nil {
		return err
	}

	in := lung.MotorInputs{
		Phrenic:            phrenicDrive,
		Abdominal:          lumbarDrive,
		LaryngealConstrict: constrictRate / lmmfr,
		LaryngealDilate:    dilateRate / lmmfr,
	}
	st, err := r.Lung.Step(r.Desc.Global.DtMs, in)
	if err != nil {
		return err
	}
	r.lastLungState = st

	for i := range r.Graph.CellPops {
		cp := &r.Graph.CellPops[i]
		if cp.Desc.InjectedExpr == "" {
			cp.InjectedG = 0
			continue
		}
		v, err := r.Formulas.Eval(cp.Desc.InjectedExpr, map[string]float64{
			"volume": st.VolumeL,
			"flow":   st.TrachealFlow,
			"ptp":    st.Ptp,
		})
		if err != nil {
			return err
		}
		cp.InjectedG = v
	}
	return nil
}

// evalMotorFormula evaluates a phrenic/lumbar drive formula against the
// population's current firing rate, defaulting to a simple rate/lmmfr
// normalization when no formula is configured.
func (r *Run) evalMotorFormula(src string, rateHz float64) (float64, error) {
	if src == "" {
		return clamp01(rateHz / lmmfr), nil
	}
	v, err := r.Formulas.Eval(src, map[string]float64{"rate": rateHz})
	if err != nil {
		return 0, err
	}
	return clamp01(v), nil
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
