package netdesc

import "math"

// decayFactor computes the per-step exponential decay exp(-dtMs/tauMs)
// shared by synapse conductance (DCS), potassium conductance (DCG), and
// threshold (DCTH) decay, per the GLOSSARY definitions in spec.md.
func decayFactor(dtMs, tauMs float64) float64 {
	if tauMs <= 0 {
		return 0
	}
	return math.Exp(-dtMs / tauMs)
}

// DecayFactor exposes decayFactor for use outside the package (e.g. the
// simulation core computing DCG/DCTH from per-cell time constants).
func DecayFactor(dtMs, tauMs float64) float64 { return decayFactor(dtMs, tauMs) }
