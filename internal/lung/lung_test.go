package lung

import (
	"math"
	"testing"
)

func TestNewRestsAtFRC(t *testing.T) {
	s := New(70, false)
	if s.Vdi != s.c.VdiFRC || s.Vab != s.c.VabFRC {
		t.Fatalf("expected initial state at FRC, got Vdi=%v Vab=%v", s.Vdi, s.Vab)
	}
}

func TestStepProducesFiniteState(t *testing.T) {
	s := New(70, false)
	for tick := 0; tick < 200; tick++ {
		in := MotorInputs{Phrenic: 0.3 * math.Abs(math.Sin(float64(tick)/40)), Abdominal: 0.1}
		st, err := s.Step(0.5, in)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if math.IsNaN(st.VolumeL) || math.IsInf(st.VolumeL, 0) {
			t.Fatalf("tick %d: non-finite lung volume %v", tick, st.VolumeL)
		}
		if st.VolumeL < 0 {
			t.Fatalf("tick %d: negative lung volume %v", tick, st.VolumeL)
		}
	}
}

func TestActivationLowPassSettles(t *testing.T) {
	s := New(70, false)
	var last State
	for tick := 0; tick < 2000; tick++ {
		st, err := s.Step(0.5, MotorInputs{Phrenic: 1.0})
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		last = st
	}
	if last.Phrenic < 0.95 {
		t.Errorf("phrenic activation should settle near 1.0 under sustained drive, got %v", last.Phrenic)
	}
}

func TestBabyLungUsesSmallerVolumes(t *testing.T) {
	adult := New(70, false)
	baby := New(3.5, true)
	if baby.Vab >= adult.Vab {
		t.Errorf("baby-lung abdominal FRC volume %v should be smaller than adult %v", baby.Vab, adult.Vab)
	}
}

func TestClosedGlottisFallbackUsed(t *testing.T) {
	s := New(70, false)
	s.laryngealConstrict = 1
	s.laryngealDilate = 0
	s.phrenic = 0.4
	vdiT, vabT, err := s.solveRates()
	if err != nil {
		t.Fatalf("closed-glottis solve: %v", err)
	}
	if math.Abs(vdiT+vabT) > 1e-6 {
		t.Errorf("closed glottis should give zero net flow, got Vdi_t=%v Vab_t=%v (sum=%v)", vdiT, vabT, vdiT+vabT)
	}
}
