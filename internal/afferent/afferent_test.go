package afferent

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/uflsim/engine/internal/netdesc"
)

func writeWaveform(t *testing.T, dtMs string, samples []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wave.txt")
	lines := append([]string{dtMs}, samples...)
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestRemapPiecewiseLinear(t *testing.T) {
	fp := &netdesc.FiberPopulation{
		ValueTable: []netdesc.ValueProbPoint{
			{Value: 0, Prob: 0},
			{Value: 1, Prob: 0.5},
			{Value: 2, Prob: 1},
		},
		CalGain: 1, CalOffset: 0,
	}
	path := writeWaveform(t, "1.0", []string{"0.5"})
	src, err := Open(path, 1.0, fp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got := interpolate(src.table, 0.5)
	want := 0.25
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("interpolate(0.5) = %v, want %v", got, want)
	}
	if p := interpolate(src.table, -1); p != 0 {
		t.Errorf("out-of-range below table should be 0, got %v", p)
	}
	if p := interpolate(src.table, 5); p != 0 {
		t.Errorf("out-of-range above table should be 0, got %v", p)
	}
}

func TestCalibrationGainOffsetApplied(t *testing.T) {
	fp := &netdesc.FiberPopulation{CalGain: 2, CalOffset: 1}
	path := writeWaveform(t, "1.0", []string{"3"})
	src, err := Open(path, 1.0, fp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v, ok := src.Next(0)
	if !ok {
		t.Fatal("expected a sample")
	}
	if want := 2*3 + 1.0; v != want {
		t.Errorf("calibrated sample = %v, want %v", v, want)
	}
}

func TestOversampledAveragesCoveredSamples(t *testing.T) {
	// T_src=1ms < T_sim=3ms: three source samples should average together
	// per sim tick.
	fp := &netdesc.FiberPopulation{CalGain: 1, CalOffset: 0}
	path := writeWaveform(t, "1.0", []string{"1", "2", "3", "4", "5", "6"})
	src, err := Open(path, 3.0, fp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v0, ok := src.Next(0)
	if !ok {
		t.Fatal("expected a value for tick 0")
	}
	if want := 2.0; math.Abs(v0-want) > 1e-9 {
		t.Errorf("tick 0 mean = %v, want %v", v0, want)
	}
	v1, ok := src.Next(1)
	if !ok {
		t.Fatal("expected a value for tick 1")
	}
	if want := 5.0; math.Abs(v1-want) > 1e-9 {
		t.Errorf("tick 1 mean = %v, want %v", v1, want)
	}
}

func TestUndersampledHoldsUntilCrossing(t *testing.T) {
	// T_src=4ms > T_sim=1ms: value should hold across several sim ticks.
	fp := &netdesc.FiberPopulation{CalGain: 1, CalOffset: 0}
	path := writeWaveform(t, "4.0", []string{"10", "20", "30"})
	src, err := Open(path, 1.0, fp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for tick := 0; tick < 4; tick++ {
		v, ok := src.Next(tick)
		if !ok {
			t.Fatalf("tick %d: expected a held value", tick)
		}
		if v != 10 {
			t.Errorf("tick %d: held value = %v, want 10", tick, v)
		}
	}
	v, ok := src.Next(4)
	if !ok || v != 20 {
		t.Errorf("tick 4: expected crossing to next sample 20, got %v (ok=%v)", v, ok)
	}
}

func TestMissingSampleReturnsZero(t *testing.T) {
	fp := &netdesc.FiberPopulation{CalGain: 1, CalOffset: 0}
	path := writeWaveform(t, "1.0", []string{"5"})
	src, err := Open(path, 1.0, fp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := src.Next(0); !ok {
		t.Fatal("expected a sample at tick 0")
	}
	if v, ok := src.Next(5); ok || v != 0 {
		t.Errorf("past end of source, expected (0,false), got (%v,%v)", v, ok)
	}
}

func TestSlopeScaleAddsDerivativeAndClamps(t *testing.T) {
	fp := &netdesc.FiberPopulation{
		ValueTable: []netdesc.ValueProbPoint{
			{Value: 0, Prob: 0.5},
			{Value: 10, Prob: 0.5},
		},
		SlopeScale: 1.0,
	}
	path := writeWaveform(t, "1.0", []string{"0"})
	src, err := Open(path, 1.0, fp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p1 := src.Remap(0)
	if p1 != 0.5 {
		t.Fatalf("first remap = %v, want 0.5 (no derivative yet)", p1)
	}
	p2 := src.Remap(5) // derivative of +5, slope 1.0 -> +5, clamp to 1
	if p2 != 1 {
		t.Errorf("remap after jump = %v, want clamped 1", p2)
	}
}
