// Package afferent implements the external-signal adapter spec.md §4.C
// describes: a timebase-indexed source (currently a flat waveform file) that
// the simulation core resamples at its own tick rate and remaps to a firing
// probability. Grounded on the teacher's env/fixed.go and env/freq.go
// externally driven stepping idiom (an Env that is asked for its next value
// every step rather than generating one), with the calibration gain/offset
// pulled from original_source/affmodel.cpp (not present in spec.md's
// distillation — see SPEC_FULL.md §3 supplement).
package afferent

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/uflsim/engine/internal/engerr"
	"github.com/uflsim/engine/internal/netdesc"
)

// Source is an open external signal, advertising its own sample period
// alongside the engine's. All resampling policy lives in Next.
type Source struct {
	samples  []float64
	srcDtMs  float64
	simDtMs  float64
	calGain  float64
	calOff   float64
	table    []netdesc.ValueProbPoint
	slope    float64

	// cursor state, advanced by Next.
	srcPos     float64 // fractional index into samples, in source-sample units
	carried    float64 // T_src < T_sim: sample pulled but not yet averaged in
	haveCarry  bool
	held       float64 // T_src > T_sim: most recently crossed sample
	prevSample float64 // remembered for slope term
}

// Open reads a flat newline-delimited waveform file and pairs it with fp's
// remap table and calibration, per spec.md §4.C's open(path) contract.
func Open(path string, simDtMs float64, fp *netdesc.FiberPopulation) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engerr.Config("afferent.Open", fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	var samples []float64
	var srcDtMs float64
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			// first line is the source sample period in ms, per the
			// waveform file format spec.md §6 defines.
			if _, err := fmt.Sscanf(line, "%g", &srcDtMs); err != nil {
				return nil, engerr.Config("afferent.Open", fmt.Errorf("reading sample period from %s: %w", path, err))
			}
			first = false
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(line, "%g", &v); err != nil {
			continue // tolerate blank/trailing lines
		}
		samples = append(samples, v)
	}
	if err := sc.Err(); err != nil {
		return nil, engerr.Transientf("afferent.Open", fmt.Errorf("reading %s: %w", path, err))
	}
	if srcDtMs <= 0 {
		return nil, engerr.Config("afferent.Open", fmt.Errorf("%s: non-positive source sample period", path))
	}

	table := append([]netdesc.ValueProbPoint(nil), fp.ValueTable...)
	sort.Slice(table, func(i, j int) bool { return table[i].Value < table[j].Value })

	return &Source{
		samples: samples,
		srcDtMs: srcDtMs,
		simDtMs: simDtMs,
		calGain: fp.CalGain,
		calOff:  fp.CalOffset,
		table:   table,
		slope:   fp.SlopeScale,
	}, nil
}

// Next returns the resampled, calibrated value for the half-open interval
// [tick, tick+1) of the engine's own T_sim, per spec.md §4.C's resampling
// table. tick is the engine's own 0-based step counter.
func (s *Source) Next(tick int) (float64, bool) {
	switch {
	case s.srcDtMs < s.simDtMs:
		return s.nextOversampled(tick)
	case s.srcDtMs > s.simDtMs:
		return s.nextUndersampled(tick)
	default:
		return s.nextOneToOne(tick)
	}
}

func (s *Source) sampleAt(i int) (float64, bool) {
	if i < 0 || i >= len(s.samples) {
		return 0, false
	}
	return s.calGain*s.samples[i] + s.calOff, true
}

func (s *Source) nextOneToOne(tick int) (float64, bool) {
	v, ok := s.sampleAt(tick)
	if !ok {
		return 0, false
	}
	return v, true
}

// nextOversampled handles T_src < T_sim: average every source sample whose
// interval falls inside [tick*simDt, (tick+1)*simDt), including any carried
// sample left over from the previous call.
func (s *Source) nextOversampled(tick int) (float64, bool) {
	start := float64(tick) * s.simDtMs
	end := start + s.simDtMs

	var sum float64
	var n int
	if s.haveCarry {
		sum += s.carried
		n++
		s.haveCarry = false
	}

	for {
		srcTime := s.srcPos * s.srcDtMs
		if srcTime >= end {
			break
		}
		idx := int(s.srcPos)
		v, ok := s.sampleAt(idx)
		if !ok {
			s.srcPos++
			continue
		}
		if srcTime >= start {
			sum += v
			n++
		} else {
			// sample belongs to an interval that ended before start;
			// carry it forward so it isn't silently dropped.
			s.carried = v
			s.haveCarry = true
		}
		s.srcPos++
	}

	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// nextUndersampled handles T_src > T_sim: hold the most recent source
// sample, advancing only when the sim cursor crosses the next source
// sample's time.
func (s *Source) nextUndersampled(tick int) (float64, bool) {
	simTime := float64(tick) * s.simDtMs
	idx := int(simTime / s.srcDtMs)
	v, ok := s.sampleAt(idx)
	if !ok {
		return s.held, s.held != 0
	}
	s.held = v
	return s.held, true
}

// Remap converts a calibrated sample to a firing probability by piecewise-
// linear interpolation on the ascending (value, probability) table, with an
// optional slope term derived from the sample's discrete derivative.
func (s *Source) Remap(sample float64) float64 {
	p := interpolate(s.table, sample)
	if s.slope != 0 {
		d := sample - s.prevSample
		p += s.slope * d
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
	}
	s.prevSample = sample
	return p
}

func interpolate(table []netdesc.ValueProbPoint, v float64) float64 {
	if len(table) == 0 {
		return 0
	}
	if v < table[0].Value || v > table[len(table)-1].Value {
		return 0
	}
	for i := 1; i < len(table); i++ {
		if v <= table[i].Value {
			lo, hi := table[i-1], table[i]
			if hi.Value == lo.Value {
				return lo.Prob
			}
			frac := (v - lo.Value) / (hi.Value - lo.Value)
			return lo.Prob + frac*(hi.Prob-lo.Prob)
		}
	}
	return table[len(table)-1].Prob
}
