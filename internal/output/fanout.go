package output

import "github.com/uflsim/engine/internal/sim"

// FanoutEventSink multiplexes spike/analog events to every configured
// sink — event table, archive, or both, depending on which of --bdt/--smr/
// --wave were requested (spec.md §4.F "Writes three optional streams").
type FanoutEventSink struct {
	sinks []sim.EventSink
}

// NewFanoutEventSink returns a sink forwarding to all of sinks in order.
func NewFanoutEventSink(sinks ...sim.EventSink) *FanoutEventSink {
	return &FanoutEventSink{sinks: sinks}
}

// EmitSpike implements sim.EventSink.
func (f *FanoutEventSink) EmitSpike(channel, tick int) {
	for _, s := range f.sinks {
		s.EmitSpike(channel, tick)
	}
}

// EmitAnalog implements sim.EventSink.
func (f *FanoutEventSink) EmitAnalog(channel, value, tick int) {
	for _, s := range f.sinks {
		s.EmitAnalog(channel, value, tick)
	}
}
