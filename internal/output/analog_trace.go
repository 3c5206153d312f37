package output

import "github.com/uflsim/engine/internal/sim"

// AnalogTrace wraps a downstream sim.EventSink, additionally recording
// every sample observed on one designated channel so the post-run marker
// pass (InsertMarkers) can scan it once the run completes.
type AnalogTrace struct {
	sim.EventSink
	channel int
	samples []AnalogSample
}

// NewAnalogTrace returns a trace recording channel's analog samples while
// forwarding every event, unmodified, to downstream.
func NewAnalogTrace(downstream sim.EventSink, channel int) *AnalogTrace {
	return &AnalogTrace{EventSink: downstream, channel: channel}
}

// EmitAnalog records the sample if it is on the traced channel, then
// forwards it downstream.
func (a *AnalogTrace) EmitAnalog(channel, value, tick int) {
	a.EventSink.EmitAnalog(channel, value, tick)
	if channel == a.channel {
		a.samples = append(a.samples, AnalogSample{Tick: tick, Value: float64(value)})
	}
}

// Samples returns the recorded trace in tick order.
func (a *AnalogTrace) Samples() []AnalogSample { return a.samples }
