package output

import (
	"encoding/binary"
	"io"
)

const (
	archiveKindSpike  byte = 0
	archiveKindAnalog byte = 1
)

// Archive is the event/waveform archive sink spec.md §4.F describes: the
// same per-tick spike and analog samples, written to a binary time-indexed
// channel-oriented container. No waveform-container client library appears
// anywhere in the retrieval pack (see DESIGN.md), so this is a minimal
// self-describing binary format of our own: a channel-name table followed
// by (tick, channel, kind, value) sample records, each a fixed 13 bytes.
type Archive struct {
	w        io.Writer
	channels []string
	err      error
}

// NewArchive maps each engine channel name to a container channel number
// (its index in channelNames) and writes the channel table at file
// creation (spec.md §4.F "maps each engine channel to a container channel
// number at file creation").
func NewArchive(w io.Writer, channelNames []string) (*Archive, error) {
	a := &Archive{w: w, channels: channelNames}
	a.writeHeader()
	return a, a.err
}

func (a *Archive) writeHeader() {
	a.write(uint32(len(a.channels)))
	for _, name := range a.channels {
		b := []byte(name)
		a.write(uint32(len(b)))
		if a.err == nil {
			_, a.err = a.w.Write(b)
		}
	}
}

func (a *Archive) write(v any) {
	if a.err != nil {
		return
	}
	a.err = binary.Write(a.w, binary.LittleEndian, v)
}

// EmitSpike implements sim.EventSink: one sample per tick, kind=spike.
func (a *Archive) EmitSpike(channel, tick int) {
	a.writeSample(tick, channel, archiveKindSpike, 1)
}

// EmitAnalog implements sim.EventSink: one sample per tick, kind=analog,
// carrying the clamped value.
func (a *Archive) EmitAnalog(channel, value, tick int) {
	a.writeSample(tick, channel, archiveKindAnalog, int32(value))
}

func (a *Archive) writeSample(tick, channel int, kind byte, value int32) {
	a.write(int32(tick))
	a.write(int32(channel))
	if a.err == nil {
		_, a.err = a.w.Write([]byte{kind})
	}
	a.write(value)
}

// Err reports the first write error encountered, if any.
func (a *Archive) Err() error { return a.err }
