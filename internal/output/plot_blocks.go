package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/uflsim/engine/internal/sim"
)

const blockSize = 100

// Plot stream framing sentinels (spec.md §6).
const (
	MsgStart byte = 0xfd
	MsgEnd   byte = 0xfe
	MsgEOF   byte = 0xff
)

// ChannelSpec is one plot channel's (pop, cell, variable, type, label)
// header tuple (spec.md §4.F "a header listing the per-channel ... tuples").
type ChannelSpec struct {
	Pop      int
	Cell     int
	Variable int
	Type     string
	Label    string
}

// PlotBlockWriter buffers EmitTick calls into 100-tick blocks and writes
// each as a textual header plus 100 rows of (value, spike-flag) per
// channel, optionally framed with MSG_START/MSG_END for socket delivery
// (spec.md §4.F "Plot blocks"). Grounded on the teacher's elog idiom of
// accumulating rows and flushing on a fixed cadence.
type PlotBlockWriter struct {
	w        *bufio.Writer
	channels []ChannelSpec
	framed   bool
	rows     [][]sim.PlotSample
}

// NewPlotBlockWriter wraps w with the channel header tuples that will be
// repeated at the top of every block. framed wraps each block with
// MSG_START/MSG_END, as required when streaming over a socket.
func NewPlotBlockWriter(w io.Writer, channels []ChannelSpec, framed bool) *PlotBlockWriter {
	return &PlotBlockWriter{w: bufio.NewWriter(w), channels: channels, framed: framed}
}

// EmitTick implements sim.PlotSink: buffer one tick's samples, flushing a
// complete block every 100 ticks.
func (p *PlotBlockWriter) EmitTick(tick int, samples []sim.PlotSample) {
	row := make([]sim.PlotSample, len(samples))
	copy(row, samples)
	p.rows = append(p.rows, row)
	if len(p.rows) == blockSize {
		p.flushBlock()
	}
}

func (p *PlotBlockWriter) flushBlock() {
	if len(p.rows) == 0 {
		return
	}
	if p.framed {
		p.w.WriteByte(MsgStart)
	}
	for _, c := range p.channels {
		fmt.Fprintf(p.w, "%d,%d,%d,%s,%s\n", c.Pop, c.Cell, c.Variable, c.Type, c.Label)
	}
	fmt.Fprintln(p.w)
	for _, row := range p.rows {
		for i, s := range row {
			if i > 0 {
				p.w.WriteByte(' ')
			}
			spikeFlag := 0
			if s.Spike {
				spikeFlag = 1
			}
			fmt.Fprintf(p.w, "%g,%d", s.Value, spikeFlag)
		}
		fmt.Fprintln(p.w)
	}
	if p.framed {
		p.w.WriteByte(MsgEnd)
	}
	p.rows = p.rows[:0]
	p.w.Flush()
}

// Close flushes any partial block still buffered (spec.md §5 "Partial
// output blocks are flushed") and the underlying writer.
func (p *PlotBlockWriter) Close() error {
	p.flushBlock()
	return p.w.Flush()
}

// NumberedFileSink implements sim.PlotSink by writing each 100-tick block
// to its own numbered file in dir (the --file CLI mode, spec.md §6).
type NumberedFileSink struct {
	dir, prefix string
	channels    []ChannelSpec
	seq         int
	rows        [][]sim.PlotSample
}

// NewNumberedFileSink returns a sink that writes "<prefix>.<seq>" files
// under dir, one per completed 100-tick block.
func NewNumberedFileSink(dir, prefix string, channels []ChannelSpec) *NumberedFileSink {
	return &NumberedFileSink{dir: dir, prefix: prefix, channels: channels}
}

// EmitTick implements sim.PlotSink.
func (n *NumberedFileSink) EmitTick(tick int, samples []sim.PlotSample) {
	row := make([]sim.PlotSample, len(samples))
	copy(row, samples)
	n.rows = append(n.rows, row)
	if len(n.rows) == blockSize {
		n.writeFile()
	}
}

func (n *NumberedFileSink) writeFile() {
	path := filepath.Join(n.dir, fmt.Sprintf("%s.%04d", n.prefix, n.seq))
	f, err := os.Create(path)
	if err != nil {
		n.rows = n.rows[:0]
		return
	}
	defer f.Close()
	w := NewPlotBlockWriter(f, n.channels, false)
	for _, row := range n.rows {
		w.EmitTick(0, row)
	}
	w.Close()
	n.seq++
	n.rows = n.rows[:0]
}

// Close flushes a final, possibly partial, numbered file.
func (n *NumberedFileSink) Close() error {
	if len(n.rows) > 0 {
		n.writeFile()
	}
	return nil
}
