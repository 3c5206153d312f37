package control

import (
	"io"

	"github.com/uflsim/engine/internal/sim"
)

// ReaderControlSource implements sim.ControlSource over a plain byte
// stream (typically stdin) for runs with no attached viewer socket: only
// the unframed P/R/T single characters are meaningful here, since a
// replacement network description (U) has nowhere to come from without a
// socket payload (spec.md §4.G still names U as a command, but this
// transport has no way to carry its buffer).
type ReaderControlSource struct {
	cmds chan sim.Command
}

// NewReaderControlSource starts a background goroutine draining r one byte
// at a time, so Poll itself never blocks the tick loop.
func NewReaderControlSource(r io.Reader) *ReaderControlSource {
	c := &ReaderControlSource{cmds: make(chan sim.Command, 8)}
	go c.readLoop(r)
	return c
}

func (c *ReaderControlSource) readLoop(r io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			switch cmd := sim.Command(buf[0]); cmd {
			case sim.CmdPause, sim.CmdResume, sim.CmdTerminate:
				c.cmds <- cmd
			}
		}
		if err != nil {
			close(c.cmds)
			return
		}
	}
}

// Poll drains one buffered command, or returns CmdNone if none is waiting.
// Once the underlying reader reaches EOF or fails, every later Poll reports
// CmdTerminate, mirroring a disconnected socket peer.
func (c *ReaderControlSource) Poll() (sim.Command, []byte) {
	select {
	case cmd, ok := <-c.cmds:
		if !ok {
			return sim.CmdTerminate, nil
		}
		return cmd, nil
	default:
		return sim.CmdNone, nil
	}
}
