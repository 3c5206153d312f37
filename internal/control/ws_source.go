package control

import (
	"net"

	"github.com/gorilla/websocket"

	"github.com/uflsim/engine/internal/output"
	"github.com/uflsim/engine/internal/sim"
)

// WSControlSource implements sim.ControlSource by reading single-character
// P/R/U/T commands off a gorilla/websocket connection, each message
// optionally framed with MSG_START/MSG_END the way the plot stream is
// (spec.md §6 "Messages in-band on the command channel are single letters
// P/R/U/T"). An 'U' message's bytes after the command character are the
// replacement network-description buffer.
type WSControlSource struct {
	conn   *websocket.Conn
	closed bool
}

// NewWSControlSource wraps an already-handshaked websocket connection.
func NewWSControlSource(conn *websocket.Conn) *WSControlSource {
	return &WSControlSource{conn: conn}
}

// Poll reads the next pending message and returns its command. Callers set
// the connection's read deadline before calling Poll, so an idle socket
// surfaces as a timeout (no command waiting) rather than blocking phase 7
// indefinitely; any other read error, or a peer-sent MSG_EOF, ends the run
// exactly as a T would (spec.md §4.G "Disconnect or orderly termination by
// the peer ends the run as if T had been received").
func (c *WSControlSource) Poll() (sim.Command, []byte) {
	if c.closed {
		return sim.CmdTerminate, nil
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return sim.CmdNone, nil
		}
		c.closed = true
		return sim.CmdTerminate, nil
	}
	if len(data) == 0 {
		return sim.CmdNone, nil
	}
	if data[0] == output.MsgEOF {
		c.closed = true
		c.conn.WriteMessage(websocket.BinaryMessage, []byte{output.MsgEOF})
		return sim.CmdTerminate, nil
	}

	body := data
	if body[0] == output.MsgStart {
		body = body[1:]
		if n := len(body); n > 0 && body[n-1] == output.MsgEnd {
			body = body[:n-1]
		}
	}
	if len(body) == 0 {
		return sim.CmdNone, nil
	}

	switch cmd := sim.Command(body[0]); cmd {
	case sim.CmdPause, sim.CmdResume, sim.CmdTerminate:
		return cmd, nil
	case sim.CmdUpdate:
		return cmd, body[1:]
	default:
		return sim.CmdNone, nil
	}
}
