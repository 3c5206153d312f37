package output

import (
	"bytes"
	"log"

	"github.com/gorilla/websocket"

	"github.com/uflsim/engine/internal/sim"
)

// WSPlotSink streams 100-tick plot blocks to a connected viewer over a
// gorilla/websocket connection, each message payload framed with
// MSG_START/MSG_END (spec.md §6), mirroring the teacher's netview package
// streaming tensor data to a browser-based view over a structured channel.
type WSPlotSink struct {
	conn     *websocket.Conn
	channels []ChannelSpec
	rows     [][]sim.PlotSample
	lost     bool
}

// NewWSPlotSink wraps an already-handshaked websocket connection.
func NewWSPlotSink(conn *websocket.Conn, channels []ChannelSpec) *WSPlotSink {
	return &WSPlotSink{conn: conn, channels: channels}
}

// EmitTick implements sim.PlotSink. Once the peer is lost it silently
// drops further ticks: spec.md §7 treats a socket peer drop as transient
// ("log, close the affected stream, continue the run writing nothing to
// that stream").
func (s *WSPlotSink) EmitTick(tick int, samples []sim.PlotSample) {
	if s.lost {
		return
	}
	row := make([]sim.PlotSample, len(samples))
	copy(row, samples)
	s.rows = append(s.rows, row)
	if len(s.rows) == blockSize {
		s.flush()
	}
}

func (s *WSPlotSink) flush() {
	var body bytes.Buffer
	w := NewPlotBlockWriter(&body, s.channels, false)
	for _, row := range s.rows {
		w.EmitTick(0, row)
	}
	w.Close()
	s.rows = s.rows[:0]

	var frame bytes.Buffer
	frame.WriteByte(MsgStart)
	frame.Write(body.Bytes())
	frame.WriteByte(MsgEnd)

	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.Bytes()); err != nil {
		log.Println("uflsim-engine: plot viewer disconnected:", err)
		s.lost = true
	}
}

// Close flushes a final partial block, then exchanges the MSG_EOF
// handshake (spec.md §5 "Cancellation": "the simulation does not exit
// until the viewer acknowledges, to avoid discarding data in transit").
func (s *WSPlotSink) Close() error {
	if !s.lost && len(s.rows) > 0 {
		s.flush()
	}
	if s.lost {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, []byte{MsgEOF}); err != nil {
		return err
	}
	_, _, err := s.conn.ReadMessage()
	return err
}
