// Package control implements the control channel spec.md §4.G describes:
// single-character P/R/U/T commands, delivered either over a
// gorilla/websocket connection sharing the plot stream's MSG_START/
// MSG_END/MSG_EOF framing, or read off a plain byte stream (e.g. stdin)
// for runs with no attached viewer. Mid-run reload itself (rebuilding the
// network and copying state across) lives in internal/sim; this package
// only supplies the sim.ControlSource that hands that state machine its
// commands and payloads.
package control
