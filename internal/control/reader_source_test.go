package control

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uflsim/engine/internal/sim"
)

func pollUntil(t *testing.T, c *ReaderControlSource, want sim.Command) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cmd, _ := c.Poll(); cmd == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for command %q", want)
}

func TestReaderControlSourceDeliversPauseResume(t *testing.T) {
	r := strings.NewReader("PR")
	c := NewReaderControlSource(r)
	pollUntil(t, c, sim.CmdPause)
	pollUntil(t, c, sim.CmdResume)
}

func TestReaderControlSourceEOFTerminates(t *testing.T) {
	r := strings.NewReader("")
	c := NewReaderControlSource(r)
	pollUntil(t, c, sim.CmdTerminate)
}

func TestReaderControlSourceIgnoresUnknownBytes(t *testing.T) {
	r := strings.NewReader("xyP")
	c := NewReaderControlSource(r)
	pollUntil(t, c, sim.CmdPause)
}

func TestReaderControlSourcePollNonBlockingWhenIdle(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := NewReaderControlSource(pr)
	cmd, payload := c.Poll()
	require.Equal(t, sim.CmdNone, cmd)
	require.Nil(t, payload)
}
