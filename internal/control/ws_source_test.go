package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/uflsim/engine/internal/output"
	"github.com/uflsim/engine/internal/sim"
)

// dialWSPair starts an httptest server that upgrades one connection to a
// websocket and returns both ends: the server-side conn (what
// WSControlSource reads from) and the client-side conn (what the test
// writes through to simulate a viewer sending commands).
func dialWSPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConnCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConnCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-serverConnCh
	t.Cleanup(func() { server.Close() })
	return server, client
}

func TestWSControlSourceParsesUnframedSingleChar(t *testing.T) {
	server, client := dialWSPair(t)
	src := NewWSControlSource(server)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("P")))
	cmd, payload := src.Poll()
	require.Equal(t, sim.CmdPause, cmd)
	require.Nil(t, payload)
}

func TestWSControlSourceParsesFramedUpdatePayload(t *testing.T) {
	server, client := dialWSPair(t)
	src := NewWSControlSource(server)

	msg := append([]byte{output.MsgStart}, append([]byte("U"), []byte("new-description-bytes")...)...)
	msg = append(msg, output.MsgEnd)
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, msg))

	cmd, payload := src.Poll()
	require.Equal(t, sim.CmdUpdate, cmd)
	require.Equal(t, "new-description-bytes", string(payload))
}

func TestWSControlSourcePeerEOFTerminates(t *testing.T) {
	server, client := dialWSPair(t)
	src := NewWSControlSource(server)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{output.MsgEOF}))
	cmd, _ := src.Poll()
	require.Equal(t, sim.CmdTerminate, cmd)

	// Further polls keep reporting terminate rather than reading again.
	cmd, _ = src.Poll()
	require.Equal(t, sim.CmdTerminate, cmd)
}
