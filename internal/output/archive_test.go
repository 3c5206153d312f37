package output

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArchiveWritesChannelTableHeader(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewArchive(&buf, []string{"c1", "c2"})
	require.NoError(t, err)

	r := bytes.NewReader(buf.Bytes())
	var count uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &count))
	require.Equal(t, uint32(2), count)

	for _, want := range []string{"c1", "c2"} {
		var n uint32
		require.NoError(t, binary.Read(r, binary.LittleEndian, &n))
		name := make([]byte, n)
		_, err := r.Read(name)
		require.NoError(t, err)
		require.Equal(t, want, string(name))
	}
}

func TestArchiveAppendsSamplesAfterHeader(t *testing.T) {
	var buf bytes.Buffer
	a, err := NewArchive(&buf, []string{"c1"})
	require.NoError(t, err)
	headerLen := buf.Len()

	a.EmitSpike(0, 5)
	a.EmitAnalog(0, -200, 6)
	require.NoError(t, a.Err())

	require.Equal(t, headerLen+2*13, buf.Len())
}
