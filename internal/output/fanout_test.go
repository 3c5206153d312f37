package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFanoutEventSinkForwardsToAllSinks(t *testing.T) {
	var bufA, bufB bytes.Buffer
	a := NewEventTable(&bufA, 0.5, 0.5)
	b := NewEventTable(&bufB, 0.5, 0.5)
	f := NewFanoutEventSink(a, b)

	f.EmitSpike(1, 2)
	f.EmitAnalog(0, 10, 3)
	require.NoError(t, a.Flush())
	require.NoError(t, b.Flush())

	require.Equal(t, bufA.String(), bufB.String())
	require.NotEmpty(t, bufA.String())
}
