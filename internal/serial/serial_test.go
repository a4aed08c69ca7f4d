package serial

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingDeviceFallsBackToSimulated(t *testing.T) {
	l := Open("test-link", "/dev/definitely-not-a-real-port-xyz", 115200)
	require.NotNil(t, l)
	assert.False(t, l.Available())

	// Simulated writes never error.
	assert.NoError(t, l.WriteLine("TXB {}"))

	_, err := l.ReadLine()
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, l.Close())
}

func TestReopenOnMissingDeviceStaysUnavailableWithError(t *testing.T) {
	l := Open("test-link", "/dev/definitely-not-a-real-port-xyz", 115200)
	require.NotNil(t, l)

	err := l.Reopen()
	assert.Error(t, err)
	assert.False(t, l.Available())

	_, err = l.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}
