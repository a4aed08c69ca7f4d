package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Matt2765/halloween-control/internal/serial"
)

func TestDigitalWriteOnSimulatedLinkDoesNotError(t *testing.T) {
	link := serial.Open("M1", "/dev/does-not-exist", 250000)
	b := NewBoard("M1", link)

	assert.False(t, b.Available())
	assert.NoError(t, b.DigitalWrite(23, 1))
}

func TestRegistryWriteUnknownBoardDoesNotPanic(t *testing.T) {
	r := NewRegistry()
	r.Write("M9", 1, 1) // no board registered; must be a logged no-op
}

func TestAnalogReadOnSimulatedLinkReturnsZero(t *testing.T) {
	link := serial.Open("M2", "/dev/does-not-exist", 250000)
	b := NewBoard("M2", link)

	assert.Equal(t, 0, b.AnalogRead(7))
}
