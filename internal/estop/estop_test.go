package estop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/go-gpiocdev"

	"github.com/Matt2765/halloween-control/internal/house"
)

func TestHandleEventTripsEmergencyShutoffOnFallingEdgeWhileOnline(t *testing.T) {
	hs := house.New()
	hs.SetMode(house.Online)

	w := &Watcher{hs: hs}
	w.handleEvent(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})

	assert.Equal(t, house.EmergencyShutoff, hs.Mode())
}

func TestHandleEventIgnoresRisingEdge(t *testing.T) {
	hs := house.New()
	hs.SetMode(house.Online)

	w := &Watcher{hs: hs}
	w.handleEvent(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge})

	assert.Equal(t, house.Online, hs.Mode())
}

func TestHandleEventNoopWhenNotOnline(t *testing.T) {
	hs := house.New() // Offline

	w := &Watcher{hs: hs}
	w.handleEvent(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge})

	assert.Equal(t, house.Offline, hs.Mode())
}
