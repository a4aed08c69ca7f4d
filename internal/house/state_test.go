package house

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	s := New()
	assert.True(t, s.Boot())
	assert.Equal(t, Offline, s.Mode())
	assert.True(t, s.HouseLights())
	assert.Equal(t, DoorOpen, s.DoorState(1))
	assert.Equal(t, DoorOpen, s.TargetDoorState(1))
	assert.Equal(t, RoomInactive, s.RoomState("gangway"))
}

func TestBreakCheck(t *testing.T) {
	s := New()
	assert.True(t, s.BreakCheck(), "not active and not online -> break")

	s.SetMode(Online)
	s.SetHouseActive(true)
	assert.False(t, s.BreakCheck())

	s.SetMode(SoftShutdown)
	assert.True(t, s.BreakCheck())
}

func TestDoorStateRoundTrip(t *testing.T) {
	s := New()
	s.SetTargetDoorState(2, DoorClosed)
	assert.Equal(t, DoorClosed, s.TargetDoorState(2))
	assert.Equal(t, DoorOpen, s.DoorState(2), "observed state unaffected until door task catches up")

	s.SetDoorState(2, DoorClosed)
	assert.Equal(t, DoorClosed, s.DoorState(2))
}

func TestClearBoot(t *testing.T) {
	s := New()
	s.ClearBoot()
	assert.False(t, s.Boot())
}
