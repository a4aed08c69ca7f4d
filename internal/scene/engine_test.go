package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Matt2765/halloween-control/internal/house"
)

func TestStartHouseRejectsWhenAlreadyActive(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)

	e := &Engine{HS: hs}

	err := e.StartHouse()
	assert.Error(t, err)
}

func TestStartHouseRejectsWhenNotOnline(t *testing.T) {
	hs := house.New() // Mode defaults to Offline

	e := &Engine{HS: hs}

	err := e.StartHouse()
	assert.Error(t, err)
}

func TestDemoRoomRejectsWhenHouseActive(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)

	e := &Engine{HS: hs}

	err := e.DemoRoom("gangway")
	assert.Error(t, err)
}

func TestDemoRoomRejectsUnknownRoom(t *testing.T) {
	hs := house.New()

	e := &Engine{HS: hs}

	err := e.DemoRoom("nonexistentRoom")
	assert.Error(t, err)
}

func TestSleepSliceReturnsTrueOnBreakCheck(t *testing.T) {
	hs := house.New() // not active, not online -> BreakCheck() true immediately

	e := &Engine{HS: hs}

	stopped := e.sleepSlice(time.Hour)
	assert.True(t, stopped)
}

func TestSleepSliceReturnsFalseWhenDurationElapsesClean(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)

	e := &Engine{HS: hs}

	stopped := e.sleepSlice(10 * time.Millisecond)
	assert.False(t, stopped)
}

func TestFinishDemoClearsFlag(t *testing.T) {
	hs := house.New()
	hs.SetDemo(true)

	e := &Engine{HS: hs}
	e.finishDemo()

	assert.False(t, hs.Demo())
}
