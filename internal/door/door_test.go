package door

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/serial"
)

// fakeSensors lets tests script a sequence of Obstructed() answers
// without a real sensor bus.
type fakeSensors struct {
	answers []bool
	i       int
}

func (f *fakeSensors) Obstructed(id string, windowMS int64, block, clear float64, minConsec int) bool {
	if f.i >= len(f.answers) {
		return false
	}

	v := f.answers[f.i]
	f.i++

	return v
}

func testDoor(t *testing.T, cfg config.DoorConfig, hs *house.State, sensors obstructionSource) *Door {
	t.Helper()

	boards := actuator.NewRegistry()
	link := serial.Open(cfg.Controller, "/dev/does-not-exist", 250000)
	boards.Register(cfg.Controller, actuator.NewBoard(cfg.Controller, link))

	d := New(cfg, hs, boards, nil)
	d.sensors = sensors
	d.sleep = func(time.Duration) {} // instant, for deterministic fast tests

	return d
}

func baseCfg() config.DoorConfig {
	return config.Default().Doors[0]
}

func TestOpenTargetAssertsOpen(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)
	hs.SetTargetDoorState(1, house.DoorOpen)

	d := testDoor(t, baseCfg(), hs, &fakeSensors{})
	d.handleChange()

	assert.Equal(t, house.DoorOpen, hs.DoorState(1))
}

func TestClopenTargetAssertsOpenOnly(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)
	hs.SetTargetDoorState(1, house.DoorClopen)

	d := testDoor(t, baseCfg(), hs, &fakeSensors{})
	d.handleChange()

	assert.Equal(t, house.DoorOpen, hs.DoorState(1))
}

func TestCloseSucceedsWhenNeverObstructed(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)
	hs.SetTargetDoorState(1, house.DoorClosed)

	cfg := baseCfg()
	cfg.MonitorWinS = 0.01
	cfg.ClearHoldS = 0.0

	d := testDoor(t, cfg, hs, &fakeSensors{})
	d.handleChange()

	assert.Equal(t, house.DoorClosed, hs.DoorState(1))
}

// TestCloseRetriesThroughObstruction is Scenario C: an obstruction
// during the close window reopens and retries, eventually closing.
func TestCloseRetriesThroughObstruction(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)
	hs.SetTargetDoorState(1, house.DoorClosed)

	cfg := baseCfg()
	cfg.MonitorWinS = 0.01
	cfg.ClearHoldS = 0.0

	// First monitor tick reports obstructed (moving profile), forcing a
	// reopen/retry; every subsequent tick reports clear.
	sensors := &fakeSensors{answers: []bool{false, true}}

	d := testDoor(t, cfg, hs, sensors)
	d.handleChange()

	assert.Equal(t, house.DoorClosed, hs.DoorState(1))
}

func TestIdleObstructionBeforeCloseDelaysAndThenCloses(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)
	hs.SetTargetDoorState(1, house.DoorClosed)

	cfg := baseCfg()
	cfg.MonitorWinS = 0.01
	cfg.ClearHoldS = 0.0

	// The first idleObstructed() check (before any close attempt) fires
	// once, the idle loop's second check clears, and the close window
	// itself sees no moving obstruction.
	sensors := &fakeSensors{answers: []bool{true, false}}

	d := testDoor(t, cfg, hs, sensors)
	d.handleClose()

	assert.Equal(t, house.DoorClosed, hs.DoorState(1))
}

func TestRunFailsOpenOnStop(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(true)
	hs.SetMode(house.Online)

	d := testDoor(t, baseCfg(), hs, &fakeSensors{})

	stop := make(chan struct{})
	close(stop)

	d.Run(stop)

	assert.Equal(t, house.DoorOpen, hs.DoorState(1))
}

func TestRunFailsOpenOnBreakCheck(t *testing.T) {
	hs := house.New()
	hs.SetHouseActive(false) // BreakCheck() true immediately

	d := testDoor(t, baseCfg(), hs, &fakeSensors{})

	stop := make(chan struct{})

	d.Run(stop)

	require.Equal(t, house.DoorOpen, hs.DoorState(1))
}
