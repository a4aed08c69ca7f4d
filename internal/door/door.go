// Package door implements the Safety-Critical Door Controller: one
// state machine per physical door, driving a solenoid toward a
// commanded target state while respecting obstruction detection, a
// self-pass ignore window, retry-with-hysteresis, and fail-open on
// shutdown, per spec §4.4. Grounded on control/doors.py's door_process.
package door

import (
	"time"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/sensorbus"
)

var log = houselog.For("door")

const pollInterval = 100 * time.Millisecond

// obstructionSource is the subset of sensorbus.Bus a Door needs;
// narrowed to an interface so tests can substitute a fake distance
// feed without standing up a real serial link.
type obstructionSource interface {
	Obstructed(id string, windowMS int64, blockMM, clearMM float64, minConsecutive int) bool
}

// Door drives one physical door's solenoid toward hs's TargetDoorState,
// publishing its observed state back into hs.DoorState.
type Door struct {
	cfg     config.DoorConfig
	hs      *house.State
	boards  *actuator.Registry
	sensors obstructionSource

	sleep func(time.Duration)
}

// New builds a Door bound to cfg's pin/sensor/threshold configuration.
func New(cfg config.DoorConfig, hs *house.State, boards *actuator.Registry, sensors *sensorbus.Bus) *Door {
	return &Door{cfg: cfg, hs: hs, boards: boards, sensors: sensors, sleep: time.Sleep}
}

func (d *Door) idleObstructed() bool {
	return d.sensors.Obstructed(d.cfg.SensorID, int64(d.cfg.IdleWindowMS), float64(d.cfg.IdleBlockMM), float64(d.cfg.ClearMM), d.cfg.IdleMinConsec)
}

func (d *Door) movingObstructed() bool {
	return d.sensors.Obstructed(d.cfg.SensorID, int64(d.cfg.MoveWindowMS), float64(d.cfg.MoveBlockMM), float64(d.cfg.ClearMM), d.cfg.MoveMinConsec)
}

func (d *Door) open() {
	d.boards.Write(d.cfg.Controller, d.cfg.SolenoidPin, 1)
	d.hs.SetDoorState(d.cfg.ID, house.DoorOpen)
	log.Info("door opened", "door", d.cfg.ID)
}

func (d *Door) assertClose() {
	d.boards.Write(d.cfg.Controller, d.cfg.SolenoidPin, 0)
}

// closeAttemptUntilClear implements the four-step close procedure: wait
// the self-pass window so the door's own leading edge doesn't trip its
// sensor, then monitor for MonitorWinS; any moving-profile obstruction
// reopens, waits RetryDelayS, re-closes, waits self-pass again, and
// restarts the window. A continuously-clear run of ClearHoldS declares
// success early; otherwise the window elapsing clear also succeeds.
// Returns false only if interrupted by shutdown/BreakCheck.
func (d *Door) closeAttemptUntilClear() bool {
	d.assertClose()
	d.sleep(time.Duration(d.cfg.SelfPassS * float64(time.Second)))

	monitorWin := time.Duration(d.cfg.MonitorWinS * float64(time.Second))
	clearHold := time.Duration(d.cfg.ClearHoldS * float64(time.Second))

	deadline := time.Now().Add(monitorWin)

	var clearSince time.Time

	for time.Now().Before(deadline) {
		if d.hs.BreakCheck() {
			return false
		}

		if d.movingObstructed() {
			d.hs.SetDoorState(d.cfg.ID, house.DoorClopen)
			log.Warn("door obstruction detected mid-close, reopening and retrying", "door", d.cfg.ID)
			d.boards.Write(d.cfg.Controller, d.cfg.SolenoidPin, 1)
			d.sleep(time.Duration(d.cfg.RetryDelayS * float64(time.Second)))
			d.assertClose()
			d.sleep(time.Duration(d.cfg.SelfPassS * float64(time.Second)))
			deadline = time.Now().Add(monitorWin)
			clearSince = time.Time{}
		} else {
			if clearSince.IsZero() {
				clearSince = time.Now()
			} else if time.Since(clearSince) >= clearHold {
				break
			}
		}

		d.sleep(pollInterval)
	}

	d.hs.SetDoorState(d.cfg.ID, house.DoorClosed)
	log.Info("door closed", "door", d.cfg.ID)

	return true
}

// handleClose keeps retrying a close command until it succeeds, the
// target changes, or the house leaves ONLINE, checking the idle
// obstruction profile (more sensitive, since the door is stationary)
// before each attempt.
func (d *Door) handleClose() {
	for !d.hs.BreakCheck() && d.hs.TargetDoorState(d.cfg.ID) == house.DoorClosed {
		if d.idleObstructed() {
			d.hs.SetDoorState(d.cfg.ID, house.DoorClopen)
			log.Warn("door obstruction present before close, delaying", "door", d.cfg.ID)
			d.boards.Write(d.cfg.Controller, d.cfg.SolenoidPin, 1)
			d.sleep(time.Duration(d.cfg.RetryDelayS * float64(time.Second)))

			continue
		}

		if d.closeAttemptUntilClear() {
			return
		}
	}
}

// handleChange dispatches on the newly observed target, per the
// resolved CLOPEN semantics (SPEC_FULL.md §D): CLOPEN asserts open now
// and waits for an external CLOSED command, with no auto-close timer.
func (d *Door) handleChange() {
	switch d.hs.TargetDoorState(d.cfg.ID) {
	case house.DoorOpen, house.DoorClopen:
		d.open()
	case house.DoorClosed:
		d.handleClose()
	}
}

// Run drives the door until stop fires or BreakCheck trips, then fails
// open, matching spec §4.4's "always open on shutdown" invariant.
func (d *Door) Run(stop <-chan struct{}) {
	d.open()

	for {
		select {
		case <-stop:
			d.open()

			return
		default:
		}

		if d.hs.BreakCheck() {
			break
		}

		if d.hs.DoorState(d.cfg.ID) != d.hs.TargetDoorState(d.cfg.ID) {
			d.handleChange()
		}

		d.sleep(pollInterval)
	}

	log.Info("door exiting, asserting open", "door", d.cfg.ID)
	d.open()
}
