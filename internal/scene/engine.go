// Package scene is the Show Orchestration Engine: it launches and
// supervises one cooperative task per active room, blocks on the
// global BreakCheck cancellation predicate, and supports a single-room
// demo mode. Grounded on control/system.py's initialize_system/
// StartHouse and the rooms/*.py scene scripts, generalized from their
// hardcoded thread-per-room wiring into a data-driven room table.
package scene

import (
	"fmt"
	"sync"
	"time"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/audio"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/dimmer"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/sensorbus"
)

var log = houselog.For("scene")

// Engine bundles every subsystem a room task may need, standing in for
// the original's scattered module-level imports (context.house,
// control.audio_manager, control.arduino, control.dimmer_controller,
// control.remote_sensor_monitor) behind one value passed to each room
// function.
type Engine struct {
	HS      *house.State
	Cfg     config.House
	Mixer   *audio.Mixer
	Speaker audio.Speaker
	Sensors *sensorbus.Bus
	Dimmer  *dimmer.Dimmer
	Boards  *actuator.Registry

	wg sync.WaitGroup
}

// New builds an Engine from its component subsystems.
func New(hs *house.State, cfg config.House, mixer *audio.Mixer, speaker audio.Speaker, sensors *sensorbus.Bus, dim *dimmer.Dimmer, boards *actuator.Registry) *Engine {
	return &Engine{HS: hs, Cfg: cfg, Mixer: mixer, Speaker: speaker, Sensors: sensors, Dimmer: dim, Boards: boards}
}

// RoomScript is one room's scene task.
type RoomScript struct {
	Name string
	Run  func(eng *Engine, room string)
}

// Rooms is the data-driven table of scene scripts, generalizing the
// original's five hardcoded `threading.Thread(target=<room>.run, ...)`
// calls in StartHouse.
var Rooms = []RoomScript{
	{Name: "graveyard", Run: RunGraveyard},
	{Name: "gangway", Run: RunGangway},
	{Name: "treasureRoom", Run: RunTreasureRoom},
	{Name: "quarterdeck", Run: RunQuarterdeck},
	{Name: "cargoHold", Run: RunCargoHold},
}

func (e *Engine) sleepSlice(d time.Duration) bool {
	deadline := time.Now().Add(d)

	for time.Now().Before(deadline) {
		if e.HS.BreakCheck() {
			return true
		}

		slice := 100 * time.Millisecond
		if remain := time.Until(deadline); remain < slice {
			slice = remain
		}

		if slice > 0 {
			time.Sleep(slice)
		}
	}

	return e.HS.BreakCheck()
}

// runRoom wraps a room's Run in the per-room lifecycle the original
// repeats in every rooms/*.py file: set ACTIVE, recover from a panic so
// one room's failure can't cascade (spec §4.1's failure semantics),
// always set INACTIVE on exit.
func (e *Engine) runRoom(rs RoomScript) {
	defer e.wg.Done()

	e.HS.SetRoomState(rs.Name, house.RoomActive)
	log.Info("room starting", "room", rs.Name)

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("room script panicked, terminating this room only", "room", rs.Name, "panic", r)
			}
		}()

		rs.Run(e, rs.Name)
	}()

	e.HS.SetRoomState(rs.Name, house.RoomInactive)
	log.Info("room exiting", "room", rs.Name)
}

// StartHouse begins the full show: precondition HouseActive==false &&
// Mode==ONLINE. Closes the two entry doors, turns off ambient house
// lights, spawns every room task plus the supplemented NoScareWatcher
// and ambience loops, and blocks until BreakCheck fires.
func (e *Engine) StartHouse() error {
	if e.HS.HouseActive() {
		return fmt.Errorf("scene: house already active")
	}

	if e.HS.Mode() != house.Online {
		return fmt.Errorf("scene: cannot start house while system is not ONLINE")
	}

	e.speakBroadcast("starting house")
	log.Info("launching main sequence")

	e.HS.SetHouseActive(true)
	e.HS.SetTargetDoorState(1, house.DoorClosed)
	e.HS.SetTargetDoorState(2, house.DoorClosed)
	e.HS.SetHouseLights(false)

	for _, rs := range Rooms {
		e.wg.Add(1)

		go e.runRoom(rs)
	}

	go e.NoScareWatcher()
	e.PlayAmbience()

	for !e.HS.BreakCheck() {
		time.Sleep(100 * time.Millisecond)
	}

	log.Info("main sequence ended")

	return nil
}

// DemoRoom runs a single named room in isolation: precondition
// HouseActive==false. Room tasks detect Demo==true and exit after one
// iteration, per spec §4.1.
func (e *Engine) DemoRoom(name string) error {
	if e.HS.HouseActive() {
		return fmt.Errorf("scene: cannot demo while house is active")
	}

	var rs *RoomScript

	for i := range Rooms {
		if Rooms[i].Name == name {
			rs = &Rooms[i]

			break
		}
	}

	if rs == nil {
		return fmt.Errorf("scene: unknown room %q", name)
	}

	e.HS.SetDemo(true)
	e.HS.SetHouseActive(true)

	e.wg.Add(1)
	e.runRoom(*rs)

	e.HS.SetHouseActive(false)

	return nil
}

func (e *Engine) speakBroadcast(text string) {
	if _, err := e.Mixer.Speak(e.Speaker, text); err != nil {
		log.Warn("broadcast speech failed", "err", err)
	}
}

func (e *Engine) speakTo(room, text string) {
	if _, err := e.Mixer.Speak(e.Speaker, room+": "+text); err != nil {
		log.Warn("room speech failed", "room", room, "err", err)
	}
}

func defaultThreadedOpts() audio.PlayOptions {
	opts := audio.DefaultPlayOptions()
	opts.Threaded = true

	return opts
}

func (e *Engine) playLoopingAsync(channel, file string, gain float64) {
	opts := audio.DefaultPlayOptions()
	opts.Threaded = true
	opts.Looping = true
	opts.Gain = gain
	opts.Label = "ambience: " + channel

	if _, err := e.Mixer.Play(e.Speaker, channel, file, opts); err != nil {
		log.Warn("ambience playback failed", "channel", channel, "err", err)
	}
}
