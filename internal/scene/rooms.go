package scene

import (
	"math/rand"
	"time"

	"github.com/Matt2765/halloween-control/internal/house"
)

// RunGangway is grounded on rooms/gangway.py: while active, waits for a
// guest to trip the TOF1 sensor at the room's threshold, announces the
// trip, briefly opens door 1 (CLOPEN) while an animatronic runs, then
// recloses it.
func RunGangway(e *Engine, room string) {
	const sensorID = "TOF1"
	const animatronicBoard = "M1"
	const animatronicPin = 27
	const jawServoID = "WSKEL1"

	for !e.HS.BreakCheck() && (e.HS.HouseActive() || e.HS.Demo()) {
		if e.Sensors.Obstructed(sensorID, 250, 800, 850, 2) || e.HS.Demo() {
			e.speakBroadcast(room + " sensor tripped")
			e.HS.SetTargetDoorState(1, house.DoorClopen)

			e.Boards.Write(animatronicBoard, animatronicPin, 1)
			e.Sensors.Servo(jawServoID, 60, 200)
			log.Info("animatronic activated", "room", room, "pin", animatronicPin)

			if e.sleepSlice(5 * time.Second) {
				return
			}

			e.Boards.Write(animatronicBoard, animatronicPin, 0)
			e.Sensors.Servo(jawServoID, 0, 200)
			log.Info("animatronic deactivated", "room", room, "pin", animatronicPin)

			e.HS.SetTargetDoorState(1, house.DoorClosed)

			if e.HS.Demo() {
				e.finishDemo()

				return
			}
		}

		if e.sleepSlice(100 * time.Millisecond) {
			return
		}
	}
}

// RunGraveyard is grounded on rooms/graveyard.py: a repeating loop that
// runs one scripted event (a long ambient scene, a cannon sting, then a
// volley of randomized cannon fire; just under six minutes in all) and
// then pauses 30 seconds before the next run.
func RunGraveyard(e *Engine, room string) {
	for !e.HS.BreakCheck() && (e.HS.HouseActive() || e.HS.Demo()) {
		log.Info("room loop", "room", room)

		if graveyardBeckettsDeathEvent(e, room) {
			return
		}

		if e.sleepSlice(30 * time.Second) {
			return
		}

		if e.HS.Demo() {
			e.finishDemo()

			return
		}
	}
}

func graveyardBeckettsDeathEvent(e *Engine, room string) (stopped bool) {
	e.playOnceWithGainAsync(room, "GraveyardScene2v2.wav", 0.6)

	if e.sleepSlice(58 * time.Second) {
		return true
	}

	e.playOnceWithGainAsync(room, "CannonDesigned_2.wav", 1.2)

	if e.sleepSlice(5 * time.Second) {
		return true
	}

	go graveyardRandCannons(e, room)

	return e.sleepSlice(288 * time.Second)
}

func graveyardRandCannons(e *Engine, room string) {
	const board = "M1"
	const eyeSpriteID = "WEYE1"

	cannonPins := []int{45, 39, 41} // enemy cannon + cargo hold cannons, shared effect per original randCannons
	for i := 0; i < 6; i++ {
		if e.HS.BreakCheck() {
			return
		}

		pin := cannonPins[rand.Intn(len(cannonPins))]
		e.Boards.Write(board, pin, 1)
		e.Sensors.SpritePlay(eyeSpriteID, 1+rand.Intn(3))

		if e.sleepSlice(150 * time.Millisecond) {
			return
		}

		e.Boards.Write(board, pin, 0)
		e.Sensors.SpriteNext(eyeSpriteID, 300)

		if e.sleepSlice(time.Duration(1+rand.Intn(4)) * time.Second) {
			return
		}
	}
}

// RunCargoHold is grounded on rooms/Cargo Hold.py: a fixed dimmer ramp
// sequence followed by a smooth 0-99% sweep on the room's light.
func RunCargoHold(e *Engine, room string) {
	const channel = 1

	fixedLevels := []int{0, 50, 100, 0, 25, 50, 75, 100}

	for !e.HS.BreakCheck() && (e.HS.HouseActive() || e.HS.Demo()) {
		log.Info("room loop", "room", room)

		for _, lvl := range fixedLevels {
			e.Dimmer.Set(channel, lvl)

			if e.sleepSlice(3 * time.Second) {
				return
			}
		}

		for lvl := 0; lvl < 100; lvl++ {
			e.Dimmer.Set(channel, lvl)

			if e.sleepSlice(100 * time.Millisecond) {
				return
			}
		}

		e.Dimmer.Set(channel, 0)

		if e.HS.Demo() {
			e.finishDemo()

			return
		}
	}
}

// RunQuarterdeck is grounded on rooms/swamp.py (renamed "quarterdeck" by
// the original's import wiring): waits for the TOF2 sensor, then fires
// a naturalized lightning flicker on its relay pin.
func RunQuarterdeck(e *Engine, room string) {
	const sensorID = "TOF2"
	const board = "M1"
	const lightningPin = 23

	for !e.HS.BreakCheck() && (e.HS.HouseActive() || e.HS.Demo()) {
		log.Info("room loop", "room", room)

		for !e.Sensors.Obstructed(sensorID, 250, 1000, 1050, 2) && !e.HS.Demo() {
			if e.sleepSlice(time.Second) {
				return
			}
		}

		quarterdeckLightning(e, board, lightningPin)

		if e.HS.Demo() {
			e.finishDemo()

			return
		}
	}
}

func quarterdeckLightning(e *Engine, board string, pin int) {
	flashes := 3 + rand.Intn(3)

	for i := 0; i < flashes; i++ {
		if e.HS.BreakCheck() {
			return
		}

		e.Boards.Write(board, pin, 1)

		if e.sleepSlice(100 * time.Millisecond) {
			return
		}

		e.Boards.Write(board, pin, 0)

		if e.sleepSlice(80 * time.Millisecond) {
			return
		}
	}
}

// RunTreasureRoom is grounded on rooms/Treasure Room.py: presently a
// minimal idle loop in the original (its scene script is commented
// out), preserved here as the same placeholder cadence.
func RunTreasureRoom(e *Engine, room string) {
	for !e.HS.BreakCheck() && (e.HS.HouseActive() || e.HS.Demo()) {
		log.Info("room loop", "room", room)

		if e.sleepSlice(5 * time.Second) {
			return
		}

		if e.HS.Demo() {
			e.finishDemo()

			return
		}
	}
}

// finishDemo clears the Demo flag, matching every room script's
// `if house.Demo: house.Demo = False; break` exit path.
func (e *Engine) finishDemo() {
	e.HS.SetDemo(false)
}

// playOnceWithGainAsync plays file on channel once, threaded, with a
// gain override, cancellable by the normal stop path — the Go
// equivalent of play_to_named_channel_async(file, channel, gain_override=g).
func (e *Engine) playOnceWithGainAsync(channel, file string, gain float64) {
	opts := defaultThreadedOpts()
	opts.Gain = gain
	opts.Label = channel + ": " + file

	if _, err := e.Mixer.Play(e.Speaker, channel, file, opts); err != nil {
		log.Warn("room clip playback failed", "channel", channel, "file", file, "err", err)
	}
}
