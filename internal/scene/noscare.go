package scene

import (
	"math/rand"
	"time"
)

// noScareFiles mirrors control/system.py:noScareDetector's clip list: a
// bank of reassuring "it's okay, the scares have stopped" ambient
// announcements played while no-scare mode is on.
var noScareFiles = []string{
	"noScare1.wav", "noScare2.wav", "noScare3.wav", "noScare4.wav",
	"noScare5.wav", "noScare6.wav", "noScare7.wav", "noScare8.wav",
	"noScare9.wav", "noScare10.wav", "noScare11.wav",
}

// noScareButtonID is the sensor-mesh button id dedicated to the
// no-scare panic request (control/system.py's "BTN3").
const noScareButtonID = "BTN3"

// NoScareWatcher is the supplemented feature from SPEC_FULL.md §C.1: a
// background watcher that, while the house is active, waits for a
// guest to press the no-scare panic button, then plays a random
// reassuring clip every 15 seconds until the button reads pressed
// again, followed by a 5-second cooldown before watching for the next
// press.
func (e *Engine) NoScareWatcher() {
	for {
		for {
			if e.HS.BreakCheck() {
				return
			}

			if pressed, ok := e.Sensors.GetButtonValue(noScareButtonID, -1); ok && pressed {
				break
			}

			time.Sleep(50 * time.Millisecond)
		}

		if e.sleepSlice(time.Second) {
			return
		}

		for {
			pressed, ok := e.Sensors.GetButtonValue(noScareButtonID, -1)
			if ok && pressed {
				break
			}

			clip := noScareFiles[rand.Intn(len(noScareFiles))]
			e.playOnceAsync(clip)

			if e.sleepSlice(15 * time.Second) {
				return
			}
		}

		if e.sleepSlice(5 * time.Second) {
			return
		}
	}
}

func (e *Engine) playOnceAsync(file string) {
	opts := defaultThreadedOpts()

	if _, err := e.Mixer.Play(e.Speaker, "", file, opts); err != nil {
		log.Warn("no-scare clip playback failed", "file", file, "err", err)
	}
}
