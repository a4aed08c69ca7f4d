package scene

// ambienceFile is the looping ambient bed started in each ambience room
// at house activation, per SPEC_FULL.md §C.2 and control/system.py:shipAmbience.
const ambienceFile = "shipAmbienceCUT.wav"

var ambienceRooms = []string{"cargoHold", "gangway", "quarterdeck"}

// PlayAmbience starts the looping ambient-bed track in every ambience
// room, cancelled later by the normal stop_all_audio path like any
// other looping session (honor_shutdown defaults to true).
func (e *Engine) PlayAmbience() {
	log.Info("starting ambience loops", "rooms", ambienceRooms)

	for _, room := range ambienceRooms {
		e.playLoopingAsync(room, ambienceFile, 1.0)
	}
}
