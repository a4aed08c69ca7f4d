// Package supervisor drives the top-level boot -> online -> shutdown ->
// reboot protocol, grounded on control/system.py's initialize_system
// and control/shutdown.py's shutdownDetector/shutdown. It owns the
// process-wide House State's Mode transitions and the data-driven
// shutdown relay sweep.
package supervisor

import (
	"time"

	"github.com/Matt2765/halloween-control/internal/actuator"
	"github.com/Matt2765/halloween-control/internal/audio"
	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/door"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
)

var log = houselog.For("supervisor")

// Confirmer abstracts the operator's "type SAFE to resume" terminal
// prompt from control/shutdown.py's shutdownDetector. The original
// blocks on a bare terminal input() call; an unattended service has no
// controlling terminal, so this is routed through whatever operator
// surface the process was wired with (HTTP endpoint, estop reset
// switch, or a CLI harness for cmd/doorsim-style standalone runs).
type Confirmer interface {
	// WaitForSafeWord blocks until the operator confirms it is safe to
	// resume, mirroring the original's `while input() != "SAFE"`.
	WaitForSafeWord()
}

// Supervisor coordinates the house-wide lifecycle across the
// subsystems it supervises.
type Supervisor struct {
	HS      *house.State
	Cfg     config.House
	Mixer   *audio.Mixer
	Speaker audio.Speaker
	Boards  *actuator.Registry
	Doors   []*door.Door
	Confirm Confirmer

	sleep func(time.Duration)
}

// New builds a Supervisor from its component subsystems.
func New(hs *house.State, cfg config.House, mixer *audio.Mixer, speaker audio.Speaker, boards *actuator.Registry, doors []*door.Door, confirm Confirmer) *Supervisor {
	return &Supervisor{HS: hs, Cfg: cfg, Mixer: mixer, Speaker: speaker, Boards: boards, Doors: doors, Confirm: confirm, sleep: time.Sleep}
}

// Run is the persistent boot loop: on first entry it marks the house
// booted, brings the system online, spawns a shutdown watcher, and
// blocks until Mode leaves ONLINE; each cycle re-spawns door tasks and
// re-enters ONLINE after a REBOOT, matching control/system.py's outer
// `while True` wrapping non-persistent service startup.
func (s *Supervisor) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if s.HS.Boot() {
			log.Info("initializing persistent services")
			s.HS.ClearBoot()
		}

		log.Info("initializing non-persistent services")
		doorStops := s.spawnDoors()

		time.Sleep(200 * time.Millisecond)
		s.HS.SetMode(house.Online)
		s.HS.SetHouseLights(true)

		log.Info("system is ONLINE")

		go s.shutdownDetector(stop)

		s.waitWhile(stop, func() bool { return s.HS.Mode() == house.Online })

		select {
		case <-stop:
			s.stopDoors(doorStops)
			return
		default:
		}

		log.Info("non-persistent services stopping, reboot in progress")
		s.stopDoors(doorStops)

		s.waitWhile(stop, func() bool { return s.HS.Mode() != house.Reboot })

		select {
		case <-stop:
			return
		default:
		}
	}
}

func (s *Supervisor) waitWhile(stop <-chan struct{}, cond func() bool) {
	for cond() {
		select {
		case <-stop:
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Supervisor) spawnDoors() []chan struct{} {
	stops := make([]chan struct{}, 0, len(s.Doors))

	for _, d := range s.Doors {
		stop := make(chan struct{})
		stops = append(stops, stop)

		go d.Run(stop)
	}

	return stops
}

func (s *Supervisor) stopDoors(stops []chan struct{}) {
	for _, stop := range stops {
		close(stop)
	}
}

// shutdownDetector mirrors control/shutdown.py's shutdownDetector: it
// idles while ONLINE, then on the first mode transition plays the
// matching announcement, runs the relay sweep, flashes the house
// lights, and (for EmergencyShutoff and any unrecognized shutdown mode)
// blocks on operator confirmation before the countdown; SoftShutdown
// recovers on a fixed countdown with no confirmation gate.
func (s *Supervisor) shutdownDetector(stop <-chan struct{}) {
	for s.HS.Mode() == house.Online {
		select {
		case <-stop:
			return
		case <-time.After(time.Second):
		}
	}

	mode := s.HS.Mode()
	log.Warn("shutdown detected", "mode", mode)

	s.stopAllAudio(2 * time.Second)
	s.announce(mode)
	s.Shutdown()
	s.flashHouseLights(3)

	switch mode {
	case house.SoftShutdown:
		// no confirmation gate: recovers on a fixed countdown.
	case house.EmergencyShutoff:
		s.waitForSafe()
	default:
		log.Warn("unrecognized shutdown mode, treating as emergency", "mode", mode)
		s.waitForSafe()
	}

	s.countdown(5 * time.Second)

	s.HS.SetMode(house.Reboot)
	s.speak("system rebooting")
}

func (s *Supervisor) waitForSafe() {
	if s.Confirm == nil {
		return
	}

	s.Confirm.WaitForSafeWord()
}

func (s *Supervisor) announce(mode house.Mode) {
	switch mode {
	case house.EmergencyShutoff:
		s.speak("emergency shutdown activated")
	case house.SoftShutdown:
		s.speak("soft shutdown activated")
	default:
		s.speak("shutdown activated")
	}
}

func (s *Supervisor) countdown(d time.Duration) {
	secs := int(d / time.Second)
	log.Info("returning to standby", "seconds", secs)
	s.sleep(d)
}

func (s *Supervisor) flashHouseLights(times int) {
	for i := 0; i < times; i++ {
		s.HS.SetHouseLights(false)
		s.sleep(250 * time.Millisecond)
		s.HS.SetHouseLights(true)
		s.sleep(250 * time.Millisecond)
	}
}

func (s *Supervisor) stopAllAudio(timeout time.Duration) {
	if s.Mixer == nil {
		return
	}

	s.Mixer.StopAllAudio(timeout)
}

func (s *Supervisor) speak(text string) {
	if s.Mixer == nil || s.Speaker == nil {
		return
	}

	if _, err := s.Mixer.Speak(s.Speaker, text); err != nil {
		log.Warn("announcement failed", "text", text, "err", err)
	}
}

// Shutdown sweeps every data-driven relay to its safe/inactive level,
// generalizing control/shutdown.py's flat sequence of m1Digital_Write
// calls, then toggles the house lights as the original's closing
// `toggleHouseLights(True)` does.
func (s *Supervisor) Shutdown() {
	s.HS.SetHouseActive(false)

	for _, relay := range s.Cfg.ShutdownRelays {
		s.Boards.Write(relay.Controller, relay.Pin, relay.OffValue)
		log.Info("relay set safe", "label", relay.Label, "room", relay.Room, "controller", relay.Controller, "pin", relay.Pin)
	}

	s.sleep(time.Second)
	s.HS.SetHouseLights(true)
}
