package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
)

var log = houselog.For("audio")

// Mixer owns the two fixed output devices, the channel tables, the
// epoch counter, and the set of active playback sessions. Locking
// discipline per spec §5: epoch lock -> active-sessions lock -> stream
// lock, never the reverse, and no lock is held across a blocking I/O
// call longer than a single block write.
type Mixer struct {
	cfg config.House
	hs  *house.State

	primaryDevice   *portaudio.DeviceInfo
	secondaryDevice *portaudio.DeviceInfo

	epochMu     sync.Mutex
	nextEpoch   int64
	cutoffEpoch int64
	stopEvent   bool

	sessionsMu sync.Mutex
	sessions   map[int64]*Session
}

// New initializes PortAudio and locates the primary/secondary output
// devices by index. Devices that cannot be found are left nil; sessions
// targeting them fail at open time, matching spec §7's "stream-open
// failures after all fallbacks raise to the caller."
func New(cfg config.House, hs *house.State, primaryDeviceIndex, secondaryDeviceIndex int) (*Mixer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: portaudio init: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: enumerate devices: %w", err)
	}

	m := &Mixer{
		cfg:      cfg,
		hs:       hs,
		sessions: make(map[int64]*Session),
	}

	if primaryDeviceIndex >= 0 && primaryDeviceIndex < len(devices) {
		m.primaryDevice = devices[primaryDeviceIndex]
	}

	if secondaryDeviceIndex >= 0 && secondaryDeviceIndex < len(devices) {
		m.secondaryDevice = devices[secondaryDeviceIndex]
	}

	return m, nil
}

// Close releases PortAudio.
func (m *Mixer) Close() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("audio: portaudio terminate: %w", err)
	}

	return nil
}

func (m *Mixer) deviceFor(d config.Device) *portaudio.DeviceInfo {
	if d == config.Secondary {
		return m.secondaryDevice
	}

	return m.primaryDevice
}

// assignEpoch hands out the next monotonically increasing epoch,
// guaranteeing spec §8 property #1: a session started later always has
// a strictly greater epoch than one started earlier.
func (m *Mixer) assignEpoch() int64 {
	m.epochMu.Lock()
	defer m.epochMu.Unlock()

	m.nextEpoch++

	return m.nextEpoch
}

func (m *Mixer) register(s *Session) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	m.sessions[s.Epoch] = s
}

func (m *Mixer) deregister(s *Session) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	delete(m.sessions, s.Epoch)
}

// shouldStop is polled once per audio block by a session's playback
// loop, per spec §4.2 step 5.
func (m *Mixer) shouldStop(s *Session) bool {
	if s.HonorBreakCheck && m.hs.BreakCheck() {
		return true
	}

	if s.HonorShutdown {
		m.epochMu.Lock()
		cutoff := m.cutoffEpoch
		stop := m.stopEvent
		m.epochMu.Unlock()

		if stop && s.Epoch <= cutoff {
			return true
		}
	}

	return false
}

// StopAllAudio snapshots the epoch counter as the cutoff, signals every
// honor_shutdown session at or below it to exit at its next block
// boundary, waits up to timeout for them to report done, then always
// clears the stop event and returns — matching spec §4.2's
// stop_all_audio semantics and the Scenario A/B testable properties.
func (m *Mixer) StopAllAudio(timeout time.Duration) {
	m.epochMu.Lock()
	m.cutoffEpoch = m.nextEpoch
	m.stopEvent = true
	cutoff := m.cutoffEpoch
	m.epochMu.Unlock()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if m.countPending(cutoff) == 0 {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	m.epochMu.Lock()
	m.stopEvent = false
	m.epochMu.Unlock()

	log.Info("stop_all_audio complete", "cutoff_epoch", cutoff)
}

func (m *Mixer) countPending(cutoff int64) int {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()

	n := 0

	for _, s := range m.sessions {
		if s.HonorShutdown && s.Epoch <= cutoff && !s.isDone() {
			n++
		}
	}

	return n
}
