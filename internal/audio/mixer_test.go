package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestEpochMonotonic is spec §8 property #1: a session started later
// always has a strictly greater epoch than one started earlier, under
// arbitrary interleavings of concurrent assignment.
func TestEpochMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := testMixer()

		n := rapid.IntRange(1, 64).Draw(rt, "n")

		epochs := make([]int64, n)
		for i := 0; i < n; i++ {
			epochs[i] = m.assignEpoch()
		}

		for i := 1; i < n; i++ {
			assert.Greater(t, epochs[i], epochs[i-1])
		}
	})
}

func TestStopAllAudioClearsEventRegardlessOfPending(t *testing.T) {
	m := testMixer()

	e1 := m.assignEpoch()
	s := &Session{Epoch: e1, HonorShutdown: true}
	m.register(s)

	// Never marked done; StopAllAudio must still return after its
	// timeout and clear stop_event.
	m.StopAllAudio(0)

	m.epochMu.Lock()
	stopEvent := m.stopEvent
	m.epochMu.Unlock()

	assert.False(t, stopEvent)
}

func TestShouldStopHonorsFlagsIndependently(t *testing.T) {
	m := testMixer()

	e1 := m.assignEpoch()
	ttsSession := &Session{Epoch: e1, HonorShutdown: false, HonorBreakCheck: false}
	m.register(ttsSession)

	m.StopAllAudio(0)

	assert.False(t, m.shouldStop(ttsSession), "TTS session must be immune to stop_all_audio")
}
