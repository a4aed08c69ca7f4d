// Package audio implements the multichannel mixer: channel-name
// resolution across two fixed output devices, epoch-gated playback
// sessions, and text-to-speech immune to the global stop signal. It
// generalizes the teacher's audio.go (OSS/ALSA device handling) to a
// PortAudio-backed, two-device, named-channel router, following the
// "latest revision" design called out in spec.md §9.
package audio

import (
	"fmt"
	"strings"

	"github.com/Matt2765/halloween-control/internal/config"
)

// Mode selects how a session's source is written into the output frame.
type Mode int

const (
	ModeOne Mode = iota
	ModeStereo
	ModeAll
)

// Target is the outcome of resolving a symbolic channel name.
type Target struct {
	Device config.Device
	Mode   Mode
	Index  int // for ModeOne
	L, R   int // for ModeStereo
	Gain   float64
}

// Resolve finds name in the primary channel table first, then the
// secondary, exactly as spec §4.2 requires. A stereo pair is detected
// via a single "stereo_<name>" entry carrying a pair, or two entries
// "stereo_<name>_L" / "stereo_<name>_R"; anything else is a mono
// target.
func (m *Mixer) Resolve(name string) (Target, error) {
	for _, tbl := range []map[string]config.ChannelEntry{m.cfg.PrimaryChannels, m.cfg.SecondaryChannels} {
		if t, ok := resolveIn(tbl, name); ok {
			return t, nil
		}
	}

	return Target{}, fmt.Errorf("audio: channel %q not found in primary or secondary table", name)
}

func resolveIn(tbl map[string]config.ChannelEntry, name string) (Target, bool) {
	if e, ok := tbl["stereo_"+name]; ok && e.IsStereo {
		return Target{Device: e.Device, Mode: ModeStereo, L: e.PairL, R: e.PairR, Gain: e.Gain}, true
	}

	l, lok := tbl["stereo_"+name+"_L"]
	r, rok := tbl["stereo_"+name+"_R"]

	if lok && rok {
		gain := l.Gain
		return Target{Device: l.Device, Mode: ModeStereo, L: l.Index, R: r.Index, Gain: gain}, true
	}

	if e, ok := tbl[name]; ok {
		return Target{Device: e.Device, Mode: ModeOne, Index: e.Index, Gain: e.Gain}, true
	}

	return Target{}, false
}

// parseTTSTarget splits the "name: text" form used by TTS into a
// channel name and the text to speak. If there is no colon, or the
// prefix before it does not resolve in either table, the whole string
// is treated as broadcast text.
func (m *Mixer) parseTTSTarget(s string) (channel string, text string, isTargeted bool) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", s, false
	}

	name := strings.TrimSpace(s[:idx])
	rest := strings.TrimSpace(s[idx+1:])

	if _, err := m.Resolve(name); err != nil {
		return "", s, false
	}

	return name, rest, true
}
