package audio

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/Matt2765/halloween-control/internal/config"
)

// Speaker synthesizes a WAV file from text. The concrete engine (e.g.
// the system "say"/espeak-ng binary) is an external collaborator,
// deliberately out of scope per spec §1 ("the TTS engine"); this is the
// narrow interface the mixer consumes.
type Speaker interface {
	Synthesize(text string, outPath string) error
}

// CommandSpeaker shells out to an external text-to-speech command that
// writes a WAV file, the same "produce a WAV file from text" contract
// spec §9 calls out as the only requirement on the TTS engine.
type CommandSpeaker struct {
	// Command and Args are formatted with the text and output path
	// substituted for "{text}" and "{out}".
	Command string
	Args    []string
}

// DefaultSpeaker shells out to espeak-ng, a common headless Linux TTS
// binary, rendering directly to a WAV file.
func DefaultSpeaker() CommandSpeaker {
	return CommandSpeaker{
		Command: "espeak-ng",
		Args:    []string{"-w", "{out}", "{text}"},
	}
}

func (c CommandSpeaker) Synthesize(text string, outPath string) error {
	args := make([]string, len(c.Args))

	for i, a := range c.Args {
		switch a {
		case "{text}":
			args[i] = text
		case "{out}":
			args[i] = outPath
		default:
			args[i] = a
		}
	}

	cmd := exec.Command(c.Command, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio: tts synthesize: %w", err)
	}

	return nil
}

// Speak synthesizes text and plays it. A bare string broadcasts to
// every channel of the primary device; a "name: text" form targets a
// named channel instead. TTS is always threaded, and always immune to
// both global stop signals (honor_shutdown=false, honor_breakcheck=
// false) regardless of the caller's wishes, per spec §4.2.
func (m *Mixer) Speak(speaker Speaker, text string) (*Session, error) {
	channel, spoken, targeted := m.parseTTSTarget(text)

	tmp, err := os.CreateTemp("", "haunt-tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("audio: tts temp file: %w", err)
	}

	outPath := tmp.Name()
	_ = tmp.Close()

	if err := speaker.Synthesize(spoken, outPath); err != nil {
		os.Remove(outPath)

		return nil, err
	}

	clip, err := LoadWAV(outPath)
	if err != nil {
		os.Remove(outPath)

		return nil, fmt.Errorf("audio: tts decode: %w", err)
	}

	var t Target

	if targeted {
		resolved, err := m.Resolve(channel)
		if err != nil {
			os.Remove(outPath)

			return nil, err
		}

		t = resolved
	} else {
		t = Target{Device: config.Primary, Mode: ModeAll, Gain: 1.0}
	}

	opts := PlayOptions{
		Threaded:        true,
		Label:           "tts: " + spoken,
		HonorShutdown:   false,
		HonorBreakCheck: false,
	}

	s, err := m.playResolved(t, clip, opts)

	// The temp file is only needed long enough for LoadWAV to decode
	// it; spec §4.2 requires deletion "after playback begins," which
	// for our in-memory Clip is immediately after the decode above.
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.Remove(outPath)
	}()

	return s, err
}
