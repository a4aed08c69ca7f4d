package audio

// Play mirrors the original control/audio_manager.py's dual-purpose
// play_audio(...) entry point used throughout the room scripts: when
// file is non-empty it is routed playback of a named channel (mono,
// stereo pair, or broadcast); when file is empty, target is treated as
// TTS text (optionally in "name: text" form) and synthesized instead.
func (m *Mixer) Play(speaker Speaker, target, file string, opts PlayOptions) (*Session, error) {
	if file == "" {
		return m.Speak(speaker, target)
	}

	clip, err := LoadWAV(file)
	if err != nil {
		return nil, err
	}

	return m.PlayFile(target, clip, opts)
}
