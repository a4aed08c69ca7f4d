package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Clip is decoded PCM audio: mono or stereo float32 samples at the
// file's native sample rate. Full audio-codec support (MP3, FLAC, …)
// is explicitly out of scope (spec §1, "audio file decoding libraries")
// — this decodes the PCM WAV files the show assets are authored in.
type Clip struct {
	SampleRate int
	Stereo     bool
	Mono       []float32   // populated when !Stereo
	Left       []float32   // populated when Stereo
	Right      []float32   // populated when Stereo
}

// LoadWAV reads a canonical 16-bit or 8-bit PCM WAV file. Missing files
// raise at resolution time to the caller, per spec §4.2/§7.
func LoadWAV(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: load %q: %w", path, err)
	}

	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("audio: %q is not a RIFF/WAVE file", path)
	}

	var (
		numChannels   uint16
		sampleRate    uint32
		bitsPerSample uint16
		pcm           []byte
		haveFmt       bool
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		if body+chunkSize > len(data) {
			break
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("audio: %q has truncated fmt chunk", path)
			}

			numChannels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if !haveFmt || pcm == nil {
		return nil, fmt.Errorf("audio: %q missing fmt or data chunk", path)
	}

	if bitsPerSample != 16 && bitsPerSample != 8 {
		return nil, fmt.Errorf("audio: %q has unsupported bit depth %d", path, bitsPerSample)
	}

	samples := decodePCM(pcm, bitsPerSample)

	clip := &Clip{SampleRate: int(sampleRate)}

	switch numChannels {
	case 1:
		clip.Mono = samples
	case 2:
		clip.Stereo = true
		clip.Left = make([]float32, 0, len(samples)/2)
		clip.Right = make([]float32, 0, len(samples)/2)

		for i := 0; i+1 < len(samples); i += 2 {
			clip.Left = append(clip.Left, samples[i])
			clip.Right = append(clip.Right, samples[i+1])
		}
	default:
		// Downmix anything beyond stereo to mono by averaging frames.
		clip.Mono = downmix(samples, int(numChannels))
	}

	return clip, nil
}

func decodePCM(pcm []byte, bits uint16) []float32 {
	switch bits {
	case 8:
		out := make([]float32, len(pcm))
		for i, b := range pcm {
			out[i] = (float32(b) - 128) / 128
		}

		return out
	default: // 16-bit
		n := len(pcm) / 2
		out := make([]float32, n)

		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			out[i] = float32(v) / 32768
		}

		return out
	}
}

func downmix(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	out := make([]float32, frames)

	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[f*channels+c]
		}

		out[f] = sum / float32(channels)
	}

	return out
}
