package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/Matt2765/halloween-control/internal/config"
)

// blockFrames is the per-write block size, chosen for ~40ms of audio at
// 48kHz per spec §5 ("audio stream writes ... bounded by block duration
// ~40ms at 48 kHz").
const blockFrames = 1920

// PlayOptions controls a single playback invocation.
type PlayOptions struct {
	Gain            float64 // 0 means "use the channel table's default gain"
	Looping         bool
	Threaded        bool
	Label           string
	HonorShutdown   bool
	HonorBreakCheck bool
}

// DefaultPlayOptions returns the normal, cancellable, blocking defaults.
func DefaultPlayOptions() PlayOptions {
	return PlayOptions{Threaded: false, HonorShutdown: true, HonorBreakCheck: true}
}

// Session is one playback invocation: an epoch, a done signal, and the
// honor_* flags that decide whether it responds to global stop signals.
type Session struct {
	Epoch           int64
	Label           string
	HonorShutdown   bool
	HonorBreakCheck bool
	Mode            Mode
	Index           int
	L, R            int

	done int32 // atomic bool, 0/1
}

func (s *Session) isDone() bool { return atomic.LoadInt32(&s.done) == 1 }
func (s *Session) markDone()    { atomic.StoreInt32(&s.done, 1) }

// Wait blocks until the session reports done.
func (s *Session) Wait() {
	for !s.isDone() {
		time.Sleep(5 * time.Millisecond)
	}
}

// PlayFile routes clip to target with the given options. An empty
// target broadcasts to every channel of the primary device, mirroring
// the original's play_to_all_channels_async; a named target resolves
// through Resolve as usual. Stream-open failure (after every fallback
// strategy) is returned synchronously to the caller even in threaded
// mode, per spec §4.2's failure semantics; once the stream is open, the
// block-write loop runs in a goroutine when Threaded is set.
func (m *Mixer) PlayFile(target string, clip *Clip, opts PlayOptions) (*Session, error) {
	if target == "" {
		return m.playResolved(Target{Device: config.Primary, Mode: ModeAll, Gain: 1.0}, clip, opts)
	}

	t, err := m.Resolve(target)
	if err != nil {
		return nil, err
	}

	return m.playResolved(t, clip, opts)
}

// playResolved runs a session against an already-resolved Target,
// shared by PlayFile (named channel/stereo pair) and Speak (broadcast
// or named TTS).
func (m *Mixer) playResolved(t Target, clip *Clip, opts PlayOptions) (*Session, error) {
	gain := t.Gain
	if opts.Gain != 0 {
		gain = opts.Gain
	}

	dev := m.deviceFor(t.Device)
	if dev == nil {
		return nil, fmt.Errorf("audio: no device configured for %q", t.Device)
	}

	channels := dev.MaxOutputChannels
	outBuf := make([]float32, blockFrames*channels)

	stream, actualRate, err := openStreamWithFallback(dev, channels, float64(clip.SampleRate), outBuf)
	if err != nil {
		return nil, fmt.Errorf("audio: open stream (label %q): %w", opts.Label, err)
	}

	s := &Session{
		Epoch:           m.assignEpoch(),
		Label:           opts.Label,
		HonorShutdown:   opts.HonorShutdown,
		HonorBreakCheck: opts.HonorBreakCheck,
		Mode:            t.Mode,
		Index:           t.Index,
		L:               t.L,
		R:               t.R,
	}

	m.register(s)

	run := func() {
		defer m.deregister(s)
		defer s.markDone()
		defer stream.Close()

		runPlayback(m, s, stream, outBuf, channels, clip, int(actualRate), gain, opts.Looping)
	}

	if opts.Threaded {
		go run()
	} else {
		run()
	}

	return s, nil
}

// openStreamWithFallback tries, in order: the target device at the
// clip's native rate with low latency ("exclusive"-equivalent), the
// same device at the clip's native rate with high latency ("shared at
// requested rate"), the same device at high latency and its own
// default rate ("shared at device rate"), and finally the system default
// output device at its default rate — the four-tier ladder from
// spec §4.2 step 2, each attempt logged.
func openStreamWithFallback(dev *portaudio.DeviceInfo, channels int, requestedRate float64, outBuf []float32) (*portaudio.Stream, float64, error) {
	type attempt struct {
		label   string
		device  *portaudio.DeviceInfo
		rate    float64
		latency time.Duration
	}

	attempts := []attempt{
		{"exclusive@requested", dev, requestedRate, dev.DefaultLowOutputLatency},
		{"shared@requested", dev, requestedRate, dev.DefaultHighOutputLatency},
		{"shared@device-default", dev, dev.DefaultSampleRate, dev.DefaultHighOutputLatency},
	}

	if defDev, err := portaudio.DefaultOutputDevice(); err == nil && defDev != nil {
		attempts = append(attempts, attempt{"system-default", defDev, defDev.DefaultSampleRate, defDev.DefaultHighOutputLatency})
	}

	var lastErr error

	for _, a := range attempts {
		params := portaudio.StreamParameters{
			Output: portaudio.StreamDeviceParameters{
				Device:   a.device,
				Channels: channels,
				Latency:  a.latency,
			},
			SampleRate:      a.rate,
			FramesPerBuffer: blockFrames,
		}

		stream, err := portaudio.OpenStream(params, &outBuf)
		if err == nil {
			log.Info("audio stream opened", "strategy", a.label, "device", a.device.Name, "rate", a.rate)

			return stream, a.rate, nil
		}

		log.Warn("audio stream open attempt failed", "strategy", a.label, "err", err)

		lastErr = err
	}

	return nil, 0, fmt.Errorf("all stream-open strategies failed: %w", lastErr)
}

func runPlayback(m *Mixer, s *Session, stream *portaudio.Stream, outBuf []float32, channels int, clip *Clip, actualRate int, gain float64, looping bool) {
	if err := stream.Start(); err != nil {
		log.Error("audio stream start failed", "label", s.Label, "err", err)

		return
	}
	defer stream.Stop()

	var (
		mono           []float32
		left, right    []float32
		sourceIsStereo bool
	)

	if clip.Stereo {
		sourceIsStereo = true
		left, right = resampleLinearStereo(clip.Left, clip.Right, clip.SampleRate, actualRate)
	} else {
		mono = resampleLinear(clip.Mono, clip.SampleRate, actualRate)
	}

	length := len(mono)
	if sourceIsStereo {
		length = len(left)
	}

	if length == 0 {
		return
	}

	// Prime the device FIFO with one block of silence, per spec step 4.
	for i := range outBuf {
		outBuf[i] = 0
	}

	if err := stream.Write(); err != nil {
		log.Warn("audio priming write failed", "label", s.Label, "err", err)
	}

	pos := 0
	gainF := float32(gain)

	for {
		if m.shouldStop(s) {
			return
		}

		for f := 0; f < blockFrames; f++ {
			row := outBuf[f*channels : (f+1)*channels]

			if pos >= length {
				if looping {
					pos = 0
				} else {
					for i := range row {
						row[i] = 0
					}

					continue
				}
			}

			var monoSample float32

			var stereoSample [2]float32

			if sourceIsStereo {
				stereoSample = [2]float32{left[pos], right[pos]}
				monoSample = (left[pos] + right[pos]) / 2
			} else {
				monoSample = mono[pos]
			}

			buildFrame(row, Target{Mode: s.Mode, Index: s.Index, L: s.L, R: s.R}, monoSample, stereoSample, sourceIsStereo, gainF)

			pos++
		}

		if err := stream.Write(); err != nil {
			log.Warn("audio block write failed, aborting session", "label", s.Label, "err", err)

			return
		}

		if !looping && pos >= length {
			return
		}
	}
}
