// Package dimmer drives the 8-channel AC dimmer bank through a single
// fixed-rate mixer goroutine, the one owner of the dimmer's serial
// link, per control/dimmer_controller.py's "single high-rate mixer"
// design (dimmer_service.py in the retrieved original). Effects only
// set desired per-channel targets; the mixer goroutine slews toward
// them and transmits the full 8-channel frame atomically.
package dimmer

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Matt2765/halloween-control/internal/config"
	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/serial"
)

var log = houselog.For("dimmer")

// Info is the firmware's self-reported half-period/level-table status,
// parsed from an "INFO" response line.
type Info struct {
	HalfUS    int
	Levels    [8]int
	ActiveHigh bool
}

// Dimmer is the single-owner mixer state for the AC dimmer bank.
type Dimmer struct {
	link *serial.Link
	hs   *house.State

	channels     int
	tick         time.Duration
	keepalive    time.Duration
	defaultSlew  int

	mu       sync.Mutex
	desired  []int // 1-indexed, [0] unused
	active   []int
	slewStep []int

	pongCh chan struct{}
	infoCh chan Info
}

// New builds a Dimmer for cfg's channel count, mix rate, keepalive
// interval, and default slew step (per-channel, %/tick).
func New(cfg config.House, link *serial.Link, hs *house.State) *Dimmer {
	n := cfg.DimmerChannelCount

	d := &Dimmer{
		link:        link,
		hs:          hs,
		channels:    n,
		tick:        time.Duration(float64(time.Second) / cfg.DimmerMixHz),
		keepalive:   time.Duration(cfg.DimmerKeepaliveMS) * time.Millisecond,
		defaultSlew: cfg.DimmerDefaultStep,
		desired:     make([]int, n+1),
		active:      make([]int, n+1),
		slewStep:    make([]int, n+1),
		pongCh:      make(chan struct{}, 1),
		infoCh:      make(chan Info, 1),
	}

	for i := range d.slewStep {
		d.slewStep[i] = d.defaultSlew
	}

	return d
}

func normChannel(ch, n int) int {
	if ch < 1 {
		return 1
	}

	if ch > n {
		return n
	}

	return ch
}

func normLevel(v int) int {
	if v < 0 {
		return 0
	}

	if v > 100 {
		return 100
	}

	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// Set updates channel's desired intensity (0-100); the mixer goroutine
// slews toward it on its next ticks.
func (d *Dimmer) Set(channel, intensity int) {
	ch := normChannel(channel, d.channels)
	v := normLevel(intensity)

	d.mu.Lock()
	d.desired[ch] = v
	d.mu.Unlock()
}

// SetAll replaces every channel's desired intensity at once.
func (d *Dimmer) SetAll(levels []int) error {
	if len(levels) != d.channels {
		return fmt.Errorf("dimmer: set_all needs exactly %d values, got %d", d.channels, len(levels))
	}

	d.mu.Lock()
	for i, v := range levels {
		d.desired[i+1] = normLevel(v)
	}
	d.mu.Unlock()

	return nil
}

// Run is the mixer goroutine: at each tick it slews active toward
// desired by each channel's slew step, transmits the full frame when
// anything changed or the keepalive interval elapsed, and repeats until
// stop fires. This is the link's sole writer, matching the original's
// "Nano firmware unchanged, one thread owns serial" design.
func (d *Dimmer) Run(stop <-chan struct{}) {
	lines := make(chan string, 16)

	go func() {
		for {
			line, err := d.link.ReadLine()
			if err != nil {
				time.Sleep(50 * time.Millisecond)

				select {
				case <-stop:
					return
				default:
					continue
				}
			}

			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
	}()

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	lastKeepalive := time.Now()

	for {
		select {
		case <-stop:
			return
		case line := <-lines:
			d.handleLine(line)
		case <-ticker.C:
			d.mixTick(&lastKeepalive)
		}
	}
}

func (d *Dimmer) handleLine(line string) {
	line = strings.TrimSpace(line)

	switch {
	case line == "PONG":
		select {
		case d.pongCh <- struct{}{}:
		default:
		}
	case strings.HasPrefix(line, "HALF_US="):
		if info, ok := parseInfo(line); ok {
			select {
			case d.infoCh <- info:
			default:
			}
		}
	}
}

func parseInfo(line string) (Info, bool) {
	var info Info

	haveHalf, haveLevels := false, false

	for _, part := range strings.Fields(line) {
		switch {
		case strings.HasPrefix(part, "HALF_US="):
			v, err := strconv.Atoi(strings.TrimPrefix(part, "HALF_US="))
			if err != nil {
				return Info{}, false
			}

			info.HalfUS = v
			haveHalf = true
		case strings.HasPrefix(part, "LEVELS="):
			raw := strings.Split(strings.TrimPrefix(part, "LEVELS="), ",")
			if len(raw) != 8 {
				return Info{}, false
			}

			for i, s := range raw {
				v, err := strconv.Atoi(s)
				if err != nil {
					return Info{}, false
				}

				info.Levels[i] = v
			}

			haveLevels = true
		case strings.HasPrefix(part, "ACTIVE_HIGH="):
			info.ActiveHigh = strings.TrimPrefix(part, "ACTIVE_HIGH=") == "1"
		}
	}

	return info, haveHalf && haveLevels
}

func (d *Dimmer) mixTick(lastKeepalive *time.Time) {
	d.mu.Lock()

	changed := false

	for ch := 1; ch <= d.channels; ch++ {
		des := d.desired[ch]
		act := d.active[ch]

		if act != des {
			step := d.slewStep[ch]
			if step <= 0 {
				step = 1
			}

			var next int
			if des > act {
				next = act + step
				if next > des {
					next = des
				}
			} else {
				next = act - step
				if next < des {
					next = des
				}
			}

			if next != act {
				d.active[ch] = next
				changed = true
			}
		}
	}

	dueKeepalive := time.Since(*lastKeepalive) >= d.keepalive
	needSend := changed || dueKeepalive

	var frame []int
	if needSend {
		frame = append(frame, d.active[1:d.channels+1]...)
	}

	d.mu.Unlock()

	if needSend {
		d.sendFrame(frame)

		if dueKeepalive {
			*lastKeepalive = time.Now()
		}
	}
}

func (d *Dimmer) sendFrame(frame []int) {
	parts := make([]string, len(frame))
	for i, v := range frame {
		parts[i] = strconv.Itoa(v)
	}

	if err := d.link.WriteLine("A," + strings.Join(parts, ",")); err != nil {
		log.Warn("dimmer frame write failed", "err", err)
	}
}

// Ping sends a PING and waits up to timeout for a PONG.
func (d *Dimmer) Ping(timeout time.Duration) bool {
	if err := d.link.WriteLine("PING"); err != nil {
		return false
	}

	select {
	case <-d.pongCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// GetInfo sends an INFO request and waits up to timeout for the parsed
// firmware status.
func (d *Dimmer) GetInfo(timeout time.Duration) (Info, bool) {
	if err := d.link.WriteLine("INFO"); err != nil {
		return Info{}, false
	}

	select {
	case info := <-d.infoCh:
		return info, true
	case <-time.After(timeout):
		return Info{}, false
	}
}

// Flicker runs an independent smooth-flicker effect on channel for
// duration, picking random targets within [intensityMin, intensityMax]
// and a per-ramp slew step sized so each ramp takes approximately a
// random length in [flickerMin, flickerMax], matching
// control/dimmer_controller.py's dimmer_flicker. It restores the
// channel's previous slew step on exit and zeroes the channel when
// done, and stops early on BreakCheck (spec §4.5's composability
// requirement: independent flicker effects on distinct channels run
// concurrently without interference).
func (d *Dimmer) Flicker(channel int, duration time.Duration, intensityMin, intensityMax int, flickerMin, flickerMax time.Duration) {
	ch := normChannel(channel, d.channels)

	imin := normLevel(intensityMin)
	imax := normLevel(intensityMax)

	if imin > imax {
		imin, imax = imax, imin
	}

	if flickerMin > flickerMax {
		flickerMin, flickerMax = flickerMax, flickerMin
	}

	if flickerMin < d.tick {
		flickerMin = d.tick
	}

	d.mu.Lock()
	oldStep := d.slewStep[ch]
	d.desired[ch] = clampInt(d.active[ch], imin, imax)
	d.mu.Unlock()

	deadline := time.Now().Add(duration)

	for time.Now().Before(deadline) {
		if d.hs.BreakCheck() {
			d.restoreSlew(ch, oldStep)

			return
		}

		target := imin
		if imax > imin {
			target += rand.Intn(imax - imin + 1)
		}

		span := flickerMax - flickerMin
		ramp := flickerMin
		if span > 0 {
			ramp += time.Duration(rand.Int63n(int64(span)))
		}

		steps := int(ramp / d.tick)
		if steps < 1 {
			steps = 1
		}

		d.mu.Lock()
		dist := target - d.active[ch]
		if dist < 0 {
			dist = -dist
		}

		step := d.defaultSlew
		if dist > 0 {
			step = (dist + steps - 1) / steps
			if step < 1 {
				step = 1
			}
		}

		d.slewStep[ch] = step
		d.desired[ch] = target
		d.mu.Unlock()

		rampEnd := time.Now().Add(ramp)

		for time.Now().Before(rampEnd) {
			if d.hs.BreakCheck() {
				d.restoreSlew(ch, oldStep)

				return
			}

			sleepFor := 20 * time.Millisecond
			if remain := time.Until(rampEnd); remain < sleepFor {
				sleepFor = remain
			}

			if sleepFor > 0 {
				time.Sleep(sleepFor)
			}
		}
	}

	d.mu.Lock()
	d.slewStep[ch] = oldStep
	d.desired[ch] = 0
	d.mu.Unlock()
}

func (d *Dimmer) restoreSlew(ch, step int) {
	d.mu.Lock()
	d.slewStep[ch] = step
	d.mu.Unlock()
}

// Snapshot returns a copy of the current active levels (1-indexed
// semantics dropped; index 0 is channel 1), for the operator GUI's
// live-values panel.
func (d *Dimmer) Snapshot() []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]int, d.channels)
	copy(out, d.active[1:d.channels+1])

	return out
}
