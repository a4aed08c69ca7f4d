// Package sensorbus is the Remote Sensor & Actuator Bus: a background
// reader goroutine for the radio-gateway serial link, a shared
// latest-value table, per-sensor distance history with obstruction
// hysteresis, a button-edge queue, and an outbound command queue. It
// generalizes the Python original's control/remote_sensor_monitor.py,
// which ran the reader as a separate multiprocessing.Process talking
// over a Manager dict; here a goroutine and a mutex-protected map serve
// the same isolation purpose within a single Go process, per spec §4.3.
package sensorbus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/serial"
)

var log = houselog.For("sensorbus")

// StaleDefault is the default max_age_ms used by GetValue, matching
// remote_sensor_monitor.py's STALE_DEFAULT_MS.
const StaleDefault = 250 * time.Millisecond

// Far is the fallback synthetic distance substituted for negative "no
// target" readings when a Bus is built without an explicit
// far-distance override (spec §8 property #7). config.House.FarDistanceMM
// is the operator-facing, YAML-overridable source of truth; New takes
// it directly so this constant only covers callers that pass 0.
const Far = 10000

// Reader reconnect parameters (spec §4.3 reader-loop steps 1 & 6, and
// §7's "Silent sensor port" policy): the reader retries a failed open
// with exponential backoff, and treats an open-but-quiet link as dead
// after silenceTimeout of no bytes, closing and reopening it.
const (
	defaultSilenceTimeout      = 2 * time.Second
	defaultReconnectMinBackoff = 250 * time.Millisecond
	defaultReconnectMaxBackoff = 10 * time.Second
)

// Record is the latest known state of one sensor id.
type Record struct {
	ID       string
	Seq      int
	TSendMS  int64
	TRxMS    int64
	THostMS  int64
	Mac      string
	Vals     map[string]float64
}

// ButtonEdge is one press/release transition pushed to the button queue.
type ButtonEdge struct {
	ID      string
	BtnNum  int
	Pressed bool
	AtMS    int64
}

// wireMessage mirrors the NDJSON line emitted by the radio gateway:
// {"rx_ms":N,"mac":"...","data":{"id":"...","seq":N,"t":N,"vals":{...}}}
// or data.type=="button" with {btn:int,pressed:bool}.
type wireMessage struct {
	RxMS int64  `json:"rx_ms"`
	Mac  string `json:"mac"`
	Data struct {
		ID      string             `json:"id"`
		Type    string             `json:"type"`
		Seq     int                `json:"seq"`
		T       int64              `json:"t"`
		Vals    map[string]float64 `json:"vals"`
		Btn     int                `json:"btn"`
		Pressed bool               `json:"pressed"`
	} `json:"data"`
}

// Bus is the process-wide sensor bus singleton. Construct with New,
// start the reader with Run, and interact through the methods below
// from any goroutine.
type Bus struct {
	link *serial.Link

	mu      sync.Mutex
	records map[string]*Record
	history map[string]*distanceHistory

	buttonsMu  sync.Mutex
	buttons    chan ButtonEdge
	lastButton map[string]ButtonEdge

	tx chan string

	nowFn func() int64

	farDistanceMM float64

	silenceTimeout      time.Duration
	reconnectMinBackoff time.Duration
	reconnectMaxBackoff time.Duration
}

// New builds a Bus reading from link, FAR-mapping negative distance
// readings to farDistanceMM (pass config.House.FarDistanceMM; 0 or
// negative falls back to Far). link may be a simulated (unavailable)
// serial.Link, in which case Run retries the open with exponential
// backoff and otherwise idles rather than producing sensor data —
// never fatal, per spec §7.
func New(link *serial.Link, farDistanceMM int) *Bus {
	far := float64(farDistanceMM)
	if farDistanceMM <= 0 {
		far = Far
	}

	return &Bus{
		link:                link,
		records:             make(map[string]*Record),
		history:             make(map[string]*distanceHistory),
		buttons:             make(chan ButtonEdge, 256),
		lastButton:          make(map[string]ButtonEdge),
		tx:                  make(chan string, 64),
		nowFn:               nowMS,
		farDistanceMM:       far,
		silenceTimeout:      defaultSilenceTimeout,
		reconnectMinBackoff: defaultReconnectMinBackoff,
		reconnectMaxBackoff: defaultReconnectMaxBackoff,
	}
}

func nowMS() int64 { return time.Now().UnixMilli() }

// Run blocks until stop is closed, reading NDJSON lines from the link
// and dispatching them. It is meant to be launched in its own goroutine
// at boot, isolating serial I/O stalls from the rest of the process per
// spec §4.3's process-model rationale. The link going unavailable, or
// going quiet for silenceTimeout, never ends Run: it reopens the link
// and keeps going, retrying a failed reopen with exponential backoff up
// to reconnectMaxBackoff, per spec §4.3 reader-loop steps 1 & 6 and §7's
// "Silent sensor port" policy. b.tx keeps draining across reconnects so
// queued outbound commands are not silently dropped while the link is
// down.
func (b *Bus) Run(stop <-chan struct{}) {
	backoff := b.reconnectMinBackoff

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !b.link.Available() {
			log.Warn("sensor gateway link unavailable, retrying open", "backoff", backoff)

			if b.waitOrDrainUntilStop(stop, backoff) {
				return
			}

			if err := b.link.Reopen(); err != nil {
				backoff = nextBackoff(backoff, b.reconnectMaxBackoff)

				continue
			}

			backoff = b.reconnectMinBackoff
		}

		if stopped := b.runSession(stop); stopped {
			return
		}

		if err := b.link.Reopen(); err != nil {
			log.Warn("sensor gateway reopen failed", "err", err)
		}
	}
}

// runSession reads and dispatches lines over the link's current file
// descriptor until stop is closed (returns true), the link stops
// producing lines (scanner EOF, e.g. an unavailable link), or
// silenceTimeout passes with no bytes received (both return false, so
// Run reopens and tries again). It drains b.tx the whole time.
func (b *Bus) runSession(stop <-chan struct{}) bool {
	reader := bufio.NewScanner(linkReader{b.link})
	reader.Buffer(make([]byte, 4096), 64*1024)

	lines := make(chan string, 64)

	go func() {
		for reader.Scan() {
			lines <- reader.Text()
		}

		close(lines)
	}()

	timer := time.NewTimer(b.silenceTimeout)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return true
		case line, ok := <-lines:
			if !ok {
				log.Warn("sensor gateway link closed, reconnecting")

				return false
			}

			if !timer.Stop() {
				<-timer.C
			}

			timer.Reset(b.silenceTimeout)

			b.ingest(line)
		case cmd := <-b.tx:
			if err := b.link.WriteLine(cmd); err != nil {
				log.Warn("tx write failed", "err", err)
			}
		case <-timer.C:
			log.Warn("sensor gateway link silent, reopening", "timeout", b.silenceTimeout)

			return false
		}
	}
}

// waitOrDrainUntilStop sleeps for d, continuing to drain b.tx so queued
// outbound commands don't back up while the link is down, and reports
// whether stop fired during the wait.
func (b *Bus) waitOrDrainUntilStop(stop <-chan struct{}, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for {
		select {
		case <-stop:
			return true
		case <-deadline.C:
			return false
		case cmd := <-b.tx:
			if err := b.link.WriteLine(cmd); err != nil {
				log.Warn("tx write failed", "err", err)
			}
		}
	}
}

func nextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}

	return d
}

// linkReader adapts serial.Link.ReadLine to an io.Reader-like Scanner
// source by exposing one line at a time via Read, since ReadLine
// already handles the newline framing and the simulated-unavailable
// case.
type linkReader struct{ l *serial.Link }

func (r linkReader) Read(p []byte) (int, error) {
	line, err := r.l.ReadLine()
	if err != nil {
		time.Sleep(50 * time.Millisecond)

		return 0, err
	}

	n := copy(p, line+"\n")

	return n, nil
}

func (b *Bus) ingest(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var msg wireMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		log.Debug("discarding malformed sensor line", "err", err)

		return
	}

	if msg.Data.ID == "" {
		return
	}

	hostMS := b.nowFn()

	if msg.Data.Type == "button" {
		edge := ButtonEdge{ID: msg.Data.ID, BtnNum: msg.Data.Btn, Pressed: msg.Data.Pressed, AtMS: hostMS}

		b.buttonsMu.Lock()
		b.lastButton[edge.ID] = edge
		b.buttonsMu.Unlock()

		select {
		case b.buttons <- edge:
		default:
			log.Warn("button edge queue full, dropping", "id", msg.Data.ID)
		}
	}

	rec := &Record{
		ID:      msg.Data.ID,
		Seq:     msg.Data.Seq,
		TSendMS: msg.Data.T,
		TRxMS:   msg.RxMS,
		THostMS: hostMS,
		Mac:     msg.Mac,
		Vals:    msg.Data.Vals,
	}

	b.mu.Lock()
	b.records[rec.ID] = rec

	if dist, ok := rec.Vals["dist_mm"]; ok {
		dist = b.farMap(dist)
		rec.Vals["dist_mm"] = dist

		h := b.historyFor(rec.ID)
		h.append(hostMS, dist)
	}

	b.mu.Unlock()
}

// farMap implements spec §8 property #7: negative readings (the sensor
// reporting "no target") are mapped to b.farDistanceMM rather than
// surfaced as a deceptively small negative number.
func (b *Bus) farMap(dist float64) float64 {
	if dist < 0 {
		return b.farDistanceMM
	}

	return dist
}

func (b *Bus) historyFor(id string) *distanceHistory {
	h, ok := b.history[id]
	if !ok {
		h = newDistanceHistory()
		b.history[id] = h
	}

	return h
}

// Get returns the full record for id, or nil if unknown.
func (b *Bus) Get(id string) *Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok {
		return nil
	}

	cp := *rec

	return &cp
}

// GetValue reads a single value out of a sensor's vals map, applying a
// freshness guard: if the record is older than maxAge (0 disables the
// check), default is returned instead. The dist_mm key is FAR-mapped at
// ingest time, so callers never see a negative distance.
func (b *Bus) GetValue(id, key string, def float64, maxAge time.Duration) float64 {
	b.mu.Lock()
	rec, ok := b.records[id]
	b.mu.Unlock()

	if !ok {
		return def
	}

	if maxAge > 0 {
		age := time.Duration(b.nowFn()-rec.THostMS) * time.Millisecond
		if age > maxAge {
			return def
		}
	}

	v, ok := rec.Vals[key]
	if !ok {
		return def
	}

	return v
}

// GetLatencyMS approximates one-way radio latency as receiver_rx_ms -
// sender_t_ms, both in the sensor's own millis() clock domain. Returns
// (0, false) when either timestamp is unavailable.
func (b *Bus) GetLatencyMS(id string) (int64, bool) {
	b.mu.Lock()
	rec, ok := b.records[id]
	b.mu.Unlock()

	if !ok || rec.TSendMS <= 0 || rec.TRxMS <= 0 {
		return 0, false
	}

	lat := rec.TRxMS - rec.TSendMS
	if lat < 0 {
		lat = 0
	}

	return lat, true
}

// Health is a small status snapshot for the operator surface dashboard.
type Health struct {
	LinkAvailable bool
	SensorCount   int
}

func (b *Bus) Health() Health {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Health{LinkAvailable: b.link.Available(), SensorCount: len(b.records)}
}

// ButtonPop returns the next button edge, blocking up to timeout.
func (b *Bus) ButtonPop(timeout time.Duration) (ButtonEdge, bool) {
	select {
	case e := <-b.buttons:
		return e, true
	case <-time.After(timeout):
		return ButtonEdge{}, false
	}
}

// GetButtonValue returns the latest pressed state seen for id, only if
// the latest event's button number matches btnNum (use -1 to match any
// single-button device). This peeks the last-seen state rather than
// draining the queue, since multiple consumers may care about buttons.
func (b *Bus) GetButtonValue(id string, btnNum int) (bool, bool) {
	b.buttonsMu.Lock()
	defer b.buttonsMu.Unlock()

	last, ok := b.lastButton[id]
	if !ok {
		return false, false
	}

	if btnNum >= 0 && last.BtnNum != btnNum {
		return false, false
	}

	return last.Pressed, true
}

// --- outbound command queue ---
//
// Wire format (spec §4.3 "Transmit API", §6): every outbound line is a
// framing keyword followed by a JSON-encoded payload — "TXB <json>\n"
// for a broadcast, "TX <id> <json>\n" addressed to a logical sensor id,
// "TXMAC <mac> <json>\n" addressed to a radio MAC. Servo/sprite helpers
// are thin payload builders over TXToID.

type servoCmd struct {
	Cmd    string `json:"cmd"`
	Angle  int    `json:"angle"`
	RampMS int    `json:"ramp_ms,omitempty"`
}

type spritePlayCmd struct {
	Cmd    string `json:"cmd"`
	TrackN int    `json:"track_n"`
}

type spriteNextCmd struct {
	Cmd     string `json:"cmd"`
	PulseMS int    `json:"pulse_ms"`
}

func (b *Bus) enqueue(line string) {
	select {
	case b.tx <- line:
	default:
		log.Warn("tx queue full, dropping command", "line", line)
	}
}

func (b *Bus) txLine(prefix string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sensorbus: marshal tx payload: %w", err)
	}

	return prefix + " " + string(data), nil
}

// TXBroadcast JSON-encodes payload and sends it to every paired node.
func (b *Bus) TXBroadcast(payload any) {
	line, err := b.txLine("TXB", payload)
	if err != nil {
		log.Warn("tx broadcast encode failed", "err", err)

		return
	}

	b.enqueue(line)
}

// TXToID JSON-encodes payload and sends it to the node known by
// logical sensor id.
func (b *Bus) TXToID(id string, payload any) {
	line, err := b.txLine(fmt.Sprintf("TX %s", id), payload)
	if err != nil {
		log.Warn("tx to-id encode failed", "id", id, "err", err)

		return
	}

	b.enqueue(line)
}

// TXToMAC JSON-encodes payload and sends it to the node at the given
// radio MAC address.
func (b *Bus) TXToMAC(mac string, payload any) {
	line, err := b.txLine(fmt.Sprintf("TXMAC %s", mac), payload)
	if err != nil {
		log.Warn("tx to-mac encode failed", "mac", mac, "err", err)

		return
	}

	b.enqueue(line)
}

// Servo commands the servo attached to node id to angleDeg, clamped to
// [0,180]. rampMS is optional (spec's ramp_ms?); pass one value to
// include it.
func (b *Bus) Servo(id string, angleDeg int, rampMS ...int) {
	cmd := servoCmd{Cmd: "servo", Angle: clampServoAngle(angleDeg)}
	if len(rampMS) > 0 {
		cmd.RampMS = rampMS[0]
	}

	b.TXToID(id, cmd)
}

func clampServoAngle(angleDeg int) int {
	switch {
	case angleDeg < 0:
		return 0
	case angleDeg > 180:
		return 180
	default:
		return angleDeg
	}
}

// SpritePlay commands the sprite node attached to id to play track
// trackN.
func (b *Bus) SpritePlay(id string, trackN int) {
	b.TXToID(id, spritePlayCmd{Cmd: "sprite_play", TrackN: trackN})
}

// SpriteNext advances the sprite node attached to id to its next
// frame/loop, holding for pulseMS.
func (b *Bus) SpriteNext(id string, pulseMS int) {
	b.TXToID(id, spriteNextCmd{Cmd: "sprite_next", PulseMS: pulseMS})
}
