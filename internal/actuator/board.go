// Package actuator talks to the two microcontroller I/O boards (named
// "M1" and "M2" throughout the house, after control/arduino.py's module
// globals) over a simple newline-delimited text protocol running on
// top of internal/serial. The original drove these boards with the
// Firmata binary protocol via pymata4; a line protocol is simpler to
// express idiomatically here and preserves the same "always available,
// simulated when the link is down" contract.
package actuator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Matt2765/halloween-control/internal/houselog"
	"github.com/Matt2765/halloween-control/internal/serial"
)

var log = houselog.For("actuator")

// Board is one microcontroller I/O board.
type Board struct {
	name string
	link *serial.Link
}

// NewBoard wraps an already-opened (or simulated) serial.Link as a
// named board, matching control/arduino.py's M1/M2 pair.
func NewBoard(name string, link *serial.Link) *Board {
	return &Board{name: name, link: link}
}

// Available reports whether the underlying serial link is really open.
func (b *Board) Available() bool { return b.link.Available() }

// DigitalWrite drives pin to value (0 or 1). Logged and silently
// no-op'd when the board is unavailable, per control/arduino.py's
// m1Digital_Write/m2Digital_Write simulated-fallback behavior.
func (b *Board) DigitalWrite(pin, value int) error {
	if err := b.link.WriteLine(fmt.Sprintf("DW %d %d", pin, value)); err != nil {
		return fmt.Errorf("actuator[%s]: digital write pin %d: %w", b.name, pin, err)
	}

	return nil
}

// AnalogRead sends a synchronous analog-read request for pin and parses
// the firmware's reply as its current value, matching control/
// arduino.py's blocking `board.analog_read(pin)[0]` call over pymata4
// for M2's legacy analog sensors. Returns 0 on an unavailable link,
// write failure, or malformed reply — never fatal, per spec §7.
func (b *Board) AnalogRead(pin int) int {
	if err := b.link.WriteLine(fmt.Sprintf("AR %d", pin)); err != nil {
		log.Warn("analog read request failed", "board", b.name, "pin", pin, "err", err)

		return 0
	}

	line, err := b.link.ReadLine()
	if err != nil {
		return 0
	}

	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		log.Warn("analog read malformed reply", "board", b.name, "pin", pin, "reply", line, "err", err)

		return 0
	}

	return v
}

// Registry is the process-wide set of named boards, keyed "M1"/"M2" to
// match config.DoorConfig.Controller / config.ShutdownRelay.Controller.
type Registry struct {
	mu     sync.RWMutex
	boards map[string]*Board
}

// NewRegistry builds an empty board registry.
func NewRegistry() *Registry {
	return &Registry{boards: make(map[string]*Board)}
}

// Register adds or replaces a board under name.
func (r *Registry) Register(name string, b *Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards[strings.ToUpper(name)] = b
}

// Write drives pin on the named board, logging (not failing) when the
// board name is unknown — matching spec's "never fatal" hardware
// posture: a missing or misconfigured board degrades to a no-op.
func (r *Registry) Write(board string, pin, value int) {
	r.mu.RLock()
	b, ok := r.boards[strings.ToUpper(board)]
	r.mu.RUnlock()

	if !ok {
		log.Warn("write to unknown board", "board", board, "pin", pin)

		return
	}

	if err := b.DigitalWrite(pin, value); err != nil {
		log.Warn("digital write failed", "board", board, "pin", pin, "err", err)
	}
}
