// Package estop watches a host-wired GPIO emergency-stop button as a
// second, lower-latency path into EmergencyShutoff alongside the HTTP
// operator surface. The Python original only recognizes a shutdown
// request typed at a terminal; a walk-through attraction built around
// pneumatics and moving doors warrants a direct hardware E-stop, so
// this is a supplement beyond the distilled spec (SPEC_FULL.md §B).
package estop

import (
	"github.com/warthog618/go-gpiocdev"

	"github.com/Matt2765/halloween-control/internal/house"
	"github.com/Matt2765/halloween-control/internal/houselog"
)

var log = houselog.For("estop")

// Config names the GPIO chip and line the E-stop button is wired to.
// The line is pulled up and the button is normally-open to ground: a
// falling edge (line goes low) means the button was pressed.
type Config struct {
	Chip string
	Line int
}

// Watcher owns the requested GPIO line for the lifetime of the
// process.
type Watcher struct {
	hs   *house.State
	line *gpiocdev.Line
}

// New requests the configured line as a pulled-up input with edge
// detection on both edges; falling edges are wired straight into
// house.State.SetMode(EmergencyShutoff) and rising edges are ignored.
func New(cfg Config, hs *house.State) (*Watcher, error) {
	w := &Watcher{hs: hs}

	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(w.handleEvent),
	)
	if err != nil {
		return nil, err
	}

	w.line = line

	return w, nil
}

func (w *Watcher) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}

	log.Warn("hardware e-stop tripped")

	if w.hs.Mode() == house.Online {
		w.hs.SetMode(house.EmergencyShutoff)
	}
}

// Close releases the GPIO line.
func (w *Watcher) Close() error {
	if w.line == nil {
		return nil
	}

	return w.line.Close()
}
