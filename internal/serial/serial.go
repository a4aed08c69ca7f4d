// Package serial wraps the raw serial-port links used by the two
// microcontroller boards, the dimmer controller, and the sensor
// gateway, generalizing the teacher's src/serial_port.go (which wraps
// github.com/pkg/term the same way) to cover every link in this system
// and to add a simulated fallback so a missing link is never fatal.
package serial

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/term"

	"github.com/Matt2765/halloween-control/internal/houselog"
)

var log = houselog.For("serial")

// Link is a single open (or simulated) serial connection. All writes go
// through a per-link lock, matching spec's "single writer in practice;
// protected by per-link write lock."
type Link struct {
	name       string
	devicename string
	baud       int

	mu   sync.Mutex
	fd   *term.Term
	read *bufio.Reader

	available bool
}

// Open tries to open devicename at baud. On failure it logs once and
// returns a Link with Available()==false: every write becomes a logged
// simulated no-op and every read returns a zero value, per spec §7
// ("Hardware link not found ... continue with simulated no-ops").
func Open(name, devicename string, baud int) *Link {
	l := &Link{name: name, devicename: devicename, baud: baud}

	fd, err := term.Open(devicename, term.Speed(baud), term.RawMode)
	if err != nil {
		log.Warn("could not open serial link, continuing in simulated mode",
			"link", name, "device", devicename, "err", err)

		return l
	}

	l.fd = fd
	l.read = bufio.NewReader(fd)
	l.available = true

	log.Info("serial link opened", "link", name, "device", devicename, "baud", baud)

	return l
}

// Reopen closes the current file descriptor, if any, and tries to open
// devicename again. It is the retry primitive behind a reader's
// reconnect-with-backoff loop (spec §4.3, §7's "Silent sensor port"
// policy): a link that went unavailable at boot, or stopped producing
// bytes mid-run, calls this on every retry tick instead of being
// reconstructed from scratch.
func (l *Link) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fd != nil {
		l.fd.Close()
		l.fd = nil
	}

	l.available = false

	fd, err := term.Open(l.devicename, term.Speed(l.baud), term.RawMode)
	if err != nil {
		return fmt.Errorf("serial[%s]: reopen %q: %w", l.name, l.devicename, err)
	}

	l.fd = fd
	l.read = bufio.NewReader(fd)
	l.available = true

	log.Info("serial link reopened", "link", l.name, "device", l.devicename)

	return nil
}

// Available reports whether the underlying device is really open.
func (l *Link) Available() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.available
}

// WriteLine writes s plus a trailing newline. Simulated when unavailable.
func (l *Link) WriteLine(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.available {
		log.Debug("(simulated) serial write", "link", l.name, "line", s)

		return nil
	}

	_, err := l.fd.Write([]byte(s + "\n"))
	if err != nil {
		return fmt.Errorf("serial[%s]: write: %w", l.name, err)
	}

	return nil
}

// ReadLine blocks until a newline-terminated line arrives or the link is
// unavailable, in which case it returns io.EOF immediately.
func (l *Link) ReadLine() (string, error) {
	l.mu.Lock()
	r := l.read
	avail := l.available
	l.mu.Unlock()

	if !avail {
		return "", io.EOF
	}

	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("serial[%s]: read: %w", l.name, err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// ReadChunk reads up to len(buf) bytes, non-blocking-ish best effort
// (the underlying term.Term is put in raw mode with its own read
// timeout by the OS driver). Returns (0, nil) on an unavailable link.
func (l *Link) ReadChunk(buf []byte) (int, error) {
	l.mu.Lock()
	fd := l.fd
	avail := l.available
	l.mu.Unlock()

	if !avail {
		time.Sleep(50 * time.Millisecond)

		return 0, nil
	}

	n, err := fd.Read(buf)
	if err != nil {
		return n, fmt.Errorf("serial[%s]: read chunk: %w", l.name, err)
	}

	return n, nil
}

// Close closes the underlying device, if any.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.available {
		return nil
	}

	l.available = false

	err := l.fd.Close()
	if err != nil {
		return fmt.Errorf("serial[%s]: close: %w", l.name, err)
	}

	return nil
}
