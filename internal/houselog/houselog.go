// Package houselog provides the process-wide structured logger shared by
// every subsystem, mirroring the single append-only log file used by the
// original control software (one line per event, timestamp + message).
package houselog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

var (
	mu     sync.Mutex
	base   *log.Logger
	logFP  *os.File
	inited bool
)

// Options controls where the process log file is created and how verbose
// console output is.
type Options struct {
	Dir   string // directory for the per-run log file; "" disables file logging
	Debug bool
}

// Init opens the log file (if Dir is set) and configures the base logger.
// Safe to call once at process start; later calls are no-ops.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if inited {
		return nil
	}

	var writers []io.Writer = []io.Writer{os.Stderr}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("houselog: create log dir: %w", err)
		}

		pattern, err := strftime.New("haunt-%Y%m%d-%H%M%S.log")
		if err != nil {
			return fmt.Errorf("houselog: bad strftime pattern: %w", err)
		}

		name := pattern.FormatString(time.Now())
		fp, err := os.OpenFile(filepath.Join(opts.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("houselog: open log file: %w", err)
		}

		logFP = fp
		writers = append(writers, fp)
	}

	base = log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})

	if opts.Debug {
		base.SetLevel(log.DebugLevel)
	} else {
		base.SetLevel(log.InfoLevel)
	}

	inited = true

	return nil
}

// For returns a child logger tagged with the given subsystem name, e.g.
// houselog.For("doors"). Safe to call before Init; it lazily falls back to
// a stderr-only default so tests and early-boot code never nil-deref.
func For(subsystem string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	if !inited {
		base = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}

	return base.With("subsystem", subsystem)
}

// Close flushes and closes the underlying log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFP != nil {
		err := logFP.Close()
		logFP = nil

		return err
	}

	return nil
}
