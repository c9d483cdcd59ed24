// Package mslog wires up the subsystem loggers shared by every other
// package in this daemon, the way lnd's own log.go/backendLog glue code
// does: a single rotating-file + stdout backend, one btclog.Logger handed
// out per subsystem tag.
package mslog

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// backendLog is the logging backend used to create all subsystem
// loggers. Unset until InitBackend is called; until then Logger returns
// loggers that discard output, so packages can declare their `log` var at
// init time without requiring a particular startup order.
var backendLog = btclog.NewBackend(io.Discard)

var subsystems = make(map[string]btclog.Logger)

// InitBackend points the shared backend at stdout and, if logFile is
// non-empty, a rotating log file (10 MiB per file, 3 files kept) -- lnd's
// own default rotation policy.
func InitBackend(logFile string) (func() error, error) {
	writers := []io.Writer{os.Stdout}

	closeFn := func() error { return nil }

	if logFile != "" {
		r, err := rotator.New(logFile, 10*1024*1024, false, 3)
		if err != nil {
			return nil, err
		}
		writers = append(writers, r)
		closeFn = func() error {
			r.Close()
			return nil
		}
	}

	backendLog = btclog.NewBackend(io.MultiWriter(writers...))

	for tag, l := range subsystems {
		l2 := backendLog.Logger(tag)
		l2.SetLevel(l.Level())
		subsystems[tag] = l2
	}

	return closeFn, nil
}

// Logger returns the shared subsystem logger for tag, creating it at
// btclog.InfoLvl if this is the first call for that tag.
func Logger(tag string) btclog.Logger {
	if l, ok := subsystems[tag]; ok {
		return l
	}

	l := backendLog.Logger(tag)
	l.SetLevel(btclog.InfoLvl)
	subsystems[tag] = l

	return l
}

// SetLevel changes the level of an already-created subsystem logger. A
// no-op if tag was never handed out via Logger.
func SetLevel(tag string, level btclog.Level) {
	if l, ok := subsystems[tag]; ok {
		l.SetLevel(level)
	}
}
