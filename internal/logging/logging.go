// Package logging provides application-wide logging configuration.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var debugEnabled bool

// Init initializes the global logger. When debugLogPath is non-empty, a full
// debug stream is additionally appended to that file regardless of the
// console level.
func Init(debug bool, debugLogPath string) {
	debugEnabled = debug
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	var w io.Writer = console
	if debugLogPath != "" {
		if f, err := os.OpenFile(debugLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
			w = zerolog.MultiLevelWriter(filteredConsole{w: console, level: level}, f)
		}
	}
	log.Logger = log.Output(w)
}

// DebugEnabled reports whether debug logging is enabled.
func DebugEnabled() bool {
	return debugEnabled
}

// filteredConsole keeps the console at the user-selected level while the
// debug log file receives everything.
type filteredConsole struct {
	w     zerolog.ConsoleWriter
	level zerolog.Level
}

func (f filteredConsole) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f filteredConsole) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < f.level {
		return len(p), nil
	}
	return f.w.Write(p)
}
