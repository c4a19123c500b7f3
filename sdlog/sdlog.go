// Package sdlog defines the logging sink external collaborator spec.md §6
// names (log(fmt, args)), with a default implementation over the standard
// library's log.Logger.
package sdlog

import (
	"log"
	"os"
)

// Logger is the sink asyncfs.Driver writes state transitions, "OWC
// Success"/"Unknown Operation" markers, and latched errors to. Any type with
// a printf-style Printf satisfies it, including *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Default wraps the standard library's log.Logger, writing to stderr with a
// microsecond timestamp, matching the verbosity the teacher's examples use
// for board bring-up logging.
func Default() Logger {
	return log.New(os.Stderr, "sd: ", log.Lmicroseconds)
}

// Discard silently drops everything, for tests and callers that have wired
// their own log sink elsewhere.
type discard struct{}

func (discard) Printf(string, ...any) {}

// Discard returns a Logger that drops every message.
func Discard() Logger { return discard{} }
