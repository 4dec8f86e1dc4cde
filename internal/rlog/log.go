// Package rlog provides the thin logging interface the client uses for
// diagnostics and for surfacing the server's out-of-band message frames.
package rlog

import (
	"io"
	"log"
)

// Logger is satisfied by *log.Logger and by anything else with a Printf
// method, so callers can plug in their own.
type Logger interface {
	Printf(format string, v ...any)
}

// New returns a Logger that writes to w with a timestamp-free, package-less
// prefix, matching the terse style rsync's own diagnostics use.
func New(w io.Writer) Logger {
	return log.New(w, "", 0)
}

// Discard is a Logger that drops everything, for callers that don't want
// diagnostics.
var Discard Logger = log.New(io.Discard, "", 0)
