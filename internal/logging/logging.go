// Package logging is the ambient "is -v/-d set" operational log, separate
// from the diagnostics bus: it is for messages about what the tool itself
// is doing (files written, watch-cycle timing), never for content problems
// found in a project (those are diagnostics.Diagnostic values).
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Verbose gates Infof/Debugf output; Warnf always prints once a writer is
// configured. Both are package-level toggles the CLI sets once at startup
// from --verbose/--dev.
var Verbose = false

var (
	mu     sync.Mutex
	writer io.Writer = os.Stderr
)

// SetOutput sets the writer operational log lines are written to. Passing
// nil disables output entirely.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	writer = w
}

func getWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}

// Warnf logs an operational warning unconditionally (not gated by Verbose).
func Warnf(format string, args ...any) {
	w := getWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[warn] "+format+"\n", args...)
}

// Infof logs an operational message when Verbose is set.
func Infof(format string, args ...any) {
	if !Verbose {
		return
	}
	w := getWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[info] "+format+"\n", args...)
}

// Debugf logs a fine-grained operational message when Verbose is set.
func Debugf(format string, args ...any) {
	if !Verbose {
		return
	}
	w := getWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[debug] "+format+"\n", args...)
}
