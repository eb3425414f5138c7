package diagnostics

import (
	"fmt"
	"io"
	"sync"
)

// Policy maps a diagnostic Kind to a Handling, falling back to All when a
// kind has no explicit entry. It is built once from the resolved config
// (internal/config compiles the user-facing map into this) rather than
// consulted as a raw map on every Report, per the "compile config once into
// lookup tables" design note.
type Policy struct {
	ByKind map[Kind]Handling
	All    Handling
}

// Resolve returns the Handling configured for kind, defaulting to p.All and
// finally to HandlingWarn if neither is set.
func (p Policy) Resolve(kind Kind) Handling {
	if h, ok := p.ByKind[kind]; ok {
		return h
	}
	if p.All != "" {
		return p.All
	}
	return HandlingWarn
}

// PrintingSubscriber drives the diagnostic-handling policy described in
// spec.md §7: ignore drops the diagnostic, warn prints it, error prints it
// and flips HadError so the caller can set the process exit code to 1.
type PrintingSubscriber struct {
	policy Policy
	out    io.Writer

	mu       sync.Mutex
	hadError bool
}

// NewPrintingSubscriber builds a subscriber that prints according to policy.
func NewPrintingSubscriber(policy Policy, out io.Writer) *PrintingSubscriber {
	return &PrintingSubscriber{policy: policy, out: out}
}

// Subscriber returns the function to pass to Bus.Subscribe.
func (s *PrintingSubscriber) Subscriber() Subscriber {
	return func(d Diagnostic) {
		switch s.policy.Resolve(d.Kind) {
		case HandlingIgnore:
			return
		case HandlingError:
			fmt.Fprintln(s.out, d.String())
			s.mu.Lock()
			s.hadError = true
			s.mu.Unlock()
		default: // HandlingWarn
			fmt.Fprintln(s.out, d.String())
		}
	}
}

// HadError reports whether any diagnostic resolved to HandlingError since
// creation.
func (s *PrintingSubscriber) HadError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hadError
}
