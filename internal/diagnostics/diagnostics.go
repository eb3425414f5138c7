// Package diagnostics implements the typed, structured diagnostics bus that
// the rest of keyforge reports content problems to. Diagnostics never
// interrupt the pass that raised them; only structural failures (bad config,
// unreadable files, malformed translation-data JSON) are returned as plain
// Go errors by their callers instead of going through this bus.
package diagnostics

import "fmt"

// Kind identifies the shape of a diagnostic's Details.
type Kind string

const (
	InvalidJSONData             Kind = "InvalidJsonData"
	InvalidJSONPartName          Kind = "InvalidJsonPartName"
	MixedContent                Kind = "MixedContent"
	InvalidTAttribute            Kind = "InvalidTAttribute"
	UnlocalizedText              Kind = "UnlocalizedText"
	DisallowedTAttribute         Kind = "DisallowedTAttribute"
	DisallowedContent            Kind = "DisallowedContent"
	DisallowedLocalizedAttribute Kind = "DisallowedLocalizedAttribute"
	WrongPrefix                  Kind = "WrongPrefix"
	DuplicateKeyOrPath           Kind = "DuplicateKeyOrPath"
	DuplicateKey                 Kind = "DuplicateKey"
	OutdatedTranslation          Kind = "OutdatedTranslation"
	MissingTranslation           Kind = "MissingTranslation"
	ModifiedSource               Kind = "ModifiedSource"
	ModifiedTranslation          Kind = "ModifiedTranslation"
	UnknownLocale                Kind = "UnknownLocale"
)

// Position is a byte offset paired with the line/column it resolves to.
type Position struct {
	Offset int
	Line   int
	Col    int
}

// Location is a diagnostic's optional source range.
type Location struct {
	Filename string
	Start    Position
	End      Position
}

// Diagnostic is a single reported problem. Details carries kind-specific
// structured data (e.g. the offending key, locale id, or attribute name);
// it is intentionally untyped so each producer can attach what it needs
// without growing a union type here.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Location *Location
	Details  map[string]any
}

func (d Diagnostic) String() string {
	if d.Location != nil {
		return fmt.Sprintf("%s: %s (%s:%d:%d)", d.Kind, d.Message, d.Location.Filename, d.Location.Start.Line, d.Location.Start.Col)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Handling is how a diagnostic of a given kind should be treated.
type Handling string

const (
	HandlingIgnore Handling = "ignore"
	HandlingWarn   Handling = "warn"
	HandlingError  Handling = "error"
)

// Subscriber receives every diagnostic reported to a Bus.
type Subscriber func(Diagnostic)

// Bus is a typed observable: producers call Report, subscribers are pure
// sinks with no return value and no ability to interrupt the reporting
// pass. This mirrors the event-emitter diagnostics design in the spec's
// re-architecture notes: a diagnostic never carries behavior, only data.
type Bus struct {
	subscribers []Subscriber
}

// New creates an empty diagnostics bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a sink that is invoked for every future Report call.
func (b *Bus) Subscribe(sub Subscriber) {
	b.subscribers = append(b.subscribers, sub)
}

// Report fans a diagnostic out to every subscriber in registration order.
func (b *Bus) Report(d Diagnostic) {
	for _, sub := range b.subscribers {
		sub(d)
	}
}

// Reportf is a convenience wrapper for the common case of a diagnostic with
// a formatted message and no structured Details.
func (b *Bus) Reportf(kind Kind, loc *Location, format string, args ...any) {
	b.Report(Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc})
}
