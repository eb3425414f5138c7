// Package source defines the common shape every extractable file in a
// project implements: an absolute filename, its current bytes, and a way to
// compute the key -> source-string mapping it currently carries. Template
// sources additionally support in-place key justification; JSON-resource
// sources do not.
package source

import "github.com/go-l10n/keyforge/internal/diagnostics"

// Source is one file participating in extraction.
type Source interface {
	Filename() string
	Bytes() []byte
	ExtractKeys(bus *diagnostics.Bus) map[string]string
}

// JustifyOptions parameterizes a Justifiable source's Justify pass.
type JustifyOptions struct {
	Prefix          string
	IsReserved      func(key string) bool
	DiagnosticsOnly bool
	Bus             *diagnostics.Bus
}

// JustifyResult reports what a Justify pass did: whether it changed the
// source's bytes, and which originally-present keys were replaced with
// which newly allocated ones.
type JustifyResult struct {
	Modified     bool
	ReplacedKeys map[string]map[string]bool
}

// Justifiable is implemented by sources whose key set can be reconciled in
// place (templates). JSON-resource sources are extract-only.
type Justifiable interface {
	Source
	Justify(opts JustifyOptions) (JustifyResult, error)
}
