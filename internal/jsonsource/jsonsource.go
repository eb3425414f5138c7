// Package jsonsource implements the JSON-resource variant of source.Source:
// nested `{a:{b:"..."}}` files that contribute strings to extraction but
// never participate in key justification (they are read-only as far as key
// allocation is concerned — see spec.md §4.6).
package jsonsource

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/go-l10n/keyforge/internal/diagnostics"
)

// Resource is a parsed JSON-resource source file.
type Resource struct {
	filename string
	bytes    []byte
	hash     uint64
	prefix   string
	root     any
}

// New parses data as a JSON-resource file. prefix is prepended to every
// extracted key (spec.md §4.6: "(prefix + path.join('.'), value)").
func New(filename string, data []byte, prefix string) (*Resource, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("jsonsource: %s: %w", filename, err)
	}
	return &Resource{
		filename: filename,
		bytes:    data,
		hash:     xxhash.Sum64(data),
		prefix:   prefix,
		root:     root,
	}, nil
}

func (r *Resource) Filename() string { return r.filename }
func (r *Resource) Bytes() []byte    { return r.bytes }

// Hash returns a fast xxhash content fingerprint of the file's bytes.
// Project.UpdateSource does not use it; it compares the bytes directly.
func (r *Resource) Hash() uint64 { return r.hash }

// ExtractKeys walks the parsed tree depth-first with a path stack. A
// non-object encountered at any node (including the root) is reported as
// InvalidJsonData at the current path; a path segment containing "." is
// reported as InvalidJsonPartName, since the on-disk dotted-key storage
// format would otherwise alias it with a nested path.
func (r *Resource) ExtractKeys(bus *diagnostics.Bus) map[string]string {
	result := map[string]string{}
	r.walk(r.root, nil, result, bus)
	return result
}

func (r *Resource) walk(node any, path []string, result map[string]string, bus *diagnostics.Bus) {
	obj, ok := node.(map[string]any)
	if !ok {
		bus.Reportf(diagnostics.InvalidJSONData, &diagnostics.Location{Filename: r.filename},
			"expected an object at path %q, got %s", strings.Join(path, "."), jsonKind(node))
		return
	}

	for name, value := range obj {
		if strings.Contains(name, ".") {
			bus.Reportf(diagnostics.InvalidJSONPartName, &diagnostics.Location{Filename: r.filename},
				"path segment %q at %q must not contain '.'", name, strings.Join(path, "."))
			continue
		}
		segPath := append(append([]string(nil), path...), name)

		switch v := value.(type) {
		case string:
			result[r.prefix+strings.Join(segPath, ".")] = v
		case map[string]any:
			r.walk(v, segPath, result, bus)
		default:
			bus.Reportf(diagnostics.InvalidJSONData, &diagnostics.Location{Filename: r.filename},
				"expected an object or string at path %q, got %s", strings.Join(segPath, "."), jsonKind(value))
		}
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case string:
		return "string"
	default:
		return "unknown"
	}
}
