// Package localetree implements the nested key-path data structure that
// compiled locale files (and external locales imported from packages) are
// shaped as: {a: {b: "..."}} addressed by splitting dotted keys on ".".
package localetree

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-l10n/keyforge/internal/diagnostics"
)

// Tree is a node in a locale tree: each segment maps either to a string leaf
// or to a nested Tree. A segment can never be both.
type Tree struct {
	leaves   map[string]string
	children map[string]*Tree
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

func (t *Tree) ensureMaps() {
	if t.leaves == nil {
		t.leaves = make(map[string]string)
	}
	if t.children == nil {
		t.children = make(map[string]*Tree)
	}
}

// Set splits key on "." and walks/creates subtrees, writing content at the
// final segment. It returns false (without mutating anything) if a needed
// intermediate segment is already a leaf, or if the final segment already
// exists as either a leaf or a subtree — the caller turns that into a
// DuplicateKey diagnostic.
func (t *Tree) Set(key, content string) bool {
	parts := strings.Split(key, ".")
	return t.setParts(parts, content)
}

func (t *Tree) setParts(parts []string, content string) bool {
	t.ensureMaps()
	if len(parts) == 1 {
		seg := parts[0]
		if _, isLeaf := t.leaves[seg]; isLeaf {
			return false
		}
		if _, isSub := t.children[seg]; isSub {
			return false
		}
		t.leaves[seg] = content
		return true
	}

	seg := parts[0]
	if _, isLeaf := t.leaves[seg]; isLeaf {
		return false
	}
	child, ok := t.children[seg]
	if !ok {
		child = New()
		t.children[seg] = child
	}
	return child.setParts(parts[1:], content)
}

// Get returns the string leaf at key and whether it was found.
func (t *Tree) Get(key string) (string, bool) {
	parts := strings.Split(key, ".")
	node := t
	for _, seg := range parts[:len(parts)-1] {
		if node.children == nil {
			return "", false
		}
		child, ok := node.children[seg]
		if !ok {
			return "", false
		}
		node = child
	}
	if node.leaves == nil {
		return "", false
	}
	v, ok := node.leaves[parts[len(parts)-1]]
	return v, ok
}

// Clone deep-copies the tree.
func (t *Tree) Clone() *Tree {
	out := New()
	if len(t.leaves) > 0 {
		out.leaves = make(map[string]string, len(t.leaves))
		for k, v := range t.leaves {
			out.leaves[k] = v
		}
	}
	if len(t.children) > 0 {
		out.children = make(map[string]*Tree, len(t.children))
		for k, c := range t.children {
			out.children[k] = c.Clone()
		}
	}
	return out
}

// Merge deep-merges source into target, reporting DuplicateKeyOrPath at the
// offending dotted path on any collision where both sides are leaves, or
// one side is a leaf and the other a subtree.
func Merge(target, source *Tree, bus *diagnostics.Bus, filename string) {
	mergeAt(target, source, nil, bus, filename)
}

func mergeAt(target, source *Tree, path []string, bus *diagnostics.Bus, filename string) {
	if source == nil {
		return
	}
	for seg, content := range source.leaves {
		segPath := append(append([]string{}, path...), seg)
		target.ensureMaps()
		if _, isSub := target.children[seg]; isSub {
			reportDuplicatePath(bus, filename, segPath)
			continue
		}
		if _, isLeaf := target.leaves[seg]; isLeaf {
			reportDuplicatePath(bus, filename, segPath)
			continue
		}
		target.leaves[seg] = content
	}
	for seg, childSrc := range source.children {
		segPath := append(append([]string{}, path...), seg)
		target.ensureMaps()
		if _, isLeaf := target.leaves[seg]; isLeaf {
			reportDuplicatePath(bus, filename, segPath)
			continue
		}
		childTgt, ok := target.children[seg]
		if !ok {
			childTgt = New()
			target.children[seg] = childTgt
		}
		mergeAt(childTgt, childSrc, segPath, bus, filename)
	}
}

func reportDuplicatePath(bus *diagnostics.Bus, filename string, path []string) {
	if bus == nil {
		return
	}
	loc := &diagnostics.Location{Filename: filename}
	bus.Reportf(diagnostics.DuplicateKeyOrPath, loc, "duplicate key or path %q", strings.Join(path, "."))
}

// ToMap renders the tree into a plain map[string]any suitable for JSON
// encoding, where leaves are strings and subtrees are nested maps.
func (t *Tree) ToMap() map[string]any {
	out := make(map[string]any, len(t.leaves)+len(t.children))
	for k, v := range t.leaves {
		out[k] = v
	}
	for k, c := range t.children {
		out[k] = c.ToMap()
	}
	return out
}

// Empty reports whether the tree has neither leaves nor children.
func (t *Tree) Empty() bool {
	return len(t.leaves) == 0 && len(t.children) == 0
}

// FromJSON parses raw as a nested JSON object and builds the equivalent
// locale tree — the shape external locale files and compiled-locale
// re-reads both take. A non-object value anywhere in the document is a
// structural error: unlike translation-database content, an external
// locale file that doesn't parse this way cannot be partially salvaged.
func FromJSON(raw []byte) (*Tree, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("localetree: %w", err)
	}
	return fromMap(m)
}

func fromMap(m map[string]any) (*Tree, error) {
	t := New()
	t.ensureMaps()
	for k, v := range m {
		switch val := v.(type) {
		case string:
			t.leaves[k] = val
		case map[string]any:
			child, err := fromMap(val)
			if err != nil {
				return nil, err
			}
			t.children[k] = child
		default:
			return nil, fmt.Errorf("localetree: key %q has non-string, non-object value", k)
		}
	}
	return t, nil
}
