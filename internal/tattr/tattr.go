// Package tattr implements the parser/serializer for the `t` attribute
// mini-language: `[name1,name2]key1;[name3]key2;bareKey`. A bare key binds
// the "text" target; at most one of {"text", "html"} may be bound at a
// time, and setting one evicts the other.
package tattr

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	TargetText = "text"
	TargetHTML = "html"
)

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Attribute is an insertion-ordered mapping name -> key.
type Attribute struct {
	order []string
	keys  map[string]string
}

// New returns an empty t-attribute.
func New() *Attribute {
	return &Attribute{keys: make(map[string]string)}
}

// Get returns the key bound to name, if any.
func (a *Attribute) Get(name string) (string, bool) {
	k, ok := a.keys[name]
	return k, ok
}

// Names returns the bound target names in insertion order.
func (a *Attribute) Names() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Len reports how many bindings are present.
func (a *Attribute) Len() int {
	return len(a.order)
}

// Set binds name to key, enforcing text/html exclusivity: setting "text"
// removes any existing "html" binding and vice versa.
func (a *Attribute) Set(name, key string) {
	if a.keys == nil {
		a.keys = make(map[string]string)
	}
	if name == TargetText {
		a.remove(TargetHTML)
	} else if name == TargetHTML {
		a.remove(TargetText)
	}
	if _, exists := a.keys[name]; !exists {
		a.order = append(a.order, name)
	}
	a.keys[name] = key
}

func (a *Attribute) remove(name string) {
	if _, ok := a.keys[name]; !ok {
		return
	}
	delete(a.keys, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Parse reads a raw t-attribute value into an Attribute. A bare key (no
// leading "[names]") binds the "text" target. Duplicate target names within
// one value are an error.
func Parse(raw string) (*Attribute, error) {
	attr := New()
	pairs := splitTopLevel(raw, ';')
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		names, key, err := parsePair(pair)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if _, exists := attr.keys[name]; exists {
				return nil, fmt.Errorf("duplicate target name %q in t attribute", name)
			}
			if name == TargetText {
				attr.remove(TargetHTML)
			} else if name == TargetHTML {
				attr.remove(TargetText)
			}
			attr.keys[name] = key
			attr.order = append(attr.order, name)
		}
	}
	return attr, nil
}

func parsePair(pair string) ([]string, string, error) {
	if strings.HasPrefix(pair, "[") {
		end := strings.Index(pair, "]")
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated name list in t attribute pair %q", pair)
		}
		nameList := pair[1:end]
		key := strings.TrimSpace(pair[end+1:])
		if !validToken(key) {
			return nil, "", fmt.Errorf("invalid key %q in t attribute", key)
		}
		var names []string
		for _, n := range strings.Split(nameList, ",") {
			n = strings.TrimSpace(n)
			if !validToken(n) {
				return nil, "", fmt.Errorf("invalid target name %q in t attribute", n)
			}
			names = append(names, n)
		}
		if len(names) == 0 {
			return nil, "", fmt.Errorf("empty name list in t attribute pair %q", pair)
		}
		return names, key, nil
	}

	key := strings.TrimSpace(pair)
	if !validToken(key) {
		return nil, "", fmt.Errorf("invalid key %q in t attribute", key)
	}
	return []string{TargetText}, key, nil
}

func validToken(s string) bool {
	return s != "" && tokenRe.MatchString(s)
}

// splitTopLevel splits on sep, ignoring any separators inside a [...] span.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// String renders the attribute back to its textual form: groups names that
// share a key, in group-order of first appearance, a lone "text" binding
// renders bare, groups join with ";".
func (a *Attribute) String() string {
	type group struct {
		key   string
		names []string
	}
	var groups []*group
	byKey := make(map[string]*group)
	for _, name := range a.order {
		key := a.keys[name]
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.names = append(g.names, name)
	}

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g.names) == 1 && g.names[0] == TargetText {
			parts = append(parts, g.key)
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]%s", strings.Join(g.names, ","), g.key))
	}
	return strings.Join(parts, ";")
}
