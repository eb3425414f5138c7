// Package tmplsource implements the template variant of source.Source: HTML
// fragments whose `t` attributes bind element content and attributes to
// localization keys. It supports both extraction (read the current key set)
// and justification (reconcile the tree's `t` attributes to a canonical key
// set with minimal byte edits).
package tmplsource

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-l10n/keyforge/internal/config"
	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/go-l10n/keyforge/internal/htmltree"
	"github.com/go-l10n/keyforge/internal/source"
	"github.com/go-l10n/keyforge/internal/tattr"
)

// interpolationRe matches the `${...}` marker that makes a text node or
// attribute value non-localizable.
var interpolationRe = regexp.MustCompile(`\$\{.*\}`)

func isInterpolated(s string) bool {
	return interpolationRe.MatchString(s)
}

// Template is a parsed HTML-like source file.
type Template struct {
	filename string
	bytes    []byte
	root     *htmltree.Node
	cfg      *config.Config
}

// New parses data as an HTML fragment associated with filename.
func New(filename string, data []byte, cfg *config.Config) (*Template, error) {
	root, err := htmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Template{filename: filename, bytes: data, root: root, cfg: cfg}, nil
}

func (t *Template) Filename() string { return t.filename }
func (t *Template) Bytes() []byte    { return t.bytes }

func (t *Template) ignoreTag(tag string) bool {
	return t.cfg.Ignore[tag]
}

func resolveElementRule(cfg *config.Config, tag string) (config.ElementRule, bool) {
	if r, ok := cfg.Localize[tag]; ok {
		return r, true
	}
	if r, ok := cfg.Localize["*"]; ok {
		return r, true
	}
	return config.ElementRule{}, false
}

func resolveWhitespace(cfg *config.Config, tag string) config.WhitespacePolicy {
	if p, ok := cfg.Whitespace[tag]; ok {
		return p
	}
	if p, ok := cfg.Whitespace["*"]; ok {
		return p
	}
	return config.WhitespacePreserve
}

var wsRunRe = regexp.MustCompile(`\s+`)

func applyWhitespace(s string, policy config.WhitespacePolicy) string {
	switch policy {
	case config.WhitespaceTrim:
		return strings.TrimSpace(s)
	case config.WhitespaceCollapse:
		return wsRunRe.ReplaceAllString(s, " ")
	case config.WhitespaceTrimCollapse:
		return strings.TrimSpace(wsRunRe.ReplaceAllString(s, " "))
	default:
		return s
	}
}

// ExtractKeys computes {key -> source string} from the current tree without
// mutating it. Later elements overwrite earlier ones on key collision within
// this single file's extraction.
func (t *Template) ExtractKeys(bus *diagnostics.Bus) map[string]string {
	result := map[string]string{}
	htmltree.Walk(t.root, t.ignoreTag, func(n *htmltree.Node) bool {
		raw, hasT := n.Attr("t")
		if !hasT || isInterpolated(raw) {
			return true
		}
		attr, err := tattr.Parse(raw)
		if err != nil {
			start, end, _ := n.AttrRange("t")
			bus.Reportf(diagnostics.InvalidTAttribute, t.loc(start, end), "%v", err)
			return true
		}

		analysis := n.AnalyzeContent(isInterpolated)
		policy := resolveWhitespace(t.cfg, n.TagName)
		for _, name := range attr.Names() {
			key, _ := attr.Get(name)
			var value string
			switch name {
			case tattr.TargetText, tattr.TargetHTML:
				value = analysis.Text
			default:
				v, present := n.Attr(name)
				if !present || isInterpolated(v) {
					continue
				}
				value = v
			}
			result[key] = applyWhitespace(value, policy)
		}
		return true
	})
	return result
}

// candidate is one justification-eligible element discovered in Pass A.
type candidate struct {
	node        *htmltree.Node
	elementRule config.ElementRule
	hasText     bool
	original    *tattr.Attribute
}

// keyAllocator implements Pass B's unique() key generator.
type keyAllocator struct {
	prefix     string
	isReserved func(string) bool
	known      map[string]bool
	generated  map[string]bool
	replaced   map[string]map[string]bool
	next       int
}

func newKeyAllocator(prefix string, known map[string]bool, isReserved func(string) bool) *keyAllocator {
	return &keyAllocator{
		prefix:     prefix,
		isReserved: isReserved,
		known:      known,
		generated:  map[string]bool{},
		replaced:   map[string]map[string]bool{},
	}
}

func (a *keyAllocator) mustReplace(k string) bool {
	return !strings.HasPrefix(k, a.prefix) || (a.isReserved != nil && a.isReserved(k))
}

func (a *keyAllocator) unique(preferred string) string {
	if preferred != "" && !a.mustReplace(preferred) && !a.generated[preferred] {
		a.known[preferred] = true
		a.generated[preferred] = true
		return preferred
	}

	var newKey string
	for {
		newKey = fmt.Sprintf("%st%d", a.prefix, a.next)
		a.next++
		if !a.known[newKey] && !a.mustReplace(newKey) {
			break
		}
	}
	if preferred != "" {
		if a.replaced[preferred] == nil {
			a.replaced[preferred] = map[string]bool{}
		}
		a.replaced[preferred][newKey] = true
	}
	a.known[newKey] = true
	a.generated[newKey] = true
	return newKey
}

type byteEdit struct {
	start, end  int
	replacement string
}

// Justify reconciles the tree's `t` attributes to a canonical key set,
// producing minimal byte edits. See spec §4.5 Justification for the pass
// breakdown this mirrors (A discovery, B allocation, C rewrite, D prefix
// diagnostics, E apply).
func (t *Template) Justify(opts source.JustifyOptions) (source.JustifyResult, error) {
	knownKeys := map[string]bool{}
	var candidates []candidate

	htmltree.Walk(t.root, t.ignoreTag, func(n *htmltree.Node) bool {
		elementRule, hasRule := resolveElementRule(t.cfg, n.TagName)
		analysis := n.AnalyzeContent(isInterpolated)

		raw, hasT := n.Attr("t")
		var orig *tattr.Attribute
		if hasT && !isInterpolated(raw) {
			parsed, err := tattr.Parse(raw)
			if err != nil {
				start, end, _ := n.AttrRange("t")
				opts.Bus.Reportf(diagnostics.InvalidTAttribute, t.loc(start, end), "%v", err)
			} else {
				orig = parsed
				for _, name := range parsed.Names() {
					key, _ := parsed.Get(name)
					knownKeys[key] = true
				}
			}
		}

		if hasRule {
			candidates = append(candidates, candidate{node: n, elementRule: elementRule, hasText: analysis.HasText, original: orig})
			if analysis.HasText && analysis.HasElements {
				start, end := n.ContentRange()
				opts.Bus.Reportf(diagnostics.MixedContent, t.loc(start, end), "element <%s> has both text and element children", n.TagName)
			}
		} else {
			if analysis.HasText {
				start, end := n.ContentRange()
				opts.Bus.Reportf(diagnostics.UnlocalizedText, t.loc(start, end), "text in non-localizable element <%s>", n.TagName)
			}
			if hasT {
				start, end, _ := n.AttrRange("t")
				opts.Bus.Reportf(diagnostics.DisallowedTAttribute, t.loc(start, end), "t attribute on non-localizable element <%s>", n.TagName)
			}
		}
		return true
	})

	alloc := newKeyAllocator(opts.Prefix, knownKeys, opts.IsReserved)
	var edits []byteEdit

	for _, c := range candidates {
		newAttr := tattr.New()

		var existingText, existingHTML string
		var hasExistingText, hasExistingHTML bool
		if c.original != nil {
			existingText, hasExistingText = c.original.Get(tattr.TargetText)
			existingHTML, hasExistingHTML = c.original.Get(tattr.TargetHTML)
		}

		switch c.elementRule.Content {
		case "text", "html":
			if c.hasText || hasExistingText || hasExistingHTML {
				preferred := existingHTML
				if preferred == "" {
					preferred = existingText
				}
				newAttr.Set(c.elementRule.Content, alloc.unique(preferred))
			}
		default:
			switch {
			case hasExistingHTML:
				newAttr.Set(tattr.TargetHTML, alloc.unique(existingHTML))
				t.reportDisallowedContent(opts.Bus, c.node)
			case hasExistingText:
				newAttr.Set(tattr.TargetText, alloc.unique(existingText))
				t.reportDisallowedContent(opts.Bus, c.node)
			case c.hasText:
				t.reportDisallowedContent(opts.Bus, c.node)
			}
		}

		allowed := map[string]bool{}
		for _, attrName := range c.elementRule.Attributes {
			allowed[attrName] = true
			val, ok := c.node.Attr(attrName)
			if !ok || isInterpolated(val) {
				continue
			}
			var preferred string
			if c.original != nil {
				preferred, _ = c.original.Get(attrName)
			}
			newAttr.Set(attrName, alloc.unique(preferred))
		}

		if c.original != nil {
			for _, name := range c.original.Names() {
				if name == tattr.TargetText || name == tattr.TargetHTML || allowed[name] {
					continue
				}
				start, end, ok := c.node.AttrRange(name)
				if !ok {
					start, end = c.node.StartTagRange()
				}
				opts.Bus.Reportf(diagnostics.DisallowedLocalizedAttribute, t.loc(start, end),
					"attribute %q is not localizable on <%s>", name, c.node.TagName)
			}
		}

		if edit, ok := t.buildEdit(c.node, newAttr); ok {
			edits = append(edits, edit)
		}
	}

	for key := range knownKeys {
		if _, wasReplaced := alloc.replaced[key]; wasReplaced {
			continue
		}
		if !strings.HasPrefix(key, opts.Prefix) {
			opts.Bus.Reportf(diagnostics.WrongPrefix, &diagnostics.Location{Filename: t.filename}, "key %q does not start with prefix %q", key, opts.Prefix)
		}
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	newBytes := spliceEdits(t.bytes, edits)
	modified := !bytes.Equal(newBytes, t.bytes)

	if modified && !opts.DiagnosticsOnly {
		root, err := htmltree.Parse(newBytes)
		if err != nil {
			return source.JustifyResult{}, err
		}
		t.bytes = newBytes
		t.root = root
	}

	return source.JustifyResult{Modified: modified, ReplacedKeys: alloc.replaced}, nil
}

func (t *Template) reportDisallowedContent(bus *diagnostics.Bus, n *htmltree.Node) {
	start, end := n.ContentRange()
	bus.Reportf(diagnostics.DisallowedContent, t.loc(start, end), "content on non-localizable element <%s>", n.TagName)
}

// buildEdit computes the byte edit that rewrites (or removes, or inserts)
// n's `t` attribute to match newAttr's rendered form.
func (t *Template) buildEdit(n *htmltree.Node, newAttr *tattr.Attribute) (byteEdit, bool) {
	rendered := newAttr.String()
	start, end, hasOriginal := n.AttrRange("t")

	if hasOriginal {
		wsStart := scanWhitespaceStart(t.bytes, start)
		if rendered == "" {
			return byteEdit{start: wsStart, end: end, replacement: ""}, true
		}
		prefix := string(t.bytes[wsStart:start])
		return byteEdit{start: wsStart, end: end, replacement: prefix + `t="` + rendered + `"`}, true
	}

	if rendered == "" {
		return byteEdit{}, false
	}
	_, tagEnd := n.StartTagRange()
	insertAt := tagEnd - 1
	return byteEdit{start: insertAt, end: insertAt, replacement: ` t="` + rendered + `"`}, true
}

func scanWhitespaceStart(data []byte, pos int) int {
	i := pos
	for i > 0 && isWhitespace(data[i-1]) {
		i--
	}
	return i
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func spliceEdits(src []byte, edits []byteEdit) []byte {
	if len(edits) == 0 {
		return src
	}
	var buf bytes.Buffer
	last := 0
	for _, e := range edits {
		buf.Write(src[last:e.start])
		buf.WriteString(e.replacement)
		last = e.end
	}
	buf.Write(src[last:])
	return buf.Bytes()
}

func (t *Template) loc(start, end int) *diagnostics.Location {
	sl, sc := lineCol(t.bytes, start)
	el, ec := lineCol(t.bytes, end)
	return &diagnostics.Location{
		Filename: t.filename,
		Start:    diagnostics.Position{Offset: start, Line: sl, Col: sc},
		End:      diagnostics.Position{Offset: end, Line: el, Col: ec},
	}
}

func lineCol(src []byte, offset int) (line, col int) {
	line, col = 1, 1
	if offset > len(src) {
		offset = len(src)
	}
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
