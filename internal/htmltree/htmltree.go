// Package htmltree parses an HTML-like template fragment into a tree that
// retains byte-precise source locations for every tag, attribute, and
// content range — the thing golang.org/x/net/html's DOM builder throws away.
// It is driven directly off golang.org/x/net/html's low-level Tokenizer
// (the same tokenizer the pack's caddy-i18n example uses goquery/net-html
// on top of) rather than html.Parse, so the original bytes and their
// offsets are never lost to tree-construction normalization.
package htmltree

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Kind identifies what a Node represents.
type Kind int

const (
	KindDocument Kind = iota
	KindElement
	KindText
	KindComment
	KindDoctype
)

// Attribute is one name="value" (or bare name) binding inside a start tag,
// with the byte span covering the whole "name=\"value\"" text.
type Attribute struct {
	Name       string
	Value      string
	Start, End int
}

// Node is one element, text run, comment, or doctype in the parsed tree.
type Node struct {
	Kind     Kind
	TagName  string // lowercased; empty for non-element kinds
	Attrs    []Attribute
	Children []*Node
	Parent   *Node

	Text string // raw text content, only for KindText

	StartTagStart, StartTagEnd int // span of "<tag ...>"
	EndTagStart, EndTagEnd     int // span of "</tag>"; equal to StartTagEnd for void/self-closing elements
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Attr returns the value of the named attribute, if present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// AttrRange returns the byte span of the named attribute (name through the
// end of its value, including surrounding quotes).
func (n *Node) AttrRange(name string) (start, end int, ok bool) {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Start, a.End, true
		}
	}
	return 0, 0, false
}

// StartTagRange returns the byte span of "<tag ...>".
func (n *Node) StartTagRange() (int, int) {
	return n.StartTagStart, n.StartTagEnd
}

// ContentRange returns the byte span between the end of the start tag and
// the start of the end tag. For void or self-closing elements this is an
// empty range immediately after the start tag.
func (n *Node) ContentRange() (int, int) {
	if n.EndTagStart == 0 && n.EndTagEnd == 0 {
		return n.StartTagEnd, n.StartTagEnd
	}
	return n.StartTagEnd, n.EndTagStart
}

// ContentAnalysis summarizes an element's children for extraction and
// justification decisions.
type ContentAnalysis struct {
	Text        string // concatenation of n's direct child text node contents
	HasText     bool   // any non-whitespace direct text child not matched by textIgnore
	HasElements bool   // any child element
}

// AnalyzeContent classifies n's direct children; text nested inside child
// elements is not included. textIgnore, if non-nil, is
// applied to each individual text node's content; a node fully matched by
// it does not count towards HasText (but its text still contributes to the
// concatenated Text for whitespace handling purposes upstream).
func (n *Node) AnalyzeContent(textIgnore func(string) bool) ContentAnalysis {
	var buf strings.Builder
	var hasText, hasElements bool
	var walk func(*Node)
	walk = func(node *Node) {
		for _, c := range node.Children {
			switch c.Kind {
			case KindText:
				buf.WriteString(c.Text)
				if strings.TrimSpace(c.Text) != "" && !(textIgnore != nil && textIgnore(c.Text)) {
					hasText = true
				}
			case KindElement:
				hasElements = true
			}
		}
	}
	walk(n)
	return ContentAnalysis{Text: buf.String(), HasText: hasText, HasElements: hasElements}
}

// Walk performs an in-order traversal of root's subtree yielding only
// element nodes (text, comment, and doctype nodes are skipped). If
// ignoreTag(tagName) returns true for an element, that element and its
// entire subtree are pruned. visit returning false stops the traversal
// early.
func Walk(root *Node, ignoreTag func(tagName string) bool, visit func(*Node) bool) {
	var walk func(*Node) bool
	walk = func(n *Node) bool {
		for _, c := range n.Children {
			if c.Kind != KindElement {
				continue
			}
			if ignoreTag != nil && ignoreTag(c.TagName) {
				continue
			}
			if !visit(c) {
				return false
			}
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

// Parse parses src as an HTML fragment in non-scripting mode and returns the
// document root. Malformed HTML is handled via the tokenizer's own error
// recovery; no diagnostic is raised at this layer for parse failures.
func Parse(src []byte) (*Node, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	root := &Node{Kind: KindDocument}
	stack := []*Node{root}
	offset := 0

	top := func() *Node { return stack[len(stack)-1] }

	for {
		tt := z.Next()
		raw := z.Raw()
		start := offset
		end := offset + len(raw)
		offset = end

		switch tt {
		case html.ErrorToken:
			if z.Err().Error() == "EOF" {
				return root, nil
			}
			return root, nil

		case html.TextToken:
			text := string(z.Text())
			if text == "" {
				continue
			}
			top().Children = append(top().Children, &Node{
				Kind: KindText, Text: text, Parent: top(),
			})

		case html.CommentToken:
			top().Children = append(top().Children, &Node{Kind: KindComment, Parent: top()})

		case html.DoctypeToken:
			top().Children = append(top().Children, &Node{Kind: KindDoctype, Parent: top()})

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			attrs := scanAttributes(raw, tok.Attr, start)
			node := &Node{
				Kind:          KindElement,
				TagName:       strings.ToLower(tok.Data),
				Attrs:         attrs,
				Parent:        top(),
				StartTagStart: start,
				StartTagEnd:   end,
			}
			top().Children = append(top().Children, node)

			if tt == html.SelfClosingTagToken || voidElements[node.TagName] {
				node.EndTagStart = end
				node.EndTagEnd = end
			} else {
				stack = append(stack, node)
			}

		case html.EndTagToken:
			tok := z.Token()
			name := strings.ToLower(tok.Data)
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].TagName == name {
					stack[i].EndTagStart = start
					stack[i].EndTagEnd = end
					stack = stack[:i]
					break
				}
			}
		}
	}
}

// scanAttributes re-scans the raw "<tag attr=\"val\" ...>" bytes to recover
// the byte span of each attribute; tok.Attr supplies the decoded name/value
// pairs in the same order they appear in raw.
func scanAttributes(raw []byte, tokAttrs []html.Attribute, tagStart int) []Attribute {
	if len(tokAttrs) == 0 {
		return nil
	}
	out := make([]Attribute, 0, len(tokAttrs))
	// Start searching after "<tagname" so an attribute name is never
	// matched inside the tag name itself (e.g. "t" in "<button").
	pos := 1
	for pos < len(raw) && !isSpace(raw[pos]) && raw[pos] != '/' && raw[pos] != '>' {
		pos++
	}
	for _, ta := range tokAttrs {
		nameIdx := indexFoldAfter(raw, ta.Key, pos)
		if nameIdx < 0 {
			// Fall back to an empty span rather than losing the attribute.
			out = append(out, Attribute{Name: ta.Key, Value: ta.Val})
			continue
		}
		attrStart := nameIdx
		cursor := nameIdx + len(ta.Key)
		// Skip whitespace around '='.
		for cursor < len(raw) && isSpace(raw[cursor]) {
			cursor++
		}
		attrEnd := cursor
		if cursor < len(raw) && raw[cursor] == '=' {
			cursor++
			for cursor < len(raw) && isSpace(raw[cursor]) {
				cursor++
			}
			if cursor < len(raw) && (raw[cursor] == '"' || raw[cursor] == '\'') {
				quote := raw[cursor]
				valStart := cursor
				cursor++
				for cursor < len(raw) && raw[cursor] != quote {
					cursor++
				}
				if cursor < len(raw) {
					cursor++ // consume closing quote
				}
				attrEnd = cursor
				_ = valStart
			} else {
				valStart := cursor
				for cursor < len(raw) && !isSpace(raw[cursor]) && raw[cursor] != '>' {
					cursor++
				}
				attrEnd = cursor
				_ = valStart
			}
		}
		out = append(out, Attribute{
			Name:  ta.Key,
			Value: ta.Val,
			Start: tagStart + attrStart,
			End:   tagStart + attrEnd,
		})
		pos = cursor
	}
	return out
}

func indexFoldAfter(raw []byte, name string, from int) int {
	if from > len(raw) {
		return -1
	}
	lower := bytes.ToLower(raw[from:])
	idx := bytes.Index(lower, bytes.ToLower([]byte(name)))
	if idx < 0 {
		return -1
	}
	return from + idx
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// String is a debugging helper; not used for serialization (bytes are the
// source of truth — see internal/tmplsource for edit application).
func (n *Node) String() string {
	return fmt.Sprintf("<%s>", n.TagName)
}
