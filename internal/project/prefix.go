package project

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// camelBoundaryRe matches a lowercase-or-digit character immediately
// followed by an uppercase one, the camelCase->kebab-case split point.
var camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// nonTokenRunRe matches any run of characters that isn't a letter, digit,
// or literal dot.
var nonTokenRunRe = regexp.MustCompile(`[^A-Za-z0-9.]+`)

func sanitizePrefixSegment(s string) string {
	s = camelBoundaryRe.ReplaceAllString(s, "$1-$2")
	s = nonTokenRunRe.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}

// PrefixFor derives the deterministic key namespace for filename per
// spec.md §4.7:
//  1. filename must lie under cfg.Src.
//  2. its basename (extension stripped) names the prefix segment, unless
//     that basename is "index" and the file is not directly in cfg.Src —
//     then the parent directory's basename is used instead.
//  3. the segment is sanitized (camelCase -> kebab-case, every run of
//     non [A-Za-z0-9.] replaced with "-", lowercased).
//
// The result is cfg.Prefix + sanitized segment + ".".
func (p *Project) PrefixFor(filename string) (string, error) {
	src := p.cfg.ResolvePath(p.cfg.Src)
	rel, err := filepath.Rel(src, filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is outside configured src %q", filename, src)
	}

	base := filepath.Base(filename)
	segment := strings.TrimSuffix(base, filepath.Ext(base))

	dir := filepath.Dir(filename)
	directlyInSrc := filepath.Clean(dir) == filepath.Clean(src)
	if segment == "index" && !directlyInSrc {
		segment = filepath.Base(dir)
	}

	return p.cfg.Prefix + sanitizePrefixSegment(segment) + ".", nil
}
