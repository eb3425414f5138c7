package project

import "strings"

// DeduplicateModuleFilenames collapses external-locale files that are the
// same logical package resource nested at different node_modules depths
// (a common npm-workspace/hoisting artifact), keeping the longest absolute
// path for each tail beyond the last dedupeTail segment — per spec.md §9's
// open question, the tail is configurable rather than hardcoded to
// "node_modules" so non-POSIX nesting layouts have somewhere to plug in.
// Filenames with no dedupeTail segment are never collapsed.
func DeduplicateModuleFilenames(filenames []string, dedupeTail string) []string {
	if dedupeTail == "" {
		dedupeTail = "node_modules"
	}
	marker := "/" + dedupeTail + "/"

	bestByTail := map[string]string{}
	var tailOrder []string

	for _, f := range filenames {
		tail := f
		if idx := strings.LastIndex(f, marker); idx >= 0 {
			tail = f[idx+len(marker):]
		}
		cur, ok := bestByTail[tail]
		if !ok {
			bestByTail[tail] = f
			tailOrder = append(tailOrder, tail)
			continue
		}
		if len(f) > len(cur) {
			bestByTail[tail] = f
		}
	}

	out := make([]string, 0, len(tailOrder))
	for _, tail := range tailOrder {
		out = append(out, bestByTail[tail])
	}
	return out
}
