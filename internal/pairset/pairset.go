// Package pairset implements the bidirectional many-to-many filename<->key
// index the project orchestrator uses to answer "which filenames know this
// key?" and, from that, whether a key is reserved for a file other than the
// one currently being justified.
//
// It is deliberately two plain maps plus an invariant-preserving wrapper —
// the spec's own re-architecture note rules out relying on a single
// language-specific weak-reference structure, and this is the shape the
// teacher repo uses elsewhere for its ID<->object indices (two maps kept in
// lockstep behind a small API, never a single bidirectional container type).
package pairset

// Set is a bidirectional many-to-many index between filenames and keys.
type Set struct {
	filesByKey map[string]map[string]struct{} // key -> set of filenames
	keysByFile map[string]map[string]struct{} // filename -> set of keys
}

// New returns an empty Set.
func New() *Set {
	return &Set{
		filesByKey: make(map[string]map[string]struct{}),
		keysByFile: make(map[string]map[string]struct{}),
	}
}

// Add records that filename knows key. Idempotent.
func (s *Set) Add(filename, key string) {
	if s.filesByKey[key] == nil {
		s.filesByKey[key] = make(map[string]struct{})
	}
	s.filesByKey[key][filename] = struct{}{}

	if s.keysByFile[filename] == nil {
		s.keysByFile[filename] = make(map[string]struct{})
	}
	s.keysByFile[filename][key] = struct{}{}
}

// RemoveKey removes a single (filename, key) pair.
func (s *Set) RemoveKey(filename, key string) {
	if files, ok := s.filesByKey[key]; ok {
		delete(files, filename)
		if len(files) == 0 {
			delete(s.filesByKey, key)
		}
	}
	if keys, ok := s.keysByFile[filename]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.keysByFile, filename)
		}
	}
}

// RemoveFile removes every key known to filename.
func (s *Set) RemoveFile(filename string) {
	for key := range s.keysByFile[filename] {
		if files, ok := s.filesByKey[key]; ok {
			delete(files, filename)
			if len(files) == 0 {
				delete(s.filesByKey, key)
			}
		}
	}
	delete(s.keysByFile, filename)
}

// Filenames returns every filename currently associated with key, in no
// particular order.
func (s *Set) Filenames(key string) []string {
	files := s.filesByKey[key]
	if len(files) == 0 {
		return nil
	}
	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	return out
}

// IsReservedFor reports whether key is known to some filename other than
// excludeFilename — i.e. whether excludeFilename would have to treat key as
// reserved.
func (s *Set) IsReservedFor(key, excludeFilename string) bool {
	for f := range s.filesByKey[key] {
		if f != excludeFilename {
			return true
		}
	}
	return false
}

// Keys returns every key currently associated with filename.
func (s *Set) Keys(filename string) []string {
	keys := s.keysByFile[filename]
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out
}
