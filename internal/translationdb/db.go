// Package translationdb implements the canonical translation database: per
// file, per key source content and per-locale translations with
// modification timestamps, plus an obsolete ledger for translations that
// fell out of the live key set.
package translationdb

import (
	"time"

	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/go-l10n/keyforge/internal/localetree"
)

// Entry is one piece of content — either the source string or one locale's
// translation of it — with its modification time and ignored-spelling list.
type Entry struct {
	Content        string
	LastModified   time.Time
	IgnoreSpelling []string
}

// Set is a per-key translation bundle: the authoritative source content plus
// zero or more per-locale translations. A translation is current iff its
// LastModified is not before Source.LastModified; compilation skips stale
// translations instead of emitting them.
type Set struct {
	Source       Entry
	Translations map[string]Entry // localeId -> Entry
}

func newSet(content string, now time.Time) *Set {
	return &Set{Source: Entry{Content: content, LastModified: now}}
}

// HasTranslations reports whether the set carries at least one translation.
func (s *Set) HasTranslations() bool {
	return len(s.Translations) > 0
}

func (s *Set) clone() *Set {
	out := &Set{Source: s.Source}
	if len(s.Translations) > 0 {
		out.Translations = make(map[string]Entry, len(s.Translations))
		for k, v := range s.Translations {
			out.Translations[k] = v
		}
	}
	return out
}

// Current reports whether a translation entry is current relative to the
// set's source, per spec: translation.LastModified >= source.LastModified.
func (s *Set) Current(locale string) (Entry, bool) {
	e, ok := s.Translations[locale]
	if !ok {
		return Entry{}, false
	}
	return e, !e.LastModified.Before(s.Source.LastModified)
}

// FileRecord is the DB's per-file view: key -> Set. A record with no
// entries is eligible for deletion from the DB.
type FileRecord struct {
	Content map[string]*Set
}

func newFileRecord() *FileRecord {
	return &FileRecord{Content: make(map[string]*Set)}
}

// Obsolete is one retained translation whose key left the live DB (deleted
// key or deleted file). Appended, never deduplicated in memory; the JSON
// serializer is the only place exact duplicates are collapsed.
type Obsolete struct {
	Content      string
	Translations map[string]string // localeId -> content
}

// DB is the full translation database: every live file's record plus the
// obsolete ledger.
type DB struct {
	Files    map[string]*FileRecord // absolute filename -> record
	Obsolete []Obsolete

	// Modified is set whenever an operation changes the DB's logical
	// content, and also when Parse detects a v1 (pre-obsolete-ledger)
	// document — loading a v1 DB always counts as a pending write so the
	// next save upgrades it to v2.
	Modified bool
}

// New returns an empty translation database.
func New() *DB {
	return &DB{Files: make(map[string]*FileRecord)}
}

// nowFunc is overridable in tests; production code always uses time.Now.
var nowFunc = time.Now

func entryTranslationsContent(s *Set) map[string]string {
	if len(s.Translations) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.Translations))
	for locale, e := range s.Translations {
		out[locale] = e.Content
	}
	return out
}

func (db *DB) pushObsolete(s *Set) {
	if !s.HasTranslations() {
		return
	}
	db.Obsolete = append(db.Obsolete, Obsolete{
		Content:      s.Source.Content,
		Translations: entryTranslationsContent(s),
	})
}

// UpdateKeys aligns filename's record to extractedKeys (key -> source
// content): new keys are added with LastModified = now; keys whose content
// changed have their content and LastModified bumped; keys present in the
// record but absent from extractedKeys are removed, with any translations
// they carried flowing to the obsolete ledger. If filename had no record and
// extractedKeys is empty, no record is created. Returns whether anything
// changed.
func (db *DB) UpdateKeys(filename string, extractedKeys map[string]string) bool {
	record, existed := db.Files[filename]
	if !existed {
		if len(extractedKeys) == 0 {
			return false
		}
		record = newFileRecord()
		db.Files[filename] = record
	}

	now := nowFunc()
	changed := false

	for key, content := range extractedKeys {
		set, ok := record.Content[key]
		if !ok {
			record.Content[key] = newSet(content, now)
			changed = true
			continue
		}
		if set.Source.Content != content {
			set.Source.Content = content
			set.Source.LastModified = now
			changed = true
		}
	}

	for key, set := range record.Content {
		if _, ok := extractedKeys[key]; ok {
			continue
		}
		db.pushObsolete(set)
		delete(record.Content, key)
		changed = true
	}

	if changed {
		db.Modified = true
	}
	return changed
}

// CopyTranslations clones oldKey's translation set under newKey within
// filename, if oldKey exists there with at least one translation; the
// clone's Source.LastModified is set to now so its translations read as
// outdated until re-verified. If filename has no qualifying oldKey, the
// first file in hintFilenames (in order) that does is used as the source of
// the clone instead. Returns whether a copy happened.
func (db *DB) CopyTranslations(filename, oldKey, newKey string, hintFilenames []string) bool {
	if record, ok := db.Files[filename]; ok {
		if set, ok := record.Content[oldKey]; ok && set.HasTranslations() {
			db.installClone(filename, newKey, set)
			return true
		}
	}

	for _, hint := range hintFilenames {
		record, ok := db.Files[hint]
		if !ok {
			continue
		}
		set, ok := record.Content[oldKey]
		if !ok || !set.HasTranslations() {
			continue
		}
		db.installClone(filename, newKey, set)
		return true
	}

	return false
}

func (db *DB) installClone(filename, newKey string, source *Set) {
	clone := source.clone()
	clone.Source.LastModified = nowFunc()

	record, ok := db.Files[filename]
	if !ok {
		record = newFileRecord()
		db.Files[filename] = record
	}
	record.Content[newKey] = clone
	db.Modified = true
}

// DeleteFile removes filename's record entirely, pushing every translation
// set that carried at least one translation to the obsolete ledger.
func (db *DB) DeleteFile(filename string) {
	record, ok := db.Files[filename]
	if !ok {
		return
	}
	for _, set := range record.Content {
		db.pushObsolete(set)
	}
	delete(db.Files, filename)
	db.Modified = true
}

// PruneEmpty deletes any file record whose filename is not in liveFiles or
// whose content map is empty, flowing removed translations to obsolete.
// This is the sweep step processSources runs after justifying every
// unprocessed file.
func (db *DB) PruneEmpty(liveFiles map[string]bool) {
	for filename, record := range db.Files {
		if liveFiles[filename] && len(record.Content) > 0 {
			continue
		}
		for _, set := range record.Content {
			db.pushObsolete(set)
		}
		delete(db.Files, filename)
		db.Modified = true
	}
}

// CompileConfig names the locales a Compile pass should populate.
type CompileConfig struct {
	SourceLocale string
	Locales      []string // every configured locale, including SourceLocale
}

func (c CompileConfig) isConfigured(locale string) bool {
	for _, l := range c.Locales {
		if l == locale {
			return true
		}
	}
	return false
}

// Compile builds one locale tree per configured locale from the DB's
// current content, reporting diagnostics per spec.md §4.4:
//   - DuplicateKey when two files claim the same source-locale key path.
//   - UnknownLocale when a translation names a locale not in cfg.Locales.
//   - OutdatedTranslation when a translation's LastModified predates its
//     source's, so it is skipped rather than emitted.
//   - MissingTranslation, once per key, for every non-source configured
//     locale that ends up with no entry for that key.
func (db *DB) Compile(cfg CompileConfig, bus *diagnostics.Bus) map[string]*localetree.Tree {
	trees := make(map[string]*localetree.Tree, len(cfg.Locales))
	for _, locale := range cfg.Locales {
		trees[locale] = localetree.New()
	}

	type keyRef struct {
		filename string
		key      string
	}
	var allKeys []keyRef

	for filename, record := range db.Files {
		for key, set := range record.Content {
			allKeys = append(allKeys, keyRef{filename, key})

			if srcTree := trees[cfg.SourceLocale]; srcTree != nil {
				if !srcTree.Set(key, set.Source.Content) {
					bus.Reportf(diagnostics.DuplicateKey, &diagnostics.Location{Filename: filename}, "duplicate key %q", key)
				}
			}

			for locale, entry := range set.Translations {
				if !cfg.isConfigured(locale) {
					bus.Reportf(diagnostics.UnknownLocale, &diagnostics.Location{Filename: filename}, "translation for key %q names unknown locale %q", key, locale)
					continue
				}
				if entry.LastModified.Before(set.Source.LastModified) {
					bus.Reportf(diagnostics.OutdatedTranslation, &diagnostics.Location{Filename: filename}, "translation for key %q in locale %q is outdated", key, locale)
					continue
				}
				if tree := trees[locale]; tree != nil {
					tree.Set(key, entry.Content)
				}
			}
		}
	}

	for _, locale := range cfg.Locales {
		if locale == cfg.SourceLocale {
			continue
		}
		for _, ref := range allKeys {
			set := db.Files[ref.filename].Content[ref.key]
			if _, ok := set.Translations[locale]; !ok {
				bus.Reportf(diagnostics.MissingTranslation, &diagnostics.Location{Filename: ref.filename}, "missing %q translation for key %q", locale, ref.key)
			}
		}
	}

	return trees
}
