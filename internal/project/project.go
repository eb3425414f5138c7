// Package project implements the core reconciliation engine spec.md calls
// the "project orchestrator": it holds the live source set, the pair-set
// reserved-key index, and the translation database, and drives the
// extract -> justify -> reconcile -> compile cycle spec.md §4.7 describes.
//
// Project itself is pure bytes in, bytes/diagnostics out — no filesystem
// access. Runner (runner.go) and internal/watch are the I/O-performing
// collaborators spec.md §1 carves out as external: they read/write files
// and translate filesystem events into the UpdateSource/DeleteSource calls
// below.
package project

import (
	"bytes"
	"fmt"

	"github.com/go-l10n/keyforge/internal/config"
	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/go-l10n/keyforge/internal/localetree"
	"github.com/go-l10n/keyforge/internal/pairset"
	"github.com/go-l10n/keyforge/internal/source"
	"github.com/go-l10n/keyforge/internal/translationdb"
)

// externalLocaleFile is one parsed, read-only locale tree merged in at
// compile time, keyed by the (localeId, absolute filename) pair it came
// from per spec.md §3.
type externalLocaleFile struct {
	filename string
	tree     *localetree.Tree
}

// Project is the live in-memory state of one localization project: the
// loaded sources, the reserved-key index, and the translation database.
// It is not re-entrant — see spec.md §5 — callers serialize
// UpdateSource/DeleteSource/ProcessSources/HandleModified/CompileLocales
// calls themselves (internal/watch's single-writer queue does this for
// watch mode).
type Project struct {
	cfg *config.Config
	bus *diagnostics.Bus
	db  *translationdb.DB

	pairSet *pairset.Set

	sources map[string]source.Source

	// unprocessed preserves insertion order: spec.md §5 ties "which file
	// owns an initially-duplicated key" to the order files are first seen,
	// so this must never be satisfied by map iteration.
	unprocessedOrder []string
	unprocessedSet   map[string]bool

	modifiedSources map[string]bool

	externalLocales map[string][]externalLocaleFile // localeId -> files
}

// New returns a Project over an existing (possibly freshly-loaded)
// translation database.
func New(cfg *config.Config, bus *diagnostics.Bus, db *translationdb.DB) *Project {
	p := &Project{
		cfg:             cfg,
		bus:             bus,
		db:              db,
		pairSet:         pairset.New(),
		sources:         map[string]source.Source{},
		unprocessedSet:  map[string]bool{},
		modifiedSources: map[string]bool{},
		externalLocales: map[string][]externalLocaleFile{},
	}
	p.seedPairSetFromDB()
	return p
}

// DB returns the project's translation database.
func (p *Project) DB() *translationdb.DB { return p.db }

// seedPairSetFromDB populates the pair-set index from the DB's current key
// set, per spec.md §4.7 step 1 ("seed knownKeys from the DB so reservation
// considers previously-known keys"). It is idempotent — safe to call again
// at the top of every ProcessSources pass.
func (p *Project) seedPairSetFromDB() {
	for filename, record := range p.db.Files {
		for key := range record.Content {
			p.pairSet.Add(filename, key)
		}
	}
}

// syncPairSetForFile replaces filename's pair-set entries with exactly the
// keys it currently extracts to.
func (p *Project) syncPairSetForFile(filename string, keys map[string]string) {
	p.pairSet.RemoveFile(filename)
	for key := range keys {
		p.pairSet.Add(filename, key)
	}
}

func (p *Project) markUnprocessed(filename string) {
	if p.unprocessedSet[filename] {
		return
	}
	p.unprocessedSet[filename] = true
	p.unprocessedOrder = append(p.unprocessedOrder, filename)
}

func (p *Project) clearUnprocessed(filename string) {
	if !p.unprocessedSet[filename] {
		return
	}
	delete(p.unprocessedSet, filename)
	for i, f := range p.unprocessedOrder {
		if f == filename {
			p.unprocessedOrder = append(p.unprocessedOrder[:i], p.unprocessedOrder[i+1:]...)
			break
		}
	}
}

// UpdateSource replaces filename's live source (adding it if new) and
// eagerly extracts its current key set into the DB — this is what gives
// later-processed files an accurate reserved-key view before their own
// justification runs. Justifiable sources are additionally queued for the
// next ProcessSources pass. Returns false (no-op) if src's bytes are
// identical to the source already on file.
func (p *Project) UpdateSource(src source.Source) bool {
	filename := src.Filename()
	if prior, ok := p.sources[filename]; ok && bytes.Equal(prior.Bytes(), src.Bytes()) {
		return false
	}

	p.sources[filename] = src
	keys := src.ExtractKeys(p.bus)
	p.db.UpdateKeys(filename, keys)
	p.syncPairSetForFile(filename, keys)

	if _, justifiable := src.(source.Justifiable); justifiable {
		p.markUnprocessed(filename)
	}
	return true
}

// DeleteSource drops filename from the live source set, the unprocessed
// queue, the modified-sources set, and the pair-set index. Its DB record is
// left intact until the next ProcessSources sweep (spec.md §4.7 step 4),
// which flows any translations it carried to the obsolete ledger.
func (p *Project) DeleteSource(filename string) {
	delete(p.sources, filename)
	p.clearUnprocessed(filename)
	delete(p.modifiedSources, filename)
	p.pairSet.RemoveFile(filename)
}

// UpdateExternalLocale installs (or replaces) the parsed tree for one
// externally-supplied locale file, identified by (localeId, filename).
func (p *Project) UpdateExternalLocale(localeID, filename string, tree *localetree.Tree) {
	files := p.externalLocales[localeID]
	for i, f := range files {
		if f.filename == filename {
			files[i].tree = tree
			return
		}
	}
	p.externalLocales[localeID] = append(files, externalLocaleFile{filename: filename, tree: tree})
}

// DeleteExternalLocale removes a previously-ingested external locale file.
func (p *Project) DeleteExternalLocale(localeID, filename string) {
	files := p.externalLocales[localeID]
	for i, f := range files {
		if f.filename == filename {
			p.externalLocales[localeID] = append(files[:i], files[i+1:]...)
			return
		}
	}
}

// ProcessSources runs one reconciliation pass: justify every unprocessed
// template (allocating/reusing/replacing keys per spec.md §4.5), propagate
// replaced keys' translations, re-extract, and sweep DB records whose
// source disappeared or went empty. Returns an error only for a structural
// failure (a queued file lying outside cfg.Src, or a justified source's
// rewritten bytes failing to re-parse);
// content problems are reported to the bus and never abort the pass.
func (p *Project) ProcessSources() error {
	p.seedPairSetFromDB()

	pending := make([]string, len(p.unprocessedOrder))
	copy(pending, p.unprocessedOrder)

	for _, filename := range pending {
		src, ok := p.sources[filename]
		if !ok {
			p.clearUnprocessed(filename)
			continue
		}

		justifiable, ok := src.(source.Justifiable)
		if !ok {
			p.clearUnprocessed(filename)
			continue
		}

		prefix, err := p.PrefixFor(filename)
		if err != nil {
			return fmt.Errorf("project: %w", err)
		}

		result, err := justifiable.Justify(source.JustifyOptions{
			Prefix: prefix,
			IsReserved: func(key string) bool {
				return p.pairSet.IsReservedFor(key, filename)
			},
			DiagnosticsOnly: !p.cfg.Development,
			Bus:             p.bus,
		})
		if err != nil {
			return fmt.Errorf("project: justify %s: %w", filename, err)
		}

		if result.Modified {
			for oldKey, newKeys := range result.ReplacedKeys {
				hint := p.pairSet.Filenames(oldKey)
				for newKey := range newKeys {
					p.db.CopyTranslations(filename, oldKey, newKey, hint)
				}
			}
			keys := src.ExtractKeys(p.bus)
			p.db.UpdateKeys(filename, keys)
			p.syncPairSetForFile(filename, keys)
			p.modifiedSources[filename] = true
		}

		p.clearUnprocessed(filename)
	}

	liveFiles := make(map[string]bool, len(p.sources))
	for filename := range p.sources {
		liveFiles[filename] = true
	}
	p.db.PruneEmpty(liveFiles)

	return nil
}

// WriteHooks are the byte-sink collaborators HandleModified flushes
// modified sources and translation data through in development mode.
type WriteHooks struct {
	WriteSource          func(filename string, data []byte) error
	WriteTranslationData func(data []byte) error
}

// HandleModified flushes pending modifications through hooks in
// development mode (awaiting every write before clearing the modified
// state), or — in production — converts them into ModifiedSource /
// ModifiedTranslation diagnostics without invoking hooks at all, per
// spec.md §4.7 and §7 ("production mode elevates unwritten changes").
func (p *Project) HandleModified(hooks WriteHooks, basePath string) error {
	if !p.cfg.Development {
		for filename := range p.modifiedSources {
			p.bus.Reportf(diagnostics.ModifiedSource, &diagnostics.Location{Filename: filename}, "source would have been modified")
		}
		if p.db.Modified {
			p.bus.Reportf(diagnostics.ModifiedTranslation, nil, "translation data would have been modified")
		}
		return nil
	}

	var errs []error
	for filename := range p.modifiedSources {
		src := p.sources[filename]
		if src == nil {
			continue
		}
		if hooks.WriteSource != nil {
			if err := hooks.WriteSource(filename, src.Bytes()); err != nil {
				errs = append(errs, fmt.Errorf("write %s: %w", filename, err))
				continue
			}
		}
		delete(p.modifiedSources, filename)
	}

	if p.db.Modified && hooks.WriteTranslationData != nil {
		data, err := p.db.Format(basePath)
		if err != nil {
			errs = append(errs, fmt.Errorf("format translation data: %w", err))
		} else if err := hooks.WriteTranslationData(data); err != nil {
			errs = append(errs, fmt.Errorf("write translation data: %w", err))
		} else {
			p.db.Modified = false
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("project: %d write(s) failed: %v", len(errs), errs)
	}
	return nil
}

// CompileLocales builds one locale tree per configured locale from the
// DB's current content (internal/translationdb.DB.Compile), then merges
// every ingested external locale tree in — starting from a new empty tree
// for a locale the DB compile did not produce, so the external trees
// themselves are never aliased or mutated.
func (p *Project) CompileLocales() map[string]*localetree.Tree {
	trees := p.db.Compile(translationdb.CompileConfig{
		SourceLocale: p.cfg.SourceLocale,
		Locales:      p.cfg.AllLocales(),
	}, p.bus)

	for localeID, files := range p.externalLocales {
		tree, ok := trees[localeID]
		if !ok || tree == nil {
			tree = localetree.New()
			trees[localeID] = tree
		}
		for _, f := range files {
			localetree.Merge(tree, f.tree, p.bus, f.filename)
		}
	}

	return trees
}
