package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/go-l10n/keyforge/internal/config"
	"github.com/go-l10n/keyforge/internal/diagnostics"
	lcierrors "github.com/go-l10n/keyforge/internal/errors"
	"github.com/go-l10n/keyforge/internal/jsonsource"
	"github.com/go-l10n/keyforge/internal/localetree"
	"github.com/go-l10n/keyforge/internal/logging"
	"github.com/go-l10n/keyforge/internal/source"
	"github.com/go-l10n/keyforge/internal/tmplsource"
	"github.com/go-l10n/keyforge/internal/translationdb"
)

// Runner is the filesystem-touching collaborator around a Project: it
// enumerates sources under cfg.Src, loads/saves the translation-data file,
// ingests external locale files, and writes compiled per-locale output.
// Project itself stays pure bytes in, bytes/diagnostics out (project.go);
// Runner is where os.ReadFile/WriteFile and glob expansion live.
type Runner struct {
	cfg     *config.Config
	bus     *diagnostics.Bus
	project *Project
}

// sourceGlobs are matched under cfg.Src; which parser a match gets is
// decided by extension (.html -> tmplsource, .json -> jsonsource) per
// spec.md §9's "parse as template or JSON-resource by extension" rule.
var sourceGlobs = []string{"**/*.html", "**/*.json"}

// NewRunner loads the translation-data file (if present) and returns a
// Runner wrapping a freshly-seeded Project.
func NewRunner(cfg *config.Config, bus *diagnostics.Bus) (*Runner, error) {
	dataPath := cfg.ResolvePath(cfg.TranslationData)

	var db *translationdb.DB
	if dataPath != "" {
		raw, err := os.ReadFile(dataPath)
		switch {
		case err == nil:
			db, err = translationdb.Parse(raw, filepath.Dir(dataPath))
			if err != nil {
				return nil, lcierrors.NewTranslationDataError(dataPath, err)
			}
		case os.IsNotExist(err):
			db = translationdb.New()
		default:
			return nil, lcierrors.NewFileError("read", dataPath, err)
		}
	} else {
		db = translationdb.New()
	}

	return &Runner{cfg: cfg, bus: bus, project: New(cfg, bus, db)}, nil
}

// Project exposes the underlying orchestrator, mainly for internal/watch to
// drive incremental updates against.
func (r *Runner) Project() *Project { return r.project }

// Config exposes the resolved configuration, so internal/watch can match
// incoming filesystem events against config-derived glob patterns without
// duplicating config resolution logic.
func (r *Runner) Config() *config.Config { return r.cfg }

// ReplaceDB swaps in a freshly-parsed translation database — used when
// watch mode detects the on-disk translation-data file changed out from
// under the running process. The live source set and ingested external
// locales carry over unchanged; only the DB and the pair-set index (which
// is seeded from the DB) are rebuilt.
func (r *Runner) ReplaceDB(db *translationdb.DB) {
	next := New(r.cfg, r.bus, db)
	next.sources = r.project.sources
	next.externalLocales = r.project.externalLocales
	for filename, src := range next.sources {
		keys := src.ExtractKeys(r.bus)
		next.db.UpdateKeys(filename, keys)
		next.syncPairSetForFile(filename, keys)
		if _, justifiable := src.(source.Justifiable); justifiable {
			next.markUnprocessed(filename)
		}
	}
	r.project = next
}

// LoadAll walks cfg.Src for template (.html) and JSON-resource (.json)
// sources, feeding each one through
// Project.UpdateSource, then loads every external locale glob.
func (r *Runner) LoadAll() error {
	srcRoot := r.cfg.ResolvePath(r.cfg.Src)

	seen := map[string]bool{}
	var filenames []string
	for _, glob := range sourceGlobs {
		matches, err := doublestar.FilepathGlob(filepath.Join(filepath.ToSlash(srcRoot), glob))
		if err != nil {
			return lcierrors.NewFileError("glob", srcRoot, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				filenames = append(filenames, m)
			}
		}
	}
	sort.Strings(filenames)

	for _, filename := range filenames {
		if err := r.loadSource(filename); err != nil {
			return err
		}
	}

	return r.loadExternalLocales()
}

func (r *Runner) loadSource(filename string) error {
	abs, err := filepath.Abs(filename)
	if err != nil {
		abs = filename
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return lcierrors.NewFileError("read", abs, err)
	}

	if strings.EqualFold(filepath.Ext(abs), ".json") {
		prefix, err := r.project.PrefixFor(abs)
		if err != nil {
			return err
		}
		res, err := jsonsource.New(abs, data, prefix)
		if err != nil {
			return lcierrors.NewFileError("parse", abs, err)
		}
		r.project.UpdateSource(res)
		return nil
	}

	tpl, err := tmplsource.New(abs, data, r.cfg)
	if err != nil {
		return lcierrors.NewFileError("parse", abs, err)
	}
	r.project.UpdateSource(tpl)
	return nil
}

// loadExternalLocales resolves every configured externalLocales glob and
// ingests the matches concurrently — per spec.md's SUPPLEMENTED FEATURES
// note, these are read-only files with no write-back path, so there is no
// ordering requirement between them beyond deterministic dedup.
func (r *Runner) loadExternalLocales() error {
	type match struct {
		locale   string
		filename string
	}
	var matches []match

	for _, rule := range r.cfg.ExternalLocales {
		pattern := r.cfg.ResolvePath(rule.Glob)
		filenames, err := doublestar.FilepathGlob(filepath.ToSlash(pattern))
		if err != nil {
			return lcierrors.NewFileError("glob", pattern, err)
		}
		absFilenames := make([]string, 0, len(filenames))
		for _, f := range filenames {
			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			absFilenames = append(absFilenames, abs)
		}
		for _, f := range DeduplicateModuleFilenames(absFilenames, r.cfg.DedupeTail) {
			matches = append(matches, match{locale: rule.Locale, filename: f})
		}
	}

	trees := make([]*localetree.Tree, len(matches))
	g := new(errgroup.Group)
	for i, m := range matches {
		i, m := i, m
		g.Go(func() error {
			raw, err := os.ReadFile(m.filename)
			if err != nil {
				return lcierrors.NewFileError("read", m.filename, err)
			}
			tree, err := localetree.FromJSON(raw)
			if err != nil {
				return fmt.Errorf("external locale %s: %w", m.filename, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, m := range matches {
		r.project.UpdateExternalLocale(m.locale, m.filename, trees[i])
	}
	return nil
}

// Lint runs a diagnostics-only pass: sources are justified and the DB is
// reconciled exactly as in Run, but HandleModified's write hooks are never
// invoked — any change that would have touched disk instead surfaces as a
// ModifiedSource/ModifiedTranslation diagnostic, the same elevation
// production mode applies. No compiled output is written either. This backs
// the `lint` CLI subcommand (SUPPLEMENTED FEATURES): a CI-friendly check
// whose exit code reflects diagnostic severity without mutating the
// project.
func (r *Runner) Lint() error {
	development := r.cfg.Development
	r.cfg.Development = false
	defer func() { r.cfg.Development = development }()

	if err := r.project.ProcessSources(); err != nil {
		return err
	}
	return r.project.HandleModified(WriteHooks{}, "")
}

// Run executes one full pass: process queued sources, flush modifications
// (writing back in development mode, or elevating to diagnostics in
// production), compile every locale tree, and write the compiled output
// files.
func (r *Runner) Run() error {
	if err := r.project.ProcessSources(); err != nil {
		return err
	}

	dataPath := r.cfg.ResolvePath(r.cfg.TranslationData)
	hooks := WriteHooks{
		WriteSource: func(filename string, data []byte) error {
			return os.WriteFile(filename, data, 0o644)
		},
	}
	if dataPath != "" {
		hooks.WriteTranslationData = func(data []byte) error {
			if dir := filepath.Dir(dataPath); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			return os.WriteFile(dataPath, data, 0o644)
		}
	}

	basePath := filepath.Dir(dataPath)
	if dataPath == "" {
		basePath = r.cfg.ResolvePath(r.cfg.Src)
	}
	if err := r.project.HandleModified(hooks, basePath); err != nil {
		return err
	}

	return r.writeCompiledOutput()
}

// writeCompiledOutput renders every configured locale's compiled tree as
// minified JSON and writes it to cfg.Output with "[locale]" substituted.
func (r *Runner) writeCompiledOutput() error {
	if r.cfg.Output == "" {
		return nil
	}
	trees := r.project.CompileLocales()

	locales := make([]string, 0, len(trees))
	for locale := range trees {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	outputTemplate := r.cfg.ResolvePath(r.cfg.Output)
	for _, locale := range locales {
		data, err := json.Marshal(trees[locale].ToMap())
		if err != nil {
			return fmt.Errorf("project: compile locale %q: %w", locale, err)
		}

		outPath := strings.ReplaceAll(outputTemplate, "[locale]", locale)
		if dir := filepath.Dir(outPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return lcierrors.NewFileError("mkdir", dir, err)
			}
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return lcierrors.NewFileError("write", outPath, err)
		}
		logging.Debugf("wrote compiled locale %q to %s", locale, outPath)
	}
	return nil
}
