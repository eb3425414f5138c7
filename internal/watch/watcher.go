// Package watch implements keyforge's watch mode: an fsnotify-driven file
// watcher that debounces and batches filesystem events into update cycles
// of Project.UpdateSource/DeleteSource, followed by one
// processSources -> handleModified -> compileLocales pass — spec.md §9's
// single-writer queue, so at most one reconciliation cycle runs at a time
// regardless of how many events arrive while it's in flight.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/go-l10n/keyforge/internal/jsonsource"
	"github.com/go-l10n/keyforge/internal/localetree"
	"github.com/go-l10n/keyforge/internal/logging"
	"github.com/go-l10n/keyforge/internal/project"
	"github.com/go-l10n/keyforge/internal/tmplsource"
	"github.com/go-l10n/keyforge/internal/translationdb"
)

// eventType mirrors the teacher's FileEventType enum, trimmed to the
// distinctions a reconciliation cycle actually cares about.
type eventType int

const (
	eventWrite eventType = iota
	eventRemove
)

// Watcher drives a Runner incrementally from filesystem change events.
type Watcher struct {
	runner *project.Runner

	srcRoot  string
	dataPath string
	debounce time.Duration

	fs        *fsnotify.Watcher
	debouncer *eventDebouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Watcher over runner. debounce is the quiet period after the
// last event in a burst before a reconciliation cycle runs; spec.md leaves
// the exact value to the implementation, so this follows the teacher's
// watcher config knob shape with a 300ms default.
func New(runner *project.Runner, srcRoot, dataPath string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		runner:   runner,
		srcRoot:  srcRoot,
		dataPath: dataPath,
		debounce: debounce,
		fs:       fsw,
		ctx:      ctx,
		cancel:   cancel,
	}
	w.debouncer = newEventDebouncer(debounce, w.flush)
	return w, nil
}

// Start adds recursive watches under srcRoot (plus the translation-data
// file's directory and any external-locale roots) and begins processing
// events in the background.
func (w *Watcher) Start() error {
	if err := w.addWatchesRecursive(w.srcRoot); err != nil {
		return err
	}
	if w.dataPath != "" {
		if dir := filepath.Dir(w.dataPath); dir != "" {
			_ = w.fs.Add(dir)
		}
	}
	cfg := w.runner.Config()
	for _, rule := range cfg.ExternalLocales {
		matches, err := doublestar.FilepathGlob(filepath.ToSlash(cfg.ResolvePath(rule.Glob)))
		if err != nil {
			logging.Warnf("failed to resolve external locale glob %s: %v", rule.Glob, err)
			continue
		}
		for _, m := range matches {
			if err := w.fs.Add(filepath.Dir(m)); err != nil {
				logging.Warnf("failed to watch %s: %v", filepath.Dir(m), err)
			}
		}
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop cancels the event loop, closes the underlying fsnotify watcher, and
// waits for goroutines to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			logging.Warnf("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warnf("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	info, err := os.Stat(path)
	if err != nil {
		if event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0 {
			w.debouncer.add(path, eventRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.fs.Add(path); err != nil {
				logging.Warnf("failed to watch new directory %s: %v", path, err)
			}
		}
		return
	}

	if !w.shouldProcessPath(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Remove != 0:
		w.debouncer.add(path, eventRemove)
	case event.Op&fsnotify.Create != 0, event.Op&fsnotify.Write != 0, event.Op&fsnotify.Rename != 0:
		w.debouncer.add(path, eventWrite)
	}
}

func (w *Watcher) shouldProcessPath(path string) bool {
	if path == w.dataPath {
		return true
	}
	rel, err := filepath.Rel(w.srcRoot, path)
	if err == nil && !strings.HasPrefix(rel, "..") {
		for _, pattern := range []string{"**/*.html", "**/*.json"} {
			if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); matched {
				return true
			}
		}
	}
	if _, ok := w.externalLocaleMatch(path); ok {
		return true
	}
	return false
}

// flush is the debouncer's batch callback: apply every accumulated event to
// the Runner's Project, then run one full reconciliation cycle.
func (w *Watcher) flush(events map[string]eventType) {
	if len(events) == 0 {
		return
	}

	var removed, changed []string
	for path, ev := range events {
		if ev == eventRemove {
			removed = append(removed, path)
		} else {
			changed = append(changed, path)
		}
	}

	for _, path := range removed {
		w.applyRemoval(path)
	}
	for _, path := range changed {
		w.applyChange(path)
	}

	if err := w.runner.Run(); err != nil {
		logging.Warnf("watch cycle failed: %v", err)
	}
}

func (w *Watcher) applyRemoval(path string) {
	if path == w.dataPath {
		return
	}
	if locale, ok := w.externalLocaleMatch(path); ok {
		w.runner.Project().DeleteExternalLocale(locale, path)
		return
	}
	w.runner.Project().DeleteSource(path)
}

func (w *Watcher) applyChange(path string) {
	if path == w.dataPath {
		w.reloadTranslationData()
		return
	}
	if locale, ok := w.externalLocaleMatch(path); ok {
		w.reloadExternalLocale(locale, path)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warnf("read %s: %v", path, err)
		return
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		prefix, err := w.runner.Project().PrefixFor(path)
		if err != nil {
			logging.Warnf("prefix for %s: %v", path, err)
			return
		}
		res, err := jsonsource.New(path, data, prefix)
		if err != nil {
			logging.Warnf("parse %s: %v", path, err)
			return
		}
		w.runner.Project().UpdateSource(res)
		return
	}

	tpl, err := tmplsource.New(path, data, w.runner.Config())
	if err != nil {
		logging.Warnf("parse %s: %v", path, err)
		return
	}
	w.runner.Project().UpdateSource(tpl)
}

func (w *Watcher) externalLocaleMatch(path string) (string, bool) {
	cfg := w.runner.Config()
	for _, rule := range cfg.ExternalLocales {
		pattern := filepath.ToSlash(cfg.ResolvePath(rule.Glob))
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(path)); matched {
			return rule.Locale, true
		}
	}
	return "", false
}

func (w *Watcher) reloadExternalLocale(locale, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warnf("read %s: %v", path, err)
		return
	}
	tree, err := localetree.FromJSON(data)
	if err != nil {
		logging.Warnf("parse external locale %s: %v", path, err)
		return
	}
	w.runner.Project().UpdateExternalLocale(locale, path, tree)
}

func (w *Watcher) reloadTranslationData() {
	data, err := os.ReadFile(w.dataPath)
	if err != nil {
		logging.Warnf("read %s: %v", w.dataPath, err)
		return
	}
	db, err := translationdb.Parse(data, filepath.Dir(w.dataPath))
	if err != nil {
		logging.Warnf("parse %s: %v", w.dataPath, err)
		return
	}
	w.runner.ReplaceDB(db)
}

// eventDebouncer batches path events, flushing the latest-event-per-path map
// once `quiet` has elapsed since the last event — the same shape as the
// teacher's watcher debouncer, generalized to a pluggable flush callback.
type eventDebouncer struct {
	mu     sync.Mutex
	events map[string]eventType
	quiet  time.Duration
	timer  *time.Timer
	onFlush func(map[string]eventType)

	flushMu sync.Mutex // serializes onFlush: one batch's cycle at a time
}

func newEventDebouncer(quiet time.Duration, onFlush func(map[string]eventType)) *eventDebouncer {
	return &eventDebouncer{
		events:  make(map[string]eventType),
		quiet:   quiet,
		onFlush: onFlush,
	}
}

func (d *eventDebouncer) add(path string, ev eventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events[path] = ev
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.runFlush)
}

func (d *eventDebouncer) runFlush() {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	events := d.events
	d.events = make(map[string]eventType)
	d.mu.Unlock()

	if len(events) == 0 {
		return
	}
	logging.Debugf("processing %d debounced file event(s)", len(events))
	d.onFlush(events)
}
