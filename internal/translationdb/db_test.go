package translationdb

import (
	"testing"
	"time"

	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFixedNow(t *testing.T, when time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return when }
	t.Cleanup(func() { nowFunc = orig })
}

func TestUpdateKeysAddsAndRemoves(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	changed := db.UpdateKeys("a.html", map[string]string{"a.view.t0": "Hello"})
	assert.True(t, changed)
	require.Contains(t, db.Files, "a.html")
	assert.Equal(t, "Hello", db.Files["a.html"].Content["a.view.t0"].Source.Content)

	changed = db.UpdateKeys("a.html", map[string]string{"a.view.t0": "Hello"})
	assert.False(t, changed)

	changed = db.UpdateKeys("a.html", map[string]string{"a.view.t1": "Bye"})
	assert.True(t, changed)
	assert.NotContains(t, db.Files["a.html"].Content, "a.view.t0")
	assert.Contains(t, db.Files["a.html"].Content, "a.view.t1")
}

func TestUpdateKeysPushesObsoleteWhenTranslated(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"a.view.t0": "Hello"})
	db.Files["a.html"].Content["a.view.t0"].Translations = map[string]Entry{
		"de": {Content: "Hallo", LastModified: time.Now()},
	}

	db.UpdateKeys("a.html", map[string]string{})
	require.Len(t, db.Obsolete, 1)
	assert.Equal(t, "Hello", db.Obsolete[0].Content)
	assert.Equal(t, "Hallo", db.Obsolete[0].Translations["de"])
}

func TestUpdateKeysNoRecordCreatedWhenEmpty(t *testing.T) {
	db := New()
	changed := db.UpdateKeys("a.html", map[string]string{})
	assert.False(t, changed)
	assert.NotContains(t, db.Files, "a.html")
}

func TestCopyTranslationsWithinFile(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"old.key": "Hello"})
	db.Files["a.html"].Content["old.key"].Translations = map[string]Entry{
		"de": {Content: "Hallo", LastModified: time.Now()},
	}

	ok := db.CopyTranslations("a.html", "old.key", "new.key", nil)
	assert.True(t, ok)
	cloned, exists := db.Files["a.html"].Content["new.key"]
	require.True(t, exists)
	assert.Equal(t, "Hello", cloned.Source.Content)
	assert.Equal(t, "Hallo", cloned.Translations["de"].Content)
}

func TestCopyTranslationsFromHintFile(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("shared.html", map[string]string{"shared.key": "Hello"})
	db.Files["shared.html"].Content["shared.key"].Translations = map[string]Entry{
		"de": {Content: "Hallo", LastModified: time.Now()},
	}

	ok := db.CopyTranslations("a.html", "shared.key", "a.new.key", []string{"shared.html"})
	assert.True(t, ok)
	cloned, exists := db.Files["a.html"].Content["a.new.key"]
	require.True(t, exists)
	assert.Equal(t, "Hallo", cloned.Translations["de"].Content)
}

func TestCopyTranslationsFailsWithoutSource(t *testing.T) {
	db := New()
	ok := db.CopyTranslations("a.html", "missing.key", "new.key", nil)
	assert.False(t, ok)
}

func TestDeleteFilePushesObsolete(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"a.view.t0": "Hello"})
	db.Files["a.html"].Content["a.view.t0"].Translations = map[string]Entry{
		"de": {Content: "Hallo", LastModified: time.Now()},
	}

	db.DeleteFile("a.html")
	assert.NotContains(t, db.Files, "a.html")
	require.Len(t, db.Obsolete, 1)
}

func TestCompileReportsDuplicateKey(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"app.view.t0": "Hello"})
	db.UpdateKeys("b.html", map[string]string{"app.view.t0": "Hi"})

	bus := diagnostics.New()
	var got []diagnostics.Diagnostic
	bus.Subscribe(func(d diagnostics.Diagnostic) { got = append(got, d) })

	db.Compile(CompileConfig{SourceLocale: "en", Locales: []string{"en"}}, bus)

	require.Len(t, got, 1)
	assert.Equal(t, diagnostics.DuplicateKey, got[0].Kind)
}

func TestCompileSkipsOutdatedTranslation(t *testing.T) {
	db := New()
	past := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withFixedNow(t, now)
	db.UpdateKeys("a.html", map[string]string{"app.view.t0": "Hello"})
	db.Files["a.html"].Content["app.view.t0"].Translations = map[string]Entry{
		"de": {Content: "Hallo", LastModified: past},
	}

	bus := diagnostics.New()
	var got []diagnostics.Diagnostic
	bus.Subscribe(func(d diagnostics.Diagnostic) { got = append(got, d) })

	trees := db.Compile(CompileConfig{SourceLocale: "en", Locales: []string{"en", "de"}}, bus)

	_, ok := trees["de"].Get("app.view.t0")
	assert.False(t, ok)

	var kinds []diagnostics.Kind
	for _, d := range got {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, diagnostics.OutdatedTranslation)
}

func TestCompileReportsUnknownLocale(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"app.view.t0": "Hello"})
	db.Files["a.html"].Content["app.view.t0"].Translations = map[string]Entry{
		"fr": {Content: "Bonjour", LastModified: time.Now()},
	}

	bus := diagnostics.New()
	var got []diagnostics.Diagnostic
	bus.Subscribe(func(d diagnostics.Diagnostic) { got = append(got, d) })

	db.Compile(CompileConfig{SourceLocale: "en", Locales: []string{"en", "de"}}, bus)

	var kinds []diagnostics.Kind
	for _, d := range got {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, diagnostics.UnknownLocale)
}

func TestCompileReportsMissingTranslation(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"app.view.t0": "Hello"})

	bus := diagnostics.New()
	var got []diagnostics.Diagnostic
	bus.Subscribe(func(d diagnostics.Diagnostic) { got = append(got, d) })

	db.Compile(CompileConfig{SourceLocale: "en", Locales: []string{"en", "de"}}, bus)

	var kinds []diagnostics.Kind
	for _, d := range got {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, diagnostics.MissingTranslation)
}

func TestPruneEmptyRemovesDeadFiles(t *testing.T) {
	db := New()
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db.UpdateKeys("a.html", map[string]string{"a.view.t0": "Hello"})
	db.UpdateKeys("b.html", map[string]string{"b.view.t0": "Bye"})

	db.PruneEmpty(map[string]bool{"a.html": true})

	assert.Contains(t, db.Files, "a.html")
	assert.NotContains(t, db.Files, "b.html")
}
