package tmplsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-l10n/keyforge/internal/config"
	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/go-l10n/keyforge/internal/source"
)

func testConfig() *config.Config {
	return &config.Config{
		Localize: map[string]config.ElementRule{
			"div": {Content: "text"},
			"img": {Attributes: []string{"alt"}},
		},
		Whitespace: map[string]config.WhitespacePolicy{},
	}
}

func newTemplate(t *testing.T, html string) *Template {
	t.Helper()
	tpl, err := New("/src/view.html", []byte(html), testConfig())
	require.NoError(t, err)
	return tpl
}

func justify(t *testing.T, tpl *Template, prefix string, isReserved func(string) bool) source.JustifyResult {
	t.Helper()
	bus := diagnostics.New()
	result, err := tpl.Justify(source.JustifyOptions{
		Prefix:     prefix,
		IsReserved: isReserved,
		Bus:        bus,
	})
	require.NoError(t, err)
	return result
}

// S1 — initial allocation.
func TestJustifyAllocatesInitialKey(t *testing.T) {
	tpl := newTemplate(t, `<template><div>test</div></template>`)
	result := justify(t, tpl, "app.view.", nil)

	assert.True(t, result.Modified)
	assert.Equal(t, `<template><div t="app.view.t0">test</div></template>`, string(tpl.Bytes()))
}

// S2 — mixed content produces a diagnostic and no rewrite of the text
// binding.
func TestJustifyReportsMixedContent(t *testing.T) {
	tpl := newTemplate(t, `<div>foo<span>bar</span></div>`)

	bus := diagnostics.New()
	var kinds []diagnostics.Kind
	bus.Subscribe(func(d diagnostics.Diagnostic) { kinds = append(kinds, d.Kind) })

	_, err := tpl.Justify(source.JustifyOptions{Prefix: "app.", Bus: bus})
	require.NoError(t, err)
	assert.Contains(t, kinds, diagnostics.MixedContent)
}

// S4 — wrong-prefix replacement.
func TestJustifyReplacesWrongPrefixKey(t *testing.T) {
	tpl := newTemplate(t, `<div t="foo.t7">test</div>`)
	result := justify(t, tpl, "test.", nil)

	assert.Equal(t, `<div t="test.t0">test</div>`, string(tpl.Bytes()))
	require.Contains(t, result.ReplacedKeys, "foo.t7")
	assert.True(t, result.ReplacedKeys["foo.t7"]["test.t0"])
}

// S3 — a reserved key is replaced even though its own prefix matches.
func TestJustifyReplacesReservedKey(t *testing.T) {
	tpl := newTemplate(t, `<div t="app.test.t0">test</div>`)
	isReserved := func(key string) bool { return key == "app.test.t0" }
	result := justify(t, tpl, "app.test.", isReserved)

	assert.Equal(t, `<div t="app.test.t1">test</div>`, string(tpl.Bytes()))
	assert.True(t, result.ReplacedKeys["app.test.0"] == nil) // sanity: no stray key
	assert.True(t, result.ReplacedKeys["app.test.t0"]["app.test.t1"])
}

func TestJustifyPreservesNonLocalizedBytesOutsideEdit(t *testing.T) {
	html := `<section class="hero">\n  <div>  test  </div>\n</section>`
	tpl := newTemplate(t, html)
	before := string(tpl.Bytes())
	justify(t, tpl, "app.", nil)

	after := string(tpl.Bytes())
	assert.Contains(t, after, `<section class="hero">`)
	assert.Contains(t, before, `<section class="hero">`)
}

// S5 — whitespace collapse.
func TestExtractKeysCollapsesWhitespace(t *testing.T) {
	cfg := testConfig()
	cfg.Whitespace["*"] = config.WhitespaceCollapse
	tpl, err := New("/src/view.html", []byte(`<div t="t0">  foo  1  </div>`), cfg)
	require.NoError(t, err)

	bus := diagnostics.New()
	keys := tpl.ExtractKeys(bus)
	assert.Equal(t, " foo 1 ", keys["t0"])
}

func TestExtractKeysSkipsInterpolatedAttribute(t *testing.T) {
	cfg := testConfig()
	tpl, err := New("/src/view.html", []byte(`<img t="[alt]a0" alt="${dynamic}">`), cfg)
	require.NoError(t, err)

	bus := diagnostics.New()
	keys := tpl.ExtractKeys(bus)
	assert.Empty(t, keys)
}

func TestJustifyReportsDisallowedLocalizedAttribute(t *testing.T) {
	tpl := newTemplate(t, `<div t="[title]app.t0" title="hi">test</div>`)

	bus := diagnostics.New()
	var kinds []diagnostics.Kind
	bus.Subscribe(func(d diagnostics.Diagnostic) { kinds = append(kinds, d.Kind) })

	_, err := tpl.Justify(source.JustifyOptions{Prefix: "app.", Bus: bus})
	require.NoError(t, err)
	assert.Contains(t, kinds, diagnostics.DisallowedLocalizedAttribute)
}

func TestJustifyIsIdempotentOnSecondPass(t *testing.T) {
	tpl := newTemplate(t, `<template><div>test</div></template>`)
	justify(t, tpl, "app.view.", nil)

	result := justify(t, tpl, "app.view.", nil)
	assert.False(t, result.Modified)
}
