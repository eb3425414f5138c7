// Package config is the shape of keyforge's user-supplied configuration:
// a plain struct and a Validate pass that applies defaults (including the
// "*" wildcard entries of localize and whitespace). The ignore/localize/
// whitespace maps are kept as plain maps keyed by tag name; consumers look
// a tag up and fall back to "*" on every lookup, and no pass compiles them
// into closures. The diagnostics map is turned into a diagnostics.Policy at
// load time.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-l10n/keyforge/internal/diagnostics"
	lcierrors "github.com/go-l10n/keyforge/internal/errors"
)

// WhitespacePolicy names how extraction normalizes whitespace in extracted
// text per spec.md §4.5.3.
type WhitespacePolicy string

const (
	WhitespacePreserve     WhitespacePolicy = "preserve"
	WhitespaceTrim         WhitespacePolicy = "trim"
	WhitespaceCollapse     WhitespacePolicy = "collapse"
	WhitespaceTrimCollapse WhitespacePolicy = "trim-collapse"
)

// ElementRule is one entry of the `localize` map: which target the
// element's own text/html content binds to (if any) and which attributes
// are eligible for their own binding.
type ElementRule struct {
	Content    string // "text", "html", or "" (content not localizable)
	Attributes []string
}

// ExternalLocaleRule names a glob of externally-supplied, read-only locale
// tree files that should be merged under locale at compile time.
type ExternalLocaleRule struct {
	Locale string
	Glob   string
}

// Config is keyforge's full resolved configuration, as loaded from one of
// the four recognized config file formats (spec.md §6).
type Config struct {
	Src             string
	TranslationData string
	Output          string // path template containing a "[locale]" placeholder
	Prefix          string
	SourceLocale    string
	Locales         []string // target locales; does not include SourceLocale

	Ignore     map[string]bool
	Localize   map[string]ElementRule
	Whitespace map[string]WhitespacePolicy

	Diagnostics diagnostics.Policy

	ExternalLocales []ExternalLocaleRule
	DedupeTail      string // see SUPPLEMENTED FEATURES: deduplicateModuleFilenames

	ConfigDir   string // directory the config file lives in; base for relative paths
	Development bool   // --dev
}

// AllLocales returns every configured locale including the source locale,
// in the order Compile (internal/translationdb) expects them.
func (c *Config) AllLocales() []string {
	out := make([]string, 0, len(c.Locales)+1)
	out = append(out, c.SourceLocale)
	out = append(out, c.Locales...)
	return out
}

// ResolvePath joins p onto ConfigDir when p is relative, so the Src,
// TranslationData, Output, and ExternalLocales path fields (stored exactly
// as the config file wrote them) can be resolved into absolute paths the
// rest of the pipeline operates on.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigDir, p)
}

// Load reads and parses the config file at path, applies defaults, and
// validates the result. Supported extensions: .json, .js, .mjs, .cjs.
func Load(path string) (*Config, error) {
	raw, err := rawLoad(path)
	if err != nil {
		return nil, err
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, lcierrors.NewConfigError("", path, err)
	}
	cfg.ConfigDir = filepath.Dir(path)

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func rawLoad(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, lcierrors.NewFileError("read", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, lcierrors.NewConfigError("", path, fmt.Errorf("invalid JSON: %w", err))
		}
		return raw, nil
	case ".js", ".mjs", ".cjs":
		raw, err := parseJSConfig(data)
		if err != nil {
			return nil, lcierrors.NewConfigError("", path, err)
		}
		return raw, nil
	default:
		return nil, lcierrors.NewConfigError("", path, fmt.Errorf("unrecognized config extension %q", filepath.Ext(path)))
	}
}

func fromRaw(raw map[string]any) (*Config, error) {
	cfg := &Config{
		Ignore:     map[string]bool{},
		Localize:   map[string]ElementRule{},
		Whitespace: map[string]WhitespacePolicy{},
	}

	cfg.Src, _ = raw["src"].(string)
	cfg.TranslationData, _ = raw["translationData"].(string)
	cfg.Output, _ = raw["output"].(string)
	cfg.Prefix, _ = raw["prefix"].(string)
	cfg.SourceLocale, _ = raw["sourceLocale"].(string)

	cfg.Locales = stringSlice(raw["locales"])

	for _, tag := range stringSlice(raw["ignore"]) {
		cfg.Ignore[tag] = true
	}

	if lm, ok := raw["localize"].(map[string]any); ok {
		for tag, v := range lm {
			rule := ElementRule{}
			if m, ok := v.(map[string]any); ok {
				rule.Content, _ = m["content"].(string)
				rule.Attributes = stringSlice(m["attributes"])
			}
			cfg.Localize[tag] = rule
		}
	}

	if wm, ok := raw["whitespace"].(map[string]any); ok {
		for tag, v := range wm {
			if s, ok := v.(string); ok {
				cfg.Whitespace[tag] = WhitespacePolicy(s)
			}
		}
	}

	cfg.Diagnostics = diagnostics.Policy{ByKind: map[diagnostics.Kind]diagnostics.Handling{}}
	if dm, ok := raw["diagnostics"].(map[string]any); ok {
		for k, v := range dm {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if k == "all" {
				cfg.Diagnostics.All = diagnostics.Handling(s)
				continue
			}
			cfg.Diagnostics.ByKind[diagnostics.Kind(k)] = diagnostics.Handling(s)
		}
	}

	if em, ok := raw["externalLocales"].(map[string]any); ok {
		cfg.DedupeTail, _ = em["dedupeTail"].(string)
		if list, ok := em["locales"].([]any); ok {
			for _, item := range list {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				locale, _ := m["locale"].(string)
				glob, _ := m["glob"].(string)
				if locale == "" || glob == "" {
					continue
				}
				cfg.ExternalLocales = append(cfg.ExternalLocales, ExternalLocaleRule{Locale: locale, Glob: glob})
			}
		}
	}

	return cfg, nil
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
