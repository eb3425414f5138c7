package config

import (
	"fmt"

	lcierrors "github.com/go-l10n/keyforge/internal/errors"
)

// Validator validates a loaded Config and fills in smart defaults.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg section by section and applies
// defaults for anything left unset. Returns a *lcierrors.ConfigError on the
// first failure.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateSources(cfg); err != nil {
		return lcierrors.NewConfigError("src", cfg.Src, err)
	}

	if err := v.validateLocales(cfg); err != nil {
		return lcierrors.NewConfigError("locales", "", err)
	}

	if err := v.validateLocalize(cfg); err != nil {
		return lcierrors.NewConfigError("localize", "", err)
	}

	if err := v.validateWhitespace(cfg); err != nil {
		return lcierrors.NewConfigError("whitespace", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateSources(cfg *Config) error {
	if cfg.Src == "" {
		return fmt.Errorf("src cannot be empty")
	}
	if cfg.TranslationData == "" {
		return fmt.Errorf("translationData cannot be empty")
	}
	if cfg.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

func (v *Validator) validateLocales(cfg *Config) error {
	if cfg.SourceLocale == "" {
		return fmt.Errorf("sourceLocale cannot be empty")
	}
	seen := map[string]bool{cfg.SourceLocale: true}
	for _, locale := range cfg.Locales {
		if locale == "" {
			return fmt.Errorf("locales entries cannot be empty")
		}
		if seen[locale] {
			return fmt.Errorf("locale %q listed more than once", locale)
		}
		seen[locale] = true
	}
	return nil
}

func (v *Validator) validateLocalize(cfg *Config) error {
	for tag, rule := range cfg.Localize {
		switch rule.Content {
		case "", "text", "html":
		default:
			return fmt.Errorf("localize[%q].content must be \"text\" or \"html\", got %q", tag, rule.Content)
		}
	}
	return nil
}

func (v *Validator) validateWhitespace(cfg *Config) error {
	for tag, policy := range cfg.Whitespace {
		switch policy {
		case WhitespacePreserve, WhitespaceTrim, WhitespaceCollapse, WhitespaceTrimCollapse:
		default:
			return fmt.Errorf("whitespace[%q] must be one of preserve/trim/collapse/trim-collapse, got %q", tag, policy)
		}
	}
	return nil
}

// setSmartDefaults fills in values a project typically omits: the implicit
// catch-all content/whitespace rules and the module-dedupe tail directory.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if _, ok := cfg.Localize["*"]; !ok {
		cfg.Localize["*"] = ElementRule{Content: "text"}
	}
	if _, ok := cfg.Whitespace["*"]; !ok {
		cfg.Whitespace["*"] = WhitespaceTrimCollapse
	}
	if cfg.DedupeTail == "" {
		cfg.DedupeTail = "node_modules"
	}
	if cfg.Diagnostics.All == "" {
		cfg.Diagnostics.All = "warn"
	}
}

// ValidateConfig is a convenience wrapper for quick validation without
// constructing a Validator explicitly.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
