package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/go-l10n/keyforge/internal/config"
	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/go-l10n/keyforge/internal/logging"
	"github.com/go-l10n/keyforge/internal/project"
	"github.com/go-l10n/keyforge/internal/version"
	"github.com/go-l10n/keyforge/internal/watch"
	"github.com/go-l10n/keyforge/pkg/pathutil"
)

const defaultConfigPath = "keyforge.config.json"

func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", c.String("config"), err)
	}
	if c.Bool("dev") {
		cfg.Development = true
	}
	return cfg, nil
}

// newPrintingSubscriber wires a diagnostics.PrintingSubscriber whose
// reported locations are relativized to cfg.ConfigDir before printing:
// internal packages always operate on absolute paths (see pkg/pathutil's
// doc comment), but a CLI user reading warnings wants paths relative to
// the project they ran keyforge from.
func newPrintingSubscriber(cfg *config.Config) (*diagnostics.PrintingSubscriber, diagnostics.Subscriber) {
	printer := diagnostics.NewPrintingSubscriber(cfg.Diagnostics, os.Stderr)
	sink := printer.Subscriber()
	return printer, func(d diagnostics.Diagnostic) {
		if d.Location != nil {
			rel := *d.Location
			rel.Filename = pathutil.ToRelative(d.Location.Filename, cfg.ConfigDir)
			d.Location = &rel
		}
		sink(d)
	}
}

// run builds a Runner, loads every source, and executes one reconciliation
// pass, returning whether any diagnostic resolved to HandlingError.
func run(cfg *config.Config) (hadError bool, err error) {
	bus := diagnostics.New()
	printer, sink := newPrintingSubscriber(cfg)
	bus.Subscribe(sink)

	runner, err := project.NewRunner(cfg, bus)
	if err != nil {
		return false, err
	}
	if err := runner.LoadAll(); err != nil {
		return false, err
	}
	if err := runner.Run(); err != nil {
		return false, err
	}
	return printer.HadError(), nil
}

func watchAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	logging.Verbose = c.Bool("verbose") || cfg.Development

	bus := diagnostics.New()
	_, sink := newPrintingSubscriber(cfg)
	bus.Subscribe(sink)

	runner, err := project.NewRunner(cfg, bus)
	if err != nil {
		return err
	}
	if err := runner.LoadAll(); err != nil {
		return err
	}
	if err := runner.Run(); err != nil {
		return err
	}

	w, err := watch.New(runner, cfg.ResolvePath(cfg.Src), cfg.ResolvePath(cfg.TranslationData), 300*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	logging.Infof("watching %s for changes", cfg.Src)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Infof("shutting down watcher")
	return w.Stop()
}

func compileAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	logging.Verbose = c.Bool("verbose")

	hadError, err := run(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if hadError && !cfg.Development {
		return cli.Exit("", 1)
	}
	return nil
}

// lintAction runs a diagnostics-only pass: sources are justified in memory
// and the translation DB is reconciled, but nothing is written back —
// every would-be change is reported as a diagnostic instead. Exit code
// reflects whether any diagnostic resolved to an error, regardless of
// --dev.
func lintAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	logging.Verbose = c.Bool("verbose")

	bus := diagnostics.New()
	printer, sink := newPrintingSubscriber(cfg)
	bus.Subscribe(sink)

	runner, err := project.NewRunner(cfg, bus)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := runner.LoadAll(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := runner.Lint(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if printer.HadError() {
		return cli.Exit("", 1)
	}
	return nil
}

// newApp builds the keyforge CLI app. Split out from main so tests can
// drive it with app.Run(args) without forking a subprocess.
func newApp() *cli.App {
	return &cli.App{
		Name:                   "keyforge",
		Usage:                  "extract, justify, and compile localization keys for t-attributed templates",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:    "dev",
				Aliases: []string{"d"},
				Usage:   "development mode: justify sources and write changes back to disk",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "watch cfg.src, the translation-data file, and external-locale files for changes",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "print operational log messages",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "compile",
				Usage:  "run one reconciliation pass without entering watch mode, for CI use",
				Action: compileAction,
			},
			{
				Name:   "lint",
				Usage:  "run a diagnostics-only pass with no writes; exit code reflects diagnostic severity",
				Action: lintAction,
			},
		},
		Action: func(c *cli.Context) error {
			watch := c.Bool("dev")
			if c.IsSet("watch") {
				watch = c.Bool("watch")
			}
			if watch {
				return watchAction(c)
			}
			return compileAction(c)
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
