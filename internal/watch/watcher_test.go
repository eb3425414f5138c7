package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/go-l10n/keyforge/internal/config"
	"github.com/go-l10n/keyforge/internal/diagnostics"
	"github.com/go-l10n/keyforge/internal/project"
)

func testConfig(srcDir, dataPath string) *config.Config {
	return &config.Config{
		Src:             srcDir,
		TranslationData: dataPath,
		SourceLocale:    "en",
		Locales:         []string{"fr"},
		Development:     true,
		Localize: map[string]config.ElementRule{
			"div": {Content: "text"},
		},
		Whitespace:  map[string]config.WhitespacePolicy{},
		Diagnostics: diagnostics.Policy{ByKind: map[diagnostics.Kind]diagnostics.Handling{}},
	}
}

func newTestRunner(t *testing.T, srcDir, dataPath string) *project.Runner {
	t.Helper()
	bus := diagnostics.New()
	runner, err := project.NewRunner(testConfig(srcDir, dataPath), bus)
	require.NoError(t, err)
	require.NoError(t, runner.LoadAll())
	return runner
}

// TestWatcherStopReleasesGoroutines asserts that Stop() leaves no goroutine
// behind when no file event has arrived: the event-processing goroutine
// exits, and no debounce timer is ever armed, mirroring the teacher's
// leak_test.go use of goleak around Close()/Stop() lifecycles.
func TestWatcherStopReleasesGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	srcDir := t.TempDir()
	dataPath := filepath.Join(t.TempDir(), "translations.json")

	runner := newTestRunner(t, srcDir, dataPath)
	require.NoError(t, runner.Run())

	w, err := New(runner, srcDir, dataPath, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Stop())
}

// TestWatcherReconcilesOnWrite exercises a full debounce -> flush ->
// Runner.Run cycle: writing a new template under srcDir should be picked up,
// justified, and reflected in the translation-data file on disk.
func TestWatcherReconcilesOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	srcDir := t.TempDir()
	dataPath := filepath.Join(t.TempDir(), "translations.json")

	runner := newTestRunner(t, srcDir, dataPath)
	require.NoError(t, runner.Run())

	w, err := New(runner, srcDir, dataPath, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	viewPath := filepath.Join(srcDir, "view.html")
	require.NoError(t, os.WriteFile(viewPath, []byte(`<div>hello</div>`), 0o644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(dataPath)
		if err != nil {
			return false
		}
		return len(data) > 0
	}, time.Second, 10*time.Millisecond, "expected translation data to be written after debounced reconciliation")
}
