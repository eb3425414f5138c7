package translationdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyDocument(t *testing.T) {
	db, err := Parse(nil, "/proj")
	require.NoError(t, err)
	assert.Empty(t, db.Files)
	assert.False(t, db.Modified)
}

func TestParseV2RoundTrip(t *testing.T) {
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db := New()
	db.UpdateKeys("/proj/a.html", map[string]string{"app.view.t0": "Hello"})
	db.Files["/proj/a.html"].Content["app.view.t0"].Translations = map[string]Entry{
		"de": {Content: "Hallo", LastModified: time.Now()},
	}

	out, err := db.Format("/proj")
	require.NoError(t, err)

	reparsed, err := Parse(out, "/proj")
	require.NoError(t, err)
	assert.False(t, reparsed.Modified)

	set := reparsed.Files["/proj/a.html"].Content["app.view.t0"]
	require.NotNil(t, set)
	assert.Equal(t, "Hello", set.Source.Content)
	assert.Equal(t, "Hallo", set.Translations["de"].Content)
}

func TestFormatIsDeterministic(t *testing.T) {
	withFixedNow(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	db := New()
	db.UpdateKeys("/proj/b.html", map[string]string{"b.view.t1": "Z"})
	db.UpdateKeys("/proj/a.html", map[string]string{"a.view.t0": "A"})

	out1, err := db.Format("/proj")
	require.NoError(t, err)
	out2, err := db.Format("/proj")
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.NotContains(t, string(out1), "\r")
}

func TestParseV1MarksModified(t *testing.T) {
	// Canonical v1: the document root IS the file map directly, with no
	// "version"/"files"/"obsolete" envelope (spec §4.4, S7).
	raw := []byte(`{
		"a.html": {
			"app.view.t0": {
				"source": {"content": "Hello", "lastModified": "2026-01-01T00:00:00.000Z"}
			}
		}
	}`)
	db, err := Parse(raw, "/proj")
	require.NoError(t, err)
	assert.True(t, db.Modified)
	assert.Equal(t, "Hello", db.Files["/proj/a.html"].Content["app.view.t0"].Source.Content)
}

func TestParseRejectsAbsoluteFilename(t *testing.T) {
	raw := []byte(`{"version": 2, "files": {"/etc/a.html": {}}}`)
	_, err := Parse(raw, "/proj")
	assert.Error(t, err)
}

func TestParseRejectsBadTimestamp(t *testing.T) {
	raw := []byte(`{
		"version": 2,
		"files": {
			"a.html": {
				"app.view.t0": {
					"source": {"content": "Hello", "lastModified": "not-a-date"}
				}
			}
		}
	}`)
	_, err := Parse(raw, "/proj")
	assert.Error(t, err)
}

func TestFormatDedupesObsoleteEntries(t *testing.T) {
	db := New()
	db.Obsolete = []Obsolete{
		{Content: "Hello", Translations: map[string]string{"de": "Hallo"}},
		{Content: "Hello", Translations: map[string]string{"de": "Hallo"}},
	}
	out, err := db.Format("/proj")
	require.NoError(t, err)

	reparsed, err := Parse(out, "/proj")
	require.NoError(t, err)
	assert.Len(t, reparsed.Obsolete, 1)
}
