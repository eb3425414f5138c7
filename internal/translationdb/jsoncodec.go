package translationdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// wire shapes. v1 has no "obsolete" section; v2 adds it. Both versions share
// the same per-file/per-key entry shape.

type wireSet struct {
	Source       wireContent            `json:"source"`
	Translations map[string]wireContent `json:"translations,omitempty"`
}

type wireContent struct {
	Content        string   `json:"content"`
	LastModified   string   `json:"lastModified"`
	IgnoreSpelling []string `json:"ignoreSpelling,omitempty"`
}

type wireObsolete struct {
	Content      string            `json:"content"`
	Translations map[string]string `json:"translations,omitempty"`
}

// Parse reads a translation-data JSON document (v1 or v2) into a DB. Every
// filename key is resolved relative to basePath into an absolute path; an
// absolute path in the document itself is rejected as a structural error.
// Version is detected by `version === 2` (spec §4.4/S7): a v2 document's
// files live under a "files" envelope alongside an "obsolete" ledger; a v1
// document has no such envelope — the root object itself is the file map.
// Loading a v1 document marks the resulting DB Modified, since the next
// save upgrades the format.
func Parse(raw []byte, basePath string) (*DB, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return New(), nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("translationdb: invalid translation-data document: %w", err)
	}

	isV2 := false
	if v, ok := root["version"]; ok {
		var version int
		if err := json.Unmarshal(v, &version); err == nil && version == 2 {
			isV2 = true
		}
	}

	filesRaw := json.RawMessage(raw)
	if isV2 {
		filesRaw = root["files"]
	}

	var files map[string]map[string]wireSet
	if len(bytes.TrimSpace(filesRaw)) > 0 {
		if err := json.Unmarshal(filesRaw, &files); err != nil {
			return nil, fmt.Errorf("translationdb: invalid translation-data document: %w", err)
		}
	}

	var obsolete []wireObsolete
	if isV2 {
		if o, ok := root["obsolete"]; ok {
			if err := json.Unmarshal(o, &obsolete); err != nil {
				return nil, fmt.Errorf("translationdb: invalid translation-data document: %w", err)
			}
		}
	}

	db := New()
	for rel, keys := range files {
		if filepath.IsAbs(rel) {
			return nil, fmt.Errorf("translationdb: translation-data document names absolute file path %q", rel)
		}
		filename := filepath.Join(basePath, rel)
		record := newFileRecord()
		for key, ws := range keys {
			set := &Set{}
			lm, err := parseTime(ws.Source.LastModified)
			if err != nil {
				return nil, fmt.Errorf("translationdb: file %q key %q: %w", rel, key, err)
			}
			set.Source = Entry{
				Content:        ws.Source.Content,
				LastModified:   lm,
				IgnoreSpelling: ws.Source.IgnoreSpelling,
			}
			if len(ws.Translations) > 0 {
				set.Translations = make(map[string]Entry, len(ws.Translations))
				for locale, wc := range ws.Translations {
					tlm, err := parseTime(wc.LastModified)
					if err != nil {
						return nil, fmt.Errorf("translationdb: file %q key %q locale %q: %w", rel, key, locale, err)
					}
					set.Translations[locale] = Entry{
						Content:        wc.Content,
						LastModified:   tlm,
						IgnoreSpelling: wc.IgnoreSpelling,
					}
				}
			}
			record.Content[key] = set
		}
		db.Files[filename] = record
	}

	for _, wo := range obsolete {
		db.Obsolete = append(db.Obsolete, Obsolete{
			Content:      wo.Content,
			Translations: wo.Translations,
		})
	}

	if !isV2 {
		db.Modified = true
	}
	return db, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing lastModified timestamp")
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 lastModified %q", s)
}

// Format renders the DB as v2 JSON with deterministic formatting: tab
// indentation, LF line endings, no trailing newline, keys sorted
// lexicographically at every level, and a fixed root key order
// (version, files, obsolete). Filenames are rendered relative to basePath
// using forward slashes regardless of host OS.
func (db *DB) Format(basePath string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n\t\"version\": 2,\n\t\"files\": {")

	filenames := make([]string, 0, len(db.Files))
	for f := range db.Files {
		filenames = append(filenames, f)
	}
	sort.Strings(filenames)

	wroteFile := false
	for _, filename := range filenames {
		record := db.Files[filename]
		if len(record.Content) == 0 {
			continue
		}
		rel, err := filepath.Rel(basePath, filename)
		if err != nil {
			rel = filename
		}
		rel = filepath.ToSlash(rel)

		if wroteFile {
			buf.WriteString(",")
		}
		wroteFile = true
		buf.WriteString("\n\t\t")
		writeJSONString(&buf, rel)
		buf.WriteString(": {")

		keys := make([]string, 0, len(record.Content))
		for k := range record.Content {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for ki, key := range keys {
			set := record.Content[key]
			if ki > 0 {
				buf.WriteString(",")
			}
			buf.WriteString("\n\t\t\t")
			writeJSONString(&buf, key)
			buf.WriteString(": {\n\t\t\t\t\"source\": ")
			writeContent(&buf, set.Source, 4)

			if len(set.Translations) > 0 {
				buf.WriteString(",\n\t\t\t\t\"translations\": {")
				locales := make([]string, 0, len(set.Translations))
				for l := range set.Translations {
					locales = append(locales, l)
				}
				sort.Strings(locales)
				for li, locale := range locales {
					if li > 0 {
						buf.WriteString(",")
					}
					buf.WriteString("\n\t\t\t\t\t")
					writeJSONString(&buf, locale)
					buf.WriteString(": ")
					writeContent(&buf, set.Translations[locale], 5)
				}
				buf.WriteString("\n\t\t\t\t}")
			}
			buf.WriteString("\n\t\t\t}")
		}
		buf.WriteString("\n\t\t}")
	}
	buf.WriteString("\n\t},\n\t\"obsolete\": [")

	dedup := dedupeObsolete(db.Obsolete)
	for i, o := range dedup {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n\t\t{\n\t\t\t\"content\": ")
		writeJSONString(&buf, o.Content)
		if len(o.Translations) > 0 {
			buf.WriteString(",\n\t\t\t\"translations\": {")
			locales := make([]string, 0, len(o.Translations))
			for l := range o.Translations {
				locales = append(locales, l)
			}
			sort.Strings(locales)
			for li, locale := range locales {
				if li > 0 {
					buf.WriteString(",")
				}
				buf.WriteString("\n\t\t\t\t")
				writeJSONString(&buf, locale)
				buf.WriteString(": ")
				writeJSONString(&buf, o.Translations[locale])
			}
			buf.WriteString("\n\t\t\t}")
		}
		buf.WriteString("\n\t\t}")
	}
	buf.WriteString("\n\t]\n}")

	return buf.Bytes(), nil
}

func writeContent(buf *bytes.Buffer, e Entry, tabs int) {
	indent := strings.Repeat("\t", tabs)
	closeIndent := strings.Repeat("\t", tabs-1)
	buf.WriteString("{\n")
	buf.WriteString(indent)
	buf.WriteString("\"content\": ")
	writeJSONString(buf, e.Content)
	buf.WriteString(",\n")
	buf.WriteString(indent)
	buf.WriteString("\"lastModified\": ")
	writeJSONString(buf, e.LastModified.UTC().Format(timeLayout))
	if len(e.IgnoreSpelling) > 0 {
		buf.WriteString(",\n")
		buf.WriteString(indent)
		buf.WriteString("\"ignoreSpelling\": [")
		for i, w := range e.IgnoreSpelling {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeJSONString(buf, w)
		}
		buf.WriteString("]")
	}
	buf.WriteString("\n")
	buf.WriteString(closeIndent)
	buf.WriteString("}")
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// dedupeObsolete collapses exact content+translations duplicates, keeping
// first-seen (processing/append) order — the ledger has no key to sort by,
// and spec.md §3/S8 fix its order to processing order, not a sorted one.
func dedupeObsolete(in []Obsolete) []Obsolete {
	seen := make(map[string]bool, len(in))
	out := make([]Obsolete, 0, len(in))
	for _, o := range in {
		key := obsoleteKey(o)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}

func obsoleteKey(o Obsolete) string {
	locales := make([]string, 0, len(o.Translations))
	for l := range o.Translations {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	var b strings.Builder
	b.WriteString(o.Content)
	for _, l := range locales {
		b.WriteString("\x00")
		b.WriteString(l)
		b.WriteString("\x00")
		b.WriteString(o.Translations[l])
	}
	return b.String()
}
