// Package pathutil converts between absolute and relative paths.
//
// keyforge uses absolute paths internally (source filenames, translation-data
// paths, external-locale paths) for consistency and to avoid ambiguity, but
// diagnostics and CLI output render relative paths for readability.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or the path is already
// relative or lies outside rootDir.
//
// Examples:
//   - ToRelative("/home/user/project/src/view.html", "/home/user/project") → "src/view.html"
//   - ToRelative("/other/location/file.html", "/home/user/project") → "/other/location/file.html"
//   - ToRelative("src/view.html", "/home/user/project") → "src/view.html"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}
