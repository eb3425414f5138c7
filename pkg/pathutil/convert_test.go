package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestToRelative(t *testing.T) {
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative path",
			absPath:  "/home/user/project/src/view.html",
			rootDir:  "/home/user/project",
			expected: "src/view.html",
		},
		{
			name:     "nested relative path",
			absPath:  "/home/user/project/locales/de/app.json",
			rootDir:  "/home/user/project",
			expected: "locales/de/app.json",
		},
		{
			name:     "root level file",
			absPath:  "/home/user/project/i18n.json",
			rootDir:  "/home/user/project",
			expected: "i18n.json",
		},
		{
			name:     "same directory",
			absPath:  "/home/user/project",
			rootDir:  "/home/user/project",
			expected: ".",
		},
		{
			name:     "already relative path",
			absPath:  "src/view.html",
			rootDir:  "/home/user/project",
			expected: "src/view.html",
		},
		{
			name:     "path outside root - fallback to absolute",
			absPath:  "/other/location/file.html",
			rootDir:  "/home/user/project",
			expected: "/other/location/file.html",
		},
		{
			name:     "empty root directory",
			absPath:  "/home/user/project/file.html",
			rootDir:  "",
			expected: "/home/user/project/file.html",
		},
		{
			name:     "empty absolute path",
			absPath:  "",
			rootDir:  "/home/user/project",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToRelative(tt.absPath, tt.rootDir)

			if runtime.GOOS == "windows" {
				result = filepath.ToSlash(result)
				expected := filepath.ToSlash(tt.expected)
				if result != expected {
					t.Errorf("ToRelative() = %v, want %v", result, expected)
				}
			} else {
				if result != tt.expected {
					t.Errorf("ToRelative() = %v, want %v", result, tt.expected)
				}
			}
		})
	}
}
