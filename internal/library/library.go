package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Library provides filesystem operations on the local photos directory.
// The scanner and the reconciler both go through this type for file access,
// so traversal checks and path normalization live in one place.
type Library struct {
	dir string
}

// New creates a Library rooted at the given directory. The directory must
// be an absolute path (resolved at config load time).
func New(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the root photos directory.
func (l *Library) Dir() string {
	return l.dir
}

// ReadFile reads a file by relative path.
func (l *Library) ReadFile(relPath string) ([]byte, error) {
	absPath, err := l.resolve(relPath)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(absPath)
}

// WriteFile writes content to a file by relative path, creating parent
// directories as needed. If mtime is non-zero, the file's modification
// time is set to that value after writing, so downloaded photos carry
// their remote creation time instead of the transfer time.
func (l *Library) WriteFile(relPath string, data []byte, mtime time.Time) error {
	absPath, err := l.resolve(relPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", relPath, err)
	}

	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return err
	}

	if !mtime.IsZero() {
		if err := os.Chtimes(absPath, mtime, mtime); err != nil {
			return fmt.Errorf("setting mtime for %s: %w", relPath, err)
		}
	}

	return nil
}

// Stat returns file info for a relative path.
func (l *Library) Stat(relPath string) (os.FileInfo, error) {
	absPath, err := l.resolve(relPath)
	if err != nil {
		return nil, err
	}

	return os.Stat(absPath)
}

// Exists reports whether a relative path exists on disk.
func (l *Library) Exists(relPath string) bool {
	_, err := l.Stat(relPath)

	return err == nil
}

// UniquePath returns relPath if it is free on disk, otherwise a variant
// with "(1)", "(2)", ... appended before the extension, matching how the
// original files in the directory are disambiguated.
func (l *Library) UniquePath(relPath string) string {
	if !l.Exists(relPath) {
		return relPath
	}

	ext := filepath.Ext(relPath)
	base := strings.TrimSuffix(relPath, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s(%d)%s", base, i, ext)
		if !l.Exists(candidate) {
			return candidate
		}
	}
}

// resolve converts a relative path to an absolute path within the photos
// directory, rejecting path traversal attempts.
func (l *Library) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty path")
	}

	absPath := filepath.Join(l.dir, relPath)
	if !strings.HasPrefix(absPath, l.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal blocked: %q resolves outside photos dir", relPath)
	}

	return absPath, nil
}

// NormalizePath replaces non-breaking spaces with regular spaces, collapses
// repeated slashes, trims leading/trailing slashes, and applies Unicode NFC
// normalization. Called on every relative path entering the system: scanner
// output and download target paths derived from remote filenames.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\u00A0", " ")
	path = strings.ReplaceAll(path, "\u202F", " ")

	var b strings.Builder

	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}

			prevSlash = true
		} else {
			prevSlash = false
		}

		b.WriteRune(r)
	}

	path = strings.Trim(b.String(), "/")

	return norm.NFC.String(path)
}
