package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-tree ignore file read from a chats directory.
const IgnoreFileName = ".lcbignore"

// defaultIgnorePatterns hide files the phone or desktop drops into backup trees.
var defaultIgnorePatterns = []string{IgnoreFileName, ".nomedia", ".DS_Store", "Thumbs.db", "desktop.ini"}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against trailing path components; false = basename only
	depth     int  // number of components a path pattern spans
}

// IgnoreMatcher checks file paths against a set of ignore patterns.
// Patterns without '/' match against the basename only. Patterns with '/'
// match against as many trailing components of the path as they have, so
// "thumbnails/*.tmp" hides temp files in every room's thumbnails folder.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.Trim(raw, "/")
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
			depth:     strings.Count(raw, "/") + 1,
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given path should be ignored.
func (m *IgnoreMatcher) Match(path string) bool {
	if len(m.patterns) == 0 || path == "" {
		return false
	}

	components := strings.Split(strings.Trim(filepath.ToSlash(path), "/"), "/")
	basename := components[len(components)-1]

	for _, p := range m.patterns {
		subject := basename
		if p.matchPath {
			if len(components) < p.depth {
				continue
			}
			subject = strings.Join(components[len(components)-p.depth:], "/")
		}
		matched, err := filepath.Match(p.pattern, subject)
		if err != nil {
			// Bad pattern: skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
