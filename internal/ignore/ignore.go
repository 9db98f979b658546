// Package ignore decides which working-tree paths are never staged, using
// gitignore pattern syntax.
package ignore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher evaluates paths against a fixed pattern list.
type Matcher struct {
	patterns []string
	m        gitignore.Matcher
}

// New builds a Matcher from pattern lines. Blank lines and # comments are skipped.
func New(lines []string) *Matcher {
	var ps []gitignore.Pattern
	var kept []string
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
		ps = append(ps, gitignore.ParsePattern(line, nil))
	}
	return &Matcher{patterns: kept, m: gitignore.NewMatcher(ps)}
}

// Load reads patterns from path; a missing file yields a Matcher that only
// knows the extra patterns.
func Load(path string, extra ...string) (*Matcher, error) {
	lines := append([]string(nil), extra...)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return New(lines), nil
}

// IsIgnored reports whether the slash-separated relative path is excluded.
// A path is excluded when it or any of its parent directories matches.
func (m *Matcher) IsIgnored(path string) bool {
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return false
	}
	return m.m.Match(strings.Split(path, "/"), false)
}

// Patterns returns the effective pattern lines.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}
