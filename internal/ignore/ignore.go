// Package ignore reads gitignore-style files to decide which host files a
// project import skips.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultIgnoreFiles are read from the import root, in order.
var DefaultIgnoreFiles = []string{".gitignore", ".codepadignore"}

// DefaultFallbackPatterns apply when the root has no ignore file.
var DefaultFallbackPatterns = []string{"dist/", "build/", "coverage/", ".DS_Store", "*.log"}

// alwaysIgnored are never imported, whatever the ignore files say.
var alwaysIgnored = []string{".git/", "node_modules/"}

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are used when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates a new ignore file parser with the given configuration.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// DefaultParser reads DefaultIgnoreFiles and falls back to
// DefaultFallbackPatterns.
func DefaultParser() *Parser {
	return NewParser(DefaultIgnoreFiles, DefaultFallbackPatterns)
}

// ParseProject reads every ignore file in projectRoot and returns a Matcher
// over their combined patterns, or over the fallback patterns when none
// exist.
func (p *Parser) ParseProject(projectRoot string) (*Matcher, error) {
	var patterns []string
	foundAny := false

	for _, ignoreFile := range p.IgnoreFiles {
		filePatterns, err := parseFile(filepath.Join(projectRoot, ignoreFile))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
		foundAny = true
	}

	if !foundAny {
		patterns = p.FallbackPatterns
	}
	return NewMatcher(patterns), nil
}

func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine returns the pattern on a line, or "" for blanks and comments.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	return line
}

// Matcher answers whether a slash-separated relative path is ignored.
type Matcher struct {
	patterns []string
	matcher  gitignore.Matcher
}

// NewMatcher builds a Matcher from gitignore lines. Later patterns win, and
// "!" negations are honoured, except for .git and node_modules which are
// always ignored.
func NewMatcher(patterns []string) *Matcher {
	patterns = deduplicate(patterns)
	parsed := make([]gitignore.Pattern, 0, len(patterns)+len(alwaysIgnored))
	for _, p := range patterns {
		parsed = append(parsed, gitignore.ParsePattern(p, nil))
	}
	for _, p := range alwaysIgnored {
		parsed = append(parsed, gitignore.ParsePattern(p, nil))
	}
	return &Matcher{patterns: patterns, matcher: gitignore.NewMatcher(parsed)}
}

// Match reports whether rel, relative to the import root, is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	return m.matcher.Match(strings.Split(rel, "/"), isDir)
}

// Patterns returns the patterns read from the ignore files, deduplicated.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}
