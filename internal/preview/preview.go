// Package preview merges a project's files into one self-contained HTML
// document that renders the app in a browser.
//
// Scripts are rewritten into one classic script: module syntax is
// stripped, files are concatenated in path order and the entry file goes
// last so its mount call sees every other declaration. Styles are
// concatenated untouched. Synthesize is a pure function of the project's
// files.
package preview

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"text/template"

	"github.com/fyrsmithlabs/codepad/internal/metrics"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// DefaultEntry is the file whose content is appended last.
const DefaultEntry = "src/App.js"

// Runtime script locations embedded in every document.
const (
	ReactURL    = "https://unpkg.com/react@18/umd/react.development.js"
	ReactDOMURL = "https://unpkg.com/react-dom@18/umd/react-dom.development.js"
	BabelURL    = "https://unpkg.com/@babel/standalone/babel.min.js"
)

var (
	// Babel runs with the react preset only, so TypeScript is left out.
	scriptExts = map[string]bool{".js": true, ".jsx": true, ".mjs": true}
	styleExts  = map[string]bool{".css": true}
)

//go:embed document.html.tmpl
var documentSource string

var document = template.Must(template.New("document").Parse(documentSource))

// ErrNilProject is returned when Synthesize is given no project.
var ErrNilProject = errors.New("preview: nil project")

// Synthesizer builds preview documents.
type Synthesizer struct {
	entry   string
	rewrite func(string) string
	metrics *metrics.Metrics
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithEntry sets the entry file path.
func WithEntry(p string) Option {
	return func(s *Synthesizer) {
		if np, err := vfs.NormalizePath(p); err == nil {
			s.entry = np
		}
	}
}

// WithRegexRewrite swaps the tokenizer for the line-oriented regex rewrite.
func WithRegexRewrite() Option {
	return func(s *Synthesizer) { s.rewrite = StripModuleSyntaxRegex }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{entry: DefaultEntry, rewrite: StripModuleSyntax}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entry returns the entry file path.
func (s *Synthesizer) Entry() string { return s.entry }

type documentData struct {
	Title       string
	Styles      string
	Script      string
	Entry       string
	ReactURL    string
	ReactDOMURL string
	BabelURL    string
}

// Synthesize returns the preview document for p.
func (s *Synthesizer) Synthesize(p *vfs.Project) (string, error) {
	if p == nil {
		return "", ErrNilProject
	}

	var scripts, styles strings.Builder
	var entry *vfs.FileRecord
	for _, fp := range p.Paths() {
		f := p.Files[fp]
		ext := strings.ToLower(path.Ext(fp))
		switch {
		case fp == s.entry:
			entry = f
		case scriptExts[ext]:
			writeChunk(&scripts, fp, s.rewrite(f.Content))
		case styleExts[ext]:
			fmt.Fprintf(&styles, "/* %s */\n%s\n", fp, f.Content)
		}
	}
	if entry != nil {
		writeChunk(&scripts, s.entry, s.rewrite(entry.Content))
	}

	var buf bytes.Buffer
	err := document.Execute(&buf, documentData{
		Title:       p.Name,
		Styles:      escapeClosing(styles.String(), "style"),
		Script:      escapeClosing(scripts.String(), "script"),
		Entry:       s.entry,
		ReactURL:    ReactURL,
		ReactDOMURL: ReactDOMURL,
		BabelURL:    BabelURL,
	})
	if err != nil {
		return "", fmt.Errorf("rendering preview: %w", err)
	}
	s.metrics.PreviewSynthesized(buf.Len())
	return buf.String(), nil
}

func writeChunk(b *strings.Builder, fp, code string) {
	fmt.Fprintf(b, "// ---- %s ----\n%s\n", fp, strings.TrimRight(code, "\n"))
}

var closingTags = map[string]*regexp.Regexp{
	"script": regexp.MustCompile(`(?i)</(script)`),
	"style":  regexp.MustCompile(`(?i)</(style)`),
}

// escapeClosing keeps user code from terminating the element it is
// embedded in.
func escapeClosing(code, tag string) string {
	return closingTags[tag].ReplaceAllString(code, `<\/$1`)
}
