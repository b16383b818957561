package vfs

import (
	"errors"
	"path"
	"sort"
	"strings"
	"time"
)

// Common errors.
var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrUnknownTemplate   = errors.New("unknown template")
	ErrEmptyProjectName  = errors.New("project name cannot be empty")
	ErrInvalidPath       = errors.New("invalid file path")
	ErrMalformedManifest = errors.New("malformed package manifest")
	ErrNotInitialized    = errors.New("file system not initialized")
	ErrEmptyPackageName  = errors.New("package name cannot be empty")
)

// ManifestPath is the project-relative path of the dependency manifest.
const ManifestPath = "package.json"

// Project is one coding workspace: a name, the template it started from and
// its file table.
type Project struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Template     string                 `json:"template"`
	Files        map[string]*FileRecord `json:"files"`
	Dependencies []string               `json:"dependencies"`
	Owner        string                 `json:"owner,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	LastModified time.Time              `json:"last_modified"`
}

// FileRecord holds the full text of one file.
type FileRecord struct {
	Content      string    `json:"content"`
	Language     string    `json:"language"`
	LastModified time.Time `json:"last_modified"`
}

// Package is one manifest dependency.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Files = make(map[string]*FileRecord, len(p.Files))
	for k, f := range p.Files {
		fc := *f
		c.Files[k] = &fc
	}
	if p.Dependencies != nil {
		c.Dependencies = make([]string, len(p.Dependencies))
		copy(c.Dependencies, p.Dependencies)
	}
	return &c
}

// Paths returns the project's file paths, sorted.
func (p *Project) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for k := range p.Files {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// NormalizePath converts a user-supplied path to the table's convention:
// "/"-separated, no leading "/" or "./", no empty or "." segments. ".."
// segments are resolved and can never climb above the project root.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "", ErrInvalidPath
	}
	return clean, nil
}

var languages = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".css":  "css",
	".scss": "scss",
	".html": "html",
	".htm":  "html",
	".json": "json",
	".md":   "markdown",
	".py":   "python",
	".go":   "go",
	".sh":   "shell",
	".yml":  "yaml",
	".yaml": "yaml",
	".txt":  "plaintext",
}

// LanguageFor derives a file's language from its extension.
func LanguageFor(p string) string {
	if lang, ok := languages[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return "plaintext"
}

// placeholder is the body CreateFile writes for a new path.
func placeholder(p string) string {
	switch LanguageFor(p) {
	case "javascript", "typescript", "go":
		return "// " + p + "\n"
	case "css", "scss":
		return "/* " + p + " */\n"
	case "html":
		return "<!-- " + p + " -->\n"
	case "json":
		return "{}\n"
	case "markdown", "python", "shell", "yaml":
		return "# " + p + "\n"
	default:
		return ""
	}
}
