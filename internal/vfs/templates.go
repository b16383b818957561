package vfs

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// DefaultTemplate is used when CreateProject is given an empty template name.
const DefaultTemplate = "blank"

//go:embed templates.toml
var embeddedTemplates []byte

// Template is a named initial file set.
type Template struct {
	Name        string            `toml:"-"`
	Description string            `toml:"description"`
	Files       map[string]string `toml:"files"`
}

type templateFile struct {
	Templates map[string]Template `toml:"templates"`
}

// ParseTemplates decodes a TOML template document. Every file path is
// normalized; a template with an invalid path is rejected.
func ParseTemplates(data []byte) (map[string]Template, error) {
	var tf templateFile
	md, err := toml.Decode(string(data), &tf)
	if err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown template keys: %v", undecoded)
	}

	out := make(map[string]Template, len(tf.Templates))
	for name, t := range tf.Templates {
		files := make(map[string]string, len(t.Files))
		for p, content := range t.Files {
			np, err := NormalizePath(p)
			if err != nil {
				return nil, fmt.Errorf("template %s: %q: %w", name, p, err)
			}
			files[np] = content
		}
		t.Name = name
		t.Files = files
		out[name] = t
	}
	return out, nil
}

var builtinTemplates = mustParseTemplates(embeddedTemplates)

func mustParseTemplates(data []byte) map[string]Template {
	t, err := ParseTemplates(data)
	if err != nil {
		panic(fmt.Sprintf("vfs: embedded templates: %v", err))
	}
	return t
}

// BuiltinTemplates returns the names of the embedded templates, sorted.
func BuiltinTemplates() []string {
	names := make([]string, 0, len(builtinTemplates))
	for n := range builtinTemplates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuiltinTemplate returns a copy of the named embedded template.
func BuiltinTemplate(name string) (Template, bool) {
	t, ok := builtinTemplates[name]
	if !ok {
		return Template{}, false
	}
	files := make(map[string]string, len(t.Files))
	for k, v := range t.Files {
		files[k] = v
	}
	t.Files = files
	return t, true
}
