package vfs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// manifest is a package.json document that keeps its top-level keys in
// their original order so an edit only changes what it touches.
type manifest struct {
	keys   []string
	values map[string]json.RawMessage
}

func newManifest(name string) *manifest {
	m := &manifest{values: map[string]json.RawMessage{}}
	m.set("name", mustMarshal(name))
	m.set("version", json.RawMessage(`"1.0.0"`))
	m.set("dependencies", json.RawMessage(`{}`))
	return m
}

func parseManifest(content string) (*manifest, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedManifest)
	}

	m := &manifest{values: map[string]json.RawMessage{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedManifest, key, err)
		}
		m.set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after top-level object", ErrMalformedManifest)
	}
	return m, nil
}

func (m *manifest) set(key string, raw json.RawMessage) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = raw
}

// dependencies decodes the dependencies object. A missing section is empty.
func (m *manifest) dependencies() (map[string]string, error) {
	deps := map[string]string{}
	raw, ok := m.values["dependencies"]
	if !ok || string(raw) == "null" {
		return deps, nil
	}
	if err := json.Unmarshal(raw, &deps); err != nil {
		return nil, fmt.Errorf("%w: dependencies: %v", ErrMalformedManifest, err)
	}
	return deps, nil
}

func (m *manifest) setDependency(name, version string) error {
	deps, err := m.dependencies()
	if err != nil {
		return err
	}
	deps[name] = version
	m.set("dependencies", mustMarshal(deps))
	return nil
}

// encode writes the manifest with two-space indentation and a trailing
// newline, the layout npm itself produces.
func (m *manifest) encode() string {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range m.keys {
		buf.WriteString("  ")
		buf.Write(mustMarshal(k))
		buf.WriteString(": ")
		var val bytes.Buffer
		if err := json.Indent(&val, m.values[k], "  ", "  "); err != nil {
			val.Reset()
			val.Write(m.values[k])
		}
		buf.Write(val.Bytes())
		if i < len(m.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.String()
}

// mustMarshal encodes v without HTML escaping so scoped names and version
// ranges like ">=1 <2" survive unchanged.
func mustMarshal(v any) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		panic(fmt.Sprintf("vfs: marshal %T: %v", v, err))
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// dependencyNames returns the sorted dependency names of a manifest body, or
// nil when it cannot be parsed.
func dependencyNames(content string) []string {
	m, err := parseManifest(content)
	if err != nil {
		return nil
	}
	deps, err := m.dependencies()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(deps))
	for n := range deps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func packagesFrom(deps map[string]string) []Package {
	pkgs := make([]Package, 0, len(deps))
	for n, v := range deps {
		pkgs = append(pkgs, Package{Name: n, Version: v})
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs
}
