package preview

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codepad/internal/metrics"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

func projectFrom(name string, files map[string]string) *vfs.Project {
	p := &vfs.Project{ID: "p1", Name: name, Files: map[string]*vfs.FileRecord{}}
	for fp, content := range files {
		p.Files[fp] = &vfs.FileRecord{Content: content, Language: vfs.LanguageFor(fp)}
	}
	return p
}

func reactProject(t *testing.T) *vfs.Project {
	t.Helper()
	tmpl, ok := vfs.BuiltinTemplate("react")
	require.True(t, ok)
	return projectFrom("Demo", tmpl.Files)
}

func TestSynthesize_ReactTemplate(t *testing.T) {
	doc, err := NewSynthesizer().Synthesize(reactProject(t))
	require.NoError(t, err)

	assert.Contains(t, doc, `<div id="root"></div>`)
	assert.Contains(t, doc, `<div id="error-display"`)
	assert.Contains(t, doc, "#error-display {\n      display: none;")
	assert.Contains(t, doc, ReactURL)
	assert.Contains(t, doc, ReactDOMURL)
	assert.Contains(t, doc, BabelURL)
	assert.Contains(t, doc, "window.addEventListener('error'")
	assert.Contains(t, doc, "window.addEventListener('unhandledrejection'")
	assert.Contains(t, doc, "if (typeof App === 'undefined')")
	assert.Contains(t, doc, "ReactDOM.createRoot(document.getElementById('root')).render(<App />);")
	assert.Contains(t, doc, "} catch (e) {\n      showError(e);")

	assert.NotContains(t, doc, "import React")
	assert.NotContains(t, doc, "export default")
	assert.Contains(t, doc, "function Header({ title })")
	assert.Contains(t, doc, "function App()")
	assert.NotContains(t, doc, "<title>React App</title>", "html files are not inlined")
	assert.Contains(t, doc, "<title>Demo</title>")
}

func TestSynthesize_Ordering(t *testing.T) {
	doc, err := NewSynthesizer().Synthesize(reactProject(t))
	require.NoError(t, err)

	header := strings.Index(doc, "// ---- src/components/Header.js ----")
	index := strings.Index(doc, "// ---- src/index.js ----")
	app := strings.Index(doc, "// ---- src/App.js ----")
	guard := strings.Index(doc, "typeof App === 'undefined'")
	require.True(t, header >= 0 && index >= 0 && app >= 0)
	assert.Less(t, header, index, "non-entry scripts sorted by path")
	assert.Less(t, index, app, "entry comes last")
	assert.Less(t, app, guard, "mount follows every script")

	appCSS := strings.Index(doc, "/* src/App.css */")
	indexCSS := strings.Index(doc, "/* src/index.css */")
	require.True(t, appCSS >= 0 && indexCSS >= 0)
	assert.Less(t, appCSS, indexCSS)
	assert.Contains(t, doc, ".App {\n  text-align: center;")
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := NewSynthesizer()
	p := reactProject(t)
	p.Files["src/a.js"] = &vfs.FileRecord{Content: "export const a = 1;"}
	p.Files["src/z.jsx"] = &vfs.FileRecord{Content: "export const z = 2;"}
	p.Files["lib/util.ts"] = &vfs.FileRecord{Content: "export function u() {}"}

	first, err := s.Synthesize(p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Synthesize(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSynthesize_PureFunctionOfFiles(t *testing.T) {
	p := reactProject(t)
	before := p.Clone()
	_, err := NewSynthesizer().Synthesize(p)
	require.NoError(t, err)
	assert.Equal(t, before, p)
}

func TestSynthesize_MissingEntry(t *testing.T) {
	p := projectFrom("NoApp", map[string]string{
		"src/widget.js": "export function Widget() { return null; }",
		"style.css":     "body { color: red; }",
		"README.md":     "# not a script",
	})
	doc, err := NewSynthesizer().Synthesize(p)
	require.NoError(t, err)
	assert.Contains(t, doc, "function Widget()")
	assert.Contains(t, doc, "body { color: red; }")
	assert.NotContains(t, doc, "# not a script")
	assert.Contains(t, doc, "App component not found. Define a component named App in src/App.js.")
}

func TestSynthesize_CustomEntry(t *testing.T) {
	p := projectFrom("Custom", map[string]string{
		"main.jsx":   "function App() { return <Util />; }",
		"src/App.js": "const notTheEntry = true;",
		"util.js":    "function Util() { return null; }",
	})
	s := NewSynthesizer(WithEntry("/main.jsx"))
	assert.Equal(t, "main.jsx", s.Entry())

	doc, err := s.Synthesize(p)
	require.NoError(t, err)
	assert.Less(t, strings.Index(doc, "// ---- util.js ----"), strings.Index(doc, "// ---- main.jsx ----"))
	assert.Less(t, strings.Index(doc, "// ---- src/App.js ----"), strings.Index(doc, "// ---- main.jsx ----"))
}

func TestSynthesize_SkipsTypeScript(t *testing.T) {
	p := projectFrom("TS", map[string]string{
		"src/App.js":   "function App() { return null; }",
		"src/util.ts":  "const n: number = 1;",
		"src/Card.tsx": "type Props = { title: string };",
	})
	doc, err := NewSynthesizer().Synthesize(p)
	require.NoError(t, err)
	assert.Contains(t, doc, "function App()")
	assert.NotContains(t, doc, "src/util.ts")
	assert.NotContains(t, doc, "const n: number")
	assert.NotContains(t, doc, "type Props")
}

func TestSynthesize_EscapesEntryInScript(t *testing.T) {
	p := projectFrom("Quote", map[string]string{"src/widget.js": "const w = 1;"})

	doc, err := NewSynthesizer(WithEntry("src/it's.js")).Synthesize(p)
	require.NoError(t, err)
	assert.Contains(t, doc, `Define a component named App in src/it\'s.js.');`)
	assert.NotContains(t, doc, "App in src/it's.js")

	doc, err = NewSynthesizer(WithEntry("src/</script>.js")).Synthesize(p)
	require.NoError(t, err)
	assert.Contains(t, doc, `App in src/\u003C/script\u003E.js.`)
}

func TestSynthesize_EscapesClosingTags(t *testing.T) {
	p := projectFrom("<b>Esc</b>", map[string]string{
		"src/App.js": `function App() { return "</script><script>alert(1)</SCRIPT>"; }`,
		"a.css":      `.x::after { content: "</style>"; }`,
	})
	doc, err := NewSynthesizer().Synthesize(p)
	require.NoError(t, err)

	assert.Contains(t, doc, `"<\/script><script>alert(1)<\/SCRIPT>"`)
	assert.Contains(t, doc, `content: "<\/style>"`)
	assert.Contains(t, doc, "<title>&lt;b&gt;Esc&lt;/b&gt;</title>")
}

func TestSynthesize_RegexRewrite(t *testing.T) {
	p := projectFrom("R", map[string]string{
		"src/App.js": "import React from 'react';\nexport default function App() { return null; }\n",
	})
	doc, err := NewSynthesizer(WithRegexRewrite()).Synthesize(p)
	require.NoError(t, err)
	assert.NotContains(t, doc, "import React")
	assert.Contains(t, doc, "function App() { return null; }")
}

func TestSynthesize_NilProject(t *testing.T) {
	_, err := NewSynthesizer().Synthesize(nil)
	assert.ErrorIs(t, err, ErrNilProject)
}

func TestSynthesize_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSynthesizer(WithMetrics(metrics.NewWithRegistry(reg)))
	_, err := s.Synthesize(reactProject(t))
	require.NoError(t, err)
	_, err = s.Synthesize(reactProject(t))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() == "codepad_preview_syntheses_total" {
			total = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), total)
}
