package shell

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codepad/internal/filestore"
	"github.com/fyrsmithlabs/codepad/internal/sandbox"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

type installCall struct{ name, version string }

type fixture struct {
	t         *testing.T
	interp    *Interpreter
	session   *Session
	project   *vfs.Project
	installed []installCall
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files := map[string]string{
		"README.md":                "# demo",
		"package.json":             `{"name":"demo"}`,
		"index.js":                 `console.log("hi from node")`,
		"bad.js":                   `const fs = require('fs');`,
		"src/App.js":               "function App(){return 1}",
		"src/components/Header.js": "function Header(){}",
	}
	p := &vfs.Project{ID: "p1", Name: "My Demo", Files: map[string]*vfs.FileRecord{}}
	for path, content := range files {
		p.Files[path] = &vfs.FileRecord{Content: content}
	}
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return &fixture{
		t:       t,
		interp:  NewInterpreter(sandbox.NewExecutor(), WithClock(clock)),
		session: NewSession(),
		project: p,
	}
}

func (f *fixture) context() *Context {
	return &Context{
		Project: f.project,
		CreateFile: func(_ context.Context, path string) error {
			f.project.Files[path] = &vfs.FileRecord{}
			return nil
		},
		DeleteFile: func(_ context.Context, path string) error {
			delete(f.project.Files, path)
			return nil
		},
		InstallPackage: func(_ context.Context, name, version string) error {
			f.installed = append(f.installed, installCall{name, version})
			return nil
		},
	}
}

func (f *fixture) run(line string) Result {
	f.t.Helper()
	return f.interp.Execute(context.Background(), f.session, line, f.context())
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		cwd, p, want string
	}{
		{"/", "a.js", "/a.js"},
		{"/src", "a.js", "/src/a.js"},
		{"/src", "/abs.js", "/abs.js"},
		{"/src/components", "../x.js", "/src/components/../x.js"},
		{"/", "/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolvePath(tt.cwd, tt.p), "%s + %s", tt.cwd, tt.p)
	}
}

func TestCD(t *testing.T) {
	f := newFixture(t)

	f.run("cd a")
	f.run("cd b")
	f.run("cd ..")
	assert.Equal(t, "/a", f.session.CurrentDirectory)

	f.run("cd /x")
	assert.Equal(t, "/x", f.session.CurrentDirectory)
	f.run("cd ~")
	assert.Equal(t, "/", f.session.CurrentDirectory)

	f.run("cd src/components")
	assert.Equal(t, "/src/components", f.run("pwd").Output)
	f.run("cd")
	assert.Equal(t, "/", f.session.CurrentDirectory)

	f.run("cd ..")
	assert.Equal(t, "/", f.session.CurrentDirectory, "root has no parent")

	f.run("cd ~/src")
	assert.Equal(t, "/src", f.session.CurrentDirectory)
}

func TestExecute_Basics(t *testing.T) {
	f := newFixture(t)

	res := f.run("   ")
	assert.Equal(t, Result{Kind: KindNormal}, res)
	assert.Empty(t, f.session.History, "blank lines are not recorded")

	res = f.run("frobnicate now")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "frobnicate")
	assert.Contains(t, res.Output, "help")

	res = f.run("ECHO hello world")
	assert.Equal(t, Result{Output: "hello world", Kind: KindNormal}, res)

	assert.Equal(t, KindClear, f.run("clear").Kind)
	help := f.run("help")
	assert.Equal(t, KindInfo, help.Kind)
	for _, cmd := range []string{"cd", "ls", "cat", "npm", "git", "node"} {
		assert.Contains(t, help.Output, cmd)
	}

	assert.Equal(t, []string{"frobnicate now", "ECHO hello world", "clear", "help"}, f.session.History)
}

func TestExecute_NilContext(t *testing.T) {
	interp := NewInterpreter(nil)
	s := NewSession()

	assert.Equal(t, "hi", interp.Execute(context.Background(), s, "echo hi", nil).Output)
	res := interp.Execute(context.Background(), s, "ls", nil)
	assert.Equal(t, KindError, res.Kind)
	assert.Equal(t, ErrNoProject.Error(), res.Output)
}

func TestLs(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "README.md  bad.js  index.js  package.json  src/", f.run("ls").Output)
	assert.Equal(t, "App.js  components/", f.run("ls src").Output)
	assert.Equal(t, "App.js", f.run("ls -la src/App.js").Output)

	f.run("cd src")
	assert.Equal(t, "App.js  components/", f.run("ls").Output)

	f.run("cd /empty")
	res := f.run("ls")
	assert.Equal(t, KindNormal, res.Kind)
	assert.Empty(t, res.Output)

	assert.Equal(t, KindError, f.run("ls /nope").Kind)
}

func TestCat(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "function App(){return 1}", f.run("cat src/App.js").Output)
	assert.Equal(t, "function App(){return 1}", f.run("cat /src/App.js").Output)

	f.run("cd src/components")
	assert.Equal(t, "function Header(){}", f.run("cat Header.js").Output)
	assert.Equal(t, "function App(){return 1}", f.run("cat ../App.js").Output)

	res := f.run("cat missing.js")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "No such file")

	f.run("cd /")
	res = f.run("cat src")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "Is a directory")

	res = f.run("cat")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "usage")
}

func TestTouchAndRm(t *testing.T) {
	f := newFixture(t)
	f.run("cd src")

	res := f.run("touch utils/math.js")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Contains(t, f.project.Files, "src/utils/math.js")

	// Existing content is kept.
	f.run("touch App.js")
	assert.Equal(t, "function App(){return 1}", f.project.Files["src/App.js"].Content)

	res = f.run("rm utils/math.js")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.NotContains(t, f.project.Files, "src/utils/math.js")

	res = f.run("rm components")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "Is a directory")

	res = f.run("rm -r components")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.NotContains(t, f.project.Files, "src/components/Header.js")

	// Missing files are not an error.
	assert.Equal(t, KindSuccess, f.run("rm ghost.js").Kind)
	assert.Equal(t, KindError, f.run("rm").Kind)
}

func TestMkdir(t *testing.T) {
	f := newFixture(t)
	f.run("cd src")
	res := f.run("mkdir -p hooks")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Equal(t, "Created directory /src/hooks", res.Output)
	assert.Len(t, f.project.Files, 6, "no placeholder file is created")
}

func TestNpm(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, Result{Output: "(empty)", Kind: KindInfo}, f.run("npm list"))

	res := f.run("npm install left-pad")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Contains(t, f.run("npm list").Output, "left-pad")

	f.run("npm i react@18.2.0 @types/node")
	f.run("npm install left-pad")
	assert.Equal(t, []string{"left-pad", "react", "@types/node"}, f.session.InstalledPackages)
	assert.Equal(t, []installCall{
		{"left-pad", ""}, {"react", "18.2.0"}, {"@types/node", ""}, {"left-pad", ""},
	}, f.installed)
	assert.Equal(t, "├── left-pad\n├── react\n└── @types/node", f.run("npm ls").Output)

	res = f.run("npm run start")
	assert.Equal(t, KindSuccess, res.Kind)
	assert.Contains(t, res.Output, "my-demo@1.0.0 start")
	assert.Contains(t, res.Output, "localhost:3000")

	res = f.run("npm run build")
	assert.Equal(t, KindInfo, res.Kind)
	assert.Contains(t, res.Output, "Running script 'build'")

	assert.Equal(t, KindError, f.run("npm run").Kind)
	assert.Equal(t, KindError, f.run("npm publish").Kind)
	assert.Equal(t, KindError, f.run("npm").Kind)
}

func TestSplitPackageSpec(t *testing.T) {
	tests := map[string][2]string{
		"lodash":          {"lodash", ""},
		"lodash@4":        {"lodash", "4"},
		"@scope/pkg":      {"@scope/pkg", ""},
		"@scope/pkg@^1.2": {"@scope/pkg", "^1.2"},
	}
	for in, want := range tests {
		name, version := SplitPackageSpec(in)
		assert.Equal(t, want, [2]string{name, version}, in)
	}
}

func TestNode(t *testing.T) {
	f := newFixture(t)

	res := f.run("node index.js")
	assert.Equal(t, Result{Output: "hi from node", Kind: KindNormal}, res)

	res = f.run("node bad.js")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "Cannot find module 'fs'")

	assert.Equal(t, KindError, f.run("node nope.js").Kind)
	assert.Equal(t, KindError, f.run("node").Kind)
}

func TestEnvironment(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "developer", f.run("whoami").Output)
	assert.Equal(t, "home is /", f.run("echo home is $HOME").Output)
	assert.Equal(t, "home is / too", f.run("echo home is ${HOME} too").Output)
	assert.Equal(t, "price is $5", f.run("echo price is $5").Output)
	assert.Equal(t, "cost: $PATH_X ok", f.run("echo cost: $PATH_X ok").Output)
	assert.Equal(t, "$", f.run("echo $").Output)

	assert.Equal(t, KindNormal, f.run("export EDITOR=vim").Kind)
	assert.Equal(t, "vim", f.session.Environment["EDITOR"])
	assert.Contains(t, f.run("env").Output, "EDITOR=vim\nHOME=/")

	assert.Equal(t, KindError, f.run("export NOVALUE").Kind)

	res := f.run("export")
	assert.Equal(t, KindInfo, res.Kind)
	assert.Contains(t, res.Output, `"My Demo"`)
}

func TestCannedCommands(t *testing.T) {
	f := newFixture(t)

	res := f.run("deploy")
	assert.Equal(t, KindInfo, res.Kind)
	assert.Contains(t, res.Output, "https://my-demo.codepad.app")
	assert.Equal(t, res, f.run("deploy"), "deterministic")

	res = f.run("ai build a todo list")
	assert.Equal(t, KindInfo, res.Kind)
	assert.Contains(t, res.Output, `"build a todo list"`)

	res = f.run("ai")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "usage")
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.run("pwd")
	f.run("echo a")

	assert.Equal(t, "   1  pwd\n   2  echo a\n   3  history", f.run("history").Output)

	line, ok := f.session.Previous()
	assert.True(t, ok)
	assert.Equal(t, "history", line)
	line, _ = f.session.Previous()
	assert.Equal(t, "echo a", line)
	line, _ = f.session.Previous()
	line, _ = f.session.Previous()
	assert.Equal(t, "pwd", line, "stays at the oldest entry")

	line, ok = f.session.Next()
	assert.True(t, ok)
	assert.Equal(t, "echo a", line)
	f.session.Next()
	line, ok = f.session.Next()
	assert.False(t, ok)
	assert.Empty(t, line)

	_, ok = NewSession().Previous()
	assert.False(t, ok)
}

func TestTree(t *testing.T) {
	f := newFixture(t)
	want := strings.Join([]string{
		".",
		"├── README.md",
		"├── bad.js",
		"├── index.js",
		"├── package.json",
		"└── src",
		"    ├── App.js",
		"    └── components",
		"        └── Header.js",
		"",
		"2 directories, 6 files",
	}, "\n")
	assert.Equal(t, want, f.run("tree").Output)

	f.run("cd src/components")
	assert.Equal(t, ".\n└── Header.js\n\n0 directories, 1 files", f.run("tree").Output)
}

func TestSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	other := NewSession()

	f.run("cd src")
	f.run("export A=1")
	assert.Equal(t, "/", other.CurrentDirectory)
	assert.NotContains(t, other.Environment, "A")
	assert.NotEqual(t, f.session.ID, other.ID)
}

func TestScenario_WithVirtualFileSystem(t *testing.T) {
	ctx := context.Background()
	svc := vfs.NewService(filestore.NewMemoryStore())
	require.NoError(t, svc.Initialize(ctx))

	p, err := svc.CreateProject(ctx, "Demo", "react")
	require.NoError(t, err)
	require.NotEmpty(t, p.Files["src/App.js"].Content)

	require.NoError(t, svc.SaveFile(ctx, p.ID, "src/App.js", "function App(){return 1}"))

	interp := NewInterpreter(sandbox.NewExecutor())
	session := NewSession()
	shellCtx := func() *Context {
		sc, err := Bind(ctx, svc, p.ID)
		require.NoError(t, err)
		return sc
	}

	assert.Equal(t, "function App(){return 1}", interp.Execute(ctx, session, "cat src/App.js", shellCtx()).Output)
	assert.Equal(t, "hello world", interp.Execute(ctx, session, "echo hello world", shellCtx()).Output)

	interp.Execute(ctx, session, "npm install left-pad", shellCtx())
	assert.Contains(t, interp.Execute(ctx, session, "npm list", shellCtx()).Output, "left-pad")
	pkgs, err := svc.GetInstalledPackages(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, pkgs, vfs.Package{Name: "left-pad", Version: "latest"})

	require.NoError(t, svc.SaveFile(ctx, p.ID, "bad.js", "require('fs')"))
	res := interp.Execute(ctx, session, "node bad.js", shellCtx())
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Output, "fs")

	interp.Execute(ctx, session, "touch src/new.js", shellCtx())
	content, err := svc.ReadFile(ctx, p.ID, "src/new.js")
	require.NoError(t, err)
	assert.Equal(t, "// src/new.js\n", content)

	interp.Execute(ctx, session, "rm src/new.js", shellCtx())
	_, err = svc.ReadFile(ctx, p.ID, "src/new.js")
	assert.ErrorIs(t, err, vfs.ErrFileNotFound)
}
