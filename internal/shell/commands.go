package shell

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

const helpText = `Available commands:
  help                 Show this help
  clear                Clear the terminal
  pwd                  Print the working directory
  cd [dir]             Change directory (no argument or ~ returns to /)
  ls [dir]             List files and directories
  tree                 Show the project as a tree
  cat <file>...        Print file contents
  touch <file>...      Create empty files
  rm [-r] <path>...    Remove files
  mkdir <dir>          Create a directory
  node <file>          Run a JavaScript file in the sandbox
  npm install <pkg>    Add a package (alias: npm i)
  npm list             List installed packages (alias: npm ls)
  npm run <script>     Run a package script
  git <command>        init, status, add, commit -m "<msg>", log
  echo <text>          Print text ($VAR is expanded)
  export [KEY=VALUE]   Set a variable, or export the project
  env                  List environment variables
  history              Show command history
  whoami               Print the current user
  deploy               Deploy the project
  ai <prompt>          Ask the assistant`

func (i *Interpreter) help(context.Context, *call) (Result, error) {
	return info(helpText)
}

func (i *Interpreter) clear(context.Context, *call) (Result, error) {
	return Result{Kind: KindClear}, nil
}

func (i *Interpreter) pwd(_ context.Context, c *call) (Result, error) {
	return normal(c.session.CurrentDirectory)
}

func (i *Interpreter) cd(_ context.Context, c *call) (Result, error) {
	target := "~"
	if len(c.args) > 0 {
		target = c.args[0]
	}
	switch {
	case target == "~":
		c.session.CurrentDirectory = "/"
	case strings.HasPrefix(target, "~/"):
		c.session.CurrentDirectory = path.Clean("/" + target[2:])
	default:
		c.session.CurrentDirectory = path.Clean(ResolvePath(c.session.CurrentDirectory, target))
	}
	return normal("")
}

func (i *Interpreter) ls(_ context.Context, c *call) (Result, error) {
	p, err := c.project()
	if err != nil {
		return Result{}, err
	}
	operands := withoutFlags(c.args)
	dir := c.session.CurrentDirectory
	if len(operands) > 0 {
		dir = ResolvePath(dir, operands[0])
	}
	prefix := dirPrefix(dir)
	if _, ok := p.Files[prefix]; ok {
		return normal(path.Base(prefix))
	}
	entries := listDir(p, prefix)
	if len(entries) == 0 && len(operands) > 0 && prefix != "" {
		return Result{}, fmt.Errorf("ls: cannot access '%s': No such file or directory", operands[0])
	}
	return normal(strings.Join(entries, "  "))
}

// listDir returns the immediate children of prefix. Directories are
// synthesized from deeper paths and carry a trailing "/".
func listDir(p *vfs.Project, prefix string) []string {
	seen := make(map[string]bool)
	for fp := range p.Files {
		rest := fp
		if prefix != "" {
			if !strings.HasPrefix(fp, prefix+"/") {
				continue
			}
			rest = fp[len(prefix)+1:]
		}
		name, _, isDir := strings.Cut(rest, "/")
		if isDir {
			name += "/"
		}
		seen[name] = true
	}
	entries := make([]string, 0, len(seen))
	for name := range seen {
		entries = append(entries, name)
	}
	sort.Strings(entries)
	return entries
}

func (i *Interpreter) cat(_ context.Context, c *call) (Result, error) {
	p, err := c.project()
	if err != nil {
		return Result{}, err
	}
	if len(c.args) == 0 {
		return Result{}, usage("cat", "cat <file>...")
	}
	var b strings.Builder
	for _, arg := range c.args {
		fp, err := c.vfsPath(arg)
		if err != nil {
			return Result{}, fmt.Errorf("cat: %s: No such file or directory", arg)
		}
		f, ok := p.Files[fp]
		if !ok {
			if len(listDir(p, fp)) > 0 {
				return Result{}, fmt.Errorf("cat: %s: Is a directory", arg)
			}
			return Result{}, fmt.Errorf("cat: %s: No such file or directory", arg)
		}
		b.WriteString(f.Content)
	}
	return normal(b.String())
}

// touch creates missing files. Existing files are left alone so their
// content survives.
func (i *Interpreter) touch(ctx context.Context, c *call) (Result, error) {
	p, err := c.project()
	if err != nil {
		return Result{}, err
	}
	if c.shell.CreateFile == nil {
		return Result{}, ErrNoProject
	}
	if len(c.args) == 0 {
		return Result{}, usage("touch", "touch <file>...")
	}
	var created []string
	for _, arg := range c.args {
		fp, err := c.vfsPath(arg)
		if err != nil {
			return Result{}, fmt.Errorf("touch: cannot touch '%s': %w", arg, err)
		}
		if _, ok := p.Files[fp]; ok {
			continue
		}
		if err := c.shell.CreateFile(ctx, fp); err != nil {
			return Result{}, fmt.Errorf("touch: cannot touch '%s': %w", arg, err)
		}
		created = append(created, "Created "+fp)
	}
	if len(created) == 0 {
		return normal("")
	}
	return success(strings.Join(created, "\n"))
}

func (i *Interpreter) rm(ctx context.Context, c *call) (Result, error) {
	p, err := c.project()
	if err != nil {
		return Result{}, err
	}
	if c.shell.DeleteFile == nil {
		return Result{}, ErrNoProject
	}
	recursive := false
	for _, a := range c.args {
		if strings.HasPrefix(a, "-") && strings.ContainsAny(a, "rR") {
			recursive = true
		}
	}
	operands := withoutFlags(c.args)
	if len(operands) == 0 {
		return Result{}, usage("rm", "rm [-r] <path>...")
	}

	var removed []string
	for _, arg := range operands {
		fp, err := c.vfsPath(arg)
		if err != nil {
			return Result{}, fmt.Errorf("rm: cannot remove '%s': %w", arg, err)
		}
		targets := []string{fp}
		if _, isFile := p.Files[fp]; !isFile {
			if under := filesUnder(p, fp); len(under) > 0 {
				if !recursive {
					return Result{}, fmt.Errorf("rm: cannot remove '%s': Is a directory", arg)
				}
				targets = under
			}
		}
		for _, t := range targets {
			if err := c.shell.DeleteFile(ctx, t); err != nil {
				return Result{}, fmt.Errorf("rm: cannot remove '%s': %w", t, err)
			}
			removed = append(removed, "Removed "+t)
		}
	}
	return success(strings.Join(removed, "\n"))
}

func filesUnder(p *vfs.Project, dir string) []string {
	var out []string
	for _, fp := range p.Paths() {
		if strings.HasPrefix(fp, dir+"/") {
			out = append(out, fp)
		}
	}
	return out
}

// mkdir has nothing to create: directories exist only as path prefixes.
func (i *Interpreter) mkdir(_ context.Context, c *call) (Result, error) {
	operands := withoutFlags(c.args)
	if len(operands) == 0 {
		return Result{}, usage("mkdir", "mkdir <dir>")
	}
	lines := make([]string, len(operands))
	for n, arg := range operands {
		lines[n] = "Created directory " + path.Clean(ResolvePath(c.session.CurrentDirectory, arg))
	}
	return success(strings.Join(lines, "\n"))
}

func (i *Interpreter) node(ctx context.Context, c *call) (Result, error) {
	p, err := c.project()
	if err != nil {
		return Result{}, err
	}
	if len(c.args) == 0 {
		return Result{}, usage("node", "node <file>")
	}
	fp, err := c.vfsPath(c.args[0])
	if err != nil {
		return Result{}, fmt.Errorf("node: cannot find module '%s'", c.args[0])
	}
	f, ok := p.Files[fp]
	if !ok {
		return Result{}, fmt.Errorf("node: cannot find module '%s'", c.args[0])
	}
	if i.runner == nil {
		return Result{}, fmt.Errorf("node: sandbox unavailable")
	}

	res := i.runner.Run(ctx, f.Content)
	if res.Failed() {
		return Result{Output: res.Output + res.Err, Kind: KindError}, nil
	}
	return normal(strings.TrimSuffix(res.Output, "\n"))
}

var envRef = regexp.MustCompile(`\$(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))`)

// echo joins its arguments. $NAME and ${NAME} are replaced only when NAME
// is set in the session; anything else, such as "$5", stays literal.
func (i *Interpreter) echo(_ context.Context, c *call) (Result, error) {
	line := strings.Join(c.args, " ")
	return normal(envRef.ReplaceAllStringFunc(line, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name := m[1] + m[2]
		if v, ok := c.session.Environment[name]; ok {
			return v
		}
		return ref
	}))
}

func (i *Interpreter) export(_ context.Context, c *call) (Result, error) {
	if len(c.args) == 0 {
		name, files := "untitled", 0
		if c.shell.Project != nil {
			name, files = c.shell.Project.Name, len(c.shell.Project.Files)
		}
		return info(fmt.Sprintf("Exporting %q as a zip archive...\nExport ready: %d files packaged.", name, files))
	}
	for _, arg := range c.args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return Result{}, usage("export", "export KEY=VALUE")
		}
		c.session.Environment[k] = v
	}
	return normal("")
}

func (i *Interpreter) deploy(_ context.Context, c *call) (Result, error) {
	name := "untitled"
	if c.shell.Project != nil {
		name = c.shell.Project.Name
	}
	return info(fmt.Sprintf("Building %s for production...\nUploading build artifacts...\nDeployed: https://%s.codepad.app", name, slug(name)))
}

func (i *Interpreter) ai(_ context.Context, c *call) (Result, error) {
	if len(c.args) == 0 {
		return Result{}, usage("ai", "ai <prompt>")
	}
	prompt := strings.Join(c.args, " ")
	return info(fmt.Sprintf("AI assistant: %q\nTry breaking this into small components and check each one in the preview.", prompt))
}

func (i *Interpreter) history(_ context.Context, c *call) (Result, error) {
	lines := make([]string, len(c.session.History))
	for n, h := range c.session.History {
		lines[n] = fmt.Sprintf("%4d  %s", n+1, h)
	}
	return normal(strings.Join(lines, "\n"))
}

func (i *Interpreter) env(_ context.Context, c *call) (Result, error) {
	keys := c.session.envKeys()
	lines := make([]string, len(keys))
	for n, k := range keys {
		lines[n] = k + "=" + c.session.Environment[k]
	}
	return normal(strings.Join(lines, "\n"))
}

func (i *Interpreter) whoami(_ context.Context, c *call) (Result, error) {
	return normal(c.session.Environment["USER"])
}

type treeNode struct {
	children map[string]*treeNode
}

func (i *Interpreter) tree(_ context.Context, c *call) (Result, error) {
	p, err := c.project()
	if err != nil {
		return Result{}, err
	}
	prefix := dirPrefix(c.session.CurrentDirectory)
	root := &treeNode{children: map[string]*treeNode{}}
	files := 0
	for fp := range p.Files {
		rest := fp
		if prefix != "" {
			if !strings.HasPrefix(fp, prefix+"/") {
				continue
			}
			rest = fp[len(prefix)+1:]
		}
		n := root
		for _, seg := range strings.Split(rest, "/") {
			child, ok := n.children[seg]
			if !ok {
				child = &treeNode{children: map[string]*treeNode{}}
				n.children[seg] = child
			}
			n = child
		}
		files++
	}

	var b strings.Builder
	b.WriteString(".\n")
	dirs := renderTree(&b, root, "")
	fmt.Fprintf(&b, "\n%d directories, %d files", dirs, files)
	return normal(b.String())
}

func renderTree(b *strings.Builder, n *treeNode, indent string) (dirs int) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for idx, name := range names {
		branch, next := "├── ", "│   "
		if idx == len(names)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString(indent + branch + name + "\n")
		if child := n.children[name]; len(child.children) > 0 {
			dirs += 1 + renderTree(b, child, indent+next)
		}
	}
	return dirs
}

func withoutFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			out = append(out, a)
		}
	}
	return out
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "project"
	}
	return s
}
