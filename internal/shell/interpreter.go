// Package shell interprets the command line of a project terminal.
//
// Each Execute call tokenizes one line on whitespace, looks the verb up in a
// fixed builtin table and runs it against an explicit Session and a snapshot
// of the open project. Files are reached only through the callbacks in
// Context, so the interpreter never touches storage directly. There is no
// quoting: `git commit -m` is the one place that re-joins trailing tokens.
package shell

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/metrics"
	"github.com/fyrsmithlabs/codepad/internal/sandbox"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

// Kind tells the terminal how to render a Result.
type Kind string

const (
	KindNormal  Kind = "normal"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindClear   Kind = "clear"
)

// Result is what one command line produced.
type Result struct {
	Output string `json:"output"`
	Kind   Kind   `json:"kind"`
}

// UsageError reports malformed command arguments.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: usage: %s", e.Command, e.Usage)
}

// ErrNoProject is returned by commands that need an open project when the
// Context has none.
var ErrNoProject = errors.New("no project open")

// Context is the project a command runs against. Project is a snapshot;
// mutations go through the callbacks, which take VFS paths.
type Context struct {
	Project    *vfs.Project
	CreateFile func(ctx context.Context, path string) error
	DeleteFile func(ctx context.Context, path string) error
	// InstallPackage, when set, lets npm install write the manifest too.
	InstallPackage func(ctx context.Context, name, version string) error
}

// Runner executes script text. *sandbox.Executor implements it.
type Runner interface {
	Run(ctx context.Context, script string) sandbox.Result
}

type handler func(ctx context.Context, c *call) (Result, error)

type call struct {
	session *Session
	shell   *Context
	verb    string
	args    []string
}

// Interpreter dispatches command lines. It keeps no per-session state and
// may be shared by many sessions.
type Interpreter struct {
	runner   Runner
	logger   *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	builtins map[string]handler
}

// Option configures an Interpreter.
type Option func(*Interpreter)

func WithLogger(l *logging.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Interpreter) { i.metrics = m }
}

// WithClock sets the time source used for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

// NewInterpreter returns an Interpreter that runs `node` scripts on runner.
func NewInterpreter(runner Runner, opts ...Option) *Interpreter {
	i := &Interpreter{
		runner: runner,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.builtins = map[string]handler{
		"help":    i.help,
		"clear":   i.clear,
		"pwd":     i.pwd,
		"cd":      i.cd,
		"ls":      i.ls,
		"cat":     i.cat,
		"touch":   i.touch,
		"rm":      i.rm,
		"mkdir":   i.mkdir,
		"npm":     i.npm,
		"git":     i.git,
		"node":    i.node,
		"echo":    i.echo,
		"export":  i.export,
		"deploy":  i.deploy,
		"ai":      i.ai,
		"history": i.history,
		"env":     i.env,
		"whoami":  i.whoami,
		"tree":    i.tree,
	}
	return i
}

// Commands returns the builtin verbs, sorted.
func (i *Interpreter) Commands() []string {
	names := make([]string, 0, len(i.builtins))
	for n := range i.builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs one command line against session. Command failures come back
// as KindError results; Execute itself never fails.
func (i *Interpreter) Execute(ctx context.Context, session *Session, line string, sc *Context) Result {
	if sc == nil {
		sc = &Context{}
	}
	ctx = logging.WithShellSession(ctx, session.ID)
	if sc.Project != nil {
		ctx = logging.WithProjectID(ctx, sc.Project.ID)
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{Kind: KindNormal}
	}
	session.record(line)

	verb := strings.ToLower(fields[0])
	h, ok := i.builtins[verb]
	if !ok {
		i.metrics.ShellCommand("unknown", string(KindError))
		return Result{
			Output: fmt.Sprintf("command not found: %s. Type 'help' for available commands.", fields[0]),
			Kind:   KindError,
		}
	}

	res, err := h(ctx, &call{session: session, shell: sc, verb: verb, args: fields[1:]})
	if err != nil {
		res = Result{Output: err.Error(), Kind: KindError}
		var ue *UsageError
		if errors.As(err, &ue) {
			i.logger.Debug(ctx, "shell usage error", zap.String("command", verb))
		}
	}
	i.metrics.ShellCommand(verb, string(res.Kind))
	i.logger.Trace(ctx, "shell command executed", zap.String("command", verb), zap.String("kind", string(res.Kind)))
	return res
}

// ResolvePath joins p onto cwd. An absolute p is returned unchanged;
// otherwise the two are joined with one "/" and a root cwd does not double
// the slash. No cleaning is done.
func ResolvePath(cwd, p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	if cwd == "/" {
		return "/" + p
	}
	return cwd + "/" + p
}

// vfsPath resolves arg against the session directory and returns the
// project-relative path.
func (c *call) vfsPath(arg string) (string, error) {
	return vfs.NormalizePath(ResolvePath(c.session.CurrentDirectory, arg))
}

// dirPrefix returns the directory as a project-relative prefix, "" at
// the root.
func dirPrefix(abs string) string {
	return strings.Trim(path.Clean(abs), "/")
}

func (c *call) project() (*vfs.Project, error) {
	if c.shell.Project == nil {
		return nil, ErrNoProject
	}
	return c.shell.Project, nil
}

func usage(cmd, u string) error {
	return &UsageError{Command: cmd, Usage: u}
}

func normal(s string) (Result, error)  { return Result{Output: s, Kind: KindNormal}, nil }
func info(s string) (Result, error)    { return Result{Output: s, Kind: KindInfo}, nil }
func success(s string) (Result, error) { return Result{Output: s, Kind: KindSuccess}, nil }
