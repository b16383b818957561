// Package sandbox runs a file's JavaScript in a fresh goja runtime.
//
// The sandbox isolates crashes, not hostile code: a script cannot reach the
// host filesystem or network because nothing exposing them is installed, but
// nothing limits its memory. CPU time is bounded only when the caller's
// context carries a deadline or the Executor was built WithTimeout; without
// either, an infinite loop blocks Run forever.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codepad/internal/logging"
	"github.com/fyrsmithlabs/codepad/internal/metrics"
)

// Result is the outcome of one Run. Err is empty on success.
type Result struct {
	Output   string
	Err      string
	Duration time.Duration
}

// Failed reports whether the script threw, failed to compile, or was
// interrupted.
func (r Result) Failed() bool { return r.Err != "" }

// Executor runs scripts. It holds no per-run state and is safe for
// concurrent use.
type Executor struct {
	modules map[string]string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout interrupts every run after d. Zero keeps runs unbounded.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithModule adds or replaces a virtual module that require can resolve.
// source is evaluated CommonJS style with module, exports and require in
// scope.
func WithModule(name, source string) Option {
	return func(e *Executor) { e.modules[name] = source }
}

func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor returns an Executor whose require resolves the built-in
// virtual modules.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		modules: make(map[string]string, len(builtinModules)),
		logger:  logging.NewNop(),
	}
	for name, src := range builtinModules {
		e.modules[name] = src
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Modules returns the names require accepts, sorted.
func (e *Executor) Modules() []string {
	names := make([]string, 0, len(e.modules))
	for n := range e.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var errInterrupted = errors.New("execution interrupted")

// Run evaluates script and returns what it printed. It never panics and
// never returns a Go error: every failure is reported in Result.Err.
func (e *Executor) Run(ctx context.Context, script string) (res Result) {
	start := time.Now()
	var out strings.Builder

	defer func() {
		if r := recover(); r != nil {
			res = Result{Output: out.String(), Err: fmt.Sprintf("internal error: %v", r)}
			e.logger.Error(ctx, "sandbox panic recovered", zap.Any("panic", r))
		}
		res.Duration = time.Since(start)
		outcome := "ok"
		switch {
		case strings.HasPrefix(res.Err, errInterrupted.Error()):
			outcome = "interrupted"
		case res.Failed():
			outcome = "error"
		}
		e.metrics.SandboxRun(outcome, res.Duration)
		e.logger.Debug(ctx, "sandbox run finished",
			zap.String("outcome", outcome), zap.Duration("duration", res.Duration))
	}()

	vm := goja.New()
	e.installConsole(vm, &out)
	e.installRequire(vm)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			vm.Interrupt(fmt.Errorf("%w: %v", errInterrupted, context.Cause(ctx)))
		})
		defer stop()
	}

	if _, err := vm.RunScript("script.js", script); err != nil {
		return Result{Output: out.String(), Err: describe(err)}
	}
	return Result{Output: out.String()}
}

func describe(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok {
			return v.Error()
		}
		return errInterrupted.Error()
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if v := ex.Value(); v != nil {
			return v.String()
		}
		return ex.Error()
	}
	return err.Error()
}

func (e *Executor) installConsole(vm *goja.Runtime, out *strings.Builder) {
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = format(vm, arg)
		}
		out.WriteString(strings.Join(parts, " "))
		out.WriteByte('\n')
		return goja.Undefined()
	}
	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(name, write)
	}
	_ = vm.Set("console", console)
}

// format renders a value the way a terminal console would: strings bare,
// plain objects and arrays as JSON, errors and functions by their string
// form.
func format(vm *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	switch obj.ClassName() {
	case "Object", "Array":
		stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
		if !ok {
			return v.String()
		}
		s, err := stringify(goja.Undefined(), v)
		if err != nil || goja.IsUndefined(s) {
			return v.String()
		}
		return s.String()
	case "Function":
		return "[Function]"
	default:
		return v.String()
	}
}

func (e *Executor) installRequire(vm *goja.Runtime) {
	cache := make(map[string]goja.Value)

	var require func(call goja.FunctionCall) goja.Value
	require = func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if v, ok := cache[name]; ok {
			return v
		}
		src, ok := e.modules[name]
		if !ok {
			panic(newError(vm, fmt.Sprintf("Cannot find module '%s'", name)))
		}

		wrapped := "(function (module, exports, require) {\n" + src + "\n})"
		fnVal, err := vm.RunScript("module:"+name, wrapped)
		if err != nil {
			panic(newError(vm, fmt.Sprintf("failed to load module '%s': %v", name, err)))
		}
		fn, _ := goja.AssertFunction(fnVal)

		module := vm.NewObject()
		exports := vm.NewObject()
		_ = module.Set("exports", exports)
		// Cache before evaluating so circular requires terminate.
		cache[name] = exports
		if _, err := fn(goja.Undefined(), module, exports, vm.ToValue(require)); err != nil {
			delete(cache, name)
			panic(err)
		}
		v := module.Get("exports")
		cache[name] = v
		return v
	}
	_ = vm.Set("require", require)

	module := vm.NewObject()
	exports := vm.NewObject()
	_ = module.Set("exports", exports)
	_ = vm.Set("module", module)
	_ = vm.Set("exports", exports)
}

// newError builds a JavaScript Error so a panic with it surfaces to the
// script as a catchable exception.
func newError(vm *goja.Runtime, msg string) *goja.Object {
	obj, err := vm.New(vm.Get("Error"), vm.ToValue(msg))
	if err != nil {
		return vm.NewGoError(errors.New(msg))
	}
	return obj
}
