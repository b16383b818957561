package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codepad/internal/metrics"
)

func TestRun_CapturesConsole(t *testing.T) {
	e := NewExecutor()
	res := e.Run(context.Background(), `
console.log("hello", 42);
console.error("warned");
console.log({a: 1}, [1, 2], null, undefined);
`)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "hello 42\nwarned\n{\"a\":1} [1,2] null undefined\n", res.Output)
}

func TestRun_ThrownErrorIsCaptured(t *testing.T) {
	e := NewExecutor()
	res := e.Run(context.Background(), `console.log("before"); throw new Error("boom");`)
	assert.True(t, res.Failed())
	assert.Equal(t, "before\n", res.Output)
	assert.Equal(t, "Error: boom", res.Err)
}

func TestRun_SyntaxError(t *testing.T) {
	e := NewExecutor()
	res := e.Run(context.Background(), `function (`)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "SyntaxError")
}

func TestRun_RequireDisallowed(t *testing.T) {
	e := NewExecutor()
	for _, name := range []string{"fs", "child_process", "http"} {
		res := e.Run(context.Background(), `require("`+name+`")`)
		assert.Equal(t, "Error: Cannot find module '"+name+"'", res.Err)
	}
}

func TestRun_RequireErrorIsCatchable(t *testing.T) {
	e := NewExecutor()
	res := e.Run(context.Background(), `
try { require("fs"); } catch (e) { console.log("caught", e.message); }
`)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "caught Cannot find module 'fs'\n", res.Output)
}

func TestRun_AllowedModules(t *testing.T) {
	e := NewExecutor()
	res := e.Run(context.Background(), `
const path = require("path");
const _ = require("lodash");
const util = require("util");
const React = require("react");
console.log(path.join("/src", "../lib", "a.js"));
console.log(path.extname("App.test.js"), path.basename("/x/y.js", ".js"), path.dirname("/x/y.js"));
console.log(_.sum(_.range(5)), JSON.stringify(_.chunk([1,2,3], 2)));
console.log(util.format("%s=%d", "n", 3));
const [count] = React.useState(7);
console.log(count, require("react") === React);
`)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "/lib/a.js\n.js y /x\n10 [[1,2],[3]]\nn=3\n7 true\n", res.Output)
}

func TestRun_CustomModule(t *testing.T) {
	e := NewExecutor(WithModule("greet", `module.exports = function (n) { return "hi " + n; };`))
	res := e.Run(context.Background(), `console.log(require("greet")("ada"))`)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, "hi ada\n", res.Output)
	assert.Contains(t, e.Modules(), "greet")
	assert.Contains(t, e.Modules(), "react")
}

func TestRun_ContextDeadlineInterrupts(t *testing.T) {
	e := NewExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := e.Run(ctx, `console.log("start"); for (;;) {}`)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "execution interrupted")
	assert.Equal(t, "start\n", res.Output)
	assert.Less(t, res.Duration, 5*time.Second)
}

func TestRun_WithTimeout(t *testing.T) {
	e := NewExecutor(WithTimeout(30 * time.Millisecond))
	res := e.Run(context.Background(), `while (true) {}`)
	assert.Contains(t, res.Err, "execution interrupted")
}

func TestRun_RuntimesAreIsolated(t *testing.T) {
	e := NewExecutor()
	res := e.Run(context.Background(), `globalThis.leak = 1;`)
	require.False(t, res.Failed())

	res = e.Run(context.Background(), `console.log(typeof leak)`)
	assert.Equal(t, "undefined\n", res.Output)
}

func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	e := NewExecutor(WithMetrics(m))

	e.Run(context.Background(), `1+1`)
	e.Run(context.Background(), `throw "x"`)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "codepad_sandbox_runs_total" {
			continue
		}
		for _, mt := range f.GetMetric() {
			counts[mt.GetLabel()[0].GetValue()] = mt.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"ok": 1, "error": 1}, counts)
}
