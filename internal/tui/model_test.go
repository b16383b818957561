package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codepad/internal/filestore"
	"github.com/fyrsmithlabs/codepad/internal/sandbox"
	"github.com/fyrsmithlabs/codepad/internal/shell"
	"github.com/fyrsmithlabs/codepad/internal/vfs"
)

func newTestModel(t *testing.T) (Model, *vfs.Service, string) {
	t.Helper()
	ctx := context.Background()
	svc := vfs.NewService(filestore.NewMemoryStore())
	require.NoError(t, svc.Initialize(ctx))
	p, err := svc.CreateProject(ctx, "Demo", "react")
	require.NoError(t, err)

	interp := shell.NewInterpreter(sandbox.NewExecutor())
	return NewModel(ctx, interp, svc, p.ID, p.Name), svc, p.ID
}

// run types line, presses enter and feeds the command's result back.
func run(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd == nil {
		return m
	}
	require.True(t, m.running)
	updated, _ = m.Update(cmd())
	return updated.(Model)
}

func TestNewModel(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.False(t, m.quitting)
	assert.False(t, m.ready)
	assert.Equal(t, "Demo:/$ ", m.input.Prompt)
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "codepad · Demo")
}

func TestModel_Update_WindowSize(t *testing.T) {
	m, _, _ := newTestModel(t)
	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.True(t, m.ready)
	assert.Equal(t, 22, m.viewport.Height)
	assert.Equal(t, 80, m.viewport.Width)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 1})
	m = updated.(Model)
	assert.Equal(t, 1, m.viewport.Height)
}

func TestModel_RunsCommands(t *testing.T) {
	m, svc, id := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	m = run(t, m, "echo hello")
	assert.False(t, m.running)
	transcript := strings.Join(m.transcript, "\n")
	assert.Contains(t, transcript, "Demo:/$ echo hello")
	assert.Contains(t, transcript, "hello")

	m = run(t, m, "cd src")
	assert.Equal(t, "Demo:/src$ ", m.input.Prompt)

	m = run(t, m, "touch util.js")
	content, err := svc.ReadFile(context.Background(), id, "src/util.js")
	require.NoError(t, err)
	assert.Equal(t, "// src/util.js\n", content)
	assert.Contains(t, m.transcript[len(m.transcript)-1], "Created")

	m = run(t, m, "nope")
	assert.Contains(t, m.transcript[len(m.transcript)-1], "command not found: nope")

	assert.Equal(t, []string{"echo hello", "cd src", "touch util.js", "nope"}, m.Session().History)
	assert.Contains(t, m.View(), "Demo:/src$")
}

func TestModel_Clear(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = run(t, m, "echo one")
	require.NotEmpty(t, m.transcript)

	m = run(t, m, "clear")
	assert.Empty(t, m.transcript)
}

func TestModel_EmptyLine(t *testing.T) {
	m, _, _ := newTestModel(t)
	before := len(m.transcript)
	m = run(t, m, "   ")
	assert.False(t, m.running)
	assert.Len(t, m.transcript, before+1, "the prompt is echoed")
	assert.Empty(t, m.Session().History)
}

func TestModel_History(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = run(t, m, "pwd")
	m = run(t, m, "ls")

	up := func() {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
		m = updated.(Model)
	}
	down := func() {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = updated.(Model)
	}

	up()
	assert.Equal(t, "ls", m.input.Value())
	up()
	assert.Equal(t, "pwd", m.input.Value())
	up()
	assert.Equal(t, "pwd", m.input.Value(), "stops at the oldest entry")
	down()
	assert.Equal(t, "ls", m.input.Value())
	down()
	assert.Equal(t, "", m.input.Value())
}

func TestModel_IgnoresInputWhileRunning(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.input.SetValue("echo first")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.NotNil(t, cmd)

	m.input.SetValue("echo second")
	updated, second := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.Nil(t, second)
	assert.Contains(t, m.View(), "running...")

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.False(t, m.running)
	assert.Equal(t, []string{"echo first"}, m.Session().History)
}

func TestModel_UnknownProject(t *testing.T) {
	svc := vfs.NewService(filestore.NewMemoryStore())
	require.NoError(t, svc.Initialize(context.Background()))
	m := NewModel(context.Background(), shell.NewInterpreter(sandbox.NewExecutor()), svc, "missing", "Gone")

	m = run(t, m, "ls")
	assert.Contains(t, m.transcript[len(m.transcript)-1], "project not found")
}

func TestModel_Quit(t *testing.T) {
	for _, key := range []tea.KeyMsg{{Type: tea.KeyCtrlC}, {Type: tea.KeyCtrlD}} {
		m, _, _ := newTestModel(t)
		updated, cmd := m.Update(key)
		m = updated.(Model)
		assert.True(t, m.quitting)
		assert.NotNil(t, cmd)
		assert.Empty(t, m.View())
	}

	m, _, _ := newTestModel(t)
	m.input.SetValue("exit")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
}
