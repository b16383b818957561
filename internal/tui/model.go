// Package tui is the interactive terminal for a project: a scrolling
// transcript of shell results above a prompt.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/codepad/internal/shell"
)

// maxTranscript bounds how many rendered lines the transcript keeps.
const maxTranscript = 2000

// Model represents the BubbleTea terminal model
type Model struct {
	ctx       context.Context
	interp    *shell.Interpreter
	projects  shell.Projects
	projectID string
	title     string
	session   *shell.Session

	input      textinput.Model
	viewport   viewport.Model
	transcript []string
	ready      bool
	running    bool
	quitting   bool
}

// resultMsg carries the outcome of one command line back to Update.
type resultMsg struct {
	result shell.Result
}

// NewModel creates a terminal bound to one project. ctx bounds every
// command the terminal runs.
func NewModel(ctx context.Context, interp *shell.Interpreter, projects shell.Projects, projectID, title string) Model {
	in := textinput.New()
	in.Focus()
	in.CharLimit = 4096
	in.PromptStyle = promptStyle

	m := Model{
		ctx:       ctx,
		interp:    interp,
		projects:  projects,
		projectID: projectID,
		title:     title,
		session:   shell.NewSession(),
		input:     in,
	}
	m.input.Prompt = m.prompt()
	m.transcript = []string{dimStyle.Render("Type 'help' for available commands, 'exit' to leave.")}
	return m
}

// Session is the shell session the terminal drives.
func (m Model) Session() *shell.Session { return m.session }

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// header and prompt take one line each
		height := msg.Height - 2
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.refresh()
		return m, nil

	case resultMsg:
		m.running = false
		m.apply(msg.result)
		m.input.Prompt = m.prompt()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyUp:
			if !m.running {
				if line, ok := m.session.Previous(); ok {
					m.input.SetValue(line)
					m.input.CursorEnd()
				}
			}
			return m, nil
		case tea.KeyDown:
			if !m.running {
				line, _ := m.session.Next()
				m.input.SetValue(line)
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}
	line := m.input.Value()
	m.input.Reset()
	m.session.ResetCursor()

	switch strings.TrimSpace(line) {
	case "exit", "quit":
		m.quitting = true
		return m, tea.Quit
	}

	m.appendLines(promptStyle.Render(m.input.Prompt) + line)
	m.refresh()
	if strings.TrimSpace(line) == "" {
		return m, nil
	}
	m.running = true
	return m, m.execute(line)
}

// execute runs line off the UI goroutine. Update ignores further input
// until the resultMsg arrives, so the session is never shared.
func (m Model) execute(line string) tea.Cmd {
	ctx, interp, projects, id, session := m.ctx, m.interp, m.projects, m.projectID, m.session
	return func() tea.Msg {
		sc, err := shell.Bind(ctx, projects, id)
		if err != nil {
			return resultMsg{result: shell.Result{Output: err.Error(), Kind: shell.KindError}}
		}
		return resultMsg{result: interp.Execute(ctx, session, line, sc)}
	}
}

func (m *Model) apply(res shell.Result) {
	if res.Kind == shell.KindClear {
		m.transcript = nil
		return
	}
	if res.Output == "" {
		return
	}
	style := styleFor(res.Kind)
	for _, l := range strings.Split(res.Output, "\n") {
		m.appendLines(style.Render(l))
	}
}

func (m *Model) appendLines(lines ...string) {
	m.transcript = append(m.transcript, lines...)
	if over := len(m.transcript) - maxTranscript; over > 0 {
		m.transcript = m.transcript[over:]
	}
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) prompt() string {
	return fmt.Sprintf("%s:%s$ ", m.title, m.session.CurrentDirectory)
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("codepad · " + m.title))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(footerKeyStyle.Render("↑/↓") + " history  " + footerKeyStyle.Render("ctrl+c") + " quit"))
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(strings.Join(m.transcript, "\n"))
	}
	b.WriteString("\n")
	if m.running {
		b.WriteString(dimStyle.Render("running..."))
	} else {
		b.WriteString(m.input.View())
	}
	return b.String()
}
