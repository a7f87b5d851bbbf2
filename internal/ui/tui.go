// Package ui provides the interactive terminal client.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hiroki-koketsu/go-todo/internal/view"
)

type mode int

const (
	modeList mode = iota
	modeInput
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	footerStyle  = lipgloss.NewStyle().Faint(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Model is the bubbletea model of the task list screen.
type Model struct {
	ctx     context.Context
	view    *view.View
	timeout time.Duration

	mode    mode
	cursor  int
	input   []rune
	pending int
	loaded  bool
}

// New returns a Model that drives v. Each API call is bounded by timeout.
func New(ctx context.Context, v *view.View, timeout time.Duration) *Model {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Model{ctx: ctx, view: v, timeout: timeout}
}

// Run starts the full-screen TUI and blocks until the user quits.
func Run(ctx context.Context, v *view.View, timeout time.Duration) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	program := tea.NewProgram(New(ctx, v, timeout), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// loadedMsg follows a List call.
type loadedMsg struct{}

// syncedMsg follows a create, toggle or delete call. Failures are already
// logged by the view.
type syncedMsg struct {
	added bool
}

func (m *Model) Init() tea.Cmd {
	m.pending++
	return m.load()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == modeInput {
			return m, m.updateInput(msg)
		}
		return m, m.updateList(msg)
	case loadedMsg:
		m.loaded = true
		m.settle()
	case syncedMsg:
		if msg.added {
			m.cursor = 0
		}
		m.settle()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) tea.Cmd {
	// A command may have shrunk the list before its message arrived.
	tasks := m.view.Tasks()
	m.clamp(len(tasks))

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(tasks)-1 {
			m.cursor++
		}
	case "a", "n":
		m.mode = modeInput
		m.input = m.input[:0]
	case "r", "f5":
		m.pending++
		return m.load()
	case " ", "enter", "x":
		if len(tasks) == 0 {
			return nil
		}
		id := tasks[m.cursor].ID
		completed, err := m.view.BeginToggle(id)
		if err != nil {
			return nil
		}
		m.pending++
		return m.call(func(ctx context.Context) error {
			return m.view.FinishToggle(ctx, id, completed)
		})
	case "d", "delete":
		if len(tasks) == 0 {
			return nil
		}
		id := tasks[m.cursor].ID
		m.pending++
		return m.call(func(ctx context.Context) error {
			return m.view.Remove(ctx, id)
		})
	}
	return nil
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEsc:
		m.mode = modeList
		m.input = m.input[:0]
	case tea.KeyEnter:
		title := string(m.input)
		m.mode = modeList
		m.input = m.input[:0]
		if strings.TrimSpace(title) == "" {
			return nil
		}
		m.pending++
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
			defer cancel()
			err := m.view.Add(ctx, title)
			return syncedMsg{added: err == nil}
		}
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return nil
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		_ = m.view.Load(ctx)
		return loadedMsg{}
	}
}

func (m *Model) call(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		_ = fn(ctx)
		return syncedMsg{}
	}
}

// settle marks one request finished and keeps the cursor on the list.
func (m *Model) settle() {
	if m.pending > 0 {
		m.pending--
	}
	m.clamp(m.view.Len())
}

func (m *Model) clamp(n int) {
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Todo"))
	if m.pending > 0 {
		b.WriteString(" " + pendingStyle.Render("syncing..."))
	}
	b.WriteString("\n\n")

	tasks := m.view.Tasks()
	switch {
	case !m.loaded && len(tasks) == 0:
		b.WriteString("Loading...\n")
	case len(tasks) == 0:
		b.WriteString("Nothing to do.\n")
	}

	for i, task := range tasks {
		cursor := "  "
		if i == m.cursor && m.mode == modeList {
			cursor = cursorStyle.Render("> ")
		}
		box := "[ ]"
		title := task.Title
		if task.Completed {
			box = "[x]"
			title = doneStyle.Render(title)
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, box, title)
	}

	b.WriteString("\n")
	if m.mode == modeInput {
		b.WriteString(promptStyle.Render("New task: ") + string(m.input) + "_\n")
		b.WriteString(footerStyle.Render("enter save • esc cancel"))
	} else {
		b.WriteString(footerStyle.Render("↑/k ↓/j move • space toggle • a add • d delete • r refresh • q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
