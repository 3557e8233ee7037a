package render

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bft-labs/modelhost/internal/client"
)

// ViewMsg carries a new client view into the watch program.
type ViewMsg client.View

// ExitMsg stops the watch program with an optional error.
type ExitMsg struct{ Err error }

// WatchModel is the bubbletea model behind `modelhost watch`.
type WatchModel struct {
	server string
	view   client.View
	err    error
	quit   bool
}

// NewWatchModel creates a model showing the coordinator at server.
func NewWatchModel(server string) WatchModel {
	return WatchModel{server: server}
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	case ViewMsg:
		m.view = client.View(msg)
	case ExitMsg:
		m.err = msg.Err
		m.quit = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("modelhost"))
	b.WriteString(" ")
	b.WriteString(mutedStyle.Render(m.server))
	b.WriteString("\n\n")

	b.WriteString(phaseStyle(m.view.Phase).Render(StatusText(m.view)))
	b.WriteString("\n")
	b.WriteString(Bar(m.view.Progress))
	b.WriteString("\n")

	if m.view.Attempt != "" {
		b.WriteString(mutedStyle.Render("attempt " + m.view.Attempt))
		b.WriteString("\n")
	}
	if !m.view.Updated.IsZero() {
		b.WriteString(mutedStyle.Render("updated " + m.view.Updated.Format(time.TimeOnly)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(phaseStyle(client.PhaseFailed).Render(m.err.Error()))
		b.WriteString("\n")
	}
	if !m.quit {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("q to quit"))
		b.WriteString("\n")
	}
	return b.String()
}

// Err returns the error that ended the program, if any.
func (m WatchModel) Err() error { return m.err }

// Sender is the part of *tea.Program the watch renderer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramRenderer forwards views to a running program. It implements
// client.Renderer.
type ProgramRenderer struct {
	program Sender
}

// NewProgramRenderer creates a renderer for p.
func NewProgramRenderer(p Sender) *ProgramRenderer {
	return &ProgramRenderer{program: p}
}

// Render implements client.Renderer.
func (r *ProgramRenderer) Render(v client.View) {
	r.program.Send(ViewMsg(v))
}
