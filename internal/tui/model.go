// Package tui is a terminal view of the workspace. It renders the controller's
// read model with lipgloss and turns key presses into workspace events.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/conneroisu/popcode/internal/workspace"
)

// Workspace is the part of the controller the terminal view drives.
type Workspace interface {
	ReadModel() workspace.ReadModel
	Dispatch(ctx context.Context, event workspace.Event) error
	Subscribe(fn func(workspace.ReadModel)) func()
}

// stateMsg carries a new read model from the store subscription.
type stateMsg struct {
	model workspace.ReadModel
}

// dispatchedMsg reports the outcome of an event dispatched off the UI loop.
type dispatchedMsg struct {
	event workspace.Event
	err   error
}

// Model is the bubbletea model.
type Model struct {
	ctx       context.Context
	workspace Workspace
	updates   chan workspace.ReadModel
	stop      func()
	confirmer *Confirmer
	pending   *confirmRequest

	state  workspace.ReadModel
	focus  int
	status string
	width  int
	height int
}

// New subscribes to ws. Updates are coalesced: the view only ever needs the
// newest read model.
func New(ctx context.Context, ws Workspace, opts ...Option) *Model {
	m := &Model{
		ctx:       ctx,
		workspace: ws,
		updates:   make(chan workspace.ReadModel, 1),
		state:     ws.ReadModel(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stop = ws.Subscribe(m.offer)
	return m
}

func (m *Model) offer(model workspace.ReadModel) {
	for {
		select {
		case m.updates <- model:
			return
		default:
		}
		select {
		case stale := <-m.updates:
			if stale.Version > model.Version {
				model = stale
			}
		default:
		}
	}
}

// Close stops the store subscription and declines any open question.
func (m *Model) Close() {
	if m.stop != nil {
		m.stop()
	}
	m.answer(false)
}

func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case model := <-m.updates:
			return stateMsg{model: model}
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m *Model) dispatch(event workspace.Event) tea.Cmd {
	return func() tea.Msg {
		return dispatchedMsg{event: event, err: m.workspace.Dispatch(m.ctx, event)}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForState(), m.waitForConfirm())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case stateMsg:
		if msg.model.Version >= m.state.Version {
			m.state = msg.model
		}
		m.clampFocus()
		return m, m.waitForState()
	case dispatchedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else if _, ok := msg.event.(workspace.ExportRequested); ok {
			m.status = exportStatus(m.state)
		}
		return m, nil
	case confirmMsg:
		m.pending = &msg.request
		m.status = confirmPrompt(msg.request.prompt)
		return m, nil
	case tea.KeyMsg:
		if m.pending != nil {
			return m.handleConfirmKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// handleConfirmKey answers the open question. Only y confirms.
func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.answer(false)
		return m, tea.Quit
	}
	yes := key == "y" || key == "Y"
	m.status = ""
	if yes {
		m.status = "Exporting…"
	}
	return m, m.answer(yes)
}

func (m *Model) clampFocus() {
	if m.focus >= len(m.state.Editors) {
		m.focus = len(m.state.Editors) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}
}

func (m *Model) focusedEditor() (workspace.EditorView, bool) {
	if m.focus < 0 || m.focus >= len(m.state.Editors) {
		return workspace.EditorView{}, false
	}
	return m.state.Editors[m.focus], true
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	previous := m.status
	m.status = ""
	switch msg.String() {
	case "ctrl+c", "q":
		if m.state.ConfirmUnload && previous != confirmQuit {
			m.status = confirmQuit
			return m, nil
		}
		return m, tea.Quit
	case "Q":
		return m, tea.Quit
	case "tab", "down", "j":
		if n := len(m.state.Editors); n > 0 {
			m.focus = (m.focus + 1) % n
		}
	case "shift+tab", "up", "k":
		if n := len(m.state.Editors); n > 0 {
			m.focus = (m.focus + n - 1) % n
		}
	case "m":
		if editor, ok := m.focusedEditor(); ok {
			return m, m.dispatch(workspace.ComponentMinimized{Component: editor.Language.EditorComponent()})
		}
	case "M":
		var cmds []tea.Cmd
		for _, component := range m.state.HiddenComponents {
			cmds = append(cmds, m.dispatch(workspace.ComponentMaximized{Component: component}))
		}
		switch len(cmds) {
		case 0:
			return m, nil
		case 1:
			return m, cmds[0]
		}
		return m, tea.Sequence(cmds...)
	case "d":
		return m, m.dispatch(workspace.DashboardToggled{})
	case "i":
		return m, m.dispatch(workspace.InstructionsToggled{})
	case "e":
		m.status = "Exporting…"
		return m, m.dispatch(workspace.ExportRequested{})
	case "n":
		return m, m.dispatch(workspace.NewProject{})
	case "[", "]":
		if key, ok := m.adjacentProject(msg.String() == "]"); ok {
			return m, m.dispatch(workspace.ProjectSelected{Key: key})
		}
	case "x":
		if len(m.state.Notifications) > 0 {
			return m, m.dispatch(workspace.NotificationDismissed{Type: m.state.Notifications[0].Type})
		}
	case "c":
		return m, m.dispatch(workspace.RuntimeErrorsCleared{})
	case "l":
		if m.state.User.Authenticated {
			return m, m.dispatch(workspace.LogOutRequested{})
		}
		return m, m.dispatch(workspace.LogInRequested{})
	}
	return m, nil
}

const confirmQuit = "Unsaved changes will be lost. Press q again to quit."

// adjacentProject is the project after (or before) the current one in the
// picker order, wrapping around.
func (m *Model) adjacentProject(next bool) (string, bool) {
	projects := m.state.Projects
	if len(projects) < 2 || m.state.CurrentProject == nil {
		return "", false
	}
	current := 0
	for i, p := range projects {
		if p.Key == m.state.CurrentProject.ProjectKey {
			current = i
			break
		}
	}
	step := len(projects) - 1
	if next {
		step = 1
	}
	return projects[(current+step)%len(projects)].Key, true
}
