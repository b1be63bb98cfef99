package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/store"
	"github.com/conneroisu/popcode/internal/validation"
	"github.com/conneroisu/popcode/internal/workspace"
)

var (
	paneStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("63"))
	titleStyle       = lipgloss.NewStyle().Bold(true)
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	selectedStyle    = lipgloss.NewStyle().Reverse(true)
)

const helpLine = "tab focus · m minimize · M restore · e export · n new · [ ] project · d dashboard · i instructions · x dismiss · l log in/out · q quit"

// View implements tea.Model.
func (m *Model) View() string {
	if !m.state.Loaded {
		return mutedStyle.Render("Loading workspace…")
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	sections := []string{m.header()}
	if m.state.Dashboard.IsOpen {
		sections = append(sections, m.dashboard(width))
	}
	sections = append(sections, m.notifications()...)
	sections = append(sections, m.editors(width)...)
	if m.state.Instructions.Open {
		sections = append(sections, m.instructions(width))
	}
	if m.status != "" {
		sections = append(sections, m.status)
	}
	sections = append(sections, mutedStyle.Render(helpLine))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) header() string {
	key := "no project"
	if m.state.CurrentProject != nil {
		key = m.state.CurrentProject.ProjectKey
	}
	user := "anonymous"
	if m.state.User.Authenticated {
		user = m.state.User.Login
	}
	return fmt.Sprintf("%s  %s  %s  %s",
		titleStyle.Render("popcode"),
		key,
		mutedStyle.Render(user),
		stateBadge(m.state.Validation))
}

func stateBadge(state validation.State) string {
	switch state {
	case validation.Failed:
		return errorStyle.Render(state.String())
	case validation.Passed:
		return noticeStyle.Render(state.String())
	default:
		return mutedStyle.Render(state.String())
	}
}

func (m *Model) dashboard(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Projects"))
	for _, p := range m.state.Projects {
		line := p.Key
		if p.UpdatedAt != nil {
			line += mutedStyle.Render("  " + p.UpdatedAt.Format("2006-01-02 15:04"))
		}
		if p.Pristine {
			line += mutedStyle.Render("  (empty)")
		}
		if m.state.CurrentProject != nil && p.Key == m.state.CurrentProject.ProjectKey {
			line = selectedStyle.Render(line)
		}
		b.WriteString("\n" + line)
	}
	if m.state.Dashboard.ActiveSubmenu != "" {
		b.WriteString("\n" + mutedStyle.Render("submenu: "+m.state.Dashboard.ActiveSubmenu))
	}
	return paneStyle.Width(width - 2).Render(b.String())
}

func (m *Model) notifications() []string {
	lines := make([]string, 0, len(m.state.Notifications))
	for _, n := range m.state.Notifications {
		style := noticeStyle
		if n.Level == notifications.LevelError {
			style = errorStyle
		}
		lines = append(lines, style.Render("● "+n.Text))
	}
	return lines
}

func (m *Model) editors(width int) []string {
	panes := make([]string, 0, len(m.state.Editors))
	for i, editor := range m.state.Editors {
		style := paneStyle
		if i == m.focus {
			style = focusedPaneStyle
		}

		title := fmt.Sprintf("%s  %s", titleStyle.Render(editor.Label), stateBadge(editor.State))
		if editor.Flex.Fixed {
			title += mutedStyle.Render(fmt.Sprintf("  %gpx", editor.Flex.Pixels))
		}
		body := editor.Source
		if body == "" {
			body = mutedStyle.Render(editor.HelpText)
		}
		body = clip(body, m.paneLines())

		content := []string{title, body}
		for _, item := range editor.Errors {
			content = append(content, errorStyle.Render(fmt.Sprintf("%d:%d %s", item.Line, item.Column, item.Message)))
		}
		panes = append(panes, style.Width(width-2).Render(strings.Join(content, "\n")))
	}
	return panes
}

// paneLines shares the terminal height between the visible editors.
func (m *Model) paneLines() int {
	n := len(m.state.Editors)
	if n == 0 || m.height <= 0 {
		return 8
	}
	lines := (m.height - 6) / n
	if lines < 2 {
		return 2
	}
	return lines - 3
}

func (m *Model) instructions(width int) string {
	text := m.state.Instructions.Rendered
	if text == "" {
		text = m.state.Instructions.Markdown
	}
	if text == "" {
		text = mutedStyle.Render("No instructions.")
	}
	return paneStyle.Width(width - 2).Render(titleStyle.Render("Instructions") + "\n" + text)
}

func clip(text string, lines int) string {
	parts := strings.Split(text, "\n")
	if len(parts) <= lines {
		return text
	}
	return strings.Join(parts[:lines], "\n") + "\n" + mutedStyle.Render(fmt.Sprintf("… %d more lines", len(parts)-lines))
}

func exportStatus(state workspace.ReadModel) string {
	switch state.Export.Status {
	case store.ExportStatusSucceeded:
		return "Exported: " + state.Export.ResultURL
	case store.ExportStatusFailed:
		return "Export failed"
	default:
		return ""
	}
}
