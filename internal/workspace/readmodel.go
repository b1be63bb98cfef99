package workspace

import (
	"fmt"
	"time"

	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/layout"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/session"
	"github.com/conneroisu/popcode/internal/store"
	"github.com/conneroisu/popcode/internal/validation"
)

// EditorView is one visible editor pane.
type EditorView struct {
	Language project.Language       `json:"language"`
	Label    string                 `json:"label"`
	Source   string                 `json:"source"`
	Flex     layout.Flex            `json:"flex"`
	HelpText string                 `json:"helpText,omitempty"`
	State    validation.State       `json:"validationState"`
	Errors   []validation.ErrorItem `json:"errors"`
}

// ProjectSummary is one entry of the project picker.
type ProjectSummary struct {
	Key       string     `json:"projectKey"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Pristine  bool       `json:"pristine"`
}

// NotificationView is a notification with its display text.
type NotificationView struct {
	notifications.Notification
	Text string `json:"text"`
}

// InstructionsView is the instructions pane.
type InstructionsView struct {
	Open     bool   `json:"isOpen"`
	Markdown string `json:"markdown,omitempty"`
	Rendered string `json:"rendered,omitempty"`
}

// ReadModel is the derived view of the workspace handed to the view layer.
type ReadModel struct {
	Version          uint64                 `json:"version"`
	Loaded           bool                   `json:"loaded"`
	User             auth.User              `json:"user"`
	CurrentProject   *project.Raw           `json:"currentProject"`
	Projects         []ProjectSummary       `json:"projects"`
	Editors          []EditorView           `json:"editors"`
	HiddenComponents []string               `json:"hiddenComponents"`
	Validation       validation.State       `json:"validationState"`
	RuntimeErrors    []validation.ErrorItem `json:"runtimeErrors"`
	Notifications    []NotificationView     `json:"notifications"`
	Dashboard        store.Dashboard        `json:"dashboard"`
	Instructions     InstructionsView       `json:"instructions"`
	Export           store.ExportRequest    `json:"export"`
	FocusedLine      *store.FocusedLine     `json:"focusedLine,omitempty"`
	ConfirmUnload    bool                   `json:"confirmUnload"`
}

// HelpText is shown in an editor whose source is empty.
func HelpText(lang project.Language) string {
	return fmt.Sprintf("Type your %s code here.", lang.Label())
}

// ReadModel derives the view of the current state.
func (c *Controller) ReadModel() ReadModel {
	return c.readModel(c.store.State())
}

func (c *Controller) readModel(state store.State) ReadModel {
	model := ReadModel{
		Version:       state.Version(),
		Loaded:        state.Loaded(),
		User:          state.User(),
		Projects:      summarize(state.Projects()),
		Validation:    validation.Aggregate(validation.StatesOf(state.Validations()), state.IsUserTyping()),
		RuntimeErrors: state.RuntimeErrors(),
		Dashboard:     state.Dashboard(),
		Editors:       []EditorView{},
	}
	for _, n := range state.Notifications().Items() {
		model.Notifications = append(model.Notifications, NotificationView{Notification: n, Text: c.catalog.Text(n)})
	}
	if focused, ok := state.FocusedLine(); ok {
		model.FocusedLine = &focused
	}

	p, ok := state.CurrentProject()
	if !ok {
		return model
	}
	raw := p.ToJS()
	model.CurrentProject = &raw
	model.HiddenComponents = p.HiddenUIComponents()
	model.Export = state.Export(p.Key())
	model.ConfirmUnload = session.ShouldConfirmUnload(state.User(), &p)

	visible := layout.Visible(p.HiddenUIComponents())
	geometry := state.Geometry()
	for i, lang := range visible {
		flex := layout.Flexible
		if i < len(geometry) {
			flex = geometry[i]
		}
		result := state.Validation(lang)
		errs := result.Items
		if lang == project.JavaScript {
			errs = append(append([]validation.ErrorItem{}, errs...), state.RuntimeErrors()...)
		}
		view := EditorView{
			Language: lang,
			Label:    lang.Label(),
			Source:   p.Source(lang),
			Flex:     flex,
			State:    result.State,
			Errors:   errs,
		}
		if view.Source == "" {
			view.HelpText = HelpText(lang)
		}
		model.Editors = append(model.Editors, view)
	}

	model.Instructions = InstructionsView{
		Open:     state.InstructionsOpen(),
		Markdown: p.Instructions().Markdown,
	}
	if model.Instructions.Open {
		rendered, err := c.instructions.Render(p.Instructions())
		if err != nil {
			c.logger.Warn(c.background, err, "Could not render instructions", "project", p.Key())
		}
		model.Instructions.Rendered = rendered
	}
	return model
}

func summarize(projects []project.Project) []ProjectSummary {
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summary := ProjectSummary{Key: p.Key(), Pristine: project.IsPristine(p)}
		if updated, ok := p.UpdatedAt(); ok {
			summary.UpdatedAt = &updated
		}
		out = append(out, summary)
	}
	return out
}

// Subscribe calls fn with a fresh read model after every state change and
// returns a function that stops the subscription.
func (c *Controller) Subscribe(fn func(ReadModel)) func() {
	return c.store.Subscribe(func(state store.State) {
		fn(c.readModel(state))
	})
}
