package store

import (
	"time"

	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/layout"
	"github.com/conneroisu/popcode/internal/notifications"
	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/validation"
)

// Intent is a fully formed description of one state transition. Intents
// are the only way to change the store.
type Intent interface {
	// Name identifies the intent in logs.
	Name() string
	reduce(s State, now time.Time) State
}

// ApplicationLoaded marks startup complete and records the requested gist.
type ApplicationLoaded struct {
	GistID string
}

func (ApplicationLoaded) Name() string { return "application-loaded" }

func (i ApplicationLoaded) reduce(s State, _ time.Time) State {
	s.loaded = true
	s.initialGistID = i.GistID
	return s
}

// ProjectCreated adds a new project and selects it.
type ProjectCreated struct {
	Project project.Project
}

func (ProjectCreated) Name() string { return "project-created" }

func (i ProjectCreated) reduce(s State, _ time.Time) State {
	s = s.withProject(i.Project)
	s.currentKey = i.Project.Key()
	s.runtimeErrors = nil
	s.validations = Initial().validations
	s.geometry = layout.Default(layout.MaxPanes)
	return s
}

// ProjectLoaded adds a project from a file or remote source and selects it.
type ProjectLoaded struct {
	Project project.Project
}

func (ProjectLoaded) Name() string { return "project-loaded" }

func (i ProjectLoaded) reduce(s State, now time.Time) State {
	return ProjectCreated(i).reduce(s, now)
}

// CurrentProjectChanged selects an existing project.
type CurrentProjectChanged struct {
	Key string
}

func (CurrentProjectChanged) Name() string { return "current-project-changed" }

func (i CurrentProjectChanged) reduce(s State, _ time.Time) State {
	if _, ok := s.projects[i.Key]; !ok {
		return s
	}
	s.currentKey = i.Key
	s.runtimeErrors = nil
	s.geometry = layout.Default(layout.MaxPanes)
	return s
}

// SourceUpdated replaces one language's source and marks that language as
// validating until its validator reports back.
type SourceUpdated struct {
	Key      string
	Language project.Language
	Text     string
}

func (SourceUpdated) Name() string { return "source-updated" }

func (i SourceUpdated) reduce(s State, now time.Time) State {
	p, ok := s.projects[i.Key]
	if !ok {
		return s
	}
	s = s.withProject(p.WithSource(i.Language, i.Text, now))
	prev := s.validations[i.Language]
	return s.withValidation(i.Language, validation.Result{State: validation.Validating, Items: prev.Items})
}

// LibraryToggled flips one library on the project.
type LibraryToggled struct {
	Key     string
	Library string
}

func (LibraryToggled) Name() string { return "library-toggled" }

func (i LibraryToggled) reduce(s State, now time.Time) State {
	p, ok := s.projects[i.Key]
	if !ok {
		return s
	}
	return s.withProject(p.ToggleLibrary(i.Library, now))
}

// ComponentVisibilityChanged hides or shows a UI component and resets the
// editor geometry.
type ComponentVisibilityChanged struct {
	Key       string
	Component string
	Hidden    bool
	Geometry  layout.Geometry
}

func (i ComponentVisibilityChanged) Name() string {
	if i.Hidden {
		return "component-minimized"
	}
	return "component-maximized"
}

func (i ComponentVisibilityChanged) reduce(s State, now time.Time) State {
	p, ok := s.projects[i.Key]
	if !ok {
		return s
	}
	s = s.withProject(p.WithComponentHidden(i.Component, i.Hidden, now))
	s.geometry = i.Geometry
	return s
}

// LayoutChanged stores a geometry computed from a divider drag.
type LayoutChanged struct {
	Geometry layout.Geometry
}

func (LayoutChanged) Name() string { return "layout-changed" }

func (i LayoutChanged) reduce(s State, _ time.Time) State {
	s.geometry = i.Geometry
	return s
}

// FocusedLineRequested shows the editor for a language and asks it to jump
// to a line.
type FocusedLineRequested struct {
	Key      string
	Line     FocusedLine
	Geometry layout.Geometry
}

func (FocusedLineRequested) Name() string { return "focused-line-requested" }

func (i FocusedLineRequested) reduce(s State, now time.Time) State {
	if p, ok := s.projects[i.Key]; ok {
		component := i.Line.Language.EditorComponent()
		if p.IsHidden(component) {
			s = s.withProject(p.WithComponentHidden(component, false, now))
			s.geometry = i.Geometry
		}
	}
	line := i.Line
	s.focusedLine = &line
	return s
}

// FocusedLineAcknowledged clears a handled line-focus request.
type FocusedLineAcknowledged struct{}

func (FocusedLineAcknowledged) Name() string { return "focused-line-acknowledged" }

func (FocusedLineAcknowledged) reduce(s State, _ time.Time) State {
	s.focusedLine = nil
	return s
}

// RuntimeErrorAdded records an error thrown by the running preview.
type RuntimeErrorAdded struct {
	Item validation.ErrorItem
}

func (RuntimeErrorAdded) Name() string { return "runtime-error-added" }

func (i RuntimeErrorAdded) reduce(s State, _ time.Time) State {
	errs := make([]validation.ErrorItem, 0, len(s.runtimeErrors)+1)
	errs = append(errs, s.runtimeErrors...)
	s.runtimeErrors = append(errs, i.Item)
	return s
}

// RuntimeErrorsCleared drops all runtime errors.
type RuntimeErrorsCleared struct{}

func (RuntimeErrorsCleared) Name() string { return "runtime-errors-cleared" }

func (RuntimeErrorsCleared) reduce(s State, _ time.Time) State {
	s.runtimeErrors = nil
	return s
}

// TypingChanged records whether the user is mid-edit.
type TypingChanged struct {
	Typing bool
}

func (TypingChanged) Name() string { return "typing-changed" }

func (i TypingChanged) reduce(s State, _ time.Time) State {
	s.typing = i.Typing
	return s
}

// ValidationReported stores a validator result.
type ValidationReported struct {
	Language project.Language
	Result   validation.Result
}

func (ValidationReported) Name() string { return "validation-reported" }

func (i ValidationReported) reduce(s State, _ time.Time) State {
	return s.withValidation(i.Language, i.Result)
}

// NotificationTriggered queues a notification.
type NotificationTriggered struct {
	Notification notifications.Notification
}

func (NotificationTriggered) Name() string { return "notification-triggered" }

func (i NotificationTriggered) reduce(s State, _ time.Time) State {
	s.notifications = s.notifications.Add(i.Notification)
	return s
}

// NotificationDismissed removes notifications of one type.
type NotificationDismissed struct {
	Type string
}

func (NotificationDismissed) Name() string { return "notification-dismissed" }

func (i NotificationDismissed) reduce(s State, _ time.Time) State {
	s.notifications = s.notifications.Dismiss(i.Type)
	return s
}

// DashboardToggled opens or closes the dashboard.
type DashboardToggled struct{}

func (DashboardToggled) Name() string { return "dashboard-toggled" }

func (DashboardToggled) reduce(s State, _ time.Time) State {
	s.dashboard.IsOpen = !s.dashboard.IsOpen
	return s
}

// DashboardSubmenuToggled switches the active submenu, closing it when it is
// already active.
type DashboardSubmenuToggled struct {
	Submenu string
}

func (DashboardSubmenuToggled) Name() string { return "dashboard-submenu-toggled" }

func (i DashboardSubmenuToggled) reduce(s State, _ time.Time) State {
	if s.dashboard.ActiveSubmenu == i.Submenu {
		s.dashboard.ActiveSubmenu = ""
	} else {
		s.dashboard.ActiveSubmenu = i.Submenu
	}
	return s
}

// InstructionsToggled opens or closes the instructions pane.
type InstructionsToggled struct{}

func (InstructionsToggled) Name() string { return "instructions-toggled" }

func (InstructionsToggled) reduce(s State, _ time.Time) State {
	s.instructionsOpen = !s.instructionsOpen
	return s
}

// UserAuthenticated records a signed-in user.
type UserAuthenticated struct {
	User auth.User
}

func (UserAuthenticated) Name() string { return "user-authenticated" }

func (i UserAuthenticated) reduce(s State, _ time.Time) State {
	s.user = i.User
	return s
}

// UserLoggedOut resets the user to anonymous.
type UserLoggedOut struct{}

func (UserLoggedOut) Name() string { return "user-logged-out" }

func (UserLoggedOut) reduce(s State, _ time.Time) State {
	s.user = auth.Anonymous()
	return s
}

// ExportStarted marks an export in flight.
type ExportStarted struct {
	Key string
}

func (ExportStarted) Name() string { return "export-started" }

func (i ExportStarted) reduce(s State, _ time.Time) State {
	return s.withExport(i.Key, ExportRequest{Status: ExportStatusInFlight})
}

// ExportSucceeded records the gist URL of a finished export.
type ExportSucceeded struct {
	Key string
	URL string
}

func (ExportSucceeded) Name() string { return "export-succeeded" }

func (i ExportSucceeded) reduce(s State, _ time.Time) State {
	return s.withExport(i.Key, ExportRequest{Status: ExportStatusSucceeded, ResultURL: i.URL})
}

// ExportFailed records a failed export.
type ExportFailed struct {
	Key string
}

func (ExportFailed) Name() string { return "export-failed" }

func (i ExportFailed) reduce(s State, _ time.Time) State {
	return s.withExport(i.Key, ExportRequest{Status: ExportStatusFailed})
}

// Batch applies several intents as one transition, so an event that needs a
// notification and a status change still produces a single store command.
type Batch struct {
	Label   string
	Intents []Intent
}

func (b Batch) Name() string { return b.Label }

func (b Batch) reduce(s State, now time.Time) State {
	for _, intent := range b.Intents {
		s = intent.reduce(s, now)
	}
	return s
}
